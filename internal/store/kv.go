package store

import (
	"database/sql"
	"errors"
	"time"
)

// Get returns the value stored under key. ok is false when the key is absent.
func (db *DB) Get(key string) (value []byte, ok bool, err error) {
	err = db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (db *DB) Set(key string, value []byte) error {
	_, err := db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// Remove deletes key. Removing a missing key is not an error.
func (db *DB) Remove(key string) error {
	_, err := db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// List returns every entry whose key starts with prefix.
func (db *DB) List(prefix string) (map[string][]byte, error) {
	rows, err := db.Query(`SELECT key, value FROM kv WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key`, prefix)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			k string
			v []byte
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Count returns the number of keys starting with prefix.
func (db *DB) Count(prefix string) (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(*) FROM kv WHERE substr(key, 1, length(?1)) = ?1`, prefix).Scan(&n)
	return n, err
}
