package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFunc(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(time.Second, func() { fired++ })

	c.Advance(500 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired = %d before deadline, want 0", fired)
	}
	c.Advance(500 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d at deadline, want 1", fired)
	}
	c.Advance(time.Hour)
	if fired != 1 {
		t.Errorf("fired = %d after deadline, want 1 (one-shot)", fired)
	}
}

func TestFakeTimerStop(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop() = false on pending timer, want true")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, want false")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestFakeOrderAndNesting(t *testing.T) {
	c := Fake(epoch)
	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(time.Second, func() {
		order = append(order, "a")
		// Callbacks see the advanced time, so this lands after the window.
		c.AfterFunc(500*time.Millisecond, func() { order = append(order, "nested") })
	})

	c.Advance(3 * time.Second)
	if len(order) != 2 {
		t.Fatalf("order = %v after first advance, want [a b]", order)
	}
	c.Advance(500 * time.Millisecond)
	want := []string{"a", "b", "nested"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestFakeTicker(t *testing.T) {
	c := Fake(epoch)
	tk := c.NewTicker(time.Second)
	defer tk.Stop()

	c.Advance(time.Second)
	select {
	case got := <-tk.C:
		if !got.Equal(epoch.Add(time.Second)) {
			t.Errorf("tick = %v, want %v", got, epoch.Add(time.Second))
		}
	default:
		t.Fatal("no tick after one interval")
	}

	select {
	case <-tk.C:
		t.Fatal("unexpected second tick")
	default:
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		c.AfterFunc(time.Second, func() { close(done) })
	}()
	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer registered from goroutine did not fire")
	}
}

func TestNowMillis(t *testing.T) {
	c := Fake(epoch)
	if got := NowMillis(c); got != epoch.UnixMilli() {
		t.Errorf("NowMillis = %d, want %d", got, epoch.UnixMilli())
	}
}
