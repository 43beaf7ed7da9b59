// Package content post-processes finished assistant output.
package content

import (
	"regexp"
	"strings"
)

const (
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"
)

// ToolMarkers are tokens some models leak into visible output around
// native tool calls.
var ToolMarkers = []string{
	"<|tool_calls_section_begin|>",
	"<|tool_calls_section_end|>",
	"<|tool_call_begin|>",
	"<|tool_call_end|>",
	"<|tool_call_argument_begin|>",
	"<|tool_call|>",
	"<|python_tag|>",
	"<tool_call>",
	"</tool_call>",
}

var thinkBlock = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// Normalize splits raw assistant output into visible content and
// reasoning. It is applied once per message, when streaming ends.
//
// Precedence:
//  1. a closing delimiter with no opening delimiter anywhere: everything
//     before it is reasoning, everything after is content;
//  2. otherwise every complete block moves to reasoning;
//  3. a trailing unmatched opening delimiter turns the remainder into
//     reasoning and truncates content there;
//  4. tool markers and orphan closing delimiters are always stripped.
func Normalize(raw string) (content, reasoning string) {
	var parts []string
	content = removeAll(raw, ToolMarkers...)

	if strings.Contains(content, ThinkClose) && !strings.Contains(content, ThinkOpen) {
		before, after, _ := strings.Cut(content, ThinkClose)
		parts = append(parts, before)
		content = after
	} else {
		for _, m := range thinkBlock.FindAllStringSubmatch(content, -1) {
			parts = append(parts, m[1])
		}
		content = thinkBlock.ReplaceAllString(content, "")

		if before, after, ok := strings.Cut(content, ThinkOpen); ok {
			parts = append(parts, after)
			content = before
		}
	}

	// Content keeps no delimiter of either kind.
	content = removeAll(content, append(ToolMarkers, ThinkOpen, ThinkClose)...)
	return strings.TrimSpace(content), joinReasoning(parts)
}

// StripMarkers removes tool-call marker tokens and stray closing
// delimiters from s.
func StripMarkers(s string) string {
	return removeAll(s, append(ToolMarkers, ThinkClose)...)
}

// removeAll deletes every token until none is left. A single pass is not
// enough: removing "<|tool_call|>" from "<|tool<|tool_call|>_call|>"
// leaves another one behind.
func removeAll(s string, tokens ...string) string {
	for {
		prev := s
		for _, tok := range tokens {
			s = strings.ReplaceAll(s, tok, "")
		}
		if s == prev {
			return s
		}
	}
}

func joinReasoning(parts []string) string {
	var kept []string
	for _, p := range parts {
		p = strings.TrimSpace(StripMarkers(p))
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
