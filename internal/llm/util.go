// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import "strings"

// CleanJSONBlock extracts the JSON payload from a model answer.
// Models wrap JSON in ```json fences or surround it with prose even when told
// not to; the first balanced object or array is returned. Text that holds no
// JSON is returned trimmed.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "```"); start >= 0 {
		body := text[start+3:]
		// Skip a language identifier on the fence line
		if idx := strings.Index(body, "\n"); idx >= 0 {
			first := body[:idx]
			if len(first) < 20 && !strings.ContainsAny(first, " {[") {
				body = body[idx+1:]
			}
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		text = strings.TrimSpace(body)
	}

	for i, r := range text {
		switch r {
		case '{':
			if obj := extractBalanced(text[i:], '{', '}'); obj != "" {
				return obj
			}
		case '[':
			if arr := extractBalanced(text[i:], '[', ']'); arr != "" {
				return arr
			}
		}
	}
	return text
}

// ExtractJSONObject returns the first balanced JSON object in text, or "".
func ExtractJSONObject(text string) string {
	idx := strings.Index(text, "{")
	if idx < 0 {
		return ""
	}
	return extractBalanced(text[idx:], '{', '}')
}

// extractBalanced returns the prefix of s that closes the opening delimiter at
// s[0], honoring JSON string escapes. It returns "" when s is unbalanced.
func extractBalanced(s string, open, closer byte) string {
	if s == "" || s[0] != open {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
