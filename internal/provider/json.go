package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first complete JSON object or array out of a model
// completion. Models wrap JSON in prose and markdown fences often enough
// that decoding the raw completion directly is hopeless.
func ExtractJSON(text string) (string, error) {
	text = stripFences(text)

	start := -1
	var opener, closer byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			start = i
			opener = text[i]
			if opener == '{' {
				closer = '}'
			} else {
				closer = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("no JSON value in completion")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == opener:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return "", fmt.Errorf("completion JSON is invalid")
				}
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON value in completion")
}

// DecodeJSON extracts and unmarshals the first JSON value into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode completion JSON: %w", err)
	}
	return nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
