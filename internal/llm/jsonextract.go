package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON value can be located in a response.
var ErrNoJSON = errors.New("no json found in response")

// ExtractJSON locates the JSON value inside a model response. The accepted
// grammar, in order:
//
//  1. the whole response is valid JSON
//  2. JSON fenced in a markdown code block (``` or ```json)
//  3. the first balanced {...} or [...] block in the text
//
// Anything else returns ErrNoJSON.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrNoJSON
	}

	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	if fenced, ok := stripCodeFence(trimmed); ok && json.Valid([]byte(fenced)) {
		return json.RawMessage(fenced), nil
	}

	if block, ok := firstBalancedBlock(trimmed); ok && json.Valid([]byte(block)) {
		return json.RawMessage(block), nil
	}

	return nil, ErrNoJSON
}

func stripCodeFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return "", false
	}
	newline := strings.Index(text, "\n")
	if newline < 0 {
		return "", false
	}
	body := text[newline+1:]
	end := strings.LastIndex(body, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}

// firstBalancedBlock scans for the first '{' or '[' and returns the substring
// up to its matching close bracket, honoring strings and escapes.
func firstBalancedBlock(text string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			start = i
			open = text[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
