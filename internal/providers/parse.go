package providers

import (
	"bytes"
	"errors"

	"github.com/goccy/go-json"
)

// ErrUnparseable is returned when no repair step yields valid JSON.
var ErrUnparseable = errors.New("unparseable provider output")

var fence = []byte("```")

// ParseTolerant decodes provider output that is supposed to be JSON but may be
// wrapped in prose or markdown code fences. Steps: strip code fences, strict
// parse, bracket extraction, fail closed.
func ParseTolerant(raw []byte) (any, error) {
	body := bytes.TrimSpace(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")))
	if len(body) == 0 {
		return nil, ErrUnparseable
	}

	body = stripCodeFences(body)

	if v, err := strictParse(body); err == nil {
		return v, nil
	}

	if v, ok := extractBracketed(body); ok {
		return v, nil
	}

	return nil, ErrUnparseable
}

func strictParse(b []byte) (any, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// stripCodeFences returns the content of the first fenced block, or b unchanged.
func stripCodeFences(b []byte) []byte {
	start := bytes.Index(b, fence)
	if start < 0 {
		return b
	}
	rest := b[start+len(fence):]
	// Drop the info string ("json", "JSON", ...) up to the end of the line.
	if nl := bytes.IndexByte(rest, '\n'); nl >= 0 {
		info := bytes.TrimSpace(rest[:nl])
		if len(info) == 0 || isInfoString(info) {
			rest = rest[nl+1:]
		}
	}
	if end := bytes.Index(rest, fence); end >= 0 {
		rest = rest[:end]
	}
	return bytes.TrimSpace(rest)
}

func isInfoString(b []byte) bool {
	for _, c := range b {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

// extractBracketed tries the outermost [...] and {...} spans, earliest opener first.
func extractBracketed(b []byte) (any, bool) {
	type span struct{ open, close byte }
	spans := []span{{'[', ']'}, {'{', '}'}}
	if oi, ai := bytes.IndexByte(b, '{'), bytes.IndexByte(b, '['); oi >= 0 && (ai < 0 || oi < ai) {
		spans[0], spans[1] = spans[1], spans[0]
	}

	for _, s := range spans {
		start := bytes.IndexByte(b, s.open)
		end := bytes.LastIndexByte(b, s.close)
		if start < 0 || end <= start {
			continue
		}
		if v, err := strictParse(b[start : end+1]); err == nil {
			return v, true
		}
	}
	return nil, false
}

// IsEmpty reports whether a decoded payload carries no data. Objects are empty
// when every value they hold is empty.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return len(bytes.TrimSpace([]byte(t))) == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		for _, inner := range t {
			if !IsEmpty(inner) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Unwrap returns the first array found under one of keys when v is an object,
// or v itself when it is already an array.
func Unwrap(v any, keys ...string) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		for _, k := range keys {
			if arr, ok := t[k].([]any); ok {
				return arr
			}
		}
	}
	return nil
}
