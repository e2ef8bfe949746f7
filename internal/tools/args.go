package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// dateLayouts are the accepted spellings of a date or datetime argument.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

type args map[string]json.RawMessage

func decodeArgs(raw json.RawMessage, allowed []string) (args, error) {
	out := args{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON object: %v", ErrInvalidArgument, err)
	}
	for name := range out {
		if !lo.Contains(allowed, name) {
			return nil, fmt.Errorf("%w: unexpected argument %q", ErrInvalidArgument, name)
		}
	}
	return out, nil
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// String returns the named argument, or "" when it is absent or null.
func (a args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || isNull(v) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArgument, name)
	}
	return strings.TrimSpace(s), nil
}

// Date is String plus a check that the value is a date or datetime.
func (a args) Date(name string) (string, error) {
	s, err := a.String(name)
	if err != nil || s == "" {
		return s, err
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %s must be a date (YYYY-MM-DD) or datetime, got %q", ErrInvalidArgument, name, s)
}

// ID returns a required integer argument. Numeric strings are accepted.
func (a args) ID(name string) (int64, error) {
	v, ok := a[name]
	if !ok || isNull(v) {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
	}
	var n int64
	if err := json.Unmarshal(v, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidArgument, name)
}
