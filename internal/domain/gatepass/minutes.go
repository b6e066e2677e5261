package gatepass

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ParseMinutes accepts a JSON integer or a numeric string ("60") for the
// expiration field. Positivity is checked by the registry, not here.
func ParseMinutes(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrInvalid
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrInvalid
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, ErrInvalid
		}
		return n, nil
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, ErrInvalid
	}
	return n, nil
}
