package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ParseRFC3339 parses an RFC3339 timestamp into UTC. Empty values are
// rejected explicitly so payloads with missing fields fail with a clear
// message instead of a zero time.
func ParseRFC3339(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts.UTC(), nil
}
