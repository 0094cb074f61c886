// internal/service/ingest/message.go

package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// locationMessage is the wire schema of one location ping on the ingestion
// topic. Pointer coordinates distinguish "absent" from a legitimate 0.
type locationMessage struct {
	UserID       string   `json:"userId"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	UserDateTime string   `json:"userDateTime"`
}

// decodeMessage parses a raw payload strictly: unknown fields, trailing data
// and missing required fields are all schema violations.
func decodeMessage(raw []byte) (locationMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var m locationMessage
	if err := dec.Decode(&m); err != nil {
		return m, fmt.Errorf("decode: %w", err)
	}
	if dec.More() {
		return m, errors.New("decode: trailing data after message")
	}
	if m.UserID == "" {
		return m, errors.New("missing userId")
	}
	if m.Latitude == nil || m.Longitude == nil {
		return m, errors.New("missing coordinates")
	}
	if m.UserDateTime == "" {
		return m, errors.New("missing userDateTime")
	}
	return m, nil
}

// parseEventTime accepts RFC 3339 with an optional bracketed zone name suffix
// ("2025-06-01T10:02:30+05:30[Asia/Kolkata]"). The suffix is ignored; the
// numeric offset is what gets checked against the service zone.
func parseEventTime(s string) (time.Time, error) {
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse userDateTime: %w", err)
	}
	return t, nil
}
