package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// timestampLayouts are tried in order. The store emits zone-less LocalDateTime values.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp is a store-owned time. Values that parse under none of the known
// layouts are kept verbatim so one odd field never fails a whole reply.
type Timestamp struct {
	Time time.Time
	raw  string
}

// IsZero reports whether the timestamp carries no value.
func (t Timestamp) IsZero() bool { return t.Time.IsZero() && t.raw == "" }

// Raw returns the unparsed value, if the store sent one that did not parse.
func (t Timestamp) Raw() string { return t.raw }

// UnmarshalJSON accepts null, a JSON string in any known layout, or anything else verbatim.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = Timestamp{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.raw = string(data)
		return nil
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.raw = s
	return nil
}

// MarshalJSON emits RFC3339, the kept raw value, or null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	switch {
	case !t.Time.IsZero():
		return json.Marshal(t.Time.Format(time.RFC3339Nano))
	case t.raw != "":
		return json.Marshal(t.raw)
	default:
		return []byte("null"), nil
	}
}
