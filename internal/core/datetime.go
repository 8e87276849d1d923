package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// dateLayouts are tried in order. The API speaks zone-less ISO local
// datetimes ("2018-03-31T22:27:09.14", fractional seconds optional); a
// trailing zone offset is tolerated on input.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.RFC3339Nano,
}

// DateTime is a zone-less local datetime. It keeps the exact string it
// was parsed from so values round-trip byte-for-byte through the API.
type DateTime struct {
	t   time.Time
	raw string
}

// ParseDateTime parses an ISO local datetime string.
func ParseDateTime(s string) (DateTime, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateTime{t: t, raw: s}, nil
		}
	}
	return DateTime{}, fmt.Errorf("%w: malformed date %q", ErrInvalidInput, s)
}

// NewDateTime wraps a time.Time, formatting it the way the API emits dates.
func NewDateTime(t time.Time) DateTime {
	return DateTime{t: t, raw: t.Format("2006-01-02T15:04:05.999")}
}

func (d DateTime) Time() time.Time { return d.t }
func (d DateTime) String() string  { return d.raw }
func (d DateTime) IsZero() bool    { return d.raw == "" }

// UnixNano is the ordering key used for storage and comparisons.
func (d DateTime) UnixNano() int64 { return d.t.UnixNano() }

func (d DateTime) Before(other DateTime) bool { return d.t.Before(other.t) }
func (d DateTime) After(other DateTime) bool  { return d.t.After(other.t) }

// MonthIndex counts months since year zero, for month-boundary arithmetic.
func (d DateTime) MonthIndex() int {
	return d.t.Year()*12 + int(d.t.Month()) - 1
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.raw)
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: date must be a string", ErrInvalidInput)
	}
	v, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// RestoreDateTime rebuilds a DateTime from its stored raw string and
// nanosecond key without re-parsing.
func RestoreDateTime(raw string, unixNano int64) DateTime {
	return DateTime{t: time.Unix(0, unixNano).UTC(), raw: raw}
}
