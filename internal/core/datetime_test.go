package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"with fraction", "2018-03-31T22:27:09.140", false},
		{"without fraction", "2018-03-31T22:27:09", false},
		{"minute precision", "2018-03-31T22:27", false},
		{"garbage", "some_random_invalid_date_format", true},
		{"date only", "2018-03-31", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDateTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.String() != tt.input {
				t.Errorf("raw string changed: got %q, want %q", d.String(), tt.input)
			}
		})
	}
}

func TestDateTimeJSONRoundTrip(t *testing.T) {
	raw := `"2018-03-31T22:27:09.14"`
	var d DateTime
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(got) != raw {
		t.Errorf("round trip changed the value: got %s, want %s", got, raw)
	}
}

func TestDateTimeOrdering(t *testing.T) {
	early, _ := ParseDateTime("2018-03-31T22:27:09")
	late, _ := ParseDateTime("2018-04-01T00:00:00")
	if !early.Before(late) {
		t.Error("ordering broken")
	}
	if early.UnixNano() >= late.UnixNano() {
		t.Error("nanosecond keys must follow datetime order")
	}
}

func TestMonthIndex(t *testing.T) {
	dec, _ := ParseDateTime("2017-12-15T12:00:00")
	jan, _ := ParseDateTime("2018-01-15T12:00:00")
	if jan.MonthIndex()-dec.MonthIndex() != 1 {
		t.Errorf("year boundary should count as one month, got %d", jan.MonthIndex()-dec.MonthIndex())
	}
}

func TestRestoreDateTime(t *testing.T) {
	d, _ := ParseDateTime("2018-03-31T22:27:09.140")
	restored := RestoreDateTime(d.String(), d.UnixNano())
	if restored.String() != d.String() {
		t.Errorf("raw lost: got %q", restored.String())
	}
	if !restored.Time().Equal(d.Time()) {
		t.Errorf("time lost: got %v, want %v", restored.Time(), d.Time())
	}
}

func TestNewDateTimeFormat(t *testing.T) {
	d := NewDateTime(time.Date(2018, 3, 31, 22, 27, 9, 140_000_000, time.UTC))
	if d.String() != "2018-03-31T22:27:09.14" {
		t.Errorf("got %q", d.String())
	}
}
