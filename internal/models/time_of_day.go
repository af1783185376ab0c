package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date or zone, as stored in a
// Postgres TIME column.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute, Second: second}
}

// TimeOfDayFromMicroseconds converts the pgtype.Time representation
// (microseconds since midnight).
func TimeOfDayFromMicroseconds(us int64) TimeOfDay {
	secs := int(us / 1_000_000)
	return TimeOfDay{Hour: secs / 3600, Minute: secs % 3600 / 60, Second: secs % 60}
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
}

func (t TimeOfDay) Microseconds() int64 {
	return int64(t.Hour*3600+t.Minute*60+t.Second) * 1_000_000
}

// On places t on the calendar day of date, interpreted in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, loc)
}

func (t TimeOfDay) Format() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
