package normalize

import (
	"fmt"
	"time"
)

const (
	factDateLayout = "200601021504"
	dayDateLayout  = "20060102"
	outputLayout   = "2006-01-02 15:04"
)

// EndOfDayHour is the non-standard hour value P21 uses for "end of day".
// It is mapped to 23:59 of the same day before parsing.
const EndOfDayHour = "24"

// FactDate parses a P21 timestamp of the form YYYYMMDDhhmm.
// An hour of 24 is read as 23:59 of the same day.
func FactDate(raw string) (time.Time, error) {
	if len(raw) != len(factDateLayout) {
		return time.Time{}, fmt.Errorf("date %q: want %d digits", raw, len(factDateLayout))
	}
	if raw[8:10] == EndOfDayHour {
		raw = raw[:8] + "2359"
	}
	t, err := time.Parse(factDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, err)
	}
	return t, nil
}

// DayDate parses a P21 day of the form YYYYMMDD at midnight.
func DayDate(raw string) (time.Time, error) {
	t, err := time.Parse(dayDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("day %q: %w", raw, err)
	}
	return t, nil
}

// ValidFactDate reports whether raw is a real calendar timestamp.
func ValidFactDate(raw string) bool {
	_, err := FactDate(raw)
	return err == nil
}

// ValidDayDate reports whether raw is a real calendar day.
func ValidDayDate(raw string) bool {
	_, err := DayDate(raw)
	return err == nil
}

// FormatFactDate renders t the way facts are logged and exported.
func FormatFactDate(t time.Time) string {
	return t.Format(outputLayout)
}
