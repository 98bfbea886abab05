// Package dates turns the date encodings found in enrollment spreadsheets and
// in the record store into calendar days without a time-of-day component.
package dates

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	isoLayout      = "2006-01-02"
	brLayout       = "02/01/2006"
	dayMonthLayout = "02/01"
)

// Day is a calendar day. It is comparable and safe to use as a map key.
type Day struct {
	year  int
	month time.Month
	day   int
}

// New builds a Day, normalising overflowing values the way time.Date does.
func New(year int, month time.Month, day int) Day {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime keeps the calendar date of t as written in its own location.
func FromTime(t time.Time) Day {
	y, m, d := t.Date()
	return Day{year: y, month: m, day: d}
}

func (d Day) IsZero() bool { return d == Day{} }

func (d Day) Year() int { return d.year }

func (d Day) Month() time.Month { return d.month }

func (d Day) Day() int { return d.day }

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

func (d Day) Weekday() time.Weekday { return d.Time().Weekday() }

// AddDays moves the day by n calendar days.
func (d Day) AddDays(n int) Day {
	return FromTime(d.Time().AddDate(0, 0, n))
}

// ShiftYears moves the day by n whole years. February 29 landing in a
// non-leap year resolves to February 28; every other day keeps its month and
// day of month.
func (d Day) ShiftYears(n int) Day {
	target := d.year + n
	day := d.day
	if d.month == time.February && day == 29 && !IsLeap(target) {
		day = 28
	}
	return Day{year: target, month: d.month, day: day}
}

func (d Day) Before(o Day) bool { return d.Time().Before(o.Time()) }

func (d Day) After(o Day) bool { return d.Time().After(o.Time()) }

// ISO renders YYYY-MM-DD.
func (d Day) ISO() string { return d.Time().Format(isoLayout) }

// BR renders DD/MM/YYYY, the layout written to the record store on import.
func (d Day) BR() string { return d.Time().Format(brLayout) }

// DayMonth renders DD/MM.
func (d Day) DayMonth() string { return d.Time().Format(dayMonthLayout) }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.ISO()
}

// MarshalJSON encodes the day as an ISO string.
func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts ISO strings and empty values.
func (d *Day) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode day: %w", err)
	}
	if raw == "" {
		*d = Day{}
		return nil
	}
	parsed, ok := Normalize(raw, ISO)
	if !ok {
		return fmt.Errorf("invalid day %q", raw)
	}
	*d = parsed
	return nil
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Window returns n consecutive days ending at and including end, ascending.
func Window(end Day, n int) []Day {
	if n <= 0 {
		return nil
	}
	days := make([]Day, n)
	for i := 0; i < n; i++ {
		days[i] = end.AddDays(i - (n - 1))
	}
	return days
}
