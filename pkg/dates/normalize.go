package dates

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Mode tells Normalize which convention produced the raw value.
type Mode int

const (
	// DayFirst reads ambiguous slashed dates as DD/MM/YYYY. Spreadsheet
	// uploads follow the regional convention and use this mode.
	DayFirst Mode = iota
	// ISO expects YYYY-MM-DD based values, as returned by the record store.
	// Slashed values are still read day-first since that is what the
	// importer writes.
	ISO
)

func (m Mode) String() string {
	if m == ISO {
		return "iso"
	}
	return "dayfirst"
}

var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02T15:04:05-07",
	"2006/01/02",
}

var dayFirstLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04:05",
	"2/1/06",
}

// Spreadsheet serial days count from 1899-12-30, which absorbs the
// historical 1900 leap-year bug for every serial after February 1900.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const maxSerial = 2958465 // 9999-12-31

// Normalize converts a raw date value into a calendar day. Supported inputs
// are spreadsheet serial numbers (numeric types or numeric strings), strings
// in the layouts of the selected mode and time values. The boolean is false
// for anything that cannot be read; that is expected for incomplete source
// data and is not an error.
func Normalize(v interface{}, mode Mode) (Day, bool) {
	switch value := v.(type) {
	case nil:
		return Day{}, false
	case Day:
		return value, !value.IsZero()
	case time.Time:
		if value.IsZero() {
			return Day{}, false
		}
		return FromTime(value), true
	case *time.Time:
		if value == nil || value.IsZero() {
			return Day{}, false
		}
		return FromTime(*value), true
	case float64:
		return fromSerial(value)
	case float32:
		return fromSerial(float64(value))
	case int:
		return fromSerial(float64(value))
	case int64:
		return fromSerial(float64(value))
	case string:
		return parseString(value, mode)
	case []byte:
		return parseString(string(value), mode)
	default:
		return Day{}, false
	}
}

func parseString(raw string, mode Mode) (Day, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Day{}, false
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return fromSerial(serial)
	}

	layouts := dayFirstLayouts
	if mode == ISO || looksISO(s) {
		layouts = append(append([]string{}, isoLayouts...), dayFirstLayouts...)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), true
		}
	}
	return Day{}, false
}

// looksISO reports a leading four digit year followed by a separator.
func looksISO(s string) bool {
	if len(s) < 5 {
		return false
	}
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s[4] == '-' || s[4] == '/'
}

func fromSerial(serial float64) (Day, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 1 || serial > maxSerial {
		return Day{}, false
	}
	whole := int(math.Floor(serial))
	return FromTime(serialEpoch.AddDate(0, 0, whole)), true
}
