// Package xldate converts between spreadsheet date serial numbers and
// [time.Time].
//
// Serials count days since an epoch, with the fractional part giving the
// time of day.  The 1900 system keeps Lotus 1-2-3's phantom 1900-02-29
// (serial 60); the 1904 system starts at 1904-01-01 and has no such day.
package xldate

import (
	"fmt"
	"math"
	"time"
)

// MaxSerial1900 is the serial of 9999-12-31 in the 1900 system.
const MaxSerial1900 = 2_958_465

// 1904 serials are offset by four years (one of them leap) from 1900 ones.
const offset1904 = 1462

var (
	epoch1900 = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	epoch1904 = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	// leapBugDay is the first real day after the phantom 1900-02-29.
	leapBugDay = time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)
)

// ToTime converts serial to a UTC time in the given date system.
//
// In the 1900 system serial 0 is midnight 1900-01-01 (a convention shared
// with pyxlsb), serials 1–60 count from 1899-12-31, and serials from 61 on
// subtract one day for the phantom leap day.
func ToTime(serial float64, date1904 bool) (time.Time, error) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, fmt.Errorf("xldate: invalid serial %v", serial)
	}
	if serial < 0 {
		return time.Time{}, fmt.Errorf("xldate: negative serial %v not supported", serial)
	}
	limit := float64(MaxSerial1900 + 1)
	if date1904 {
		limit -= offset1904
	}
	if serial >= limit {
		return time.Time{}, fmt.Errorf("xldate: serial %v exceeds maximum %v", serial, limit-1)
	}

	secs, rollover := fracSeconds(serial)
	days := int(serial) + rollover
	clock := time.Duration(secs) * time.Second
	if date1904 {
		return epoch1904.AddDate(0, 0, days).Add(clock), nil
	}
	switch {
	case days == 0:
		return time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC).Add(clock), nil
	case days >= 61:
		return epoch1900.AddDate(0, 0, days-1).Add(clock), nil
	default:
		return epoch1900.AddDate(0, 0, days).Add(clock), nil
	}
}

// FromTime converts t to a serial in the given date system.  The wall-clock
// fields of t are used as-is; the location is ignored.
func FromTime(t time.Time, date1904 bool) (float64, error) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	clock := float64(t.Hour()*3600+t.Minute()*60+t.Second())/86400 +
		float64(t.Nanosecond())/(86400*1e9)

	var days int
	if date1904 {
		if day.Before(epoch1904) {
			return 0, fmt.Errorf("xldate: %s is before the 1904 epoch", t.Format(time.DateOnly))
		}
		days = daysBetween(epoch1904, day)
	} else {
		if day.Before(epoch1900.AddDate(0, 0, 1)) {
			return 0, fmt.Errorf("xldate: %s is before 1900-01-01", t.Format(time.DateOnly))
		}
		days = daysBetween(epoch1900, day)
		if !day.Before(leapBugDay) {
			days++
		}
	}
	serial := float64(days) + clock
	limit := float64(MaxSerial1900)
	if date1904 {
		limit -= offset1904
	}
	if serial >= limit+1 {
		return 0, fmt.Errorf("xldate: %s is after 9999-12-31", t.Format(time.DateOnly))
	}
	return serial, nil
}

// daysBetween counts whole days from a to b.  time.Duration cannot span the
// full calendar range, so the count goes through Unix seconds.
func daysBetween(a, b time.Time) int {
	return int((b.Unix() - a.Unix()) / 86400)
}

// fracSeconds converts the fractional-day part of serial to whole seconds
// (0–86399) plus a day rollover when rounding reaches midnight.  A 1e-9 day
// epsilon absorbs float drift before half-second rounding, matching what
// spreadsheet applications display.
func fracSeconds(serial float64) (secs int64, rollover int) {
	const roundEpsilon = 1e-9
	frac := serial - math.Trunc(serial) + roundEpsilon
	const nanosPerDay = float64(24 * time.Hour)
	d := time.Duration(frac * nanosPerDay)
	secs = int64(d / time.Second)
	if d%time.Second > 500*time.Millisecond {
		secs++
	}
	return secs % 86400, int(secs / 86400)
}
