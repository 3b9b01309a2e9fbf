package nmea

import (
	"fmt"
	"time"
)

// Date is a UTC calendar date from a ddmmyy field. The zero Date means the
// field was empty.
type Date struct {
	Day   int
	Month int
	Year  int
}

func (d Date) Valid() bool {
	return d.Day >= 1 && d.Day <= 31 && d.Month >= 1 && d.Month <= 12 && d.Year > 0
}

// Time is a UTC time of day from an hhmmss[.sss] field. Hours is -1 when the
// field was empty.
type Time struct {
	Hours        int
	Minutes      int
	Seconds      int
	Microseconds int
}

func (t Time) Valid() bool {
	return t.Hours >= 0 && t.Hours < 24 && t.Minutes >= 0 && t.Minutes < 60 && t.Seconds >= 0 && t.Seconds <= 60
}

func (t Time) String() string {
	if !t.Valid() {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", t.Hours, t.Minutes, t.Seconds, t.Microseconds)
}

// ToTime combines a date and time of day into a UTC timestamp.
func ToTime(d Date, t Time) (time.Time, bool) {
	if !d.Valid() || !t.Valid() {
		return time.Time{}, false
	}
	return time.Date(d.Year, time.Month(d.Month), d.Day, t.Hours, t.Minutes, t.Seconds, t.Microseconds*1000, time.UTC), true
}

// parseDate reads ddmmyy. Two-digit years below 80 are 20xx.
func parseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	if len(s) != 6 {
		return Date{}, fmt.Errorf("%w: bad date %q", ErrFormat, s)
	}
	d, err1 := parseDigits(s[0:2])
	m, err2 := parseDigits(s[2:4])
	y, err3 := parseDigits(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return Date{}, fmt.Errorf("%w: bad date %q", ErrFormat, s)
	}
	if y < 80 {
		y += 2000
	} else {
		y += 1900
	}
	out := Date{Day: d, Month: m, Year: y}
	if !out.Valid() {
		return Date{}, fmt.Errorf("%w: date out of range %q", ErrFormat, s)
	}
	return out, nil
}

// parseTime reads hhmmss with an optional fraction of up to six digits.
func parseTime(s string) (Time, error) {
	if s == "" {
		return Time{Hours: -1, Minutes: -1, Seconds: -1, Microseconds: -1}, nil
	}
	if len(s) < 6 {
		return Time{}, fmt.Errorf("%w: bad time %q", ErrFormat, s)
	}
	h, err1 := parseDigits(s[0:2])
	m, err2 := parseDigits(s[2:4])
	sec, err3 := parseDigits(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return Time{}, fmt.Errorf("%w: bad time %q", ErrFormat, s)
	}
	us := 0
	if frac := s[6:]; frac != "" {
		if frac[0] != '.' || len(frac) > 7 {
			return Time{}, fmt.Errorf("%w: bad time %q", ErrFormat, s)
		}
		digits := frac[1:]
		v, err := parseDigits(digits)
		if err != nil && digits != "" {
			return Time{}, fmt.Errorf("%w: bad time %q", ErrFormat, s)
		}
		for i := len(digits); i < 6; i++ {
			v *= 10
		}
		us = v
	}
	out := Time{Hours: h, Minutes: m, Seconds: sec, Microseconds: us}
	if !out.Valid() {
		return Time{}, fmt.Errorf("%w: time out of range %q", ErrFormat, s)
	}
	return out, nil
}

func parseDigits(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrFormat)
	}
	v := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: bad digits %q", ErrFormat, s)
		}
		v = v*10 + int(c-'0')
	}
	return v, nil
}
