/*
Package jalali implements the administrative (solar-hijri) calendar used
for all policy and installment dates.

PURPOSE:
  Business dates in this system are Jalali `YYYY/MM/DD` strings. Storage
  and business rules stay in the administrative calendar; conversion to
  Gregorian time.Time happens only where a date must be ordered against
  "now" (overdue / near-expiry checks). Arithmetic (month addition) is
  always done on the administrative representation, never on time.Time.

KEY CONCEPTS:
  - Date: a Jalali calendar day (1-indexed month and day)
  - AddMonths: calendar-aware month addition with end-of-month clamping
  - Time: conversion to a Gregorian instant at local midnight
  - NormalizeEra: explicit correction for legacy two-digit-shifted years

CONVERSION:
  The Gregorian round-trip uses the well-known break-point algorithm
  (the same integer arithmetic the legacy system relied on). The
  constants must not be "simplified": month lengths and leap years have
  to match the data already in storage.

SEE ALSO:
  - engine: consumes Date for schedule building and status derivation
*/
package jalali

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a date string cannot be parsed.
// Callers can test with errors.Is.
var ErrInvalidDate = errors.New("invalid administrative date")

// Era correction for legacy malformed data: years recorded below the
// cutoff are assumed to be missing the era offset (e.g. "782" for 1402).
// This is a data-repair heuristic, not a calendar rule, so it lives in
// an explicit step (NormalizeEra) rather than inside Parse or Time.
const (
	eraCutoff = 1300
	eraOffset = 620
)

// =============================================================================
// DATE - A day on the administrative calendar
// =============================================================================

// Date is a Jalali calendar day. Month and Day are 1-indexed.
type Date struct {
	Year  int
	Month int
	Day   int
}

// Parse parses a `YYYY/MM/DD` administrative date string.
// Components must be numeric and positive; no era correction is applied
// here (see NormalizeEra).
func Parse(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}
	return Date{Year: nums[0], Month: nums[1], Day: nums[2]}, nil
}

// String formats the date as `YYYY/MM/DD` with zero-padded month and day.
func (d Date) String() string {
	return fmt.Sprintf("%d/%02d/%02d", d.Year, d.Month, d.Day)
}

// NormalizeEra shifts years below the era cutoff by the era offset.
// Applied on schedule-building paths where legacy start dates flow in;
// read-time status checks intentionally skip it.
func (d Date) NormalizeEra() Date {
	if d.Year < eraCutoff {
		d.Year += eraOffset
	}
	return d
}

// AddMonths adds n months (n >= 0), advancing the year on overflow and
// clamping the day to the length of the resulting month.
func (d Date) AddMonths(n int) Date {
	month := d.Month + n
	year := d.Year
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}
	day := d.Day
	if max := MonthLength(year, month); day > max {
		day = max
	}
	return Date{Year: year, Month: month, Day: day}
}

// AddYears adds n years without clamping the day. The legacy system
// computed default policy end dates this way, so it is preserved even
// though year+1 of Esfand 30 can name a non-existent day.
func (d Date) AddYears(n int) Date {
	return Date{Year: d.Year + n, Month: d.Month, Day: d.Day}
}

// Comparison (componentwise, day granularity).
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) Equal(o Date) bool { return d == o }
func (d Date) After(o Date) bool { return o.Before(d) }

// Time converts the date to a Gregorian instant at local midnight.
// Used only for ordering against "now", never for arithmetic.
func (d Date) Time() time.Time {
	gy, gm, gd := toGregorian(d.Year, d.Month, d.Day)
	return time.Date(gy, time.Month(gm), gd, 0, 0, 0, 0, time.Local)
}

// FromTime converts a Gregorian instant to the administrative date of
// its (local) calendar day.
func FromTime(t time.Time) Date {
	jy, jm, jd := toJalali(t.Year(), int(t.Month()), t.Day())
	return Date{Year: jy, Month: jm, Day: jd}
}

// Today returns the current administrative date.
func Today() Date { return FromTime(time.Now()) }

// MonthLength returns the number of days in the given month.
// Months 1-6 have 31 days, 7-11 have 30, and Esfand has 30 in leap
// years and 29 otherwise.
func MonthLength(year, month int) int {
	if month <= 6 {
		return 31
	}
	if month <= 11 {
		return 30
	}
	if IsLeapYear(year) {
		return 30
	}
	return 29
}

// IsLeapYear reports whether the given Jalali year is a leap year.
func IsLeapYear(year int) bool {
	leap, _, _ := jalCal(year)
	return leap == 0
}

// =============================================================================
// CONVERSION INTERNALS - break-point algorithm
// =============================================================================
// Ported from the reference integer-arithmetic implementation. Division
// truncates toward zero, matching the reference exactly.

var breaks = []int{
	-61, 9, 38, 199, 426, 686, 756, 818, 1111, 1181, 1210,
	1635, 2060, 2097, 2192, 2262, 2324, 2394, 2456, 3178,
}

func div(a, b int) int { return a / b }
func mod(a, b int) int { return a % b }

// jalCal determines leap-ness of a Jalali year plus the Gregorian year
// and March day of the corresponding Nowruz.
func jalCal(jy int) (leap, gy, march int) {
	gy = jy + 621
	leapJ := -14
	jp := breaks[0]
	var jump int
	for i := 1; i < len(breaks); i++ {
		jm := breaks[i]
		jump = jm - jp
		if jy < jm {
			break
		}
		leapJ += div(jump, 33)*8 + div(mod(jump, 33), 4)
		jp = jm
	}
	n := jy - jp

	leapJ += div(n, 33)*8 + div(mod(n, 33)+3, 4)
	if mod(jump, 33) == 4 && jump-n == 4 {
		leapJ++
	}

	leapG := div(gy, 4) - div((div(gy, 100)+1)*3, 4) - 150
	march = 20 + leapJ - leapG

	if jump-n < 6 {
		n = n - jump + div(jump+4, 33)*33
	}
	leap = mod(mod(n+1, 33)-1, 4)
	if leap == -1 {
		leap = 4
	}
	return leap, gy, march
}

// jalaliToJDN converts a Jalali date to its Julian Day Number.
func jalaliToJDN(jy, jm, jd int) int {
	_, gy, march := jalCal(jy)
	return gregorianToJDN(gy, 3, march) + (jm-1)*31 - div(jm, 7)*(jm-7) + jd - 1
}

// jdnToJalali converts a Julian Day Number to a Jalali date.
func jdnToJalali(jdn int) (jy, jm, jd int) {
	gy, _, _ := jdnToGregorian(jdn)
	jy = gy - 621
	leap, _, march := jalCal(jy)
	jdn1f := gregorianToJDN(gy, 3, march)

	k := jdn - jdn1f
	if k >= 0 {
		if k <= 185 {
			jm = 1 + div(k, 31)
			jd = mod(k, 31) + 1
			return jy, jm, jd
		}
		k -= 186
	} else {
		jy--
		k += 179
		if leap == 1 {
			k++
		}
	}
	jm = 7 + div(k, 30)
	jd = mod(k, 30) + 1
	return jy, jm, jd
}

func gregorianToJDN(gy, gm, gd int) int {
	d := div((gy+div(gm-8, 6)+100100)*1461, 4) +
		div(153*mod(gm+9, 12)+2, 5) +
		gd - 34840408
	return d - div(div(gy+100100+div(gm-8, 6), 100)*3, 4) + 752
}

func jdnToGregorian(jdn int) (gy, gm, gd int) {
	j := 4*jdn + 139361631
	j = j + div(div(4*jdn+183187720, 146097)*3, 4)*4 - 3908
	i := div(mod(j, 1461), 4)*5 + 308
	gd = div(mod(i, 153), 5) + 1
	gm = mod(div(i, 153), 12) + 1
	gy = div(j, 1461) - 100100 + div(8-gm, 6)
	return gy, gm, gd
}

func toGregorian(jy, jm, jd int) (gy, gm, gd int) {
	return jdnToGregorian(jalaliToJDN(jy, jm, jd))
}

func toJalali(gy, gm, gd int) (jy, jm, jd int) {
	return jdnToJalali(gregorianToJDN(gy, gm, gd))
}
