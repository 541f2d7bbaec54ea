// Package fiscal implements the company fiscal calendar: a fiscal year
// begins on the first Monday on or after February 1. All arithmetic is
// on the proleptic Gregorian calendar in UTC.
package fiscal

import "time"

// YearStart returns the first Monday on or after February 1 of year.
func YearStart(year int) time.Time {
	feb := time.Date(year, time.February, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Monday) - int(feb.Weekday()) + 7) % 7
	return feb.AddDate(0, 0, offset)
}

// Quarter returns the fiscal quarter (1..4) containing date. A date
// before its calendar year's fiscal start belongs to the previous
// fiscal year and is reported as quarter 4; there is no further
// look-back, so dates more than a year old still fold into quarter 4.
func Quarter(date time.Time) int {
	start := YearStart(date.Year())
	if date.Before(start) {
		return 4
	}
	return monthsBetween(start, date)/3 + 1
}

// Year returns the fiscal year containing date.
func Year(date time.Time) int {
	y := date.Year()
	if date.Before(YearStart(y)) {
		return y - 1
	}
	return y
}

// MonthBucket truncates date to its year+month, the grouping key for
// month aggregation.
func MonthBucket(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthName is the short display name of a bucket date.
func MonthName(date time.Time) string {
	return date.Format("Jan")
}

// monthsBetween counts whole calendar months from a to b.
func monthsBetween(a, b time.Time) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
