package ncdf

import (
	"fmt"
	"math"
	"regexp"
	"time"
)

// timeUnitsPattern matches CF time coordinate units such as
// "days since 1950-01-01" or "hours since 1950-1-1 00:00:00".
var timeUnitsPattern = regexp.MustCompile(
	`^\s*(seconds|minutes|hours|days)\s+since\s+(\d{1,4})-(\d{1,2})-(\d{1,2})(?:[ T](\d{1,2}):(\d{1,2})(?::(\d{1,2}))?)?`)

// ParseTimeUnits parses a CF "<interval> since <datetime>" units string
// into a base time and the duration of one coordinate unit. The standard
// (proleptic Gregorian) calendar is assumed.
func ParseTimeUnits(units string) (time.Time, time.Duration, error) {
	m := timeUnitsPattern.FindStringSubmatch(units)
	if m == nil {
		return time.Time{}, 0, fmt.Errorf("cannot parse time units %q", units)
	}
	var step time.Duration
	switch m[1] {
	case "seconds":
		step = time.Second
	case "minutes":
		step = time.Minute
	case "hours":
		step = time.Hour
	case "days":
		step = 24 * time.Hour
	}
	atoi := func(s string) int {
		n := 0
		for _, c := range s {
			n = n*10 + int(c-'0')
		}
		return n
	}
	hour, minute, sec := 0, 0, 0
	if m[5] != "" {
		hour = atoi(m[5])
		minute = atoi(m[6])
	}
	if m[7] != "" {
		sec = atoi(m[7])
	}
	base := time.Date(atoi(m[2]), time.Month(atoi(m[3])), atoi(m[4]),
		hour, minute, sec, 0, time.UTC)
	return base, step, nil
}

// DecodeTime converts one time coordinate value into an absolute time.
// The offset is split into whole days plus a sub-day remainder; a single
// Duration covers only about 292 years, which common bases such as
// "days since 1850-01-01" exceed well within CMIP projection ranges.
func DecodeTime(base time.Time, step time.Duration, v float64) time.Time {
	seconds := v * step.Seconds()
	days := math.Floor(seconds / 86400)
	rem := seconds - days*86400
	return base.AddDate(0, 0, int(days)).Add(time.Duration(rem * float64(time.Second)))
}

// EncodeTime is the inverse of DecodeTime: the offset of t from base in
// units of step.
func EncodeTime(base time.Time, step time.Duration, t time.Time) float64 {
	return float64(t.Unix()-base.Unix()) / step.Seconds()
}

// ReadTimes decodes the dataset's "time" coordinate variable into absolute
// times using its units attribute.
func (d *Dataset) ReadTimes() ([]time.Time, error) {
	unitsAttr, err := d.GetAttribute(Scope("time"), "units")
	if err != nil {
		return nil, fmt.Errorf("time variable has no units: %w", err)
	}
	units, ok := unitsAttr.(string)
	if !ok {
		return nil, fmt.Errorf("time units attribute is %T, not a string", unitsAttr)
	}
	base, step, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	values, _, err := d.ReadFloat64("time")
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(values))
	for i, v := range values {
		times[i] = DecodeTime(base, step, v)
	}
	return times, nil
}

// TimeRange returns the first and last times of the dataset's time
// coordinate.
func (d *Dataset) TimeRange() (time.Time, time.Time, error) {
	times, err := d.ReadTimes()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if len(times) == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("time coordinate is empty")
	}
	return times[0], times[len(times)-1], nil
}
