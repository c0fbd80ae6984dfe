package climo

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Operation selects the statistic computed over each climatological bucket.
type Operation string

const (
	OpMean Operation = "mean"
	OpStd  Operation = "std"
	OpMin  Operation = "min"
	OpMax  Operation = "max"
)

// Valid reports whether the operation is one of the supported statistics.
func (op Operation) Valid() bool {
	switch op {
	case OpMean, OpStd, OpMin, OpMax:
		return true
	}
	return false
}

// Interval is one climatological averaging interval.
type Interval string

const (
	Monthly  Interval = "monthly"
	Seasonal Interval = "seasonal"
	Annual   Interval = "annual"
)

// Frequency returns the CMOR frequency code for climatologies of this
// interval.
func (iv Interval) Frequency() string {
	switch iv {
	case Monthly:
		return "mClim"
	case Seasonal:
		return "sClim"
	case Annual:
		return "aClim"
	}
	return ""
}

// Steps returns the number of output timesteps the interval produces.
func (iv Interval) Steps() int {
	switch iv {
	case Monthly:
		return 12
	case Seasonal:
		return 4
	case Annual:
		return 1
	}
	return 0
}

// MergedFrequency is the frequency code of a file holding monthly,
// seasonal, and annual climatologies concatenated in that order.
const MergedFrequency = "msaClim"

// Resolution is the time resolution of an input file.
type Resolution string

const (
	Daily      Resolution = "daily"
	MonthlyRes Resolution = "monthly"
	Yearly     Resolution = "yearly"
)

// InferResolution classifies the input's time resolution from the median
// spacing of its time coordinate.
func InferResolution(times []time.Time) (Resolution, error) {
	if len(times) < 2 {
		return "", fmt.Errorf("need at least two timesteps to infer resolution, have %d", len(times))
	}
	deltas := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		deltas[i-1] = times[i].Sub(times[i-1]).Hours() / 24
	}
	sort.Float64s(deltas)
	median := deltas[len(deltas)/2]
	switch {
	case median <= 1.5:
		return Daily, nil
	case median <= 45:
		return MonthlyRes, nil
	case median <= 550:
		return Yearly, nil
	}
	return "", fmt.Errorf("cannot classify time resolution (median step %.1f days)", median)
}

// Intervals returns the averaging intervals that can be formed from input
// of this resolution.
func (r Resolution) Intervals() []Interval {
	switch r {
	case Daily, MonthlyRes:
		return []Interval{Monthly, Seasonal, Annual}
	case Yearly:
		return []Interval{Annual}
	}
	return nil
}

// bucketIndex maps a timestep's month onto the interval's output bucket.
func bucketIndex(iv Interval, month time.Month) int {
	switch iv {
	case Monthly:
		return int(month) - 1
	case Seasonal:
		// DJF, MAM, JJA, SON.
		return int(month) % 12 / 3
	case Annual:
		return 0
	}
	return 0
}

// aggregate computes the per-bucket statistic of data over the leading
// time axis. data holds nt timesteps of cellCount cells each; times
// parallels the time axis. Cells equal to fill (when hasFill) or NaN are
// excluded; buckets with no valid samples produce fill.
func aggregate(op Operation, iv Interval, data []float64, times []time.Time,
	cellCount int, fill float64, hasFill bool) ([]float64, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("unsupported operation %q", op)
	}
	nb := iv.Steps()
	sum := make([]float64, nb*cellCount)
	sumSq := make([]float64, nb*cellCount)
	minv := make([]float64, nb*cellCount)
	maxv := make([]float64, nb*cellCount)
	count := make([]int, nb*cellCount)

	for t, when := range times {
		b := bucketIndex(iv, when.Month())
		for c := 0; c < cellCount; c++ {
			v := data[t*cellCount+c]
			if math.IsNaN(v) || (hasFill && v == fill) {
				continue
			}
			i := b*cellCount + c
			if count[i] == 0 {
				minv[i], maxv[i] = v, v
			} else {
				if v < minv[i] {
					minv[i] = v
				}
				if v > maxv[i] {
					maxv[i] = v
				}
			}
			sum[i] += v
			sumSq[i] += v * v
			count[i]++
		}
	}

	out := make([]float64, nb*cellCount)
	for i := range out {
		if count[i] == 0 {
			if hasFill {
				out[i] = fill
			} else {
				out[i] = math.NaN()
			}
			continue
		}
		n := float64(count[i])
		switch op {
		case OpMean:
			out[i] = sum[i] / n
		case OpStd:
			mean := sum[i] / n
			variance := sumSq[i]/n - mean*mean
			if variance < 0 {
				variance = 0
			}
			out[i] = math.Sqrt(variance)
		case OpMin:
			out[i] = minv[i]
		case OpMax:
			out[i] = maxv[i]
		}
	}
	return out, nil
}

// climoTimes returns the nominal mid-interval time coordinate for a
// climatological period, placed in the period's middle year.
func climoTimes(iv Interval, start, end time.Time) []time.Time {
	midYear := (start.Year() + end.Year() + 1) / 2
	switch iv {
	case Monthly:
		out := make([]time.Time, 12)
		for m := 1; m <= 12; m++ {
			out[m-1] = time.Date(midYear, time.Month(m), 15, 0, 0, 0, 0, time.UTC)
		}
		return out
	case Seasonal:
		out := make([]time.Time, 4)
		for i, m := range []time.Month{time.January, time.April, time.July, time.October} {
			out[i] = time.Date(midYear, m, 16, 0, 0, 0, 0, time.UTC)
		}
		return out
	case Annual:
		return []time.Time{time.Date(midYear, time.July, 2, 0, 0, 0, 0, time.UTC)}
	}
	return nil
}

// climoBounds returns the climatological bounds for each of the interval's
// output timesteps, flattened as [start, end) pairs. Monthly bounds span
// the named month from the period's first year through its last; seasonal
// bounds extend one month before and two months after the season's center
// month, so DJF reaches back into the December preceding the period.
func climoBounds(iv Interval, start, end time.Time) []time.Time {
	sy, ey := start.Year(), end.Year()
	monthStart := func(year int, m time.Month) time.Time {
		return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	}
	var out []time.Time
	switch iv {
	case Monthly:
		for m := time.January; m <= time.December; m++ {
			out = append(out, monthStart(sy, m), monthStart(ey, m).AddDate(0, 1, 0))
		}
	case Seasonal:
		for _, m := range []time.Month{time.January, time.April, time.July, time.October} {
			out = append(out, monthStart(sy, m).AddDate(0, -1, 0), monthStart(ey, m).AddDate(0, 2, 0))
		}
	case Annual:
		out = append(out, monthStart(sy, time.January), monthStart(ey+1, time.January))
	}
	return out
}
