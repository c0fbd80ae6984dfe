package climo

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
)

// Options controls climatology generation.
type Options struct {
	// Operation is the statistic to compute (mean, std, min, max).
	Operation Operation

	// Start and End bound the climatological period, inclusive.
	Start time.Time
	End   time.Time

	// OutDir is the directory output files are written under.
	OutDir string

	// SplitIntervals produces one file per averaging interval when true;
	// otherwise one merged msaClim file per variable.
	SplitIntervals bool
}

// timeEncodingBase is the epoch used for output time coordinates.
var timeEncodingBase = time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC)

const timeEncodingUnits = "days since 1850-01-01"

// Generate computes climatological aggregates for every dependent variable
// of the input dataset and writes one output file per variable per
// averaging interval (or one merged file per variable). It returns the
// paths written. The input file is not modified.
func Generate(d *ncdf.Dataset, opts Options, log zerolog.Logger) ([]string, error) {
	if !opts.Operation.Valid() {
		return nil, fmt.Errorf("unsupported operation %q", opts.Operation)
	}
	if freq, err := d.Frequency(); err == nil && strings.HasSuffix(freq, "Clim") {
		return nil, fmt.Errorf("input file already contains climatologies (frequency %q)", freq)
	}

	times, err := d.ReadTimes()
	if err != nil {
		return nil, err
	}
	var sel []int
	var selTimes []time.Time
	for i, when := range times {
		if !when.Before(opts.Start) && !when.After(opts.End) {
			sel = append(sel, i)
			selTimes = append(selTimes, when)
		}
	}
	if len(sel) == 0 {
		return nil, fmt.Errorf("no timesteps fall within %s to %s",
			opts.Start.Format("2006-01-02"), opts.End.Format("2006-01-02"))
	}
	resolution, err := InferResolution(selTimes)
	if err != nil {
		return nil, err
	}
	intervals := resolution.Intervals()
	log.Info().
		Str("resolution", string(resolution)).
		Int("timesteps", len(sel)).
		Str("operation", string(opts.Operation)).
		Msg("forming climatologies")

	var outputs []string
	for _, variable := range d.DependentVariables() {
		results, err := aggregateVariable(d, variable, opts, sel, selTimes, intervals)
		if err != nil {
			return outputs, fmt.Errorf("variable %q: %w", variable, err)
		}
		paths, err := writeOutputs(d, variable, opts, results, log)
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, paths...)
	}
	return outputs, nil
}

// intervalResult is the aggregate of one variable over one interval.
type intervalResult struct {
	interval Interval
	data     []float64
	times    []time.Time
	bounds   []time.Time
}

func aggregateVariable(d *ncdf.Dataset, variable string, opts Options,
	sel []int, selTimes []time.Time, intervals []Interval) ([]intervalResult, error) {

	dims, err := d.VariableDimensions(variable)
	if err != nil {
		return nil, err
	}
	if len(dims) == 0 || dims[0] != "time" {
		return nil, fmt.Errorf("leading dimension is %v, not time", dims)
	}
	data, shape, err := d.ReadFloat64(variable)
	if err != nil {
		return nil, err
	}
	cellCount := 1
	for _, l := range shape[1:] {
		cellCount *= l
	}

	// Subset the leading time axis to the climatological period.
	subset := make([]float64, len(sel)*cellCount)
	for i, t := range sel {
		copy(subset[i*cellCount:(i+1)*cellCount], data[t*cellCount:(t+1)*cellCount])
	}
	fill, hasFill := d.FillValue(variable)

	results := make([]intervalResult, 0, len(intervals))
	for _, iv := range intervals {
		agg, err := aggregate(opts.Operation, iv, subset, selTimes, cellCount, fill, hasFill)
		if err != nil {
			return nil, err
		}
		results = append(results, intervalResult{
			interval: iv,
			data:     agg,
			times:    climoTimes(iv, opts.Start, opts.End),
			bounds:   climoBounds(iv, opts.Start, opts.End),
		})
	}
	return results, nil
}

func writeOutputs(d *ncdf.Dataset, variable string, opts Options,
	results []intervalResult, log zerolog.Logger) ([]string, error) {

	if opts.SplitIntervals {
		var paths []string
		for _, res := range results {
			p, err := writeClimoFile(d, variable, opts, res.interval.Frequency(),
				res.data, res.times, res.bounds, log)
			if err != nil {
				return paths, err
			}
			paths = append(paths, p)
		}
		return paths, nil
	}

	// Merge intervals along the time axis: monthly, seasonal, annual.
	frequency := MergedFrequency
	if len(results) == 1 {
		frequency = results[0].interval.Frequency()
	}
	var data []float64
	var times, bounds []time.Time
	for _, res := range results {
		data = append(data, res.data...)
		times = append(times, res.times...)
		bounds = append(bounds, res.bounds...)
	}
	p, err := writeClimoFile(d, variable, opts, frequency, data, times, bounds, log)
	if err != nil {
		return nil, err
	}
	return []string{p}, nil
}

func writeClimoFile(d *ncdf.Dataset, variable string, opts Options,
	frequency string, data []float64, times, bounds []time.Time, log zerolog.Logger) (string, error) {

	srcDims, err := d.VariableDimensions(variable)
	if err != nil {
		return "", err
	}
	spatialDims := srcDims[1:]

	dims := []string{"time"}
	lengths := []int{len(times)}
	srcShape, err := d.VariableShape(variable)
	if err != nil {
		return "", err
	}
	dims = append(dims, spatialDims...)
	lengths = append(lengths, srcShape[1:]...)
	fileDims := append(append([]string{}, dims...), "bnds")
	fileLengths := append(append([]int{}, lengths...), 2)

	global, err := d.ListAttributes(ncdf.Global)
	if err != nil {
		return "", err
	}
	globalAttrs := ncdf.OrderedAttrs(global)
	globalAttrs = ncdf.SetAttr(globalAttrs, "frequency", frequency)
	globalAttrs = ncdf.SetAttr(globalAttrs, "climo_start_time", opts.Start.Format(time.RFC3339))
	globalAttrs = ncdf.SetAttr(globalAttrs, "climo_end_time", opts.End.Format(time.RFC3339))

	vars := []ncdf.VarSpec{
		{
			Name: "time",
			Dims: []string{"time"},
			Fill: []float64{0},
			Attrs: []ncdf.Attr{
				{Name: "units", Value: timeEncodingUnits},
				{Name: "calendar", Value: "standard"},
				{Name: "climatology", Value: "climatology_bnds"},
			},
		},
		{
			Name: "climatology_bnds",
			Dims: []string{"time", "bnds"},
			Fill: []float64{0},
			Attrs: []ncdf.Attr{
				{Name: "units", Value: timeEncodingUnits},
				{Name: "calendar", Value: "standard"},
			},
		},
	}
	// Carry the spatial coordinate variables over.
	variables := make(map[string]bool)
	for _, v := range d.ListVariables() {
		variables[v] = true
	}
	for _, dim := range spatialDims {
		if !variables[dim] {
			continue
		}
		attrs, err := d.ListAttributes(ncdf.Scope(dim))
		if err != nil {
			return "", err
		}
		vars = append(vars, ncdf.VarSpec{
			Name:  dim,
			Dims:  []string{dim},
			Fill:  []float64{0},
			Attrs: ncdf.OrderedAttrs(attrs),
		})
	}
	varAttrs, err := d.ListAttributes(ncdf.Scope(variable))
	if err != nil {
		return "", err
	}
	vars = append(vars, ncdf.VarSpec{
		Name:  variable,
		Dims:  dims,
		Fill:  []float64{0},
		Attrs: ncdf.OrderedAttrs(varAttrs),
	})

	name, err := outputName(d, variable, frequency, opts.Start, opts.End)
	if err != nil {
		return "", err
	}
	path := filepath.Join(opts.OutDir, name)
	out, err := ncdf.CreateFile(path, ncdf.FileSpec{
		Dims:    fileDims,
		Lengths: fileLengths,
		Global:  globalAttrs,
		Vars:    vars,
	})
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := out.Write("time", encodeTimes(times)); err != nil {
		return "", err
	}
	if err := out.Write("climatology_bnds", encodeTimes(bounds)); err != nil {
		return "", err
	}
	for _, dim := range spatialDims {
		if !variables[dim] {
			continue
		}
		coord, _, err := d.ReadFloat64(dim)
		if err != nil {
			return "", err
		}
		if err := out.Write(dim, coord); err != nil {
			return "", err
		}
	}
	if err := out.Write(variable, data); err != nil {
		return "", err
	}
	log.Info().Str("path", path).Str("frequency", frequency).Msg("wrote climatology file")
	return path, nil
}

func encodeTimes(times []time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = ncdf.EncodeTime(timeEncodingBase, 24*time.Hour, t)
	}
	return out
}

func outputName(d *ncdf.Dataset, variable, frequency string, start, end time.Time) (string, error) {
	model, err := globalString(d, "model_id")
	if err != nil {
		return "", err
	}
	experiment, err := globalString(d, "experiment_id")
	if err != nil {
		return "", err
	}
	ensemble, err := d.EnsembleMember()
	if err != nil {
		return "", err
	}
	return ncdf.CmorName(variable, frequency, model, experiment, ensemble, start, end), nil
}

func globalString(d *ncdf.Dataset, name string) (string, error) {
	v, err := d.GetAttribute(ncdf.Global, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("global attribute %q is %T, not a string", name, v)
	}
	return s, nil
}

