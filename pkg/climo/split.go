package climo

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
)

// segment is one averaging-interval slice of a merged climatology file.
type segment struct {
	frequency string
	steps     int
}

// segmentsFor returns the interval segments contained in a merged file of
// the given frequency, in time-axis order.
func segmentsFor(frequency string) ([]segment, error) {
	switch frequency {
	case MergedFrequency: // monthly + seasonal + annual
		return []segment{{"mClim", 12}, {"sClim", 4}, {"aClim", 1}}, nil
	case "saClim": // seasonal + annual
		return []segment{{"sClim", 4}, {"aClim", 1}}, nil
	}
	return nil, fmt.Errorf("frequency %q is not a merged climatology", frequency)
}

// SplitMerged splits a merged multi-interval climatology file into one
// file per averaging interval, written under outdir with CMOR filenames.
// It returns the paths written. The input file is not modified.
func SplitMerged(d *ncdf.Dataset, outdir string, log zerolog.Logger) ([]string, error) {
	frequency, err := d.Frequency()
	if err != nil {
		return nil, fmt.Errorf("input file has no frequency attribute: %w", err)
	}
	if !strings.HasSuffix(frequency, "Clim") {
		return nil, fmt.Errorf("input file is not a multi-year mean (frequency %q)", frequency)
	}
	segments, err := segmentsFor(frequency)
	if err != nil {
		return nil, err
	}

	times, err := d.ReadTimes()
	if err != nil {
		return nil, err
	}
	total := 0
	for _, seg := range segments {
		total += seg.steps
	}
	if len(times) != total {
		return nil, fmt.Errorf("expected %d timesteps for frequency %q, found %d",
			total, frequency, len(times))
	}

	var outputs []string
	start := 0
	for _, seg := range segments {
		log.Info().Str("frequency", seg.frequency).Msg("splitting averaging interval")
		path, err := writeSegment(d, seg, start, times[start:start+seg.steps], outdir)
		if err != nil {
			return outputs, err
		}
		log.Info().Str("path", path).Msg("wrote split file")
		outputs = append(outputs, path)
		start += seg.steps
	}
	return outputs, nil
}

func writeSegment(d *ncdf.Dataset, seg segment, offset int, segTimes []time.Time, outdir string) (string, error) {
	deps := d.DependentVariables()
	if len(deps) == 0 {
		return "", fmt.Errorf("input file has no dependent variables")
	}

	global, err := d.ListAttributes(ncdf.Global)
	if err != nil {
		return "", err
	}
	globalAttrs := ncdf.SetAttr(ncdf.OrderedAttrs(global), "frequency", seg.frequency)

	// Dimensions: time shrinks to the segment; everything else carries over.
	var dims []string
	var lengths []int
	seen := map[string]bool{}
	addDim := func(name string, length int) {
		if seen[name] {
			return
		}
		seen[name] = true
		dims = append(dims, name)
		lengths = append(lengths, length)
	}
	addDim("time", seg.steps)
	for _, v := range d.ListVariables() {
		vdims, err := d.VariableDimensions(v)
		if err != nil {
			return "", err
		}
		shape, err := d.VariableShape(v)
		if err != nil {
			return "", err
		}
		for i, dim := range vdims {
			addDim(dim, shape[i])
		}
	}

	var vars []ncdf.VarSpec
	for _, v := range d.ListVariables() {
		attrs, err := d.ListAttributes(ncdf.Scope(v))
		if err != nil {
			return "", err
		}
		vdims, err := d.VariableDimensions(v)
		if err != nil {
			return "", err
		}
		template, err := d.VariableTemplate(v)
		if err != nil {
			return "", err
		}
		vars = append(vars, ncdf.VarSpec{
			Name:  v,
			Dims:  vdims,
			Fill:  template,
			Attrs: ncdf.OrderedAttrs(attrs),
		})
	}

	tStart, tEnd := segTimes[0], segTimes[len(segTimes)-1]
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
	name := ncdf.CmorName(deps[0], seg.frequency, model, experiment, ensemble, tStart, tEnd)
	path := filepath.Join(outdir, name)

	out, err := ncdf.CreateFile(path, ncdf.FileSpec{
		Dims:    dims,
		Lengths: lengths,
		Global:  globalAttrs,
		Vars:    vars,
	})
	if err != nil {
		return "", err
	}
	defer out.Close()

	for _, v := range d.ListVariables() {
		vdims, err := d.VariableDimensions(v)
		if err != nil {
			return "", err
		}
		raw, err := d.ReadRaw(v)
		if err != nil {
			return "", err
		}
		if len(vdims) > 0 && vdims[0] == "time" {
			shape, err := d.VariableShape(v)
			if err != nil {
				return "", err
			}
			stride := 1
			for _, l := range shape[1:] {
				stride *= l
			}
			raw = sliceRaw(raw, offset*stride, (offset+seg.steps)*stride)
		}
		if err := out.Write(v, raw); err != nil {
			return "", err
		}
	}
	return path, nil
}

// sliceRaw slices a typed data slice without losing its type.
func sliceRaw(raw interface{}, from, to int) interface{} {
	switch data := raw.(type) {
	case []float64:
		return data[from:to]
	case []float32:
		return data[from:to]
	case []int32:
		return data[from:to]
	case []int16:
		return data[from:to]
	case []int8:
		return data[from:to]
	}
	return raw
}
