package climo

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
)

// writeMonthlyInput builds a two-year monthly input file on a 2-cell
// latitude grid where every tasmax value is its calendar month number.
func writeMonthlyInput(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "input.nc")

	base := date(2000, 1, 1)
	var timeVals []float64
	var tasmax []float64
	for year := 2000; year <= 2001; year++ {
		for m := 1; m <= 12; m++ {
			when := date(year, time.Month(m), 15)
			timeVals = append(timeVals, when.Sub(base).Hours()/24)
			tasmax = append(tasmax, float64(m), float64(m))
		}
	}

	out, err := ncdf.CreateFile(path, ncdf.FileSpec{
		Dims:    []string{"time", "lat"},
		Lengths: []int{24, 2},
		Global: []ncdf.Attr{
			{Name: "frequency", Value: "mon"},
			{Name: "model_id", Value: "CanESM2"},
			{Name: "experiment_id", Value: "historical, rcp85"},
			{Name: "realization", Value: int64(1)},
			{Name: "initialization_method", Value: int64(2)},
			{Name: "physics_version", Value: int64(3)},
		},
		Vars: []ncdf.VarSpec{
			{
				Name: "time",
				Dims: []string{"time"},
				Fill: []float64{0},
				Attrs: []ncdf.Attr{
					{Name: "units", Value: "days since 2000-01-01"},
					{Name: "calendar", Value: "standard"},
				},
			},
			{
				Name: "lat",
				Dims: []string{"lat"},
				Fill: []float64{0},
				Attrs: []ncdf.Attr{
					{Name: "units", Value: "degrees_north"},
				},
			},
			{
				Name: "tasmax",
				Dims: []string{"time", "lat"},
				Fill: []float64{0},
				Attrs: []ncdf.Attr{
					{Name: "units", Value: "K"},
					{Name: "_FillValue", Value: float64(1e20)},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("creating input file: %v", err)
	}
	if err := out.Write("time", timeVals); err != nil {
		t.Fatalf("writing time: %v", err)
	}
	if err := out.Write("lat", []float64{45, 50}); err != nil {
		t.Fatalf("writing lat: %v", err)
	}
	if err := out.Write("tasmax", tasmax); err != nil {
		t.Fatalf("writing tasmax: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("closing input file: %v", err)
	}
	return path
}

func TestGenerate_MergedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeMonthlyInput(t, dir)

	d, err := ncdf.Open(in)
	if err != nil {
		t.Fatalf("opening input: %v", err)
	}
	defer d.Close()

	outDir := filepath.Join(dir, "out")
	paths, err := Generate(d, Options{
		Operation: OpMean,
		Start:     date(2000, 1, 1),
		End:       date(2001, 12, 31),
		OutDir:    outDir,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected one merged output file, got %v", paths)
	}
	wantName := "tasmax_msaClim_CanESM2_historical+rcp85_r1i2p3_20000101-20011231.nc"
	if filepath.Base(paths[0]) != wantName {
		t.Errorf("output name %q, want %q", filepath.Base(paths[0]), wantName)
	}

	out, err := ncdf.Open(paths[0])
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer out.Close()

	freq, err := out.Frequency()
	if err != nil || freq != MergedFrequency {
		t.Errorf("output frequency = %q, %v; want %q", freq, err, MergedFrequency)
	}
	shape, err := out.VariableShape("tasmax")
	if err != nil {
		t.Fatalf("output tasmax shape: %v", err)
	}
	if len(shape) != 2 || shape[0] != 17 || shape[1] != 2 {
		t.Fatalf("output tasmax shape = %v, want [17 2]", shape)
	}

	data, _, err := out.ReadFloat64("tasmax")
	if err != nil {
		t.Fatalf("reading output tasmax: %v", err)
	}
	// 12 monthly means, then DJF/MAM/JJA/SON, then the annual mean, each
	// over two identical cells.
	var want []float64
	for m := 1; m <= 12; m++ {
		want = append(want, float64(m), float64(m))
	}
	want = append(want, 5, 5, 4, 4, 7, 7, 10, 10, 6.5, 6.5)
	for i := range want {
		if math.Abs(data[i]-want[i]) > 1e-9 {
			t.Errorf("tasmax[%d] = %v, want %v", i, data[i], want[i])
		}
	}

	if _, err := out.GetAttribute(ncdf.Global, "climo_start_time"); err != nil {
		t.Errorf("output is missing climo_start_time: %v", err)
	}
}

func TestGenerate_ClimatologyBounds(t *testing.T) {
	dir := t.TempDir()
	in := writeMonthlyInput(t, dir)

	d, err := ncdf.Open(in)
	if err != nil {
		t.Fatalf("opening input: %v", err)
	}
	defer d.Close()

	paths, err := Generate(d, Options{
		Operation: OpMean,
		Start:     date(2000, 1, 1),
		End:       date(2001, 12, 31),
		OutDir:    filepath.Join(dir, "out"),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	out, err := ncdf.Open(paths[0])
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer out.Close()

	clim, err := out.GetAttribute(ncdf.Scope("time"), "climatology")
	if err != nil {
		t.Fatalf("time variable has no climatology attribute: %v", err)
	}
	if clim != "climatology_bnds" {
		t.Errorf("time:climatology = %v, want climatology_bnds", clim)
	}

	bounds, shape, err := out.ReadFloat64("climatology_bnds")
	if err != nil {
		t.Fatalf("reading climatology_bnds: %v", err)
	}
	if len(shape) != 2 || shape[0] != 17 || shape[1] != 2 {
		t.Fatalf("climatology_bnds shape = %v, want [17 2]", shape)
	}

	enc := func(y int, m time.Month, day int) float64 {
		return ncdf.EncodeTime(date(1850, 1, 1), 24*time.Hour, date(y, m, day))
	}
	checks := []struct {
		name string
		step int
		want [2]float64
	}{
		{"january", 0, [2]float64{enc(2000, time.January, 1), enc(2001, time.February, 1)}},
		{"december", 11, [2]float64{enc(2000, time.December, 1), enc(2002, time.January, 1)}},
		{"djf reaches preceding december", 12, [2]float64{enc(1999, time.December, 1), enc(2002, time.March, 1)}},
		{"son", 15, [2]float64{enc(2000, time.September, 1), enc(2001, time.December, 1)}},
		{"annual", 16, [2]float64{enc(2000, time.January, 1), enc(2002, time.January, 1)}},
	}
	for _, c := range checks {
		got := [2]float64{bounds[2*c.step], bounds[2*c.step+1]}
		if got != c.want {
			t.Errorf("%s: bounds = %v, want %v", c.name, got, c.want)
		}
	}

	deps := out.DependentVariables()
	if len(deps) != 1 || deps[0] != "tasmax" {
		t.Errorf("bounds variable must not count as dependent: %v", deps)
	}
}

func TestGenerate_SplitIntervals(t *testing.T) {
	dir := t.TempDir()
	in := writeMonthlyInput(t, dir)

	d, err := ncdf.Open(in)
	if err != nil {
		t.Fatalf("opening input: %v", err)
	}
	defer d.Close()

	paths, err := Generate(d, Options{
		Operation:      OpMean,
		Start:          date(2000, 1, 1),
		End:            date(2001, 12, 31),
		OutDir:         filepath.Join(dir, "out"),
		SplitIntervals: true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected one file per interval, got %v", paths)
	}

	wantSteps := map[string]int{"mClim": 12, "sClim": 4, "aClim": 1}
	for _, p := range paths {
		out, err := ncdf.Open(p)
		if err != nil {
			t.Fatalf("opening %s: %v", p, err)
		}
		freq, err := out.Frequency()
		if err != nil {
			t.Fatalf("%s frequency: %v", p, err)
		}
		shape, err := out.VariableShape("time")
		if err != nil {
			t.Fatalf("%s time shape: %v", p, err)
		}
		if shape[0] != wantSteps[freq] {
			t.Errorf("%s: %d timesteps, want %d for %s", filepath.Base(p), shape[0], wantSteps[freq], freq)
		}
		out.Close()
	}
}

func TestGenerate_RejectsClimatologyInput(t *testing.T) {
	dir := t.TempDir()
	in := writeMonthlyInput(t, dir)

	d, err := ncdf.Open(in)
	if err != nil {
		t.Fatalf("opening input: %v", err)
	}
	defer d.Close()
	if err := d.SetAttribute(ncdf.Global, "frequency", MergedFrequency); err != nil {
		t.Fatalf("setting frequency: %v", err)
	}

	_, err = Generate(d, Options{
		Operation: OpMean,
		Start:     date(2000, 1, 1),
		End:       date(2001, 12, 31),
		OutDir:    dir,
	}, zerolog.Nop())
	if err == nil {
		t.Fatal("climatology input must be rejected")
	}
}

func TestSplitMerged_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeMonthlyInput(t, dir)

	d, err := ncdf.Open(in)
	if err != nil {
		t.Fatalf("opening input: %v", err)
	}
	defer d.Close()

	merged, err := Generate(d, Options{
		Operation: OpMean,
		Start:     date(2000, 1, 1),
		End:       date(2001, 12, 31),
		OutDir:    filepath.Join(dir, "merged"),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	md, err := ncdf.Open(merged[0])
	if err != nil {
		t.Fatalf("opening merged file: %v", err)
	}
	defer md.Close()

	splitDir := filepath.Join(dir, "split")
	paths, err := SplitMerged(md, splitDir, zerolog.Nop())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected three split files, got %v", paths)
	}

	wantFreqs := []string{"mClim", "sClim", "aClim"}
	wantSteps := []int{12, 4, 1}
	for i, p := range paths {
		out, err := ncdf.Open(p)
		if err != nil {
			t.Fatalf("opening %s: %v", p, err)
		}
		freq, err := out.Frequency()
		if err != nil || freq != wantFreqs[i] {
			t.Errorf("%s frequency = %q, %v; want %q", filepath.Base(p), freq, err, wantFreqs[i])
		}
		shape, err := out.VariableShape("tasmax")
		if err != nil {
			t.Fatalf("%s tasmax shape: %v", p, err)
		}
		if shape[0] != wantSteps[i] {
			t.Errorf("%s: %d timesteps, want %d", filepath.Base(p), shape[0], wantSteps[i])
		}
		out.Close()
	}

	// The monthly split file's data must match the merged file's first
	// 12 timesteps.
	mData, _, err := md.ReadFloat64("tasmax")
	if err != nil {
		t.Fatalf("reading merged tasmax: %v", err)
	}
	mono, err := ncdf.Open(paths[0])
	if err != nil {
		t.Fatalf("opening monthly split: %v", err)
	}
	defer mono.Close()
	sData, _, err := mono.ReadFloat64("tasmax")
	if err != nil {
		t.Fatalf("reading split tasmax: %v", err)
	}
	if len(sData) != 24 {
		t.Fatalf("monthly split holds %d values, want 24", len(sData))
	}
	for i := range sData {
		if sData[i] != mData[i] {
			t.Errorf("split[%d] = %v, merged[%d] = %v", i, sData[i], i, mData[i])
		}
	}
}
