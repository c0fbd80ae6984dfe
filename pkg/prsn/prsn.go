package prsn

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
)

// freezingKelvin is the freezing point used when temperatures are in K;
// Celsius inputs freeze at 0.
const freezingKelvin = 273.15

// chunkSize is the number of timesteps processed per read. Inputs can be
// far larger than memory, so the time axis is walked in slabs.
const chunkSize = 100

// PreprocessError reports input files that cannot be combined into a
// snowfall product.
type PreprocessError struct {
	Message string
}

// Error implements the error interface.
func (e *PreprocessError) Error() string {
	return "pre-process checks failed: " + e.Message
}

// Is reports whether target is a PreprocessError.
func (e *PreprocessError) Is(target error) bool {
	_, ok := target.(*PreprocessError)
	return ok
}

// validPrUnits are the precipitation flux units the derivation accepts.
var validPrUnits = []string{
	"kg / m**2 / s",
	"mm / s",
	"kg / d / m**2",
	"kg / m**2 / d",
}

// Freezing returns the freezing temperature in the given temperature
// units.
func Freezing(units string) float64 {
	if strings.EqualFold(units, "k") {
		return freezingKelvin
	}
	return 0
}

// identityAttrs are the global attributes that must agree across the
// three input files.
var identityAttrs = []string{"project_id", "model_id", "institute_id", "experiment_id"}

func matchingDatasets(pr, tasmin, tasmax *ncdf.Dataset, log zerolog.Logger) bool {
	datasets := []*ncdf.Dataset{pr, tasmin, tasmax}
	for _, attr := range identityAttrs {
		var values []interface{}
		for _, d := range datasets {
			v, err := d.GetAttribute(ncdf.Global, attr)
			if err != nil {
				v = nil
			}
			values = append(values, v)
		}
		if values[0] != values[1] || values[1] != values[2] {
			log.Warn().Str("attribute", attr).Interface("values", values).
				Msg("metadata does not match across inputs")
			return false
		}
	}
	var members []string
	for _, d := range datasets {
		m, err := d.EnsembleMember()
		if err != nil {
			m = ""
		}
		members = append(members, m)
	}
	if members[0] != members[1] || members[1] != members[2] {
		log.Warn().Strs("values", members).Msg("ensemble members do not match across inputs")
		return false
	}
	return true
}

func hasVariable(d *ncdf.Dataset, name string) bool {
	for _, v := range d.ListVariables() {
		if v == name {
			return true
		}
	}
	return false
}

func variableUnits(d *ncdf.Dataset, variable string) (string, error) {
	v, err := d.GetAttribute(ncdf.Scope(variable), "units")
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("units of %q is %T, not a string", variable, v)
	}
	return s, nil
}

func matchingTemperatureUnits(tasmin, tasmax *ncdf.Dataset, log zerolog.Logger) bool {
	minUnits, errMin := variableUnits(tasmin, "tasmin")
	maxUnits, errMax := variableUnits(tasmax, "tasmax")
	if errMin != nil || errMax != nil || minUnits != maxUnits {
		log.Warn().Str("tasmin", minUnits).Str("tasmax", maxUnits).
			Msg("temperature units do not match")
		return false
	}
	return true
}

func checkPrUnits(pr *ncdf.Dataset, log zerolog.Logger) bool {
	units, err := variableUnits(pr, "pr")
	if err != nil {
		log.Warn().Err(err).Msg("precipitation has no units")
		return false
	}
	parsed, err := ParseUnit(units)
	if err != nil {
		log.Warn().Str("units", units).Err(err).Msg("cannot parse precipitation units")
		return false
	}
	for _, valid := range validPrUnits {
		want, err := ParseUnit(valid)
		if err != nil {
			continue
		}
		if parsed.Equal(want) {
			return true
		}
	}
	log.Warn().Str("units", units).Msg("unexpected precipitation units")
	return false
}

func uniqueShape(pr, tasmin, tasmax *ncdf.Dataset, log zerolog.Logger) bool {
	prShape, err1 := pr.VariableShape("pr")
	minShape, err2 := tasmin.VariableShape("tasmin")
	maxShape, err3 := tasmax.VariableShape("tasmax")
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	same := func(a, b []int) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	if !same(prShape, minShape) || !same(prShape, maxShape) {
		log.Warn().
			Ints("pr", prShape).Ints("tasmin", minShape).Ints("tasmax", maxShape).
			Msg("input variables are not the same shape")
		return false
	}
	return true
}

func preprocessChecks(pr, tasmin, tasmax *ncdf.Dataset, log zerolog.Logger) error {
	if !hasVariable(pr, "pr") || !hasVariable(tasmin, "tasmin") || !hasVariable(tasmax, "tasmax") {
		return &PreprocessError{Message: "inputs do not contain pr, tasmin, and tasmax"}
	}
	if !matchingDatasets(pr, tasmin, tasmax, log) {
		return &PreprocessError{Message: "input metadata does not match"}
	}
	if !matchingTemperatureUnits(tasmin, tasmax, log) {
		return &PreprocessError{Message: "temperature units do not match"}
	}
	if !checkPrUnits(pr, log) {
		return &PreprocessError{Message: "unexpected precipitation units"}
	}
	if !uniqueShape(pr, tasmin, tasmax, log) {
		return &PreprocessError{Message: "input variables are not the same shape"}
	}
	return nil
}

// outputPath derives the snowfall file's path from the precipitation
// file's CMOR filename with its variable part replaced.
func outputPath(pr *ncdf.Dataset, outdir string) (string, error) {
	name, err := pr.CmorFilename("pr")
	if err != nil {
		return "", err
	}
	parts := strings.SplitN(name, "_", 2)
	return filepath.Join(outdir, "prsn_"+parts[1]), nil
}

// buildOutput creates the snowfall file with the precipitation file's
// structure: same dimensions and variables, with pr renamed to prsn and
// its identity attributes adjusted. Data of every variable except pr is
// copied over.
func buildOutput(pr *ncdf.Dataset, path string, log zerolog.Logger) (*ncdf.OutputFile, error) {
	var dims []string
	var lengths []int
	seen := map[string]bool{}
	for _, v := range pr.ListVariables() {
		vdims, err := pr.VariableDimensions(v)
		if err != nil {
			return nil, err
		}
		shape, err := pr.VariableShape(v)
		if err != nil {
			return nil, err
		}
		for i, dim := range vdims {
			if !seen[dim] {
				seen[dim] = true
				dims = append(dims, dim)
				lengths = append(lengths, shape[i])
			}
		}
	}

	global, err := pr.ListAttributes(ncdf.Global)
	if err != nil {
		return nil, err
	}

	var vars []ncdf.VarSpec
	for _, v := range pr.ListVariables() {
		vdims, err := pr.VariableDimensions(v)
		if err != nil {
			return nil, err
		}
		attrMap, err := pr.ListAttributes(ncdf.Scope(v))
		if err != nil {
			return nil, err
		}
		attrs := ncdf.OrderedAttrs(attrMap)
		name := v
		if v == "pr" {
			name = "prsn"
			attrs = ncdf.SetAttr(attrs, "standard_name", "snowfall_flux")
			attrs = ncdf.SetAttr(attrs, "long_name", "Precipitation as Snow")
			attrs = deleteAttrs(attrs, "original_name", "comment")
		}
		template, err := pr.VariableTemplate(v)
		if err != nil {
			return nil, err
		}
		vars = append(vars, ncdf.VarSpec{
			Name:  name,
			Dims:  vdims,
			Fill:  template,
			Attrs: attrs,
		})
	}

	out, err := ncdf.CreateFile(path, ncdf.FileSpec{
		Dims:    dims,
		Lengths: lengths,
		Global:  ncdf.OrderedAttrs(global),
		Vars:    vars,
	})
	if err != nil {
		return nil, err
	}

	for _, v := range pr.ListVariables() {
		if v == "pr" {
			continue
		}
		log.Debug().Str("variable", v).Msg("copying variable")
		raw, err := pr.ReadRaw(v)
		if err != nil {
			out.Close()
			return nil, err
		}
		if err := out.Write(v, raw); err != nil {
			out.Close()
			return nil, err
		}
	}
	return out, nil
}

func deleteAttrs(attrs []ncdf.Attr, names ...string) []ncdf.Attr {
	out := attrs[:0]
	for _, a := range attrs {
		drop := false
		for _, name := range names {
			if a.Name == name {
				drop = true
			}
		}
		if !drop {
			out = append(out, a)
		}
	}
	return out
}

// Generate derives a prsn file from precipitation and temperature-extreme
// inputs and writes it under outdir, returning its path. Inputs are read
// in time-axis chunks so arbitrarily long series fit in memory.
func Generate(pr, tasmin, tasmax *ncdf.Dataset, outdir string, log zerolog.Logger) (string, error) {
	log.Info().Msg("conducting pre-process checks")
	if err := preprocessChecks(pr, tasmin, tasmax, log); err != nil {
		return "", err
	}

	path, err := outputPath(pr, outdir)
	if err != nil {
		return "", err
	}
	log.Info().Str("path", path).Msg("creating output file")
	out, err := buildOutput(pr, path, log)
	if err != nil {
		return "", err
	}
	defer out.Close()

	tempUnits, err := variableUnits(tasmin, "tasmin")
	if err != nil {
		return "", err
	}
	freezing := Freezing(tempUnits)

	shape, err := pr.VariableShape("pr")
	if err != nil {
		return "", err
	}
	fill, hasFill := pr.FillValue("pr")

	log.Info().Float64("freezing", freezing).Msg("processing files in chunks")
	maxLen := shape[0]
	for start := 0; start < maxLen; start += chunkSize {
		end := start + chunkSize
		if end > maxLen {
			end = maxLen
		}
		begin := make([]int, len(shape))
		stop := make([]int, len(shape))
		begin[0], stop[0] = start, end
		copy(stop[1:], shape[1:])

		prData, err := pr.ReadFloat64Slab("pr", begin, stop)
		if err != nil {
			return "", err
		}
		minData, err := tasmin.ReadFloat64Slab("tasmin", begin, stop)
		if err != nil {
			return "", err
		}
		maxData, err := tasmax.ReadFloat64Slab("tasmax", begin, stop)
		if err != nil {
			return "", err
		}

		prsnData := make([]float64, len(prData))
		for i := range prData {
			mean := (minData[i] + maxData[i]) / 2
			switch {
			case mean < freezing:
				prsnData[i] = prData[i]
			case hasFill:
				prsnData[i] = fill
			default:
				prsnData[i] = math.NaN()
			}
		}
		log.Debug().Int("start", start).Int("end", end).Msg("writing prsn chunk")
		if err := out.WriteSlab("prsn", begin, stop, prsnData); err != nil {
			return "", err
		}
	}
	log.Info().Str("path", path).Msg("complete")
	return path, nil
}
