package flowvec

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
)

// SourceError reports a source file that cannot be decomposed: it lacks a
// latitude/longitude grid or holds no valid flow routing variable.
type SourceError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Is reports whether target is a SourceError.
func (e *SourceError) Is(target error) bool {
	_, ok := target.(*SourceError)
	return ok
}

// VariableError reports a requested variable that is missing, not on the
// grid, or not a valid flow routing.
type VariableError struct {
	Variable string
	Message  string
}

// Error implements the error interface.
func (e *VariableError) Error() string {
	return fmt.Sprintf("variable %q: %s", e.Variable, e.Message)
}

// Is reports whether target is a VariableError.
func (e *VariableError) Is(target error) bool {
	_, ok := target.(*VariableError)
	return ok
}

// unitVectors maps VIC routing codes onto {northward, eastward} unit
// vector components. Code 0 is filler and code 9 is an outlet; both
// decompose to zero.
var unitVectors = [10][2]float64{
	{0, 0},             // 0 = filler
	{1, 0},             // 1 = N
	{0.7071, 0.7071},   // 2 = NE
	{0, 1},             // 3 = E
	{-0.7071, 0.7071},  // 4 = SE
	{-1, 0},            // 5 = S
	{-0.7071, -0.7071}, // 6 = SW
	{0, -1},            // 7 = W
	{0.7071, -0.7071},  // 8 = NW
	{0, 0},             // 9 = outlet
}

const (
	northComponent = 0
	eastComponent  = 1
)

// onGrid reports whether the variable's dimensions include both lat and
// lon.
func onGrid(d *ncdf.Dataset, variable string) bool {
	dims, err := d.VariableDimensions(variable)
	if err != nil {
		return false
	}
	hasLat, hasLon := false, false
	for _, dim := range dims {
		switch dim {
		case "lat":
			hasLat = true
		case "lon":
			hasLon = true
		}
	}
	return hasLat && hasLon
}

// validRouting reports whether every unmasked value of the variable is a
// VIC routing code in [1, 9].
func validRouting(d *ncdf.Dataset, variable string) bool {
	data, _, err := d.ReadFloat64(variable)
	if err != nil {
		return false
	}
	fill, hasFill := d.FillValue(variable)
	seen := false
	for _, v := range data {
		if math.IsNaN(v) || (hasFill && v == fill) {
			continue
		}
		if v < 1 || v > 9 {
			return false
		}
		seen = true
	}
	return seen
}

// CheckSource verifies that the source file carries a lat/lon grid and at
// least one valid flow routing variable.
func CheckSource(d *ncdf.Dataset) error {
	hasLat, hasLon := false, false
	for _, v := range d.ListVariables() {
		dims, err := d.VariableDimensions(v)
		if err != nil {
			continue
		}
		for _, dim := range dims {
			switch dim {
			case "lat":
				hasLat = true
			case "lon":
				hasLon = true
			}
		}
	}
	if !hasLat || !hasLon {
		return &SourceError{
			Path:    d.Path(),
			Message: "does not have latitude and longitude dimensions",
		}
	}
	for _, v := range d.ListVariables() {
		if onGrid(d, v) && validRouting(d, v) {
			return nil
		}
	}
	return &SourceError{
		Path:    d.Path(),
		Message: "does not have a valid flow variable",
	}
}

// CheckVariable verifies that the named variable exists, sits on the
// lat/lon grid, and holds valid VIC routing codes.
func CheckVariable(d *ncdf.Dataset, variable string) error {
	found := false
	for _, v := range d.ListVariables() {
		if v == variable {
			found = true
			break
		}
	}
	if !found {
		return &VariableError{Variable: variable, Message: fmt.Sprintf("not found in %s", d.Path())}
	}
	if !onGrid(d, variable) {
		return &VariableError{Variable: variable, Message: "not associated with a grid"}
	}
	if !validRouting(d, variable) {
		return &VariableError{Variable: variable, Message: "not a valid flow routing"}
	}
	return nil
}

// Decompose converts the VIC routing variable of the source dataset into
// normalized eastward_<variable> and northward_<variable> component grids
// and writes them, with the source graticule and global attributes, to
// destPath. The source file is not modified.
func Decompose(d *ncdf.Dataset, destPath, variable string, log zerolog.Logger) error {
	if err := CheckSource(d); err != nil {
		return err
	}
	if err := CheckVariable(d, variable); err != nil {
		return err
	}

	dims, err := d.VariableDimensions(variable)
	if err != nil {
		return err
	}
	shape, err := d.VariableShape(variable)
	if err != nil {
		return err
	}

	global, err := d.ListAttributes(ncdf.Global)
	if err != nil {
		return err
	}
	globalAttrs := ncdf.OrderedAttrs(global)
	if h, ok := global["history"]; ok {
		if s, ok := h.(string); ok {
			entry := fmt.Sprintf("%s decompose_flow_vectors %s %s %s\n",
				time.Now().Format(time.ANSIC), d.Path(), destPath, variable)
			globalAttrs = ncdf.SetAttr(globalAttrs, "history", entry+s)
		}
	}

	var vars []ncdf.VarSpec
	for _, axis := range []string{"lat", "lon"} {
		attrs, err := d.ListAttributes(ncdf.Scope(axis))
		if err != nil {
			return fmt.Errorf("source has no %s coordinate variable: %w", axis, err)
		}
		vars = append(vars, ncdf.VarSpec{
			Name:  axis,
			Dims:  []string{axis},
			Fill:  []float64{0},
			Attrs: ncdf.OrderedAttrs(attrs),
		})
	}

	fill, hasFill := d.FillValue(variable)
	for _, direction := range []string{"east", "north"} {
		name := direction + "ward_" + variable
		attrs := []ncdf.Attr{
			{Name: "units", Value: "1"},
			// ncWMS relies on standard names to pair the components.
			{Name: "standard_name", Value: name},
			{Name: "long_name", Value: fmt.Sprintf("Normalized %sward vector component of %s", direction, variable)},
		}
		if hasFill {
			attrs = append(attrs, ncdf.Attr{Name: "_FillValue", Value: fill})
		}
		vars = append(vars, ncdf.VarSpec{
			Name:  name,
			Dims:  dims,
			Fill:  []float64{0},
			Attrs: attrs,
		})
	}

	out, err := ncdf.CreateFile(destPath, ncdf.FileSpec{
		Dims:    dims,
		Lengths: shape,
		Global:  globalAttrs,
		Vars:    vars,
	})
	if err != nil {
		return err
	}
	defer out.Close()

	for _, axis := range []string{"lat", "lon"} {
		coord, _, err := d.ReadFloat64(axis)
		if err != nil {
			return err
		}
		if err := out.Write(axis, coord); err != nil {
			return err
		}
	}

	codes, _, err := d.ReadFloat64(variable)
	if err != nil {
		return err
	}
	for _, direction := range []string{"east", "north"} {
		component := eastComponent
		if direction == "north" {
			component = northComponent
		}
		log.Info().Str("component", direction+"ward").Msg("generating vector component")
		field := make([]float64, len(codes))
		for i, v := range codes {
			if math.IsNaN(v) || (hasFill && v == fill) || v < 0 || v > 9 {
				field[i] = v
				continue
			}
			field[i] = unitVectors[int(v)][component]
		}
		if err := out.Write(direction+"ward_"+variable, field); err != nil {
			return err
		}
	}
	return nil
}

