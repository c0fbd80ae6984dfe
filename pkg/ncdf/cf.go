package ncdf

import (
	"fmt"
	"strings"
	"time"
)

// DependentVariables returns the dataset's dependent (data-carrying)
// variables: everything that is not a dimension coordinate variable and is
// not referenced from a bounds or climatology attribute.
func (d *Dataset) DependentVariables() []string {
	exclude := make(map[string]bool)
	for _, v := range d.varOrder {
		for _, dim := range d.cf.Header.Dimensions(v) {
			exclude[dim] = true
		}
		for _, attr := range []string{"bounds", "climatology"} {
			if val, ok := d.vars[v].get(attr); ok {
				if s, ok := val.(string); ok {
					exclude[s] = true
				}
			}
		}
	}
	var out []string
	for _, v := range d.varOrder {
		if !exclude[v] {
			out = append(out, v)
		}
	}
	return out
}

// Frequency returns the dataset's global frequency attribute.
func (d *Dataset) Frequency() (string, error) {
	v, err := d.GetAttribute(Global, "frequency")
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("frequency attribute is %T, not a string", v)
	}
	return s, nil
}

func (d *Dataset) stringAttr(name string) (string, error) {
	v, err := d.GetAttribute(Global, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("global attribute %q is %T, not a string", name, v)
	}
	return s, nil
}

func (d *Dataset) intAttr(name string) (int64, error) {
	v, err := d.GetAttribute(Global, name)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	}
	return 0, fmt.Errorf("global attribute %q is %T, not an integer", name, v)
}

// EnsembleMember renders the dataset's ensemble code r<R>i<I>p<P> from the
// realization, initialization_method, and physics_version global
// attributes, falling back to an explicit ensemble_member attribute.
func (d *Dataset) EnsembleMember() (string, error) {
	r, errR := d.intAttr("realization")
	i, errI := d.intAttr("initialization_method")
	p, errP := d.intAttr("physics_version")
	if errR == nil && errI == nil && errP == nil {
		return fmt.Sprintf("r%di%dp%d", r, i, p), nil
	}
	if s, err := d.stringAttr("ensemble_member"); err == nil {
		return s, nil
	}
	return "", fmt.Errorf("dataset has neither realization/initialization_method/physics_version nor ensemble_member attributes")
}

// CmorFilename assembles the CMOR-style filename for one dependent
// variable of the dataset:
//
//	<variable>_<frequency>_<model>_<experiment>_<ensemble>_<tstart>-<tend>.nc
//
// Multi-part experiment identifiers ("historical, rcp85") are joined
// with '+' as the convention requires.
func (d *Dataset) CmorFilename(variable string) (string, error) {
	frequency, err := d.Frequency()
	if err != nil {
		return "", fmt.Errorf("assembling CMOR filename: %w", err)
	}
	model, err := d.stringAttr("model_id")
	if err != nil {
		return "", fmt.Errorf("assembling CMOR filename: %w", err)
	}
	experiment, err := d.stringAttr("experiment_id")
	if err != nil {
		return "", fmt.Errorf("assembling CMOR filename: %w", err)
	}
	ensemble, err := d.EnsembleMember()
	if err != nil {
		return "", fmt.Errorf("assembling CMOR filename: %w", err)
	}
	tStart, tEnd, err := d.TimeRange()
	if err != nil {
		return "", fmt.Errorf("assembling CMOR filename: %w", err)
	}
	return CmorName(variable, frequency, model, experiment, ensemble, tStart, tEnd), nil
}

// CmorName assembles a CMOR-style filename from its components.
// Multi-part experiment identifiers are joined with '+'.
func CmorName(variable, frequency, model, experiment, ensemble string, tStart, tEnd time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s_%s_%s-%s.nc",
		variable, frequency, model, cmorExperiment(experiment), ensemble,
		tStart.Format("20060102"), tEnd.Format("20060102"))
}

func cmorExperiment(experiment string) string {
	parts := strings.Split(experiment, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, "+")
}
