package updatemeta

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
)

// DatasetContext supplies the optional dataset-level bindings available to
// expressions: filepath(), dependent_varnames(), and the
// dependent_varname identifier when the dataset has exactly one dependent
// variable. A nil DatasetContext leaves those bindings undefined.
type DatasetContext interface {
	Path() string
	DependentVariables() []string
}

// StructureContext extends DatasetContext with the dataset's dimension
// and variable tables, exposed to expressions as the dimensions mapping
// (name to length) and the variables mapping (name to an object whose
// attributes are the variable's attributes). *ncdf.Dataset implements it;
// a context without it leaves the two mappings undefined.
type StructureContext interface {
	DatasetContext
	ListVariables() []string
	Dimensions() ([]string, []int)
	ListAttributes(scope ncdf.Scope) (map[string]interface{}, error)
}

// Evaluator evaluates attribute-update expressions. Expressions run in a
// Starlark interpreter seeded with the target scope's current attributes
// as identifiers plus a fixed library of domain helper functions. Starlark
// is the trust boundary here: expressions cannot touch the host process,
// but the specification format is still not meant to consume untrusted
// input.
type Evaluator struct {
	ds DatasetContext
}

// NewEvaluator creates an evaluator. ds may be nil.
func NewEvaluator(ds DatasetContext) *Evaluator {
	return &Evaluator{ds: ds}
}

// Eval evaluates a single expression with the given attribute bindings and
// returns its value as an int64, float64, or string. Attribute bindings
// shadow helper functions of the same name.
func (ev *Evaluator) Eval(expression string, attrs map[string]interface{}) (interface{}, error) {
	env := starlark.StringDict{
		"parse_ensemble_code":     starlark.NewBuiltin("parse_ensemble_code", builtinParseEnsembleCode),
		"normalize_experiment_id": starlark.NewBuiltin("normalize_experiment_id", builtinNormalizeExperimentID),
	}
	if ev.ds != nil {
		env["filepath"] = starlark.NewBuiltin("filepath", ev.builtinFilepath)
		env["dependent_varnames"] = starlark.NewBuiltin("dependent_varnames", ev.builtinDependentVarnames)
		if deps := ev.ds.DependentVariables(); len(deps) == 1 {
			env["dependent_varname"] = starlark.String(deps[0])
		}
	}
	if sc, ok := ev.ds.(StructureContext); ok {
		if err := addStructureBindings(env, sc); err != nil {
			return nil, &EvaluationError{Expression: expression, Err: err}
		}
	}
	for name, value := range attrs {
		sv, err := toStarlark(value)
		if err != nil {
			return nil, &EvaluationError{Expression: expression,
				Err: fmt.Errorf("attribute %q: %w", name, err)}
		}
		env[name] = sv
	}

	thread := &starlark.Thread{
		Name:  "update-metadata",
		Print: func(_ *starlark.Thread, _ string) {},
	}
	result, err := starlark.Eval(thread, "<expression>", expression, env)
	if err != nil {
		return nil, &EvaluationError{Expression: expression, Err: err}
	}
	value, err := fromStarlark(result)
	if err != nil {
		return nil, &EvaluationError{Expression: expression, Err: err}
	}
	return value, nil
}

// ensembleCodePattern matches CMIP5 ensemble codes of the form r<M>i<N>p<L>.
var ensembleCodePattern = regexp.MustCompile(`^r(\d+)i(\d+)p(\d+)`)

// ParseEnsembleCode parses an ensemble code such as "r2i1p1" into its
// realization, initialization_method, and physics_version components.
func ParseEnsembleCode(code string) (realization, initialization, physics int, err error) {
	m := ensembleCodePattern.FindStringSubmatch(code)
	if m == nil {
		return 0, 0, 0, fmt.Errorf("could not parse %q as an ensemble code", code)
	}
	atoi := func(s string) int {
		n := 0
		for _, c := range s {
			n = n*10 + int(c-'0')
		}
		return n
	}
	return atoi(m[1]), atoi(m[2]), atoi(m[3]), nil
}

func builtinParseEnsembleCode(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var code string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "ensemble_code", &code); err != nil {
		return nil, err
	}
	r, i, p, err := ParseEnsembleCode(code)
	if err != nil {
		return nil, err
	}
	dict := starlark.NewDict(3)
	for _, kv := range []struct {
		key   string
		value int
	}{
		{"realization", r},
		{"initialization_method", i},
		{"physics_version", p},
	} {
		if err := dict.SetKey(starlark.String(kv.key), starlark.MakeInt(kv.value)); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

var (
	historicalPattern = regexp.MustCompile(`(?i)historical`)
	rcpPattern        = regexp.MustCompile(`(?i)rcp(\d)\.?(\d)`)
)

// NormalizeExperimentID canonicalizes a CMIP5 experiment identifier:
// comma-separated parts are re-joined with ", ", "historical" is
// lowercased, and RCP identifiers lose their case and decimal point
// ("RCP8.5" becomes "rcp85").
func NormalizeExperimentID(id string) string {
	parts := strings.Split(id, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	id = strings.Join(parts, ", ")
	id = historicalPattern.ReplaceAllString(id, "historical")
	id = rcpPattern.ReplaceAllString(id, "rcp$1$2")
	return id
}

func builtinNormalizeExperimentID(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var id string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "experiment_id", &id); err != nil {
		return nil, err
	}
	return starlark.String(NormalizeExperimentID(id)), nil
}

// addStructureBindings installs the dimensions and variables mappings.
func addStructureBindings(env starlark.StringDict, sc StructureContext) error {
	dimNames, dimLengths := sc.Dimensions()
	dims := starlark.NewDict(len(dimNames))
	for i, name := range dimNames {
		if err := dims.SetKey(starlark.String(name), starlark.MakeInt(dimLengths[i])); err != nil {
			return err
		}
	}
	env["dimensions"] = dims

	names := sc.ListVariables()
	vars := starlark.NewDict(len(names))
	for _, name := range names {
		attrs, err := sc.ListAttributes(ncdf.Scope(name))
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		if err := vars.SetKey(starlark.String(name), variableBinding{name: name, attrs: attrs}); err != nil {
			return err
		}
	}
	env["variables"] = vars
	return nil
}

// variableBinding exposes one variable's attributes to expressions with
// dotted access, e.g. variables["tasmax"].units.
type variableBinding struct {
	name  string
	attrs map[string]interface{}
}

func (v variableBinding) String() string        { return fmt.Sprintf("variable(%q)", v.name) }
func (v variableBinding) Type() string          { return "variable" }
func (v variableBinding) Freeze()               {}
func (v variableBinding) Truth() starlark.Bool  { return starlark.True }
func (v variableBinding) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: variable") }

// Attr returns the named attribute's value, or nil for a standard
// "no such attribute" error.
func (v variableBinding) Attr(name string) (starlark.Value, error) {
	value, ok := v.attrs[name]
	if !ok {
		return nil, nil
	}
	return toStarlark(value)
}

func (v variableBinding) AttrNames() []string {
	names := make([]string, 0, len(v.attrs))
	for name := range v.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (ev *Evaluator) builtinFilepath(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.String(ev.ds.Path()), nil
}

func (ev *Evaluator) builtinDependentVarnames(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	deps := ev.ds.DependentVariables()
	items := make([]starlark.Value, len(deps))
	for i, d := range deps {
		items[i] = starlark.String(d)
	}
	return starlark.NewList(items), nil
}

// toStarlark converts an attribute value into a Starlark value.
func toStarlark(v interface{}) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int32:
		return starlark.MakeInt64(int64(x)), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float32:
		return starlark.Float(float64(x)), nil
	case float64:
		return starlark.Float(x), nil
	case string:
		return starlark.String(x), nil
	case []int32:
		items := make([]starlark.Value, len(x))
		for i, e := range x {
			items[i] = starlark.MakeInt64(int64(e))
		}
		return starlark.NewList(items), nil
	case []float64:
		items := make([]starlark.Value, len(x))
		for i, e := range x {
			items[i] = starlark.Float(e)
		}
		return starlark.NewList(items), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

// fromStarlark converts an expression result into a storable attribute
// value.
func fromStarlark(v starlark.Value) (interface{}, error) {
	switch x := v.(type) {
	case starlark.Int:
		i, ok := x.Int64()
		if !ok {
			return nil, fmt.Errorf("integer result out of range")
		}
		return i, nil
	case starlark.Float:
		return float64(x), nil
	case starlark.String:
		return string(x), nil
	case starlark.Bool:
		if bool(x) {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("expression result of type %s cannot be stored as an attribute", v.Type())
}
