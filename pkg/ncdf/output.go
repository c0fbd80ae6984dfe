package ncdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ctessum/cdf"
)

// Attr is one named attribute in declaration order.
type Attr struct {
	Name  string
	Value interface{}
}

// VarSpec declares one variable of an output file. Fill is a one-element
// typed slice (or "" for character variables) selecting the variable's
// NetCDF type.
type VarSpec struct {
	Name  string
	Dims  []string
	Fill  interface{}
	Attrs []Attr
}

// FileSpec declares the structure of an output file.
type FileSpec struct {
	Dims    []string
	Lengths []int
	Global  []Attr
	Vars    []VarSpec
}

// OutputFile is a NetCDF classic file being written.
type OutputFile struct {
	path string
	file *os.File
	cf   *cdf.File
	spec FileSpec
}

// CreateFile creates a new NetCDF classic file from spec. Parent
// directories are created as needed.
func CreateFile(path string, spec FileSpec) (*OutputFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	h := cdf.NewHeader(spec.Dims, spec.Lengths)
	for _, v := range spec.Vars {
		h.AddVariable(v.Name, v.Dims, v.Fill)
	}
	for _, a := range spec.Global {
		h.AddAttribute("", a.Name, denormalizeAttr(a.Value))
	}
	for _, v := range spec.Vars {
		for _, a := range v.Attrs {
			h.AddAttribute(v.Name, a.Name, denormalizeAttr(a.Value))
		}
	}
	h.Define()
	for _, err := range h.Check() {
		if err != nil {
			return nil, fmt.Errorf("defining output header: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("creating output file %q: %w", path, err)
	}
	return &OutputFile{path: path, file: f, cf: cf, spec: spec}, nil
}

// Path returns the path of the file being written.
func (o *OutputFile) Path() string { return o.path }

func (o *OutputFile) varSpec(name string) (*VarSpec, error) {
	for i := range o.spec.Vars {
		if o.spec.Vars[i].Name == name {
			return &o.spec.Vars[i], nil
		}
	}
	return nil, &UnknownVariableError{Variable: name}
}

func (o *OutputFile) varShape(v *VarSpec) []int {
	lengths := make([]int, len(v.Dims))
	for i, dim := range v.Dims {
		for j, d := range o.spec.Dims {
			if d == dim {
				lengths[i] = o.spec.Lengths[j]
			}
		}
	}
	return lengths
}

// Write writes a variable's entire contents. data must be a typed slice
// matching the variable's declared type.
func (o *OutputFile) Write(name string, data interface{}) error {
	v, err := o.varSpec(name)
	if err != nil {
		return err
	}
	lengths := o.varShape(v)
	begin := make([]int, len(lengths))
	w := o.cf.Writer(name, begin, lengths)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing variable %q: %w", name, err)
	}
	return nil
}

// WriteSlab writes the hyperslab [begin, end) of a variable, for chunked
// output of large variables.
func (o *OutputFile) WriteSlab(name string, begin, end []int, data interface{}) error {
	if _, err := o.varSpec(name); err != nil {
		return err
	}
	w := o.cf.Writer(name, begin, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing variable %q: %w", name, err)
	}
	return nil
}

// Close flushes and closes the file.
func (o *OutputFile) Close() error {
	return o.file.Close()
}

// OrderedAttrs flattens an attribute map into a deterministic (sorted)
// declaration order.
func OrderedAttrs(attrs map[string]interface{}) []Attr {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Attr, len(names))
	for i, name := range names {
		out[i] = Attr{Name: name, Value: attrs[name]}
	}
	return out
}

// SetAttr replaces the named attribute in place, appending it when absent.
func SetAttr(attrs []Attr, name string, value interface{}) []Attr {
	for i := range attrs {
		if attrs[i].Name == name {
			attrs[i].Value = value
			return attrs
		}
	}
	return append(attrs, Attr{Name: name, Value: value})
}
