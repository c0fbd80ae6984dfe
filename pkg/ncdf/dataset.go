package ncdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"
)

// Dataset is a NetCDF classic file opened for metadata editing and data
// access. Attribute mutations are buffered in memory; Save rewrites the
// file (header plus copied variable data) and atomically replaces the
// original. The NetCDF classic header cannot grow in place, so rewriting
// is the only general way to apply arbitrary attribute updates.
type Dataset struct {
	path string
	file *os.File
	cf   *cdf.File

	global   *attrTable
	vars     map[string]*attrTable
	varOrder []string
	dirty    bool
}

// OpenError reports a target file that could not be opened or parsed.
type OpenError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot open dataset %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpenError) Unwrap() error { return e.Err }

// Open opens a NetCDF classic file and loads its attribute tables.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, &OpenError{Path: path, Err: err}
	}

	d := &Dataset{
		path:   path,
		file:   f,
		cf:     cf,
		global: newAttrTable(),
		vars:   make(map[string]*attrTable),
	}
	for _, name := range cf.Header.Attributes("") {
		d.global.set(name, normalizeAttr(cf.Header.GetAttribute("", name)))
	}
	for _, v := range cf.Header.Variables() {
		t := newAttrTable()
		for _, name := range cf.Header.Attributes(v) {
			t.set(name, normalizeAttr(cf.Header.GetAttribute(v, name)))
		}
		d.vars[v] = t
		d.varOrder = append(d.varOrder, v)
	}
	return d, nil
}

// Path returns the path the dataset was opened from.
func (d *Dataset) Path() string { return d.path }

// Dirty reports whether any attribute has been modified since open or the
// last save.
func (d *Dataset) Dirty() bool { return d.dirty }

func (d *Dataset) table(scope Scope) (*attrTable, error) {
	if scope == Global {
		return d.global, nil
	}
	t, ok := d.vars[string(scope)]
	if !ok {
		return nil, &UnknownVariableError{Variable: string(scope)}
	}
	return t, nil
}

// HasAttribute implements AttributeStore.
func (d *Dataset) HasAttribute(scope Scope, name string) bool {
	t, err := d.table(scope)
	if err != nil {
		return false
	}
	return t.has(name)
}

// GetAttribute implements AttributeStore.
func (d *Dataset) GetAttribute(scope Scope, name string) (interface{}, error) {
	t, err := d.table(scope)
	if err != nil {
		return nil, err
	}
	v, ok := t.get(name)
	if !ok {
		return nil, &NotFoundError{Scope: scope, Name: name}
	}
	return v, nil
}

// SetAttribute implements AttributeStore.
func (d *Dataset) SetAttribute(scope Scope, name string, value interface{}) error {
	t, err := d.table(scope)
	if err != nil {
		return err
	}
	t.set(name, value)
	d.dirty = true
	return nil
}

// DeleteAttribute implements AttributeStore.
func (d *Dataset) DeleteAttribute(scope Scope, name string) error {
	t, err := d.table(scope)
	if err != nil {
		return err
	}
	if !t.delete(name) {
		return &NotFoundError{Scope: scope, Name: name}
	}
	d.dirty = true
	return nil
}

// ListAttributes implements AttributeStore.
func (d *Dataset) ListAttributes(scope Scope) (map[string]interface{}, error) {
	t, err := d.table(scope)
	if err != nil {
		return nil, err
	}
	return t.snapshot(), nil
}

// ListVariables implements AttributeStore.
func (d *Dataset) ListVariables() []string {
	out := make([]string, len(d.varOrder))
	copy(out, d.varOrder)
	return out
}

// Dimensions returns the dataset's dimension names and lengths in
// first-seen order across variables.
func (d *Dataset) Dimensions() ([]string, []int) {
	return d.dimensions()
}

// VariableDimensions returns the dimension names of a variable.
func (d *Dataset) VariableDimensions(name string) ([]string, error) {
	if _, ok := d.vars[name]; !ok {
		return nil, &UnknownVariableError{Variable: name}
	}
	return d.cf.Header.Dimensions(name), nil
}

// VariableShape returns the dimension lengths of a variable.
func (d *Dataset) VariableShape(name string) ([]int, error) {
	if _, ok := d.vars[name]; !ok {
		return nil, &UnknownVariableError{Variable: name}
	}
	return d.cf.Header.Lengths(name), nil
}

// VariableTemplate returns a one-element slice of the variable's native
// type (or "" for character variables), suitable for declaring a matching
// variable in an output file.
func (d *Dataset) VariableTemplate(name string) (interface{}, error) {
	if _, ok := d.vars[name]; !ok {
		return nil, &UnknownVariableError{Variable: name}
	}
	r := d.cf.Reader(name, nil, nil)
	return r.Zero(1), nil
}

// ReadRaw reads a variable's entire contents in its native type
// (a typed slice, or a string for character variables).
func (d *Dataset) ReadRaw(name string) (interface{}, error) {
	if _, ok := d.vars[name]; !ok {
		return nil, &UnknownVariableError{Variable: name}
	}
	n := 1
	for _, l := range d.cf.Header.Lengths(name) {
		n *= l
	}
	r := d.cf.Reader(name, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %q: %w", name, err)
	}
	return buf, nil
}

// ReadFloat64 reads a variable's entire contents converted to float64,
// along with its shape.
func (d *Dataset) ReadFloat64(name string) ([]float64, []int, error) {
	raw, err := d.ReadRaw(name)
	if err != nil {
		return nil, nil, err
	}
	data, err := toFloat64s(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q: %w", name, err)
	}
	shape, err := d.VariableShape(name)
	if err != nil {
		return nil, nil, err
	}
	return data, shape, nil
}

// ReadFloat64Slab reads the hyperslab [begin, end) of a variable converted
// to float64. begin and end are full-rank index vectors.
func (d *Dataset) ReadFloat64Slab(name string, begin, end []int) ([]float64, error) {
	if _, ok := d.vars[name]; !ok {
		return nil, &UnknownVariableError{Variable: name}
	}
	n := 1
	for i := range begin {
		n *= end[i] - begin[i]
	}
	r := d.cf.Reader(name, begin, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %q: %w", name, err)
	}
	data, err := toFloat64s(buf)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	return data, nil
}

// FillValue returns the variable's _FillValue (or missing_value) as a
// float64, if one is defined.
func (d *Dataset) FillValue(name string) (float64, bool) {
	for _, attr := range []string{"_FillValue", "missing_value"} {
		if v, err := d.GetAttribute(Scope(name), attr); err == nil {
			if f, err := toFloat64(v); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Save rewrites the file with the current attribute tables if any attribute
// has been modified. Variable data is copied unchanged. The rewrite goes to
// a temporary file in the same directory, which then atomically replaces
// the original.
func (d *Dataset) Save() error {
	if !d.dirty {
		return nil
	}

	dims, lengths := d.dimensions()
	h := cdf.NewHeader(dims, lengths)
	for _, v := range d.varOrder {
		r := d.cf.Reader(v, nil, nil)
		h.AddVariable(v, d.cf.Header.Dimensions(v), r.Zero(1))
	}
	for _, name := range d.global.order {
		h.AddAttribute("", name, denormalizeAttr(d.global.values[name]))
	}
	for _, v := range d.varOrder {
		t := d.vars[v]
		for _, name := range t.order {
			h.AddAttribute(v, name, denormalizeAttr(t.values[name]))
		}
	}
	h.Define()
	for _, err := range h.Check() {
		if err != nil {
			return fmt.Errorf("constructing updated header: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), ".dataprep-*.nc")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	nf, err := cdf.Create(tmp, h)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("creating rewritten file: %w", err)
	}
	if err := d.copyData(nf); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Swap the rewritten file in and reopen it.
	d.file.Close()
	if err := os.Rename(tmpPath, d.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	reopened, err := Open(d.path)
	if err != nil {
		return err
	}
	d.file = reopened.file
	d.cf = reopened.cf
	d.dirty = false
	return nil
}

// Close saves pending attribute changes and releases the file handle. The
// handle is released even when the save fails.
func (d *Dataset) Close() error {
	saveErr := d.Save()
	closeErr := d.file.Close()
	if saveErr != nil {
		return saveErr
	}
	return closeErr
}

// dimensions returns the dataset's dimensions in first-seen order across
// variables. A record (unlimited) dimension is materialized at its current
// length; the rewritten file has fixed dimensions only.
func (d *Dataset) dimensions() ([]string, []int) {
	var dims []string
	var lengths []int
	seen := make(map[string]bool)
	for _, v := range d.varOrder {
		vdims := d.cf.Header.Dimensions(v)
		vlens := d.cf.Header.Lengths(v)
		for i, dim := range vdims {
			if !seen[dim] {
				seen[dim] = true
				dims = append(dims, dim)
				lengths = append(lengths, vlens[i])
			}
		}
	}
	return dims, lengths
}

func (d *Dataset) copyData(dst *cdf.File) error {
	for _, v := range d.varOrder {
		lengths := d.cf.Header.Lengths(v)
		n := 1
		for _, l := range lengths {
			n *= l
		}
		r := d.cf.Reader(v, nil, nil)
		buf := r.Zero(n)
		if _, err := r.Read(buf); err != nil {
			return fmt.Errorf("copying variable %q: %w", v, err)
		}
		begin := make([]int, len(lengths))
		w := dst.Writer(v, begin, lengths)
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("copying variable %q: %w", v, err)
		}
	}
	return nil
}
