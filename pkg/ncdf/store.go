package ncdf

import (
	"fmt"
)

// Scope identifies an attribute scope within a dataset: either the global
// attribute set or the attribute set of one named variable.
type Scope string

// Global is the distinguished scope holding the dataset's global attributes.
const Global Scope = ""

// String renders the scope the way update specifications name it.
func (s Scope) String() string {
	if s == Global {
		return "global"
	}
	return string(s)
}

// AttributeStore is the mutable metadata surface of an open dataset.
// Attribute values are int64, float64, or string scalars; numeric array
// attributes read from a file are passed through unmodified but are never
// created by the update tools.
type AttributeStore interface {
	// HasAttribute reports whether the named attribute exists in the scope.
	HasAttribute(scope Scope, name string) bool

	// GetAttribute returns the attribute's value, or a NotFoundError.
	GetAttribute(scope Scope, name string) (interface{}, error)

	// SetAttribute creates or overwrites the attribute.
	SetAttribute(scope Scope, name string, value interface{}) error

	// DeleteAttribute removes the attribute, or returns a NotFoundError.
	DeleteAttribute(scope Scope, name string) error

	// ListAttributes returns a copy of the scope's current attributes,
	// for use as an expression evaluation context.
	ListAttributes(scope Scope) (map[string]interface{}, error)

	// ListVariables returns the names of all variables in the dataset.
	ListVariables() []string
}

// NotFoundError reports an operation on an attribute that does not exist.
type NotFoundError struct {
	Scope Scope
	Name  string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("attribute %q not found in scope %q", e.Name, e.Scope)
}

// Is matches any NotFoundError, so callers can test errors.Is(err,
// &NotFoundError{}) without knowing the scope and name.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// UnknownVariableError reports a scope that names no variable in the dataset.
type UnknownVariableError struct {
	Variable string
}

// Error implements the error interface.
func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("no such variable: %q", e.Variable)
}

// Is matches any UnknownVariableError.
func (e *UnknownVariableError) Is(target error) bool {
	_, ok := target.(*UnknownVariableError)
	return ok
}

// attrTable is an ordered attribute map. Order is preserved so that a
// rewritten file lists attributes the way the source file did.
type attrTable struct {
	order  []string
	values map[string]interface{}
}

func newAttrTable() *attrTable {
	return &attrTable{values: make(map[string]interface{})}
}

func (t *attrTable) has(name string) bool {
	_, ok := t.values[name]
	return ok
}

func (t *attrTable) get(name string) (interface{}, bool) {
	v, ok := t.values[name]
	return v, ok
}

func (t *attrTable) set(name string, value interface{}) {
	if !t.has(name) {
		t.order = append(t.order, name)
	}
	t.values[name] = value
}

func (t *attrTable) delete(name string) bool {
	if !t.has(name) {
		return false
	}
	delete(t.values, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *attrTable) snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}
