package updatemeta

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prefixes selecting the rename and expression operation kinds. An
// attribute value that legitimately begins with one of these sequences
// cannot be expressed as a literal; this is a documented limitation of the
// specification format.
const (
	renamePrefix     = "<-"
	expressionPrefix = "="
)

// OpKind identifies one of the four update operation kinds.
type OpKind int

const (
	// OpDelete removes an attribute.
	OpDelete OpKind = iota
	// OpSetLiteral creates or overwrites an attribute with a literal value.
	OpSetLiteral
	// OpSetExpression sets an attribute to the result of an expression
	// evaluated against the target scope's current attributes.
	OpSetExpression
	// OpRename moves an attribute's value to a new name.
	OpRename
)

// String implements fmt.Stringer.
func (k OpKind) String() string {
	switch k {
	case OpDelete:
		return "delete"
	case OpSetLiteral:
		return "set"
	case OpSetExpression:
		return "set-expression"
	case OpRename:
		return "rename"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Operation is one classified attribute update.
type Operation struct {
	Kind OpKind

	// Name is the attribute being deleted, set, or created by a rename.
	Name string

	// Value is the coerced literal for OpSetLiteral.
	Value interface{}

	// Expression is the expression text for OpSetExpression (prefix
	// stripped).
	Expression string

	// OldName is the attribute a rename takes its value from.
	OldName string

	// Raw is the raw scalar text of the entry's value, kept for
	// diagnostics.
	Raw string
}

// classify maps one (key, value-node) specification entry onto its
// operation. Classification is total over well-formed entries; only a
// structurally invalid value node (e.g. a nested mapping) is an error.
func classify(key string, node *yaml.Node) (Operation, error) {
	if node == nil || node.Tag == "!!null" {
		return Operation{Kind: OpDelete, Name: key}, nil
	}
	if node.Kind != yaml.ScalarNode {
		return Operation{}, &SpecFormatError{
			Line:    node.Line,
			Message: fmt.Sprintf("value for %q must be a scalar", key),
		}
	}

	var value interface{}
	if err := node.Decode(&value); err != nil {
		return Operation{}, &SpecFormatError{Line: node.Line, Message: err.Error()}
	}

	switch v := value.(type) {
	case nil:
		return Operation{Kind: OpDelete, Name: key}, nil
	case string:
		if strings.HasPrefix(v, renamePrefix) {
			return Operation{
				Kind:    OpRename,
				Name:    key,
				OldName: v[len(renamePrefix):],
				Raw:     node.Value,
			}, nil
		}
		if strings.HasPrefix(v, expressionPrefix) {
			return Operation{
				Kind:       OpSetExpression,
				Name:       key,
				Expression: v[len(expressionPrefix):],
				Raw:        node.Value,
			}, nil
		}
		return Operation{Kind: OpSetLiteral, Name: key, Value: v, Raw: node.Value}, nil
	case int:
		return Operation{Kind: OpSetLiteral, Name: key, Value: int64(v), Raw: node.Value}, nil
	case int64:
		return Operation{Kind: OpSetLiteral, Name: key, Value: v, Raw: node.Value}, nil
	case float64:
		return Operation{Kind: OpSetLiteral, Name: key, Value: v, Raw: node.Value}, nil
	case bool:
		// NetCDF has no boolean attribute type; YAML booleans store as
		// integers.
		var n int64
		if v {
			n = 1
		}
		return Operation{Kind: OpSetLiteral, Name: key, Value: n, Raw: node.Value}, nil
	default:
		return Operation{}, &SpecFormatError{
			Line:    node.Line,
			Message: fmt.Sprintf("unsupported value type %T for %q", value, key),
		}
	}
}
