package updatemeta

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ScopeUpdates is the sequence of operations for one scope. Ordered
// records whether the specification used the sequence form, which
// guarantees processing in listed order; the mapping form carries no
// ordering promise (document order is retained as the implementation-
// defined iteration order).
type ScopeUpdates struct {
	// Key is the raw scope key: "global", a variable name, or an
	// expression-addressed scope beginning with "=".
	Key string

	Ordered bool
	Ops     []Operation
}

// Spec is a parsed update specification.
type Spec struct {
	Scopes []ScopeUpdates
}

// ParseFile reads and parses an update specification file.
func ParseFile(path string) (*Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading update specification: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse parses an update specification document. The document must be a
// mapping from scope keys to either a mapping of attribute updates
// (unordered) or a sequence of single-entry mappings (ordered).
func Parse(r io.Reader) (*Spec, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return &Spec{}, nil
		}
		return nil, &SpecFormatError{Message: err.Error()}
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return &Spec{}, nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, &SpecFormatError{
			Line:    root.Line,
			Message: "top level must be a mapping of scope names to updates",
		}
	}

	spec := &Spec{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return nil, &SpecFormatError{
				Line:    keyNode.Line,
				Message: "scope key must be a scalar",
			}
		}
		su, err := parseScope(keyNode.Value, valueNode)
		if err != nil {
			return nil, err
		}
		spec.Scopes = append(spec.Scopes, su)
	}
	return spec, nil
}

func parseScope(key string, node *yaml.Node) (ScopeUpdates, error) {
	su := ScopeUpdates{Key: key}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			op, err := entry(node.Content[i], node.Content[i+1])
			if err != nil {
				return su, err
			}
			su.Ops = append(su.Ops, op)
		}
	case yaml.SequenceNode:
		su.Ordered = true
		for _, item := range node.Content {
			if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
				return su, &SpecFormatError{
					Line:    item.Line,
					Message: fmt.Sprintf("ordered updates for scope %q must be a sequence of single-entry mappings", key),
				}
			}
			op, err := entry(item.Content[0], item.Content[1])
			if err != nil {
				return su, err
			}
			su.Ops = append(su.Ops, op)
		}
	default:
		return su, &SpecFormatError{
			Line:    node.Line,
			Message: fmt.Sprintf("updates for scope %q must be a mapping or a sequence of single-entry mappings", key),
		}
	}
	return su, nil
}

func entry(keyNode, valueNode *yaml.Node) (Operation, error) {
	if keyNode.Kind != yaml.ScalarNode {
		return Operation{}, &SpecFormatError{
			Line:    keyNode.Line,
			Message: "attribute name must be a scalar",
		}
	}
	return classify(keyNode.Value, valueNode)
}
