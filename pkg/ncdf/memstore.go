package ncdf

// MemStore is an in-memory AttributeStore. It backs tests and any caller
// that wants update-engine semantics without a file on disk.
type MemStore struct {
	global   *attrTable
	vars     map[string]*attrTable
	varOrder []string
}

// NewMemStore creates an empty store containing the given variables.
func NewMemStore(variables ...string) *MemStore {
	s := &MemStore{
		global: newAttrTable(),
		vars:   make(map[string]*attrTable),
	}
	for _, v := range variables {
		s.AddVariable(v)
	}
	return s
}

// AddVariable registers a variable scope. Adding an existing variable is a
// no-op.
func (s *MemStore) AddVariable(name string) {
	if _, ok := s.vars[name]; ok {
		return
	}
	s.vars[name] = newAttrTable()
	s.varOrder = append(s.varOrder, name)
}

func (s *MemStore) table(scope Scope) (*attrTable, error) {
	if scope == Global {
		return s.global, nil
	}
	t, ok := s.vars[string(scope)]
	if !ok {
		return nil, &UnknownVariableError{Variable: string(scope)}
	}
	return t, nil
}

// HasAttribute implements AttributeStore.
func (s *MemStore) HasAttribute(scope Scope, name string) bool {
	t, err := s.table(scope)
	if err != nil {
		return false
	}
	return t.has(name)
}

// GetAttribute implements AttributeStore.
func (s *MemStore) GetAttribute(scope Scope, name string) (interface{}, error) {
	t, err := s.table(scope)
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
func (s *MemStore) SetAttribute(scope Scope, name string, value interface{}) error {
	t, err := s.table(scope)
	if err != nil {
		return err
	}
	t.set(name, value)
	return nil
}

// DeleteAttribute implements AttributeStore.
func (s *MemStore) DeleteAttribute(scope Scope, name string) error {
	t, err := s.table(scope)
	if err != nil {
		return err
	}
	if !t.delete(name) {
		return &NotFoundError{Scope: scope, Name: name}
	}
	return nil
}

// ListAttributes implements AttributeStore.
func (s *MemStore) ListAttributes(scope Scope) (map[string]interface{}, error) {
	t, err := s.table(scope)
	if err != nil {
		return nil, err
	}
	return t.snapshot(), nil
}

// ListVariables implements AttributeStore.
func (s *MemStore) ListVariables() []string {
	out := make([]string, len(s.varOrder))
	copy(out, s.varOrder)
	return out
}
