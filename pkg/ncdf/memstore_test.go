package ncdf

import (
	"errors"
	"reflect"
	"testing"
)

func TestMemStore_AttributeLifecycle(t *testing.T) {
	s := NewMemStore("tasmax")

	if s.HasAttribute(Global, "title") {
		t.Error("new store must be empty")
	}
	if err := s.SetAttribute(Global, "title", "test dataset"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := s.GetAttribute(Global, "title")
	if err != nil || v != "test dataset" {
		t.Errorf("get = %v, %v", v, err)
	}

	// Overwrite keeps a single entry.
	s.SetAttribute(Global, "title", "renamed")
	attrs, _ := s.ListAttributes(Global)
	if len(attrs) != 1 || attrs["title"] != "renamed" {
		t.Errorf("attrs = %v", attrs)
	}

	if err := s.DeleteAttribute(Global, "title"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteAttribute(Global, "title"); !errors.Is(err, &NotFoundError{}) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestMemStore_VariableScopes(t *testing.T) {
	s := NewMemStore("tasmax", "pr")

	if got, want := s.ListVariables(), []string{"tasmax", "pr"}; !reflect.DeepEqual(got, want) {
		t.Errorf("variables = %v, want %v", got, want)
	}

	if err := s.SetAttribute(Scope("tasmax"), "units", "K"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if s.HasAttribute(Scope("pr"), "units") {
		t.Error("attribute must be scoped to its variable")
	}

	if err := s.SetAttribute(Scope("nope"), "units", "K"); !errors.Is(err, &UnknownVariableError{}) {
		t.Errorf("expected UnknownVariableError, got %v", err)
	}
	if _, err := s.ListAttributes(Scope("nope")); !errors.Is(err, &UnknownVariableError{}) {
		t.Errorf("expected UnknownVariableError, got %v", err)
	}
}

func TestMemStore_ListAttributesIsACopy(t *testing.T) {
	s := NewMemStore()
	s.SetAttribute(Global, "a", int64(1))
	attrs, _ := s.ListAttributes(Global)
	attrs["a"] = int64(99)
	v, _ := s.GetAttribute(Global, "a")
	if v != int64(1) {
		t.Error("mutating the listed map must not affect the store")
	}
}

func TestScopeString(t *testing.T) {
	if Global.String() != "global" {
		t.Errorf("global scope renders as %q", Global.String())
	}
	if Scope("tasmax").String() != "tasmax" {
		t.Errorf("variable scope renders as %q", Scope("tasmax").String())
	}
}
