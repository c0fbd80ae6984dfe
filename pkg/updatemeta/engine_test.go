package updatemeta

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
)

func mustParse(t *testing.T, in string) *Spec {
	t.Helper()
	spec, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parsing specification: %v", err)
	}
	return spec
}

func globalAttrs(t *testing.T, store ncdf.AttributeStore) map[string]interface{} {
	t.Helper()
	attrs, err := store.ListAttributes(ncdf.Global)
	if err != nil {
		t.Fatalf("listing global attributes: %v", err)
	}
	return attrs
}

func TestEngine_EndToEnd(t *testing.T) {
	// Given global attributes {foo: "x", qux: "old"} and spec
	// {foo:, bar: 42, baz: <-qux}, the result is {bar: 42, baz: "old"}.
	store := ncdf.NewMemStore()
	store.SetAttribute(ncdf.Global, "foo", "x")
	store.SetAttribute(ncdf.Global, "qux", "old")

	report := NewEngine(store).Run(mustParse(t, `
global:
  foo:
  bar: 42
  baz: <-qux
`))

	if report.Skipped != 0 {
		t.Errorf("expected no skipped operations, got %d: %v", report.Skipped, report.Diagnostics)
	}
	if report.Applied != 3 {
		t.Errorf("expected 3 applied operations, got %d", report.Applied)
	}
	want := map[string]interface{}{"bar": int64(42), "baz": "old"}
	if got := globalAttrs(t, store); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEngine_DeleteAbsentIsDiagnosedNotFatal(t *testing.T) {
	store := ncdf.NewMemStore()
	report := NewEngine(store).Run(mustParse(t, `
global:
  missing:
  present: 1
`))

	if report.Applied != 1 {
		t.Errorf("expected the set to apply, got applied=%d", report.Applied)
	}
	if report.Skipped != 1 || len(report.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got skipped=%d diagnostics=%v",
			report.Skipped, report.Diagnostics)
	}
	if !errors.Is(report.Diagnostics[0].Err, &ncdf.NotFoundError{}) {
		t.Errorf("expected NotFoundError, got %v", report.Diagnostics[0].Err)
	}
}

func TestEngine_RenameMovesValue(t *testing.T) {
	store := ncdf.NewMemStore()
	store.SetAttribute(ncdf.Global, "old_name", "value")
	store.SetAttribute(ncdf.Global, "new_name", "clobbered")

	report := NewEngine(store).Run(mustParse(t, "global:\n  new_name: <-old_name\n"))

	if report.Skipped != 0 {
		t.Fatalf("unexpected diagnostics: %v", report.Diagnostics)
	}
	if store.HasAttribute(ncdf.Global, "old_name") {
		t.Error("old_name must be absent after rename")
	}
	v, err := store.GetAttribute(ncdf.Global, "new_name")
	if err != nil || v != "value" {
		t.Errorf("new_name = %v, %v; want 'value'", v, err)
	}
}

func TestEngine_RenameAbsentSourceIsDiagnosed(t *testing.T) {
	store := ncdf.NewMemStore()
	report := NewEngine(store).Run(mustParse(t, "global:\n  new_name: <-no_such\n"))
	if report.Skipped != 1 {
		t.Fatalf("expected 1 skipped operation, got %d", report.Skipped)
	}
	if store.HasAttribute(ncdf.Global, "new_name") {
		t.Error("failed rename must not create the new name")
	}
}

func TestEngine_ExpressionSeesSiblings(t *testing.T) {
	store := ncdf.NewMemStore()
	store.SetAttribute(ncdf.Global, "institution", "PCIC")

	report := NewEngine(store).Run(mustParse(t, "global:\n  contact: =institution + ' support'\n"))

	if report.Skipped != 0 {
		t.Fatalf("unexpected diagnostics: %v", report.Diagnostics)
	}
	v, _ := store.GetAttribute(ncdf.Global, "contact")
	if v != "PCIC support" {
		t.Errorf("contact = %v, want 'PCIC support'", v)
	}
}

func TestEngine_ExpressionSeesEarlierMutationsInBatch(t *testing.T) {
	// Operations run against live store state, not a snapshot.
	store := ncdf.NewMemStore()
	report := NewEngine(store).Run(mustParse(t, `
global:
  - first: 2
  - second: =first * 21
`))

	if report.Skipped != 0 {
		t.Fatalf("unexpected diagnostics: %v", report.Diagnostics)
	}
	v, _ := store.GetAttribute(ncdf.Global, "second")
	if v != int64(42) {
		t.Errorf("second = %v, want 42", v)
	}
}

func TestEngine_BadExpressionDoesNotAbortBatch(t *testing.T) {
	store := ncdf.NewMemStore()
	store.SetAttribute(ncdf.Global, "keep", "original")

	report := NewEngine(store).Run(mustParse(t, `
global:
  - keep: =undefined_identifier
  - after: 1
`))

	if report.Applied != 1 || report.Skipped != 1 {
		t.Fatalf("got applied=%d skipped=%d, want 1/1", report.Applied, report.Skipped)
	}
	if !errors.Is(report.Diagnostics[0].Err, &EvaluationError{}) {
		t.Errorf("expected EvaluationError, got %v", report.Diagnostics[0].Err)
	}
	// The failed target is left unchanged and the next operation ran.
	if v, _ := store.GetAttribute(ncdf.Global, "keep"); v != "original" {
		t.Errorf("keep = %v, want 'original'", v)
	}
	if !store.HasAttribute(ncdf.Global, "after") {
		t.Error("operation after the failure must still apply")
	}
}

func TestEngine_OrderedOperationsApplyInListedOrder(t *testing.T) {
	store := ncdf.NewMemStore()
	store.SetAttribute(ncdf.Global, "foo", "doomed")
	store.SetAttribute(ncdf.Global, "qux", "moved")

	report := NewEngine(store).Run(mustParse(t, `
global:
  - foo:
  - bar: 42
  - baz: <-qux
`))

	if report.Skipped != 0 {
		t.Fatalf("unexpected diagnostics: %v", report.Diagnostics)
	}
	want := map[string]interface{}{"bar": int64(42), "baz": "moved"}
	if got := globalAttrs(t, store); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEngine_VariableScopes(t *testing.T) {
	store := ncdf.NewMemStore("tasmax", "lat")
	store.SetAttribute(ncdf.Scope("tasmax"), "units", "K")

	report := NewEngine(store).Run(mustParse(t, `
tasmax:
  cell_methods: 'time: maximum'
no_such_var:
  anything: 1
`))

	if report.Applied != 1 {
		t.Errorf("expected 1 applied, got %d", report.Applied)
	}
	// The whole unknown scope is skipped with a diagnostic.
	if report.Skipped != 1 || len(report.Diagnostics) != 1 {
		t.Fatalf("expected unknown scope diagnostic, got %+v", report)
	}
	if !errors.Is(report.Diagnostics[0].Err, &ncdf.UnknownVariableError{}) {
		t.Errorf("expected UnknownVariableError, got %v", report.Diagnostics[0].Err)
	}
	v, _ := store.GetAttribute(ncdf.Scope("tasmax"), "cell_methods")
	if v != "time: maximum" {
		t.Errorf("cell_methods = %v", v)
	}
}

func TestEngine_ExpressionAddressedScope(t *testing.T) {
	store := ncdf.NewMemStore("tasmax")
	store.SetAttribute(ncdf.Global, "target", "tasmax")

	report := NewEngine(store).Run(mustParse(t, "=target:\n  yow: =1+2\n"))

	if report.Skipped != 0 {
		t.Fatalf("unexpected diagnostics: %v", report.Diagnostics)
	}
	v, err := store.GetAttribute(ncdf.Scope("tasmax"), "yow")
	if err != nil || v != int64(3) {
		t.Errorf("yow = %v, %v; want 3", v, err)
	}
}

func TestEngine_Idempotent(t *testing.T) {
	spec := mustParse(t, `
global:
  foo:
  bar: 42
  baz: <-qux
`)
	store := ncdf.NewMemStore()
	store.SetAttribute(ncdf.Global, "foo", "x")
	store.SetAttribute(ncdf.Global, "qux", "old")

	engine := NewEngine(store)
	engine.Run(spec)
	first := globalAttrs(t, store)

	// Re-applying yields the same final attributes; delete-of-absent and
	// rename-of-absent become diagnostics, not changes.
	report := engine.Run(spec)
	second := globalAttrs(t, store)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second run changed attributes: %v != %v", second, first)
	}
	if report.Skipped != 2 {
		t.Errorf("expected delete and rename to be diagnosed on re-run, got %d", report.Skipped)
	}
}

func TestEngine_RunIDAssigned(t *testing.T) {
	report := NewEngine(ncdf.NewMemStore()).Run(&Spec{})
	if report.RunID == "" {
		t.Error("report must carry a run id")
	}
}
