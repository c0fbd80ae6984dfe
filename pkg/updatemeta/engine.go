package updatemeta

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
)

// globalScopeKey is the specification key addressing the dataset's global
// attributes.
const globalScopeKey = "global"

// Diagnostic records one operation or scope that could not be applied. The
// run continues past every diagnostic.
type Diagnostic struct {
	Scope     string
	Attribute string
	Raw       string
	Err       error
}

// String renders the diagnostic for the run summary.
func (d Diagnostic) String() string {
	if d.Attribute == "" {
		return fmt.Sprintf("scope %q: %v", d.Scope, d.Err)
	}
	return fmt.Sprintf("scope %q, attribute %q: %v", d.Scope, d.Attribute, d.Err)
}

// Report summarizes one engine run.
type Report struct {
	// RunID identifies the run in logs and diagnostics.
	RunID string

	// Applied counts operations that mutated the store.
	Applied int

	// Skipped counts operations that failed and were recorded as
	// diagnostics.
	Skipped int

	Diagnostics []Diagnostic
}

// Engine applies a parsed update specification to an attribute store.
// Operations execute sequentially, scope by scope, each against the live
// state of the store: a mutation made by one operation is visible to the
// evaluation context of every later operation. A failed operation never
// aborts the run and successful operations are never rolled back.
type Engine struct {
	store ncdf.AttributeStore
	eval  *Evaluator
	log   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithDatasetContext exposes dataset-level bindings (filepath,
// dependent_varnames) to expressions.
func WithDatasetContext(ds DatasetContext) Option {
	return func(e *Engine) { e.eval = NewEvaluator(ds) }
}

// NewEngine creates an engine that mutates store.
func NewEngine(store ncdf.AttributeStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		eval:  NewEvaluator(nil),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run applies every scope's every operation exactly once and returns the
// accumulated report. The only failure mode is the report's diagnostics;
// Run itself does not return an error.
func (e *Engine) Run(spec *Spec) *Report {
	report := &Report{RunID: uuid.NewString()}
	log := e.log.With().Str("run_id", report.RunID).Logger()

	for _, su := range spec.Scopes {
		scope, err := e.resolveScope(su.Key)
		if err != nil {
			log.Warn().Str("scope", su.Key).Err(err).Msg("skipping scope")
			report.Skipped += len(su.Ops)
			report.Diagnostics = append(report.Diagnostics, Diagnostic{Scope: su.Key, Err: err})
			continue
		}
		log.Info().Str("scope", scope.String()).Int("operations", len(su.Ops)).Msg("processing scope")
		for _, op := range su.Ops {
			if err := e.apply(scope, op, log); err != nil {
				report.Skipped++
				report.Diagnostics = append(report.Diagnostics, Diagnostic{
					Scope:     scope.String(),
					Attribute: op.Name,
					Raw:       op.Raw,
					Err:       err,
				})
			} else {
				report.Applied++
			}
		}
	}
	return report
}

// resolveScope maps a specification scope key onto a store scope. Keys
// beginning with "=" are evaluated as expressions against the global
// scope's attributes; the result must name a variable or "global".
func (e *Engine) resolveScope(key string) (ncdf.Scope, error) {
	if strings.HasPrefix(key, expressionPrefix) {
		attrs, err := e.store.ListAttributes(ncdf.Global)
		if err != nil {
			return ncdf.Global, err
		}
		result, err := e.eval.Eval(key[len(expressionPrefix):], attrs)
		if err != nil {
			return ncdf.Global, err
		}
		name, ok := result.(string)
		if !ok {
			return ncdf.Global, fmt.Errorf("scope expression %q evaluated to %T, not a string", key, result)
		}
		key = name
	}
	if key == globalScopeKey {
		return ncdf.Global, nil
	}
	for _, v := range e.store.ListVariables() {
		if v == key {
			return ncdf.Scope(key), nil
		}
	}
	return ncdf.Global, &ncdf.UnknownVariableError{Variable: key}
}

func (e *Engine) apply(scope ncdf.Scope, op Operation, log zerolog.Logger) error {
	log = log.With().Str("scope", scope.String()).Str("attribute", op.Name).Logger()
	switch op.Kind {
	case OpDelete:
		if err := e.store.DeleteAttribute(scope, op.Name); err != nil {
			log.Warn().Err(err).Msg("delete skipped")
			return err
		}
		log.Info().Msg("deleted attribute")
		return nil

	case OpSetLiteral:
		if err := e.store.SetAttribute(scope, op.Name, op.Value); err != nil {
			return err
		}
		log.Info().Interface("value", op.Value).Msg("set attribute")
		return nil

	case OpSetExpression:
		attrs, err := e.store.ListAttributes(scope)
		if err != nil {
			return err
		}
		value, err := e.eval.Eval(op.Expression, attrs)
		if err != nil {
			log.Warn().Err(err).Msg("expression skipped")
			return err
		}
		if err := e.store.SetAttribute(scope, op.Name, value); err != nil {
			return err
		}
		log.Info().Str("expression", op.Expression).Interface("value", value).Msg("set attribute from expression")
		return nil

	case OpRename:
		value, err := e.store.GetAttribute(scope, op.OldName)
		if err != nil {
			log.Warn().Str("old_name", op.OldName).Err(err).Msg("rename skipped")
			return err
		}
		if err := e.store.SetAttribute(scope, op.Name, value); err != nil {
			return err
		}
		if err := e.store.DeleteAttribute(scope, op.OldName); err != nil {
			return err
		}
		log.Info().Str("old_name", op.OldName).Msg("renamed attribute")
		return nil
	}
	return fmt.Errorf("unknown operation kind %v", op.Kind)
}
