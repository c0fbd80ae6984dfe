// Package updatemeta implements the metadata update engine: it parses a
// declarative YAML attribute-update specification and applies delete, set,
// rename, and expression-evaluation operations to the global and
// per-variable attributes of a NetCDF dataset.
//
// Operations are classified from the raw shape of each entry's value: an
// empty value deletes the attribute, a "<-" prefix renames it, a "=" prefix
// evaluates the remainder as a Starlark expression against the target
// scope's current attributes, and anything else sets a literal whose type
// follows YAML scalar resolution (unquoted numerals become numbers, quoted
// numerals stay strings).
//
// The engine applies operations one at a time against live store state and
// never aborts a run for a single failed operation: failures are recorded
// as diagnostics and processing continues.
package updatemeta
