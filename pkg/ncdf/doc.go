// Package ncdf provides access to NetCDF (classic format) datasets for the
// data-prep tools: an attribute store abstraction over global and per-variable
// metadata, a file-backed implementation that rewrites the dataset on save,
// an in-memory implementation for tests, and CF-convention helpers (dependent
// variable discovery, time coordinate decoding, CMOR filename assembly).
package ncdf
