// Package climo computes climatological aggregates (multi-year means,
// standard deviations, minima, maxima) over the time axis of climate model
// output, and splits merged multi-interval climatology files into
// single-interval files. Output files are named with the CMOR filename
// convention.
package climo
