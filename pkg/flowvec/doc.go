// Package flowvec converts VIC routing direction grids into normalized
// eastward/northward vector component grids suitable for ncWMS display.
package flowvec
