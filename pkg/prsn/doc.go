// Package prsn derives precipitation-as-snow data from precipitation and
// daily temperature extremes: precipitation falling where the mean of
// tasmin and tasmax is below freezing is counted as snowfall.
package prsn
