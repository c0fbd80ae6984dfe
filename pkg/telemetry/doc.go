// Package telemetry configures structured logging for the data
// preparation tools.
package telemetry
