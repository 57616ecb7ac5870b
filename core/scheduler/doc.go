// Package scheduler periodically assigns pending orders. Each tick runs one
// batch over every pending order with the configured strategy; ticks never
// overlap and a panicking run is reported to the monitor without stopping
// the loop.
package scheduler
