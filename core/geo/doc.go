// Package geo provides distance and travel-time estimates between two
// coordinates. Implementations are treated as bounded-latency external calls
// by the dispatch core and are never invoked while a store lock is held.
package geo
