// Package benchmark provides performance benchmarks for tillvault.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// The benchmarks open a real Badger store on a temp directory, so
// figures include storage round trips, not just in-memory work.
package benchmark
