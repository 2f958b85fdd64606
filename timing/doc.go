// Package timing abstracts the clock for deterministic testing.
//
// Components take a Provider. Production code passes System; tests pass a
// Manual provider and move time forward explicitly:
//
//	tp := timing.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
//	stager, _ := share.NewStager(source, share.Options{TimeProvider: tp})
//	tp.Advance(share.DefaultGraceTimeout) // fires the expiry timers
package timing
