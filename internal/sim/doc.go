// Package sim provides the event-driven simulation core for switched-mode
// power converters.
//
// The package defines the primitives every scenario is built from:
//
//   - [Value]: double-buffered shared state cell, committed once per step
//   - [Element]: lifecycle contract for anything that takes part in a step
//   - [Circuit]: owns the elements and values of one scenario instance
//   - [Simulator]: earliest-deadline-first event loop driving one circuit
//   - [Trace]: coarse-cadence sink collecting averaged samples
//
// # Stepping
//
// Instead of a fixed time grid, every element reports the next instant at
// which its state changes discontinuously (a timer compare match, a
// profile breakpoint, the inductor current reaching zero). The simulator
// advances to the earliest of these instants, runs every element across
// the step, dispatches timer events and commits all values at once.
//
//	c := sim.NewCircuit("boost")
//	// ... construct elements registered into c
//	res, err := sim.New().Simulate(ctx, c, sim.Config{FinalTime: 0.05}, trace)
//
// # Thread Safety
//
// A circuit and its elements are owned by one goroutine for the duration
// of a run. Parallel evaluation builds one circuit per goroutine.
package sim
