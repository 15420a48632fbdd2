// Package analysis summarizes simulated converter traces.
//
//   - [Spectrum]: magnitude spectrum of a sampled series, e.g. to find a
//     limit cycle in the output voltage
//   - [AnalyzeStep]: overshoot, settling time and final error after an event
//   - [NewPhasePortrait]: inductor current against output voltage
//   - [Sweep]: one coefficient swept over a range, recording the values the
//     output settles to
//
// A controller that hunts shows up as a dominant spectral line:
//
//	spec, err := analysis.Spectrum(times, vout)
//	if err == nil && spec.Dominant().Magnitude > 0.05 {
//	    // oscillating
//	}
package analysis
