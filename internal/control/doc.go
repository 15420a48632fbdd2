// Package control provides digital control laws for the boost converter.
//
// Every law runs the way the firmware would: a PWM timer generates the
// switch signal and triggers ADC conversions, a slower control timer runs
// the control routine, and measurements are only read through the ADC
// history queues including conversion noise.
//
//   - [PID]: duty-cycle PID in the integer ADC domain with anti-windup
//   - [COT]: constant on-time with a cycle-skipping mode for light loads
//   - [StepUpDown]: bang-bang duty stepping, the simplest baseline
//
// # Usage
//
//	conv := power.NewConverter("scenario")
//	law := control.NewPID(conv)
//	law.Target().Set(0, 12)
//	if err := law.InitializeSteadyState(); err != nil { ... }
//	_, err := sim.New().Simulate(ctx, conv.Circuit, sim.Config{FinalTime: law.SimulationDuration()})
//
// Laws implementing GetParams and SetParam support manual tuning from the
// command line; [Optimize] tunes the parameters declared by Parameters.
package control
