// Package timer emulates the PWM and control timers of a microcontroller.
package timer

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/sim"
)

// DefaultClock is the timer input clock of the target microcontroller.
const DefaultClock = 84e6

var ErrInvalidReload = errors.New("timer: reload must be positive")

// Timer models a free-running counter with compare channels, the way a
// PWM/ADC timer peripheral behaves. Compare matches and period rollovers
// are emitted as events to the handler.
type Timer struct {
	sim.BaseElement

	ClockFrequency float64
	Prescale       int64
	Reload         int64

	name     string
	circuit  *sim.Circuit
	handler  sim.EventHandler
	channels []*Channel

	lastCycleStart float64
	nextCycleStart float64
}

// Channel is one compare channel. Changes to Compare and Disable take
// effect at the next period boundary.
type Channel struct {
	Compare int64
	Disable bool

	index          int
	nextCompare    float64
	matched        bool
	disableApplied bool
}

func (ch *Channel) Index() int { return ch.index }

// DisableApplied reports the disable flag latched at the start of the
// current period.
func (ch *Channel) DisableApplied() bool { return ch.disableApplied }

// New creates a timer registered with c. Events go to h.
func New(c *sim.Circuit, name string, h sim.EventHandler) *Timer {
	t := &Timer{
		ClockFrequency: DefaultClock,
		name:           name,
		circuit:        c,
		handler:        h,
	}
	c.Register(t)
	return t
}

func (t *Timer) Name() string { return t.name }

func (t *Timer) AddChannel() *Channel {
	ch := &Channel{index: len(t.channels)}
	t.channels = append(t.channels, ch)
	return ch
}

func (t *Timer) Channels() []*Channel { return t.channels }

// Apply loads prescale and reload from v. Compare values are per channel.
// A non-positive reload is rejected and leaves the timer unchanged.
func (t *Timer) Apply(v Values) error {
	if v.Reload <= 0 {
		return errors.Wrapf(ErrInvalidReload, "%s: reload=%d", t.name, v.Reload)
	}
	t.Prescale = v.Prescale
	t.Reload = v.Reload
	return nil
}

func (t *Timer) tick() float64 {
	return float64(t.Prescale+1) / t.ClockFrequency
}

// Period returns the period length for the current prescale and reload.
func (t *Timer) Period() float64 {
	return t.tick() * float64(t.Reload)
}

// CycleStart returns the start instant of the current period.
func (t *Timer) CycleStart() float64 { return t.lastCycleStart }

func (t *Timer) PostInitialize() error {
	if t.Reload <= 0 {
		return errors.Wrapf(ErrInvalidReload, "%s: reload=%d", t.name, t.Reload)
	}
	if t.ClockFrequency <= 0 || t.Prescale < 0 {
		return errors.Errorf("%s: invalid clock %g Hz / prescale %d", t.name, t.ClockFrequency, t.Prescale)
	}
	t.updateInstants()
	return nil
}

func (t *Timer) updateInstants() {
	tick := t.tick()
	t.nextCycleStart = t.lastCycleStart + tick*float64(t.Reload)
	for _, ch := range t.channels {
		ch.disableApplied = ch.Disable
		ch.nextCompare = t.lastCycleStart + tick*float64(ch.Compare)
		ch.matched = false
	}
}

func (t *Timer) StepEndTime(stepStart float64) (float64, bool) {
	if t.Reload <= 0 {
		// a reload zeroed mid-run has no next period
		return math.NaN(), true
	}
	end, ok := 0.0, false
	if stepStart < t.nextCycleStart {
		end, ok = t.nextCycleStart, true
	}
	for _, ch := range t.channels {
		if ch.matched || stepStart >= ch.nextCompare {
			continue
		}
		if !ok || ch.nextCompare < end {
			end, ok = ch.nextCompare, true
		}
	}
	return end, ok
}

func (t *Timer) Run(stepStart, stepEnd, dt float64) {
	for _, ch := range t.channels {
		if !ch.matched && stepEnd >= ch.nextCompare && !ch.disableApplied {
			ch.matched = true
			t.circuit.Emit(t.handler, sim.Event{Source: t, Channel: ch.index, Kind: sim.EventCompare, Instant: stepEnd})
		}
	}
	if stepEnd >= t.nextCycleStart {
		t.lastCycleStart = t.nextCycleStart
		t.updateInstants()
		t.circuit.Emit(t.handler, sim.Event{Source: t, Channel: -1, Kind: sim.EventReload, Instant: stepEnd})
	}
}
