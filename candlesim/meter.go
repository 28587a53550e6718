package main

import (
	"strings"
	"time"
)

// meter stands in for the LED pin and the tick timer. It integrates how
// long the LED was on so the simulator can show perceived brightness.
type meter struct {
	tick time.Duration
	// sleep is time.Sleep outside of tests.
	sleep func(time.Duration)

	configured bool
	on         bool
	onTicks    uint64
	allTicks   uint64
}

func newMeter(tick time.Duration) *meter {
	return &meter{tick: tick, sleep: time.Sleep}
}

func (m *meter) Configure() { m.configured = true }

func (m *meter) Set(on bool) { m.on = on }

// Disable satisfies flicker.Watchdog; a workstation has nothing to disable.
func (m *meter) Disable() {}

func (m *meter) Delay(ticks uint16) {
	m.allTicks += uint64(ticks)
	if m.on {
		m.onTicks += uint64(ticks)
	}
	if m.tick > 0 {
		m.sleep(time.Duration(ticks) * m.tick)
	}
}

// take returns the duty cycle since the last call and resets the meter.
func (m *meter) take() float64 {
	if m.allTicks == 0 {
		return 0
	}
	duty := float64(m.onTicks) / float64(m.allTicks)
	m.onTicks, m.allTicks = 0, 0
	return duty
}

// bar draws duty as a bar of width characters.
func bar(duty float64, width int) string {
	if duty < 0 {
		duty = 0
	}
	if duty > 1 {
		duty = 1
	}
	n := int(duty*float64(width) + 0.5)
	return strings.Repeat("#", n) + strings.Repeat(".", width-n)
}
