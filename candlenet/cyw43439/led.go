//go:build pico || pico_w

package cyw43439

import "log/slog"

// ledGPIO is the radio GPIO the Pico W's onboard LED hangs off.
const ledGPIO = 0

// LED is the Pico W onboard LED. It satisfies flicker.Pin.
type LED struct {
	stack  *Stack
	failed uint32
}

// LED returns the onboard LED of an initialized radio.
func (s *Stack) LED() *LED {
	return &LED{stack: s}
}

// Configure is a no-op: the radio GPIO is always an output.
func (l *LED) Configure() {}

// Set drives the LED. Failures are counted, and the first one is logged; the
// strobe loop has no way to act on them.
func (l *LED) Set(on bool) {
	err := l.stack.dev.GPIOSet(ledGPIO, on)
	if err == nil {
		return
	}
	if l.failed == 0 {
		l.stack.log.Error("led:gpio-set", slog.String("err", err.Error()))
	}
	l.failed++
}

// Failures returns how many LED writes the radio rejected.
func (l *LED) Failures() uint32 { return l.failed }
