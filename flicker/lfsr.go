// Package flicker implements the candle animation: a Galois LFSR that picks
// brightness/duration pairs and a software PWM strobe that renders them on a
// single on/off LED.
//
// The package does not import machine so it can be tested on the host. Boards
// plug in through the Pin, Watchdog and Delayer interfaces.
package flicker

// Taps is the feedback mask for the polynomial x^32 + x^31 + x^29 + x + 1.
const Taps uint32 = 0xD0000001

// Galois advances state by one step of a right-shifting Galois LFSR with the
// given feedback mask.
func Galois(state, taps uint32) uint32 {
	return (state >> 1) ^ (-(state & 1) & taps)
}

// LFSR is the pseudo-random state driving the flicker. The zero value is not
// usable; create one with NewLFSR.
type LFSR struct {
	state uint32
}

// NewLFSR seeds a generator. Zero is a fixed point of the recurrence, so a
// zero seed is replaced by 1.
func NewLFSR(seed uint32) LFSR {
	if seed == 0 {
		seed = 1
	}
	return LFSR{state: seed}
}

// Next returns the generator advanced by one step.
func (l LFSR) Next() LFSR {
	return LFSR{state: Galois(l.state, Taps)}
}

// Skip returns the generator advanced by n steps.
func (l LFSR) Skip(n int) LFSR {
	for i := 0; i < n; i++ {
		l = l.Next()
	}
	return l
}

// Value returns the raw 32-bit state.
func (l LFSR) Value() uint32 { return l.state }

// Frame returns the brightness/duration pair encoded in the current state.
func (l LFSR) Frame() Frame { return FrameOf(l.state) }
