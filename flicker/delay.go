package flicker

// CycleTicks is the fixed length of one strobe cycle. Brightness b keeps the
// LED on for b ticks and off for CycleTicks-b ticks.
const CycleTicks = 256

// Delayer blocks for a number of ticks. It is the only timing primitive the
// candle uses.
type Delayer interface {
	Delay(ticks uint16)
}

// DelayFunc adapts a plain function to a Delayer.
type DelayFunc func(ticks uint16)

// Delay calls f(ticks).
func (f DelayFunc) Delay(ticks uint16) { f(ticks) }

// BusyWait calls spin counter+1 times. A counter of 0 still spins once.
func BusyWait(counter uint8, spin func()) {
	for {
		spin()
		if counter == 0 {
			return
		}
		counter--
	}
}

// Spinner is a Delayer that counts ticks on an 8-bit counter with BusyWait.
// Requests are truncated to 8 bits, so a full-cycle request of 256 ticks
// spins once.
type Spinner struct {
	// Spin burns one tick worth of cycles.
	Spin func()
}

// Delay busy-waits on the low 8 bits of ticks.
func (s Spinner) Delay(ticks uint16) {
	BusyWait(uint8(ticks), s.Spin)
}
