package flicker

import "strconv"

const (
	durationShift = 20
	durationMask  = 31

	// The brightness field is bits 24-31. Older notes described it as a
	// 6-bit field (0-63); the 8-bit mask is what the animation has always used.
	brightnessShift = 24
	brightnessMask  = 255
)

// Frame is one steady-state flicker step.
type Frame struct {
	// Duration is the number of extra strobe cycles to hold Brightness (0-31).
	Duration uint16
	// Brightness is the on-time of each strobe cycle in ticks out of 256.
	Brightness uint8
}

// FrameOf extracts a frame from an LFSR state.
func FrameOf(state uint32) Frame {
	return Frame{
		Duration:   uint16((state >> durationShift) & durationMask),
		Brightness: uint8((state >> brightnessShift) & brightnessMask),
	}
}

// Cycles is the number of strobe cycles the frame is shown for.
func (f Frame) Cycles() int { return int(f.Duration) + 1 }

func (f Frame) String() string {
	return "frame{duration=" + strconv.Itoa(int(f.Duration)) +
		" brightness=" + strconv.Itoa(int(f.Brightness)) + "}"
}
