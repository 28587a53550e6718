//go:build rp2040 || rp2350

// candlepwm renders the candle flicker with a hardware PWM slice instead of
// strobing the pin in software. A potentiometer on ADC0 sets the tick length,
// which speeds up or slows down the flicker.
package main

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"github.com/harveysanders/picocandle/flicker"
)

const (
	max16Bit uint16 = 65535 // Max ADC value.

	// Tick length range selected by the potentiometer. At minTick a full
	// 256 tick cycle is ~1.3ms, close to the original strobe rate.
	minTick = 5 * time.Microsecond
	maxTick = 40 * time.Microsecond
)

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	led := machine.GP15
	machine.InitADC()
	knob := machine.ADC{Pin: machine.ADC0}
	knob.Configure(machine.ADCConfig{})

	// GP14/GP15 are driven by PWM slice 7 on the RP2350/RP2040.
	pwm := machine.PWM7
	err := pwm.Configure(machine.PWMConfig{
		// 2kHz carrier, far above visible flicker.
		Period: uint64(time.Second) / 2000,
	})
	if err != nil {
		printErrForever(logger, "configure PWM", slog.Any("reason", err))
	}

	ch, err := pwm.Channel(led)
	if err != nil {
		printErrForever(logger, "get PWM channel for pin", slog.Any("reason", err))
	}

	d := dimmer{
		set: func(b uint8) {
			pwm.Set(ch, pwm.Top()*uint32(b)/255)
		},
		tick: func() time.Duration {
			return tickFromKnob(knob.Get())
		},
	}

	c := flicker.New(
		d,
		noWatchdog{},
		flicker.DelayFunc(func(ticks uint16) {
			time.Sleep(time.Duration(ticks) * d.tick())
		}),
		flicker.WithLogger(logger),
		flicker.WithRenderer(d.show),
		// ~100ms, like the 100000-iteration spin on the original part.
		flicker.WithSettleSpin(func() { time.Sleep(time.Microsecond) }),
	)
	c.Run(context.Background())
}

// dimmer is the LED behind a PWM channel. As a flicker.Pin it switches
// between full and zero duty; as a renderer it holds a frame's duty for as
// long as the software strobe would have shown it.
type dimmer struct {
	set  func(brightness uint8)
	tick func() time.Duration
}

// Configure is a no-op: the PWM slice owns the pin.
func (d dimmer) Configure() {}

func (d dimmer) Set(on bool) {
	if on {
		d.set(255)
		return
	}
	d.set(0)
}

func (d dimmer) show(f flicker.Frame) {
	d.set(f.Brightness)
	time.Sleep(time.Duration(f.Cycles()*flicker.CycleTicks) * d.tick())
}

// noWatchdog stands in for the RP2 watchdog, which is stopped after reset.
type noWatchdog struct{}

func (noWatchdog) Disable() {}

// tickFromKnob maps a raw ADC reading onto [minTick, maxTick].
func tickFromKnob(val uint16) time.Duration {
	span := maxTick - minTick
	return minTick + span*time.Duration(val)/time.Duration(max16Bit)
}

// printErrForever logs msg @ 1hz. It blocks forever.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
