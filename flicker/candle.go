package flicker

import (
	"context"
	"io"
	"log/slog"
)

const (
	// SettleIterations is the length of the power-on busy wait.
	SettleIterations = 100000
	// FastForwardSteps is how far the sequence is advanced after the ramp so
	// the flicker does not start from a visible pattern.
	FastForwardSteps = 255
	// RampSeed is the default generator seed. The fast-forward starts from it.
	RampSeed = 1
)

// Pin is a single digital output.
type Pin interface {
	// Configure puts the pin in output mode.
	Configure()
	Set(on bool)
}

// Watchdog is the board's watchdog timer.
type Watchdog interface {
	Disable()
}

// Phase is the candle's position in its startup sequence.
type Phase uint8

const (
	PhaseOff Phase = iota
	PhaseSettle
	PhaseRamp
	PhaseFastForward
	PhaseFlicker
)

func (p Phase) String() string {
	switch p {
	case PhaseOff:
		return "off"
	case PhaseSettle:
		return "settle"
	case PhaseRamp:
		return "ramp"
	case PhaseFastForward:
		return "fast-forward"
	case PhaseFlicker:
		return "flicker"
	}
	return "unknown"
}

// Event is passed to the observer after every strobe during the ramp and
// flicker phases.
type Event struct {
	Phase Phase
	// Step counts strobes within the phase, starting at 0.
	Step  uint32
	Frame Frame
	// State is the LFSR value the frame was taken from. Zero during the ramp.
	State uint32
}

// Option configures a Candle.
type Option func(*Candle)

// WithLogger sets the logger used for phase transitions.
func WithLogger(l *slog.Logger) Option {
	return func(c *Candle) { c.log = l }
}

// WithObserver registers a callback invoked after each strobe. It runs on the
// strobe loop and must return quickly.
func WithObserver(fn func(Event)) Option {
	return func(c *Candle) { c.observe = fn }
}

// WithSeed sets the seed the fast-forward starts from. Different seeds give
// different flicker sequences; zero is treated as 1.
func WithSeed(seed uint32) Option {
	return func(c *Candle) {
		c.seed = seed
		c.lfsr = NewLFSR(seed)
	}
}

// WithRenderer replaces the software strobe: ramp and flicker frames are
// handed to fn instead, which must hold each frame for its full length. Use
// it for outputs with their own dimming, such as a hardware PWM slice.
func WithRenderer(fn func(Frame)) Option {
	return func(c *Candle) { c.render = fn }
}

// WithSettleSpin sets the function burned SettleIterations times while the
// LED settles after power-on.
func WithSettleSpin(spin func()) Option {
	return func(c *Candle) { c.settleSpin = spin }
}

// Candle drives one LED through the startup sequence and the endless flicker.
type Candle struct {
	pin   Pin
	wd    Watchdog
	delay Delayer

	seed  uint32
	lfsr  LFSR
	ctr   uint8
	phase Phase
	step  uint32

	started    bool
	settleSpin func()
	render     func(Frame)
	observe    func(Event)
	log        *slog.Logger
}

// New returns a Candle. Nothing touches the hardware until Configure or Start.
func New(pin Pin, wd Watchdog, d Delayer, opts ...Option) *Candle {
	c := &Candle{
		pin:        pin,
		wd:         wd,
		delay:      d,
		seed:       RampSeed,
		lfsr:       NewLFSR(RampSeed),
		settleSpin: func() {},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return c
}

// Configure disables the watchdog and sets the LED pin to output.
func (c *Candle) Configure() {
	c.wd.Disable()
	c.pin.Configure()
}

// SetLED turns the LED on or off.
func (c *Candle) SetLED(on bool) {
	c.pin.Set(on)
}

// Strobe shows brightness for duration+1 cycles of CycleTicks ticks and
// returns brightness.
func (c *Candle) Strobe(duration uint16, brightness uint8) uint8 {
	for n := int(duration); n >= 0; n-- {
		c.pin.Set(true)
		c.delay.Delay(uint16(brightness))

		c.pin.Set(false)
		c.delay.Delay(CycleTicks - uint16(brightness))
	}
	return brightness
}

// Settle holds the LED off for SettleIterations spins.
func (c *Candle) Settle() {
	c.enter(PhaseSettle)
	c.pin.Set(false)
	for i := 0; i < SettleIterations; i++ {
		c.settleSpin()
	}
}

// RampUp lights the candle from brightness 0 to 255, one cycle per step.
func (c *Candle) RampUp() {
	c.enter(PhaseRamp)
	c.ctr = 0
	for {
		b := c.ctr
		c.ctr++
		got := c.show(Frame{Brightness: b})
		c.notify(Frame{Brightness: got}, 0)
		if got >= 255 {
			return
		}
	}
}

// FastForward reseeds the generator from the configured seed and advances
// it FastForwardSteps times without driving the LED.
func (c *Candle) FastForward() {
	c.enter(PhaseFastForward)
	c.lfsr = NewLFSR(c.seed).Skip(FastForwardSteps)
	c.log.Debug("candle:fast-forward", slog.Uint64("state", uint64(c.lfsr.Value())))
}

// Start runs Configure, Settle, RampUp and FastForward once. Later calls do
// nothing.
func (c *Candle) Start() {
	if c.started {
		return
	}
	c.started = true
	c.Configure()
	c.Settle()
	c.RampUp()
	c.FastForward()
	c.enter(PhaseFlicker)
}

// Step advances the generator and strobes the resulting frame.
func (c *Candle) Step() Frame {
	c.lfsr = c.lfsr.Next()
	f := c.lfsr.Frame()
	c.show(f)
	c.notify(f, c.lfsr.Value())
	return f
}

// Run starts the candle and flickers until ctx is done.
func (c *Candle) Run(ctx context.Context) error {
	c.Start()
	done := ctx.Done()
	for {
		select {
		case <-done:
			c.pin.Set(false)
			c.log.Info("candle:stopped", slog.Uint64("steps", uint64(c.step)))
			return ctx.Err()
		default:
		}
		c.Step()
	}
}

// State returns the current generator.
func (c *Candle) State() LFSR { return c.lfsr }

// Phase returns the current phase.
func (c *Candle) Phase() Phase { return c.phase }

// show renders f with the configured renderer, or strobes it.
func (c *Candle) show(f Frame) uint8 {
	if c.render != nil {
		c.render(f)
		return f.Brightness
	}
	return c.Strobe(f.Duration, f.Brightness)
}

func (c *Candle) enter(p Phase) {
	c.phase = p
	c.step = 0
	c.log.Info("candle:phase", slog.String("phase", p.String()))
}

func (c *Candle) notify(f Frame, state uint32) {
	if c.observe != nil {
		c.observe(Event{Phase: c.phase, Step: c.step, Frame: f, State: state})
	}
	c.step++
}
