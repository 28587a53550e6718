//go:build rp2040 || rp2350

package main

import (
	"log/slog"
	"machine"
	"runtime/volatile"
	"strconv"
)

// Set with -ldflags="-X main.spinsPerTick=40". One tick should be a few
// microseconds so a 256 tick strobe cycle stays well above flicker fusion.
var spinsPerTick string

const defaultSpinsPerTick = 40

// ledPin adapts machine.Pin to flicker.Pin.
type ledPin struct {
	machine.Pin
}

func (p ledPin) Configure() {
	p.Pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
}

// rp2Watchdog is a no-op: the RP2 watchdog is stopped after reset and TinyGo
// only starts it when asked to.
type rp2Watchdog struct {
	logger *slog.Logger
}

func (w rp2Watchdog) Disable() {
	w.logger.Debug("watchdog:disabled")
}

var sink uint32

// spin burns roughly n loop iterations. The volatile store keeps the
// compiler from removing the loop.
func spin(n uint32) {
	for i := uint32(0); i < n; i++ {
		volatile.StoreUint32(&sink, i)
	}
}

// tickSpins parses spinsPerTick, falling back to the default.
func tickSpins(logger *slog.Logger) uint32 {
	if spinsPerTick == "" {
		return defaultSpinsPerTick
	}
	n, err := strconv.ParseUint(spinsPerTick, 10, 32)
	if err != nil || n == 0 {
		logger.Error("config:spinsPerTick", slog.String("value", spinsPerTick))
		return defaultSpinsPerTick
	}
	return uint32(n)
}
