//go:build rp2040 || rp2350

package main

import (
	"context"
	"log/slog"
	"machine"

	"github.com/harveysanders/picocandle/flicker"
)

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	perTick := tickSpins(logger)
	logger.Info("candle:boot", slog.Uint64("spinsPerTick", uint64(perTick)))

	c := flicker.New(
		ledPin{machine.LED},
		rp2Watchdog{logger: logger},
		flicker.Spinner{Spin: func() { spin(perTick) }},
		flicker.WithLogger(logger),
		flicker.WithSettleSpin(func() { spin(1) }),
	)

	// Runs until power is removed.
	c.Run(context.Background())
}
