// candlesim runs the candle flicker on a workstation and draws the LED's
// brightness as a bar per frame.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/harveysanders/picocandle/flicker"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		slog.Error("config", slog.Any("reason", err))
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Error("candlesim", slog.Any("reason", err))
		os.Exit(1)
	}
}

// run flickers until ctx is done or cfg.Frames frames have been shown.
func run(ctx context.Context, cfg Config, out io.Writer, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newMeter(cfg.Tick())
	frames := 0
	var writeErr error

	c := flicker.New(m, m, m,
		flicker.WithSeed(cfg.Seed),
		flicker.WithLogger(logger),
		flicker.WithObserver(func(e flicker.Event) {
			duty := m.take()
			if e.Phase == flicker.PhaseRamp && !cfg.ShowRamp {
				return
			}
			if writeErr == nil {
				writeErr = writeFrame(out, e, duty, cfg.Width)
				if writeErr != nil {
					cancel()
				}
			}
			if e.Phase != flicker.PhaseFlicker {
				return
			}
			frames++
			if cfg.Frames > 0 && frames >= cfg.Frames {
				cancel()
			}
		}),
	)

	err := c.Run(ctx)
	if writeErr != nil {
		return writeErr
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("candlesim:done", slog.Int("frames", frames))
		return nil
	}
	return err
}

func writeFrame(w io.Writer, e flicker.Event, duty float64, width int) error {
	buf := make([]byte, 0, width+48)
	buf = append(buf, e.Phase.String()...)
	buf = append(buf, ' ')
	buf = append(buf, bar(duty, width)...)
	buf = append(buf, " b="...)
	buf = strconv.AppendUint(buf, uint64(e.Frame.Brightness), 10)
	buf = append(buf, " d="...)
	buf = strconv.AppendUint(buf, uint64(e.Frame.Duration), 10)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
