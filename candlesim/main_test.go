package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunGoldenFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickMicros = 0
	cfg.Frames = 3
	cfg.Width = 10

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, &out, quietLogger()))
	assert.Equal(t,
		"flicker #########. b=222 d=9\n"+
			"flicker #######... b=191 d=20\n"+
			"flicker ####...... b=95 d=26\n",
		out.String())
}

func TestRunSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickMicros = 0
	cfg.Frames = 3
	cfg.Width = 10
	cfg.Seed = 0xABCDEF

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, &out, quietLogger()))
	assert.Equal(t,
		"flicker ####...... b=109 d=24\n"+
			"flicker ##........ b=54 d=12\n"+
			"flicker #......... b=27 d=22\n",
		out.String())
}

func TestRunShowRamp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickMicros = 0
	cfg.Frames = 1
	cfg.Width = 4
	cfg.ShowRamp = true

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, &out, quietLogger()))
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 257)
	assert.Equal(t, "ramp .... b=0 d=0", lines[0])
	assert.Equal(t, "ramp #### b=255 d=0", lines[255])
	assert.True(t, strings.HasPrefix(lines[256], "flicker "))
}

func TestRunCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickMicros = 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, run(ctx, cfg, io.Discard, quietLogger()))
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, os.ErrClosed }

func TestRunWriteError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickMicros = 0
	err := run(context.Background(), cfg, failWriter{}, quietLogger())
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candle.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 42\ntick_us: 12\nframes: 100\nlog_level: debug\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Microsecond, cfg.Tick())
	assert.Equal(t, 100, cfg.Frames)
	assert.Equal(t, uint32(42), cfg.Seed)
	assert.Equal(t, 48, cfg.Width, "unset fields keep defaults")
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"negative tick": "tick_us: -1\n",
		"zero width":    "width: 0\n",
		"bad level":     "log_level: loud\n",
		"not yaml":      "frames: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "candle.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestMeter(t *testing.T) {
	var slept time.Duration
	m := newMeter(time.Microsecond)
	m.sleep = func(d time.Duration) { slept += d }

	m.Set(true)
	m.Delay(64)
	m.Set(false)
	m.Delay(192)
	assert.InDelta(t, 0.25, m.take(), 1e-9)
	assert.Equal(t, 256*time.Microsecond, slept)
	assert.Zero(t, m.take(), "take resets")
}

func TestBar(t *testing.T) {
	assert.Equal(t, "....", bar(0, 4))
	assert.Equal(t, "##..", bar(0.5, 4))
	assert.Equal(t, "####", bar(1.5, 4))
	assert.Equal(t, "....", bar(-1, 4))
}
