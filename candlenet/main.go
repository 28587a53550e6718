//go:build pico || pico_w

// candlenet flickers the Pico W onboard LED and publishes sampled flicker
// frames to an MQTT broker.
package main

import (
	"context"
	"log/slog"
	"machine"
	"strconv"
	"time"

	"github.com/harveysanders/picocandle/candlenet/cyw43439"
	"github.com/harveysanders/picocandle/candlenet/lcd"
	"github.com/harveysanders/picocandle/candlenet/mqtt"
	"github.com/harveysanders/picocandle/candlenet/telemetry"
	"github.com/harveysanders/picocandle/flicker"
)

// Set with -ldflags="-X main.brokerAddr=10.0.0.9:1883 -X main.deviceID=den".
// An empty brokerAddr runs the candle without networking.
var (
	brokerAddr string
	deviceID   = "candle"
	mqttUser   string
	mqttPass   string
	sampleRate = "64" // publish one flicker frame in sampleRate
	tickMicros = "20"
)

func main() {
	start := time.Now()
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	stack, err := cyw43439.NewStack(cyw43439.Config{
		Hostname:    "candle-" + deviceID,
		MaxTCPPorts: 1,
		Logger:      logger,
	})
	if err != nil {
		// Print error in a loop in case the serial monitor is not
		// ready before the initial messages
		printErrForever(logger, "radio init", slog.Any("reason", err))
	}

	status := setupLCD(logger)
	lcd.Send(status, "candle", deviceID)

	readings := make(chan telemetry.Reading, 16)
	if brokerAddr != "" {
		go runNetwork(stack, logger, readings, status)
	}

	sampler := telemetry.Sampler{Every: parseUint(logger, "sampleRate", sampleRate, 64)}
	tick := time.Duration(parseUint(logger, "tickMicros", tickMicros, 20)) * time.Microsecond
	var dropped uint32

	c := flicker.New(
		stack.LED(),
		noWatchdog{},
		// Sleeping instead of spinning lets the network goroutines run. The
		// radio GPIO sits on the SPI bus, so ticks are longer than on a
		// plain RP2040 pin.
		flicker.DelayFunc(func(ticks uint16) {
			time.Sleep(time.Duration(ticks) * tick)
		}),
		flicker.WithLogger(logger),
		flicker.WithObserver(func(e flicker.Event) {
			if brokerAddr == "" || !sampler.Keep(e) {
				return
			}
			if !telemetry.Offer(readings, telemetry.FromEvent(deviceID, e, time.Since(start))) {
				dropped++
				if dropped%100 == 1 {
					logger.Warn("telemetry:dropped", slog.Uint64("total", uint64(dropped)))
				}
			}
		}),
	)
	c.Run(context.Background())
}

// runNetwork joins WiFi, gets an address and keeps an MQTT session open.
func runNetwork(stack *cyw43439.Stack, logger *slog.Logger, readings <-chan telemetry.Reading, status chan<- lcd.Message) {
	lcd.Send(status, "WiFi", cyw43439.SSID())
	err := stack.Join(cyw43439.Config{Hostname: "candle-" + deviceID, MaxTCPPorts: 1})
	if err != nil {
		printErrForever(logger, "wifi join", slog.Any("reason", err))
	}

	go func() {
		for {
			if err := stack.Poll(); err != nil {
				logger.Debug("stack:poll", slog.String("err", err.Error()))
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	results, err := stack.SetupDHCP()
	if err != nil {
		printErrForever(logger, "dhcp", slog.Any("reason", err))
	}
	lcd.Send(status, "IP", results.AssignedAddr.String())

	c := mqtt.Client{
		ID:                deviceID,
		Logger:            logger,
		Timeout:           5 * time.Second,
		TCPBufSize:        2030, // MTU - ethhdr - iphdr - tcphdr
		HeartbeatInterval: 30 * time.Second,
		Username:          mqttUser,
		Password:          mqttPass,
	}
	err = c.ConnectAndPublish(stack, brokerAddr, readings, status)
	if err != nil {
		printErrForever(logger, "connect to MQTT broker", slog.Any("reason", err))
	}
}

// setupLCD returns a status channel backed by the LCD, or nil when no display
// is attached.
func setupLCD(logger *slog.Logger) chan<- lcd.Message {
	err := machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.GP4,
		SCL: machine.GP5,
	})
	if err != nil {
		logger.Warn("lcd:i2c", slog.Any("reason", err))
		return nil
	}
	dev, err := lcd.Configure(machine.I2C0)
	if err != nil {
		logger.Info("lcd:absent", slog.Any("reason", err))
		return nil
	}
	status := make(chan lcd.Message, 4)
	go lcd.NewHandler(dev, status, logger).Run()
	return status
}

// noWatchdog stands in for the RP2040 watchdog, which is stopped after reset.
type noWatchdog struct{}

func (noWatchdog) Disable() {}

func parseUint(logger *slog.Logger, name, s string, def uint32) uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		logger.Error("config:"+name, slog.String("value", s))
		return def
	}
	return uint32(n)
}

// printErrForever logs msg @ 1hz. It blocks forever.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
