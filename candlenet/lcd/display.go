//go:build pico || pico_w

// Package lcd shows connection status on an HD44780 16x2 LCD behind a
// PCF8574 I2C backpack. Messages arrive on a channel so callers never block
// on the (slow) display.
//
// Example usage:
//
//	status := make(chan lcd.Message, 4)
//	handler := lcd.NewHandler(device, status, logger)
//	go handler.Run()
//	lcd.Send(status, "MQTT", "Connected")
package lcd

import (
	"errors"
	"log/slog"
	"machine"

	"tinygo.org/x/drivers/hd44780i2c"
)

// Common PCF8574 backpack addresses.
var addrs = []uint8{0x27, 0x3F}

// Message represents a two-line LCD message.
type Message struct {
	Line1 []byte
	Line2 []byte
}

// Send queues a message without blocking. A nil channel (no display) or a
// full queue drops it.
func Send(ch chan<- Message, line1, line2 string) {
	if ch == nil {
		return
	}
	select {
	case ch <- Message{Line1: []byte(line1), Line2: []byte(line2)}:
	default:
	}
}

// Configure probes the common backpack addresses on a configured I2C bus
// and initializes the first display that acknowledges.
func Configure(i2c *machine.I2C) (hd44780i2c.Device, error) {
	for _, a := range addrs {
		// Writing 0 to the expander just pulls every line low.
		if err := i2c.Tx(uint16(a), []byte{0}, nil); err != nil {
			continue
		}
		dev := hd44780i2c.New(i2c, a)
		dev.Configure(hd44780i2c.Config{
			Width:  16,
			Height: 2,
		})
		return dev, nil
	}
	return hd44780i2c.Device{}, errors.New("LCD not found on addresses: 0x27, 0x3f")
}

// Handler processes LCD messages from a channel.
type Handler struct {
	device   hd44780i2c.Device
	messages <-chan Message
	logger   *slog.Logger
	columns  int
}

// NewHandler creates a new 16x2 LCD message handler.
func NewHandler(device hd44780i2c.Device, messages <-chan Message, logger *slog.Logger) *Handler {
	return &Handler{
		device:   device,
		messages: messages,
		logger:   logger,
		columns:  16,
	}
}

// Run displays messages until the channel is closed. Call it in its own
// goroutine.
func (h *Handler) Run() {
	for msg := range h.messages {
		h.logger.Debug("lcd:show", slog.String("line1", string(msg.Line1)))
		h.display(msg)
	}
}

func (h *Handler) display(msg Message) {
	h.device.ClearDisplay()
	h.device.SetCursor(0, 0)
	h.device.Print(h.clip(msg.Line1))
	h.device.SetCursor(0, 1)
	h.device.Print(h.clip(msg.Line2))
}

// clip truncates a line to the display width without allocating.
func (h *Handler) clip(line []byte) []byte {
	if len(line) > h.columns {
		return line[:h.columns]
	}
	return line
}
