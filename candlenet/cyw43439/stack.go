//go:build pico || pico_w

// Package cyw43439 brings up the Pico W radio: WiFi join, the lneto network
// stack with DHCP, and the onboard LED, which is wired to the radio chip
// rather than to an RP2040 pin.
//
// Adapted from the soypat/cyw43439 examples:
// https://github.com/soypat/cyw43439/tree/main/examples/common
package cyw43439

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/lneto/x/xnet"
)

const mtu = cyw43439.MTU

// Set with -ldflags="-X github.com/harveysanders/picocandle/candlenet/cyw43439.ssid=..."
var (
	ssid string
	pass string
)

// SSID returns the WiFi SSID set via linker flags.
func SSID() string { return ssid }

// Config configures the radio and network stack.
type Config struct {
	// Hostname is used for DHCP requests. Required.
	Hostname string
	// MaxTCPPorts is the number of TCP ports to open for the stack.
	MaxTCPPorts int
	// Logger for radio and stack operations. Nil disables logging.
	Logger *slog.Logger
	// RandSeed is mixed into the stack's PRNG seed.
	RandSeed int64
	// JoinRetry is the pause between failed WiFi joins.
	JoinRetry time.Duration
}

// Stack wraps the lneto StackAsync and CYW43439 device for network operations.
type Stack struct {
	s       xnet.StackAsync
	dev     *cyw43439.Device
	log     *slog.Logger
	sendbuf []byte
}

// NewStack initializes the radio without joining a network. The onboard LED
// is usable as soon as this returns.
func NewStack(cfg Config) (*Stack, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("empty hostname")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}

	start := time.Now()
	dev := cyw43439.NewPicoWDevice()
	dev.SetLogger(logger)
	err := dev.Init(cyw43439.DefaultWifiConfig())
	if err != nil {
		return nil, errors.New("wifi init failed:" + err.Error())
	}
	logger.Info("cyw43439:init", slog.Duration("duration", time.Since(start)))

	return &Stack{
		dev:     dev,
		log:     logger,
		sendbuf: make([]byte, mtu),
	}, nil
}

// Join joins the WiFi network named by the linker flags, retrying forever,
// then resets the lneto stack for the radio's MAC address.
func (s *Stack) Join(cfg Config) error {
	if len(pass) == 0 {
		s.log.Info("wifi:joining open network", slog.String("ssid", ssid))
	} else {
		s.log.Info("wifi:joining WPA network", slog.String("ssid", ssid), slog.Int("passlen", len(pass)))
	}

	retry := cfg.JoinRetry
	if retry <= 0 {
		retry = 5 * time.Second
	}
	start := time.Now()
	for {
		err := s.dev.JoinWPA2(ssid, pass)
		if err == nil {
			break
		}
		s.log.Error("wifi:join-failed", slog.String("err", err.Error()))
		time.Sleep(retry)
	}

	mac, err := s.dev.HardwareAddr6()
	if err != nil {
		return errors.New("get hardware address:" + err.Error())
	}
	s.log.Info("wifi:joined", slog.String("mac", net.HardwareAddr(mac[:]).String()))

	maxTCP := cfg.MaxTCPPorts
	if maxTCP < 1 {
		maxTCP = 1
	}
	err = s.s.Reset(xnet.StackConfig{
		Hostname:        cfg.Hostname,
		MaxTCPConns:     maxTCP,
		RandSeed:        time.Since(start).Nanoseconds() ^ cfg.RandSeed,
		HardwareAddress: mac,
		MTU:             mtu,
	})
	if err != nil {
		return errors.New("stack reset:" + err.Error())
	}

	s.dev.RecvEthHandle(func(pkt []byte) error {
		return s.s.Demux(pkt, 0)
	})
	return nil
}

// SetupDHCP requests an IPv4 address and configures the gateway.
func (s *Stack) SetupDHCP() (*xnet.DHCPResults, error) {
	const pollTime = 50 * time.Millisecond
	rstack := s.s.StackRetrying(pollTime)

	s.log.Info("dhcp:starting")
	results, err := rstack.DoDHCPv4([4]byte{}, 3*time.Second, 3)
	if err != nil {
		return nil, errors.New("dhcp failed:" + err.Error())
	}
	err = s.s.AssimilateDHCPResults(results)
	if err != nil {
		return nil, errors.New("assimilate dhcp:" + err.Error())
	}

	gatewayHW, err := rstack.DoResolveHardwareAddress6(results.Router, 500*time.Millisecond, 4)
	if err != nil {
		return nil, errors.New("resolve gateway:" + err.Error())
	}
	s.s.SetGateway6(gatewayHW)

	s.log.Info("dhcp:complete",
		slog.String("ourIP", results.AssignedAddr.String()),
		slog.String("router", results.Router.String()),
		slog.Uint64("lease_sec", uint64(results.TLease)),
	)
	return results, nil
}

// Poll moves one round of packets between the radio and the stack. Call it
// in a loop from its own goroutine.
func (s *Stack) Poll() error {
	_, errRecv := s.dev.PollOne()
	if errRecv != nil {
		s.log.Debug("poll:recv", slog.String("err", errRecv.Error()))
	}

	n, err := s.s.Encapsulate(s.sendbuf, -1, 0)
	if err != nil {
		return errors.New("encapsulate:" + err.Error())
	}
	if n == 0 {
		return errRecv
	}
	err = s.dev.SendEth(s.sendbuf[:n])
	if err != nil {
		return errors.New("send eth:" + err.Error())
	}
	return errRecv
}

// LnetoStack returns the underlying lneto StackAsync for TCP and DNS.
func (s *Stack) LnetoStack() *xnet.StackAsync {
	return &s.s
}
