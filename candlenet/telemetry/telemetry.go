// Package telemetry turns candle events into MQTT payloads. It has no
// hardware dependencies so it builds and tests on the host.
package telemetry

import (
	"encoding/json"
	"errors"
	"net/netip"
	"strings"
	"time"

	"github.com/harveysanders/picocandle/flicker"
)

// Reading is the JSON payload published for one sampled event.
type Reading struct {
	Device     string        `json:"device"`
	Phase      string        `json:"phase"`
	Step       uint32        `json:"step"`
	Duration   uint16        `json:"duration"`
	Brightness uint8         `json:"brightness"`
	State      uint32        `json:"state"`
	SinceBoot  time.Duration `json:"sinceBootNS"` // Nanoseconds since boot.
}

// FromEvent builds a Reading for a candle event.
func FromEvent(device string, e flicker.Event, sinceBoot time.Duration) Reading {
	return Reading{
		Device:     device,
		Phase:      e.Phase.String(),
		Step:       e.Step,
		Duration:   e.Frame.Duration,
		Brightness: e.Frame.Brightness,
		State:      e.State,
		SinceBoot:  sinceBoot,
	}
}

// Payload encodes r as JSON.
func (r Reading) Payload() ([]byte, error) {
	return json.Marshal(r)
}

// Topic is the MQTT topic a device publishes its readings on.
func Topic(device string) []byte {
	return []byte("candle/" + device + "/flicker")
}

// Sampler thins the event stream: the first event of every phase is kept,
// then one in every Every events. Every of 0 or 1 keeps everything.
type Sampler struct {
	Every uint32

	seen  bool
	phase flicker.Phase
	n     uint32
}

// Keep reports whether e should be published.
func (s *Sampler) Keep(e flicker.Event) bool {
	if !s.seen || e.Phase != s.phase {
		s.seen = true
		s.phase = e.Phase
		s.n = 1
		return true
	}
	if s.Every <= 1 {
		return true
	}
	keep := s.n%s.Every == 0
	s.n++
	return keep
}

// Publish encodes r and hands it to publish, then lets the session read
// whatever the broker sent back (ping responses, errors) with handleNext.
func Publish(r Reading, publish func(payload []byte) error, handleNext func() error) error {
	payload, err := r.Payload()
	if err != nil {
		return errors.New("marshal:" + err.Error())
	}
	if err := publish(payload); err != nil {
		return errors.New("publish:" + err.Error())
	}
	if err := handleNext(); err != nil {
		return errors.New("handle next:" + err.Error())
	}
	return nil
}

// Offer sends r on ch without blocking. It reports false when the channel is
// full and the reading was dropped.
func Offer(ch chan<- Reading, r Reading) bool {
	select {
	case ch <- r:
		return true
	default:
		return false
	}
}

// splitHostPort splits at the last colon, so bracketed IPv6 hosts keep
// theirs.
func splitHostPort(addr string) (host, port string, err error) {
	i := strings.LastIndexByte(addr, ':')
	switch {
	case i < 0:
		return "", "", errors.New("missing port in address")
	case i == 0:
		return "", "", errors.New("empty host")
	case i == len(addr)-1:
		return "", "", errors.New("empty port")
	}
	return addr[:i], addr[i+1:], nil
}

// ParsePort converts a port string to uint16. It returns 0 for anything that
// is not a decimal number in range.
func ParsePort(portStr string) uint16 {
	var port uint32
	for i := 0; i < len(portStr); i++ {
		if portStr[i] < '0' || portStr[i] > '9' {
			return 0
		}
		port = port*10 + uint32(portStr[i]-'0')
		if port > 65535 {
			return 0
		}
	}
	return uint16(port)
}

// ResolveBroker turns a host:port broker address into an IP and port. IP
// literals are used as is; hostnames go through lookup and the first address
// wins.
func ResolveBroker(addr string, lookup func(host string) ([]netip.Addr, error)) (netip.AddrPort, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return netip.AddrPort{}, errors.New("parsing host:port from " + addr + ": " + err.Error())
	}
	port := ParsePort(portStr)
	if port == 0 {
		return netip.AddrPort{}, errors.New("invalid port in " + addr)
	}

	if n := len(host); n > 2 && host[0] == '[' && host[n-1] == ']' {
		host = host[1 : n-1]
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return netip.AddrPortFrom(ip, port), nil
	}
	ips, err := lookup(host)
	if err != nil {
		return netip.AddrPort{}, errors.New("dns lookup for " + host + ": " + err.Error())
	}
	if len(ips) == 0 {
		return netip.AddrPort{}, errors.New("dns lookup for " + host + ": no addresses returned")
	}
	return netip.AddrPortFrom(ips[0], port), nil
}
