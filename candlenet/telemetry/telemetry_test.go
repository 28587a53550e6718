package telemetry

import (
	"encoding/json"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/harveysanders/picocandle/flicker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEventPayload(t *testing.T) {
	e := flicker.Event{
		Phase: flicker.PhaseFlicker,
		Step:  7,
		Frame: flicker.Frame{Duration: 9, Brightness: 222},
		State: 0xDE9E01FF,
	}
	r := FromEvent("den", e, 2*time.Second)
	b, err := r.Payload()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "den", got["device"])
	assert.Equal(t, "flicker", got["phase"])
	assert.EqualValues(t, 7, got["step"])
	assert.EqualValues(t, 9, got["duration"])
	assert.EqualValues(t, 222, got["brightness"])
	assert.EqualValues(t, 0xDE9E01FF, got["state"])
	assert.EqualValues(t, 2e9, got["sinceBootNS"])
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "candle/den/flicker", string(Topic("den")))
}

func TestSampler(t *testing.T) {
	s := Sampler{Every: 3}
	var kept []uint32
	for i := uint32(0); i < 10; i++ {
		if s.Keep(flicker.Event{Phase: flicker.PhaseRamp, Step: i}) {
			kept = append(kept, i)
		}
	}
	assert.Equal(t, []uint32{0, 3, 6, 9}, kept)

	assert.True(t, s.Keep(flicker.Event{Phase: flicker.PhaseFlicker}), "phase change is always kept")
	assert.False(t, s.Keep(flicker.Event{Phase: flicker.PhaseFlicker, Step: 1}))
}

func TestSamplerKeepsAll(t *testing.T) {
	s := Sampler{}
	for i := 0; i < 5; i++ {
		assert.True(t, s.Keep(flicker.Event{Phase: flicker.PhaseFlicker}))
	}
}

func TestOffer(t *testing.T) {
	ch := make(chan Reading, 1)
	assert.True(t, Offer(ch, Reading{Step: 1}))
	assert.False(t, Offer(ch, Reading{Step: 2}))
	assert.Equal(t, uint32(1), (<-ch).Step)
}

func TestSplitHostPort(t *testing.T) {
	cases := []struct {
		addr, host, port string
		wantErr          bool
	}{
		{"10.0.0.9:1883", "10.0.0.9", "1883", false},
		{"broker.local:8883", "broker.local", "8883", false},
		{"[fe80::1]:1883", "[fe80::1]", "1883", false},
		{"broker.local", "", "", true},
		{":1883", "", "", true},
		{"broker.local:", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.addr, func(t *testing.T) {
			host, port, err := splitHostPort(tc.addr)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.host, host)
			assert.Equal(t, tc.port, port)
		})
	}
}

func TestParsePort(t *testing.T) {
	assert.Equal(t, uint16(1883), ParsePort("1883"))
	assert.Equal(t, uint16(65535), ParsePort("65535"))
	assert.Equal(t, uint16(0), ParsePort("65536"))
	assert.Equal(t, uint16(0), ParsePort("18a3"))
	assert.Equal(t, uint16(0), ParsePort(""))
}

func TestResolveBroker(t *testing.T) {
	noLookup := func(string) ([]netip.Addr, error) {
		t.Fatal("lookup called for an IP literal")
		return nil, nil
	}
	got, err := ResolveBroker("10.0.0.9:1883", noLookup)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("10.0.0.9:1883"), got)

	got, err = ResolveBroker("[fe80::1]:1883", noLookup)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("[fe80::1]:1883"), got)

	var asked string
	got, err = ResolveBroker("broker.local:8883", func(host string) ([]netip.Addr, error) {
		asked = host
		return []netip.Addr{netip.MustParseAddr("192.168.1.20"), netip.MustParseAddr("192.168.1.21")}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "broker.local", asked)
	assert.Equal(t, netip.MustParseAddrPort("192.168.1.20:8883"), got)

	_, err = ResolveBroker("broker.local:8883", func(string) ([]netip.Addr, error) { return nil, nil })
	assert.ErrorContains(t, err, "no addresses")

	_, err = ResolveBroker("broker.local:8883", func(string) ([]netip.Addr, error) {
		return nil, errors.New("timeout")
	})
	assert.ErrorContains(t, err, "timeout")

	_, err = ResolveBroker("broker.local:99999", noLookup)
	assert.ErrorContains(t, err, "invalid port")
}

func TestPublishReadsBrokerAfterPublish(t *testing.T) {
	var calls []string
	var sent []byte
	err := Publish(Reading{Device: "den", Step: 3},
		func(payload []byte) error {
			calls = append(calls, "publish")
			sent = payload
			return nil
		},
		func() error {
			calls = append(calls, "handle")
			return nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"publish", "handle"}, calls)
	assert.Contains(t, string(sent), `"device":"den"`)
}

func TestPublishErrors(t *testing.T) {
	handled := false
	err := Publish(Reading{},
		func([]byte) error { return errors.New("closed") },
		func() error { handled = true; return nil },
	)
	assert.ErrorContains(t, err, "publish:closed")
	assert.False(t, handled, "nothing to read after a failed publish")

	err = Publish(Reading{},
		func([]byte) error { return nil },
		func() error { return errors.New("bad packet") },
	)
	assert.ErrorContains(t, err, "handle next:bad packet")
}
