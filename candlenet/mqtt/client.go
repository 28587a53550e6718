//go:build pico || pico_w

// Package mqtt publishes candle telemetry to an MQTT broker over the lneto
// TCP stack.
package mqtt

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"runtime"
	"time"

	"github.com/harveysanders/picocandle/candlenet/cyw43439"
	"github.com/harveysanders/picocandle/candlenet/lcd"
	"github.com/harveysanders/picocandle/candlenet/telemetry"
	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"
	mqtt "github.com/soypat/natiu-mqtt"
)

const pollTime = 5 * time.Millisecond

var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

type Client struct {
	ID                string
	Timeout           time.Duration
	TCPBufSize        int
	Logger            *slog.Logger
	HeartbeatInterval time.Duration
	Username          string // MQTT broker username (optional)
	Password          string // MQTT broker password (optional, requires Username)
}

// ConnectAndPublish resolves addr, connects to the broker and publishes
// readings until the connection drops, then reconnects. It only returns on
// configuration errors.
func (c *Client) ConnectAndPublish(
	stack *cyw43439.Stack,
	addr string,
	readings <-chan telemetry.Reading,
	status chan<- lcd.Message,
) error {
	c.Logger.Info("mqtt:address", slog.String("addr", addr))

	lnetoStack := stack.LnetoStack()
	rstack := lnetoStack.StackRetrying(pollTime)

	serverAddr, err := telemetry.ResolveBroker(addr, func(host string) ([]netip.Addr, error) {
		c.Logger.Info("dns:resolving", slog.String("host", host))
		return rstack.DoLookupIP(host, 5*time.Second, 3)
	})
	if err != nil {
		return err
	}
	c.Logger.Info("mqtt:resolved", slog.String("ip", serverAddr.String()))

	mqttClient := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub: func(_ mqtt.Header, varPub mqtt.VariablesPublish, _ io.Reader) error {
			c.Logger.Info("mqtt:received", slog.String("topic", string(varPub.TopicName)))
			return nil
		},
	})

	var conn tcp.Conn
	err = conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, c.TCPBufSize),
		TxBuf:             make([]byte, c.TCPBufSize),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return errors.New("tcp configure:" + err.Error())
	}

	pubVar := mqtt.VariablesPublish{TopicName: telemetry.Topic(c.ID)}
	for {
		localPort := uint16(lnetoStack.Prand32()>>17) + 1024
		c.Logger.Info("socket:dialing", slog.Uint64("localPort", uint64(localPort)))
		lcd.Send(status, "Connecting...", "TCP handshake")
		err = rstack.DoDialTCP(&conn, localPort, serverAddr, 10*time.Second, 3)
		if err != nil {
			c.Logger.Error("socket:dial-failed", slog.String("err", err.Error()))
			c.closeConn(&conn, "dial failed")
			time.Sleep(2 * time.Second)
			continue
		}

		lcd.Send(status, "MQTT Connect", "Authenticating")
		if err := c.connect(mqttClient, &conn); err != nil {
			c.Logger.Error("mqtt:connect-failed", slog.String("reason", err.Error()))
			lcd.Send(status, "Connect Failed", err.Error())
			c.closeConn(&conn, "connect failed")
			continue
		}

		lcd.Send(status, "MQTT Connected", string(pubVar.TopicName))
		c.publish(mqttClient, &conn, lnetoStack, pubVar, readings)

		c.Logger.Error("mqtt:disconnected", slog.Any("reason", mqttClient.Err()))
		lcd.Send(status, "Disconnected", "Reconnecting...")
		c.closeConn(&conn, "disconnected")
		runtime.Gosched()
	}
}

// connect performs the MQTT CONNECT handshake on an open TCP connection.
func (c *Client) connect(mqttClient *mqtt.Client, conn *tcp.Conn) error {
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(c.ID))
	if c.Username != "" {
		varconn.Username = []byte(c.Username)
		if c.Password != "" {
			varconn.Password = []byte(c.Password)
		}
	}

	conn.SetDeadline(time.Now().Add(c.Timeout))
	err := mqttClient.StartConnect(conn, &varconn)
	if err != nil {
		return errors.New("start connect:" + err.Error())
	}
	for retries := 50; retries > 0 && !mqttClient.IsConnected(); retries-- {
		time.Sleep(100 * time.Millisecond)
		err = mqttClient.HandleNext()
		if err != nil {
			c.Logger.Debug("mqtt:handle-next", slog.String("err", err.Error()))
		}
	}
	if !mqttClient.IsConnected() {
		return errors.New("timed out")
	}
	return nil
}

// publish forwards readings until the broker connection is lost.
func (c *Client) publish(
	mqttClient *mqtt.Client,
	conn *tcp.Conn,
	lnetoStack *xnet.StackAsync,
	pubVar mqtt.VariablesPublish,
	readings <-chan telemetry.Reading,
) {
	heartbeat := time.NewTicker(c.HeartbeatInterval)
	defer heartbeat.Stop()

	var published uint32
	for mqttClient.IsConnected() {
		select {
		case reading := <-readings:
			conn.SetDeadline(time.Now().Add(c.Timeout))
			pubVar.PacketIdentifier = uint16(lnetoStack.Prand32())
			err := telemetry.Publish(reading,
				func(payload []byte) error {
					return mqttClient.PublishPayload(pubFlags, pubVar, payload)
				},
				mqttClient.HandleNext,
			)
			if err != nil {
				c.Logger.Error("mqtt:publish-failed", slog.Any("reason", err))
				continue
			}
			published++
			c.Logger.Debug("mqtt:published",
				slog.Uint64("packetID", uint64(pubVar.PacketIdentifier)),
				slog.Uint64("count", uint64(published)),
			)
		case <-heartbeat.C:
			// Keeps the connection alive when no readings flow.
			err := mqttClient.HandleNext()
			if err != nil {
				c.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
			}
		default:
			// TinyGo runs goroutines on a single core; give the candle and
			// the network poller a turn.
			// https://tinygo.org/docs/guides/tips-n-tricks/
			runtime.Gosched()
		}
	}
}

func (c *Client) closeConn(conn *tcp.Conn, reason string) {
	c.Logger.Error("tcpconn:closing", slog.String("reason", reason))
	conn.Close()
	for i := 0; i < 50 && !conn.State().IsClosed(); i++ {
		time.Sleep(100 * time.Millisecond)
	}
	conn.Abort()
}
