package livedata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const closeWriteWait = time.Second

// pushConn is one open push session. next blocks until a frame arrives or
// the session ends; close may be called concurrently with next.
type pushConn interface {
	next(ctx context.Context) ([]byte, error)
	close()
}

// dialFunc opens a push session to endpoint.
type dialFunc func(ctx context.Context, endpoint string) (pushConn, error)

func (c *Channel) dialPush(ctx context.Context, endpoint string) (pushConn, error) {
	kind, err := pushKind(endpoint)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	if kind == kindMQTT {
		return dialMQTT(ctx, endpoint, c.opts.MQTTTopic, c.sessionID)
	}
	return dialWebSocket(ctx, endpoint, c.opts)
}

// --------------------------------------------------------------------------
// WebSocket
// --------------------------------------------------------------------------

type wsConn struct {
	conn *websocket.Conn
	once sync.Once
}

func dialWebSocket(ctx context.Context, endpoint string, opts Options) (*wsConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: opts.DialTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", endpoint, err)
	}
	return &wsConn{conn: conn}, nil
}

func (w *wsConn) next(ctx context.Context) ([]byte, error) {
	for {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *wsConn) close() {
	w.once.Do(func() {
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWriteWait))
		_ = w.conn.Close()
	})
}

// --------------------------------------------------------------------------
// MQTT
// --------------------------------------------------------------------------

var errMQTTClosed = errors.New("mqtt session closed")

type mqttConn struct {
	client mqtt.Client
	frames chan []byte
	lost   chan error
	done   chan struct{}
	once   sync.Once
}

func dialMQTT(ctx context.Context, broker, topic, sessionID string) (*mqttConn, error) {
	m := &mqttConn{
		frames: make(chan []byte, 64),
		lost:   make(chan error, 1),
		done:   make(chan struct{}),
	}

	timeout := remaining(ctx)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("kebun-gizi-" + shortID(sessionID)).
		SetConnectTimeout(timeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			select {
			case m.lost <- err:
			default:
			}
		})
	m.client = mqtt.NewClient(opts)

	if token := m.client.Connect(); !token.WaitTimeout(timeout) {
		m.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: timed out", broker)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case m.frames <- msg.Payload():
		case <-m.done:
		}
	}
	if token := m.client.Subscribe(topic, 0, handler); !token.WaitTimeout(remaining(ctx)) {
		m.close()
		return nil, fmt.Errorf("mqtt subscribe %s: timed out", topic)
	} else if token.Error() != nil {
		m.close()
		return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
	}
	return m, nil
}

func (m *mqttConn) next(ctx context.Context) ([]byte, error) {
	select {
	case data := <-m.frames:
		return data, nil
	case err := <-m.lost:
		return nil, fmt.Errorf("mqtt connection lost: %w", err)
	case <-m.done:
		return nil, errMQTTClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mqttConn) close() {
	m.once.Do(func() {
		close(m.done)
		m.client.Disconnect(250)
	})
}

func shortID(id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// remaining is the time left before ctx's deadline.
func remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
		return time.Millisecond
	}
	return DefaultDialTimeout
}
