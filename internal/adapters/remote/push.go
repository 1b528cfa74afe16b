package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ChangeMessage is what the sync server sends on the realtime channel.
type ChangeMessage struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

const MessageSnapshotChanged = "snapshot_changed"

type PushConfig struct {
	BaseURL string
	Token   string
	Key     string

	// ReconnectDelay is the first wait after a lost connection; it doubles
	// up to MaxReconnectDelay and resets after a successful connect.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	// OnConnectionChange, when set, is told whether the server is reachable:
	// true once a connection is up, false after a failed dial or a lost
	// connection. Repeated states are reported once.
	OnConnectionChange func(connected bool)
}

// PushListener keeps a websocket open to the sync server and calls onPush
// every time the watched snapshot changes remotely.
type PushListener struct {
	cfg    PushConfig
	onPush func(ctx context.Context)
	dialer websocket.Dialer
	logger zerolog.Logger

	reported  bool
	connected bool
}

func NewPushListener(cfg PushConfig, onPush func(ctx context.Context), logger zerolog.Logger) *PushListener {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = 8 * cfg.ReconnectDelay
	}
	return &PushListener{
		cfg:    cfg,
		onPush: onPush,
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
	}
}

// EventsURL converts the server base URL into the websocket endpoint of key.
func EventsURL(baseURL, key string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse remote url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported remote url scheme %q", u.Scheme)
	}
	u.Path += "/api/v1/snapshots/" + url.PathEscape(key) + "/events"
	return u.String(), nil
}

// Run blocks until ctx is cancelled, reconnecting after every lost
// connection.
func (l *PushListener) Run(ctx context.Context) error {
	wsURL, err := EventsURL(l.cfg.BaseURL, l.cfg.Key)
	if err != nil {
		return err
	}

	delay := l.cfg.ReconnectDelay
	for {
		connected, err := l.listenOnce(ctx, wsURL)
		if ctx.Err() != nil {
			return nil
		}
		l.setConnected(false)
		if connected {
			delay = l.cfg.ReconnectDelay
		}
		l.logger.Info().Err(err).Dur("delay", delay).Msg("[REALTIME] Connection lost, reconnecting")
		metrics.PushReconnects.Inc()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > l.cfg.MaxReconnectDelay {
			delay = l.cfg.MaxReconnectDelay
		}
	}
}

func (l *PushListener) listenOnce(ctx context.Context, wsURL string) (bool, error) {
	header := http.Header{}
	if l.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+l.cfg.Token)
	}

	conn, resp, err := l.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return false, fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	l.logger.Info().Str("url", wsURL).Msg("[REALTIME] Connected")
	l.setConnected(true)

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, nil
			}
			return true, err
		}

		var msg ChangeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			l.logger.Warn().Err(err).Msg("[REALTIME] Ignoring malformed message")
			continue
		}
		if msg.Type == MessageSnapshotChanged {
			l.onPush(ctx)
		}
	}
}

func (l *PushListener) setConnected(connected bool) {
	if l.reported && l.connected == connected {
		return
	}
	l.reported = true
	l.connected = connected
	if l.cfg.OnConnectionChange != nil {
		l.cfg.OnConnectionChange(connected)
	}
}
