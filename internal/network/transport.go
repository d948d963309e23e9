package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// Transport is the duplex byte stream the worker owns. Frames are read with
// io.ReadFull and written whole.
type Transport interface {
	io.ReadWriteCloser
	Addr() string
}

// DialOptions configures Dial
type DialOptions struct {
	// Timeout bounds connection setup. Zero means no bound beyond ctx.
	Timeout time.Duration

	// RelaySecret, when set, signs a bearer token presented during the
	// websocket handshake.
	RelaySecret string
	Room        string
	SessionID   string
}

// Dial connects to the relay. ws:// and wss:// addresses use a websocket,
// anything else is treated as a TCP host:port.
func Dial(ctx context.Context, addr string, opts DialOptions) (Transport, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if isWebsocketURL(addr) {
		return dialWebsocket(ctx, addr, opts)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewStreamTransport(conn), nil
}

func isWebsocketURL(addr string) bool {
	lower := strings.ToLower(addr)
	return strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://")
}

// streamTransport carries frames over a plain stream connection
type streamTransport struct {
	net.Conn
}

// NewStreamTransport wraps a stream connection such as TCP
func NewStreamTransport(conn net.Conn) Transport {
	return streamTransport{Conn: conn}
}

func (s streamTransport) Addr() string {
	if addr := s.Conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// wsTransport presents a websocket as a byte stream: message boundaries are
// ignored on read and every Write is sent as one binary message.
type wsTransport struct {
	conn      *websocket.Conn
	addr      string
	reader    io.Reader
	closeOnce sync.Once
}

func dialWebsocket(ctx context.Context, addr string, opts DialOptions) (Transport, error) {
	header := http.Header{}
	if opts.RelaySecret != "" {
		token, err := RelayToken(opts.RelaySecret, opts.Room, opts.SessionID, time.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to sign relay token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{
		Proxy:           http.ProxyFromEnvironment,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, _, err := dialer.DialContext(ctx, addr, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewWebsocketTransport(conn, addr), nil
}

// NewWebsocketTransport wraps an established websocket connection
func NewWebsocketTransport(conn *websocket.Conn, addr string) Transport {
	return &wsTransport{conn: conn, addr: addr}
}

func (w *wsTransport) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				return 0, err
			}
			w.reader = r
		}

		n, err := w.reader.Read(p)
		if errors.Is(err, io.EOF) {
			w.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *wsTransport) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsTransport) Close() error {
	var err error
	w.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = w.conn.Close()
	})
	return err
}

func (w *wsTransport) Addr() string {
	return w.addr
}

// RelayClaims identify a client to a relay that checks handshakes
type RelayClaims struct {
	Room string `json:"room"`
	jwt.RegisteredClaims
}

const relayTokenTTL = 5 * time.Minute

// RelayToken signs an HS256 token for the websocket handshake
func RelayToken(secret, room, sessionID string, now time.Time) (string, error) {
	claims := &RelayClaims{
		Room: room,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(relayTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseRelayToken verifies a token produced by RelayToken
func ParseRelayToken(secret, token string) (*RelayClaims, error) {
	claims := &RelayClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid relay token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid relay token")
	}
	return claims, nil
}
