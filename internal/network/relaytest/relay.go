// Package relaytest runs an in-process broadcast relay for tests. Every frame
// a peer sends is written to every connected peer, the sender included.
package relaytest

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"schack-online/internal/network"
)

type peer interface {
	writeFrame(frame []byte) error
	close() error
}

// Relay is a broadcast relay listening on the loopback interface
type Relay struct {
	addr string

	mu     sync.Mutex
	peers  map[peer]struct{}
	frames [][]byte
	closed bool

	listener net.Listener
	httpSrv  *httptest.Server
	wg       sync.WaitGroup
}

func newRelay() *Relay {
	return &Relay{peers: make(map[peer]struct{})}
}

// NewTCP starts a TCP relay that is stopped when the test ends
func NewTCP(t testing.TB) *Relay {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start relay: %v", err)
	}

	r := newRelay()
	r.listener = ln
	r.addr = ln.Addr().String()

	r.wg.Add(1)
	go r.acceptLoop()

	t.Cleanup(r.Close)
	return r
}

// NewWebsocket starts a websocket relay. When secret is not empty the
// handshake must carry a bearer token signed with it.
func NewWebsocket(t testing.TB, secret string) *Relay {
	t.Helper()

	r := newRelay()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	r.httpSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if secret != "" {
			token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
			if _, err := network.ParseRelayToken(secret, token); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		p := &wsPeer{conn: conn}
		if !r.add(p) {
			conn.Close()
			return
		}

		r.wg.Add(1)
		go r.serveWebsocket(p)
	}))
	r.addr = "ws://" + strings.TrimPrefix(r.httpSrv.URL, "http://")

	t.Cleanup(r.Close)
	return r
}

// Addr is the address clients dial
func (r *Relay) Addr() string {
	return r.addr
}

// Peers returns the number of connected peers
func (r *Relay) Peers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Frames returns the decoded text of every frame relayed so far
func (r *Relay) Frames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.frames))
	for _, f := range r.frames {
		text, err := network.DecodeFrame(f)
		if err != nil {
			text = "<invalid>"
		}
		out = append(out, text)
	}
	return out
}

// DropAll disconnects every peer without stopping the relay
func (r *Relay) DropAll() {
	r.mu.Lock()
	peers := make([]peer, 0, len(r.peers))
	for p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
}

// Inject broadcasts text as if a peer had sent it
func (r *Relay) Inject(text string) error {
	frame, err := network.EncodeFrame(text)
	if err != nil {
		return err
	}
	r.broadcast(frame)
	return nil
}

// Close stops the relay and disconnects every peer
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	if r.listener != nil {
		r.listener.Close()
	}
	r.DropAll()
	if r.httpSrv != nil {
		r.httpSrv.Close()
	}
	r.wg.Wait()
}

func (r *Relay) add(p peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.peers[p] = struct{}{}
	return true
}

func (r *Relay) remove(p peer) {
	r.mu.Lock()
	delete(r.peers, p)
	r.mu.Unlock()
	p.close()
}

func (r *Relay) broadcast(frame []byte) {
	r.mu.Lock()
	r.frames = append(r.frames, append([]byte(nil), frame...))
	peers := make([]peer, 0, len(r.peers))
	for p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.Unlock()

	for _, p := range peers {
		if err := p.writeFrame(frame); err != nil {
			r.remove(p)
		}
	}
}

func (r *Relay) acceptLoop() {
	defer r.wg.Done()

	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}

		p := &tcpPeer{conn: conn}
		if !r.add(p) {
			conn.Close()
			return
		}

		r.wg.Add(1)
		go r.serveTCP(p)
	}
}

func (r *Relay) serveTCP(p *tcpPeer) {
	defer r.wg.Done()
	defer r.remove(p)

	for {
		frame := make([]byte, network.FrameSize)
		if _, err := io.ReadFull(p.conn, frame); err != nil {
			return
		}
		r.broadcast(frame)
	}
}

func (r *Relay) serveWebsocket(p *wsPeer) {
	defer r.wg.Done()
	defer r.remove(p)

	// websocket peers may split or join frames across messages
	var pending []byte
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		pending = append(pending, data...)
		for len(pending) >= network.FrameSize {
			r.broadcast(pending[:network.FrameSize])
			pending = pending[network.FrameSize:]
		}
	}
}

type tcpPeer struct {
	conn net.Conn
	mu   sync.Mutex
}

func (p *tcpPeer) writeFrame(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.conn.Write(frame)
	return err
}

func (p *tcpPeer) close() error {
	err := p.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

type wsPeer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *wsPeer) writeFrame(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (p *wsPeer) close() error {
	return p.conn.Close()
}
