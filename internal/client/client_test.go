package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schack-online/internal/archive"
	"schack-online/internal/config"
	"schack-online/internal/network"
	"schack-online/internal/network/relaytest"
	"schack-online/internal/session"
)

const waitTimeout = 3 * time.Second

type memoryStore struct {
	mu      sync.Mutex
	records []archive.Record
}

func (m *memoryStore) Save(_ context.Context, r archive.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) Records() []archive.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]archive.Record(nil), m.records...)
}

func testConfig(addr string) *config.Config {
	return &config.Config{
		ServerAddr:    addr,
		Room:          "lobby",
		PollInterval:  2 * time.Millisecond,
		TickInterval:  2 * time.Millisecond,
		MatchTimeout:  waitTimeout,
		ArchiveDriver: "none",
	}
}

// syncBuffer collects display output written by the client goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	client  *Client
	console *io.PipeWriter
	output  *syncBuffer
	store   *memoryStore
	result  chan error
}

// startClient runs a client against addr with a console fed through a pipe
func startClient(ctx context.Context, t *testing.T, addr string) *harness {
	t.Helper()
	return startClientWith(ctx, t, testConfig(addr))
}

func startClientWith(ctx context.Context, t *testing.T, cfg *config.Config) *harness {
	t.Helper()

	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	h := &harness{
		console: pw,
		output:  &syncBuffer{},
		store:   &memoryStore{},
		result:  make(chan error, 1),
	}
	h.client = NewClient(cfg, NewDisplayTo(h.output), NewInputHandlerFrom(pr, io.Discard), h.store)

	go func() { h.result <- h.client.Start(ctx) }()
	return h
}

// typeLine returns once the console pump has read the line
func (h *harness) typeLine(t *testing.T, line string) {
	t.Helper()
	_, err := h.console.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (h *harness) waitOutput(t *testing.T, text string) {
	t.Helper()
	require.Eventually(t, func() bool { return strings.Contains(h.output.String(), text) },
		waitTimeout, 5*time.Millisecond, "display never showed %q", text)
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.result:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("client did not stop")
	}
	return nil
}

// peer is a bare worker standing in for the opponent
type peer struct {
	worker *network.Worker
}

// dialPeer connects the opponent and waits until the relay has registered it
func dialPeer(t *testing.T, relay *relaytest.Relay) *peer {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	tr, err := network.Dial(ctx, relay.Addr(), network.DialOptions{})
	require.NoError(t, err)

	w := network.StartWorker(tr, network.WithPollInterval(2*time.Millisecond))
	t.Cleanup(w.Close)

	require.Eventually(t, func() bool { return relay.Peers() == 1 }, waitTimeout, 5*time.Millisecond)
	return &peer{worker: w}
}

// expect reads relay traffic until a message with the given prefix arrives
func (p *peer) expect(t *testing.T, prefix string) string {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case text, ok := <-p.worker.Inbound():
			require.True(t, ok, "relay closed while waiting for %q", prefix)
			if strings.HasPrefix(text, prefix) {
				return text
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", prefix)
		}
	}
}

// matchAsBlack completes the handshake so the client under test plays White
func matchAsBlack(t *testing.T, p *peer) {
	t.Helper()

	announce := p.expect(t, "room lobby ")
	msg, err := network.ParseMessage(announce)
	require.NoError(t, err)
	if msg.Token == 255 {
		t.Skip("client drew the highest token")
	}

	p.worker.Send(network.CreateJoinMessage("lobby", 255).String())
	// own echo, then the client's second announcement
	p.expect(t, "room lobby 255")
	assert.Equal(t, announce, p.expect(t, "room lobby "))
}

func TestClientPlaysAgainstPeer(t *testing.T) {
	relay := relaytest.NewTCP(t)
	p := dialPeer(t, relay)
	h := startClient(context.Background(), t, relay.Addr())

	matchAsBlack(t, p)

	h.typeLine(t, "6 4 4 4")
	assert.Equal(t, "lobby mv 2 6 4 4 4", p.expect(t, "lobby mv"))
	h.waitOutput(t, "[SERVER] Turn 2 confirmed")

	// the relay hands our own move back to us first
	p.worker.Send("lobby mv 3 1 4 3 4")
	p.expect(t, "lobby mv 3")
	h.waitOutput(t, "[OPPONENT] e7 -> e5")

	// select then click, the way the board is driven with a mouse
	h.typeLine(t, "7 6")
	h.typeLine(t, "5 5")
	assert.Equal(t, "lobby mv 4 7 6 5 5", p.expect(t, "lobby mv 4"))

	// skipping turns is a desync
	p.worker.Send("lobby mv 7 0 1 2 2")

	err := h.wait(t)
	var de *session.DesyncError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint32(7), de.Remote)
	assert.Equal(t, uint32(4), de.Local)

	records := h.store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, archive.EndDesync, records[0].EndReason)
	assert.Equal(t, []string{"6 4 4 4", "1 4 3 4", "7 6 5 5"}, records[0].Moves)
	assert.Equal(t, "White", records[0].Colour)
	assert.Contains(t, records[0].PGN, "e4")
}

func TestClientResetIsRelayed(t *testing.T) {
	relay := relaytest.NewTCP(t)
	p := dialPeer(t, relay)
	h := startClient(context.Background(), t, relay.Addr())

	matchAsBlack(t, p)

	h.typeLine(t, "6 4 4 4")
	p.expect(t, "lobby mv 2")
	// a move echo left behind a reset would replay as the opponent's move
	h.waitOutput(t, "[SERVER] Turn 2 confirmed")

	h.typeLine(t, "r")
	p.expect(t, "lobby reset")
	h.waitOutput(t, "Opponent reset the game")

	// after a reset the counter starts over
	h.typeLine(t, "6 3 4 3")
	p.expect(t, "lobby mv 2 6 3 4 3")

	h.typeLine(t, "q")
	require.NoError(t, h.wait(t))

	records := h.store.Records()
	require.Len(t, records, 2)
	assert.Equal(t, archive.EndReset, records[0].EndReason)
	assert.Equal(t, []string{"6 4 4 4"}, records[0].Moves)
	assert.Equal(t, archive.EndQuit, records[1].EndReason)
	assert.Equal(t, []string{"6 3 4 3"}, records[1].Moves)
	assert.Equal(t, records[0].SessionID, records[1].SessionID)
	// the echo of our own reset does not start a game of its own
	assert.Equal(t, records[0].SessionID+"-0", records[0].ID)
	assert.Equal(t, records[1].SessionID+"-1", records[1].ID)
}

func TestClientResetsAreNotThrottledByDefault(t *testing.T) {
	relay := relaytest.NewTCP(t)
	p := dialPeer(t, relay)
	h := startClient(context.Background(), t, relay.Addr())

	matchAsBlack(t, p)

	h.typeLine(t, "r")
	h.typeLine(t, "r")
	p.expect(t, "lobby reset")
	p.expect(t, "lobby reset")

	h.typeLine(t, "q")
	require.NoError(t, h.wait(t))
	assert.NotContains(t, h.output.String(), "Reset ignored")
	assert.Empty(t, h.store.Records())
}

func TestClientResetThrottle(t *testing.T) {
	relay := relaytest.NewTCP(t)
	p := dialPeer(t, relay)
	cfg := testConfig(relay.Addr())
	cfg.ResetInterval = time.Hour
	h := startClientWith(context.Background(), t, cfg)

	matchAsBlack(t, p)

	h.typeLine(t, "r")
	p.expect(t, "lobby reset")
	h.typeLine(t, "r")
	h.waitOutput(t, "Reset ignored")

	h.typeLine(t, "q")
	require.NoError(t, h.wait(t))

	resets := 0
	for _, f := range relay.Frames() {
		if f == "lobby reset" {
			resets++
		}
	}
	assert.Equal(t, 1, resets)
}

func TestClientDisplayOutput(t *testing.T) {
	relay := relaytest.NewTCP(t)
	p := dialPeer(t, relay)
	h := startClient(context.Background(), t, relay.Addr())

	matchAsBlack(t, p)
	h.waitOutput(t, "Turn: 1")

	h.typeLine(t, "q")
	require.NoError(t, h.wait(t))

	out := h.output.String()
	separator := strings.Repeat("═", 63)
	assert.Contains(t, out, "[SERVER] Relaying room lobby")
	require.Contains(t, out, separator)
	assert.Less(t, strings.Index(out, separator), strings.Index(out, "Turn: 1"))
}

func TestClientDisconnect(t *testing.T) {
	relay := relaytest.NewTCP(t)
	p := dialPeer(t, relay)
	h := startClient(context.Background(), t, relay.Addr())

	matchAsBlack(t, p)
	relay.DropAll()

	assert.ErrorIs(t, h.wait(t), session.ErrDisconnected)
}

func TestClientDisconnectWhileMatchmaking(t *testing.T) {
	relay := relaytest.NewTCP(t)
	p := dialPeer(t, relay)
	h := startClient(context.Background(), t, relay.Addr())

	p.expect(t, "room lobby ")
	relay.DropAll()

	assert.ErrorIs(t, h.wait(t), session.ErrDisconnected)
}

func TestClientConnectFailure(t *testing.T) {
	relay := relaytest.NewTCP(t)
	addr := relay.Addr()
	relay.Close()

	var out bytes.Buffer
	c := NewClient(testConfig(addr), NewDisplayTo(&out), NewInputHandlerFrom(strings.NewReader(""), io.Discard), nil)

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrConnect)
	assert.Contains(t, out.String(), "failed to connect")
}

func TestClientCancelledWhileMatchmaking(t *testing.T) {
	relay := relaytest.NewTCP(t)
	ctx, cancel := context.WithCancel(context.Background())
	h := startClient(ctx, t, relay.Addr())

	require.Eventually(t, func() bool { return len(relay.Frames()) > 0 }, waitTimeout, 5*time.Millisecond)
	cancel()

	err := h.wait(t)
	assert.False(t, errors.Is(err, session.ErrDisconnected))
	assert.NoError(t, err)
}
