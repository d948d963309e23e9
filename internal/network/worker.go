package network

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/chanqueue"

	"schack-online/pkg/logger"
)

// DefaultPollInterval is the delay between worker iterations
const DefaultPollInterval = 30 * time.Millisecond

// Worker owns a transport and moves message text between it and two
// unbounded FIFO queues. Nothing else touches the transport.
type Worker struct {
	transport Transport
	interval  time.Duration
	logger    *logger.Logger

	outbound *chanqueue.ChanQueue[string]
	inbound  *chanqueue.ChanQueue[string]
	frames   chan readResult

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	received atomic.Uint64
	sent     atomic.Uint64
	dropped  atomic.Uint64
}

type readResult struct {
	frame []byte
	err   error
}

// WorkerStats counts frames handled by a worker
type WorkerStats struct {
	Received uint64
	Sent     uint64
	Dropped  uint64
}

// WorkerOption configures a Worker
type WorkerOption func(*Worker)

// WithPollInterval sets the delay between iterations
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger replaces the network logger
func WithLogger(l *logger.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// StartWorker takes ownership of t and starts the poll loop
func StartWorker(t Transport, opts ...WorkerOption) *Worker {
	w := &Worker{
		transport: t,
		interval:  DefaultPollInterval,
		logger:    logger.Network,
		outbound:  chanqueue.New[string](),
		inbound:   chanqueue.New[string](),
		frames:    make(chan readResult),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.readLoop()
	go w.run()

	w.logger.Debug("Worker started for %s (poll every %s)", t.Addr(), w.interval)
	return w
}

// Send queues text for the relay. It never blocks; text sent after Close is
// dropped.
func (w *Worker) Send(text string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.logger.Debug("Dropping %q: worker closed", text)
		return
	}
	w.outbound.In() <- text
}

// Inbound delivers decoded frame text in arrival order. It is closed once
// the worker stops and every received message has been consumed.
func (w *Worker) Inbound() <-chan string {
	return w.inbound.Out()
}

// Done is closed when the poll loop has exited
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Close stops accepting messages. Messages already queued are still written,
// one per iteration, before the loop exits and the transport is closed.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	w.outbound.Close()
}

// Shutdown closes the worker and waits for the loop to exit or ctx to end
func (w *Worker) Shutdown(ctx context.Context) error {
	w.Close()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.transport.Close()
		return ctx.Err()
	}
}

// Stats returns frame counters
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Received: w.received.Load(),
		Sent:     w.sent.Load(),
		Dropped:  w.dropped.Load(),
	}
}

// readLoop performs blocking frame reads and hands each result to the poll
// loop, which takes at most one per iteration.
func (w *Worker) readLoop() {
	for {
		buf := make([]byte, FrameSize)
		_, err := io.ReadFull(w.transport, buf)

		select {
		case w.frames <- readResult{frame: buf, err: err}:
		case <-w.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (w *Worker) run() {
	defer func() {
		w.transport.Close()
		w.inbound.Close()
		close(w.done)
		w.logger.Debug("Worker for %s stopped", w.transport.Addr())
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case res := <-w.frames:
			if res.err != nil {
				w.logger.Error("Lost connection with server: %v", res.err)
				return
			}
			w.receive(res.frame)
		default:
		}

		select {
		case text, ok := <-w.outbound.Out():
			if !ok {
				return
			}
			w.write(text)
		default:
		}

		<-ticker.C
	}
}

func (w *Worker) receive(frame []byte) {
	text, err := DecodeFrame(frame)
	if err != nil {
		w.dropped.Add(1)
		w.logger.Warn("Dropping frame: %v", err)
		return
	}

	w.received.Add(1)
	w.logger.Debug("Received frame: %q", text)
	w.inbound.In() <- text
}

func (w *Worker) write(text string) {
	frame, err := EncodeFrame(text)
	if err != nil {
		w.dropped.Add(1)
		w.logger.Warn("Dropping outgoing message %q: %v", text, err)
		return
	}

	if _, err := w.transport.Write(frame); err != nil {
		w.dropped.Add(1)
		w.logger.Error("Failed to send message: %v", err)
		return
	}

	w.sent.Add(1)
	w.logger.Debug("Sent frame: %q", text)
}
