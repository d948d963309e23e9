package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"schack-online/internal/archive"
	"schack-online/internal/config"
	"schack-online/internal/game"
	"schack-online/internal/network"
	"schack-online/internal/session"
	"schack-online/pkg/logger"
)

const (
	dialTimeout    = 10 * time.Second
	archiveTimeout = 5 * time.Second
	flushTimeout   = time.Second
)

// ErrConnect wraps failures to reach the relay
var ErrConnect = errors.New("failed to connect to server")

// Client represents the game client
type Client struct {
	cfg      *config.Config
	display  *Display
	input    *InputHandler
	store    archive.Store
	logger   *logger.Logger
	clientID string

	worker  *network.Worker
	engine  *game.Engine
	sync    *session.Synchronizer
	limiter *rate.Limiter

	gameIndex    int
	gameStarted  time.Time
	gameArchived bool
}

// NewClient creates a new client instance. A nil store disables archiving.
func NewClient(cfg *config.Config, display *Display, input *InputHandler, store archive.Store) *Client {
	if store == nil {
		store = archive.Nop{}
	}
	return &Client{
		cfg:      cfg,
		display:  display,
		input:    input,
		store:    store,
		logger:   logger.Client,
		clientID: uuid.NewString(),
		limiter:  rate.NewLimiter(rate.Every(cfg.ResetInterval), 1),
	}
}

// Start connects, finds an opponent and runs the game until the user quits,
// the connection is lost or the peers fall out of sync. It returns nil on
// quit, session.ErrDisconnected on connection loss, and a
// *session.DesyncError on divergence.
func (c *Client) Start(ctx context.Context) error {
	c.display.PrintBanner()
	c.logger.Info("Client starting...")

	if err := c.connectToServer(ctx); err != nil {
		c.display.PrintError(err.Error())
		return err
	}
	defer c.Close()

	assignment, err := c.findOpponent(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		return err
	}

	c.engine = game.NewEngine()
	c.sync = session.NewSynchronizer(session.NewSession(assignment), c.engine, c.worker)
	c.sync.OnReset(c.onReset)
	c.gameStarted = time.Now()

	return c.runGameLoop(ctx)
}

// Close flushes pending messages and stops the worker
func (c *Client) Close() {
	if c.worker == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := c.worker.Shutdown(ctx); err != nil {
		c.logger.Warn("Worker did not stop cleanly: %v", err)
	}

	stats := c.worker.Stats()
	c.logger.Info("Connection closed: %d frames received, %d sent, %d dropped", stats.Received, stats.Sent, stats.Dropped)
}

// connectToServer dials the relay and starts the connection worker
func (c *Client) connectToServer(ctx context.Context) error {
	c.display.PrintInfo("Connecting to server...")

	tr, err := network.Dial(ctx, c.cfg.ServerAddr, network.DialOptions{
		Timeout:     dialTimeout,
		RelaySecret: c.cfg.RelaySecret,
		Room:        c.cfg.Room,
		SessionID:   c.clientID,
	})
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrConnect, c.cfg.ServerAddr, err)
	}

	c.worker = network.StartWorker(tr,
		network.WithPollInterval(c.cfg.PollInterval),
		network.WithLogger(logger.Network.With("client", c.clientID)),
	)

	c.display.PrintConnection(c.cfg.ServerAddr)
	c.display.PrintServerStatus(fmt.Sprintf("Relaying room %s", c.cfg.Room))
	c.logger.Info("Connected to server at %s", c.cfg.ServerAddr)
	return nil
}

// findOpponent runs the room handshake, bounded by MatchTimeout when set
func (c *Client) findOpponent(ctx context.Context) (session.Assignment, error) {
	if c.cfg.MatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.MatchTimeout)
		defer cancel()
	}

	mm := session.NewMatchmaker(c.cfg.Room, session.NewToken(), c.worker)
	c.display.PrintMatchmaking(c.cfg.Room, mm.Token())

	a, err := mm.Join(ctx, c.worker.Inbound())
	if err != nil {
		if errors.Is(err, session.ErrDisconnected) {
			c.display.PrintError("Lost connection with server!")
		}
		return a, err
	}

	c.display.PrintMatched(a.Colour, a.PeerToken)
	return a, nil
}

// runGameLoop polls the relay and the console once per tick and never blocks
// on either
func (c *Client) runGameLoop(ctx context.Context) error {
	lineCtx, stopLines := context.WithCancel(ctx)
	defer stopLines()
	lines := c.input.Lines(lineCtx)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	c.display.PrintHelp()
	c.redraw()

	for {
		select {
		case <-ctx.Done():
			c.endGame(archive.EndQuit)
			return nil
		case <-ticker.C:
		}

		changed := false

		select {
		case text, ok := <-c.worker.Inbound():
			if !ok {
				c.endGame(archive.EndDisconnect)
				c.display.PrintError("Lost connection with server!")
				return session.ErrDisconnected
			}
			redraw, err := c.handleRemote(text)
			if err != nil {
				c.endGame(archive.EndDesync)
				var de *session.DesyncError
				if errors.As(err, &de) {
					c.display.PrintDesync(de.Remote, de.Local)
				}
				return err
			}
			changed = changed || redraw
		default:
		}

		select {
		case line, ok := <-lines:
			if !ok {
				c.logger.Info("Console input closed")
				c.endGame(archive.EndQuit)
				return nil
			}
			redraw, quit := c.handleCommand(line)
			if quit {
				c.endGame(archive.EndQuit)
				return nil
			}
			changed = changed || redraw
		default:
		}

		if changed {
			c.checkGameOver()
			c.redraw()
		}
	}
}

func (c *Client) handleRemote(text string) (bool, error) {
	msg, err := network.ParseMessage(text)
	if err != nil {
		c.logger.Warn("Ignoring message from relay: %v", err)
		return false, nil
	}

	res, err := c.sync.HandleRemote(msg)
	if err != nil {
		c.logger.Error("%v", err)
		return false, err
	}

	switch res {
	case session.Applied:
		c.display.PrintOpponentMove(msg.From, msg.To, c.sync.TurnCounter())
		return true, nil
	case session.ResetApplied:
		c.display.PrintInfo("Opponent reset the game")
		return true, nil
	case session.Echo:
		c.display.PrintServerStatus(fmt.Sprintf("Turn %d confirmed", msg.Counter))
	}
	return false, nil
}

// handleCommand applies one console line. It reports whether the board needs
// a redraw and whether the user asked to quit.
func (c *Client) handleCommand(line string) (redraw, quit bool) {
	cmd, err := ParseCommand(line)
	if err != nil {
		c.display.PrintWarning(fmt.Sprintf("%v (h for help)", err))
		return false, false
	}

	switch cmd.Kind {
	case CmdQuit:
		return false, true

	case CmdHelp:
		c.display.PrintHelp()

	case CmdMoves:
		sel, ok := c.sync.Selected()
		if !ok {
			c.display.PrintWarning("No piece selected")
			break
		}
		c.display.PrintMoves(sel, c.sync.Candidates())

	case CmdReset:
		if !c.limiter.Allow() {
			c.display.PrintWarning("Reset ignored, try again in a moment")
			break
		}
		c.sync.Reset()
		c.display.PrintInfo("Game reset")
		return true, false

	case CmdSelect:
		_, had := c.sync.Selected()
		moved, err := c.sync.Click(cmd.At)
		if err != nil {
			c.display.PrintWarning(err.Error())
			break
		}
		_, has := c.sync.Selected()
		if !moved && !has && !had {
			c.display.PrintWarning(c.selectHint())
		}
		return moved || has || had, false

	case CmdMove:
		if err := c.sync.ApplyLocalMove(cmd.From, cmd.To); err != nil {
			c.display.PrintWarning(err.Error())
			break
		}
		return true, false
	}

	return false, false
}

func (c *Client) selectHint() string {
	if !c.sync.IsLocalTurn() {
		return session.ErrNotYourTurn.Error()
	}
	return "Select one of your own pieces"
}

func (c *Client) redraw() {
	sel, ok := c.sync.Selected()
	var selected *game.Position
	if ok {
		selected = &sel
	}
	c.display.PrintSeparator()
	c.display.PrintBoard(c.engine, c.sync.Session().Colour, c.sync.TurnCounter(), selected, c.sync.Candidates())
}

// checkGameOver archives a finished game once and announces the result
func (c *Client) checkGameOver() {
	if c.gameArchived || c.engine.Status() != game.GameOver {
		return
	}

	result, method := c.engine.Outcome()
	c.display.PrintGameEnd(result, method, c.sync.Session().Colour)
	c.archiveGame(c.sync.History(), archive.EndGameOver)
	c.gameArchived = true
}

// onReset runs before the synchronizer discards the current game. The relay
// echo of our own reset arrives here as a remote reset of an empty game and
// leaves the game numbering alone.
func (c *Client) onReset(history []session.MoveRecord, remote bool) {
	if len(history) == 0 && !c.gameArchived {
		c.gameStarted = time.Now()
		return
	}

	reason := archive.EndReset
	if remote {
		reason = archive.EndRemote
	}
	if !c.gameArchived {
		c.archiveGame(history, reason)
	}

	c.gameIndex++
	c.gameStarted = time.Now()
	c.gameArchived = false
}

func (c *Client) endGame(reason string) {
	if c.sync == nil || c.gameArchived {
		return
	}
	c.archiveGame(c.sync.History(), reason)
	c.gameArchived = true
}

func (c *Client) archiveGame(history []session.MoveRecord, reason string) {
	if len(history) == 0 {
		return
	}

	r := c.buildRecord(history, reason)
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if err := c.store.Save(ctx, r); err != nil {
		logger.Archive.Error("Failed to archive game %s: %v", r.ID, err)
		return
	}
	logger.Archive.Info("Archived game %s (%d moves, %s)", r.ID, len(r.Moves), reason)
}

func (c *Client) buildRecord(history []session.MoveRecord, reason string) archive.Record {
	s := c.sync.Session()
	result, _ := c.engine.Outcome()

	moves := make([]string, 0, len(history))
	for _, m := range history {
		moves = append(moves, fmt.Sprintf("%s %s", m.From, m.To))
	}

	return archive.Record{
		ID:         fmt.Sprintf("%s-%d", s.ID, c.gameIndex),
		SessionID:  s.ID,
		Room:       s.Room,
		Colour:     s.Colour.String(),
		LocalToken: s.LocalToken,
		PeerToken:  s.PeerToken,
		Counter:    s.TurnCounter,
		Moves:      moves,
		PGN:        c.engine.PGN(),
		Outcome:    result,
		EndReason:  reason,
		StartedAt:  c.gameStarted,
		EndedAt:    time.Now(),
	}
}
