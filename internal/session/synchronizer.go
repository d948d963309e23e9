package session

import (
	"fmt"

	"schack-online/internal/game"
	"schack-online/internal/network"
	"schack-online/pkg/logger"
)

// Result says what HandleRemote did with a message
type Result int

const (
	Ignored Result = iota
	Echo
	Applied
	ResetApplied
)

func (r Result) String() string {
	switch r {
	case Echo:
		return "echo"
	case Applied:
		return "applied"
	case ResetApplied:
		return "reset"
	}
	return "ignored"
}

// MoveRecord is one accepted move of the current game
type MoveRecord struct {
	Counter uint32
	From    game.Position
	To      game.Position
	Local   bool
}

// ResetHook runs before a reset discards the current game
type ResetHook func(history []MoveRecord, remote bool)

// Synchronizer relays local moves and validates remote ones against the turn
// counter. The counter is the only ordering check: a remote move carrying the
// current value is our own move echoed back, the next value is the opponent's
// move, and anything else means the peers have diverged.
type Synchronizer struct {
	session *Session
	rules   game.Rules
	out     Sender
	logger  *logger.Logger
	onReset ResetHook

	selected   *game.Position
	candidates []game.Position
	history    []MoveRecord
}

// NewSynchronizer takes ownership of s and rules
func NewSynchronizer(s *Session, rules game.Rules, out Sender) *Synchronizer {
	return &Synchronizer{
		session: s,
		rules:   rules,
		out:     out,
		logger:  logger.Session.With("room", s.Room, "session", s.ID),
	}
}

// OnReset registers a hook called before every local or remote reset
func (s *Synchronizer) OnReset(hook ResetHook) {
	s.onReset = hook
}

// Session returns a copy of the session state
func (s *Synchronizer) Session() Session {
	return *s.session
}

// TurnCounter returns the current turn counter
func (s *Synchronizer) TurnCounter() uint32 {
	return s.session.TurnCounter
}

// Rules returns the engine the synchronizer drives
func (s *Synchronizer) Rules() game.Rules {
	return s.rules
}

// IsLocalTurn reports whether the local colour is to move
func (s *Synchronizer) IsLocalTurn() bool {
	return s.rules.ActiveColour() == s.session.Colour
}

// Selected returns the selected square, if any
func (s *Synchronizer) Selected() (game.Position, bool) {
	if s.selected == nil {
		return game.Position{}, false
	}
	return *s.selected, true
}

// Candidates returns the legal destinations of the selected square
func (s *Synchronizer) Candidates() []game.Position {
	return s.candidates
}

// History returns the moves of the current game
func (s *Synchronizer) History() []MoveRecord {
	return append([]MoveRecord(nil), s.history...)
}

// Select picks up the piece on pos when it belongs to the local side and it
// is the local turn.
func (s *Synchronizer) Select(pos game.Position) bool {
	piece, ok := s.rules.PieceAt(pos)
	if !ok || piece.Colour != s.session.Colour || !s.IsLocalTurn() {
		return false
	}

	p := pos
	s.selected = &p
	s.candidates = s.rules.LegalDestinations(pos)
	return true
}

// Click acts on a square the way a board click does: select an own piece,
// or move the selected piece to one of its candidate squares.
func (s *Synchronizer) Click(pos game.Position) (moved bool, err error) {
	if s.Select(pos) {
		return false, nil
	}
	if s.selected == nil || !containsPosition(s.candidates, pos) {
		return false, nil
	}
	if err := s.ApplyLocalMove(*s.selected, pos); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyLocalMove plays a local move and relays it with the incremented counter
func (s *Synchronizer) ApplyLocalMove(from, to game.Position) error {
	if !s.IsLocalTurn() {
		return ErrNotYourTurn
	}
	if err := s.rules.Move(from, to); err != nil {
		return err
	}

	s.session.TurnCounter++
	s.history = append(s.history, MoveRecord{Counter: s.session.TurnCounter, From: from, To: to, Local: true})
	s.clearSelection()

	msg := network.CreateMoveMessage(s.session.Room, s.session.TurnCounter, from, to)
	s.out.Send(msg.String())
	s.logger.Debug("Local move %s -> %s, turn %d", from.Algebraic(), to.Algebraic(), s.session.TurnCounter)
	return nil
}

// HandleRemote applies a message received from the relay. Messages for other
// rooms and late room announcements are ignored. A *DesyncError is terminal.
func (s *Synchronizer) HandleRemote(msg *network.Message) (Result, error) {
	if msg.Room != s.session.Room {
		return Ignored, nil
	}

	switch msg.Type {
	case network.MsgMove:
		return s.ApplyRemoteMove(msg)
	case network.MsgReset:
		s.ApplyRemoteReset()
		return ResetApplied, nil
	}
	return Ignored, nil
}

// ApplyRemoteMove validates the counter of a remote move before applying it
func (s *Synchronizer) ApplyRemoteMove(msg *network.Message) (Result, error) {
	local := s.session.TurnCounter

	switch {
	case msg.Counter == local:
		return Echo, nil

	case msg.Counter == local+1:
		if err := s.rules.Move(msg.From, msg.To); err != nil {
			return Ignored, &DesyncError{Remote: msg.Counter, Local: local, Reason: DesyncRejected, Err: err}
		}
		s.session.TurnCounter = msg.Counter
		s.history = append(s.history, MoveRecord{Counter: msg.Counter, From: msg.From, To: msg.To})
		s.clearSelection()
		s.logger.Debug("Remote move %s -> %s, turn %d", msg.From.Algebraic(), msg.To.Algebraic(), msg.Counter)
		return Applied, nil
	}

	return Ignored, &DesyncError{Remote: msg.Counter, Local: local, Reason: DesyncCounter}
}

// ApplyRemoteReset starts a new game because the opponent asked for it
func (s *Synchronizer) ApplyRemoteReset() {
	s.reset(true)
	s.logger.Info("Opponent reset the game")
}

// Reset starts a new game locally and tells the opponent to do the same
func (s *Synchronizer) Reset() {
	s.reset(false)
	s.out.Send(network.CreateResetMessage(s.session.Room).String())
	s.logger.Info("Game reset")
}

func (s *Synchronizer) reset(remote bool) {
	if s.onReset != nil {
		s.onReset(s.History(), remote)
	}

	s.rules.Reset()
	s.session.TurnCounter = 1
	s.history = nil
	s.clearSelection()
}

func (s *Synchronizer) clearSelection() {
	s.selected = nil
	s.candidates = nil
}

func containsPosition(list []game.Position, p game.Position) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

// String summarises the synchronizer for diagnostics
func (s *Synchronizer) String() string {
	return fmt.Sprintf("room=%s colour=%s turn=%d", s.session.Room, s.session.Colour, s.session.TurnCounter)
}
