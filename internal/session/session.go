// Package session pairs two peers in a room and keeps their move streams in step
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"schack-online/internal/game"
)

var (
	// ErrDisconnected means the inbound queue closed: the worker lost the relay
	ErrDisconnected = errors.New("lost connection with server")

	// ErrNotYourTurn is returned for local moves while the opponent is to move
	ErrNotYourTurn = errors.New("not your turn")
)

// Sender queues message text for the relay
type Sender interface {
	Send(text string)
}

// Session is the state shared by the matchmaker and the synchronizer
type Session struct {
	ID          string
	Room        string
	LocalToken  uint8
	PeerToken   uint8
	Colour      game.Colour
	TurnCounter uint32
	StartedAt   time.Time
}

// NewSession starts the turn counter at 1 for a matched pair
func NewSession(a Assignment) *Session {
	return &Session{
		ID:          uuid.New().String(),
		Room:        a.Room,
		LocalToken:  a.LocalToken,
		PeerToken:   a.PeerToken,
		Colour:      a.Colour,
		TurnCounter: 1,
		StartedAt:   time.Now(),
	}
}

// DesyncReason says how a divergence was detected
type DesyncReason string

const (
	DesyncCounter  DesyncReason = "counter mismatch"
	DesyncRejected DesyncReason = "remote move rejected"
)

// DesyncError is terminal: the two peers' histories have diverged and the
// session cannot continue.
type DesyncError struct {
	Remote uint32
	Local  uint32
	Reason DesyncReason
	Err    error
}

func (e *DesyncError) Error() string {
	msg := fmt.Sprintf("out of sync with online opponent (%s): remote %d, local %d", e.Reason, e.Remote, e.Local)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DesyncError) Unwrap() error {
	return e.Err
}

// IsDesync reports whether err is a *DesyncError
func IsDesync(err error) bool {
	var de *DesyncError
	return errors.As(err, &de)
}
