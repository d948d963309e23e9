package session

import (
	"context"
	"fmt"
	"math/rand/v2"

	"schack-online/internal/game"
	"schack-online/internal/network"
	"schack-online/pkg/logger"
)

// Assignment is the outcome of matchmaking
type Assignment struct {
	Room       string
	LocalToken uint8
	PeerToken  uint8
	Colour     game.Colour
}

// NewToken draws a tie-break token uniformly from 0-255
func NewToken() uint8 {
	return uint8(rand.IntN(256))
}

// AssignColour gives White to the smaller token. Equal tokens never reach
// here: they are indistinguishable from an echo of one's own announcement.
func AssignColour(local, peer uint8) game.Colour {
	if local < peer {
		return game.White
	}
	return game.Black
}

// Matchmaker performs the room handshake
type Matchmaker struct {
	room   string
	token  uint8
	out    Sender
	logger *logger.Logger
}

// NewMatchmaker creates a matchmaker announcing token in room
func NewMatchmaker(room string, token uint8, out Sender) *Matchmaker {
	return &Matchmaker{
		room:   room,
		token:  token,
		out:    out,
		logger: logger.Session.With("room", room),
	}
}

// Token returns the local tie-break token
func (m *Matchmaker) Token() uint8 {
	return m.token
}

// Join announces the local token and waits for another peer's announcement in
// the same room. It waits as long as ctx allows; pass a context without
// deadline to wait indefinitely. Once matched it announces again so the peer
// can finish its own handshake.
func (m *Matchmaker) Join(ctx context.Context, inbound <-chan string) (Assignment, error) {
	announce := network.CreateJoinMessage(m.room, m.token).String()
	m.out.Send(announce)
	m.logger.Info("Joined room with token %d, waiting for opponent", m.token)

	for {
		select {
		case <-ctx.Done():
			return Assignment{}, fmt.Errorf("waiting for opponent: %w", ctx.Err())

		case text, ok := <-inbound:
			if !ok {
				return Assignment{}, ErrDisconnected
			}

			msg, err := network.ParseMessage(text)
			if err != nil {
				m.logger.Warn("Ignoring message while matchmaking: %v", err)
				continue
			}
			if msg.Type != network.MsgJoin || msg.Room != m.room {
				m.logger.Debug("Ignoring %q while matchmaking", text)
				continue
			}
			if msg.Token == m.token {
				// our own announcement echoed back by the relay
				continue
			}

			a := Assignment{
				Room:       m.room,
				LocalToken: m.token,
				PeerToken:  msg.Token,
				Colour:     AssignColour(m.token, msg.Token),
			}
			m.out.Send(announce)
			m.logger.Info("Opponent joined with token %d, playing %s", msg.Token, a.Colour)
			return a, nil
		}
	}
}
