// Package archive persists finished games
package archive

import (
	"context"
	"fmt"
	"time"
)

// End reasons
const (
	EndReset      = "reset"
	EndRemote     = "remote_reset"
	EndGameOver   = "game_over"
	EndDesync     = "desync"
	EndDisconnect = "disconnect"
	EndQuit       = "quit"
)

// Record is one archived game
type Record struct {
	ID         string    `json:"id" bson:"_id"`
	SessionID  string    `json:"session_id" bson:"session_id"`
	Room       string    `json:"room" bson:"room"`
	Colour     string    `json:"colour" bson:"colour"`
	LocalToken uint8     `json:"local_token" bson:"local_token"`
	PeerToken  uint8     `json:"peer_token" bson:"peer_token"`
	Counter    uint32    `json:"counter" bson:"counter"`
	Moves      []string  `json:"moves" bson:"moves"`
	PGN        string    `json:"pgn,omitempty" bson:"pgn,omitempty"`
	Outcome    string    `json:"outcome" bson:"outcome"`
	EndReason  string    `json:"end_reason" bson:"end_reason"`
	StartedAt  time.Time `json:"started_at" bson:"started_at"`
	EndedAt    time.Time `json:"ended_at" bson:"ended_at"`
}

// Store saves records. Implementations are not required to be safe for
// concurrent use; the client saves from a single goroutine.
type Store interface {
	Save(ctx context.Context, r Record) error
	Close() error
}

// Config selects and configures a store
type Config struct {
	Driver string
	Dir    string
	DSN    string
	DB     string
}

// Open creates the store named by cfg.Driver
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return Nop{}, nil
	case "file":
		return NewFileStore(cfg.Dir)
	case "mysql":
		return NewMySQLStore(ctx, cfg.DSN)
	case "mongo":
		return NewMongoStore(ctx, cfg.DSN, cfg.DB)
	}
	return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
}

// Nop discards every record
type Nop struct{}

func (Nop) Save(context.Context, Record) error { return nil }
func (Nop) Close() error                       { return nil }
