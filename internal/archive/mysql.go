package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"schack-online/pkg/logger"
)

const createGamesTable = `CREATE TABLE IF NOT EXISTS games (
	id          VARCHAR(64) PRIMARY KEY,
	session_id  VARCHAR(36) NOT NULL,
	room        VARCHAR(32) NOT NULL,
	colour      VARCHAR(8)  NOT NULL,
	local_token TINYINT UNSIGNED NOT NULL,
	peer_token  TINYINT UNSIGNED NOT NULL,
	counter     INT UNSIGNED NOT NULL,
	moves       TEXT NOT NULL,
	pgn         TEXT NOT NULL,
	outcome     VARCHAR(16) NOT NULL,
	end_reason  VARCHAR(16) NOT NULL,
	started_at  DATETIME(3) NOT NULL,
	ended_at    DATETIME(3) NOT NULL
)`

const insertGame = `INSERT INTO games
	(id, session_id, room, colour, local_token, peer_token, counter, moves, pgn, outcome, end_reason, started_at, ended_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// MySQLStore writes records to the games table
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects with dsn and creates the games table if missing
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql connection error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping error: %w", err)
	}

	if _, err := db.ExecContext(ctx, createGamesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create games table: %w", err)
	}

	logger.Archive.Info("Connected to MySQL")
	return &MySQLStore{db: db}, nil
}

// Save inserts r
func (s *MySQLStore) Save(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, insertGame,
		r.ID, r.SessionID, r.Room, r.Colour, r.LocalToken, r.PeerToken, r.Counter,
		strings.Join(r.Moves, ","), r.PGN, r.Outcome, r.EndReason, r.StartedAt, r.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game %s: %w", r.ID, err)
	}
	return nil
}

// Close closes the connection pool
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
