// Package game adapts the chess rules engine to the board coordinates used on the wire
package game

import (
	"fmt"

	"github.com/notnil/chess"
)

// Engine implements Rules on top of github.com/notnil/chess
type Engine struct {
	game *chess.Game
}

// NewEngine creates an engine holding a fresh game
func NewEngine() *Engine {
	return &Engine{game: chess.NewGame()}
}

// Reset starts a new game
func (e *Engine) Reset() {
	e.game = chess.NewGame()
}

func toSquare(p Position) chess.Square {
	rank := BoardSize - 1 - p.Row
	return chess.Square(rank*BoardSize + p.Col)
}

func fromSquare(sq chess.Square) Position {
	return Position{Row: BoardSize - 1 - int(sq.Rank()), Col: int(sq.File())}
}

// findMove looks up the legal move between two squares. A pawn reaching the
// last rank has one candidate per promotion piece; the queen is preferred.
func (e *Engine) findMove(from, to Position) *chess.Move {
	s1, s2 := toSquare(from), toSquare(to)

	var found *chess.Move
	for _, m := range e.game.ValidMoves() {
		if m.S1() != s1 || m.S2() != s2 {
			continue
		}
		if m.Promo() == chess.NoPieceType || m.Promo() == chess.Queen {
			return m
		}
		if found == nil {
			found = m
		}
	}
	return found
}

// Move plays from -> to for the side to move
func (e *Engine) Move(from, to Position) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %s -> %s", ErrOffBoard, from, to)
	}
	if e.game.Outcome() != chess.NoOutcome {
		return ErrGameOver
	}

	m := e.findMove(from, to)
	if m == nil {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalMove, from.Algebraic(), to.Algebraic())
	}
	if err := e.game.Move(m); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return nil
}

// LegalDestinations lists the squares the piece on from can move to
func (e *Engine) LegalDestinations(from Position) []Position {
	if !from.Valid() {
		return nil
	}

	s1 := toSquare(from)
	seen := make(map[chess.Square]bool)
	var out []Position
	for _, m := range e.game.ValidMoves() {
		if m.S1() != s1 || seen[m.S2()] {
			continue
		}
		seen[m.S2()] = true
		out = append(out, fromSquare(m.S2()))
	}
	return out
}

// ActiveColour returns the side to move
func (e *Engine) ActiveColour() Colour {
	if e.game.Position().Turn() == chess.Black {
		return Black
	}
	return White
}

// Status reports whether the game is running, in check or over
func (e *Engine) Status() Status {
	if e.game.Outcome() != chess.NoOutcome {
		return GameOver
	}
	moves := e.game.Moves()
	if len(moves) > 0 && moves[len(moves)-1].HasTag(chess.Check) {
		return Check
	}
	return InProgress
}

// PieceAt returns the piece on pos, if any
func (e *Engine) PieceAt(pos Position) (Piece, bool) {
	if !pos.Valid() {
		return Piece{}, false
	}

	p := e.game.Position().Board().Piece(toSquare(pos))
	if p == chess.NoPiece {
		return Piece{}, false
	}

	piece := Piece{Colour: White}
	if p.Color() == chess.Black {
		piece.Colour = Black
	}
	switch p.Type() {
	case chess.King:
		piece.Type = King
	case chess.Queen:
		piece.Type = Queen
	case chess.Rook:
		piece.Type = Rook
	case chess.Bishop:
		piece.Type = Bishop
	case chess.Knight:
		piece.Type = Knight
	default:
		piece.Type = Pawn
	}
	return piece, true
}

// Outcome returns the result string ("*", "1-0", "0-1", "1/2-1/2") and how it
// was reached
func (e *Engine) Outcome() (string, string) {
	return string(e.game.Outcome()), e.game.Method().String()
}

// PGN returns the game record in PGN notation
func (e *Engine) PGN() string {
	return e.game.String()
}

// FEN returns the current position in FEN notation
func (e *Engine) FEN() string {
	return e.game.Position().String()
}

// MoveCount returns the number of half-moves played
func (e *Engine) MoveCount() int {
	return len(e.game.Moves())
}
