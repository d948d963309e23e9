package game

import (
	"errors"
	"fmt"
)

// BoardSize is the number of rows and columns on the board
const BoardSize = 8

var (
	ErrOffBoard    = errors.New("position off board")
	ErrIllegalMove = errors.New("illegal move")
	ErrGameOver    = errors.New("game is over")
)

// Colour is the side a player controls
type Colour int

const (
	White Colour = iota
	Black
)

func (c Colour) String() string {
	if c == Black {
		return "Black"
	}
	return "White"
}

// Opponent returns the other side
func (c Colour) Opponent() Colour {
	if c == White {
		return Black
	}
	return White
}

// Position is a board square addressed the way the wire protocol does:
// row 0 is the top of the board as White sees it (rank 8), col 0 is file a.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// NewPosition returns the position at row, col or ErrOffBoard
func NewPosition(row, col int) (Position, error) {
	p := Position{Row: row, Col: col}
	if !p.Valid() {
		return Position{}, fmt.Errorf("%w: (%d,%d)", ErrOffBoard, row, col)
	}
	return p, nil
}

// Valid reports whether the position lies on the board
func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < BoardSize && p.Col >= 0 && p.Col < BoardSize
}

// String formats the position as its two wire fields, "row col"
func (p Position) String() string {
	return fmt.Sprintf("%d %d", p.Row, p.Col)
}

// Algebraic returns the square name, e.g. "e2"
func (p Position) Algebraic() string {
	if !p.Valid() {
		return "??"
	}
	return fmt.Sprintf("%c%d", 'a'+p.Col, BoardSize-p.Row)
}

// PieceType identifies a chess piece
type PieceType int

const (
	King PieceType = iota
	Queen
	Rook
	Bishop
	Knight
	Pawn
)

var pieceNames = [...]string{"King", "Queen", "Rook", "Bishop", "Knight", "Pawn"}

func (t PieceType) String() string {
	if t < King || t > Pawn {
		return fmt.Sprintf("PieceType(%d)", int(t))
	}
	return pieceNames[t]
}

// Piece is a coloured piece standing on a square
type Piece struct {
	Colour Colour
	Type   PieceType
}

var whiteSymbols = [...]string{"♔", "♕", "♖", "♗", "♘", "♙"}
var blackSymbols = [...]string{"♚", "♛", "♜", "♝", "♞", "♟"}

// Symbol returns the unicode glyph for the piece
func (p Piece) Symbol() string {
	if p.Type < King || p.Type > Pawn {
		return "?"
	}
	if p.Colour == Black {
		return blackSymbols[p.Type]
	}
	return whiteSymbols[p.Type]
}

// Status summarises the state of the game
type Status int

const (
	InProgress Status = iota
	Check
	GameOver
)

func (s Status) String() string {
	switch s {
	case Check:
		return "Check"
	case GameOver:
		return "Game over"
	}
	return "In progress"
}

// Rules is the contract the online layer relies on. Move must leave the game
// untouched when it returns an error.
type Rules interface {
	Move(from, to Position) error
	LegalDestinations(from Position) []Position
	ActiveColour() Colour
	Status() Status
	PieceAt(pos Position) (Piece, bool)
	Reset()
}
