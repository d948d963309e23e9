// Package network handles the relay protocol: frames, messages, transports and the connection worker
package network

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"schack-online/internal/game"
)

// MessageType represents different types of messages
type MessageType string

const (
	// Matchmaking
	MsgJoin MessageType = "room"

	// Gameplay, scoped to a room
	MsgMove  MessageType = "mv"
	MsgReset MessageType = "reset"
)

// MaxRoomNameLen keeps the longest message well inside a frame
const MaxRoomNameLen = 32

// Message is one decoded protocol message.
//
// Wire forms:
//
//	room <room> <token>
//	<room> mv <counter> <from_row> <from_col> <to_row> <to_col>
//	<room> reset
type Message struct {
	Type    MessageType
	Room    string
	Token   uint8         // MsgJoin
	Counter uint32        // MsgMove
	From    game.Position // MsgMove
	To      game.Position // MsgMove
}

// NewMessage creates a message of the given type for a room
func NewMessage(msgType MessageType, room string) *Message {
	return &Message{Type: msgType, Room: room}
}

// CreateJoinMessage creates the matchmaking announcement
func CreateJoinMessage(room string, token uint8) *Message {
	msg := NewMessage(MsgJoin, room)
	msg.Token = token
	return msg
}

// CreateMoveMessage creates a move carrying the sender's turn counter
func CreateMoveMessage(room string, counter uint32, from, to game.Position) *Message {
	msg := NewMessage(MsgMove, room)
	msg.Counter = counter
	msg.From = from
	msg.To = to
	return msg
}

// CreateResetMessage creates a full game reset announcement
func CreateResetMessage(room string) *Message {
	return NewMessage(MsgReset, room)
}

// String formats the message as wire text
func (m *Message) String() string {
	switch m.Type {
	case MsgJoin:
		return fmt.Sprintf("room %s %d", m.Room, m.Token)
	case MsgMove:
		return fmt.Sprintf("%s mv %d %s %s", m.Room, m.Counter, m.From, m.To)
	case MsgReset:
		return m.Room + " reset"
	}
	return ""
}

// ErrMalformed is matched by every *ParseError
var ErrMalformed = errors.New("malformed message")

// ParseReason says what was wrong with a message
type ParseReason string

const (
	ReasonEmpty          ParseReason = "empty message"
	ReasonMissingField   ParseReason = "missing field"
	ReasonBadInteger     ParseReason = "bad integer"
	ReasonOutOfRange     ParseReason = "value out of range"
	ReasonUnknownCommand ParseReason = "unknown command"
)

// ParseError describes a message that could not be parsed
type ParseError struct {
	Text   string
	Reason ParseReason
	Field  string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed message %q: %s", e.Text, e.Reason)
	}
	return fmt.Sprintf("malformed message %q: %s: %s", e.Text, e.Reason, e.Field)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformed
}

// ParseMessage parses decoded frame text. Fields are split on any whitespace,
// so trailing spaces are accepted. Fields after the last expected one are ignored.
func ParseMessage(text string) (*Message, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, &ParseError{Text: text, Reason: ReasonEmpty}
	}

	if fields[0] == string(MsgJoin) && len(fields) == 3 {
		token, err := parseUint(text, "token", fields[2], 8)
		if err != nil {
			return nil, err
		}
		return CreateJoinMessage(fields[1], uint8(token)), nil
	}

	if len(fields) < 2 {
		return nil, &ParseError{Text: text, Reason: ReasonMissingField, Field: "command"}
	}

	room := fields[0]
	switch MessageType(fields[1]) {
	case MsgReset:
		return CreateResetMessage(room), nil

	case MsgMove:
		if len(fields) < 7 {
			return nil, &ParseError{Text: text, Reason: ReasonMissingField, Field: moveFields[len(fields)-2]}
		}
		counter, err := parseUint(text, "counter", fields[2], 32)
		if err != nil {
			return nil, err
		}

		var coords [4]int
		for i := range coords {
			v, err := parseUint(text, moveFields[i+1], fields[3+i], 8)
			if err != nil {
				return nil, err
			}
			if v >= game.BoardSize {
				return nil, &ParseError{Text: text, Reason: ReasonOutOfRange, Field: moveFields[i+1]}
			}
			coords[i] = int(v)
		}

		from := game.Position{Row: coords[0], Col: coords[1]}
		to := game.Position{Row: coords[2], Col: coords[3]}
		return CreateMoveMessage(room, uint32(counter), from, to), nil
	}

	return nil, &ParseError{Text: text, Reason: ReasonUnknownCommand, Field: fields[1]}
}

var moveFields = [...]string{"counter", "from_row", "from_col", "to_row", "to_col"}

func parseUint(text, field, value string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(value, 10, bits)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, &ParseError{Text: text, Reason: ReasonOutOfRange, Field: field}
		}
		return 0, &ParseError{Text: text, Reason: ReasonBadInteger, Field: field}
	}
	return v, nil
}

// ValidateRoomName checks that name can be carried as a single message field
func ValidateRoomName(name string) error {
	if name == "" {
		return errors.New("room name is empty")
	}
	if name == string(MsgJoin) {
		return fmt.Errorf("room name %q is reserved", name)
	}
	if len(name) > MaxRoomNameLen {
		return fmt.Errorf("room name is %d bytes, max %d", len(name), MaxRoomNameLen)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || r == 0 {
			return fmt.Errorf("room name %q contains whitespace or NUL", name)
		}
	}
	return nil
}
