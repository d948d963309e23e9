package network

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schack-online/internal/game"
)

func TestMessageString(t *testing.T) {
	t.Parallel()

	from := game.Position{Row: 1, Col: 1}
	to := game.Position{Row: 3, Col: 3}

	assert.Equal(t, "room lobby 200", CreateJoinMessage("lobby", 200).String())
	assert.Equal(t, "lobby mv 2 1 1 3 3", CreateMoveMessage("lobby", 2, from, to).String())
	assert.Equal(t, "lobby reset", CreateResetMessage("lobby").String())
	assert.Equal(t, "", NewMessage("bogus", "lobby").String())
}

func TestParseMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want *Message
	}{
		{
			name: "join",
			text: "room lobby 5",
			want: &Message{Type: MsgJoin, Room: "lobby", Token: 5},
		},
		{
			name: "join with trailing space",
			text: "room lobby 255 ",
			want: &Message{Type: MsgJoin, Room: "lobby", Token: 255},
		},
		{
			name: "move",
			text: "lobby mv 2 1 1 3 3",
			want: &Message{
				Type: MsgMove, Room: "lobby", Counter: 2,
				From: game.Position{Row: 1, Col: 1}, To: game.Position{Row: 3, Col: 3},
			},
		},
		{
			name: "move with trailing space",
			text: "lobby mv 14 6 4 4 4 ",
			want: &Message{
				Type: MsgMove, Room: "lobby", Counter: 14,
				From: game.Position{Row: 6, Col: 4}, To: game.Position{Row: 4, Col: 4},
			},
		},
		{
			name: "reset",
			text: "lobby reset ",
			want: &Message{Type: MsgReset, Room: "lobby"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMessage(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMessageRoundTrip(t *testing.T) {
	t.Parallel()

	msgs := []*Message{
		CreateJoinMessage("a", 0),
		CreateJoinMessage(strings.Repeat("r", MaxRoomNameLen), 255),
		CreateMoveMessage(strings.Repeat("r", MaxRoomNameLen), 4294967295,
			game.Position{Row: 7, Col: 7}, game.Position{Row: 0, Col: 0}),
		CreateResetMessage("lobby"),
	}

	for _, msg := range msgs {
		frame, err := EncodeFrame(msg.String())
		require.NoError(t, err, msg.String())
		text, err := DecodeFrame(frame)
		require.NoError(t, err)
		got, err := ParseMessage(text)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	}
}

func TestParseMessageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text   string
		reason ParseReason
		field  string
	}{
		{"", ReasonEmpty, ""},
		{"   ", ReasonEmpty, ""},
		{"lobby", ReasonMissingField, "command"},
		{"room lobby x", ReasonBadInteger, "token"},
		{"room lobby 256", ReasonOutOfRange, "token"},
		{"room lobby -1", ReasonBadInteger, "token"},
		{"lobby mv", ReasonMissingField, "counter"},
		{"lobby mv 2 1 1 3", ReasonMissingField, "to_col"},
		{"lobby mv two 1 1 3 3", ReasonBadInteger, "counter"},
		{"lobby mv 4294967296 1 1 3 3", ReasonOutOfRange, "counter"},
		{"lobby mv 2 1 8 3 3", ReasonOutOfRange, "from_col"},
		{"lobby mv 2 1 1 3 300", ReasonOutOfRange, "to_col"},
		{"lobby castle", ReasonUnknownCommand, "castle"},
	}

	for _, tt := range tests {
		msg, err := ParseMessage(tt.text)
		assert.Nil(t, msg, tt.text)
		require.Error(t, err, tt.text)
		assert.ErrorIs(t, err, ErrMalformed)

		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, tt.reason, perr.Reason, tt.text)
		assert.Equal(t, tt.field, perr.Field, tt.text)
	}
}

func TestValidateRoomName(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateRoomName("lobby"))
	assert.NoError(t, ValidateRoomName(strings.Repeat("r", MaxRoomNameLen)))

	for _, bad := range []string{"", "room", "two words", "tab\there", "nul\x00", strings.Repeat("r", MaxRoomNameLen+1)} {
		assert.Error(t, ValidateRoomName(bad), "%q", bad)
	}
}
