package client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schack-online/internal/game"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"r", Command{Kind: CmdReset}},
		{" Reset ", Command{Kind: CmdReset}},
		{"q", Command{Kind: CmdQuit}},
		{"exit", Command{Kind: CmdQuit}},
		{"m", Command{Kind: CmdMoves}},
		{"h", Command{Kind: CmdHelp}},
		{"6 4", Command{Kind: CmdSelect, At: game.Position{Row: 6, Col: 4}}},
		{"6 4 4 4", Command{
			Kind: CmdMove,
			From: game.Position{Row: 6, Col: 4},
			To:   game.Position{Row: 4, Col: 4},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{"", "   ", "x", "6", "6 4 4", "a b", "1 2 3 4 5"} {
		_, err := ParseCommand(line)
		assert.ErrorIs(t, err, ErrUnknownCommand, line)
	}

	_, err := ParseCommand("8 0")
	assert.ErrorIs(t, err, game.ErrOffBoard)
	_, err = ParseCommand("0 0 -1 0")
	assert.ErrorIs(t, err, game.ErrOffBoard)
}

func TestPromptDefault(t *testing.T) {
	var out strings.Builder
	ih := NewInputHandlerFrom(strings.NewReader("\nlobby\n"), &out)

	assert.Equal(t, "127.0.0.1:6000", ih.Prompt("Address: ", "127.0.0.1:6000"))
	assert.Equal(t, "lobby", ih.Prompt("Room: ", ""))
	// EOF keeps the default
	assert.Equal(t, "x", ih.Prompt("Again: ", "x"))
	assert.Equal(t, "Address: Room: Again: ", out.String())
}

func TestLinesPump(t *testing.T) {
	ih := NewInputHandlerFrom(strings.NewReader("6 4\nq\n"), &strings.Builder{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines := ih.Lines(ctx)

	var got []string
	timeout := time.After(time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				assert.Equal(t, []string{"6 4", "q"}, got)
				return
			}
			got = append(got, line)
		case <-timeout:
			t.Fatal("line pump did not finish")
		}
	}
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "In progress, it's White's turn. You're Black",
		StatusText(game.InProgress, game.White, game.Black))
	assert.Equal(t, "Check, it's Black's turn. You're Black",
		StatusText(game.Check, game.Black, game.Black))
	assert.Equal(t, "Game Over, press r to restart!",
		StatusText(game.GameOver, game.White, game.White))
}
