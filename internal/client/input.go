package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"schack-online/internal/game"
)

// CommandKind identifies a console command
type CommandKind int

const (
	CmdSelect CommandKind = iota
	CmdMove
	CmdReset
	CmdQuit
	CmdMoves
	CmdHelp
)

// Command is one parsed console line. At is used by CmdSelect, From and To
// by CmdMove.
type Command struct {
	Kind CommandKind
	At   game.Position
	From game.Position
	To   game.Position
}

var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand parses a console line
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}

	switch fields[0] {
	case "r", "reset":
		return Command{Kind: CmdReset}, nil
	case "q", "quit", "exit":
		return Command{Kind: CmdQuit}, nil
	case "m", "moves":
		return Command{Kind: CmdMoves}, nil
	case "h", "help", "?":
		return Command{Kind: CmdHelp}, nil
	}

	coords := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
		}
		if v < 0 || v >= game.BoardSize {
			return Command{}, fmt.Errorf("%w: %d", game.ErrOffBoard, v)
		}
		coords = append(coords, v)
	}

	switch len(coords) {
	case 2:
		return Command{Kind: CmdSelect, At: game.Position{Row: coords[0], Col: coords[1]}}, nil
	case 4:
		return Command{
			Kind: CmdMove,
			From: game.Position{Row: coords[0], Col: coords[1]},
			To:   game.Position{Row: coords[2], Col: coords[3]},
		}, nil
	}
	return Command{}, fmt.Errorf("%w: expected 2 or 4 numbers, got %d", ErrUnknownCommand, len(coords))
}

// InputHandler manages console input
type InputHandler struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewInputHandler reads from stdin
func NewInputHandler() *InputHandler {
	return NewInputHandlerFrom(os.Stdin, os.Stdout)
}

// NewInputHandlerFrom reads lines from in and writes prompts to out
func NewInputHandlerFrom(in io.Reader, out io.Writer) *InputHandler {
	return &InputHandler{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// Prompt asks for one line. An empty answer returns def.
func (ih *InputHandler) Prompt(prompt, def string) string {
	fmt.Fprint(ih.out, prompt)
	if !ih.scanner.Scan() {
		return def
	}

	input := strings.TrimSpace(ih.scanner.Text())
	if input == "" {
		return def
	}
	return input
}

// Lines pumps the remaining input lines into a channel from a separate
// goroutine so the game loop can poll it. The channel closes on EOF.
// Once the pump is started Prompt must not be called again.
func (ih *InputHandler) Lines(ctx context.Context) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)
		for ih.scanner.Scan() {
			select {
			case lines <- ih.scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines
}
