// Package client runs the console game: connection, matchmaking and the tick loop
package client

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"schack-online/internal/game"
)

type Display struct {
	out io.Writer

	serverColor  *color.Color
	connectColor *color.Color
	gameColor    *color.Color
	winColor     *color.Color
	loseColor    *color.Color
	warningColor *color.Color
	infoColor    *color.Color
	playerColor  *color.Color
	enemyColor   *color.Color
	lightSquare  *color.Color
	darkSquare   *color.Color
	markColor    *color.Color
}

// NewDisplay creates a display writing to the colour-aware stdout
func NewDisplay() *Display {
	return NewDisplayTo(color.Output)
}

// NewDisplayTo creates a display writing to out
func NewDisplayTo(out io.Writer) *Display {
	return &Display{
		out:          out,
		serverColor:  color.New(color.FgCyan, color.Bold),
		connectColor: color.New(color.FgGreen, color.Bold),
		gameColor:    color.New(color.FgYellow, color.Bold),
		winColor:     color.New(color.FgGreen, color.Bold, color.BgBlack),
		loseColor:    color.New(color.FgRed, color.Bold, color.BgBlack),
		warningColor: color.New(color.FgYellow),
		infoColor:    color.New(color.FgWhite),
		playerColor:  color.New(color.FgCyan),
		enemyColor:   color.New(color.FgMagenta),
		lightSquare:  color.New(color.FgBlack, color.BgWhite),
		darkSquare:   color.New(color.FgBlack, color.BgHiBlack),
		markColor:    color.New(color.FgBlack, color.BgGreen),
	}
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// PrintBanner displays the game banner
func (d *Display) PrintBanner() {
	banner := `
╔═══════════════════════════════════════╗
║              SCHACK ONLINE            ║
║          two-player relay chess       ║
╚═══════════════════════════════════════╝
`
	d.gameColor.Fprintln(d.out, banner)
}

// PrintServerStatus displays server connection status
func (d *Display) PrintServerStatus(message string) {
	d.serverColor.Fprintf(d.out, "[%s] [SERVER] %s\n", timestamp(), message)
}

// PrintConnection displays a successful connection
func (d *Display) PrintConnection(addr string) {
	d.connectColor.Fprintf(d.out, "[%s] [CONNECTED] Connected to server at: %s\n", timestamp(), addr)
}

// PrintMatchmaking displays that the room was joined
func (d *Display) PrintMatchmaking(room string, token uint8) {
	d.gameColor.Fprintf(d.out, "[%s] [MATCHMAKING] Room %s, token %d. Waiting for opponent to join...\n",
		timestamp(), room, token)
}

// PrintMatched displays the assigned colour
func (d *Display) PrintMatched(colour game.Colour, peerToken uint8) {
	d.gameColor.Fprintf(d.out, "[%s] [MATCHMAKING] Opponent joined (token %d). You are %s!\n",
		timestamp(), peerToken, strings.ToLower(colour.String()))
}

// StatusText is the line shown above the board
func StatusText(status game.Status, active, local game.Colour) string {
	if status == game.GameOver {
		return "Game Over, press r to restart!"
	}
	return fmt.Sprintf("%s, it's %s's turn. You're %s", status, active, local)
}

// PrintBoard draws the board from row 0 to 7 with the selection and its
// candidate squares highlighted
func (d *Display) PrintBoard(rules game.Rules, local game.Colour, turn uint32, selected *game.Position, candidates []game.Position) {
	marks := make(map[game.Position]bool, len(candidates))
	for _, p := range candidates {
		marks[p] = true
	}

	d.infoColor.Fprintf(d.out, "\n%s\n", StatusText(rules.Status(), rules.ActiveColour(), local))
	d.infoColor.Fprint(d.out, "    ")
	for col := 0; col < game.BoardSize; col++ {
		d.infoColor.Fprintf(d.out, " %d ", col)
	}
	fmt.Fprintln(d.out)

	for row := 0; row < game.BoardSize; row++ {
		d.infoColor.Fprintf(d.out, " %d  ", row)
		for col := 0; col < game.BoardSize; col++ {
			pos := game.Position{Row: row, Col: col}

			cell := "   "
			if piece, ok := rules.PieceAt(pos); ok {
				cell = " " + piece.Symbol() + " "
			} else if marks[pos] {
				cell = " • "
			}

			square := d.lightSquare
			switch {
			case selected != nil && *selected == pos:
				square = d.markColor
			case marks[pos]:
				square = d.markColor
			case (row+col)%2 == 1:
				square = d.darkSquare
			}
			square.Fprint(d.out, cell)
		}
		d.infoColor.Fprintf(d.out, "  %d\n", game.BoardSize-row)
	}
	d.infoColor.Fprint(d.out, "     a  b  c  d  e  f  g  h\n")
	d.infoColor.Fprintf(d.out, "Turn: %d\n", turn)
}

// PrintMoves lists the candidate squares of the selection
func (d *Display) PrintMoves(selected game.Position, candidates []game.Position) {
	if len(candidates) == 0 {
		d.PrintInfo(fmt.Sprintf("No legal moves from %s", selected.Algebraic()))
		return
	}

	parts := make([]string, 0, len(candidates))
	for _, p := range candidates {
		parts = append(parts, fmt.Sprintf("%s (%s)", p, p.Algebraic()))
	}
	d.playerColor.Fprintf(d.out, "Moves from %s: %s\n", selected.Algebraic(), strings.Join(parts, ", "))
}

// PrintOpponentMove displays a move received from the relay
func (d *Display) PrintOpponentMove(from, to game.Position, turn uint32) {
	d.enemyColor.Fprintf(d.out, "[%s] [OPPONENT] %s -> %s (turn %d)\n",
		timestamp(), from.Algebraic(), to.Algebraic(), turn)
}

// PrintGameEnd displays the result of a finished game
func (d *Display) PrintGameEnd(result, method string, local game.Colour) {
	d.infoColor.Fprintln(d.out, "\n[GAME ENDED]")
	d.infoColor.Fprintf(d.out, "[RESULT] %s by %s\n", result, method)

	switch {
	case result == "1/2-1/2":
		d.warningColor.Fprintln(d.out, "DRAW!")
	case (result == "1-0") == (local == game.White):
		d.winColor.Fprintln(d.out, "VICTORY! You defeated your opponent!")
	default:
		d.loseColor.Fprintln(d.out, "DEFEAT! Better luck next time!")
	}
}

// PrintDesync displays the diagnostic for diverged peers
func (d *Display) PrintDesync(remote, local uint32) {
	d.loseColor.Fprintf(d.out, "remote %d, local %d\n", remote, local)
	d.loseColor.Fprintln(d.out, "Out of sync with online opponent, exiting game")
}

// PrintHelp lists the console commands
func (d *Display) PrintHelp() {
	d.infoColor.Fprintln(d.out, "Commands:")
	d.infoColor.Fprintln(d.out, "  <row> <col>              select a piece, or move the selected piece there")
	d.infoColor.Fprintln(d.out, "  <fr> <fc> <tr> <tc>      move from (fr,fc) to (tr,tc)")
	d.infoColor.Fprintln(d.out, "  m                        list moves of the selected piece")
	d.infoColor.Fprintln(d.out, "  r                        reset the game for both players")
	d.infoColor.Fprintln(d.out, "  q                        quit")
	d.infoColor.Fprintln(d.out, "  h                        this help")
}

// PrintError displays error messages
func (d *Display) PrintError(message string) {
	d.loseColor.Fprintf(d.out, "[ERROR] %s\n", message)
}

// PrintWarning displays warning messages
func (d *Display) PrintWarning(message string) {
	d.warningColor.Fprintf(d.out, "[WARNING] %s\n", message)
}

// PrintInfo displays informational messages
func (d *Display) PrintInfo(message string) {
	d.infoColor.Fprintf(d.out, "[INFO] %s\n", message)
}

// PrintSeparator prints a visual separator
func (d *Display) PrintSeparator() {
	d.infoColor.Fprintln(d.out, "═══════════════════════════════════════════════════════════════")
}
