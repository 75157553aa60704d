package entity

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/apperror"
)

const (
	PlayerX = "X"
	PlayerO = "O"

	WinnerDraw = "draw"

	FirstPlayerHuman = "human"
	FirstPlayerAI    = "ai"
)

const (
	MinWinLength = 3
	MaxWinLength = 20

	MinAITimeMS = 100
	MaxAITimeMS = 30000
)

var (
	ErrInvalidWinLength   = errors.New("win length must be between 3 and 20")
	ErrInvalidPlayer      = errors.New("player must be X or O")
	ErrInvalidAITime      = errors.New("AI time must be between 100 and 30000 ms")
	ErrInvalidFirstPlayer = errors.New("first player must be human or ai")
)

// Move - is a single placed mark on the unbounded plane.
type Move struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Player string `json:"player"`
}

// Game - is the server-side record of one game: immutable settings,
// the ordered move history and whose turn it is next.
type Game struct {
	ID            string `json:"id"`
	WinLength     int    `json:"win_length"`
	HumanPlayer   string `json:"human_player"`
	AIPlayer      string `json:"ai_player"`
	AITimeMS      int    `json:"ai_time_ms"`
	CurrentPlayer string `json:"current_player"`
	Moves         []Move `json:"moves"`
	GameOver      bool   `json:"game_over"`
	Winner        string `json:"winner,omitempty"`
}

func NewGame(id string, winLength int, humanPlayer string, aiTimeMS int) *Game {
	return &Game{
		ID:            id,
		WinLength:     winLength,
		HumanPlayer:   humanPlayer,
		AIPlayer:      OpponentOf(humanPlayer),
		AITimeMS:      aiTimeMS,
		CurrentPlayer: PlayerX,
		Moves:         []Move{},
	}
}

// ValidateSettings - checks new-game settings before any session is created.
func ValidateSettings(winLength int, humanPlayer string, aiTimeMS int, firstPlayer string) error {
	if winLength < MinWinLength || winLength > MaxWinLength {
		return fmt.Errorf("%w: got %d", ErrInvalidWinLength, winLength)
	}

	if humanPlayer != PlayerX && humanPlayer != PlayerO {
		return fmt.Errorf("%w: got %q", ErrInvalidPlayer, humanPlayer)
	}

	if aiTimeMS < MinAITimeMS || aiTimeMS > MaxAITimeMS {
		return fmt.Errorf("%w: got %d", ErrInvalidAITime, aiTimeMS)
	}

	if firstPlayer != FirstPlayerHuman && firstPlayer != FirstPlayerAI {
		return fmt.Errorf("%w: got %q", ErrInvalidFirstPlayer, firstPlayer)
	}

	return nil
}

func OpponentOf(player string) string {
	if player == PlayerX {
		return PlayerO
	}

	return PlayerX
}

// ConfirmHumanTurn - gates a human move submission.
func (that *Game) ConfirmHumanTurn() error {
	if that.GameOver {
		return apperror.ErrGameFinished
	}

	if that.CurrentPlayer != that.HumanPlayer {
		return apperror.ErrNotYourTurn
	}

	return nil
}

// ConfirmAITurn - gates an AI move request.
func (that *Game) ConfirmAITurn() error {
	if that.GameOver {
		return apperror.ErrGameFinished
	}

	if that.CurrentPlayer != that.AIPlayer {
		return apperror.ErrNotAITurn
	}

	return nil
}

// ApplyMove - appends a move by the current player, hands the turn to the
// opponent and records the terminal state reported by the engine.
// Callers must confirm the turn gate first; the method only guards the
// game-over invariant.
func (that *Game) ApplyMove(x, y int, gameOver bool, winner string) error {
	if that.GameOver {
		return apperror.ErrGameFinished
	}

	that.Moves = append(that.Moves, Move{X: x, Y: y, Player: that.CurrentPlayer})
	that.CurrentPlayer = OpponentOf(that.CurrentPlayer)
	that.GameOver = gameOver
	that.Winner = winner

	return nil
}

// Reset - clears the move history and returns the game to its initial state.
// X always moves first.
func (that *Game) Reset() {
	that.Moves = []Move{}
	that.CurrentPlayer = PlayerX
	that.GameOver = false
	that.Winner = ""
}

func (that *Game) IsFinished() bool {
	return that.GameOver
}
