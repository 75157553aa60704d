package rest

import (
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/engine"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/entity"
)

type newGameRequest struct {
	WinLength   int    `json:"win_length"`
	HumanPlayer string `json:"human_player"`
	AITimeMS    int    `json:"ai_time_ms"`
	FirstPlayer string `json:"first_player"`
}

type makeMoveRequest struct {
	GameID string `json:"game_id"`
	X      *int   `json:"x"`
	Y      *int   `json:"y"`
}

type aiMoveRequest struct {
	GameID string `json:"game_id"`
}

type newGameResponse struct {
	GameID        string        `json:"game_id"`
	Board         engine.Board  `json:"board"`
	CurrentPlayer string        `json:"current_player"`
	Move          *engine.Move  `json:"move,omitempty"`
	Stats         *engine.Stats `json:"stats,omitempty"`
	GameOver      bool          `json:"game_over"`
	Winner        *string       `json:"winner"`
}

type moveResponse struct {
	Board         engine.Board  `json:"board"`
	CurrentPlayer string        `json:"current_player"`
	Move          *engine.Move  `json:"move,omitempty"`
	Stats         *engine.Stats `json:"stats,omitempty"`
	GameOver      bool          `json:"game_over"`
	Winner        *string       `json:"winner"`
}

type gameStateResponse struct {
	Board         engine.Board  `json:"board"`
	CurrentPlayer string        `json:"current_player"`
	Moves         []entity.Move `json:"moves"`
	GameOver      bool          `json:"game_over"`
	Winner        *string       `json:"winner"`
	WinLength     int           `json:"win_length"`
	HumanPlayer   string        `json:"human_player"`
}

type resetGameResponse struct {
	Board         engine.Board  `json:"board"`
	CurrentPlayer string        `json:"current_player"`
	Moves         []entity.Move `json:"moves"`
	GameOver      bool          `json:"game_over"`
	Winner        *string       `json:"winner"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// winnerOrNull keeps "winner": null on the wire while the entity stores the
// absent winner as an empty string.
func winnerOrNull(winner string) *string {
	if winner == "" {
		return nil
	}

	return &winner
}
