package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/engine"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/repository"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/usecase"
)

var errCoordinatesRequired = errors.New("x and y coordinates required")

type gameService interface {
	CreateGame(ctx context.Context, settings usecase.GameSettings) (*entity.Game, *engine.Response, error)
	MakeMove(ctx context.Context, gameID string, x, y int) (*entity.Game, *engine.Response, error)
	MakeAIMove(ctx context.Context, gameID string) (*entity.Game, *engine.Response, error)
	GetState(ctx context.Context, gameID string) (*entity.Game, *engine.Response, error)
	ResetGame(ctx context.Context, gameID string) (*entity.Game, *engine.Response, error)
}

type handlers struct {
	logger      *slog.Logger
	gameService gameService
}

func newHandlers(logger *slog.Logger, gameService gameService) *handlers {
	return &handlers{
		logger:      logger,
		gameService: gameService,
	}
}

func (that *handlers) NewGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("handler", "NewGame")

	// Unset fields keep the historical defaults.
	req := newGameRequest{
		WinLength:   5,
		HumanPlayer: entity.PlayerX,
		AITimeMS:    5000,
		FirstPlayer: entity.FirstPlayerHuman,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeError(w, log, http.StatusBadRequest, errors.New("JSON data required"))
		return
	}

	game, resp, err := that.gameService.CreateGame(r.Context(), usecase.GameSettings{
		WinLength:   req.WinLength,
		HumanPlayer: req.HumanPlayer,
		AITimeMS:    req.AITimeMS,
		FirstPlayer: req.FirstPlayer,
	})
	if err != nil {
		that.writeClassifiedError(w, log, err)
		return
	}

	that.writeJSON(w, log, http.StatusOK, newGameResponse{
		GameID:        game.ID,
		Board:         resp.Board,
		CurrentPlayer: game.CurrentPlayer,
		Move:          resp.Move,
		Stats:         resp.Stats,
		GameOver:      game.GameOver,
		Winner:        winnerOrNull(game.Winner),
	})
}

func (that *handlers) MakeMove(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("handler", "MakeMove")

	var req makeMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeError(w, log, http.StatusBadRequest, errors.New("JSON data required"))
		return
	}

	if req.X == nil || req.Y == nil {
		that.writeError(w, log, http.StatusBadRequest, errCoordinatesRequired)
		return
	}

	game, resp, err := that.gameService.MakeMove(r.Context(), req.GameID, *req.X, *req.Y)
	if err != nil {
		that.writeClassifiedError(w, log, err)
		return
	}

	that.writeJSON(w, log, http.StatusOK, moveResponse{
		Board:         resp.Board,
		CurrentPlayer: game.CurrentPlayer,
		Move:          resp.Move,
		GameOver:      game.GameOver,
		Winner:        winnerOrNull(game.Winner),
	})
}

func (that *handlers) AIMove(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("handler", "AIMove")

	var req aiMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeError(w, log, http.StatusBadRequest, errors.New("JSON data required"))
		return
	}

	game, resp, err := that.gameService.MakeAIMove(r.Context(), req.GameID)
	if err != nil {
		that.writeClassifiedError(w, log, err)
		return
	}

	that.writeJSON(w, log, http.StatusOK, moveResponse{
		Board:         resp.Board,
		CurrentPlayer: game.CurrentPlayer,
		Move:          resp.Move,
		Stats:         resp.Stats,
		GameOver:      game.GameOver,
		Winner:        winnerOrNull(game.Winner),
	})
}

func (that *handlers) GameState(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("handler", "GameState")

	game, resp, err := that.gameService.GetState(r.Context(), r.PathValue("id"))
	if err != nil {
		that.writeClassifiedError(w, log, err)
		return
	}

	that.writeJSON(w, log, http.StatusOK, gameStateResponse{
		Board:         resp.Board,
		CurrentPlayer: game.CurrentPlayer,
		Moves:         game.Moves,
		GameOver:      game.GameOver,
		Winner:        winnerOrNull(game.Winner),
		WinLength:     game.WinLength,
		HumanPlayer:   game.HumanPlayer,
	})
}

func (that *handlers) ResetGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("handler", "ResetGame")

	game, resp, err := that.gameService.ResetGame(r.Context(), r.PathValue("id"))
	if err != nil {
		that.writeClassifiedError(w, log, err)
		return
	}

	that.writeJSON(w, log, http.StatusOK, resetGameResponse{
		Board:         resp.Board,
		CurrentPlayer: game.CurrentPlayer,
		Moves:         game.Moves,
		GameOver:      game.GameOver,
		Winner:        winnerOrNull(game.Winner),
	})
}

// writeClassifiedError maps the error taxonomy onto HTTP statuses: unknown
// game 404, rejected input or turn-gate violations 400, engine failures 500.
func (that *handlers) writeClassifiedError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, repository.ErrGameNotFound):
		that.writeError(w, log, http.StatusNotFound, errors.New("Game not found"))
	case errors.Is(err, apperror.ErrGameFinished),
		errors.Is(err, apperror.ErrNotYourTurn),
		errors.Is(err, apperror.ErrNotAITurn),
		errors.Is(err, entity.ErrInvalidWinLength),
		errors.Is(err, entity.ErrInvalidPlayer),
		errors.Is(err, entity.ErrInvalidAITime),
		errors.Is(err, entity.ErrInvalidFirstPlayer):
		that.writeError(w, log, http.StatusBadRequest, err)
	default:
		that.writeError(w, log, http.StatusInternalServerError, err)
	}
}

func (that *handlers) writeError(w http.ResponseWriter, log *slog.Logger, status int, err error) {
	log.Warn("request failed", "status", status, "error", err)

	that.writeJSON(w, log, status, errorResponse{Error: err.Error()})
}

func (that *handlers) writeJSON(w http.ResponseWriter, log *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("failed to write response", "error", err)
	}
}
