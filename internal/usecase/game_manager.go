package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/engine"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/pkg"
)

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
}

type engineClient interface {
	Invoke(ctx context.Context, req engine.Request) (*engine.Response, error)
}

// GameSettings - carries the validated inputs of a new-game request.
type GameSettings struct {
	WinLength   int
	HumanPlayer string
	AITimeMS    int
	FirstPlayer string
}

// GameManager - composes one API operation end to end: resolve the game,
// check the turn gate, exchange with the engine and apply the outcome.
// A game is only ever mutated after the engine reported success.
//
// Operations against the same game id are serialized with a per-game lock,
// so a second request arriving mid-exchange waits and then observes the
// first one's effects.
type GameManager struct {
	logger   *slog.Logger
	gameRepo gameRepo
	engine   engineClient

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGameManager(logger *slog.Logger, gameRepo gameRepo, engineClient engineClient) *GameManager {
	return &GameManager{
		logger: logger.With("component", "game-manager"),

		gameRepo: gameRepo,
		engine:   engineClient,

		locks: make(map[string]*sync.Mutex),
	}
}

// CreateGame - mints a new game. When the AI is designated to move first it
// performs the opening AI exchange before returning; if that exchange fails
// the game stays stored with its empty history and the response falls back
// to a plain board snapshot of that same empty history.
func (that *GameManager) CreateGame(ctx context.Context, settings GameSettings) (*entity.Game, *engine.Response, error) {
	log := that.logger.With("method", "CreateGame")

	if err := entity.ValidateSettings(settings.WinLength, settings.HumanPlayer, settings.AITimeMS, settings.FirstPlayer); err != nil {
		return nil, nil, err
	}

	gameID := pkg.GenerateGameID()
	game := entity.NewGame(gameID, settings.WinLength, settings.HumanPlayer, settings.AITimeMS)

	// The designated first mover is the side whose turn it is. X opens by
	// default; an AI-first game starts in the AI's turn whatever its mark.
	if settings.FirstPlayer == entity.FirstPlayerAI {
		game.CurrentPlayer = game.AIPlayer
	}

	if err := that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return nil, nil, fmt.Errorf("failed to store game: %w", err)
	}

	log.Info("game created",
		"gameID", gameID, "winLength", settings.WinLength,
		"humanPlayer", settings.HumanPlayer, "firstPlayer", settings.FirstPlayer)

	if settings.FirstPlayer == entity.FirstPlayerAI {
		resp, err := that.engine.Invoke(ctx, engine.Request{
			Command:       engine.CommandAIMove,
			WinLength:     game.WinLength,
			Moves:         game.Moves,
			CurrentPlayer: game.CurrentPlayer,
			TimeMS:        game.AITimeMS,
		})

		switch {
		case err != nil:
			// The stored game still has its empty history, which is exactly
			// what the snapshot below reports. The client retries via ai_move.
			log.Error("AI opening move failed", "gameID", gameID, "error", err)
		default:
			if game, err = that.applyEngineMove(ctx, game, resp); err != nil {
				return nil, nil, err
			}

			log.Info("AI opening move applied", "gameID", gameID, "move", resp.Move)

			return game, resp, nil
		}
	}

	resp, err := that.snapshot(ctx, game)
	if err != nil {
		return nil, nil, err
	}

	return game, resp, nil
}

// MakeMove - submits the human player's move. The engine is the authority on
// cell legality; the session only gates turn order and liveness.
func (that *GameManager) MakeMove(ctx context.Context, gameID string, x, y int) (*entity.Game, *engine.Response, error) {
	log := that.logger.With("method", "MakeMove", "gameID", gameID)

	unlock := that.lockGame(gameID)
	defer unlock()

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get game: %w", err)
	}

	if err = game.ConfirmHumanTurn(); err != nil {
		return nil, nil, err
	}

	resp, err := that.engine.Invoke(ctx, engine.Request{
		Command:       engine.CommandMakeMove,
		WinLength:     game.WinLength,
		Moves:         game.Moves,
		CurrentPlayer: game.CurrentPlayer,
		TimeMS:        game.AITimeMS,
		X:             &x,
		Y:             &y,
	})
	if err != nil {
		log.Error("move exchange failed", "x", x, "y", y, "error", err)
		return nil, nil, err
	}

	if err = game.ApplyMove(x, y, resp.GameOver, resp.Winner); err != nil {
		return nil, nil, err
	}

	if err = that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return nil, nil, fmt.Errorf("failed to update game: %w", err)
	}

	log.Info("move applied",
		"x", x, "y", y, "currentPlayer", game.CurrentPlayer,
		"gameOver", game.GameOver, "winner", game.Winner, "totalMoves", len(game.Moves))

	return game, resp, nil
}

// MakeAIMove - asks the engine for the AI player's move and applies it.
func (that *GameManager) MakeAIMove(ctx context.Context, gameID string) (*entity.Game, *engine.Response, error) {
	log := that.logger.With("method", "MakeAIMove", "gameID", gameID)

	unlock := that.lockGame(gameID)
	defer unlock()

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get game: %w", err)
	}

	if err = game.ConfirmAITurn(); err != nil {
		return nil, nil, err
	}

	resp, err := that.engine.Invoke(ctx, engine.Request{
		Command:       engine.CommandAIMove,
		WinLength:     game.WinLength,
		Moves:         game.Moves,
		CurrentPlayer: game.CurrentPlayer,
		TimeMS:        game.AITimeMS,
	})
	if err != nil {
		log.Error("AI move exchange failed", "error", err)
		return nil, nil, err
	}

	if game, err = that.applyEngineMove(ctx, game, resp); err != nil {
		return nil, nil, err
	}

	log.Info("AI move applied",
		"move", resp.Move, "currentPlayer", game.CurrentPlayer,
		"gameOver", game.GameOver, "winner", game.Winner, "totalMoves", len(game.Moves))

	return game, resp, nil
}

// GetState - re-fetches the board snapshot for an existing game. Read-only,
// but still serialized so the game has one engine exchange in flight at most.
func (that *GameManager) GetState(ctx context.Context, gameID string) (*entity.Game, *engine.Response, error) {
	unlock := that.lockGame(gameID)
	defer unlock()

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get game: %w", err)
	}

	resp, err := that.snapshot(ctx, game)
	if err != nil {
		return nil, nil, err
	}

	return game, resp, nil
}

// ResetGame - clears the game back to an empty board with X to move.
func (that *GameManager) ResetGame(ctx context.Context, gameID string) (*entity.Game, *engine.Response, error) {
	log := that.logger.With("method", "ResetGame", "gameID", gameID)

	unlock := that.lockGame(gameID)
	defer unlock()

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get game: %w", err)
	}

	game.Reset()

	if err = that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return nil, nil, fmt.Errorf("failed to update game: %w", err)
	}

	log.Info("game reset")

	resp, err := that.snapshot(ctx, game)
	if err != nil {
		return nil, nil, err
	}

	return game, resp, nil
}

// applyEngineMove - records the move the engine chose for the current player.
// A success response without a move is a protocol violation.
func (that *GameManager) applyEngineMove(ctx context.Context, game *entity.Game, resp *engine.Response) (*entity.Game, error) {
	if resp.Move == nil {
		return nil, fmt.Errorf("%w: success response missing move", engine.ErrProtocol)
	}

	if err := game.ApplyMove(resp.Move.X, resp.Move.Y, resp.GameOver, resp.Winner); err != nil {
		return nil, err
	}

	if err := that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	return game, nil
}

// snapshot - asks the engine to render the board for the game's current
// history without changing anything.
func (that *GameManager) snapshot(ctx context.Context, game *entity.Game) (*engine.Response, error) {
	resp, err := that.engine.Invoke(ctx, engine.Request{
		Command:       engine.CommandGetState,
		WinLength:     game.WinLength,
		Moves:         game.Moves,
		CurrentPlayer: game.CurrentPlayer,
		TimeMS:        game.AITimeMS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get board state: %w", err)
	}

	return resp, nil
}

// lockGame - serializes operations per game id. At most one engine exchange
// and one pending store mutation exist per game at any time.
func (that *GameManager) lockGame(gameID string) func() {
	that.mu.Lock()
	lock, ok := that.locks[gameID]
	if !ok {
		lock = &sync.Mutex{}
		that.locks[gameID] = lock
	}
	that.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}
