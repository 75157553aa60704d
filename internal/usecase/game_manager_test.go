package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/engine"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/repository"
)

// fakeEngine records every request and answers through a configurable handler.
type fakeEngine struct {
	mu          sync.Mutex
	requests    []engine.Request
	inFlight    int
	maxInFlight int

	delay   time.Duration
	handler func(req engine.Request) (*engine.Response, error)
}

func (that *fakeEngine) Invoke(_ context.Context, req engine.Request) (*engine.Response, error) {
	that.mu.Lock()
	that.requests = append(that.requests, req)
	that.inFlight++
	if that.inFlight > that.maxInFlight {
		that.maxInFlight = that.inFlight
	}
	that.mu.Unlock()

	if that.delay > 0 {
		time.Sleep(that.delay)
	}

	that.mu.Lock()
	that.inFlight--
	that.mu.Unlock()

	return that.handler(req)
}

func (that *fakeEngine) maxConcurrent() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.maxInFlight
}

func (that *fakeEngine) calls() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.requests)
}

func (that *fakeEngine) request(i int) engine.Request {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.requests[i]
}

func okResponse(move *engine.Move, gameOver bool, winner string) *engine.Response {
	return &engine.Response{
		Success:  true,
		Board:    engine.Board{Cells: []engine.Cell{}},
		Move:     move,
		GameOver: gameOver,
		Winner:   winner,
	}
}

func newManager(t *testing.T, fake *fakeEngine) *GameManager {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return NewGameManager(logger, repository.NewMemoryGameRepository(), fake)
}

func stateOnlyEngine() *fakeEngine {
	return &fakeEngine{handler: func(engine.Request) (*engine.Response, error) {
		return okResponse(nil, false, ""), nil
	}}
}

func humanFirstSettings() GameSettings {
	return GameSettings{WinLength: 5, HumanPlayer: entity.PlayerX, AITimeMS: 5000, FirstPlayer: entity.FirstPlayerHuman}
}

func TestGameManager_CreateGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates a game with the human opening", func(t *testing.T) {
		// Given: a manager whose engine serves board snapshots
		fake := stateOnlyEngine()
		manager := newManager(t, fake)

		// When: creating a game with win_length=5, human X, human first
		game, resp, err := manager.CreateGame(ctx, humanFirstSettings())

		// Then: the game starts empty with X to move and one state exchange
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.NotEmpty(t, game.ID)
		assert.Equal(t, entity.PlayerX, game.CurrentPlayer)
		assert.Empty(t, game.Moves)
		require.Equal(t, 1, fake.calls())
		assert.Equal(t, engine.CommandGetState, fake.request(0).Command)
	})

	t.Run("Rejects out-of-range settings without touching the engine", func(t *testing.T) {
		// Given: a manager
		fake := stateOnlyEngine()
		manager := newManager(t, fake)

		// When: creating games with invalid settings
		_, _, errWin := manager.CreateGame(ctx, GameSettings{WinLength: 2, HumanPlayer: entity.PlayerX, AITimeMS: 5000, FirstPlayer: entity.FirstPlayerHuman})
		_, _, errTime := manager.CreateGame(ctx, GameSettings{WinLength: 5, HumanPlayer: entity.PlayerX, AITimeMS: 50, FirstPlayer: entity.FirstPlayerHuman})

		// Then: both are rejected and the engine is never invoked
		assert.ErrorIs(t, errWin, entity.ErrInvalidWinLength)
		assert.ErrorIs(t, errTime, entity.ErrInvalidAITime)
		assert.Equal(t, 0, fake.calls())
	})

	t.Run("Performs the AI opening move when the AI goes first", func(t *testing.T) {
		// Given: an engine that answers the opening ai_move
		fake := &fakeEngine{handler: func(req engine.Request) (*engine.Response, error) {
			require.Equal(t, engine.CommandAIMove, req.Command)
			return okResponse(&engine.Move{X: 0, Y: 0}, false, ""), nil
		}}
		manager := newManager(t, fake)

		// When: creating a game where the human plays O and the AI opens
		game, resp, err := manager.CreateGame(ctx, GameSettings{WinLength: 5, HumanPlayer: entity.PlayerO, AITimeMS: 1000, FirstPlayer: entity.FirstPlayerAI})

		// Then: the AI's move is applied and the turn belongs to the human
		require.NoError(t, err)
		require.NotNil(t, resp.Move)
		require.Len(t, game.Moves, 1)
		assert.Equal(t, entity.PlayerX, game.Moves[0].Player)
		assert.Equal(t, entity.PlayerO, game.CurrentPlayer)
		assert.Equal(t, 1, fake.calls())
		assert.Equal(t, entity.PlayerX, fake.request(0).CurrentPlayer)
	})

	t.Run("Falls back to a plain snapshot when the AI opening fails", func(t *testing.T) {
		// Given: an engine whose ai_move times out but whose get_state works
		fake := &fakeEngine{handler: func(req engine.Request) (*engine.Response, error) {
			if req.Command == engine.CommandAIMove {
				return nil, fmt.Errorf("%w after 30s", engine.ErrTimeout)
			}
			return okResponse(nil, false, ""), nil
		}}
		manager := newManager(t, fake)

		// When: creating a game where the AI should open
		game, resp, err := manager.CreateGame(ctx, GameSettings{WinLength: 5, HumanPlayer: entity.PlayerO, AITimeMS: 1000, FirstPlayer: entity.FirstPlayerAI})

		// Then: the game exists with an empty history, the snapshot matches
		// the stored state and the AI turn is still pending
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Nil(t, resp.Move)
		assert.Empty(t, game.Moves)
		assert.Equal(t, game.AIPlayer, game.CurrentPlayer)

		stored, _, stateErr := manager.GetState(ctx, game.ID)
		require.NoError(t, stateErr)
		assert.Equal(t, game, stored)
	})
}

func TestGameManager_MakeMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies a successful human move and flips the turn", func(t *testing.T) {
		// Given: a fresh game with the human playing X
		fake := stateOnlyEngine()
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)

		// When: submitting the move (0, 0)
		updated, resp, err := manager.MakeMove(ctx, game.ID, 0, 0)

		// Then: the engine saw one make_move with X and no prior history,
		// and the session now holds the move with O to play
		require.NoError(t, err)
		require.NotNil(t, resp)

		req := fake.request(1)
		assert.Equal(t, engine.CommandMakeMove, req.Command)
		assert.Equal(t, entity.PlayerX, req.CurrentPlayer)
		assert.Empty(t, req.Moves)

		require.Len(t, updated.Moves, 1)
		assert.Equal(t, entity.Move{X: 0, Y: 0, Player: entity.PlayerX}, updated.Moves[0])
		assert.Equal(t, entity.PlayerO, updated.CurrentPlayer)
	})

	t.Run("Returns ErrGameNotFound for an unknown game id", func(t *testing.T) {
		// Given: a manager with no games
		manager := newManager(t, stateOnlyEngine())

		// When: submitting a move against a missing id
		_, _, err := manager.MakeMove(ctx, "missing", 0, 0)

		// Then: the error is classified as not-found
		assert.ErrorIs(t, err, repository.ErrGameNotFound)
	})

	t.Run("Leaves the game untouched when the engine fails", func(t *testing.T) {
		// Given: a game and an engine that starts failing afterwards
		fake := stateOnlyEngine()
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)

		before, _, err := manager.GetState(ctx, game.ID)
		require.NoError(t, err)

		fake.handler = func(engine.Request) (*engine.Response, error) {
			return nil, fmt.Errorf("%w: boom", engine.ErrExecution)
		}

		// When: the move exchange fails
		_, _, moveErr := manager.MakeMove(ctx, game.ID, 0, 0)

		// Then: the failure surfaces and the stored game is bit-identical
		require.ErrorIs(t, moveErr, engine.ErrExecution)

		fake.handler = stateOnlyEngine().handler
		after, _, err := manager.GetState(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("Rejects a move when it is not the human's turn", func(t *testing.T) {
		// Given: a game right after a human move, so O (the AI) is to play
		fake := stateOnlyEngine()
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)
		_, _, err = manager.MakeMove(ctx, game.ID, 0, 0)
		require.NoError(t, err)

		callsBefore := fake.calls()

		// When: the human submits again out of turn
		_, _, err = manager.MakeMove(ctx, game.ID, 1, 1)

		// Then: the move is rejected before any engine exchange
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, callsBefore, fake.calls())
	})

	t.Run("Rejects further moves once the game is over", func(t *testing.T) {
		// Given: a game whose next move the engine reports as winning
		fake := &fakeEngine{handler: func(req engine.Request) (*engine.Response, error) {
			if req.Command == engine.CommandMakeMove {
				return okResponse(&engine.Move{X: 4, Y: 0}, true, entity.PlayerX), nil
			}
			return okResponse(nil, false, ""), nil
		}}
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)

		finished, _, err := manager.MakeMove(ctx, game.ID, 4, 0)
		require.NoError(t, err)
		require.True(t, finished.GameOver)
		require.Equal(t, entity.PlayerX, finished.Winner)

		callsBefore := fake.calls()

		// When: submitting another move
		_, _, err = manager.MakeMove(ctx, game.ID, 5, 0)

		// Then: it is rejected and never reaches the engine
		assert.ErrorIs(t, err, apperror.ErrGameFinished)
		assert.Equal(t, callsBefore, fake.calls())
	})

	t.Run("Serializes concurrent moves against the same game", func(t *testing.T) {
		// Given: a game and an engine slow enough for the calls to overlap
		fake := stateOnlyEngine()
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)

		fake.delay = 50 * time.Millisecond

		// When: two moves race against the same game id
		errs := make(chan error, 2)
		for _, xy := range []int{1, 2} {
			go func(xy int) {
				_, _, moveErr := manager.MakeMove(ctx, game.ID, xy, xy)
				errs <- moveErr
			}(xy)
		}

		first, second := <-errs, <-errs

		// Then: exactly one move lands; the loser observed the post-move
		// state and was rejected by the turn gate
		succeeded, failed := 0, 0
		for _, err := range []error{first, second} {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
				failed++
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, failed)

		fake.delay = 0
		stored, _, err := manager.GetState(ctx, game.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Moves, 1)
		assert.Equal(t, entity.PlayerO, stored.CurrentPlayer)
	})
}

func TestGameManager_MakeAIMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies the engine's chosen move", func(t *testing.T) {
		// Given: a game where the human already played (0, 0)
		fake := &fakeEngine{handler: func(req engine.Request) (*engine.Response, error) {
			if req.Command == engine.CommandAIMove {
				return okResponse(&engine.Move{X: 1, Y: 1}, false, ""), nil
			}
			return okResponse(nil, false, ""), nil
		}}
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)
		_, _, err = manager.MakeMove(ctx, game.ID, 0, 0)
		require.NoError(t, err)

		// When: requesting the AI move
		updated, resp, err := manager.MakeAIMove(ctx, game.ID)

		// Then: the AI's move is appended and the turn returns to the human
		require.NoError(t, err)
		require.NotNil(t, resp.Move)
		require.Len(t, updated.Moves, 2)
		assert.Equal(t, entity.Move{X: 1, Y: 1, Player: entity.PlayerO}, updated.Moves[1])
		assert.Equal(t, entity.PlayerX, updated.CurrentPlayer)
	})

	t.Run("Rejects the request when it is not the AI's turn", func(t *testing.T) {
		// Given: a fresh game with the human to move
		fake := stateOnlyEngine()
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)

		callsBefore := fake.calls()

		// When: requesting an AI move anyway
		_, _, err = manager.MakeAIMove(ctx, game.ID)

		// Then: it is rejected with no engine call made
		assert.ErrorIs(t, err, apperror.ErrNotAITurn)
		assert.Equal(t, callsBefore, fake.calls())
	})

	t.Run("Treats a success response without a move as a protocol error", func(t *testing.T) {
		// Given: a game in the AI's turn and an engine that forgets the move
		fake := &fakeEngine{handler: func(req engine.Request) (*engine.Response, error) {
			return okResponse(nil, false, ""), nil
		}}
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)
		_, _, err = manager.MakeMove(ctx, game.ID, 0, 0)
		require.NoError(t, err)

		// When: requesting the AI move
		_, _, err = manager.MakeAIMove(ctx, game.ID)

		// Then: the failure is classified as a protocol error and the game
		// still shows one move with the AI to play
		require.ErrorIs(t, err, engine.ErrProtocol)

		stored, _, stateErr := manager.GetState(ctx, game.ID)
		require.NoError(t, stateErr)
		assert.Len(t, stored.Moves, 1)
		assert.Equal(t, entity.PlayerO, stored.CurrentPlayer)
	})
}

func TestGameManager_ResetGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Restores the initial state and is idempotent", func(t *testing.T) {
		// Given: a finished game
		fake := &fakeEngine{handler: func(req engine.Request) (*engine.Response, error) {
			if req.Command == engine.CommandMakeMove {
				return okResponse(&engine.Move{X: 0, Y: 0}, true, entity.PlayerX), nil
			}
			return okResponse(nil, false, ""), nil
		}}
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)
		_, _, err = manager.MakeMove(ctx, game.ID, 0, 0)
		require.NoError(t, err)

		// When: resetting it twice
		once, _, err := manager.ResetGame(ctx, game.ID)
		require.NoError(t, err)
		twice, _, err := manager.ResetGame(ctx, game.ID)
		require.NoError(t, err)

		// Then: both resets yield the same pristine state
		for _, reset := range []*entity.Game{once, twice} {
			assert.Empty(t, reset.Moves)
			assert.Equal(t, entity.PlayerX, reset.CurrentPlayer)
			assert.False(t, reset.GameOver)
			assert.Empty(t, reset.Winner)
		}
		assert.Equal(t, once, twice)
	})

	t.Run("Returns ErrGameNotFound for an unknown game id", func(t *testing.T) {
		// Given: a manager with no games
		manager := newManager(t, stateOnlyEngine())

		// When: resetting a missing game
		_, _, err := manager.ResetGame(ctx, "missing")

		// Then: the error is classified as not-found
		assert.ErrorIs(t, err, repository.ErrGameNotFound)
	})
}

func TestGameManager_GetState(t *testing.T) {
	t.Run("Waits for an in-flight move on the same game", func(t *testing.T) {
		ctx := context.Background()

		// Given: a game and an engine slow enough for the calls to overlap
		fake := stateOnlyEngine()
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)

		fake.delay = 50 * time.Millisecond

		// When: a state fetch races a move against the same game id
		done := make(chan struct{}, 2)
		go func() {
			_, _, _ = manager.MakeMove(ctx, game.ID, 0, 0)
			done <- struct{}{}
		}()
		go func() {
			_, _, _ = manager.GetState(ctx, game.ID)
			done <- struct{}{}
		}()
		<-done
		<-done

		// Then: the engine never saw two exchanges for the game at once
		assert.Equal(t, 1, fake.maxConcurrent())
	})

	t.Run("Surfaces an unavailable engine without touching the game", func(t *testing.T) {
		ctx := context.Background()

		// Given: a stored game and an engine binary that disappeared
		fake := stateOnlyEngine()
		manager := newManager(t, fake)
		game, _, err := manager.CreateGame(ctx, humanFirstSettings())
		require.NoError(t, err)

		fake.handler = func(engine.Request) (*engine.Response, error) {
			return nil, fmt.Errorf("%w: /srv/app/build/web_cli", engine.ErrUnavailable)
		}

		// When: fetching the state
		_, _, err = manager.GetState(ctx, game.ID)

		// Then: the classified failure surfaces
		assert.True(t, errors.Is(err, engine.ErrUnavailable))
	})
}
