package repository

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/entity"
)

type memoryGame struct {
	mu    sync.RWMutex
	games map[string]*entity.Game
}

// NewMemoryGameRepository - returns an in-process GameRepository. Games live
// for the lifetime of the server and are gone on restart.
func NewMemoryGameRepository() GameRepository {
	return &memoryGame{
		games: make(map[string]*entity.Game),
	}
}

func (that *memoryGame) CreateOrUpdate(_ context.Context, game *entity.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.games[game.ID] = copyGame(game)

	return nil
}

func (that *memoryGame) GetByID(_ context.Context, id string) (*entity.Game, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	game, ok := that.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}

	return copyGame(game), nil
}

// copyGame keeps the stored record isolated from caller mutation, so a move
// only lands in the store through an explicit CreateOrUpdate.
func copyGame(game *entity.Game) *entity.Game {
	clone := *game
	clone.Moves = make([]entity.Move, len(game.Moves))
	copy(clone.Moves, game.Moves)

	return &clone
}
