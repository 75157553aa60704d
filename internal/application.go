package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/config"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/engine"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/repository"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/repository/storage"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/internal/usecase"
	"github.com/rocketscienceinc/infinite-tictactoe-backend/transport/rest"
)

var ErrUnknownStorageType = errors.New("unknown storage type")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	gameRepo, closeStorage, err := newGameRepository(ctx, conf)
	if err != nil {
		return err
	}
	defer closeStorage(log)

	binPath, err := resolveEnginePath(conf)
	if err != nil {
		return err
	}
	log.Info("Using engine binary", "path", binPath)

	engineClient := engine.NewClient(logger, binPath, conf.Engine.Timeout)
	gameManager := usecase.NewGameManager(logger, gameRepo, engineClient)

	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		server := rest.New(logger, gameManager)
		if httpErr := server.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func newGameRepository(ctx context.Context, conf *config.Config) (repository.GameRepository, func(*slog.Logger), error) {
	switch conf.Storage.Type {
	case config.StorageMemory:
		return repository.NewMemoryGameRepository(), func(*slog.Logger) {}, nil
	case config.StorageRedis:
		redisClient, err := storage.New(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		closeStorage := func(log *slog.Logger) {
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("could not close redis storage", "error", closeErr)
			}
		}

		return repository.NewGameRepository(redisClient), closeStorage, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownStorageType, conf.Storage.Type)
	}
}

// resolveEnginePath - the engine lives next to the server binary unless the
// config points elsewhere. A missing binary is not a startup failure; each
// request surfaces it as an engine-unavailable error.
func resolveEnginePath(conf *config.Config) (string, error) {
	if conf.Engine.BinPath != "" {
		return conf.Engine.BinPath, nil
	}

	executable, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate server binary: %w", err)
	}

	return engine.ResolveBinPath(filepath.Dir(executable)), nil
}
