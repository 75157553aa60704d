package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// shutdownTimeout bounds the graceful drain on shutdown. WriteTimeout must
// outlast the engine exchange, which may legitimately take 30 seconds.
const shutdownTimeout = 5 * time.Second

type Server struct {
	logger   *slog.Logger
	handlers *handlers
}

func New(logger *slog.Logger, gameService gameService) *Server {
	return &Server{
		logger:   logger.With("component", "rest"),
		handlers: newHandlers(logger, gameService),
	}
}

// Start - serves the API until the context is cancelled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}

		return nil
	}
}

func (that *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ping", pingHandler)

	mux.HandleFunc("POST /api/new_game", that.handlers.NewGame)
	mux.HandleFunc("POST /api/make_move", that.handlers.MakeMove)
	mux.HandleFunc("POST /api/ai_move", that.handlers.AIMove)
	mux.HandleFunc("GET /api/game_state/{id}", that.handlers.GameState)
	mux.HandleFunc("POST /api/reset_game/{id}", that.handlers.ResetGame)

	return mux
}
