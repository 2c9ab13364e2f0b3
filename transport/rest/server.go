package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/matryer/way"
	"github.com/rocketscienceinc/tictactoe-history/internal/tictactoe"
)

const shutdownTimeout = 5 * time.Second

type sessionUseCase interface {
	GetOrCreate(ctx context.Context, sessionID string) (string, tictactoe.View, error)
	GetView(ctx context.Context, sessionID string) (tictactoe.View, error)
	Delete(ctx context.Context, sessionID string) error
}

type Server struct {
	logger         *slog.Logger
	sessionUseCase sessionUseCase
	router         *way.Router
}

func New(logger *slog.Logger, sessionUseCase sessionUseCase) *Server {
	server := &Server{
		logger:         logger.With("component", "rest"),
		sessionUseCase: sessionUseCase,
	}

	server.routes()

	return server
}

func (that *Server) routes() {
	that.router = way.NewRouter()
	that.router.HandleFunc(http.MethodGet, "/ping", pingHandler)
	that.router.HandleFunc(http.MethodPost, "/games", that.handleCreateGame)
	that.router.HandleFunc(http.MethodGet, "/games/:id", that.handleGetGame)
	that.router.HandleFunc(http.MethodDelete, "/games/:id", that.handleDeleteGame)
}

func (that *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	that.router.ServeHTTP(w, r)
}

// Start - serves HTTP until ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
