package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-history/internal/tictactoe"
)

const (
	readLimit       = 4096
	shutdownTimeout = 5 * time.Second
)

type sessionUseCase interface {
	GetOrCreate(ctx context.Context, sessionID string) (string, tictactoe.View, error)

	Play(ctx context.Context, sessionID string, cell int) (tictactoe.View, error)
	JumpTo(ctx context.Context, sessionID string, move int) (tictactoe.View, error)
	ToggleSortOrder(ctx context.Context, sessionID string) (tictactoe.View, error)
}

type handler func(ctx context.Context, msg *Message, conn *client) error

// client is one browser connection and the game session it drives.
type client struct {
	conn      *websocket.Conn
	sessionID string
}

type Server struct {
	logger         *slog.Logger
	sessionUseCase sessionUseCase
	upgrader       *websocket.Upgrader

	handlers map[string]handler
}

// New - builds the server. allowedOrigins lists the browser origins that may open
// a socket; an empty list only accepts pages served from the same host.
func New(logger *slog.Logger, sessionUseCase sessionUseCase, allowedOrigins []string) *Server {
	server := &Server{
		logger:         logger.With("component", "websocket"),
		sessionUseCase: sessionUseCase,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},

		handlers: make(map[string]handler),
	}

	server.handlers[actionConnect] = server.handleConnect
	server.handlers[actionPlay] = server.handlePlay
	server.handlers[actionJump] = server.handleJump
	server.handlers[actionSort] = server.handleSort

	return server
}

func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
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

// checkOrigin - requests without an Origin header are not from a browser and pass.
func checkOrigin(allowedOrigins []string) func(*http.Request) bool {
	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		if origin == "" {
			return true
		}

		if len(allowedOrigins) > 0 {
			return slices.ContainsFunc(allowedOrigins, func(allowed string) bool {
				return strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin)
			})
		}

		originURL, err := url.Parse(origin)
		if err != nil {
			return false
		}

		return strings.EqualFold(originURL.Host, req.Host)
	}
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	defer conn.Close()

	conn.SetReadLimit(readLimit)

	log.Info("WebSocket connection established", "remote", req.RemoteAddr)

	if err = that.handleMessages(ctx, &client{conn: conn}); err != nil {
		log.Error("error handling messages", "error", err)
	}
}

// handleMessages - processes messages from the client until it disconnects.
func (that *Server) handleMessages(ctx context.Context, conn *client) error {
	log := that.logger.With("method", "handleMessages")

	for {
		_, reqBody, err := conn.conn.ReadMessage()
		if isClosed(err) {
			log.Info("WebSocket connection closed", "sessionID", conn.sessionID)
			return nil
		}

		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Warn("failed to unmarshal message", "error", err)
			if err = conn.sendErrorResponse(actionError, "malformed message"); err != nil {
				return err
			}
			continue
		}

		handle, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			if err = conn.sendErrorResponse(message.Action, "unknown action"); err != nil {
				return err
			}
			continue
		}

		if err = handle(ctx, &message, conn); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}
