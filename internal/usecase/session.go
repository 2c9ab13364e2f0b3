package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-history/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-history/internal/entity"
	"github.com/rocketscienceinc/tictactoe-history/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-history/internal/tictactoe"
)

// maxUpdateAttempts bounds retries of a transition that lost a concurrent write.
const maxUpdateAttempts = 5

type SessionUseCase interface {
	GetOrCreate(ctx context.Context, sessionID string) (string, tictactoe.View, error)
	GetView(ctx context.Context, sessionID string) (tictactoe.View, error)
	Delete(ctx context.Context, sessionID string) error

	Play(ctx context.Context, sessionID string, cell int) (tictactoe.View, error)
	JumpTo(ctx context.Context, sessionID string, move int) (tictactoe.View, error)
	ToggleSortOrder(ctx context.Context, sessionID string) (tictactoe.View, error)
}

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	Update(ctx context.Context, id string, update func(*entity.Session) (*entity.Session, error)) error
	DeleteByID(ctx context.Context, id string) error
}

type sessionUseCase struct {
	logger      *slog.Logger
	sessionRepo sessionRepo
}

func NewSessionUseCase(logger *slog.Logger, sessionRepo sessionRepo) SessionUseCase {
	return &sessionUseCase{
		logger:      logger.With("component", "session_usecase"),
		sessionRepo: sessionRepo,
	}
}

// IsRejected - reports whether err only means the transition was ignored.
func IsRejected(err error) bool {
	return errors.Is(err, apperror.ErrCellOccupied) ||
		errors.Is(err, apperror.ErrGameFinished) ||
		errors.Is(err, apperror.ErrInvalidCell) ||
		errors.Is(err, apperror.ErrInvalidMove)
}

// GetOrCreate - resumes the session or starts a new game when the id is empty or unknown.
// Only ids shaped like generated ones are accepted.
func (that *sessionUseCase) GetOrCreate(ctx context.Context, sessionID string) (string, tictactoe.View, error) {
	if sessionID != "" && !pkg.IsValidSessionID(sessionID) {
		return "", tictactoe.View{}, fmt.Errorf("%w: %q", apperror.ErrInvalidSessionID, sessionID)
	}

	if sessionID != "" {
		engine, err := that.load(ctx, sessionID)
		if err == nil {
			return sessionID, engine.View(), nil
		}

		if !errors.Is(err, apperror.ErrSessionNotFound) {
			return "", tictactoe.View{}, err
		}
	}

	if sessionID == "" {
		sessionID = pkg.GenerateNewSessionID()
	}

	engine := tictactoe.NewEngine()
	if err := that.sessionRepo.CreateOrUpdate(ctx, engine.Snapshot(sessionID)); err != nil {
		return "", tictactoe.View{}, fmt.Errorf("could not create session: %w", err)
	}

	that.logger.Debug("session created", "sessionID", sessionID)

	return sessionID, engine.View(), nil
}

func (that *sessionUseCase) GetView(ctx context.Context, sessionID string) (tictactoe.View, error) {
	engine, err := that.load(ctx, sessionID)
	if err != nil {
		return tictactoe.View{}, err
	}

	return engine.View(), nil
}

func (that *sessionUseCase) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperror.ErrSessionIDRequired
	}

	if !pkg.IsValidSessionID(sessionID) {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidSessionID, sessionID)
	}

	if err := that.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	that.logger.Debug("session deleted", "sessionID", sessionID)

	return nil
}

func (that *sessionUseCase) Play(ctx context.Context, sessionID string, cell int) (tictactoe.View, error) {
	return that.transition(ctx, sessionID, "play", func(engine *tictactoe.Engine) error {
		return engine.Play(cell)
	})
}

func (that *sessionUseCase) JumpTo(ctx context.Context, sessionID string, move int) (tictactoe.View, error) {
	return that.transition(ctx, sessionID, "jump", func(engine *tictactoe.Engine) error {
		return engine.JumpTo(move)
	})
}

func (that *sessionUseCase) ToggleSortOrder(ctx context.Context, sessionID string) (tictactoe.View, error) {
	return that.transition(ctx, sessionID, "sort", func(engine *tictactoe.Engine) error {
		engine.ToggleSortOrder()
		return nil
	})
}

// transition - applies apply to the stored session as one check-and-set, retried
// when another request changed the session first. A rejected transition returns
// the unchanged view with the rejection error and is not saved.
func (that *sessionUseCase) transition(ctx context.Context, sessionID, name string, apply func(*tictactoe.Engine) error) (tictactoe.View, error) {
	log := that.logger.With("method", name, "sessionID", sessionID)

	if sessionID == "" {
		return tictactoe.View{}, apperror.ErrSessionIDRequired
	}

	var view tictactoe.View

	update := func(session *entity.Session) (*entity.Session, error) {
		engine, err := tictactoe.Restore(session)
		if err != nil {
			return nil, fmt.Errorf("failed to restore session: %w", err)
		}

		if err = apply(engine); err != nil {
			view = engine.View()
			return nil, fmt.Errorf("%s rejected: %w", name, err)
		}

		view = engine.View()

		return engine.Snapshot(sessionID), nil
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err := that.sessionRepo.Update(ctx, sessionID, update)
		if errors.Is(err, apperror.ErrSessionConflict) {
			log.Debug("concurrent update, retrying", "attempt", attempt)
			continue
		}

		if IsRejected(err) {
			log.Debug("transition rejected", "error", err)
			return view, err
		}

		if err != nil {
			return tictactoe.View{}, fmt.Errorf("failed to update session: %w", err)
		}

		return view, nil
	}

	return tictactoe.View{}, fmt.Errorf("failed to update session after %d attempts: %w", maxUpdateAttempts, apperror.ErrSessionConflict)
}

func (that *sessionUseCase) load(ctx context.Context, sessionID string) (*tictactoe.Engine, error) {
	if sessionID == "" {
		return nil, apperror.ErrSessionIDRequired
	}

	session, err := that.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	engine, err := tictactoe.Restore(session)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	return engine, nil
}
