package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rocketscienceinc/tictactoe-history/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-history/internal/entity"
	"github.com/rocketscienceinc/tictactoe-history/internal/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errRedisDown = errors.New("redis down")

const (
	storedID  = "6f1c2a0e-9a57-4d8e-9a3b-2f0d4c1b7e11"
	unknownID = "0b8e5c3d-1f2a-4c6b-8d9e-7a6b5c4d3e2f"
)

type mockSessionRepo struct {
	mock.Mock
}

func newMockSessionRepo(t *testing.T) *mockSessionRepo {
	t.Helper()

	repo := &mockSessionRepo{}
	t.Cleanup(func() { repo.AssertExpectations(t) })

	return repo
}

func (that *mockSessionRepo) CreateOrUpdate(ctx context.Context, session *entity.Session) error {
	args := that.Called(ctx, session)
	return args.Error(0)
}

func (that *mockSessionRepo) GetByID(ctx context.Context, id string) (*entity.Session, error) {
	args := that.Called(ctx, id)

	session, _ := args.Get(0).(*entity.Session)
	return session, args.Error(1)
}

// Update mirrors the redis check-and-set through the mocked GetByID and CreateOrUpdate calls.
func (that *mockSessionRepo) Update(ctx context.Context, id string, update func(*entity.Session) (*entity.Session, error)) error {
	session, err := that.GetByID(ctx, id)
	if err != nil {
		return err
	}

	next, err := update(session)
	if err != nil {
		return err
	}

	return that.CreateOrUpdate(ctx, next)
}

func (that *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	args := that.Called(ctx, id)
	return args.Error(0)
}

// casSessionRepo is an in-memory store with versioned check-and-set. The first
// `hold` updates wait after loading until all of them have loaded, which forces
// them to race on the same version.
type casSessionRepo struct {
	mu      sync.Mutex
	session *entity.Session
	version int

	hold   int32
	loads  atomic.Int32
	loaded sync.WaitGroup
}

func newCASSessionRepo(session *entity.Session, hold int) *casSessionRepo {
	repo := &casSessionRepo{session: session, hold: int32(hold)}
	repo.loaded.Add(hold)

	return repo
}

func (that *casSessionRepo) CreateOrUpdate(_ context.Context, session *entity.Session) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.session = session
	that.version++

	return nil
}

func (that *casSessionRepo) GetByID(_ context.Context, _ string) (*entity.Session, error) {
	session, _ := that.read()
	return session, nil
}

func (that *casSessionRepo) Update(_ context.Context, _ string, update func(*entity.Session) (*entity.Session, error)) error {
	session, version := that.read()

	if that.loads.Add(1) <= that.hold {
		that.loaded.Done()
		that.loaded.Wait()
	}

	next, err := update(session)
	if err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.version != version {
		return apperror.ErrSessionConflict
	}

	that.session = next
	that.version++

	return nil
}

func (that *casSessionRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

func (that *casSessionRepo) read() (*entity.Session, int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session := *that.session
	session.History = slices.Clone(that.session.History)

	return &session, that.version
}

func newUseCase(repo sessionRepo) SessionUseCase {
	return NewSessionUseCase(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)
}

func storedSession(id string, history ...entity.Board) *entity.Session {
	return &entity.Session{
		ID:      id,
		History: append([]entity.Board{{}}, history...),
		Current: len(history),
	}
}

func TestSessionUseCase_GetOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates a new session when id is empty", func(t *testing.T) {
		// Given: a repository accepting a new session
		repo := newMockSessionRepo(t)
		repo.On("CreateOrUpdate", mock.Anything, mock.MatchedBy(func(session *entity.Session) bool {
			return pkg.IsValidSessionID(session.ID) && len(session.History) == 1
		})).Return(nil).Once()

		// When: GetOrCreate is called without an id
		id, view, err := newUseCase(repo).GetOrCreate(ctx, "")

		// Then: a fresh game with a generated id is returned
		require.NoError(t, err)
		assert.True(t, pkg.IsValidSessionID(id))
		assert.Equal(t, entity.Board{}, view.Board)
		assert.Equal(t, entity.PlayerX, view.Turn)
	})

	t.Run("Resumes an existing session", func(t *testing.T) {
		// Given: a stored session with one move
		repo := newMockSessionRepo(t)
		repo.On("GetByID", mock.Anything, storedID).
			Return(storedSession(storedID, entity.Board{4: entity.PlayerX}), nil).Once()

		// When: GetOrCreate is called with its id
		id, view, err := newUseCase(repo).GetOrCreate(ctx, storedID)

		// Then: the stored game is returned
		require.NoError(t, err)
		assert.Equal(t, storedID, id)
		assert.Equal(t, entity.PlayerX, view.Board[4])
		assert.Equal(t, entity.PlayerO, view.Turn)
	})

	t.Run("Unknown id starts a new game under that id", func(t *testing.T) {
		// Given: a repository that does not know the id
		repo := newMockSessionRepo(t)
		repo.On("GetByID", mock.Anything, unknownID).Return(nil, apperror.ErrSessionNotFound).Once()
		repo.On("CreateOrUpdate", mock.Anything, mock.MatchedBy(func(session *entity.Session) bool {
			return session.ID == unknownID
		})).Return(nil).Once()

		// When: GetOrCreate is called
		id, _, err := newUseCase(repo).GetOrCreate(ctx, unknownID)

		// Then: the id is reused
		require.NoError(t, err)
		assert.Equal(t, unknownID, id)
	})

	t.Run("Storage failure is returned", func(t *testing.T) {
		// Given: a failing repository
		repo := newMockSessionRepo(t)
		repo.On("GetByID", mock.Anything, storedID).Return(nil, errRedisDown).Once()

		// When: GetOrCreate is called
		_, _, err := newUseCase(repo).GetOrCreate(ctx, storedID)

		// Then: the error is wrapped and returned
		require.ErrorIs(t, err, errRedisDown)
	})

	t.Run("Malformed id is rejected", func(t *testing.T) {
		// Given: a repository that must not be touched
		repo := newMockSessionRepo(t)

		// When: GetOrCreate is called with an id that was never generated
		_, _, err := newUseCase(repo).GetOrCreate(ctx, "../../etc/passwd")

		// Then: ErrInvalidSessionID is returned and nothing is stored
		require.ErrorIs(t, err, apperror.ErrInvalidSessionID)
		repo.AssertNotCalled(t, "CreateOrUpdate", mock.Anything, mock.Anything)
	})
}

func TestSessionUseCase_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Deletes the session", func(t *testing.T) {
		repo := newMockSessionRepo(t)
		repo.On("DeleteByID", mock.Anything, storedID).Return(nil).Once()

		err := newUseCase(repo).Delete(ctx, storedID)

		require.NoError(t, err)
	})

	t.Run("Unknown session", func(t *testing.T) {
		repo := newMockSessionRepo(t)
		repo.On("DeleteByID", mock.Anything, unknownID).Return(apperror.ErrSessionNotFound).Once()

		err := newUseCase(repo).Delete(ctx, unknownID)

		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	})

	t.Run("Malformed id is rejected", func(t *testing.T) {
		repo := newMockSessionRepo(t)

		err := newUseCase(repo).Delete(ctx, "session:*")

		require.ErrorIs(t, err, apperror.ErrInvalidSessionID)
	})
}

func TestSessionUseCase_Play(t *testing.T) {
	ctx := context.Background()

	t.Run("Saves the new move", func(t *testing.T) {
		// Given: a stored session at the start
		repo := newMockSessionRepo(t)
		repo.On("GetByID", mock.Anything, storedID).Return(storedSession(storedID), nil).Once()
		repo.On("CreateOrUpdate", mock.Anything, mock.MatchedBy(func(session *entity.Session) bool {
			return len(session.History) == 2 && session.Current == 1 && session.History[1][0] == entity.PlayerX
		})).Return(nil).Once()

		// When: X plays cell 0
		view, err := newUseCase(repo).Play(ctx, storedID, 0)

		// Then: the view shows the move
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, view.Board[0])
		assert.Len(t, view.Moves, 2)
	})

	t.Run("Rejected move is not saved", func(t *testing.T) {
		// Given: a stored session where X holds cell 0
		repo := newMockSessionRepo(t)
		repo.On("GetByID", mock.Anything, storedID).
			Return(storedSession(storedID, entity.Board{0: entity.PlayerX}), nil).Once()

		// When: O plays cell 0
		view, err := newUseCase(repo).Play(ctx, storedID, 0)

		// Then: the rejection is reported with the unchanged view
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		assert.True(t, IsRejected(err))
		assert.Equal(t, 1, view.Current)
		repo.AssertNotCalled(t, "CreateOrUpdate", mock.Anything, mock.Anything)
	})

	t.Run("Corrupted session is an error", func(t *testing.T) {
		// Given: a stored session whose history skips a move
		repo := newMockSessionRepo(t)
		repo.On("GetByID", mock.Anything, storedID).
			Return(storedSession(storedID, entity.Board{0: entity.PlayerX, 1: entity.PlayerO}), nil).Once()

		// When: a move is played
		_, err := newUseCase(repo).Play(ctx, storedID, 4)

		// Then: the restore error is returned and is not a plain rejection
		require.ErrorIs(t, err, apperror.ErrCorruptedHistory)
		assert.False(t, IsRejected(err))
	})

	t.Run("Save failure is returned", func(t *testing.T) {
		// Given: a repository that fails on save
		repo := newMockSessionRepo(t)
		repo.On("GetByID", mock.Anything, storedID).Return(storedSession(storedID), nil).Once()
		repo.On("CreateOrUpdate", mock.Anything, mock.Anything).Return(errRedisDown).Once()

		// When: a move is played
		_, err := newUseCase(repo).Play(ctx, storedID, 4)

		// Then: the storage error is returned
		require.ErrorIs(t, err, errRedisDown)
	})

	t.Run("Concurrent plays both land in the history", func(t *testing.T) {
		// Given: two requests that load the same stored session before either saves
		repo := newCASSessionRepo(storedSession(storedID), 2)
		useCase := newUseCase(repo)

		// When: X's and O's moves are played at the same time
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, cell := range []int{0, 4} {
			i, cell := i, cell
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = useCase.Play(ctx, storedID, cell)
			}()
		}
		wg.Wait()

		// Then: the losing write is retried on top of the winner instead of overwriting it
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		stored, _ := repo.read()
		require.Len(t, stored.History, 3)
		assert.Equal(t, 2, stored.Current)

		final := stored.History[2]
		assert.ElementsMatch(t, []entity.Mark{entity.PlayerX, entity.PlayerO}, []entity.Mark{final[0], final[4]})
	})

	t.Run("Gives up after repeated conflicts", func(t *testing.T) {
		// Given: a repository where every write loses the race
		repo := newMockSessionRepo(t)
		repo.On("GetByID", mock.Anything, storedID).Return(storedSession(storedID), nil).Times(maxUpdateAttempts)
		repo.On("CreateOrUpdate", mock.Anything, mock.Anything).Return(apperror.ErrSessionConflict).Times(maxUpdateAttempts)

		// When: a move is played
		_, err := newUseCase(repo).Play(ctx, storedID, 4)

		// Then: ErrSessionConflict is returned
		require.ErrorIs(t, err, apperror.ErrSessionConflict)
	})

	t.Run("Empty session id", func(t *testing.T) {
		repo := newMockSessionRepo(t)

		_, err := newUseCase(repo).Play(ctx, "", 4)

		require.ErrorIs(t, err, apperror.ErrSessionIDRequired)
	})
}

func TestSessionUseCase_JumpTo(t *testing.T) {
	ctx := context.Background()

	t.Run("Moves the pointer", func(t *testing.T) {
		// Given: a stored session with two moves
		repo := newMockSessionRepo(t)
		repo.On("GetByID", mock.Anything, storedID).Return(storedSession(storedID,
			entity.Board{0: entity.PlayerX},
			entity.Board{0: entity.PlayerX, 4: entity.PlayerO},
		), nil).Once()
		repo.On("CreateOrUpdate", mock.Anything, mock.MatchedBy(func(session *entity.Session) bool {
			return session.Current == 0 && len(session.History) == 3
		})).Return(nil).Once()

		// When: jumping to the start
		view, err := newUseCase(repo).JumpTo(ctx, storedID, 0)

		// Then: the empty board is viewed
		require.NoError(t, err)
		assert.Equal(t, entity.Board{}, view.Board)
		assert.Equal(t, 0, view.Current)
	})

	t.Run("Out of range is rejected", func(t *testing.T) {
		repo := newMockSessionRepo(t)
		repo.On("GetByID", mock.Anything, storedID).Return(storedSession(storedID), nil).Once()

		_, err := newUseCase(repo).JumpTo(ctx, storedID, 5)

		require.ErrorIs(t, err, apperror.ErrInvalidMove)
		assert.True(t, IsRejected(err))
	})
}

func TestSessionUseCase_ToggleSortOrder(t *testing.T) {
	ctx := context.Background()

	// Given: a stored session in ascending order
	repo := newMockSessionRepo(t)
	repo.On("GetByID", mock.Anything, storedID).
		Return(storedSession(storedID, entity.Board{0: entity.PlayerX}), nil).Once()
	repo.On("CreateOrUpdate", mock.Anything, mock.MatchedBy(func(session *entity.Session) bool {
		return session.Order == entity.Descending
	})).Return(nil).Once()

	// When: toggling the sort order
	view, err := newUseCase(repo).ToggleSortOrder(ctx, storedID)

	// Then: moves are listed newest first
	require.NoError(t, err)
	assert.Equal(t, entity.Descending, view.Order)
	require.Len(t, view.Moves, 2)
	assert.Equal(t, 1, view.Moves[0].Move)
	assert.Equal(t, 0, view.Moves[1].Move)
}
