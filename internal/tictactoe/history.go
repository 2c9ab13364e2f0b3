package tictactoe

import (
	"fmt"
	"slices"

	"github.com/rocketscienceinc/tictactoe-history/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-history/internal/entity"
)

// Engine holds a game's board history, the move currently viewed and the order
// the move list is presented in.
//
// The zero value is not usable, create engines with NewEngine or Restore.
type Engine struct {
	history []entity.Board
	current int
	order   entity.SortOrder
}

// View is everything a presentation layer needs to draw the game.
type View struct {
	Board   entity.Board             `json:"board"`
	Classes [entity.BoardSize]string `json:"classes"`
	Turn    entity.Mark              `json:"turn"`
	Winner  *entity.WinResult        `json:"winner,omitempty"`
	Status  string                   `json:"status"`
	Current int                      `json:"current"`
	Order   entity.SortOrder         `json:"order"`
	Moves   []entity.MoveDescriptor  `json:"moves"`
}

func NewEngine() *Engine {
	return &Engine{
		history: []entity.Board{{}},
		current: 0,
		order:   entity.Ascending,
	}
}

// Restore - rebuilds an engine from a stored session, checking that the
// history could have been produced by legal play.
func Restore(session *entity.Session) (*Engine, error) {
	if err := validateHistory(session.History); err != nil {
		return nil, err
	}

	if session.Current < 0 || session.Current >= len(session.History) {
		return nil, fmt.Errorf("%w: current move %d of %d", apperror.ErrCorruptedHistory, session.Current, len(session.History))
	}

	if session.Order != entity.Ascending && session.Order != entity.Descending {
		return nil, apperror.ErrInvalidSortOrder
	}

	return &Engine{
		history: slices.Clone(session.History),
		current: session.Current,
		order:   session.Order,
	}, nil
}

func validateHistory(history []entity.Board) error {
	if len(history) == 0 {
		return fmt.Errorf("%w: empty history", apperror.ErrCorruptedHistory)
	}

	if history[0] != (entity.Board{}) {
		return fmt.Errorf("%w: first board is not empty", apperror.ErrCorruptedHistory)
	}

	for move := 1; move < len(history); move++ {
		prev, next := history[move-1], history[move]

		changed := -1
		for cell := range next {
			if prev[cell] == next[cell] {
				continue
			}
			if changed != -1 {
				return fmt.Errorf("%w: move %d changes more than one cell", apperror.ErrCorruptedHistory, move)
			}
			changed = cell
		}

		if changed == -1 {
			return fmt.Errorf("%w: move %d changes nothing", apperror.ErrCorruptedHistory, move)
		}

		expected, err := ApplyMove(prev, changed, entity.MarkForMove(move-1))
		if err != nil || expected != next {
			return fmt.Errorf("%w: move %d is not a legal move", apperror.ErrCorruptedHistory, move)
		}
	}

	return nil
}

// Snapshot - returns the session form of the engine state under the given id.
func (that *Engine) Snapshot(id string) *entity.Session {
	return &entity.Session{
		ID:      id,
		History: slices.Clone(that.history),
		Current: that.current,
		Order:   that.order,
	}
}

func (that *Engine) CurrentBoard() entity.Board {
	return that.history[that.current]
}

// CurrentTurn - the mark that plays next from the viewed move.
func (that *Engine) CurrentTurn() entity.Mark {
	return entity.MarkForMove(that.current)
}

func (that *Engine) Winner() *entity.WinResult {
	return DetectWinner(that.CurrentBoard())
}

func (that *Engine) CurrentMove() int {
	return that.current
}

func (that *Engine) Len() int {
	return len(that.history)
}

func (that *Engine) SortOrder() entity.SortOrder {
	return that.order
}

// Board - returns the board after the given move.
func (that *Engine) Board(move int) (entity.Board, error) {
	if move < 0 || move >= len(that.history) {
		return entity.Board{}, fmt.Errorf("%w: %d", apperror.ErrInvalidMove, move)
	}

	return that.history[move], nil
}

// Play - places the current turn's mark on cell. Moves played from an earlier
// point of the history discard everything after that point.
func (that *Engine) Play(cell int) error {
	next, err := ApplyMove(that.CurrentBoard(), cell, that.CurrentTurn())
	if err != nil {
		return err
	}

	that.history = append(that.history[:that.current+1], next)
	that.current = len(that.history) - 1

	return nil
}

// JumpTo - views the game as it was after the given move.
func (that *Engine) JumpTo(move int) error {
	if move < 0 || move >= len(that.history) {
		return fmt.Errorf("%w: %d", apperror.ErrInvalidMove, move)
	}

	that.current = move

	return nil
}

func (that *Engine) ToggleSortOrder() {
	that.order = that.order.Toggle()
}

// MoveList - one descriptor per history entry in the requested order.
func (that *Engine) MoveList(order entity.SortOrder) []entity.MoveDescriptor {
	moves := make([]entity.MoveDescriptor, 0, len(that.history))

	for move := range that.history {
		descriptor := entity.MoveDescriptor{
			Move:      move,
			Label:     entity.MoveLabel(move),
			IsCurrent: move == that.current,
		}
		if move > 0 {
			descriptor.Mark = entity.MarkForMove(move - 1)
		}

		moves = append(moves, descriptor)
	}

	if order == entity.Descending {
		slices.Reverse(moves)
	}

	return moves
}

// Moves - the move list in the engine's own order.
func (that *Engine) Moves() []entity.MoveDescriptor {
	return that.MoveList(that.order)
}

// View - derives the presentation model of the viewed move.
func (that *Engine) View() View {
	board := that.CurrentBoard()
	winner := DetectWinner(board)

	var classes [entity.BoardSize]string
	for cell, value := range board {
		classes[cell] = CellDisplayClass(value, winner != nil && winner.Line.Contains(cell))
	}

	return View{
		Board:   board,
		Classes: classes,
		Turn:    that.CurrentTurn(),
		Winner:  winner,
		Status:  Status(board, that.CurrentTurn()),
		Current: that.current,
		Order:   that.order,
		Moves:   that.Moves(),
	}
}
