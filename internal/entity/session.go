package entity

import (
	"fmt"
	"strconv"

	"github.com/rocketscienceinc/tictactoe-history/internal/apperror"
)

// SortOrder controls how the move list is presented.
type SortOrder uint8

const (
	Ascending SortOrder = iota
	Descending
)

func (that SortOrder) Toggle() SortOrder {
	if that == Ascending {
		return Descending
	}
	return Ascending
}

func (that SortOrder) String() string {
	if that == Descending {
		return "desc"
	}
	return "asc"
}

func (that SortOrder) MarshalText() ([]byte, error) {
	return []byte(that.String()), nil
}

func (that *SortOrder) UnmarshalText(text []byte) error {
	switch string(text) {
	case "asc", "":
		*that = Ascending
	case "desc":
		*that = Descending
	default:
		return fmt.Errorf("%w: %q", apperror.ErrInvalidSortOrder, text)
	}

	return nil
}

// MoveDescriptor is one entry of the move list shown next to the board.
type MoveDescriptor struct {
	Move      int    `json:"move"`
	Label     string `json:"label"`
	IsCurrent bool   `json:"is_current"`
	Mark      Mark   `json:"mark"`
}

func MoveLabel(move int) string {
	if move == 0 {
		return "start"
	}
	return "go to move " + strconv.Itoa(move)
}

// Session is the persisted form of a game: its history, the viewed move and the
// move list order.
type Session struct {
	ID      string    `json:"id"`
	History []Board   `json:"history"`
	Current int       `json:"current"`
	Order   SortOrder `json:"order"`
}
