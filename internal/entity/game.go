package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-history/internal/apperror"
)

// Mark is the value held by a board cell.
type Mark uint8

const (
	Empty Mark = iota
	PlayerX
	PlayerO
)

const BoardSize = 9

// WinCombos lists every row, column and diagonal in the order they are checked.
var WinCombos = [8]WinLine{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

func (that Mark) String() string {
	switch that {
	case PlayerX:
		return "X"
	case PlayerO:
		return "O"
	default:
		return ""
	}
}

func (that Mark) MarshalText() ([]byte, error) {
	if that > PlayerO {
		return nil, fmt.Errorf("%w: %d", apperror.ErrInvalidMark, that)
	}

	return []byte(that.String()), nil
}

func (that *Mark) UnmarshalText(text []byte) error {
	switch string(text) {
	case "":
		*that = Empty
	case "X":
		*that = PlayerX
	case "O":
		*that = PlayerO
	default:
		return fmt.Errorf("%w: %q", apperror.ErrInvalidMark, text)
	}

	return nil
}

// MarkForMove returns the mark that moves when the game is viewed at the given
// history position: X on even positions, O on odd ones.
func MarkForMove(move int) Mark {
	if move%2 == 0 {
		return PlayerX
	}
	return PlayerO
}

// Board is a 3x3 grid stored in row-major order.
type Board [BoardSize]Mark

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == Empty {
			return false
		}
	}

	return true
}

// WinLine is a triple of cell indices forming a row, column or diagonal.
type WinLine [3]int

func (that WinLine) Contains(cell int) bool {
	return that[0] == cell || that[1] == cell || that[2] == cell
}

// WinResult is derived from a board and never stored.
type WinResult struct {
	Mark Mark    `json:"mark"`
	Line WinLine `json:"line"`
}
