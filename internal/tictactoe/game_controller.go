package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-history/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-history/internal/entity"
)

const (
	classSquare = "square"
	classWin    = "square win"
	classX      = "square value-x"
	classO      = "square value-o"
)

// DetectWinner - returns the first completed line in check order, or nil.
func DetectWinner(board entity.Board) *entity.WinResult {
	for _, combo := range entity.WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.Empty && a == b && b == c {
			return &entity.WinResult{Mark: a, Line: combo}
		}
	}

	return nil
}

// ApplyMove - returns a copy of the board with mark placed on cell.
func ApplyMove(board entity.Board, cell int, mark entity.Mark) (entity.Board, error) {
	if err := validateMove(board, cell, mark); err != nil {
		return board, fmt.Errorf("invalid move: %w", err)
	}

	board[cell] = mark

	return board, nil
}

// validateMove - checks if the move is valid.
func validateMove(board entity.Board, cell int, mark entity.Mark) error {
	if cell < 0 || cell >= len(board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if mark != entity.PlayerX && mark != entity.PlayerO {
		return apperror.ErrInvalidMark
	}

	if DetectWinner(board) != nil {
		return apperror.ErrGameFinished
	}

	if board[cell] != entity.Empty {
		return apperror.ErrCellOccupied
	}

	return nil
}

// CellDisplayClass - maps a cell to the style tag the board is drawn with.
func CellDisplayClass(value entity.Mark, isWinCell bool) string {
	if isWinCell {
		return classWin
	}

	switch value {
	case entity.PlayerX:
		return classX
	case entity.PlayerO:
		return classO
	default:
		return classSquare
	}
}

// Status - the line shown above the board.
func Status(board entity.Board, next entity.Mark) string {
	if winner := DetectWinner(board); winner != nil {
		return "Winner: " + winner.Mark.String()
	}

	if board.IsFull() {
		return "It's a Draw!"
	}

	return "Next player is " + next.String()
}
