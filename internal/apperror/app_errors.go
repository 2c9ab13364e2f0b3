package apperror

import "errors"

var (
	ErrGameFinished      = errors.New("game is already finished")
	ErrCellOccupied      = errors.New("cell is already occupied")
	ErrInvalidCell       = errors.New("invalid cell index")
	ErrInvalidMark       = errors.New("invalid mark")
	ErrInvalidMove       = errors.New("invalid move index")
	ErrCorruptedHistory  = errors.New("corrupted move history")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidSortOrder  = errors.New("invalid sort order")
	ErrSessionIDRequired = errors.New("session id is required")
	ErrInvalidSessionID  = errors.New("invalid session id")
	ErrSessionConflict   = errors.New("session was changed concurrently")
)
