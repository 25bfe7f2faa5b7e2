package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrInvalidCapacity = errors.New("room capacity must be at least 2")
	ErrQuizActive      = errors.New("quiz already active")
	ErrNoQuiz          = errors.New("no active quiz")
	ErrInvalidOption   = errors.New("answer option out of range")
	ErrSyncFailure     = errors.New("channel sync failure")
)
