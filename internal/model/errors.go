package model

import "errors"

// Scheduling errors.
var (
	ErrNoSlot          = errors.New("no free slot available for task")
	ErrInvalidRange    = errors.New("event end is before start")
	ErrEventNotFound   = errors.New("event not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidInstant  = errors.New("invalid local timestamp")
	ErrUnknownView     = errors.New("unknown calendar view")
)
