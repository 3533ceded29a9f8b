package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrLockHeld        = errors.New("lock already held")
	ErrSessionBusy     = errors.New("session busy")
	ErrCorruptState    = errors.New("corrupt trader state")
	ErrInvalidSnapshot = errors.New("invalid trading state")
)
