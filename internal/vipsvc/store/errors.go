package store

import "errors"

var (
	ErrStoreNotFound = errors.New("store not found")
	ErrSlotNotFound  = errors.New("card slot not found")
	ErrPhoneTaken    = errors.New("phone already registered")
	ErrPoolExhausted = errors.New("card pool exhausted")
	ErrBadPoolTable  = errors.New("invalid pool table name")
)
