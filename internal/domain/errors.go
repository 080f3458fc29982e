package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound           = errors.New("not found")
	ErrEmptyContent       = errors.New("empty message content")
	ErrInvalidDictionary  = errors.New("invalid dictionary")
	ErrRecognizerDisabled = errors.New("handwriting recognizer not configured")
)
