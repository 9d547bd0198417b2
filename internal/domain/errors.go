package domain

import "errors"

// Sentinel errors shared by the handshake and booking flows. Services wrap
// them with context; the HTTP and chat layers unwrap with errors.Is to pick
// the user-facing outcome.
var (
	ErrNotFound           = errors.New("not found")
	ErrExpired            = errors.New("expired")
	ErrAlreadyDone        = errors.New("already done")
	ErrNotReady           = errors.New("not ready")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyDecided     = errors.New("already decided")
	ErrSlotTaken          = errors.New("slot already taken")
	ErrSlugTaken          = errors.New("slug already taken")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenAlreadyIssued = errors.New("login link already issued")
	ErrValidation         = errors.New("validation failed")
)
