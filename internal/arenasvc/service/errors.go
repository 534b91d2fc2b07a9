// Package service implements the wagered game session engine: matchmaking,
// the room lifecycle coordinator, the wallet ledger and settlement. Every
// mutating operation runs inside one store transaction, so a rejection is
// always side-effect free.
package service

import (
	"errors"
	"fmt"
)

// Kind classifies an error for clients and HTTP/websocket mapping.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindStateConflict       Kind = "state_conflict"
	KindNotInRoom           Kind = "not_in_room"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindLockUnderflow       Kind = "lock_underflow"
	KindUnauthenticated     Kind = "unauthenticated"
	KindBanned              Kind = "banned"
	KindInternal            Kind = "internal"
)

// Error is the structured error threaded through queue, coordinator,
// wallet and settlement.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// E builds a structured service error.
func E(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the taxonomy kind from err, defaulting to internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
