package domain

import "errors"

// Error taxonomy shared by registries, stores and the transport layer.
// Callers match with errors.Is; wrapping keeps the category intact.
var (
	// ErrNotFound means an unknown session, room or user was referenced.
	// The caller must re-identify or re-join.
	ErrNotFound = errors.New("not found")

	// ErrConflict means an id collision that survived the bounded retry
	// budget (room code generation).
	ErrConflict = errors.New("conflict")

	// ErrUnavailable means the persistence collaborator is unreachable.
	// In-memory state stays authoritative for the life of the process.
	ErrUnavailable = errors.New("persistence unavailable")

	// ErrTimeout means a request/response exchange over the transport
	// exceeded its deadline. Caller-visible, never fatal.
	ErrTimeout = errors.New("timeout")
)
