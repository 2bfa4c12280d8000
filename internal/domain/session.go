// Package domain contains entities without logic, just meta-data.
package domain

type (
	// SessionID is the durable identity of a client across reconnects,
	// generated once per browser/device and reused on every connection.
	SessionID string

	// ConnID identifies a single live transport connection. Transient.
	ConnID string
)

// Session survives transport disconnects. At most one live connection may be
// bound to it at a time; a second connection claiming the same id supersedes
// the first.
type Session struct {
	ID        SessionID `json:"_id"`
	UserID    UserID    `json:"userId,omitempty"`
	RoomID    RoomID    `json:"roomId,omitempty"`
	Connected bool      `json:"connected"`

	// Durable is false once persistence retries for this session were
	// exhausted; the session then lives in memory only.
	Durable bool `json:"-"`
}
