// Package sessionstore holds Credit-Control session fields outside the process so
// that any OCS node can resume a session another node started.
package sessionstore

import (
	"context"
	"errors"
)

// ErrUnavailable is wrapped by every backend failure. Callers must not answer
// the request they are processing when they see it.
var ErrUnavailable = errors.New("session store unavailable")

// Store is a key/field store keyed by (sessionID, field). Writes are
// last-writer-wins per field and no multi-field transaction is offered.
type Store interface {
	GetField(ctx context.Context, sessionID, field string) (string, bool, error)
	SetField(ctx context.Context, sessionID, field, value string) error
	DeleteField(ctx context.Context, sessionID, field string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	// Delete drops every field of the session.
	Delete(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}
