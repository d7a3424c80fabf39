// Package stream defines the audio stream backend interface and its status types.
package stream

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrStreamNotFound     = errors.New("stream not found")
	ErrBackendUnavailable = errors.New("audio backend unavailable")
	ErrPlayback           = errors.New("playback error")
)

// Handle is an open, backend-managed playback resource.
// Exactly one caller owns a handle at a time.
type Handle interface {
	// Status returns a snapshot of the playback state.
	// It must not block; it only reads already-buffered backend state.
	Status() Status

	// Stop stops playback and releases the resource.
	// Best-effort: idempotent, never panics, never reports failure.
	Stop()
}

// Backend opens named audio streams for playback.
type Backend interface {
	// Open resolves name to a playable stream and begins playback.
	// May take backend I/O time. The returned handle is owned by the caller.
	Open(ctx context.Context, name string) (Handle, error)

	// Close shuts down the backend subsystem. No handle may be used afterwards.
	Close() error
}
