// Package playback provides the playback session controller.
//
// A Session owns at most one open stream handle and tracks its lifecycle:
//
//	Idle --Open(success)--> Playing
//	Idle --Open(failure)--> Failed
//	Playing --Poll(stream ends)--> Finished
//	Playing --Poll(backend error)--> Failed
//	Playing/Finished/Failed --Close()--> Idle
//
// A Session performs no internal locking. It is designed to be driven by a
// single caller: a driver that serializes Open, Poll and Close. Drivers that
// accept calls from multiple goroutines must synchronize externally.
package playback

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playbox/internal/domain/stream"
)

// Session controls the lifecycle of a single streamed-audio playback.
type Session struct {
	backend stream.Backend

	id     string // minted per successful Open
	name   string
	handle stream.Handle
	state  stream.State
	last   stream.Status
	err    error
}

// NewSession creates an idle session bound to the given backend.
func NewSession(backend stream.Backend) *Session {
	return &Session{
		backend: backend,
		state:   stream.StateIdle,
		last:    stream.Status{State: stream.StateIdle},
	}
}

// Open resolves name to a playable stream and starts playback.
// If a stream is already playing, it is force-closed first so that at most
// one handle is ever held. On failure the session moves to Failed and the
// handle is guaranteed unset.
func (s *Session) Open(ctx context.Context, name string) error {
	if s.handle != nil {
		zlog.Debug().Msgf("playback: open while playing, closing current stream: name=%s", s.name)
		s.Close()
	}

	if name == "" {
		err := errors.Wrap(stream.ErrStreamNotFound, "stream name is empty")
		s.fail(err)
		return err
	}

	handle, err := s.backend.Open(ctx, name)
	if err != nil {
		err = errors.Wrapf(err, "failed to open stream %q", name)
		s.fail(err)
		return err
	}

	s.id = uuid.New().String()
	s.name = name
	s.handle = handle
	s.state = stream.StatePlaying
	s.last = stream.Status{State: stream.StatePlaying}
	s.err = nil

	zlog.Info().Msgf("playback: stream opened: session=%s name=%s", s.id, name)
	return nil
}

// Poll samples the stream state. Outside Playing it is a no-op and returns
// the last reported status, so a terminal status repeats until the next Open
// or Close. When the backend reports completion or an error the handle is
// released before the status is returned.
func (s *Session) Poll() stream.Status {
	if s.handle == nil {
		return s.last
	}

	st := s.handle.Status()
	switch st.State {
	case stream.StateFinished:
		zlog.Info().Msgf("playback: stream finished: session=%s name=%s", s.id, s.name)
		s.release()
		s.state = stream.StateFinished
	case stream.StateFailed:
		zlog.Warn().Msgf("playback: stream failed: session=%s name=%s err=%v", s.id, s.name, st.Err)
		s.release()
		s.state = stream.StateFailed
		s.err = errors.Wrapf(st.Err, "stream %q failed", s.name)
	default:
		// The handle is still held, so anything non-terminal is reported
		// as playing, even if a misbehaving handle says otherwise.
		st.State = stream.StatePlaying
	}

	s.last = st
	return st
}

// Close stops playback and releases the held handle, if any, then returns
// the session to Idle. Idempotent and safe in any state. Backend stop
// failures are absorbed by the handle contract; teardown always succeeds
// from the caller's perspective.
func (s *Session) Close() {
	if s.handle != nil {
		zlog.Debug().Msgf("playback: closing stream: session=%s name=%s", s.id, s.name)
		s.release()
	}
	s.state = stream.StateIdle
	s.last = stream.Status{State: stream.StateIdle}
	s.err = nil
}

// State returns the current session state.
func (s *Session) State() stream.State {
	return s.state
}

// StreamName returns the name of the most recently opened stream.
func (s *Session) StreamName() string {
	return s.name
}

// ID returns the session ID minted by the last successful Open.
func (s *Session) ID() string {
	return s.id
}

// Err returns the error that moved the session to Failed, or nil.
func (s *Session) Err() error {
	return s.err
}

// release stops the stream and clears the handle.
func (s *Session) release() {
	s.handle.Stop()
	s.handle = nil
}

// fail records an open failure. The handle is never set on this path.
func (s *Session) fail(err error) {
	s.state = stream.StateFailed
	s.err = err
	s.last = stream.Status{State: stream.StateFailed, Err: err}
}
