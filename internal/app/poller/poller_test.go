package poller

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/playbox/internal/app/playback"
	"github.com/osa030/playbox/internal/domain/stream"
)

// tickHandle stays playing for a fixed number of polls, then reports final.
type tickHandle struct {
	remaining int
	final     stream.Status
	stops     int
}

func (h *tickHandle) Status() stream.Status {
	if h.remaining > 0 {
		h.remaining--
		return stream.Status{State: stream.StatePlaying, Position: 1024, Length: 4096}
	}
	return h.final
}

func (h *tickHandle) Stop() { h.stops++ }

type tickBackend struct {
	polls  int
	final  stream.Status
	handle *tickHandle
}

func (b *tickBackend) Open(context.Context, string) (stream.Handle, error) {
	b.handle = &tickHandle{remaining: b.polls, final: b.final}
	return b.handle, nil
}

func (b *tickBackend) Close() error { return nil }

func TestPoller_RunsToCompletion(t *testing.T) {
	backend := &tickBackend{
		polls: 2,
		final: stream.Status{State: stream.StateFinished, Position: 4096, Length: 4096},
	}
	sess := playback.NewSession(backend)
	require.NoError(t, sess.Open(context.Background(), "track1.ogg"))

	p := New(sess, 10*time.Millisecond)
	p.Start()

	var got []Event
	for e := range p.Events() {
		got = append(got, e)
	}

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not finish")
	}

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, EventFinished, last.Type)
	assert.Equal(t, stream.StateFinished, last.Status.State)
	for _, e := range got[:len(got)-1] {
		assert.Equal(t, EventProgress, e.Type)
	}

	assert.Equal(t, stream.StateFinished, sess.State())
	assert.Equal(t, 1, backend.handle.stops, "handle released when stream ends")

	// Driver teardown after natural finish stays safe and idempotent.
	p.Stop()
	p.Stop()
	assert.Equal(t, stream.StateIdle, sess.State())
	assert.Equal(t, 1, backend.handle.stops)
}

func TestPoller_ReportsFailure(t *testing.T) {
	backend := &tickBackend{
		polls: 1,
		final: stream.Status{
			State: stream.StateFailed,
			Err:   errors.Wrap(stream.ErrPlayback, "read error"),
		},
	}
	sess := playback.NewSession(backend)
	require.NoError(t, sess.Open(context.Background(), "bad.ogg"))

	p := New(sess, 10*time.Millisecond)
	p.Start()

	var last Event
	for e := range p.Events() {
		last = e
	}

	assert.Equal(t, EventFailed, last.Type)
	assert.Equal(t, stream.StateFailed, p.LastStatus().State)
	assert.Equal(t, stream.StateFailed, sess.State())
	assert.True(t, errors.Is(sess.Err(), stream.ErrPlayback))
}

func TestPoller_StopReleasesResource(t *testing.T) {
	// Teardown while still playing must release the backend resource even
	// though the session never reached a terminal state.
	backend := &tickBackend{
		polls: 1 << 30,
		final: stream.Status{State: stream.StateFinished},
	}
	sess := playback.NewSession(backend)
	require.NoError(t, sess.Open(context.Background(), "endless.ogg"))

	p := New(sess, 10*time.Millisecond)
	p.Start()

	// Let a few ticks happen, then tear down.
	time.Sleep(35 * time.Millisecond)
	p.Stop()

	assert.Equal(t, stream.StateIdle, sess.State())
	assert.Equal(t, 1, backend.handle.stops)

	select {
	case <-p.Done():
	default:
		t.Fatal("Done must be closed after Stop")
	}
}

func TestPoller_StopWithoutStart(t *testing.T) {
	// Teardown must not hang when the driver created a poller but never
	// started it; the session is still closed.
	backend := &tickBackend{
		polls: 1 << 30,
		final: stream.Status{State: stream.StateFinished},
	}
	sess := playback.NewSession(backend)
	require.NoError(t, sess.Open(context.Background(), "never-polled.ogg"))

	p := New(sess, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a poller that was never started")
	}

	assert.Equal(t, stream.StateIdle, sess.State())
	assert.Equal(t, 1, backend.handle.stops)
}

func TestPoller_ClampsInterval(t *testing.T) {
	sess := playback.NewSession(&tickBackend{})
	p := New(sess, 0)
	assert.Equal(t, DefaultInterval, p.interval)
}

func TestPoller_LastStatusTracksProgress(t *testing.T) {
	backend := &tickBackend{
		polls: 3,
		final: stream.Status{State: stream.StateFinished, Position: 4096, Length: 4096},
	}
	sess := playback.NewSession(backend)
	require.NoError(t, sess.Open(context.Background(), "track1.ogg"))

	p := New(sess, 10*time.Millisecond)
	p.Start()
	<-p.Done()

	st := p.LastStatus()
	assert.Equal(t, stream.StateFinished, st.State)
	assert.InDelta(t, 100.0, st.Progress(), 0.01)
}
