// Package poller drives a playback session on a fixed cadence.
//
// The original design polled stream state from a host timer; here any
// scheduler shape is replaced by a goroutine ticking at a configured
// interval. The poller is the single driver of its session: all Poll calls
// happen on the polling goroutine, and Close is guaranteed on Stop.
package poller

import (
	"sync"
	"sync/atomic"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playbox/internal/app/playback"
	"github.com/osa030/playbox/internal/domain/stream"
)

// DefaultInterval is the poll cadence used when none is configured.
const DefaultInterval = 250 * time.Millisecond

// Poller samples a session's status on a fixed interval and publishes the
// result as events until playback reaches a terminal state or Stop is called.
type Poller struct {
	sess     *playback.Session
	interval time.Duration

	events chan Event
	quit   chan struct{}
	done   chan struct{}

	started   atomic.Bool
	stopOnce  sync.Once
	closeOnce sync.Once

	mu   sync.Mutex
	last stream.Status
}

// New creates a poller for the given session. Intervals below 10ms are
// clamped to DefaultInterval. The session must already be open.
func New(sess *playback.Session, interval time.Duration) *Poller {
	if interval < 10*time.Millisecond {
		interval = DefaultInterval
	}
	return &Poller{
		sess:     sess,
		interval: interval,
		events:   make(chan Event, 16),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		last:     stream.Status{State: sess.State()},
	}
}

// Start begins polling on a background goroutine.
func (p *Poller) Start() {
	p.started.Store(true)
	go p.run()
}

// Events returns the event channel. It is closed when polling ends.
func (p *Poller) Events() <-chan Event {
	return p.events
}

// Done returns a channel closed when the polling loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// LastStatus returns the most recently sampled status.
func (p *Poller) LastStatus() stream.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Session returns the driven session. Callers must not touch it while the
// polling loop is running; it is safe to inspect after Done is closed.
func (p *Poller) Session() *playback.Session {
	return p.sess
}

// Stop halts polling, waits for the loop to exit, and closes the session,
// releasing the stream resource. Idempotent, safe from any goroutine, and
// safe on a poller that was never started.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	if p.started.Load() {
		<-p.done
	}
	p.closeOnce.Do(p.sess.Close)
}

func (p *Poller) run() {
	defer close(p.done)
	defer close(p.events)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	zlog.Debug().Msgf("poller: started: session=%s interval=%v", p.sess.ID(), p.interval)

	for {
		select {
		case <-p.quit:
			zlog.Debug().Msgf("poller: stopped: session=%s", p.sess.ID())
			return
		case <-ticker.C:
			st := p.sess.Poll()
			p.setLast(st)

			switch st.State {
			case stream.StateFinished:
				p.sendFinal(Event{Type: EventFinished, Status: st})
				return
			case stream.StateFailed:
				p.sendFinal(Event{Type: EventFailed, Status: st})
				return
			default:
				p.send(Event{Type: EventProgress, Status: st})
			}
		}
	}
}

func (p *Poller) setLast(st stream.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = st
}

// send publishes a progress event without blocking. Progress events are
// dropped when no consumer keeps up.
func (p *Poller) send(e Event) {
	select {
	case p.events <- e:
	default:
	}
}

// sendFinal publishes a terminal event. It must not be lost, so it waits
// for a consumer, giving up only when Stop is in progress.
func (p *Poller) sendFinal(e Event) {
	select {
	case p.events <- e:
	case <-p.quit:
	}
}
