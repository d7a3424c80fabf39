// Package null provides a clock-driven backend that plays silence.
//
// Useful for driving the daemon on machines without an audio device and for
// exercising the full open/poll/close path in tests. Position and length are
// reported in milliseconds of wall time.
package null

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/playbox/internal/domain/stream"
)

// Config represents null backend settings.
type Config struct {
	DurationMs int `mapstructure:"duration_ms" default:"2000" validate:"gt=0"`
}

// Backend "plays" any non-empty stream name as silence for a fixed duration.
type Backend struct {
	config Config
}

// New creates a null backend from a settings map.
func New(settings map[string]any) (*Backend, error) {
	var config Config
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &Backend{config: config}, nil
}

// Open starts a silent stream of the configured duration.
func (b *Backend) Open(_ context.Context, name string) (stream.Handle, error) {
	if name == "" {
		return nil, errors.Wrap(stream.ErrStreamNotFound, "empty stream name")
	}
	return &handle{
		start:    time.Now(),
		duration: time.Duration(b.config.DurationMs) * time.Millisecond,
	}, nil
}

// Close shuts down the backend. Nothing to release.
func (b *Backend) Close() error {
	return nil
}

type handle struct {
	start    time.Time
	duration time.Duration
	stopped  atomic.Bool
}

func (h *handle) Status() stream.Status {
	length := h.duration.Milliseconds()
	elapsed := time.Since(h.start).Milliseconds()
	if h.stopped.Load() || elapsed >= length {
		return stream.Status{State: stream.StateFinished, Position: length, Length: length}
	}
	return stream.Status{State: stream.StatePlaying, Position: elapsed, Length: length}
}

func (h *handle) Stop() {
	h.stopped.Store(true)
}
