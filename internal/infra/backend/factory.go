// Package backend creates audio stream backends from configuration.
package backend

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playbox/internal/domain/stream"
	"github.com/osa030/playbox/internal/infra/backend/mp3"
	"github.com/osa030/playbox/internal/infra/backend/null"
	"github.com/osa030/playbox/internal/infra/config"
)

// New creates the backend named by the configuration.
func New(cfg config.BackendConfig) (stream.Backend, error) {
	zlog.Debug().Msgf("backend: creating: type=%s settings=%+v", cfg.Type, cfg.Settings)

	var (
		b   stream.Backend
		err error
	)
	switch cfg.Type {
	case "mp3":
		b, err = mp3.New(cfg.Settings)
	case "null":
		b, err = null.New(cfg.Settings)
	default:
		return nil, errors.Newf("unsupported backend type: %s", cfg.Type)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "failed to create backend (type %s)", cfg.Type)
	}
	return b, nil
}

// Types returns the available backend type names.
func Types() []string {
	return []string{"mp3", "null"}
}
