// Package mp3 plays MP3 files through the default PortAudio output device.
package mp3

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/gordonklaus/portaudio"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playbox/internal/domain/stream"
)

// go-mp3 always decodes to 16-bit stereo PCM.
const outputChannels = 2

// Config represents MP3 backend settings.
type Config struct {
	FramesPerBuffer int `mapstructure:"frames_per_buffer" default:"1024" validate:"gt=0"`
}

// Backend decodes MP3 files and feeds them to a PortAudio output stream.
type Backend struct {
	config Config
}

// New creates an MP3 backend from a settings map and initializes PortAudio.
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

	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrapf(stream.ErrBackendUnavailable, "failed to initialize portaudio: %v", err)
	}

	return &Backend{config: config}, nil
}

// Open decodes name as an MP3 file and starts playback on the default
// output device. The feeder goroutine owns the decoder and the output
// stream; Status only reads counters it publishes.
func (b *Backend) Open(_ context.Context, name string) (stream.Handle, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(stream.ErrStreamNotFound, "%s: %v", name, err)
	}

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(stream.ErrStreamNotFound, "%s: not a playable mp3: %v", name, err)
	}

	frames := b.config.FramesPerBuffer
	h := &handle{
		name:   name,
		file:   f,
		dec:    dec,
		buf:    make([]int16, frames*outputChannels),
		raw:    make([]byte, frames*outputChannels*2),
		length: dec.Length(),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	h.state.Store(int32(stream.StatePlaying))

	out, err := portaudio.OpenDefaultStream(0, outputChannels, float64(dec.SampleRate()), frames, h.buf)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(stream.ErrBackendUnavailable, "failed to open output stream: %v", err)
	}
	if err := out.Start(); err != nil {
		_ = out.Close()
		_ = f.Close()
		return nil, errors.Wrapf(stream.ErrBackendUnavailable, "failed to start output stream: %v", err)
	}
	h.out = out

	go h.feed()
	return h, nil
}

// Close terminates PortAudio. All handles must be stopped first.
func (b *Backend) Close() error {
	return portaudio.Terminate()
}

type handle struct {
	name string
	file *os.File
	dec  *gomp3.Decoder
	out  *portaudio.Stream
	buf  []int16
	raw  []byte

	length int64
	pos    atomic.Int64
	state  atomic.Int32

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	err error
}

// feed decodes PCM into the output buffer until EOF, error or Stop.
func (h *handle) feed() {
	defer close(h.done)
	defer func() {
		_ = h.out.Stop()
		_ = h.out.Close()
		_ = h.file.Close()
	}()

	for {
		select {
		case <-h.quit:
			return
		default:
		}

		n, err := io.ReadFull(h.dec, h.raw)
		if n > 0 {
			for i := 0; i < n/2; i++ {
				h.buf[i] = int16(binary.LittleEndian.Uint16(h.raw[i*2 : i*2+2]))
			}
			// Zero-fill a short final read
			for i := n / 2; i < len(h.buf); i++ {
				h.buf[i] = 0
			}
			if werr := h.out.Write(); werr != nil {
				// Output over/underflows are transient, keep feeding
				zlog.Debug().Msgf("mp3: output write: name=%s err=%v", h.name, werr)
			}
			h.pos.Add(int64(n))
		}

		switch {
		case err == nil:
			// next chunk
		case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
			h.state.Store(int32(stream.StateFinished))
			return
		default:
			h.setErr(errors.Wrapf(stream.ErrPlayback, "%s: decode failed: %v", h.name, err))
			h.state.Store(int32(stream.StateFailed))
			return
		}
	}
}

func (h *handle) Status() stream.Status {
	return stream.Status{
		State:    stream.State(h.state.Load()),
		Position: h.pos.Load(),
		Length:   h.length,
		Err:      h.getErr(),
	}
}

// Stop signals the feeder and waits for it to release the output stream.
func (h *handle) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
	<-h.done
}

func (h *handle) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *handle) getErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
