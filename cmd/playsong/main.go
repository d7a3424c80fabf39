// Package main provides the interactive song player entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playbox/internal/app/playback"
	"github.com/osa030/playbox/internal/app/poller"
	"github.com/osa030/playbox/internal/infra/backend"
	"github.com/osa030/playbox/internal/infra/config"
	"github.com/osa030/playbox/internal/infra/logger"
)

const defaultConfigPath = "config/playsong.yaml"

var (
	app         = kingpin.New("playsong", "Plays streamed audio files")
	configPath  = app.Flag("config", "Path to config file").Default(defaultConfigPath).String()
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile     = app.Flag("logfile", "Path to log file (default: stderr)").String()
	backendType = app.Flag("backend", "Override backend type").String()

	// play command (default)
	playCmd   = app.Command("play", "Play one or more audio files in order").Default()
	playFiles = playCmd.Arg("file", "Audio files to play").Required().Strings()

	// list-backends command
	listBackendsCmd = app.Command("list-backends", "List available backend types and exit")
)

var errInterrupted = errors.New("interrupted")

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listBackendsCmd.FullCommand() {
		fmt.Println("Available backends:")
		for _, t := range backend.Types() {
			fmt.Printf("  %s\n", t)
		}
		return
	}

	// Progress goes to stdout, logs to stderr unless a file is given
	loggerConfig := logger.Config{Output: "stderr", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if *backendType != "" {
		cfg.Backend.Type = *backendType
	}

	if err := run(cfg, *playFiles); err != nil {
		if errors.Is(err, errInterrupted) {
			os.Exit(130)
		}
		zlog.Error().Msgf("Playback error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, falling back to defaults when the
// default path does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == defaultConfigPath {
		return config.Default()
	}
	return config.Load(path)
}

// run plays the given files in order on a single session.
func run(cfg *config.Config, files []string) error {
	b, err := backend.New(cfg.Backend)
	if err != nil {
		return errors.Wrap(err, "failed to create backend")
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			zlog.Warn().Msgf("Failed to close backend: %v", cerr)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sess := playback.NewSession(b)
	defer sess.Close()

	for _, name := range files {
		if err := playFile(sess, cfg, name, sigCh); err != nil {
			return err
		}
	}
	return nil
}

// playFile opens name on the session and polls it to completion, printing
// progress the way the original utility's progress dialog did.
func playFile(sess *playback.Session, cfg *config.Config, name string, sigCh <-chan os.Signal) error {
	if err := sess.Open(context.Background(), name); err != nil {
		return err
	}

	p := poller.New(sess, cfg.PollInterval())
	p.Start()
	defer p.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println()
			zlog.Info().Msg("Interrupted, stopping playback")
			return errInterrupted
		case e, ok := <-p.Events():
			if !ok {
				return nil
			}
			switch e.Type {
			case poller.EventProgress:
				fmt.Printf("\r%s (%d%%)", name, int(e.Status.Progress()))
			case poller.EventFinished:
				fmt.Printf("\r%s (100%%)\n", name)
				return nil
			case poller.EventFailed:
				fmt.Println()
				return e.Status.Err
			}
		}
	}
}
