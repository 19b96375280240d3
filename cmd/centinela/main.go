// Command centinela is the main entry point for the Centinela answering
// machine detection server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/centinelalabs/centinela/internal/config"
	"github.com/centinelalabs/centinela/internal/observe"
	"github.com/centinelalabs/centinela/internal/resilience"
	"github.com/centinelalabs/centinela/internal/server"
	"github.com/centinelalabs/centinela/internal/session"
	"github.com/centinelalabs/centinela/pkg/recognizer"
	"github.com/centinelalabs/centinela/pkg/recognizer/vosk"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "centinela: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "centinela: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("centinela starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"recognizer", cfg.Recognizer.Name,
		"recognizer_url", cfg.Recognizer.URL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry: Prometheus-bridged metrics plus the tracer provider.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "centinela",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinRecognizers(reg)

	provider, err := reg.Create(cfg.Recognizer)
	if err != nil {
		slog.Error("failed to build recognizer provider", "err", err)
		return 1
	}
	guarded := resilience.NewGuardedProvider(provider, resilience.BreakerConfig{
		Name: cfg.Recognizer.Name,
	})

	manager := session.NewManager(session.ManagerConfig{
		Provider:      guarded,
		Session:       sessionTemplate(cfg),
		MaxSessions:   cfg.Sessions.Max,
		RetainFor:     cfg.Sessions.RetainFor,
		SweepInterval: cfg.Sessions.SweepInterval,
		OnEvict: func(*session.Session) {
			metrics.ActiveSessions.Add(context.Background(), -1)
		},
	})
	defer manager.Close()

	srv := server.New(cfg, manager, metrics, reg)

	slog.Info("server ready, press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := manager.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinRecognizers wires the recognizer factories that ship with
// Centinela into reg.
func registerBuiltinRecognizers(reg *config.Registry) {
	reg.Register("vosk", func(entry config.RecognizerConfig) (recognizer.Provider, error) {
		var opts []vosk.Option
		if entry.SampleRate > 0 {
			opts = append(opts, vosk.WithSampleRate(entry.SampleRate))
		}
		return vosk.New(entry.URL, opts...)
	})
}

// sessionTemplate maps the loaded config onto the per-session defaults.
func sessionTemplate(cfg *config.Config) session.Config {
	return session.Config{
		ShortPause:     cfg.Detection.ShortPause,
		LongGreeting:   cfg.Detection.LongGreeting,
		Deadline:       cfg.Detection.Deadline,
		Phrases:        cfg.Detection.Phrases,
		FuzzyThreshold: cfg.Detection.FuzzyThreshold,
		MatchPartials:  cfg.Detection.MatchPartials,
		SampleRate:     cfg.Recognizer.SampleRate,
		Language:       cfg.Recognizer.Language,
		Encoding:       cfg.Detection.Encoding,
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
