package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/hammamikhairi/ottofit/internal/catalogue"
	"github.com/hammamikhairi/ottofit/internal/coach"
	"github.com/hammamikhairi/ottofit/internal/config"
	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/engine"
	"github.com/hammamikhairi/ottofit/internal/logger"
	"github.com/hammamikhairi/ottofit/internal/observe"
	"github.com/hammamikhairi/ottofit/internal/speech"
	"github.com/hammamikhairi/ottofit/internal/storage"
)

// app holds the wired dependencies for one command.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	engine  *engine.Engine
	catalog domain.ExerciseSource
	svc     engine.Services
	metrics *observe.Metrics
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// setup loads configuration and builds every collaborator. Missing
// credentials or audio devices degrade to silent fallbacks.
func setup(ctx context.Context, cli *CLI) (*app, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	a.log = a.openLog(cli)

	a.metrics = observe.Noop()
	if cfg.Metrics.Addr != "" {
		met, shutdown, err := observe.InitProvider(ctx)
		if err != nil {
			a.log.Warn("metrics disabled: %v", err)
		} else {
			a.metrics = met
			a.closers = append(a.closers, func() { _ = shutdown(context.Background()) })
		}
	}

	if a.catalog, err = a.openCatalogue(); err != nil {
		a.close()
		return nil, err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.svc = engine.Services{
		Text:   a.textGenerator(),
		Speech: speech.NewNoOp(a.log.Named("speech")),
		Store:  store,
	}
	a.wireSpeech()

	a.engine = engine.New(a.catalog, a.svc, a.log.Named("engine"),
		engine.WithSessionOptions(
			engine.WithDurations(cfg.Session.GetReady, cfg.Session.Work, cfg.Session.Rest),
			engine.WithMotivationOffset(cfg.Session.MotivationOffset),
			engine.WithAdHocSpacing(cfg.Session.AdHocSpacing),
			engine.WithResolveTimeout(cfg.Session.ResolveTimeout),
			engine.WithMetrics(a.metrics),
		),
	)
	return a, nil
}

// openLog sends logs to a file by default so the terminal stays clean.
func (a *app) openLog(cli *CLI) *logger.Logger {
	cfg := a.cfg.Log
	level := logger.ParseLevel(cfg.Level)
	if cli.Verbose {
		level = logger.LevelVerbose
	}
	if cli.Quiet {
		level = logger.LevelOff
	}
	format := logger.FormatText
	if cfg.Format == "json" {
		format = logger.FormatJSON
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" && cfg.File != "stderr" {
		if dir := filepath.Dir(cfg.File); dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.File, err)
		} else {
			out = f
			a.closers = append(a.closers, func() { _ = f.Close() })
		}
	}

	// Third-party packages that use the standard logger go to the same
	// place.
	stdlog.SetOutput(out)
	stdlog.SetFlags(stdlog.Ltime)

	return logger.NewWithFormat(level, out, format)
}

func (a *app) openCatalogue() (domain.ExerciseSource, error) {
	log := a.log.Named("catalogue")
	if a.cfg.Catalogue == "" {
		return catalogue.NewMemorySource(log), nil
	}
	return catalogue.LoadFile(a.cfg.Catalogue, log)
}

func (a *app) openStore(ctx context.Context) (domain.CompletionStore, error) {
	cfg := a.cfg.Storage
	log := a.log.Named("storage")
	switch cfg.Driver {
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
		s, err := storage.OpenSQLite(ctx, cfg.Path, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		return s, nil
	case config.DriverPostgres:
		s, err := storage.OpenPostgres(ctx, cfg.DSN, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return storage.NewMemoryStore(log), nil
	}
}

// textGenerator returns the chat client, or the static-phrase generator
// when no API key is set.
func (a *app) textGenerator() domain.TextGenerator {
	cfg := a.cfg.Coach
	log := a.log.Named("coach")
	if !a.cfg.CoachConfigured() {
		log.Info("coaching text disabled: set OPENAI_API_KEY to enable")
		return speech.NewNoOp(log)
	}

	opts := []coach.ClientOption{
		coach.WithModel(cfg.Model),
		coach.WithTemperature(cfg.Temperature),
		coach.WithMaxTokens(cfg.MaxTokens),
		coach.WithHTTPTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, coach.WithBaseURL(cfg.BaseURL))
	}
	if cfg.AzureAPI != "" {
		opts = append(opts, coach.WithAzure(cfg.AzureAPI))
	}
	client, err := coach.NewClient(cfg.APIKey, log, opts...)
	if err != nil {
		log.Error("coach init failed, using static phrases: %v", err)
		return speech.NewNoOp(log)
	}
	log.Info("coaching text enabled (model=%s)", cfg.Model)
	return client
}

// wireSpeech sets up synthesis, the audio device, the shared phrase cache
// and the ambient loop.
func (a *app) wireSpeech() {
	cfg := a.cfg.Speech
	log := a.log.Named("speech")
	voice := speech.DefaultVoice
	if cfg.Voice != "" {
		voice = cfg.Voice
	}

	if !cfg.Enabled {
		log.Info("speech disabled by config")
		return
	}
	if !a.cfg.SpeechConfigured() {
		log.Info("TTS disabled: set %s and %s to enable", speech.EnvAzureSpeechKey, speech.EnvAzureSpeechRegion)
		return
	}

	player, err := speech.NewPlayer(log)
	if err != nil {
		log.Error("audio player init failed, speech disabled: %v", err)
		return
	}
	a.svc.Speech = speech.NewAzureClient(cfg.AzureKey, cfg.Region, log, speech.WithVoice(voice))
	a.svc.Sink = player
	a.svc.Phrases = speech.NewPhraseCache(a.svc.Speech, voice, cfg.CacheDir, cfg.DiskCache, log)
	log.Info("TTS enabled (voice=%s, region=%s)", voice, cfg.Region)

	if cfg.Ambient == "" {
		return
	}
	loop, err := player.LoadAmbientLoop(cfg.Ambient, cfg.Volume)
	if err != nil {
		log.Warn("ambient loop disabled: %v", err)
		return
	}
	a.svc.Ambient = loop
	a.closers = append(a.closers, func() { _ = loop.Close() })
}
