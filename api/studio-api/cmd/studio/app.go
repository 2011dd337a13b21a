// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"

	sessionApi "github.com/rapidaai/studio/api/studio-api/api/session"
	internal_capture "github.com/rapidaai/studio/api/studio-api/internal/capture"
	internal_history "github.com/rapidaai/studio/api/studio-api/internal/history"
	internal_platform "github.com/rapidaai/studio/api/studio-api/internal/platform"
	internal_publisher "github.com/rapidaai/studio/api/studio-api/internal/publisher"
	internal_recorder "github.com/rapidaai/studio/api/studio-api/internal/recorder"
	internal_session "github.com/rapidaai/studio/api/studio-api/internal/session"
	internal_summarizer "github.com/rapidaai/studio/api/studio-api/internal/summarizer"
	internal_timer "github.com/rapidaai/studio/api/studio-api/internal/timer"
	internal_transcriber "github.com/rapidaai/studio/api/studio-api/internal/transcriber"
	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
	"github.com/rapidaai/studio/pkg/connectors"
	"github.com/rapidaai/studio/pkg/utils"
)

// application holds every long lived component of one studio process.
type application struct {
	cfg    *config.AppConfig
	logger commons.Logger

	runner       internal_platform.Runner
	platform     internal_capture.PlatformDefaults
	microphone   internal_type.AudioCapture
	transcribers internal_transcriber.Factory
	orchestrator internal_session.Orchestrator
	summarizer   internal_summarizer.Summarizer
	history      internal_history.Store
	hub          *internal_publisher.Hub

	database connectors.DatabaseConnector
	redis    connectors.RedisConnector
}

func loadConfig() (*config.AppConfig, commons.Logger, error) {
	v, err := config.InitConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		return nil, nil, fmt.Errorf("validating config: %w", err)
	}
	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Level(cfg.LogLevel),
		commons.Path(cfg.LogPath),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	if v.ConfigFileUsed() != "" {
		config.Watch(v, logger)
	}
	logger.Infof("studio %s starting in %s", cfg.Version, utils.FromEnvironmentStr(cfg.Environment).Get())
	return cfg, logger, nil
}

// newApplication wires the studio. Optional backends (history, redis,
// transcription) degrade with a warning instead of failing the process.
func newApplication(ctx context.Context, cfg *config.AppConfig, logger commons.Logger) (*application, error) {
	app := &application{
		cfg:    cfg,
		logger: logger,
		runner: internal_platform.NewRunner(),
		hub:    internal_publisher.NewHub(logger),
	}
	app.platform = internal_capture.DefaultsFor(runtime.GOOS, os.Getenv).Override(cfg.CaptureConfig)
	app.microphone = internal_capture.NewMicrophone(logger, cfg.CaptureConfig, app.platform, app.runner)

	transcribers, err := internal_transcriber.NewFactory(logger, cfg.TranscriptionConfig, app.microphone)
	if err != nil {
		logger.Warnf("transcription disabled: %v", err)
	} else {
		app.transcribers = transcribers
	}

	app.database = connectors.NewDatabaseConnector(cfg.HistoryConfig, logger)
	if err := app.database.Connect(ctx); err != nil {
		logger.Warnf("session history disabled: %v", err)
		app.database = nil
	} else {
		app.history = internal_history.NewStore(app.database, logger)
		if err := app.history.Migrate(ctx); err != nil {
			logger.Warnf("session history disabled: %v", err)
			app.history = nil
		}
	}

	publishers := []internal_publisher.Publisher{app.hub}
	if cfg.RedisConfig.Enabled {
		app.redis = connectors.NewRedisConnector(cfg.RedisConfig, logger)
		if err := app.redis.Connect(ctx); err != nil {
			logger.Warnf("redis transcript publishing disabled: %v", err)
			app.redis = nil
		} else {
			publishers = append(publishers, internal_publisher.NewRedisPublisher(app.redis.GetConnection(), cfg.RedisConfig.Channel, logger))
		}
	}

	if !utils.IsEmpty(cfg.SummarizerConfig.URL) {
		app.summarizer = internal_summarizer.NewSummarizer(logger, cfg.SummarizerConfig.URL, cfg.SummarizerConfig.Timeout)
	}

	provider := internal_capture.NewFFmpegProvider(logger, cfg.CaptureConfig,
		internal_capture.WithLookPath(app.runner.LookPath),
		internal_capture.WithPlatform(app.platform),
	)

	// the recorder reports device loss to the orchestrator built after it
	var orchestrator internal_session.Orchestrator
	recorder := internal_recorder.NewController(logger,
		internal_recorder.NewFFmpegEncoder(logger, cfg.CaptureConfig, app.runner),
		internal_recorder.NewDirectorySink(logger, cfg.RecordingConfig.DownloadDir),
		internal_recorder.WithFileName(cfg.RecordingConfig.FileName),
		internal_recorder.WithFailureHandler(func(sessionID string, err error) {
			if orchestrator != nil {
				orchestrator.RecorderFailed(sessionID, err)
			}
		}),
	)

	deps := internal_session.Dependencies{
		Acquirer:  internal_capture.NewAcquirer(logger, provider),
		Recorder:  recorder,
		Timer:     internal_timer.NewElapsedTimer(),
		Publisher: internal_publisher.Multi(publishers...),
	}
	if app.transcribers != nil {
		deps.Transcribers = app.transcribers
	}
	if app.history != nil {
		deps.History = app.history
	}
	orchestrator = internal_session.NewOrchestrator(logger, deps)
	app.orchestrator = orchestrator
	return app, nil
}

func (app *application) api() *sessionApi.SessionApi {
	return sessionApi.New(app.cfg, app.logger, app.orchestrator, app.summarizer, app.history, app.hub)
}

func (app *application) connectors() []connectors.Connector {
	var out []connectors.Connector
	if app.database != nil {
		out = append(out, app.database)
	}
	if app.redis != nil {
		out = append(out, app.redis)
	}
	return out
}

// close ends a running session and disconnects every backend.
func (app *application) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var err error
	switch app.orchestrator.Snapshot().Status {
	case internal_session.StatusRecording, internal_session.StatusFailed:
		app.logger.Warnf("ending active session before shutdown")
		if _, endErr := app.orchestrator.EndSession(ctx); endErr != nil {
			err = multierr.Append(err, endErr)
		}
	}
	for _, conn := range app.connectors() {
		err = multierr.Append(err, conn.Disconnect(ctx))
	}
	_ = app.logger.Sync()
	return err
}
