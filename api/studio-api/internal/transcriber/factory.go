// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_transcriber

import (
	"fmt"
	"strings"

	internal_transcriber_clip "github.com/rapidaai/studio/api/studio-api/internal/transcriber/clip"
	internal_transcriber_live "github.com/rapidaai/studio/api/studio-api/internal/transcriber/live"
	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
	"github.com/rapidaai/studio/pkg/utils"
)

const (
	ModeLive = "live"
	ModeClip = "clip"
	ModeAuto = "auto"
)

// Factory builds one transcription engine per session. The variant is decided
// once, when the factory is created.
type Factory interface {
	Mode() internal_type.TranscriptMode
	New(listener internal_type.TranscriptListener) (internal_type.TranscriptionEngine, error)
}

type Option func(*factory)

// WithDialer replaces the websocket dialer of live engines.
func WithDialer(d internal_transcriber_live.Dialer) Option {
	return func(f *factory) { f.dialer = d }
}

// WithUploader replaces the http uploader of clip engines.
func WithUploader(u internal_transcriber_clip.Uploader) Option {
	return func(f *factory) { f.uploader = u }
}

type factory struct {
	logger   commons.Logger
	cfg      config.TranscriptionConfig
	mic      internal_type.AudioCapture
	mode     internal_type.TranscriptMode
	dialer   internal_transcriber_live.Dialer
	uploader internal_transcriber_clip.Uploader
}

// NewFactory runs the capability check for the configured mode. An explicit
// live request that cannot be served fails with ErrEngineUnsupported; auto
// falls back to clip upload.
func NewFactory(logger commons.Logger, cfg config.TranscriptionConfig, mic internal_type.AudioCapture, options ...Option) (Factory, error) {
	f := &factory{logger: logger, cfg: cfg, mic: mic}
	for _, o := range options {
		o(f)
	}

	switch strings.ToLower(cfg.Mode) {
	case ModeLive:
		if err := internal_transcriber_live.Supported(cfg.LiveEndpoint, mic); err != nil {
			logger.Errorf("transcriber: live recognition requested but unavailable: %v", err)
			return nil, err
		}
		f.mode = internal_type.TranscriptLive
	case ModeClip:
		if err := f.clipSupported(); err != nil {
			return nil, err
		}
		f.mode = internal_type.TranscriptClip
	case ModeAuto, "":
		liveErr := internal_transcriber_live.Supported(cfg.LiveEndpoint, mic)
		if liveErr == nil {
			f.mode = internal_type.TranscriptLive
			break
		}
		logger.Infof("transcriber: live recognition unavailable, using clip upload: %v", liveErr)
		if err := f.clipSupported(); err != nil {
			return nil, err
		}
		f.mode = internal_type.TranscriptClip
	default:
		return nil, fmt.Errorf("%w: unknown transcription mode %q", internal_type.ErrConfiguration, cfg.Mode)
	}

	if f.mode == internal_type.TranscriptClip && f.uploader == nil {
		f.uploader = internal_transcriber_clip.NewUploader(logger, cfg.UploadURL, cfg.Timeout)
	}
	logger.Infof("transcriber: using %s transcription", f.mode)
	return f, nil
}

func (f *factory) clipSupported() error {
	if f.mic == nil || !f.mic.Available() {
		return fmt.Errorf("%w: clip-stt: microphone capture unavailable", internal_type.ErrEngineUnsupported)
	}
	if f.uploader == nil && utils.IsEmpty(f.cfg.UploadURL) {
		return fmt.Errorf("%w: clip-stt: upload url is not configured", internal_type.ErrConfiguration)
	}
	return nil
}

func (f *factory) Mode() internal_type.TranscriptMode {
	return f.mode
}

func (f *factory) New(listener internal_type.TranscriptListener) (internal_type.TranscriptionEngine, error) {
	if f.mode == internal_type.TranscriptClip {
		return internal_transcriber_clip.NewClipEngine(f.logger, f.mic, f.uploader, f.cfg.UploadLanguage, listener), nil
	}

	opts := utils.Option{
		internal_transcriber_live.LISTEN_LANGUAGE: f.cfg.Language,
		internal_transcriber_live.LISTEN_INTERIM:  f.cfg.InterimResults,
	}
	var options []internal_transcriber_live.Option
	if f.dialer != nil {
		options = append(options, internal_transcriber_live.WithDialer(f.dialer))
	}
	if f.cfg.RestartDelay > 0 {
		options = append(options, internal_transcriber_live.WithRestartDelay(f.cfg.RestartDelay))
	}
	if f.cfg.MaxRestartFailures > 0 {
		options = append(options, internal_transcriber_live.WithMaxRestartFailures(f.cfg.MaxRestartFailures))
	}
	return internal_transcriber_live.NewLiveEngine(f.logger, f.cfg.LiveEndpoint, opts, f.mic, listener, options...)
}
