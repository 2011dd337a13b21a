// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_transcriber

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
)

type stubMic struct{ available bool }

func (m stubMic) Available() bool { return m.available }
func (m stubMic) Start(ctx context.Context, format internal_type.AudioFormat, onData func([]byte)) (internal_type.AudioStream, error) {
	return nil, internal_type.ErrDeviceUnavailable
}

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	l, err := commons.NewApplicationLogger(commons.Level("error"))
	require.NoError(t, err)
	return l
}

func transcriptionConfig(mode string) config.TranscriptionConfig {
	return config.TranscriptionConfig{
		Mode:               mode,
		Language:           "en-US",
		UploadLanguage:     "en",
		LiveEndpoint:       "ws://127.0.0.1:9000/listen",
		UploadURL:          "http://127.0.0.1:8000",
		Timeout:            time.Second,
		RestartDelay:       10 * time.Millisecond,
		MaxRestartFailures: 3,
	}
}

func TestNewFactory_Selection(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.TranscriptionConfig)
		mic      bool
		expected internal_type.TranscriptMode
		err      error
	}{
		{"auto prefers live", func(c *config.TranscriptionConfig) {}, true, internal_type.TranscriptLive, nil},
		{"auto falls back without endpoint", func(c *config.TranscriptionConfig) { c.LiveEndpoint = "" }, true, internal_type.TranscriptClip, nil},
		{"auto falls back on http endpoint", func(c *config.TranscriptionConfig) { c.LiveEndpoint = "http://x" }, true, internal_type.TranscriptClip, nil},
		{"explicit clip", func(c *config.TranscriptionConfig) { c.Mode = ModeClip }, true, internal_type.TranscriptClip, nil},
		{"explicit live", func(c *config.TranscriptionConfig) { c.Mode = ModeLive }, true, internal_type.TranscriptLive, nil},
		{"explicit live unavailable", func(c *config.TranscriptionConfig) { c.Mode = ModeLive; c.LiveEndpoint = "" }, true, "", internal_type.ErrEngineUnsupported},
		{"no microphone", func(c *config.TranscriptionConfig) {}, false, "", internal_type.ErrEngineUnsupported},
		{"clip without upload url", func(c *config.TranscriptionConfig) { c.Mode = ModeClip; c.UploadURL = "" }, true, "", internal_type.ErrConfiguration},
		{"unknown mode", func(c *config.TranscriptionConfig) { c.Mode = "psychic" }, true, "", internal_type.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := transcriptionConfig(ModeAuto)
			tt.mutate(&cfg)
			f, err := NewFactory(newTestLogger(t), cfg, stubMic{available: tt.mic})
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, f)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.Mode())
		})
	}
}

func TestFactory_NewBuildsSelectedVariant(t *testing.T) {
	for _, mode := range []string{ModeLive, ModeClip} {
		t.Run(mode, func(t *testing.T) {
			f, err := NewFactory(newTestLogger(t), transcriptionConfig(mode), stubMic{available: true})
			require.NoError(t, err)

			first, err := f.New(nil)
			require.NoError(t, err)
			second, err := f.New(nil)
			require.NoError(t, err)

			assert.Equal(t, f.Mode(), first.Mode())
			assert.NotSame(t, first, second, "one engine per session")
			assert.Equal(t, internal_type.TranscriptIdle, first.State().Status)
		})
	}
}

func TestFactory_ClipEngineExposesResubmit(t *testing.T) {
	f, err := NewFactory(newTestLogger(t), transcriptionConfig(ModeClip), stubMic{available: true})
	require.NoError(t, err)
	engine, err := f.New(nil)
	require.NoError(t, err)

	clip, ok := engine.(internal_type.ClipEngine)
	require.True(t, ok)
	assert.ErrorIs(t, clip.Resubmit(context.Background()), internal_type.ErrNothingToSave)
}
