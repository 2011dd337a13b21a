// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"context"
	"fmt"

	internal_platform "github.com/rapidaai/studio/api/studio-api/internal/platform"
	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
)

type microphone struct {
	logger    commons.Logger
	runner    internal_platform.Runner
	ffmpeg    string
	chunkSize int
	input     internal_type.InputSpec
	lookPath  func(string) (string, error)
}

// NewMicrophone returns an AudioCapture that runs its own ffmpeg process,
// independent of the recording encoder.
func NewMicrophone(logger commons.Logger, cfg config.CaptureConfig, platform PlatformDefaults, runner internal_platform.Runner) internal_type.AudioCapture {
	return &microphone{
		logger:    logger,
		runner:    runner,
		ffmpeg:    cfg.FFmpegPath,
		chunkSize: 3200,
		input:     internal_type.InputSpec{Format: platform.AudioFormat, Device: platform.AudioDevice},
		lookPath:  runner.LookPath,
	}
}

func (m *microphone) Available() bool {
	if m.input.Format == "" || m.input.Device == "" {
		return false
	}
	_, err := m.lookPath(m.ffmpeg)
	return err == nil
}

func (m *microphone) Start(ctx context.Context, format internal_type.AudioFormat, onData func([]byte)) (internal_type.AudioStream, error) {
	args, err := microphoneArgs(m.input, format)
	if err != nil {
		return nil, err
	}
	chunk := m.chunkSize
	if format == internal_type.AudioMP3 {
		chunk = 16 * 1024
	}
	proc, err := m.runner.Start(ctx, internal_platform.Command{
		Path:      m.ffmpeg,
		Args:      args,
		ChunkSize: chunk,
		OnData:    onData,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: microphone: %v", internal_type.ErrDeviceUnavailable, err)
	}
	m.logger.Debugf("capture: microphone started as %s from %s %s", format, m.input.Format, m.input.Device)
	return &audioStream{proc: proc}, nil
}

// microphoneArgs builds the ffmpeg arguments for a mono capture on stdout.
// PCM is 16 kHz for recognizers, mp3 is 44.1 kHz at 128 kbit/s for upload.
func microphoneArgs(input internal_type.InputSpec, format internal_type.AudioFormat) ([]string, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", input.Format}
	args = append(args, input.Options...)
	args = append(args, "-i", input.Device, "-vn", "-ac", "1")
	switch format {
	case internal_type.AudioPCM:
		args = append(args, "-ar", "16000", "-f", "s16le", "-acodec", "pcm_s16le")
	case internal_type.AudioMP3:
		args = append(args, "-ar", "44100", "-codec:a", "libmp3lame", "-b:a", "128k", "-f", "mp3")
	default:
		return nil, fmt.Errorf("%w: unsupported audio format %q", internal_type.ErrConfiguration, format)
	}
	return append(args, "pipe:1"), nil
}

type audioStream struct {
	proc internal_platform.Process
}

func (a *audioStream) Stop(ctx context.Context) error {
	return a.proc.Stop(ctx)
}

func (a *audioStream) Done() <-chan struct{} {
	return a.proc.Done()
}

func (a *audioStream) Err() error {
	return a.proc.Err()
}
