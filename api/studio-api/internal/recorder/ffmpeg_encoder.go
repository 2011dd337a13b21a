// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	internal_platform "github.com/rapidaai/studio/api/studio-api/internal/platform"
	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
)

const webmMimeType = "video/webm;codecs=vp8,opus"

type ffmpegEncoder struct {
	logger    commons.Logger
	runner    internal_platform.Runner
	ffmpeg    string
	frameRate int
	chunkSize int

	mu   sync.Mutex
	proc internal_platform.Process
}

// NewFFmpegEncoder returns a factory for encoders that mux every track of a
// composite stream into one WebM stream. The camera is laid over the screen
// as picture in picture.
func NewFFmpegEncoder(logger commons.Logger, cfg config.CaptureConfig, runner internal_platform.Runner) EncoderFactory {
	return func() internal_type.Encoder {
		return &ffmpegEncoder{
			logger:    logger,
			runner:    runner,
			ffmpeg:    cfg.FFmpegPath,
			frameRate: cfg.FrameRate,
			chunkSize: cfg.ChunkSize,
		}
	}
}

func (e *ffmpegEncoder) MimeType() string {
	return webmMimeType
}

func (e *ffmpegEncoder) Start(ctx context.Context, stream *internal_type.CompositeStream, onData func([]byte), onFailure func(error)) error {
	args, err := buildEncoderArgs(stream, e.frameRate)
	if err != nil {
		return err
	}
	proc, err := e.runner.Start(ctx, internal_platform.Command{
		Path:      e.ffmpeg,
		Args:      args,
		ChunkSize: e.chunkSize,
		OnData:    onData,
	})
	if err != nil {
		return fmt.Errorf("%w: encoder: %v", internal_type.ErrDeviceUnavailable, err)
	}
	e.mu.Lock()
	e.proc = proc
	e.mu.Unlock()

	go func() {
		<-proc.Done()
		if err := proc.Err(); err != nil && !proc.Stopping() && onFailure != nil {
			onFailure(err)
		}
	}()
	return nil
}

func (e *ffmpegEncoder) Stop(ctx context.Context) error {
	e.mu.Lock()
	proc := e.proc
	e.mu.Unlock()
	if proc == nil {
		return internal_type.ErrNotRecording
	}
	return proc.Stop(ctx)
}

// buildEncoderArgs maps every track to an ffmpeg input in stream order. The
// first video track fills the frame, the first camera track is overlaid in
// the bottom right corner and the first audio track is muxed alongside.
func buildEncoderArgs(stream *internal_type.CompositeStream, frameRate int) ([]string, error) {
	if stream == nil || stream.Len() == 0 {
		return nil, fmt.Errorf("%w: encoder needs at least one track", internal_type.ErrConfiguration)
	}
	if frameRate <= 0 {
		frameRate = 30
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	videoIdx, audioIdx := []int{}, []int{}
	previewIdx := -1
	preview := stream.PreviewTrack()

	for i, t := range stream.Tracks() {
		in := t.Input()
		args = append(args, "-thread_queue_size", "512", "-f", in.Format)
		args = append(args, in.Options...)
		args = append(args, "-i", in.Device)
		switch t.Kind() {
		case internal_type.TrackVideo:
			videoIdx = append(videoIdx, i)
			if preview != nil && t.ID() == preview.ID() {
				previewIdx = i
			}
		case internal_type.TrackAudio:
			audioIdx = append(audioIdx, i)
		}
	}

	switch {
	case len(videoIdx) >= 2 && previewIdx >= 0 && previewIdx != videoIdx[0]:
		filter := fmt.Sprintf("[%d:v]scale=1280:-2[bg];[%d:v]scale=320:-2[pip];[bg][pip]overlay=W-w-24:H-h-24[v]", videoIdx[0], previewIdx)
		args = append(args, "-filter_complex", filter, "-map", "[v]")
	case len(videoIdx) >= 1:
		args = append(args, "-map", strconv.Itoa(videoIdx[0])+":v")
	}
	if len(audioIdx) > 0 {
		args = append(args, "-map", strconv.Itoa(audioIdx[0])+":a")
	}

	if len(videoIdx) > 0 {
		args = append(args,
			"-c:v", "libvpx", "-deadline", "realtime", "-cpu-used", "8",
			"-b:v", "1M", "-r", strconv.Itoa(frameRate),
		)
	}
	if len(audioIdx) > 0 {
		args = append(args, "-c:a", "libopus", "-b:a", "96k")
	}
	return append(args, "-f", "webm", "-cluster_time_limit", "1000", "pipe:1"), nil
}
