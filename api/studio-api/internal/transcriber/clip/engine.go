// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_transcriber_clip

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/pkg/commons"
)

type clipEngine struct {
	logger   commons.Logger
	mic      internal_type.AudioCapture
	uploader Uploader
	language string
	listener internal_type.TranscriptListener

	// uploadMu keeps a single upload in flight.
	uploadMu sync.Mutex

	mu        sync.Mutex
	status    internal_type.TranscriptStatus
	text      string
	attempts  int
	errText   string
	updatedAt time.Time
	audio     internal_type.AudioStream
	buffer    bytes.Buffer
	clip      []byte
}

// NewClipEngine records the microphone for the whole session and uploads the
// clip once when the session stops.
func NewClipEngine(logger commons.Logger, mic internal_type.AudioCapture, uploader Uploader, language string, listener internal_type.TranscriptListener) internal_type.ClipEngine {
	if language == "" {
		language = defaultLanguage
	}
	return &clipEngine{
		logger:   logger,
		mic:      mic,
		uploader: uploader,
		language: language,
		listener: listener,
		status:   internal_type.TranscriptIdle,
	}
}

func (c *clipEngine) Mode() internal_type.TranscriptMode {
	return internal_type.TranscriptClip
}

func (c *clipEngine) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status == internal_type.TranscriptCapturing || c.status == internal_type.TranscriptUploading {
		c.mu.Unlock()
		return internal_type.ErrAlreadyRecording
	}
	// Capturing before the microphone starts, so its first bytes (the mp3
	// header) land in the buffer.
	c.buffer.Reset()
	c.clip = nil
	c.text = ""
	c.attempts = 0
	c.errText = ""
	c.audio = nil
	c.status = internal_type.TranscriptCapturing
	c.updatedAt = time.Now()
	snapshot, listener := c.snapshotLocked(), c.listener
	c.mu.Unlock()
	if listener != nil {
		listener(snapshot)
	}

	audio, err := c.mic.Start(ctx, internal_type.AudioMP3, c.append)
	if err != nil {
		c.set(func() {
			c.buffer.Reset()
			c.status = internal_type.TranscriptFailed
			c.errText = err.Error()
		})
		return fmt.Errorf("clip-stt: microphone: %w", err)
	}
	c.mu.Lock()
	c.audio = audio
	c.mu.Unlock()
	c.logger.Infof("clip-stt: capturing %s", ClipFileName)
	return nil
}

func (c *clipEngine) append(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != internal_type.TranscriptCapturing {
		return
	}
	c.buffer.Write(b)
}

// Stop ends the capture and uploads the clip. The returned error is the
// upload failure, also recorded in the state.
func (c *clipEngine) Stop(ctx context.Context) error {
	c.mu.Lock()
	// audio is nil while Start is still opening the microphone or another
	// Stop already owns the capture.
	if c.status != internal_type.TranscriptCapturing || c.audio == nil {
		c.mu.Unlock()
		return nil
	}
	audio := c.audio
	c.audio = nil
	c.mu.Unlock()

	stopErr := audio.Stop(ctx)

	c.mu.Lock()
	c.clip = append([]byte(nil), c.buffer.Bytes()...)
	c.buffer.Reset()
	clip := c.clip
	c.mu.Unlock()

	if stopErr != nil {
		c.logger.Warnf("clip-stt: capture did not stop cleanly: %v", stopErr)
	}
	if len(clip) == 0 {
		err := fmt.Errorf("clip-stt: %w: no audio captured", internal_type.ErrNothingToSave)
		c.set(func() {
			c.status = internal_type.TranscriptFailed
			c.errText = err.Error()
		})
		return err
	}
	return c.upload(ctx, clip)
}

// Resubmit uploads the last clip again. Failed uploads are only ever retried this way.
func (c *clipEngine) Resubmit(ctx context.Context) error {
	c.mu.Lock()
	status, clip := c.status, c.clip
	c.mu.Unlock()
	switch status {
	case internal_type.TranscriptCapturing, internal_type.TranscriptUploading:
		return fmt.Errorf("%w: clip-stt: %s", internal_type.ErrSessionActive, status)
	}
	if len(clip) == 0 {
		return internal_type.ErrNothingToSave
	}
	return c.upload(ctx, clip)
}

// Clip returns a copy of the last captured clip.
func (c *clipEngine) Clip() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.clip) == 0 {
		return nil
	}
	return append([]byte(nil), c.clip...)
}

func (c *clipEngine) upload(ctx context.Context, clip []byte) error {
	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()

	c.set(func() {
		c.status = internal_type.TranscriptUploading
		c.attempts++
		c.errText = ""
	})

	text, err := c.uploader.Transcribe(ctx, clip, ClipFileName, c.language)
	if err != nil {
		c.logger.Errorf("clip-stt: upload of %d bytes failed: %v", len(clip), err)
		c.set(func() {
			c.status = internal_type.TranscriptFailed
			c.errText = err.Error()
		})
		return err
	}
	c.set(func() {
		c.status = internal_type.TranscriptComplete
		c.text = text
	})
	c.logger.Infof("clip-stt: transcription complete, %d characters", len(text))
	return nil
}

func (c *clipEngine) set(mutate func()) {
	c.mu.Lock()
	mutate()
	c.updatedAt = time.Now()
	snapshot := c.snapshotLocked()
	listener := c.listener
	c.mu.Unlock()
	if listener != nil {
		listener(snapshot)
	}
}

func (c *clipEngine) State() internal_type.TranscriptState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *clipEngine) snapshotLocked() internal_type.TranscriptState {
	return internal_type.TranscriptState{
		Mode:      internal_type.TranscriptClip,
		Status:    c.status,
		Text:      c.text,
		Attempts:  c.attempts,
		Error:     c.errText,
		UpdatedAt: c.updatedAt,
	}
}
