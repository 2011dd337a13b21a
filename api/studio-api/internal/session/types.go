// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"time"

	internal_capture "github.com/rapidaai/studio/api/studio-api/internal/capture"
	internal_recorder "github.com/rapidaai/studio/api/studio-api/internal/recorder"
	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
)

// Status is the single record every sub-component is read against.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStarting  Status = "starting"
	StatusRecording Status = "recording"
	StatusStopping  Status = "stopping"
	// StatusFailed is a recording session that lost its device. It still
	// holds resources until EndSession.
	StatusFailed Status = "failed"
)

// Snapshot is the read-only view of the orchestrator.
type Snapshot struct {
	Status      Status                             `json:"status"`
	SessionID   string                             `json:"sessionId,omitempty"`
	Request     internal_capture.Request           `json:"request"`
	Recording   internal_recorder.RecordingSession `json:"recording"`
	Transcript  internal_type.TranscriptState      `json:"transcript"`
	Display     string                             `json:"display"`
	Elapsed     int                                `json:"elapsedSeconds"`
	ElapsedText string                             `json:"elapsed"`
	StartedAt   time.Time                          `json:"startedAt,omitempty"`
	Errors      []string                           `json:"errors,omitempty"`
}

// Result is what EndSession produced. Recording is set even when some stops
// failed, as long as the recorder had anything to finalize.
type Result struct {
	SessionID  string                                `json:"sessionId"`
	Recording  *internal_recorder.FinalizedRecording `json:"-"`
	Transcript internal_type.TranscriptState         `json:"transcript"`
	Elapsed    int                                   `json:"elapsedSeconds"`
	Errors     []string                              `json:"errors,omitempty"`
}
