// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"context"
	"time"
)

type TranscriptMode string

const (
	TranscriptLive TranscriptMode = "live"
	TranscriptClip TranscriptMode = "clip"
)

type TranscriptStatus string

const (
	TranscriptIdle       TranscriptStatus = "idle"
	TranscriptListening  TranscriptStatus = "listening"
	TranscriptRestarting TranscriptStatus = "restarting"
	TranscriptCapturing  TranscriptStatus = "capturing"
	TranscriptUploading  TranscriptStatus = "uploading"
	TranscriptComplete   TranscriptStatus = "complete"
	TranscriptFailed     TranscriptStatus = "failed"
)

// ListeningPlaceholder is shown while no words have been recognized yet.
const ListeningPlaceholder = "Listening..."

type TranscriptState struct {
	Mode       TranscriptMode   `json:"mode"`
	Status     TranscriptStatus `json:"status"`
	Text       string           `json:"text"`
	Attempts   int              `json:"attempts"`
	Confidence float64          `json:"confidence,omitempty"`
	Error      string           `json:"error,omitempty"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Display is the text a viewer should see. The transcript is hidden while an
// upload is in flight.
func (s TranscriptState) Display() string {
	if s.Status == TranscriptUploading {
		return ""
	}
	if s.Text == "" && (s.Status == TranscriptListening || s.Status == TranscriptRestarting || s.Status == TranscriptCapturing) {
		return ListeningPlaceholder
	}
	return s.Text
}

// Terminal reports whether the engine will not change the state again on its own.
func (s TranscriptState) Terminal() bool {
	return s.Status == TranscriptComplete || s.Status == TranscriptFailed || s.Status == TranscriptIdle
}

// TranscriptListener observes every state change of an engine.
type TranscriptListener func(TranscriptState)

// TranscriptionEngine is the single writer of a session's transcript.
type TranscriptionEngine interface {
	Mode() TranscriptMode
	Start(ctx context.Context) error
	// Stop finalizes the transcript. For clip engines this performs the upload.
	Stop(ctx context.Context) error
	State() TranscriptState
}

// ClipEngine is a TranscriptionEngine that keeps its uploaded clip for manual retry.
type ClipEngine interface {
	TranscriptionEngine
	// Resubmit uploads the last clip again.
	Resubmit(ctx context.Context) error
	Clip() []byte
}
