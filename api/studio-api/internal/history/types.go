// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_history

import (
	"time"

	"gorm.io/gorm"
)

// Session history status constants.
const (
	StatusRecording = "recording" // session began, not yet ended
	StatusCompleted = "completed" // ended with every resource stopped cleanly
	StatusFailed    = "failed"    // ended with a device loss or a failed stop
)

// SessionRecord is the metadata kept for one session. Media payloads are
// never stored here.
type SessionRecord struct {
	Id               uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID        string     `json:"sessionId" gorm:"column:session_id;type:varchar(36);not null;uniqueIndex"`
	Status           string     `json:"status" gorm:"column:status;type:varchar(20);not null;default:recording"`
	Mode             string     `json:"mode" gorm:"column:mode;type:varchar(20);not null;default:''"`
	Screen           bool       `json:"screen" gorm:"column:screen;not null;default:false"`
	Camera           bool       `json:"camera" gorm:"column:camera;not null;default:false"`
	TranscriptStatus string     `json:"transcriptStatus" gorm:"column:transcript_status;type:varchar(20);not null;default:''"`
	Transcript       string     `json:"transcript" gorm:"column:transcript;type:text;not null;default:''"`
	ElapsedSeconds   int        `json:"elapsedSeconds" gorm:"column:elapsed_seconds;not null;default:0"`
	PayloadBytes     int64      `json:"payloadBytes" gorm:"column:payload_bytes;not null;default:0"`
	Chunks           int        `json:"chunks" gorm:"column:chunks;not null;default:0"`
	Error            string     `json:"error,omitempty" gorm:"column:error;type:text;not null;default:''"`
	StartedDate      time.Time  `json:"startedDate" gorm:"column:started_date;not null"`
	EndedDate        *time.Time `json:"endedDate,omitempty" gorm:"column:ended_date"`
	CreatedDate      time.Time  `json:"createdDate" gorm:"column:created_date;not null;<-:create"`
	UpdatedDate      time.Time  `json:"updatedDate" gorm:"column:updated_date"`
}

func (SessionRecord) TableName() string {
	return "studio_sessions"
}

func (r *SessionRecord) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if r.CreatedDate.IsZero() {
		r.CreatedDate = now
	}
	if r.StartedDate.IsZero() {
		r.StartedDate = now
	}
	return nil
}

// IsOpen returns true while the session has not been completed.
func (r *SessionRecord) IsOpen() bool {
	return r.Status == StatusRecording
}

// Outcome is what endSession learned about a session.
type Outcome struct {
	Failed           bool
	TranscriptStatus string
	Transcript       string
	ElapsedSeconds   int
	PayloadBytes     int64
	Chunks           int
	Error            string
}
