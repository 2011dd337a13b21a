// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rapidaai/studio/pkg/commons"
	"github.com/rapidaai/studio/pkg/connectors"
)

const defaultListLimit = 50

// Store keeps one row per session, written on begin and completed on end.
type Store interface {
	// Migrate creates or updates the studio_sessions table.
	Migrate(ctx context.Context) error

	// Save inserts a record, generating the session id when it is empty.
	Save(ctx context.Context, r *SessionRecord) (string, error)

	Get(ctx context.Context, sessionID string) (*SessionRecord, error)

	// Complete closes a session with its outcome. Completing twice overwrites
	// the first outcome.
	Complete(ctx context.Context, sessionID string, outcome Outcome) error

	// List returns the most recent sessions first.
	List(ctx context.Context, limit int) ([]*SessionRecord, error)
}

type gormStore struct {
	db     connectors.DatabaseConnector
	logger commons.Logger
}

func NewStore(db connectors.DatabaseConnector, logger commons.Logger) Store {
	return &gormStore{db: db, logger: logger}
}

func (s *gormStore) Migrate(ctx context.Context) error {
	if err := s.db.DB(ctx).AutoMigrate(&SessionRecord{}); err != nil {
		return fmt.Errorf("failed to migrate session history: %w", err)
	}
	return nil
}

func (s *gormStore) Save(ctx context.Context, r *SessionRecord) (string, error) {
	if r.SessionID == "" {
		r.SessionID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = StatusRecording
	}
	if err := s.db.DB(ctx).Create(r).Error; err != nil {
		return "", fmt.Errorf("failed to save session %s: %w", r.SessionID, err)
	}
	s.logger.Debugf("saved session history: sessionId=%s, mode=%s", r.SessionID, r.Mode)
	return r.SessionID, nil
}

func (s *gormStore) Get(ctx context.Context, sessionID string) (*SessionRecord, error) {
	var r SessionRecord
	if err := s.db.DB(ctx).Where("session_id = ?", sessionID).First(&r).Error; err != nil {
		return nil, fmt.Errorf("session not found: %s: %w", sessionID, err)
	}
	return &r, nil
}

func (s *gormStore) Complete(ctx context.Context, sessionID string, outcome Outcome) error {
	status := StatusCompleted
	if outcome.Failed {
		status = StatusFailed
	}
	now := time.Now()
	result := s.db.DB(ctx).Model(&SessionRecord{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":            status,
			"transcript_status": outcome.TranscriptStatus,
			"transcript":        outcome.Transcript,
			"elapsed_seconds":   outcome.ElapsedSeconds,
			"payload_bytes":     outcome.PayloadBytes,
			"chunks":            outcome.Chunks,
			"error":             outcome.Error,
			"ended_date":        now,
			"updated_date":      now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete session %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.logger.Debugf("completed session history: sessionId=%s, status=%s", sessionID, status)
	return nil
}

func (s *gormStore) List(ctx context.Context, limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []*SessionRecord
	if err := s.db.DB(ctx).Order("created_date desc").Order("id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return out, nil
}
