// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package session_api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	internal_capture "github.com/rapidaai/studio/api/studio-api/internal/capture"
	internal_history "github.com/rapidaai/studio/api/studio-api/internal/history"
	internal_publisher "github.com/rapidaai/studio/api/studio-api/internal/publisher"
	internal_session "github.com/rapidaai/studio/api/studio-api/internal/session"
	internal_summarizer "github.com/rapidaai/studio/api/studio-api/internal/summarizer"
	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = 50 * time.Second
	eventsBuffer     = 32

	// finalizing a session waits on the encoder trailer and the clip upload
	sessionStopTimeout = 2 * time.Minute
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type SessionApi struct {
	cfg          *config.AppConfig
	logger       commons.Logger
	orchestrator internal_session.Orchestrator
	summarizer   internal_summarizer.Summarizer
	history      internal_history.Store
	hub          *internal_publisher.Hub
}

// New wires the http surface of the studio. summarizer, history and hub may be nil;
// their routes then answer 503.
func New(cfg *config.AppConfig,
	logger commons.Logger,
	orchestrator internal_session.Orchestrator,
	summarizer internal_summarizer.Summarizer,
	history internal_history.Store,
	hub *internal_publisher.Hub,
) *SessionApi {
	return &SessionApi{
		cfg:          cfg,
		logger:       logger,
		orchestrator: orchestrator,
		summarizer:   summarizer,
		history:      history,
		hub:          hub,
	}
}

type beginRequest struct {
	Screen *bool `json:"screen"`
	Camera *bool `json:"camera"`
	Audio  *bool `json:"audio"`
}

func (r beginRequest) toRequest(cfg config.CaptureConfig) internal_capture.Request {
	req := internal_capture.Request{Screen: true, Camera: cfg.Camera, Audio: cfg.Audio}
	if r.Screen != nil {
		req.Screen = *r.Screen
	}
	if r.Camera != nil {
		req.Camera = *r.Camera
	}
	if r.Audio != nil {
		req.Audio = *r.Audio
	}
	return req
}

// BeginSession godoc
// @Router /v1/session/ [post]
func (s *SessionApi) BeginSession(c *gin.Context) {
	var body beginRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
	}
	snap, err := s.orchestrator.BeginSession(c.Request.Context(), body.toRequest(s.cfg.CaptureConfig))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": snap})
}

// EndSession godoc
// @Router /v1/session/ [delete]
func (s *SessionApi) EndSession(c *gin.Context) {
	ctx, cancel := detached(c)
	defer cancel()
	result, err := s.orchestrator.EndSession(ctx)
	if result == nil {
		abortWithError(c, err)
		return
	}
	if err != nil {
		s.logger.Warnf("session: ended with errors: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": err == nil, "data": result, "snapshot": s.orchestrator.Snapshot()})
}

// detached outlives the client connection. A disconnect must not kill the
// encoder before its trailer is written or abort an upload in flight.
func detached(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), sessionStopTimeout)
}

// GetSession godoc
// @Router /v1/session/ [get]
func (s *SessionApi) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s.orchestrator.Snapshot()})
}

// DownloadRecording sends the last recording as an attachment.
func (s *SessionApi) DownloadRecording(c *gin.Context) {
	rec := s.orchestrator.LastRecording()
	if rec == nil || rec.Empty() {
		abortWithError(c, internal_type.ErrNothingToSave)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+rec.FileName+"\"")
	c.Data(http.StatusOK, rec.MimeType, rec.Payload)
}

// SaveRecording writes the last recording into the download directory.
func (s *SessionApi) SaveRecording(c *gin.Context) {
	ctx, cancel := detached(c)
	defer cancel()
	location, err := s.orchestrator.Save(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"location": location}})
}

// RetryTranscription re-uploads the last clip.
func (s *SessionApi) RetryTranscription(c *gin.Context) {
	ctx, cancel := detached(c)
	defer cancel()
	state, err := s.orchestrator.RetryTranscription(ctx)
	if err != nil {
		status := statusFor(err)
		body := gin.H{"success": false, "error": err.Error(), "data": state}
		var uploadErr *internal_type.UploadError
		if errors.As(err, &uploadErr) && uploadErr.Body != "" {
			body["response"] = uploadErr.Body
		}
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": state})
}

func (s *SessionApi) DownloadClip(c *gin.Context) {
	clip, err := s.orchestrator.Clip()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\"audio.mp3\"")
	c.Data(http.StatusOK, "audio/mpeg", clip)
}

type summaryRequest struct {
	Task          string `json:"task" binding:"required,oneof=summary meetings tasks"`
	Transcription string `json:"transcription"`
}

// Summarize runs the ai task over the given transcription, or the current
// transcript when none is given.
func (s *SessionApi) Summarize(c *gin.Context) {
	if s.summarizer == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "summarizer is not configured"})
		return
	}
	var body summaryRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	task, err := internal_summarizer.ParseTask(body.Task)
	if err != nil {
		abortWithError(c, err)
		return
	}
	transcript := body.Transcription
	if transcript == "" {
		transcript = s.orchestrator.Snapshot().Transcript.Text
	}
	result, err := s.summarizer.Summarize(c.Request.Context(), transcript, task)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"result": result, "task": task}})
}

// ListSessions returns the session history, newest first.
func (s *SessionApi) ListSessions(c *gin.Context) {
	if s.history == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "history is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.history.List(c.Request.Context(), limit)
	if err != nil {
		s.logger.Errorf("session: unable to list history: %v", err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": records})
}

// Events upgrades to a websocket and streams every transcript change.
func (s *SessionApi) Events(c *gin.Context) {
	if s.hub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "event feed is not configured"})
		return
	}
	conn, err := eventsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnf("session: unable to upgrade event feed: %v", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.hub.Subscribe(eventsBuffer)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go s.drainEvents(conn, cancel)

	ping := time.NewTicker(eventsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debugf("session: event feed closed: %v", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainEvents reads until the client goes away; the feed is write only.
func (s *SessionApi) drainEvents(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
