// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/pkg/commons"
)

type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
	// StateFailed means the encoder died mid-session. Stop still salvages the chunks.
	StateFailed State = "failed"
)

const DefaultFileName = "recording.webm"

// RecordingSession is a read-only snapshot of the controller's session.
type RecordingSession struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"startedAt"`
	Chunks    int       `json:"chunks"`
	Bytes     int       `json:"bytes"`
	MimeType  string    `json:"mimeType"`
	Error     string    `json:"error,omitempty"`
}

// FinalizedRecording is the materialized payload of a stopped session.
type FinalizedRecording struct {
	SessionID string
	Payload   []byte
	MimeType  string
	FileName  string
	Chunks    int
	// Partial is set when the encoder failed before the final flush.
	Partial bool
}

func (f *FinalizedRecording) Empty() bool {
	return f == nil || len(f.Payload) == 0
}

type Controller interface {
	Start(ctx context.Context, stream *internal_type.CompositeStream) (RecordingSession, error)
	// Stop finalizes the session with the given id, or the current one when id is empty.
	Stop(ctx context.Context, id string) (*FinalizedRecording, error)
	// Save offers the recording to the sink. It never changes controller state.
	Save(ctx context.Context, rec *FinalizedRecording) (string, error)
	Current() RecordingSession
	// Last is the most recently finalized recording, kept until the next Start or Clear.
	Last() *FinalizedRecording
	Clear()
}

type EncoderFactory func() internal_type.Encoder

type Option func(*controller)

// WithFailureHandler is called once when the encoder fails during a session.
func WithFailureHandler(fn func(sessionID string, err error)) Option {
	return func(c *controller) { c.onFailure = fn }
}

func WithFileName(name string) Option {
	return func(c *controller) { c.fileName = name }
}

func WithClock(clock func() time.Time) Option {
	return func(c *controller) { c.clock = clock }
}

type controller struct {
	logger     commons.Logger
	newEncoder EncoderFactory
	sink       Sink
	fileName   string
	onFailure  func(string, error)
	clock      func() time.Time

	mu         sync.Mutex
	generation uint64
	session    *RecordingSession
	chunks     [][]byte
	encoder    internal_type.Encoder
	failure    error
	last       *FinalizedRecording
}

func NewController(logger commons.Logger, newEncoder EncoderFactory, sink Sink, opts ...Option) Controller {
	c := &controller{
		logger:     logger,
		newEncoder: newEncoder,
		sink:       sink,
		fileName:   DefaultFileName,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *controller) Start(ctx context.Context, stream *internal_type.CompositeStream) (RecordingSession, error) {
	if stream == nil || stream.Len() == 0 {
		return RecordingSession{}, fmt.Errorf("%w: recorder needs a non-empty stream", internal_type.ErrConfiguration)
	}

	c.mu.Lock()
	if c.session != nil && c.session.State != StateIdle {
		current := *c.session
		c.mu.Unlock()
		return current, internal_type.ErrAlreadyRecording
	}
	encoder := c.newEncoder()
	c.generation++
	gen := c.generation
	c.session = &RecordingSession{
		ID:        uuid.NewString(),
		State:     StateRecording,
		StartedAt: c.clock(),
		MimeType:  encoder.MimeType(),
	}
	c.chunks = nil
	c.failure = nil
	c.last = nil
	c.encoder = encoder
	id := c.session.ID
	c.mu.Unlock()

	err := encoder.Start(ctx, stream,
		func(data []byte) { c.push(gen, data) },
		func(err error) { c.fail(gen, err) },
	)
	if err != nil {
		c.mu.Lock()
		if c.generation == gen {
			c.session = nil
			c.encoder = nil
		}
		c.mu.Unlock()
		c.logger.Errorf("recorder: unable to start encoder: %v", err)
		return RecordingSession{}, fmt.Errorf("recorder: start encoder: %w", err)
	}

	c.logger.Infof("recorder: session %s started with %d track(s)", id, stream.Len())
	return c.Current(), nil
}

func (c *controller) push(gen uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.session == nil {
		return
	}
	switch c.session.State {
	case StateRecording, StateFinalizing, StateFailed:
	default:
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	c.chunks = append(c.chunks, chunk)
	c.session.Chunks++
	c.session.Bytes += len(chunk)
}

func (c *controller) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation || c.session == nil || c.session.State != StateRecording {
		c.mu.Unlock()
		return
	}
	c.session.State = StateFailed
	c.session.Error = err.Error()
	c.failure = err
	id := c.session.ID
	c.mu.Unlock()

	c.logger.Errorf("recorder: encoder failed for session %s: %v", id, err)
	if c.onFailure != nil {
		c.onFailure(id, fmt.Errorf("%w: %v", internal_type.ErrDeviceDisconnected, err))
	}
}

func (c *controller) Stop(ctx context.Context, id string) (*FinalizedRecording, error) {
	c.mu.Lock()
	if c.session == nil || (id != "" && id != c.session.ID) {
		c.mu.Unlock()
		return nil, internal_type.ErrNotRecording
	}
	if c.session.State != StateRecording && c.session.State != StateFailed {
		c.mu.Unlock()
		return nil, internal_type.ErrNotRecording
	}
	c.session.State = StateFinalizing
	gen := c.generation
	encoder := c.encoder
	failure := c.failure
	c.mu.Unlock()

	start := time.Now()
	stopErr := encoder.Stop(ctx)
	c.logger.Benchmark("recorder.Stop", time.Since(start))

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return nil, internal_type.ErrNotRecording
	}
	rec := &FinalizedRecording{
		SessionID: c.session.ID,
		Payload:   bytes.Join(c.chunks, nil),
		MimeType:  c.session.MimeType,
		FileName:  c.fileName,
		Chunks:    len(c.chunks),
		Partial:   failure != nil || stopErr != nil,
	}
	c.session.State = StateIdle
	c.encoder = nil
	c.last = rec
	c.mu.Unlock()

	switch {
	case failure != nil:
		c.logger.Warnf("recorder: salvaged %d byte(s) from failed session %s", len(rec.Payload), rec.SessionID)
		return rec, fmt.Errorf("%w: %v", internal_type.ErrDeviceDisconnected, failure)
	case stopErr != nil:
		c.logger.Warnf("recorder: final flush of session %s incomplete: %v", rec.SessionID, stopErr)
		return rec, fmt.Errorf("recorder: final flush: %w", stopErr)
	}
	c.logger.Infof("recorder: session %s finalized with %d chunk(s), %d byte(s)", rec.SessionID, rec.Chunks, len(rec.Payload))
	return rec, nil
}

func (c *controller) Save(ctx context.Context, rec *FinalizedRecording) (string, error) {
	if rec.Empty() {
		return "", internal_type.ErrNothingToSave
	}
	payload := make([]byte, len(rec.Payload))
	copy(payload, rec.Payload)
	location, err := c.sink.Offer(ctx, rec.FileName, rec.MimeType, payload)
	if err != nil {
		return "", fmt.Errorf("recorder: save %s: %w", rec.FileName, err)
	}
	c.logger.Debugf("recorder: offered %s (%d bytes) at %s", rec.FileName, len(payload), location)
	return location, nil
}

func (c *controller) Current() RecordingSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return RecordingSession{State: StateIdle}
	}
	return *c.session
}

func (c *controller) Last() *FinalizedRecording {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Clear drops the last session and its chunks. An active session is left alone.
func (c *controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.State != StateIdle {
		return
	}
	c.session = nil
	c.chunks = nil
	c.last = nil
}
