// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	internal_capture "github.com/rapidaai/studio/api/studio-api/internal/capture"
	internal_history "github.com/rapidaai/studio/api/studio-api/internal/history"
	internal_publisher "github.com/rapidaai/studio/api/studio-api/internal/publisher"
	internal_recorder "github.com/rapidaai/studio/api/studio-api/internal/recorder"
	internal_timer "github.com/rapidaai/studio/api/studio-api/internal/timer"
	internal_transcriber "github.com/rapidaai/studio/api/studio-api/internal/transcriber"
	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/pkg/commons"
)

// Orchestrator sequences capture, recording, the elapsed timer and
// transcription behind BeginSession and EndSession.
type Orchestrator interface {
	// BeginSession rejects with ErrSessionActive while any session exists.
	BeginSession(ctx context.Context, req internal_capture.Request) (Snapshot, error)

	// EndSession stops every resource even when some stops fail. The error
	// combines every failure; the result is still returned.
	EndSession(ctx context.Context) (*Result, error)

	Snapshot() Snapshot

	// Save offers the last finalized recording to the download sink.
	Save(ctx context.Context) (string, error)
	LastRecording() *internal_recorder.FinalizedRecording

	// RetryTranscription re-uploads the last clip. Only clip engines support it.
	RetryTranscription(ctx context.Context) (internal_type.TranscriptState, error)
	Clip() ([]byte, error)

	// RecorderFailed degrades the session after a mid-recording device loss.
	RecorderFailed(sessionID string, err error)
}

// Dependencies are the collaborators of one orchestrator. Transcribers,
// Publisher and History are optional.
type Dependencies struct {
	Acquirer     internal_capture.Acquirer
	Recorder     internal_recorder.Controller
	Timer        internal_timer.ElapsedTimer
	Transcribers internal_transcriber.Factory
	Publisher    internal_publisher.Publisher
	History      internal_history.Store
}

type Option func(*orchestrator)

// WithPublishTimeout bounds each transcript publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(o *orchestrator) { o.publishTimeout = d }
}

// WithPublishBuffer sets how many interim transcripts may wait for a slow
// publisher before new ones are dropped.
func WithPublishBuffer(n int) Option {
	return func(o *orchestrator) { o.publishBuffer = n }
}

type publication struct {
	event internal_publisher.Event
	done  chan struct{}
}

type orchestrator struct {
	logger         commons.Logger
	deps           Dependencies
	publishTimeout time.Duration
	publishBuffer  int
	publishOnce    sync.Once
	queue          chan publication

	mu          sync.Mutex
	status      Status
	generation  uint64
	sessionID   string
	request     internal_capture.Request
	startedAt   time.Time
	sources     []*internal_type.CaptureSource
	timerHandle internal_timer.Handle
	frozen      int
	engine      internal_type.TranscriptionEngine
	transcript  internal_type.TranscriptState
	errs        []string
	outcome     *internal_history.Outcome
}

func NewOrchestrator(logger commons.Logger, deps Dependencies, opts ...Option) Orchestrator {
	o := &orchestrator{
		logger:         logger,
		deps:           deps,
		publishTimeout: 2 * time.Second,
		publishBuffer:  64,
		status:         StatusIdle,
		transcript:     internal_type.TranscriptState{Status: internal_type.TranscriptIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *orchestrator) BeginSession(ctx context.Context, req internal_capture.Request) (Snapshot, error) {
	o.mu.Lock()
	if o.status != StatusIdle {
		status := o.status
		o.mu.Unlock()
		o.logger.Warnf("session: begin rejected, session is %s", status)
		return o.Snapshot(), fmt.Errorf("%w: session is %s", internal_type.ErrSessionActive, status)
	}
	o.status = StatusStarting
	o.generation++
	gen := o.generation
	o.request = req
	o.errs = nil
	o.outcome = nil
	o.engine = nil
	o.transcript = internal_type.TranscriptState{Status: internal_type.TranscriptIdle}
	o.mu.Unlock()

	start := time.Now()
	defer func() { o.logger.Benchmark("session.BeginSession", time.Since(start)) }()

	abort := func(err error) (Snapshot, error) {
		o.mu.Lock()
		o.status = StatusIdle
		o.sessionID = ""
		o.sources = nil
		o.mu.Unlock()
		o.logger.Errorf("session: begin failed: %v", err)
		return o.Snapshot(), err
	}

	sources, err := o.deps.Acquirer.Acquire(ctx, req)
	if err != nil {
		return abort(err)
	}
	stream, err := internal_capture.Compose(sources)
	if err != nil {
		internal_capture.ReleaseAll(sources)
		return abort(err)
	}
	recording, err := o.deps.Recorder.Start(ctx, stream)
	if err != nil {
		internal_capture.ReleaseAll(sources)
		return abort(err)
	}
	handle := o.deps.Timer.Start()

	o.mu.Lock()
	o.sessionID = recording.ID
	o.sources = sources
	o.timerHandle = handle
	o.startedAt = recording.StartedAt
	o.mu.Unlock()

	// A failure reported while Start was still running carried an id the
	// orchestrator did not know yet.
	if current := o.deps.Recorder.Current(); current.ID == recording.ID && current.State == internal_recorder.StateFailed {
		o.RecorderFailed(recording.ID, fmt.Errorf("%w: %s", internal_type.ErrDeviceDisconnected, current.Error))
	}

	o.startTranscription(ctx, gen, recording.ID)

	if o.deps.History != nil {
		record := &internal_history.SessionRecord{
			SessionID:   recording.ID,
			Mode:        string(o.transcriptMode()),
			Screen:      req.Screen,
			Camera:      req.Camera,
			StartedDate: recording.StartedAt,
		}
		if _, err := o.deps.History.Save(ctx, record); err != nil {
			o.logger.Warnf("session: unable to record history for %s: %v", recording.ID, err)
		}
	}

	o.mu.Lock()
	// a device loss during startup already moved the session to failed
	if o.status == StatusStarting {
		o.status = StatusRecording
	}
	o.mu.Unlock()
	o.logger.Infof("session: %s recording", recording.ID)
	return o.Snapshot(), nil
}

// startTranscription never fails the session. A missing or failed engine is
// reported in the transcript state instead.
func (o *orchestrator) startTranscription(ctx context.Context, gen uint64, sessionID string) {
	if o.deps.Transcribers == nil {
		o.setTranscriptFailure(gen, internal_type.TranscriptState{}, fmt.Errorf("%w: transcription is not configured", internal_type.ErrEngineUnsupported))
		return
	}
	mode := o.deps.Transcribers.Mode()
	engine, err := o.deps.Transcribers.New(func(ts internal_type.TranscriptState) {
		o.onTranscript(gen, sessionID, ts)
	})
	if err != nil {
		o.setTranscriptFailure(gen, internal_type.TranscriptState{Mode: mode}, err)
		return
	}
	o.mu.Lock()
	o.engine = engine
	o.mu.Unlock()

	if err := engine.Start(ctx); err != nil {
		state := engine.State()
		state.Mode = mode
		o.setTranscriptFailure(gen, state, err)
	}
}

func (o *orchestrator) setTranscriptFailure(gen uint64, state internal_type.TranscriptState, err error) {
	o.logger.Errorf("session: transcription unavailable, recording continues: %v", err)
	state.Status = internal_type.TranscriptFailed
	state.Error = err.Error()
	state.UpdatedAt = time.Now()
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return
	}
	o.transcript = state
	o.errs = append(o.errs, err.Error())
}

func (o *orchestrator) onTranscript(gen uint64, sessionID string, ts internal_type.TranscriptState) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	o.transcript = ts
	o.mu.Unlock()
	o.enqueue(internal_publisher.Event{SessionID: sessionID, Transcript: ts, Elapsed: o.elapsed()})
}

// enqueue hands an interim transcript to the publish goroutine. It runs on the
// engine's notify path and must never wait on the publisher.
func (o *orchestrator) enqueue(ev internal_publisher.Event) {
	if o.deps.Publisher == nil {
		return
	}
	o.startPublisher()
	ev.At = time.Now()
	select {
	case o.queue <- publication{event: ev}:
	default:
		o.logger.Warnf("session: publish queue full, dropping interim transcript for %s", ev.SessionID)
	}
}

// publish delivers ev after every queued interim transcript and waits for it.
func (o *orchestrator) publish(ev internal_publisher.Event) {
	if o.deps.Publisher == nil {
		return
	}
	o.startPublisher()
	ev.At = time.Now()
	done := make(chan struct{})
	o.queue <- publication{event: ev, done: done}
	<-done
}

func (o *orchestrator) startPublisher() {
	o.publishOnce.Do(func() {
		o.queue = make(chan publication, o.publishBuffer)
		go o.publishLoop()
	})
}

// publishLoop lives as long as the orchestrator.
func (o *orchestrator) publishLoop() {
	for p := range o.queue {
		o.deliver(p.event)
		if p.done != nil {
			close(p.done)
		}
	}
}

func (o *orchestrator) deliver(ev internal_publisher.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), o.publishTimeout)
	defer cancel()
	if err := o.deps.Publisher.Publish(ctx, ev); err != nil {
		o.logger.Warnf("session: publish transcript for %s: %v", ev.SessionID, err)
	}
}

func (o *orchestrator) RecorderFailed(sessionID string, err error) {
	o.mu.Lock()
	if sessionID != o.sessionID || (o.status != StatusRecording && o.status != StatusStarting) {
		o.mu.Unlock()
		return
	}
	o.status = StatusFailed
	o.errs = append(o.errs, err.Error())
	o.frozen = o.deps.Timer.Elapsed()
	handle := o.timerHandle
	o.mu.Unlock()

	// the timer never runs outside of recording
	o.deps.Timer.Stop(handle)
	o.logger.Errorf("session: %s failed, partial recording kept: %v", sessionID, err)
}

func (o *orchestrator) EndSession(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	switch o.status {
	case StatusRecording, StatusFailed:
	case StatusIdle:
		o.mu.Unlock()
		return nil, internal_type.ErrNoSession
	default:
		status := o.status
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: session is %s", internal_type.ErrNotRecording, status)
	}
	failed := o.status == StatusFailed
	o.status = StatusStopping
	sessionID := o.sessionID
	engine := o.engine
	sources := o.sources
	handle := o.timerHandle
	elapsed := o.frozen
	if !failed {
		elapsed = o.deps.Timer.Elapsed()
	}
	o.mu.Unlock()

	start := time.Now()
	var combined error

	// timer first, so it never outlives Recording even if a stop hangs
	combined = multierr.Append(combined, guard("timer", func() error {
		o.deps.Timer.Stop(handle)
		return nil
	}))

	var (
		wg        sync.WaitGroup
		recording *internal_recorder.FinalizedRecording
		recErr    error
		sttErr    error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		recErr = guard("recorder", func() error {
			var err error
			recording, err = o.deps.Recorder.Stop(ctx, sessionID)
			return err
		})
	}()
	if engine != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sttErr = guard("transcription", func() error { return engine.Stop(ctx) })
		}()
	}
	wg.Wait()
	combined = multierr.Append(combined, recErr)
	combined = multierr.Append(combined, sttErr)

	combined = multierr.Append(combined, guard("capture", func() error {
		internal_capture.ReleaseAll(sources)
		return nil
	}))

	transcript := o.finalTranscript(engine)
	if recording == nil {
		recording = o.deps.Recorder.Last()
	}

	o.mu.Lock()
	errs := append([]string(nil), o.errs...)
	for _, err := range multierr.Errors(combined) {
		errs = append(errs, err.Error())
	}
	result := &Result{
		SessionID:  sessionID,
		Recording:  recording,
		Transcript: transcript,
		Elapsed:    elapsed,
		Errors:     errs,
	}
	outcome := &internal_history.Outcome{
		Failed:           failed || combined != nil,
		TranscriptStatus: string(transcript.Status),
		Transcript:       transcript.Text,
		ElapsedSeconds:   elapsed,
		Error:            joinErrors(errs),
	}
	if recording != nil {
		outcome.PayloadBytes = int64(len(recording.Payload))
		outcome.Chunks = recording.Chunks
	}
	o.outcome = outcome
	o.transcript = transcript
	o.sources = nil
	o.frozen = 0
	o.mu.Unlock()

	o.publish(internal_publisher.Event{SessionID: sessionID, Final: true, Transcript: transcript, Elapsed: elapsed})
	o.completeHistory(sessionID, *outcome)

	o.mu.Lock()
	o.status = StatusIdle
	o.mu.Unlock()

	o.logger.Benchmark("session.EndSession", time.Since(start))
	if combined != nil {
		o.logger.Warnf("session: %s ended with errors: %v", sessionID, combined)
	} else {
		o.logger.Infof("session: %s ended after %ds", sessionID, elapsed)
	}
	return result, combined
}

func (o *orchestrator) finalTranscript(engine internal_type.TranscriptionEngine) internal_type.TranscriptState {
	if engine == nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.transcript
	}
	var state internal_type.TranscriptState
	if err := guard("transcription state", func() error {
		state = engine.State()
		return nil
	}); err != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.transcript
	}
	return state
}

func (o *orchestrator) completeHistory(sessionID string, outcome internal_history.Outcome) {
	if o.deps.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.deps.History.Complete(ctx, sessionID, outcome); err != nil {
		o.logger.Warnf("session: unable to complete history for %s: %v", sessionID, err)
	}
}

func (o *orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	snap := Snapshot{
		Status:     o.status,
		SessionID:  o.sessionID,
		Request:    o.request,
		Transcript: o.transcript,
		StartedAt:  o.startedAt,
		Errors:     append([]string(nil), o.errs...),
	}
	engine := o.engine
	frozen := o.frozen
	o.mu.Unlock()

	if engine != nil && snap.Transcript.Status != internal_type.TranscriptFailed {
		snap.Transcript = engine.State()
	}
	snap.Recording = o.deps.Recorder.Current()
	switch snap.Status {
	case StatusFailed:
		snap.Elapsed = frozen
	case StatusRecording, StatusStarting:
		snap.Elapsed = o.deps.Timer.Elapsed()
	}
	snap.ElapsedText = internal_timer.Format(snap.Elapsed)
	snap.Display = snap.Transcript.Display()
	return snap
}

func (o *orchestrator) elapsed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status == StatusFailed {
		return o.frozen
	}
	return o.deps.Timer.Elapsed()
}

func (o *orchestrator) transcriptMode() internal_type.TranscriptMode {
	if o.deps.Transcribers == nil {
		return ""
	}
	return o.deps.Transcribers.Mode()
}

func (o *orchestrator) Save(ctx context.Context) (string, error) {
	rec := o.deps.Recorder.Last()
	if rec == nil {
		return "", internal_type.ErrNothingToSave
	}
	return o.deps.Recorder.Save(ctx, rec)
}

func (o *orchestrator) LastRecording() *internal_recorder.FinalizedRecording {
	return o.deps.Recorder.Last()
}

func (o *orchestrator) clipEngine() (internal_type.ClipEngine, error) {
	o.mu.Lock()
	engine := o.engine
	o.mu.Unlock()
	if engine == nil {
		return nil, internal_type.ErrNoSession
	}
	clip, ok := engine.(internal_type.ClipEngine)
	if !ok {
		return nil, fmt.Errorf("%w: %s transcription has no clip", internal_type.ErrEngineUnsupported, engine.Mode())
	}
	return clip, nil
}

func (o *orchestrator) RetryTranscription(ctx context.Context) (internal_type.TranscriptState, error) {
	clip, err := o.clipEngine()
	if err != nil {
		return internal_type.TranscriptState{}, err
	}
	o.mu.Lock()
	if o.status != StatusIdle {
		status := o.status
		o.mu.Unlock()
		return clip.State(), fmt.Errorf("%w: session is %s", internal_type.ErrSessionActive, status)
	}
	sessionID := o.sessionID
	o.mu.Unlock()

	retryErr := clip.Resubmit(ctx)
	state := clip.State()

	o.mu.Lock()
	o.transcript = state
	var outcome *internal_history.Outcome
	if o.outcome != nil {
		updated := *o.outcome
		updated.TranscriptStatus = string(state.Status)
		updated.Transcript = state.Text
		o.outcome = &updated
		outcome = &updated
	}
	o.mu.Unlock()

	if retryErr != nil && !errors.Is(retryErr, internal_type.ErrUploadFailed) {
		return state, retryErr
	}
	o.publish(internal_publisher.Event{SessionID: sessionID, Final: true, Transcript: state})
	if outcome != nil {
		o.completeHistory(sessionID, *outcome)
	}
	return state, retryErr
}

func (o *orchestrator) Clip() ([]byte, error) {
	clip, err := o.clipEngine()
	if err != nil {
		return nil, err
	}
	data := clip.Clip()
	if len(data) == 0 {
		return nil, internal_type.ErrNothingToSave
	}
	return data, nil
}
