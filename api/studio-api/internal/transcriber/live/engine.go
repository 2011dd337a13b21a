// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_transcriber_live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/pkg/commons"
	"github.com/rapidaai/studio/pkg/utils"
)

type Option func(*liveEngine)

func WithDialer(d Dialer) Option {
	return func(e *liveEngine) { e.dialer = d }
}

// WithRestartDelay waits before reconnecting after the recognizer ends a session.
func WithRestartDelay(d time.Duration) Option {
	return func(e *liveEngine) { e.restartDelay = d }
}

func WithMaxRestartFailures(n int) Option {
	return func(e *liveEngine) { e.state = NewState(n) }
}

type liveEngine struct {
	logger       commons.Logger
	option       *recognizerOption
	dialer       Dialer
	mic          internal_type.AudioCapture
	listener     internal_type.TranscriptListener
	restartDelay time.Duration

	// notifyMu serializes transitions so listeners see states in order.
	notifyMu sync.Mutex

	mu        sync.Mutex
	state     State
	updatedAt time.Time
	conn      Conn
	audio     internal_type.AudioStream
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewLiveEngine builds a continuous recognizer fed by the microphone. It fails
// with ErrEngineUnsupported when no recognizer or microphone is usable.
func NewLiveEngine(logger commons.Logger, endpoint string, opts utils.Option, mic internal_type.AudioCapture, listener internal_type.TranscriptListener, options ...Option) (internal_type.TranscriptionEngine, error) {
	if err := Supported(endpoint, mic); err != nil {
		return nil, err
	}
	option, err := newRecognizerOption(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internal_type.ErrEngineUnsupported, err)
	}
	e := &liveEngine{
		logger:       logger,
		option:       option,
		dialer:       NewWebsocketDialer(),
		mic:          mic,
		listener:     listener,
		restartDelay: 250 * time.Millisecond,
		state:        NewState(3),
		runCtx:       context.Background(),
	}
	for _, o := range options {
		o(e)
	}
	return e, nil
}

// Supported is the capability check behind NewLiveEngine. It returns nil when
// a live engine can be built for endpoint and mic.
func Supported(endpoint string, mic internal_type.AudioCapture) error {
	if _, err := newRecognizerOption(endpoint, nil); err != nil {
		return fmt.Errorf("%w: %v", internal_type.ErrEngineUnsupported, err)
	}
	if mic == nil || !mic.Available() {
		return fmt.Errorf("%w: live-stt: microphone capture unavailable", internal_type.ErrEngineUnsupported)
	}
	return nil
}

func (e *liveEngine) Mode() internal_type.TranscriptMode {
	return internal_type.TranscriptLive
}

func (e *liveEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state.Active {
		e.mu.Unlock()
		return internal_type.ErrAlreadyRecording
	}
	runCtx, cancel := context.WithCancel(context.Background())
	e.runCtx, e.cancel = runCtx, cancel
	e.mu.Unlock()

	state, action := e.apply(Event{Kind: EventStart}, nil)
	if action != ActionConnect {
		return nil
	}
	gen := state.Generation

	audio, err := e.mic.Start(runCtx, internal_type.AudioPCM, e.pushAudio)
	if err != nil {
		e.apply(Event{Kind: EventError, Generation: gen, Fatal: true, Err: err.Error()}, nil)
		cancel()
		return fmt.Errorf("live-stt: microphone: %w", err)
	}
	e.mu.Lock()
	e.audio = audio
	e.mu.Unlock()

	conn, err := e.dialer.Dial(ctx, e.option.GetConnectionString())
	if err != nil {
		e.apply(Event{Kind: EventError, Generation: gen, Fatal: true, Err: err.Error()}, nil)
		cancel()
		return fmt.Errorf("%w: live-stt: %v", internal_type.ErrEngineUnsupported, err)
	}
	e.apply(Event{Kind: EventConnected, Generation: gen}, conn)

	e.wg.Add(1)
	go e.watchMicrophone(runCtx, audio)
	e.logger.Infof("live-stt: listening")
	return nil
}

// apply runs one transition and its side effects. attach is the connection
// produced by a successful dial and only accompanies EventConnected.
func (e *liveEngine) apply(ev Event, attach Conn) (State, Action) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()
	prev := e.state
	next, action := Transition(prev, ev)
	e.state = next
	changed := visibleChange(prev, next)
	if changed {
		e.updatedAt = time.Now()
	}
	snapshot := e.snapshotLocked()

	var closeConn Conn
	var stopAudio internal_type.AudioStream
	startReader := false
	if ev.Kind == EventConnected {
		if action == ActionClose {
			closeConn = attach
		} else {
			e.conn = attach
			startReader = true
		}
	} else if action == ActionClose || action == ActionRestart || action == ActionFail {
		closeConn, e.conn = e.conn, nil
	}
	if action == ActionFail {
		stopAudio, e.audio = e.audio, nil
	}
	if startReader || action == ActionRestart {
		e.wg.Add(1)
	}
	runCtx := e.runCtx
	e.mu.Unlock()

	if closeConn != nil {
		_ = closeConn.Close()
	}
	if stopAudio != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = stopAudio.Stop(ctx)
		}()
	}
	switch {
	case startReader:
		go e.readLoop(next.Generation, attach)
	case action == ActionRestart:
		e.logger.Debugf("live-stt: recognizer ended, restart attempt %d", next.Attempts)
		go e.restart(runCtx, next.Generation)
	case action == ActionFail:
		e.logger.Errorf("live-stt: recognition stopped: %s", next.Err)
	}
	if changed && e.listener != nil {
		e.listener(snapshot)
	}
	return next, action
}

func visibleChange(a, b State) bool {
	return a.Status != b.Status || a.Text != b.Text || a.Attempts != b.Attempts ||
		a.Err != b.Err || a.Confidence != b.Confidence
}

func (e *liveEngine) readLoop(gen uint64, conn Conn) {
	defer e.wg.Done()
	for {
		msg, err := conn.Read()
		if err != nil {
			e.apply(Event{Kind: EventEnd, Generation: gen}, nil)
			return
		}
		switch msg.Type {
		case MessageResult:
			e.apply(Event{Kind: EventResult, Generation: gen, Text: msg.Text, Final: msg.IsFinal, Confidence: msg.Confidence}, nil)
		case MessageError:
			reason := msg.Error
			if reason == "" {
				reason = msg.Code
			}
			e.logger.Warnf("live-stt: recognizer error %s: %s", msg.Code, reason)
			e.apply(Event{Kind: EventError, Generation: gen, Err: reason, Fatal: IsFatal(msg.Code)}, nil)
		case MessageEnd:
			e.apply(Event{Kind: EventEnd, Generation: gen}, nil)
			return
		}
	}
}

func (e *liveEngine) restart(ctx context.Context, gen uint64) {
	defer e.wg.Done()
	if e.restartDelay > 0 {
		select {
		case <-time.After(e.restartDelay):
		case <-ctx.Done():
			return
		}
	}

	e.mu.Lock()
	skip := !e.state.Active || e.state.Generation != gen || e.state.Status == internal_type.TranscriptListening
	e.mu.Unlock()
	if skip {
		e.logger.Debugf("live-stt: restart %d skipped", gen)
		return
	}

	conn, err := e.dialer.Dial(ctx, e.option.GetConnectionString())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Warnf("live-stt: reconnect failed: %v", err)
		e.apply(Event{Kind: EventRestartFailed, Generation: gen, Err: err.Error()}, nil)
		return
	}
	e.apply(Event{Kind: EventConnected, Generation: gen}, conn)
}

// watchMicrophone fails the session when the capture process dies.
func (e *liveEngine) watchMicrophone(ctx context.Context, audio internal_type.AudioStream) {
	defer e.wg.Done()
	select {
	case <-ctx.Done():
	case <-audio.Done():
		if err := audio.Err(); err != nil {
			e.mu.Lock()
			gen := e.state.Generation
			e.mu.Unlock()
			e.apply(Event{Kind: EventError, Generation: gen, Fatal: true, Err: "audio-capture: " + err.Error()}, nil)
		}
	}
}

func (e *liveEngine) pushAudio(b []byte) {
	e.mu.Lock()
	conn := e.conn
	listening := e.state.Active && e.state.Status == internal_type.TranscriptListening
	e.mu.Unlock()
	if conn == nil || !listening {
		return
	}
	if err := conn.WriteAudio(b); err != nil {
		e.logger.Debugf("live-stt: dropping audio frame: %v", err)
	}
}

func (e *liveEngine) Stop(ctx context.Context) error {
	e.apply(Event{Kind: EventStop}, nil)

	e.mu.Lock()
	audio, cancel := e.audio, e.cancel
	e.audio, e.cancel = nil, nil
	e.mu.Unlock()

	var err error
	if audio != nil {
		err = multierr.Append(err, audio.Stop(ctx))
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}
	if err != nil {
		return fmt.Errorf("live-stt: stop: %w", err)
	}
	return nil
}

func (e *liveEngine) State() internal_type.TranscriptState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *liveEngine) snapshotLocked() internal_type.TranscriptState {
	return internal_type.TranscriptState{
		Mode:       internal_type.TranscriptLive,
		Status:     e.state.Status,
		Text:       e.state.Text,
		Attempts:   e.state.Attempts,
		Confidence: e.state.Confidence,
		Error:      e.state.Err,
		UpdatedAt:  e.updatedAt,
	}
}
