// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_transcriber_live

import (
	"testing"

	"github.com/stretchr/testify/assert"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
)

func started(t *testing.T) State {
	t.Helper()
	s, action := Transition(NewState(3), Event{Kind: EventStart})
	assert.Equal(t, ActionConnect, action)
	s, action = Transition(s, Event{Kind: EventConnected, Generation: s.Generation})
	assert.Equal(t, ActionNone, action)
	return s
}

func TestTransition_StartAndResults(t *testing.T) {
	s := started(t)
	assert.Equal(t, internal_type.TranscriptListening, s.Status)
	assert.True(t, s.Active)
	assert.Equal(t, uint64(1), s.Generation)

	steps := []struct {
		text  string
		final bool
		want  string
	}{
		{"hel", false, "hel"},
		{"hello", true, "hello"},
		{"wor", false, "hello wor"},
		{"world", false, "hello world"},
		{"world", true, "hello world"},
	}
	for _, step := range steps {
		s, _ = Transition(s, Event{Kind: EventResult, Generation: s.Generation, Text: step.text, Final: step.final})
		assert.Equal(t, step.want, s.Text)
	}
}

func TestTransition_StartWhileActive(t *testing.T) {
	s := started(t)
	next, action := Transition(s, Event{Kind: EventStart})
	assert.Equal(t, ActionNone, action)
	assert.Equal(t, s, next)
}

func TestTransition_EndRestartsOnce(t *testing.T) {
	s := started(t)
	s, _ = Transition(s, Event{Kind: EventResult, Generation: 1, Text: "partial words"})

	first, action := Transition(s, Event{Kind: EventEnd, Generation: 1})
	assert.Equal(t, ActionRestart, action)
	assert.Equal(t, internal_type.TranscriptRestarting, first.Status)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, "partial words", first.Text, "interim text survives the restart")
	assert.Empty(t, first.Interim)

	// a second rapid end from the same connection is stale
	second, action := Transition(first, Event{Kind: EventEnd, Generation: 1})
	assert.Equal(t, ActionNone, action)
	assert.Equal(t, first, second)

	// an end for the restart in flight does not start another one
	third, action := Transition(second, Event{Kind: EventEnd, Generation: second.Generation})
	assert.Equal(t, ActionNone, action)
	assert.Equal(t, 1, third.Attempts)

	resumed, action := Transition(third, Event{Kind: EventConnected, Generation: third.Generation})
	assert.Equal(t, ActionNone, action)
	assert.Equal(t, internal_type.TranscriptListening, resumed.Status)

	resumed, _ = Transition(resumed, Event{Kind: EventResult, Generation: resumed.Generation, Text: "more", Final: true})
	assert.Equal(t, "partial words more", resumed.Text)
}

func TestTransition_StopSuppressesRestart(t *testing.T) {
	s := started(t)
	s, action := Transition(s, Event{Kind: EventStop})
	assert.Equal(t, ActionClose, action)
	assert.Equal(t, internal_type.TranscriptIdle, s.Status)
	assert.False(t, s.Active)

	for _, gen := range []uint64{1, s.Generation} {
		next, action := Transition(s, Event{Kind: EventEnd, Generation: gen})
		assert.Equal(t, ActionNone, action)
		assert.Equal(t, s, next)
	}

	next, action := Transition(s, Event{Kind: EventStop})
	assert.Equal(t, ActionNone, action)
	assert.Equal(t, s, next)
}

func TestTransition_StaleConnectionIsClosed(t *testing.T) {
	s := started(t)
	s, _ = Transition(s, Event{Kind: EventStop})
	_, action := Transition(s, Event{Kind: EventConnected, Generation: 1})
	assert.Equal(t, ActionClose, action)
}

func TestTransition_FatalErrorReportedOnce(t *testing.T) {
	s := started(t)
	s, _ = Transition(s, Event{Kind: EventResult, Generation: 1, Text: "kept", Final: true})

	failed, action := Transition(s, Event{Kind: EventError, Generation: 1, Err: "not-allowed", Fatal: true})
	assert.Equal(t, ActionFail, action)
	assert.Equal(t, internal_type.TranscriptFailed, failed.Status)
	assert.Equal(t, "kept", failed.Text)
	assert.Equal(t, "not-allowed", failed.Err)

	again, action := Transition(failed, Event{Kind: EventError, Generation: failed.Generation, Err: "again", Fatal: true})
	assert.Equal(t, ActionNone, action)
	assert.Equal(t, failed, again)

	_, action = Transition(failed, Event{Kind: EventEnd, Generation: failed.Generation})
	assert.Equal(t, ActionNone, action)

	stopped, action := Transition(failed, Event{Kind: EventStop})
	assert.Equal(t, ActionNone, action)
	assert.Equal(t, internal_type.TranscriptFailed, stopped.Status)
}

func TestTransition_NonFatalErrorKeepsListening(t *testing.T) {
	s := started(t)
	next, action := Transition(s, Event{Kind: EventError, Generation: 1, Err: "no-speech"})
	assert.Equal(t, ActionNone, action)
	assert.Equal(t, internal_type.TranscriptListening, next.Status)
	assert.Equal(t, "no-speech", next.Err)
}

func TestTransition_RestartFailuresAreBounded(t *testing.T) {
	s := started(t)
	s, action := Transition(s, Event{Kind: EventEnd, Generation: 1})
	assert.Equal(t, ActionRestart, action)

	for i := 1; i < 3; i++ {
		s, action = Transition(s, Event{Kind: EventRestartFailed, Generation: s.Generation, Err: "refused"})
		assert.Equal(t, ActionRestart, action, "failure %d", i)
		assert.Equal(t, i, s.RestartFailures)
	}
	s, action = Transition(s, Event{Kind: EventRestartFailed, Generation: s.Generation, Err: "refused"})
	assert.Equal(t, ActionFail, action)
	assert.Equal(t, internal_type.TranscriptFailed, s.Status)
	assert.False(t, s.Active)
}

func TestTransition_ConnectedResetsFailures(t *testing.T) {
	s := started(t)
	s, _ = Transition(s, Event{Kind: EventEnd, Generation: 1})
	s, _ = Transition(s, Event{Kind: EventRestartFailed, Generation: s.Generation, Err: "refused"})
	assert.Equal(t, 1, s.RestartFailures)
	s, _ = Transition(s, Event{Kind: EventConnected, Generation: s.Generation})
	assert.Equal(t, 0, s.RestartFailures)
	assert.Equal(t, internal_type.TranscriptListening, s.Status)
}
