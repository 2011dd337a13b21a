// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_transcriber_live

import (
	"strings"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
)

type EventKind string

const (
	EventStart         EventKind = "start"
	EventConnected     EventKind = "connected"
	EventResult        EventKind = "result"
	EventEnd           EventKind = "end"
	EventError         EventKind = "error"
	EventRestartFailed EventKind = "restart_failed"
	EventStop          EventKind = "stop"
)

// Event is a named recognizer callback. Generation ties connection scoped
// events to the connection that produced them.
type Event struct {
	Kind       EventKind
	Generation uint64
	Text       string
	Final      bool
	Confidence float64
	Err        string
	Fatal      bool
}

type Action string

const (
	ActionNone    Action = "none"
	ActionConnect Action = "connect"
	ActionRestart Action = "restart"
	ActionClose   Action = "close"
	ActionFail    Action = "fail"
)

// State is everything the live engine knows about its transcript.
type State struct {
	Status internal_type.TranscriptStatus
	// Active is true between start and stop. Restarts only happen while active.
	Active     bool
	Generation uint64
	Segments   []string
	Interim    string
	Text       string
	Confidence float64
	// Attempts counts automatic restarts in this session.
	Attempts int
	// RestartFailures counts consecutive failed reconnects.
	RestartFailures    int
	MaxRestartFailures int
	Err                string
}

func NewState(maxRestartFailures int) State {
	if maxRestartFailures < 1 {
		maxRestartFailures = 1
	}
	return State{Status: internal_type.TranscriptIdle, MaxRestartFailures: maxRestartFailures}
}

// Transition applies one event. It is pure: the returned action tells the
// engine which side effect to run.
func Transition(s State, e Event) (State, Action) {
	switch e.Kind {
	case EventStart:
		if s.Active {
			return s, ActionNone
		}
		next := NewState(s.MaxRestartFailures)
		next.Active = true
		next.Status = internal_type.TranscriptListening
		next.Generation = s.Generation + 1
		return next, ActionConnect

	case EventStop:
		if !s.Active {
			return s, ActionNone
		}
		s = foldInterim(s)
		s.Active = false
		s.Generation++
		if s.Status != internal_type.TranscriptFailed {
			s.Status = internal_type.TranscriptIdle
		}
		return s, ActionClose
	}

	if e.Generation != s.Generation {
		if e.Kind == EventConnected {
			return s, ActionClose
		}
		return s, ActionNone
	}
	if !s.Active {
		return s, ActionNone
	}

	switch e.Kind {
	case EventConnected:
		s.Status = internal_type.TranscriptListening
		s.RestartFailures = 0
		return s, ActionNone

	case EventResult:
		if e.Final {
			s.Segments = append(append([]string(nil), s.Segments...), e.Text)
			s.Interim = ""
		} else {
			s.Interim = e.Text
		}
		if e.Confidence > 0 {
			s.Confidence = e.Confidence
		}
		s.Text = joinTranscript(s.Segments, s.Interim)
		return s, ActionNone

	case EventEnd:
		if s.Status != internal_type.TranscriptListening {
			return s, ActionNone
		}
		s = foldInterim(s)
		s.Status = internal_type.TranscriptRestarting
		s.Generation++
		s.Attempts++
		return s, ActionRestart

	case EventError:
		if !e.Fatal {
			s.Err = e.Err
			return s, ActionNone
		}
		s = foldInterim(s)
		s.Status = internal_type.TranscriptFailed
		s.Active = false
		s.Err = e.Err
		s.Generation++
		return s, ActionFail

	case EventRestartFailed:
		if s.Status != internal_type.TranscriptRestarting {
			return s, ActionNone
		}
		s.RestartFailures++
		s.Err = e.Err
		if s.RestartFailures >= s.MaxRestartFailures {
			s.Status = internal_type.TranscriptFailed
			s.Active = false
			s.Generation++
			return s, ActionFail
		}
		s.Generation++
		s.Attempts++
		return s, ActionRestart
	}
	return s, ActionNone
}

// foldInterim keeps words recognized by a connection that is going away.
func foldInterim(s State) State {
	if strings.TrimSpace(s.Interim) == "" {
		s.Interim = ""
		return s
	}
	s.Segments = append(append([]string(nil), s.Segments...), s.Interim)
	s.Interim = ""
	s.Text = joinTranscript(s.Segments, "")
	return s
}

func joinTranscript(segments []string, interim string) string {
	parts := make([]string, 0, len(segments)+1)
	for _, seg := range segments {
		if seg = strings.TrimSpace(seg); seg != "" {
			parts = append(parts, seg)
		}
	}
	if interim = strings.TrimSpace(interim); interim != "" {
		parts = append(parts, interim)
	}
	return strings.Join(parts, " ")
}
