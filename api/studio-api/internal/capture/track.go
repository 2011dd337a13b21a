// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"sync/atomic"

	"github.com/google/uuid"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
)

type deviceTrack struct {
	id      string
	kind    internal_type.TrackKind
	source  internal_type.SourceKind
	label   string
	input   internal_type.InputSpec
	onStop  func()
	stopped atomic.Bool
}

func newDeviceTrack(kind internal_type.TrackKind, source internal_type.SourceKind, label string, input internal_type.InputSpec, onStop func()) *deviceTrack {
	return &deviceTrack{
		id:     uuid.NewString(),
		kind:   kind,
		source: source,
		label:  label,
		input:  input,
		onStop: onStop,
	}
}

func (t *deviceTrack) ID() string                       { return t.id }
func (t *deviceTrack) Kind() internal_type.TrackKind    { return t.kind }
func (t *deviceTrack) Source() internal_type.SourceKind { return t.source }
func (t *deviceTrack) Label() string                    { return t.label }
func (t *deviceTrack) Input() internal_type.InputSpec   { return t.input }
func (t *deviceTrack) Stopped() bool                    { return t.stopped.Load() }

func (t *deviceTrack) Stop() {
	if !t.stopped.CompareAndSwap(false, true) {
		return
	}
	if t.onStop != nil {
		t.onStop()
	}
}
