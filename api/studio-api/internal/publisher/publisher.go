// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_publisher

import (
	"context"
	"time"

	"go.uber.org/multierr"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
)

// Event is one transcript change of a session. Final marks the transcript
// handed to downstream consumers when the session ends.
type Event struct {
	SessionID  string                        `json:"sessionId"`
	Final      bool                          `json:"final"`
	Transcript internal_type.TranscriptState `json:"transcript"`
	Elapsed    int                           `json:"elapsedSeconds"`
	At         time.Time                     `json:"at"`
}

// Publisher fans transcript events out to readers. The active engine is the
// only writer.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type multiPublisher []Publisher

// Multi publishes to every publisher and returns all of their errors combined.
func Multi(publishers ...Publisher) Publisher {
	out := make(multiPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m multiPublisher) Publish(ctx context.Context, ev Event) error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, p.Publish(ctx, ev))
	}
	return err
}
