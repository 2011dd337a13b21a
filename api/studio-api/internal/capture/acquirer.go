// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"context"
	"fmt"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/pkg/commons"
)

// Request selects which permission prompts an acquisition walks through.
type Request struct {
	Screen bool
	Camera bool
	Audio  bool
}

func (r Request) Empty() bool {
	return !r.Screen && !r.Camera && !r.Audio
}

// DeviceProvider opens devices. Screen and user media are separate prompts.
type DeviceProvider interface {
	Screen(ctx context.Context) (*internal_type.CaptureSource, error)
	UserMedia(ctx context.Context, camera, audio bool) (*internal_type.CaptureSource, error)
}

type Acquirer interface {
	// Acquire returns sources in acquisition order: screen first, then camera and microphone.
	// On failure nothing stays acquired.
	Acquire(ctx context.Context, req Request) ([]*internal_type.CaptureSource, error)
}

type acquirer struct {
	logger   commons.Logger
	provider DeviceProvider
}

func NewAcquirer(logger commons.Logger, provider DeviceProvider) Acquirer {
	return &acquirer{logger: logger, provider: provider}
}

func (a *acquirer) Acquire(ctx context.Context, req Request) ([]*internal_type.CaptureSource, error) {
	if req.Empty() {
		return nil, fmt.Errorf("%w: no capture source requested", internal_type.ErrConfiguration)
	}

	acquired := make([]*internal_type.CaptureSource, 0, 2)
	rollback := func() {
		for _, src := range acquired {
			src.Release()
		}
	}

	if req.Screen {
		src, err := a.provider.Screen(ctx)
		if err != nil {
			a.logger.Warnf("capture: screen acquisition failed: %v", err)
			return nil, fmt.Errorf("screen: %w", err)
		}
		acquired = append(acquired, src)
	}

	if req.Camera || req.Audio {
		if err := ctx.Err(); err != nil {
			rollback()
			return nil, err
		}
		src, err := a.provider.UserMedia(ctx, req.Camera, req.Audio)
		if err != nil {
			a.logger.Warnf("capture: user media acquisition failed, releasing %d source(s): %v", len(acquired), err)
			rollback()
			return nil, fmt.Errorf("user media: %w", err)
		}
		acquired = append(acquired, src)
	}

	a.logger.Debugf("capture: acquired %d source(s)", len(acquired))
	return acquired, nil
}

// ReleaseAll stops every track of every source.
func ReleaseAll(sources []*internal_type.CaptureSource) {
	for _, src := range sources {
		src.Release()
	}
}
