// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"fmt"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
)

// Compose concatenates the tracks of sources in order, so the screen track is
// always the first video track. The stream shares the tracks and never stops them.
func Compose(sources []*internal_type.CaptureSource) (*internal_type.CompositeStream, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: compose needs at least one source", internal_type.ErrConfiguration)
	}
	var tracks []internal_type.Track
	for _, src := range sources {
		if src == nil {
			continue
		}
		tracks = append(tracks, src.Tracks...)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: sources carry no tracks", internal_type.ErrConfiguration)
	}
	return internal_type.NewCompositeStream(tracks), nil
}
