// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "sync"

type SourceKind string

const (
	SourceScreen SourceKind = "screen"
	SourceCamera SourceKind = "camera"
)

type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

type PermissionState string

const (
	PermissionPrompt  PermissionState = "prompt"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// InputSpec describes how an encoder opens a track: `-f Format [Options...] -i Device`.
type InputSpec struct {
	Format  string
	Device  string
	Options []string
}

// Track is a live handle to one media track of a captured device.
type Track interface {
	ID() string
	Kind() TrackKind
	Source() SourceKind
	Label() string
	Input() InputSpec
	// Stop releases the underlying device. Safe to call more than once.
	Stop()
	Stopped() bool
}

// CaptureSource groups the tracks acquired from one permission prompt.
type CaptureSource struct {
	Kind       SourceKind
	Tracks     []Track
	Permission PermissionState

	releaseOnce sync.Once
}

// Release stops every track of the source.
func (s *CaptureSource) Release() {
	if s == nil {
		return
	}
	s.releaseOnce.Do(func() {
		for _, t := range s.Tracks {
			t.Stop()
		}
	})
}

// CompositeStream is the ordered union of tracks handed to an encoder. It does
// not own its tracks and never stops them.
type CompositeStream struct {
	tracks []Track
}

func NewCompositeStream(tracks []Track) *CompositeStream {
	cp := make([]Track, len(tracks))
	copy(cp, tracks)
	return &CompositeStream{tracks: cp}
}

func (c *CompositeStream) Tracks() []Track {
	cp := make([]Track, len(c.tracks))
	copy(cp, c.tracks)
	return cp
}

func (c *CompositeStream) Len() int {
	return len(c.tracks)
}

func (c *CompositeStream) VideoTracks() []Track {
	return c.byKind(TrackVideo)
}

func (c *CompositeStream) AudioTracks() []Track {
	return c.byKind(TrackAudio)
}

// PreviewTrack returns the first camera video track, the self-view. Nil when no
// camera was captured.
func (c *CompositeStream) PreviewTrack() Track {
	for _, t := range c.tracks {
		if t.Kind() == TrackVideo && t.Source() == SourceCamera {
			return t
		}
	}
	return nil
}

func (c *CompositeStream) byKind(kind TrackKind) []Track {
	out := make([]Track, 0, len(c.tracks))
	for _, t := range c.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}
