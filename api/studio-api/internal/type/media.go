// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "context"

// Encoder turns a composite stream into a single container stream. Each piece
// of encoded output is delivered to onData; onFailure fires once if the
// encoder dies before Stop is called.
type Encoder interface {
	Start(ctx context.Context, stream *CompositeStream, onData func([]byte), onFailure func(error)) error
	// Stop requests the final flush and blocks until every chunk has been delivered.
	Stop(ctx context.Context) error
	MimeType() string
}

type AudioFormat string

const (
	// AudioPCM is 16 kHz mono signed 16-bit little endian.
	AudioPCM AudioFormat = "pcm_s16le"
	AudioMP3 AudioFormat = "mp3"
)

// AudioCapture opens the microphone independently of the recording encoder.
type AudioCapture interface {
	Start(ctx context.Context, format AudioFormat, onData func([]byte)) (AudioStream, error)
	Available() bool
}

type AudioStream interface {
	// Stop ends the capture after flushing buffered audio.
	Stop(ctx context.Context) error
	// Done is closed when the capture process has exited.
	Done() <-chan struct{}
	Err() error
}
