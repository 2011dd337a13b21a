// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_platform "github.com/rapidaai/studio/api/studio-api/internal/platform"
	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/config"
)

type fakeProcess struct {
	done    chan struct{}
	stopped bool
}

func (p *fakeProcess) Stop(ctx context.Context) error {
	if !p.stopped {
		p.stopped = true
		close(p.done)
	}
	return nil
}
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Err() error            { return nil }
func (p *fakeProcess) Stopping() bool        { return p.stopped }

type fakeRunner struct {
	cmd  internal_platform.Command
	proc *fakeProcess
	err  error
}

func (r *fakeRunner) Start(ctx context.Context, cmd internal_platform.Command) (internal_platform.Process, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.cmd = cmd
	r.proc = &fakeProcess{done: make(chan struct{})}
	return r.proc, nil
}

func (r *fakeRunner) LookPath(file string) (string, error) { return file, nil }

func TestMicrophoneArgs(t *testing.T) {
	in := internal_type.InputSpec{Format: "alsa", Device: "default"}

	pcm, err := microphoneArgs(in, internal_type.AudioPCM)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-f", "alsa", "-i", "default", "-vn", "-ac", "1",
		"-ar", "16000", "-f", "s16le", "-acodec", "pcm_s16le", "pipe:1",
	}, pcm)

	mp3, err := microphoneArgs(in, internal_type.AudioMP3)
	require.NoError(t, err)
	assert.Contains(t, mp3, "libmp3lame")
	assert.Equal(t, "pipe:1", mp3[len(mp3)-1])

	_, err = microphoneArgs(in, "flac")
	assert.True(t, errors.Is(err, internal_type.ErrConfiguration))
}

func TestMicrophone_StartAndStop(t *testing.T) {
	runner := &fakeRunner{}
	defaults := PlatformDefaults{AudioFormat: "alsa", AudioDevice: "default"}
	mic := NewMicrophone(newTestLogger(t), config.CaptureConfig{FFmpegPath: "ffmpeg"}, defaults, runner)

	var got [][]byte
	stream, err := mic.Start(context.Background(), internal_type.AudioPCM, func(b []byte) { got = append(got, b) })
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg", runner.cmd.Path)

	runner.cmd.OnData([]byte{1, 2})
	assert.Len(t, got, 1)

	require.NoError(t, stream.Stop(context.Background()))
	<-stream.Done()
	assert.NoError(t, stream.Err())
}

func TestMicrophone_StartFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exec: ffmpeg: not found")}
	mic := NewMicrophone(newTestLogger(t), config.CaptureConfig{FFmpegPath: "ffmpeg"}, PlatformDefaults{AudioFormat: "alsa", AudioDevice: "default"}, runner)
	_, err := mic.Start(context.Background(), internal_type.AudioMP3, nil)
	assert.True(t, errors.Is(err, internal_type.ErrDeviceUnavailable))
}

func TestMicrophone_Available(t *testing.T) {
	m := NewMicrophone(newTestLogger(t), config.CaptureConfig{FFmpegPath: "ffmpeg"}, PlatformDefaults{}, &fakeRunner{}).(*microphone)
	assert.False(t, m.Available())

	m.input = internal_type.InputSpec{Format: "alsa", Device: "default"}
	m.lookPath = func(string) (string, error) { return "/usr/bin/ffmpeg", nil }
	assert.True(t, m.Available())
}
