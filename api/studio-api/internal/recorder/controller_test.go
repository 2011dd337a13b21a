// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-recorder"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	require.NoError(t, err)
	return logger
}

type fakeEncoder struct {
	mu        sync.Mutex
	onData    func([]byte)
	onFailure func(error)
	final     []byte
	startErr  error
	stopErr   error
	stops     int
}

func (f *fakeEncoder) Start(ctx context.Context, stream *internal_type.CompositeStream, onData func([]byte), onFailure func(error)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onData, f.onFailure = onData, onFailure
	return nil
}

func (f *fakeEncoder) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stops++
	final, onData := f.final, f.onData
	f.mu.Unlock()
	if len(final) > 0 {
		onData(final)
	}
	return f.stopErr
}

func (f *fakeEncoder) MimeType() string { return "video/webm" }

func (f *fakeEncoder) emit(b []byte) { f.onData(b) }

type memorySink struct {
	mu     sync.Mutex
	offers [][]byte
	names  []string
}

func (m *memorySink) Offer(ctx context.Context, name, mimeType string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers = append(m.offers, payload)
	m.names = append(m.names, name)
	return "memory://" + name, nil
}

type stubTrack struct {
	id     string
	kind   internal_type.TrackKind
	source internal_type.SourceKind
	input  internal_type.InputSpec
}

func (s *stubTrack) ID() string                       { return s.id }
func (s *stubTrack) Kind() internal_type.TrackKind    { return s.kind }
func (s *stubTrack) Source() internal_type.SourceKind { return s.source }
func (s *stubTrack) Label() string                    { return s.id }
func (s *stubTrack) Input() internal_type.InputSpec   { return s.input }
func (s *stubTrack) Stop()                            {}
func (s *stubTrack) Stopped() bool                    { return false }

func testStream() *internal_type.CompositeStream {
	return internal_type.NewCompositeStream([]internal_type.Track{
		&stubTrack{id: "screen", kind: internal_type.TrackVideo, source: internal_type.SourceScreen,
			input: internal_type.InputSpec{Format: "x11grab", Device: ":0", Options: []string{"-framerate", "30"}}},
		&stubTrack{id: "camera", kind: internal_type.TrackVideo, source: internal_type.SourceCamera,
			input: internal_type.InputSpec{Format: "v4l2", Device: "/dev/video0"}},
		&stubTrack{id: "mic", kind: internal_type.TrackAudio, source: internal_type.SourceCamera,
			input: internal_type.InputSpec{Format: "alsa", Device: "default"}},
	})
}

func newTestController(t *testing.T, enc *fakeEncoder, opts ...Option) (Controller, *memorySink) {
	t.Helper()
	sink := &memorySink{}
	return NewController(newTestLogger(t), func() internal_type.Encoder { return enc }, sink, opts...), sink
}

func TestController_StartTwiceFails(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeEncoder{})

	first, err := ctrl.Start(context.Background(), testStream())
	require.NoError(t, err)
	assert.Equal(t, StateRecording, first.State)

	_, err = ctrl.Start(context.Background(), testStream())
	assert.ErrorIs(t, err, internal_type.ErrAlreadyRecording)
	assert.Equal(t, first, ctrl.Current(), "failed start must not change the session")
}

func TestController_StopBeforeStart(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeEncoder{})
	_, err := ctrl.Stop(context.Background(), "")
	assert.ErrorIs(t, err, internal_type.ErrNotRecording)
}

func TestController_StopTwice(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeEncoder{})
	session, err := ctrl.Start(context.Background(), testStream())
	require.NoError(t, err)

	_, err = ctrl.Stop(context.Background(), session.ID)
	require.NoError(t, err)
	_, err = ctrl.Stop(context.Background(), session.ID)
	assert.ErrorIs(t, err, internal_type.ErrNotRecording)
}

func TestController_StopWrongSession(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeEncoder{})
	_, err := ctrl.Start(context.Background(), testStream())
	require.NoError(t, err)

	_, err = ctrl.Stop(context.Background(), "someone-else")
	assert.ErrorIs(t, err, internal_type.ErrNotRecording)
	assert.Equal(t, StateRecording, ctrl.Current().State)
}

func TestController_CollectsChunksAndFinalFlush(t *testing.T) {
	enc := &fakeEncoder{final: []byte("!")}
	ctrl, _ := newTestController(t, enc)
	session, err := ctrl.Start(context.Background(), testStream())
	require.NoError(t, err)

	buf := []byte("ab")
	enc.emit(buf)
	buf[0] = 'x' // chunks are copied on push
	enc.emit(nil)
	enc.emit([]byte{})
	enc.emit([]byte("cd"))

	assert.Equal(t, 2, ctrl.Current().Chunks)

	rec, err := ctrl.Stop(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd!"), rec.Payload)
	assert.Equal(t, 3, rec.Chunks)
	assert.Equal(t, "video/webm", rec.MimeType)
	assert.Equal(t, DefaultFileName, rec.FileName)
	assert.False(t, rec.Partial)
	assert.Equal(t, StateIdle, ctrl.Current().State)
	assert.Same(t, rec, ctrl.Last())

	// late chunks from the old encoder are ignored
	_, err = ctrl.Start(context.Background(), testStream())
	require.NoError(t, err)
	assert.Nil(t, ctrl.Last())
}

func TestController_SaveTwiceIsIdempotent(t *testing.T) {
	enc := &fakeEncoder{}
	ctrl, sink := newTestController(t, enc)
	session, err := ctrl.Start(context.Background(), testStream())
	require.NoError(t, err)
	enc.emit([]byte("webm-bytes"))

	rec, err := ctrl.Stop(context.Background(), session.ID)
	require.NoError(t, err)

	_, err = ctrl.Save(context.Background(), rec)
	require.NoError(t, err)
	_, err = ctrl.Save(context.Background(), rec)
	require.NoError(t, err)

	require.Len(t, sink.offers, 2)
	assert.Equal(t, sink.offers[0], sink.offers[1])
	assert.Equal(t, []string{"recording.webm", "recording.webm"}, sink.names)

	sink.offers[0][0] = 'X'
	assert.NotEqual(t, sink.offers[0], sink.offers[1], "each offer gets its own copy")
	assert.Equal(t, StateIdle, ctrl.Current().State)
}

func TestController_SaveEmpty(t *testing.T) {
	ctrl, sink := newTestController(t, &fakeEncoder{})
	session, err := ctrl.Start(context.Background(), testStream())
	require.NoError(t, err)
	rec, err := ctrl.Stop(context.Background(), session.ID)
	require.NoError(t, err)

	_, err = ctrl.Save(context.Background(), rec)
	assert.ErrorIs(t, err, internal_type.ErrNothingToSave)
	_, err = ctrl.Save(context.Background(), nil)
	assert.ErrorIs(t, err, internal_type.ErrNothingToSave)
	assert.Empty(t, sink.offers)
}

func TestController_DeviceDisconnectSalvagesChunks(t *testing.T) {
	enc := &fakeEncoder{}
	var failedID string
	var failedErr error
	ctrl, _ := newTestController(t, enc, WithFailureHandler(func(id string, err error) {
		failedID, failedErr = id, err
	}))
	session, err := ctrl.Start(context.Background(), testStream())
	require.NoError(t, err)

	enc.emit([]byte("partial"))
	enc.onFailure(errors.New("v4l2: no such device"))

	assert.Equal(t, StateFailed, ctrl.Current().State)
	assert.Equal(t, session.ID, failedID)
	assert.ErrorIs(t, failedErr, internal_type.ErrDeviceDisconnected)

	_, err = ctrl.Start(context.Background(), testStream())
	assert.ErrorIs(t, err, internal_type.ErrAlreadyRecording)

	rec, err := ctrl.Stop(context.Background(), session.ID)
	assert.ErrorIs(t, err, internal_type.ErrDeviceDisconnected)
	require.NotNil(t, rec)
	assert.True(t, rec.Partial)
	assert.Equal(t, []byte("partial"), rec.Payload)
	assert.Equal(t, StateIdle, ctrl.Current().State)
}

func TestController_StartFailureLeavesIdle(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeEncoder{startErr: errors.New("ffmpeg missing")})
	_, err := ctrl.Start(context.Background(), testStream())
	require.Error(t, err)
	assert.Equal(t, StateIdle, ctrl.Current().State)

	_, err = ctrl.Start(context.Background(), nil)
	assert.ErrorIs(t, err, internal_type.ErrConfiguration)
}

func TestController_Clear(t *testing.T) {
	enc := &fakeEncoder{}
	ctrl, _ := newTestController(t, enc)
	session, err := ctrl.Start(context.Background(), testStream())
	require.NoError(t, err)

	ctrl.Clear()
	assert.Equal(t, StateRecording, ctrl.Current().State, "clear never drops an active session")

	enc.emit([]byte("x"))
	_, err = ctrl.Stop(context.Background(), session.ID)
	require.NoError(t, err)

	ctrl.Clear()
	assert.Nil(t, ctrl.Last())
	assert.Equal(t, "", ctrl.Current().ID)
}

func TestDirectorySink_DeduplicatesNames(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirectorySink(newTestLogger(t), dir)

	first, err := sink.Offer(context.Background(), "recording.webm", "video/webm", []byte("one"))
	require.NoError(t, err)
	second, err := sink.Offer(context.Background(), "recording.webm", "video/webm", []byte("two"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "recording.webm"), first)
	assert.Equal(t, filepath.Join(dir, "recording (1).webm"), second)

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

// shortFile accepts the first write partially and then fails, like a full disk.
type shortFile struct {
	f *os.File
}

func (s *shortFile) Write(b []byte) (int, error) {
	n, _ := s.f.Write(b[:len(b)/2])
	return n, errors.New("no space left on device")
}

func (s *shortFile) Close() error { return s.f.Close() }

func TestDirectorySink_RemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirectorySink(newTestLogger(t), dir).(*directorySink)
	sink.create = func(path string) (io.WriteCloser, error) {
		f, err := createExclusive(path)
		if err != nil {
			return nil, err
		}
		return &shortFile{f: f.(*os.File)}, nil
	}

	_, err := sink.Offer(context.Background(), "recording.webm", "video/webm", []byte("webm-bytes"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "recording.webm"))

	sink.create = createExclusive
	path, err := sink.Offer(context.Background(), "recording.webm", "video/webm", []byte("webm-bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "recording.webm"), path, "the failed attempt does not take the name")
}

func TestDirectorySink_RemovesFileWhenCloseFails(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirectorySink(newTestLogger(t), dir).(*directorySink)
	sink.create = func(path string) (io.WriteCloser, error) {
		f, err := createExclusive(path)
		if err != nil {
			return nil, err
		}
		return &closeFailFile{File: f.(*os.File)}, nil
	}

	_, err := sink.Offer(context.Background(), "recording.webm", "video/webm", []byte("webm-bytes"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "recording.webm"))
}

type closeFailFile struct{ *os.File }

func (c *closeFailFile) Close() error {
	_ = c.File.Close()
	return errors.New("input/output error")
}

func TestBuildEncoderArgs(t *testing.T) {
	args, err := buildEncoderArgs(testStream(), 24)
	require.NoError(t, err)

	assert.Equal(t, []string{"-hide_banner", "-loglevel", "error",
		"-thread_queue_size", "512", "-f", "x11grab", "-framerate", "30", "-i", ":0",
		"-thread_queue_size", "512", "-f", "v4l2", "-i", "/dev/video0",
		"-thread_queue_size", "512", "-f", "alsa", "-i", "default",
	}, args[:23])
	assert.Contains(t, args, "[0:v]scale=1280:-2[bg];[1:v]scale=320:-2[pip];[bg][pip]overlay=W-w-24:H-h-24[v]")
	assert.Contains(t, args, "2:a")
	assert.Contains(t, args, "libopus")
	assert.Equal(t, "pipe:1", args[len(args)-1])

	screenOnly := internal_type.NewCompositeStream(testStream().Tracks()[:1])
	args, err = buildEncoderArgs(screenOnly, 0)
	require.NoError(t, err)
	assert.Contains(t, args, "0:v")
	assert.NotContains(t, args, "-filter_complex")
	assert.NotContains(t, args, "libopus")

	_, err = buildEncoderArgs(internal_type.NewCompositeStream(nil), 30)
	assert.ErrorIs(t, err, internal_type.ErrConfiguration)
}
