// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
)

// PlatformDefaults are the ffmpeg input formats and devices for one OS.
type PlatformDefaults struct {
	ScreenFormat string
	ScreenDevice string
	CameraFormat string
	CameraDevice string
	AudioFormat  string
	AudioDevice  string
	// AudioProbe is the path opened to check microphone access, empty to skip.
	AudioProbe string
}

func DefaultsFor(goos string, getenv func(string) string) PlatformDefaults {
	switch goos {
	case "darwin":
		return PlatformDefaults{
			ScreenFormat: "avfoundation", ScreenDevice: "1:none",
			CameraFormat: "avfoundation", CameraDevice: "0:none",
			AudioFormat: "avfoundation", AudioDevice: ":0",
		}
	case "windows":
		return PlatformDefaults{
			ScreenFormat: "gdigrab", ScreenDevice: "desktop",
			CameraFormat: "dshow", CameraDevice: "video=Integrated Camera",
			AudioFormat: "dshow", AudioDevice: "audio=Microphone",
		}
	default:
		return PlatformDefaults{
			ScreenFormat: "x11grab", ScreenDevice: getenv("DISPLAY"),
			CameraFormat: "v4l2", CameraDevice: "/dev/video0",
			AudioFormat: "alsa", AudioDevice: "default",
			AudioProbe: "/dev/snd",
		}
	}
}

// Override applies non-empty values from the capture config.
func (d PlatformDefaults) Override(cfg config.CaptureConfig) PlatformDefaults {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&d.ScreenFormat, cfg.ScreenFormat)
	set(&d.ScreenDevice, cfg.ScreenDevice)
	set(&d.CameraFormat, cfg.CameraFormat)
	set(&d.CameraDevice, cfg.CameraDevice)
	set(&d.AudioFormat, cfg.AudioFormat)
	set(&d.AudioDevice, cfg.AudioDevice)
	return d
}

type ffmpegProvider struct {
	logger    commons.Logger
	ffmpeg    string
	frameRate int
	platform  PlatformDefaults

	lookPath   func(string) (string, error)
	openDevice func(string) error

	mu      sync.Mutex
	claimed map[string]bool
}

type ProviderOption func(*ffmpegProvider)

// WithLookPath replaces the binary lookup used to check for ffmpeg.
func WithLookPath(fn func(string) (string, error)) ProviderOption {
	return func(p *ffmpegProvider) { p.lookPath = fn }
}

// WithDeviceOpener replaces the device access probe.
func WithDeviceOpener(fn func(string) error) ProviderOption {
	return func(p *ffmpegProvider) { p.openDevice = fn }
}

func WithPlatform(defaults PlatformDefaults) ProviderOption {
	return func(p *ffmpegProvider) { p.platform = defaults }
}

// NewFFmpegProvider returns a DeviceProvider whose tracks are ffmpeg inputs.
func NewFFmpegProvider(logger commons.Logger, cfg config.CaptureConfig, opts ...ProviderOption) DeviceProvider {
	p := &ffmpegProvider{
		logger:     logger,
		ffmpeg:     cfg.FFmpegPath,
		frameRate:  cfg.FrameRate,
		platform:   DefaultsFor(runtime.GOOS, os.Getenv).Override(cfg),
		lookPath:   exec.LookPath,
		openDevice: openReadOnly,
		claimed:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.frameRate <= 0 {
		p.frameRate = 30
	}
	return p
}

func openReadOnly(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func (p *ffmpegProvider) Screen(ctx context.Context) (*internal_type.CaptureSource, error) {
	if err := p.checkEncoder(); err != nil {
		return nil, err
	}
	if p.platform.ScreenDevice == "" {
		return nil, fmt.Errorf("%w: no display to capture", internal_type.ErrDeviceUnavailable)
	}
	input := internal_type.InputSpec{
		Format:  p.platform.ScreenFormat,
		Device:  p.platform.ScreenDevice,
		Options: []string{"-framerate", strconv.Itoa(p.frameRate)},
	}
	if input.Format == "x11grab" || input.Format == "avfoundation" {
		input.Options = append(input.Options, "-draw_mouse", "1")
	}
	release, err := p.claim(input)
	if err != nil {
		return nil, err
	}
	track := newDeviceTrack(internal_type.TrackVideo, internal_type.SourceScreen, "screen "+input.Device, input, release)
	p.logger.Debugf("capture: screen granted via %s %s", input.Format, input.Device)
	return &internal_type.CaptureSource{
		Kind:       internal_type.SourceScreen,
		Tracks:     []internal_type.Track{track},
		Permission: internal_type.PermissionGranted,
	}, nil
}

func (p *ffmpegProvider) UserMedia(ctx context.Context, camera, audio bool) (*internal_type.CaptureSource, error) {
	if err := p.checkEncoder(); err != nil {
		return nil, err
	}
	var tracks []internal_type.Track
	fail := func(err error) (*internal_type.CaptureSource, error) {
		for _, t := range tracks {
			t.Stop()
		}
		return nil, err
	}

	if camera {
		input := internal_type.InputSpec{
			Format:  p.platform.CameraFormat,
			Device:  p.platform.CameraDevice,
			Options: []string{"-framerate", strconv.Itoa(p.frameRate)},
		}
		if err := p.probe(input.Format, input.Device); err != nil {
			return fail(fmt.Errorf("camera %s: %w", input.Device, err))
		}
		release, err := p.claim(input)
		if err != nil {
			return fail(err)
		}
		tracks = append(tracks, newDeviceTrack(internal_type.TrackVideo, internal_type.SourceCamera, "camera "+input.Device, input, release))
	}

	if audio {
		input := internal_type.InputSpec{Format: p.platform.AudioFormat, Device: p.platform.AudioDevice}
		if p.platform.AudioProbe != "" {
			if err := p.probe("", p.platform.AudioProbe); err != nil {
				return fail(fmt.Errorf("microphone: %w", err))
			}
		}
		release, err := p.claim(input)
		if err != nil {
			return fail(err)
		}
		tracks = append(tracks, newDeviceTrack(internal_type.TrackAudio, internal_type.SourceCamera, "microphone "+input.Device, input, release))
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: user media requested without camera or microphone", internal_type.ErrConfiguration)
	}
	p.logger.Debugf("capture: user media granted with %d track(s)", len(tracks))
	return &internal_type.CaptureSource{
		Kind:       internal_type.SourceCamera,
		Tracks:     tracks,
		Permission: internal_type.PermissionGranted,
	}, nil
}

func (p *ffmpegProvider) checkEncoder() error {
	if _, err := p.lookPath(p.ffmpeg); err != nil {
		return fmt.Errorf("%w: %s not found: %v", internal_type.ErrDeviceUnavailable, p.ffmpeg, err)
	}
	return nil
}

// probe only opens file backed devices. Indexed devices (avfoundation, dshow)
// are checked by ffmpeg itself when the encoder starts.
func (p *ffmpegProvider) probe(format, device string) error {
	if format != "" && format != "v4l2" {
		return nil
	}
	return classifyOpenError(p.openDevice(device))
}

func classifyOpenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", internal_type.ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", internal_type.ErrDeviceUnavailable, err)
	}
	return fmt.Errorf("%w: %v", internal_type.ErrDeviceUnavailable, err)
}

// claim marks a device as held until the returned release func runs.
func (p *ffmpegProvider) claim(input internal_type.InputSpec) (func(), error) {
	key := input.Format + "|" + input.Device
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.claimed[key] {
		return nil, fmt.Errorf("%w: %s already in use", internal_type.ErrDeviceUnavailable, input.Device)
	}
	p.claimed[key] = true
	return func() {
		p.mu.Lock()
		delete(p.claimed, key)
		p.mu.Unlock()
	}, nil
}
