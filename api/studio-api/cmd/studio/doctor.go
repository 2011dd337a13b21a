// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rapidaai/studio/pkg/utils"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check capture devices and backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doctor(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func check(out io.Writer, name string, ok bool, detail string) {
	mark := "ok"
	if !ok {
		mark = "!!"
	}
	fmt.Fprintf(out, "[%s] %-16s %s\n", mark, name, detail)
}

func doctor(ctx context.Context, out io.Writer) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.close() }()

	healthy := true
	if path, err := app.runner.LookPath(cfg.CaptureConfig.FFmpegPath); err != nil {
		check(out, "ffmpeg", false, fmt.Sprintf("%s not found in PATH", cfg.CaptureConfig.FFmpegPath))
		healthy = false
	} else {
		check(out, "ffmpeg", true, path)
	}

	screen := app.platform.ScreenFormat + " " + app.platform.ScreenDevice
	if utils.IsEmpty(app.platform.ScreenDevice) {
		check(out, "screen", false, "no display to capture, set DISPLAY or CAPTURE__SCREEN_DEVICE")
		healthy = false
	} else {
		check(out, "screen", true, screen)
	}

	if app.platform.CameraFormat == "v4l2" {
		if _, err := os.Stat(app.platform.CameraDevice); err != nil {
			check(out, "camera", false, err.Error())
		} else {
			check(out, "camera", true, app.platform.CameraDevice)
		}
	} else {
		check(out, "camera", true, app.platform.CameraFormat+" "+app.platform.CameraDevice+" (opened on first recording)")
	}

	check(out, "microphone", app.microphone.Available(), app.platform.AudioFormat+" "+app.platform.AudioDevice)

	if app.transcribers == nil {
		check(out, "transcription", false, "unavailable, recordings will have no transcript")
		healthy = false
	} else {
		check(out, "transcription", true, string(app.transcribers.Mode()))
	}

	check(out, "history", app.history != nil, cfg.HistoryConfig.Driver)
	if cfg.RedisConfig.Enabled {
		check(out, "redis", app.redis != nil, fmt.Sprintf("%s:%d", cfg.RedisConfig.Host, cfg.RedisConfig.Port))
	}
	check(out, "summarizer", app.summarizer != nil, cfg.SummarizerConfig.URL)

	if !healthy {
		return fmt.Errorf("some prerequisites are missing")
	}
	fmt.Fprintln(out, "\nAll prerequisites met.")
	return nil
}
