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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	internal_capture "github.com/rapidaai/studio/api/studio-api/internal/capture"
	internal_summarizer "github.com/rapidaai/studio/api/studio-api/internal/summarizer"
	internal_timer "github.com/rapidaai/studio/api/studio-api/internal/timer"
)

type recordOptions struct {
	duration time.Duration
	noCamera bool
	noAudio  bool
	summary  string
}

func newRecordCmd() *cobra.Command {
	var opts recordOptions
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one session in the foreground (Ctrl+C to stop)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return record(ctx, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Stop after this long instead of waiting for Ctrl+C")
	cmd.Flags().BoolVar(&opts.noCamera, "no-camera", false, "Record the screen without the camera overlay")
	cmd.Flags().BoolVar(&opts.noAudio, "no-audio", false, "Record without the microphone")
	cmd.Flags().StringVar(&opts.summary, "summary", "", "Run an ai task on the transcript: summary, meetings or tasks")
	return cmd
}

func record(ctx context.Context, out io.Writer, opts recordOptions) error {
	var task internal_summarizer.Task
	if opts.summary != "" {
		t, err := internal_summarizer.ParseTask(opts.summary)
		if err != nil {
			return err
		}
		task = t
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := newApplication(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.close(); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	req := internal_capture.Request{
		Screen: true,
		Camera: cfg.CaptureConfig.Camera && !opts.noCamera,
		Audio:  cfg.CaptureConfig.Audio && !opts.noAudio,
	}
	snap, err := app.orchestrator.BeginSession(ctx, req)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	fmt.Fprintf(out, "Recording session %s (%s transcription). Press Ctrl+C to stop.\n", snap.SessionID, snap.Transcript.Mode)

	wait := ctx
	if opts.duration > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}
	<-wait.Done()

	endCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	result, endErr := app.orchestrator.EndSession(endCtx)
	if result == nil {
		return fmt.Errorf("end session: %w", endErr)
	}
	fmt.Fprintf(out, "Stopped after %s.\n", internal_timer.Format(result.Elapsed))
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  warning: %s\n", e)
	}

	if location, err := app.orchestrator.Save(endCtx); err != nil {
		fmt.Fprintf(out, "Recording not saved: %v\n", err)
	} else {
		fmt.Fprintf(out, "Recording saved to %s\n", location)
	}

	transcript := result.Transcript
	fmt.Fprintf(out, "\nTranscript (%s):\n%s\n", transcript.Status, transcript.Text)
	if transcript.Error != "" {
		fmt.Fprintf(out, "Transcription error: %s\n", transcript.Error)
	}

	if task != "" && app.summarizer != nil && transcript.Text != "" {
		text, err := app.summarizer.Summarize(endCtx, transcript.Text, task)
		if err != nil {
			return fmt.Errorf("%s: %w", task, err)
		}
		fmt.Fprintf(out, "\n%s:\n%s\n", task, text)
	}
	return nil
}
