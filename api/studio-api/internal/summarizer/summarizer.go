// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/pkg/commons"
	"github.com/rapidaai/studio/pkg/utils"
)

type Task string

const (
	TaskSummary  Task = "summary"
	TaskMeetings Task = "meetings"
	TaskTasks    Task = "tasks"

	aiPath = "/ai/"
)

// ParseTask accepts the task names case-insensitively.
func ParseTask(s string) (Task, error) {
	switch t := Task(strings.ToLower(strings.TrimSpace(s))); t {
	case TaskSummary, TaskMeetings, TaskTasks:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown summary task %q", internal_type.ErrConfiguration, s)
}

// Summarizer turns a finished transcript into a summary, meeting notes or a task list.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, task Task) (string, error)
}

type aiRequest struct {
	Transcription string `json:"transcription"`
	Task          Task   `json:"task"`
}

type aiResponse struct {
	Result string `json:"result"`
}

type restySummarizer struct {
	logger commons.Logger
	client *resty.Client
}

func NewSummarizer(logger commons.Logger, baseURL string, timeout time.Duration) Summarizer {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &restySummarizer{logger: logger, client: client}
}

func (s *restySummarizer) Summarize(ctx context.Context, transcript string, task Task) (string, error) {
	if utils.IsEmpty(transcript) {
		return "", fmt.Errorf("%w: no transcript to summarize", internal_type.ErrNothingToSave)
	}
	start := time.Now()
	var out aiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(aiRequest{Transcription: transcript, Task: task}).
		SetResult(&out).
		Post(aiPath)
	s.logger.Benchmark("summarizer.Summarize", time.Since(start))
	if err != nil {
		return "", &internal_type.UploadError{Err: err}
	}
	if !resp.IsSuccess() {
		s.logger.Warnf("summarizer: %s task failed with status %d", task, resp.StatusCode())
		return "", &internal_type.UploadError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return out.Result, nil
}
