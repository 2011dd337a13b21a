// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_transcriber_clip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
	"github.com/rapidaai/studio/pkg/commons"
)

const (
	ClipFileName    = "audio.mp3"
	transcribePath  = "/transcribe/"
	defaultLanguage = "en"
)

// Uploader sends one audio clip to a speech to text service.
type Uploader interface {
	Transcribe(ctx context.Context, clip []byte, fileName, language string) (string, error)
}

type transcribeResponse struct {
	Transcription *string `json:"transcription"`
}

type restyUploader struct {
	logger commons.Logger
	client *resty.Client
}

// NewUploader posts clips as multipart form data to baseURL + /transcribe/.
func NewUploader(logger commons.Logger, baseURL string, timeout time.Duration) Uploader {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &restyUploader{logger: logger, client: client}
}

func (u *restyUploader) Transcribe(ctx context.Context, clip []byte, fileName, language string) (string, error) {
	if language == "" {
		language = defaultLanguage
	}
	start := time.Now()
	resp, err := u.client.R().
		SetContext(ctx).
		SetFileReader("file", fileName, bytes.NewReader(clip)).
		SetFormData(map[string]string{"language": language}).
		Post(transcribePath)
	u.logger.Benchmark("clip-stt.Transcribe", time.Since(start))
	if err != nil {
		return "", &internal_type.UploadError{Err: err}
	}
	if !resp.IsSuccess() {
		return "", &internal_type.UploadError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var out transcribeResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", &internal_type.UploadError{
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
			Err:        fmt.Errorf("decode transcription: %w", err),
		}
	}
	if out.Transcription == nil {
		return "", &internal_type.UploadError{
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
			Err:        fmt.Errorf("response has no transcription field"),
		}
	}
	return *out.Transcription, nil
}
