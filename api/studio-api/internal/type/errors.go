// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the user or the OS refused access to a device.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDeviceUnavailable is returned when a device is missing or already claimed.
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrAlreadyRecording  = errors.New("already recording")
	ErrNotRecording      = errors.New("not recording")
	// ErrEngineUnsupported means live recognition cannot run in this environment.
	ErrEngineUnsupported = errors.New("transcription engine unsupported")
	ErrUploadFailed      = errors.New("upload failed")
	// ErrDeviceDisconnected marks a device lost in the middle of a session.
	ErrDeviceDisconnected = errors.New("device disconnected")
	ErrConfiguration      = errors.New("configuration error")
	ErrNothingToSave      = errors.New("nothing to save")
	ErrSessionActive      = errors.New("session already active")
	ErrNoSession          = errors.New("no active session")
)

// UploadError is a failed transcription upload. Body holds the service response verbatim.
type UploadError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
	return fmt.Sprintf("upload failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
