// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package session_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	internal_type "github.com/rapidaai/studio/api/studio-api/internal/type"
)

// statusFor maps a session error to the http status reported to the caller.
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, internal_type.ErrAlreadyRecording), errors.Is(err, internal_type.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, internal_type.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, internal_type.ErrDeviceUnavailable), errors.Is(err, internal_type.ErrEngineUnsupported):
		return http.StatusServiceUnavailable
	case errors.Is(err, internal_type.ErrUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, internal_type.ErrNoSession), errors.Is(err, internal_type.ErrNothingToSave):
		return http.StatusNotFound
	case errors.Is(err, internal_type.ErrNotRecording),
		errors.Is(err, internal_type.ErrConfiguration),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	body := gin.H{"success": false, "error": err.Error()}
	var uploadErr *internal_type.UploadError
	if errors.As(err, &uploadErr) && uploadErr.Body != "" {
		body["response"] = uploadErr.Body
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}
