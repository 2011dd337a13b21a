// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("ENV_PATH", path)
	return path
}

func TestGetApplicationConfig_Defaults(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))

	v, err := InitConfig()
	require.NoError(t, err)
	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "studio", cfg.Name)
	assert.Equal(t, "auto", cfg.TranscriptionConfig.Mode)
	assert.Equal(t, "en-US", cfg.TranscriptionConfig.Language)
	assert.Equal(t, "en", cfg.TranscriptionConfig.UploadLanguage)
	assert.Equal(t, 60*time.Second, cfg.TranscriptionConfig.Timeout)
	assert.Equal(t, 3, cfg.TranscriptionConfig.MaxRestartFailures)
	assert.Equal(t, "recording.webm", cfg.RecordingConfig.FileName)
	assert.Equal(t, "sqlite", cfg.HistoryConfig.Driver)
	assert.False(t, cfg.RedisConfig.Enabled)
}

func TestGetApplicationConfig_FromEnvFile(t *testing.T) {
	writeEnv(t, "PORT=7070\nTRANSCRIPTION__MODE=clip\nTRANSCRIPTION__UPLOAD_URL=http://stt.local\nREDIS__ENABLED=true\n")

	v, err := InitConfig()
	require.NoError(t, err)
	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "clip", cfg.TranscriptionConfig.Mode)
	assert.Equal(t, "http://stt.local", cfg.TranscriptionConfig.UploadURL)
	assert.True(t, cfg.RedisConfig.Enabled)
}

func TestGetApplicationConfig_EnvOverridesFile(t *testing.T) {
	writeEnv(t, "TRANSCRIPTION__MODE=clip\n")
	t.Setenv("TRANSCRIPTION__MODE", "live")

	v, err := InitConfig()
	require.NoError(t, err)
	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "live", cfg.TranscriptionConfig.Mode)
}

func TestGetApplicationConfig_RejectsUnknownMode(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("TRANSCRIPTION__MODE", "bogus")

	v, err := InitConfig()
	require.NoError(t, err)
	_, err = GetApplicationConfig(v)
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "Mode", verrs[0].Field())
}

type recordingLevelSetter struct {
	level string
	fail  bool
	warns int
}

func (r *recordingLevelSetter) SetLevel(level string) error {
	if r.fail {
		return errors.New("bad level")
	}
	r.level = level
	return nil
}
func (r *recordingLevelSetter) Infof(string, ...interface{}) {}
func (r *recordingLevelSetter) Warnf(string, ...interface{}) { r.warns++ }

func TestApplyChange(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	v, err := InitConfig()
	require.NoError(t, err)
	v.Set("LOG_LEVEL", "debug")

	setter := &recordingLevelSetter{}
	applyChange(v, setter, fsnotify.Event{Name: ".env", Op: fsnotify.Chmod})
	assert.Empty(t, setter.level, "chmod events are ignored")

	applyChange(v, setter, fsnotify.Event{Name: ".env", Op: fsnotify.Write})
	assert.Equal(t, "debug", setter.level)

	failing := &recordingLevelSetter{fail: true}
	applyChange(v, failing, fsnotify.Event{Name: ".env", Op: fsnotify.Write})
	assert.Equal(t, 1, failing.warns)
}
