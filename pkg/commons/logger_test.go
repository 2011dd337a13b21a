// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApplicationLogger_Defaults(t *testing.T) {
	logger, err := NewApplicationLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, "info", logger.LogLevel())
}

func TestNewApplicationLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected string
	}{
		{"debug level", "debug", "debug"},
		{"info level", "info", "info"},
		{"warn level", "warn", "warn"},
		{"error level", "error", "error"},
		{"invalid level falls back to info", "invalid", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewApplicationLogger(Level(tt.level))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, logger.LogLevel())
		})
	}
}

func TestApplicationLogger_WritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewApplicationLogger(Name("test-studio"), Path(dir), Level("debug"))
	require.NoError(t, err)

	logger.Infof("formatted message: %s %d", "test", 123)
	logger.Debugw("structured", "key", "value")
	logger.Benchmark("TestApplicationLogger_WritesRotatedFile", 15*time.Millisecond)
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test-studio.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "formatted message: test 123")
	assert.Contains(t, string(data), "\"key\":\"value\"")
	assert.Contains(t, string(data), "benchmark")
}

func TestApplicationLogger_SetLevel(t *testing.T) {
	logger, err := NewApplicationLogger(Level("info"))
	require.NoError(t, err)

	require.NoError(t, logger.SetLevel("debug"))
	assert.Equal(t, "debug", logger.LogLevel())

	err = logger.SetLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "debug", logger.LogLevel(), "failed SetLevel must not change the level")
}
