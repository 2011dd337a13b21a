// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rapidaai/studio/pkg/commons"
)

// Sink receives a finished recording, the way a browser receives a download.
type Sink interface {
	Offer(ctx context.Context, name, mimeType string, payload []byte) (string, error)
}

type directorySink struct {
	logger commons.Logger
	dir    string
	create func(path string) (io.WriteCloser, error)
}

func createExclusive(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// NewDirectorySink writes offers into dir. Existing files are never
// overwritten; the name gets a " (n)" suffix instead.
func NewDirectorySink(logger commons.Logger, dir string) Sink {
	return &directorySink{logger: logger, dir: dir, create: createExclusive}
}

func (s *directorySink) Offer(ctx context.Context, name, mimeType string, payload []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", s.dir, err)
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(filepath.Base(name), ext)

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := base + ext
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		path := filepath.Join(s.dir, candidate)
		f, err := s.create(path)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.Write(payload); err != nil {
			f.Close()
			s.discard(path)
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			s.discard(path)
			return "", fmt.Errorf("close %s: %w", path, err)
		}
		s.logger.Infof("recorder: saved %s (%s, %d bytes)", path, mimeType, len(payload))
		return path, nil
	}
}

// discard removes a partially written file so a retry gets the same name.
func (s *directorySink) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warnf("recorder: unable to remove partial %s: %v", path, err)
	}
}
