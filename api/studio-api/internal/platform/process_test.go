// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_platform

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not found")
	}
	return sh
}

type collector struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *collector) add(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(b)
}

func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func TestProcess_StopIsNotAnError(t *testing.T) {
	sh := requireShell(t)
	out := &collector{}
	p, err := NewRunner().Start(context.Background(), Command{
		Path:   sh,
		Args:   []string{"-c", "printf abc; exec sleep 10"},
		OnData: out.add,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return out.String() == "abc" }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	assert.True(t, p.Stopping())
	assert.NoError(t, p.Err())

	// second stop returns immediately
	require.NoError(t, p.Stop(ctx))
}

func TestProcess_UnexpectedExit(t *testing.T) {
	sh := requireShell(t)
	out := &collector{}
	p, err := NewRunner().Start(context.Background(), Command{
		Path:   sh,
		Args:   []string{"-c", "printf partial; echo 'device lost' >&2; exit 3"},
		OnData: out.add,
	})
	require.NoError(t, err)

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.Equal(t, "partial", out.String())
	require.Error(t, p.Err())
	assert.True(t, errors.Is(p.Err(), ErrExited))
	assert.Contains(t, p.Err().Error(), "device lost")
}

func TestRunner_StartMissingBinary(t *testing.T) {
	_, err := NewRunner().Start(context.Background(), Command{Path: "/nonexistent/ffmpeg-binary"})
	assert.Error(t, err)
}

func TestTailBuffer_KeepsTail(t *testing.T) {
	tb := &tailBuffer{limit: 4}
	_, _ = tb.Write([]byte("abcdef"))
	_, _ = tb.Write([]byte("gh"))
	assert.Equal(t, "efgh", tb.String())
}
