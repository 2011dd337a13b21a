// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// ErrExited is reported when a capture process ends without being asked to.
var ErrExited = errors.New("process exited unexpectedly")

const defaultChunkSize = 32 * 1024

// Command is one long running capture or encode process. Everything the
// process writes to stdout is delivered to OnData in read-sized chunks.
type Command struct {
	Path      string
	Args      []string
	ChunkSize int
	OnData    func([]byte)
}

type Process interface {
	// Stop asks the process to flush and exit, killing it once ctx is done.
	Stop(ctx context.Context) error
	// Done is closed after stdout is drained and the process has been reaped.
	Done() <-chan struct{}
	// Err is nil for a requested stop, ErrExited wrapped with the exit status otherwise.
	Err() error
	Stopping() bool
}

type Runner interface {
	Start(ctx context.Context, cmd Command) (Process, error)
	LookPath(file string) (string, error)
}

type execRunner struct{}

func NewRunner() Runner {
	return &execRunner{}
}

func (r *execRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (r *execRunner) Start(ctx context.Context, c Command) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(c.Path, c.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe for %s: %w", c.Path, err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe for %s: %w", c.Path, err)
	}
	stderr := &tailBuffer{limit: 2048}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Path, err)
	}

	size := c.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	p := &process{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go p.pump(stdout, size, c.OnData)
	return p, nil
}

type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer

	mu       sync.Mutex
	stopping bool
	err      error
	done     chan struct{}
}

func (p *process) pump(stdout io.Reader, size int, onData func([]byte)) {
	defer close(p.done)
	buf := make([]byte, size)
	for {
		n, err := stdout.Read(buf)
		if n > 0 && onData != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onData(chunk)
		}
		if err != nil {
			break
		}
	}
	waitErr := p.cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopping {
		return
	}
	detail := strings.TrimSpace(p.stderr.String())
	switch {
	case waitErr != nil && detail != "":
		p.err = fmt.Errorf("%w: %v: %s", ErrExited, waitErr, detail)
	case waitErr != nil:
		p.err = fmt.Errorf("%w: %v", ErrExited, waitErr)
	default:
		p.err = ErrExited
	}
}

func (p *process) Stop(ctx context.Context) error {
	p.mu.Lock()
	already := p.stopping
	p.stopping = true
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}
	if !already {
		p.interrupt()
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		_ = p.cmd.Process.Kill()
		<-p.done
		return ctx.Err()
	}
}

// interrupt lets ffmpeg write its trailer before exiting.
func (p *process) interrupt() {
	if runtime.GOOS == "windows" {
		_, _ = io.WriteString(p.stdin, "q")
		_ = p.stdin.Close()
		return
	}
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = p.cmd.Process.Kill()
	}
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *process) Stopping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopping
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append([]byte(nil), t.buf[over:]...)
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
