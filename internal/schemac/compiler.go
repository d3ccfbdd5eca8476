// SPDX-License-Identifier: MPL-2.0

package schemac

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const (
	// DefaultCommand compiles every schema in the directory with GLib's tool.
	DefaultCommand = `glib-compile-schemas "$GEX_SCHEMA_DIR"`

	// DirEnvVar holds the schema directory while the command runs.
	DirEnvVar = "GEX_SCHEMA_DIR"

	// maxOutputBytes bounds the command output kept for error messages.
	maxOutputBytes = 4 << 10
)

type (
	// ExitError reports a command that exited with a non-zero status.
	ExitError struct {
		Dir    string
		Status int
		Output string
	}

	// Compiler runs the compile command. Compilations are serialized.
	Compiler struct {
		prog        *syntax.File
		command     string
		env         []string
		execHandler func(interp.ExecHandlerFunc) interp.ExecHandlerFunc
		logger      *log.Logger

		mu sync.Mutex
	}

	// Option configures a Compiler.
	Option func(*Compiler)
)

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("schema command in %s exited with status %d", e.Dir, e.Status)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// WithEnv replaces the base environment (os.Environ by default).
func WithEnv(env []string) Option {
	return func(c *Compiler) { c.env = env }
}

// WithExecHandler wraps the interpreter's handler for external commands.
func WithExecHandler(h func(interp.ExecHandlerFunc) interp.ExecHandlerFunc) Option {
	return func(c *Compiler) { c.execHandler = h }
}

// WithLogger sets the logger that receives the command output.
func WithLogger(l *log.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// New parses command, falling back to DefaultCommand when it is empty.
func New(command string, opts ...Option) (*Compiler, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "schema-command")
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema command: %w", err)
	}

	c := &Compiler{prog: prog, command: command, env: os.Environ()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c, nil
}

// Command returns the shell source that is run.
func (c *Compiler) Command() string { return c.command }

// Compile runs the command for dir.
func (c *Compiler) Compile(ctx context.Context, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out bytes.Buffer
	w := &limitedWriter{w: &out, n: maxOutputBytes}

	env := append(append([]string(nil), c.env...), DirEnvVar+"="+dir)
	opts := []interp.RunnerOption{
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, w, w),
	}
	if c.execHandler != nil {
		opts = append(opts, interp.ExecHandlers(c.execHandler))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	c.logger.Debug("running schema command", "dir", dir)
	err = runner.Run(ctx, c.prog)
	if out.Len() > 0 {
		c.logger.Debug("schema command output", "dir", dir, "output", strings.TrimSpace(out.String()))
	}
	if err == nil {
		return nil
	}

	var exitStatus interp.ExitStatus
	if errors.As(err, &exitStatus) {
		return &ExitError{Dir: dir, Status: int(exitStatus), Output: out.String()}
	}
	return fmt.Errorf("schema command failed: %w", err)
}

// limitedWriter keeps the first n bytes and discards the rest.
type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n > 0 {
		keep := p
		if len(keep) > l.n {
			keep = keep[:l.n]
		}
		written, err := l.w.Write(keep)
		l.n -= written
		if err != nil {
			return written, err
		}
	}
	return len(p), nil
}
