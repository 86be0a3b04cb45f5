package execution

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const maxLineSize = 1 << 20 // 1 MiB

// Process launches test executables and reads their merged stdout and stderr line by line
type Process struct {
	logger *slog.Logger
}

// NewProcess creates a new Process
func NewProcess(logger *slog.Logger) *Process {
	return &Process{logger: logger}
}

// RunBlocking runs executable to completion and returns its exit code and output lines
func (p *Process) RunBlocking(ctx context.Context, executable string, args []string, dir, pathExt string) (int, []string, error) {
	var lines []string
	code, err := p.RunStreaming(ctx, executable, args, dir, pathExt, func(line string) {
		lines = append(lines, line)
	})
	return code, lines, err
}

// RunStreaming runs executable and calls onLine for every output line, in order,
// before the next line is read. Cancelling ctx kills the process; the exit code
// of a killed process is -1.
func (p *Process) RunStreaming(ctx context.Context, executable string, args []string, dir, pathExt string, onLine func(string)) (int, error) {
	// relative paths would be resolved against dir
	if abs, err := filepath.Abs(executable); err == nil && strings.ContainsRune(executable, filepath.Separator) {
		executable = abs
	}
	cmd := exec.CommandContext(ctx, executable, args...)
	cmd.Dir = dir
	cmd.Env = environ(cmd.Environ(), pathExt)

	r, w, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("create output pipe: %w", err)
	}
	defer r.Close()
	cmd.Stdout = w
	cmd.Stderr = w

	p.logger.Debug("executing", "command", cmd.String(), "dir", dir)

	if err := cmd.Start(); err != nil {
		w.Close()
		return 0, fmt.Errorf("start %s: %w", executable, err)
	}
	// the child holds its own copy
	w.Close()

	stop := context.AfterFunc(ctx, func() { r.Close() })
	defer stop()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		onLine(strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		p.logger.Warn("stopped reading process output", "executable", executable, "error", err)
	}
	r.Close()

	err = cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("wait for %s: %w", executable, err)
}

// environ returns env with pathExt prepended to PATH
func environ(env []string, pathExt string) []string {
	if pathExt == "" {
		return env
	}

	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.EqualFold(key, "PATH") && !found {
			found = true
			kv = key + "=" + pathExt + string(os.PathListSeparator) + value
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, "PATH="+pathExt)
	}
	return out
}
