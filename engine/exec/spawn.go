package exec

import (
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/compozy/guidebook/pkg/logger"
)

// ExitError reports a process that ran and exited unsuccessfully, as
// opposed to one that could not be started at all.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
}

const maxLabelLength = 60

// commandLabel names a failed request by the first line of its body,
// falling back to the interpreter for an empty body.
func commandLabel(req *Request, interpreter string) string {
	for line := range strings.SplitSeq(req.Body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > maxLabelLength {
			line = line[:maxLabelLength] + "..."
		}
		return fmt.Sprintf("%q", line)
	}
	return interpreter
}

// process is a fire-and-forget child the dispatcher still owns.
type process struct {
	cmd  *osexec.Cmd
	done chan struct{}
	once sync.Once
}

func (p *process) stop() {
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.done
	})
}

// spawn runs name with args under the scoped environment, honoring the
// request's capture and async modes.
func (d *Dispatcher) spawn(ctx context.Context, req *Request, name string, args ...string) (Result, error) {
	log := logger.FromContext(ctx)
	if req.Async {
		return d.spawnDetached(log, req, name, args...)
	}
	runCtx, cancel := createCommandContext(ctx, d.cfg.Timeout)
	defer cancel()
	cmd := osexec.CommandContext(runCtx, name, args...)
	d.configureCommand(cmd, req)
	var capture *captureBuffer
	if req.Capture {
		capture = newCaptureBuffer(d.cfg.MaxCapture, nil)
		cmd.Stdout = capture
		cmd.Stdin = nil
	}
	started := time.Now()
	err := d.run(cmd)
	output := ""
	if capture != nil {
		output = capture.String()
		if capture.Truncated() {
			log.Warn("Captured output truncated", "task_id", req.TaskID, "limit", d.cfg.MaxCapture)
		}
	}
	log.Debug("Process finished", "command", name, "duration_ms", time.Since(started).Milliseconds())
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return failure(output), fmt.Errorf("%s timed out after %s", commandLabel(req, name), d.cfg.Timeout)
		}
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			return failure(output), &ExitError{Command: commandLabel(req, name), Code: exitErr.ExitCode()}
		}
		return failure(output), fmt.Errorf("failed to execute %s: %w", name, err)
	}
	return success(output), nil
}

func (d *Dispatcher) spawnDetached(log logger.Logger, req *Request, name string, args ...string) (Result, error) {
	cmd := osexec.Command(name, args...)
	d.configureCommand(cmd, req)
	cmd.Stdin = nil
	if err := d.start(cmd); err != nil {
		return failure(""), fmt.Errorf("failed to start %s: %w", name, err)
	}
	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		if err := cmd.Wait(); err != nil {
			log.Debug("Background process exited", "command", name, "error", err)
		}
	}()
	d.track(p)
	log.Debug("Started background process", "command", name, "pid", cmd.Process.Pid)
	return success(""), nil
}

func (d *Dispatcher) configureCommand(cmd *osexec.Cmd, req *Request) {
	if strings.TrimSpace(d.cfg.Dir) != "" {
		cmd.Dir = d.cfg.Dir
	}
	cmd.Env = d.env.Environ(req.Env)
	cmd.Stdout = d.cfg.Stdout
	cmd.Stderr = d.cfg.Stderr
	cmd.Stdin = d.cfg.Stdin
}

func createCommandContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// writeScript stores body in a fresh temporary file with the given
// extension and returns its path.
func (d *Dispatcher) writeScript(body, ext string) (string, error) {
	f, err := os.CreateTemp(d.cfg.TempDir, "guidebook-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create script file: %w", err)
	}
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close script file: %w", err)
	}
	return f.Name(), nil
}

// lookPathIn resolves name against the given PATH value instead of the
// process PATH, so exported PATH changes are honored.
func lookPathIn(name, path string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("%s: not an executable file", name)
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, osexec.ErrNotFound)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
