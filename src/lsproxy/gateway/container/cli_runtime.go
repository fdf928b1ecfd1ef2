package container

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/config"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/errors"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/executor"
)

const (
	_configKeyCLIBinary = "container.cliBinary"

	_defaultCLIBinary = "docker"
)

// cliRuntime shells out to `docker exec -i` for environments where the
// Engine API socket is not reachable.
type cliRuntime struct {
	binary string
	exec   executor.Executor
	logger *zap.SugaredLogger
}

// NewCLIRuntime creates a Runtime that drives the container CLI.
func NewCLIRuntime(cfg config.Provider, ex executor.Executor, logger *zap.SugaredLogger) (Runtime, error) {
	binary := _defaultCLIBinary
	if err := cfg.Get(_configKeyCLIBinary).Populate(&binary); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyCLIBinary, err)
	}
	if binary == "" {
		binary = _defaultCLIBinary
	}
	return &cliRuntime{binary: binary, exec: ex, logger: logger}, nil
}

// Exec runs `<binary> exec -i <container> <cmd...>` with piped streams.
func (r *cliRuntime) Exec(ctx context.Context, containerID string, cmd []string) (Handle, error) {
	args := append([]string{"exec", "-i", containerID}, cmd...)
	c := exec.CommandContext(ctx, r.binary, args...)

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, &errors.SpawnError{ContainerID: containerID, Command: cmd, Err: err}
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, &errors.SpawnError{ContainerID: containerID, Command: cmd, Err: err}
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, &errors.SpawnError{ContainerID: containerID, Command: cmd, Err: err}
	}

	if err := r.exec.Start(c); err != nil {
		return nil, &errors.SpawnError{ContainerID: containerID, Command: cmd, Err: err}
	}

	h := &cliHandle{
		cmd:    c,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		done:   make(chan ExitStatus, 1),
	}

	go func() {
		err := c.Wait()
		code := -1
		if c.ProcessState != nil {
			code = c.ProcessState.ExitCode()
		}
		status := ExitStatus{Code: code, Err: err}
		r.logger.Infow("container exec ended", "container", containerID, "exitCode", status.Code, "error", err)
		h.done <- status
	}()

	return h, nil
}

type cliHandle struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    io.Reader
	stderr    io.Reader
	done      chan ExitStatus
	closeOnce sync.Once
	closeErr  error
}

func (h *cliHandle) Stdin() io.WriteCloser { return h.stdin }

func (h *cliHandle) Stdout() io.Reader { return h.stdout }

func (h *cliHandle) Stderr() io.Reader { return h.stderr }

func (h *cliHandle) Done() <-chan ExitStatus { return h.done }

// Close ends the exec client process. The in-container process sees its
// stdin close and exits; the Wait goroutine reaps the client.
func (h *cliHandle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.stdin.Close()
		if h.cmd.Process != nil {
			h.cmd.Process.Kill()
		}
	})
	return h.closeErr
}
