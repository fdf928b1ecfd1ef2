package container

import (
	"context"
	"io"
	"sync"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/errors"
)

// apiRuntime executes commands through the Docker Engine API using a
// hijacked exec attachment.
type apiRuntime struct {
	cli    client.APIClient
	logger *zap.SugaredLogger
}

// NewAPIRuntime creates a Runtime backed by the Docker Engine API,
// configured from the environment.
func NewAPIRuntime(logger *zap.SugaredLogger) (Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &apiRuntime{cli: cli, logger: logger}, nil
}

// NewAPIRuntimeWithClient creates a Runtime using the supplied API client.
func NewAPIRuntimeWithClient(cli client.APIClient, logger *zap.SugaredLogger) Runtime {
	return &apiRuntime{cli: cli, logger: logger}
}

// Exec starts cmd inside the container and attaches to its streams.
func (r *apiRuntime) Exec(ctx context.Context, containerID string, cmd []string) (Handle, error) {
	created, err := r.cli.ContainerExecCreate(ctx, containerID, dockercontainer.ExecOptions{
		Cmd:          cmd,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, &errors.SpawnError{ContainerID: containerID, Command: cmd, Err: err}
	}

	attached, err := r.cli.ContainerExecAttach(ctx, created.ID, dockercontainer.ExecAttachOptions{})
	if err != nil {
		return nil, &errors.SpawnError{ContainerID: containerID, Command: cmd, Err: err}
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	h := &apiHandle{
		conn:   attached.Conn,
		stdout: stdoutR,
		stderr: stderrR,
		done:   make(chan ExitStatus, 1),
	}

	go func() {
		// The attach stream multiplexes stdout/stderr; demux until EOF, then
		// pick up the exit code from the exec inspect endpoint.
		_, copyErr := stdcopy.StdCopy(stdoutW, stderrW, attached.Reader)
		stdoutW.CloseWithError(io.EOF)
		stderrW.CloseWithError(io.EOF)

		status := ExitStatus{Code: -1, Err: copyErr}
		if inspect, err := r.cli.ContainerExecInspect(context.Background(), created.ID); err == nil {
			status.Code = inspect.ExitCode
		} else if copyErr == nil {
			status.Err = err
		}
		r.logger.Infow("container exec ended", "container", containerID, "exitCode", status.Code, "error", status.Err)
		h.done <- status
	}()

	return h, nil
}

type apiHandle struct {
	conn      io.ReadWriteCloser
	stdout    io.Reader
	stderr    io.Reader
	done      chan ExitStatus
	closeOnce sync.Once
	closeErr  error
}

func (h *apiHandle) Stdin() io.WriteCloser { return connWriter{h} }

func (h *apiHandle) Stdout() io.Reader { return h.stdout }

func (h *apiHandle) Stderr() io.Reader { return h.stderr }

func (h *apiHandle) Done() <-chan ExitStatus { return h.done }

// Close tears down the hijacked connection. Language servers exit when
// their stdin closes, which is the only teardown the exec API offers.
func (h *apiHandle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.conn.Close()
	})
	return h.closeErr
}

// connWriter narrows the hijacked connection to the stdin role so closing
// stdin does not race with Handle.Close.
type connWriter struct {
	h *apiHandle
}

func (w connWriter) Write(p []byte) (int, error) { return w.h.conn.Write(p) }

func (w connWriter) Close() error { return w.h.Close() }
