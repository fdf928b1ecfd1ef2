package proxy

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"go.lsp.dev/protocol"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/gateway/container"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/clock"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/pending"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/translate"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/wire"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/repository/registry"
)

// JSON-RPC error code sent to a caller whose request was abandoned on
// session teardown or staleness sweep.
const _codeRequestCancelled = -32800

const _readBufferSize = 32 * 1024

// session is one live translation/relay context: one subprocess handle, one
// decode loop per direction, one pending table, all owned here and never
// aliased across sessions.
type session struct {
	mu  sync.Mutex
	ent *entity.ProxySession

	handle     container.Handle
	translator *translate.Translator
	pend       *pending.Table
	sessions   registry.Repository
	clk        clock.Clock
	logger     *zap.SugaredLogger
	stats      tally.Scope

	// editor is the currently attached editor-side stream, nil when the
	// editor has not connected yet or has gone away.
	editor   io.ReadWriteCloser
	editorMu sync.Mutex
	serverMu sync.Mutex

	staleness     time.Duration
	sweepInterval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newSession(
	key entity.SessionKey,
	mapping entity.PathMapping,
	handle container.Handle,
	sessions registry.Repository,
	clk clock.Clock,
	logger *zap.SugaredLogger,
	stats tally.Scope,
	staleness time.Duration,
	sweepInterval time.Duration,
) *session {
	s := &session{
		ent: &entity.ProxySession{
			UUID:      uuid.Must(uuid.NewV4()),
			Key:       key,
			Mapping:   mapping,
			State:     entity.StateStarting,
			StartedAt: clk.Now(),
		},
		handle:        handle,
		translator:    translate.New(mapping, translate.WithLogger(logger)),
		pend:          pending.New(clk, pending.WithLogger(logger)),
		sessions:      sessions,
		clk:           clk,
		logger:        logger,
		stats:         stats,
		staleness:     staleness,
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
	}

	s.wg.Add(3)
	go s.serverLoop()
	go s.exitLoop()
	go s.sweepLoop()
	return s
}

// Entity returns the session's domain entity with its current state.
func (s *session) Entity() *entity.ProxySession {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *s.ent
	return &e
}

// Snapshot exposes the session for health-check and diagnostic tooling.
func (s *session) Snapshot() entity.SessionSnapshot {
	s.mu.Lock()
	state := s.ent.State
	started := s.ent.StartedAt
	s.mu.Unlock()

	return entity.SessionSnapshot{
		ContainerID:  s.ent.Key.ContainerID,
		ServerName:   s.ent.Key.ServerName,
		State:        state,
		PendingCount: s.pend.Count(),
		Uptime:       s.clk.Now().Sub(started),
	}
}

// Shutdown closes the subprocess channel, drains the pending table with
// cancellations, and removes the session from the registry.
func (s *session) Shutdown(ctx context.Context) error {
	var errs error
	s.stopOnce.Do(func() {
		s.setState(entity.StateStopped)
		close(s.stop)
		errs = multierr.Append(errs, s.handle.Close())
		s.cancelPending(s.pend.CancelAll())
		s.detachEditor()
		errs = multierr.Append(errs, s.sessions.Remove(ctx, s.ent.Key))
	})
	s.wg.Wait()
	return errs
}

// Attach binds an editor-side byte stream to the session and relays until
// the stream closes or the session stops. At most one editor is attached at
// a time; a newcomer displaces the previous stream.
func (s *session) Attach(ctx context.Context, rwc io.ReadWriteCloser) error {
	s.editorMu.Lock()
	if s.editor != nil {
		s.editor.Close()
	}
	s.editor = rwc
	s.editorMu.Unlock()

	dec := wire.NewDecoder(wire.WithErrorHandler(func(err error) {
		s.stats.Counter("framing_errors").Inc(1)
		s.logger.Warnw("editor stream framing error", "key", s.ent.Key, "error", err)
	}))

	buf := make([]byte, _readBufferSize)
	for {
		select {
		case <-s.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := rwc.Read(buf)
		for _, m := range dec.Feed(buf[:n]) {
			s.forwardToServer(&m)
		}
		if err != nil {
			s.detachEditorIf(rwc)
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// forwardToServer translates one editor-side message host to container and
// frames it onto the subprocess stdin.
func (s *session) forwardToServer(m *wire.Message) {
	switch m.Kind() {
	case wire.KindRequest:
		s.pend.Track(m.IDKey(), m.Method, pending.EditorToServer)
		m.Params = s.translator.Params(m.Method, m.Params, translate.ToContainer)
	case wire.KindNotification:
		m.Params = s.translator.Params(m.Method, m.Params, translate.ToContainer)
	case wire.KindResponse:
		// The editor answering a server-initiated request.
		if _, ok := s.pend.Resolve(m.IDKey()); !ok {
			s.logger.Debugw("dropping response with unknown id", "key", s.ent.Key, "id", m.IDKey())
			return
		}
		m.Result = s.translator.ToContainer(m.Result)
	default:
		s.logger.Debugw("dropping invalid message from editor", "key", s.ent.Key)
		return
	}

	s.stats.Counter("messages_to_server").Inc(1)
	s.writeServer(m)
}

// serverLoop decodes the subprocess stdout stream and forwards messages to
// the editor in decode order.
func (s *session) serverLoop() {
	defer s.wg.Done()

	dec := wire.NewDecoder(wire.WithErrorHandler(func(err error) {
		s.stats.Counter("framing_errors").Inc(1)
		s.logger.Warnw("server stream framing error", "key", s.ent.Key, "error", err)
	}))

	buf := make([]byte, _readBufferSize)
	for {
		n, err := s.handle.Stdout().Read(buf)
		for _, m := range dec.Feed(buf[:n]) {
			s.forwardToEditor(&m)
		}
		if err != nil {
			if err != io.EOF && !s.stopped() {
				s.logger.Warnw("server stream read failed", "key", s.ent.Key, "error", err)
			}
			return
		}
	}
}

// forwardToEditor translates one server-side message container to host,
// resolves the pending table for responses, and delivers to the editor.
func (s *session) forwardToEditor(m *wire.Message) {
	switch m.Kind() {
	case wire.KindResponse:
		entry, ok := s.pend.Resolve(m.IDKey())
		if !ok {
			s.logger.Debugw("dropping response with unknown id", "key", s.ent.Key, "id", m.IDKey())
			return
		}
		if entry.Method == protocol.MethodInitialize {
			s.setStateIf(entity.StateStarting, entity.StateReady)
		}
		m.Result = s.translator.ToHost(m.Result)
		if m.Error != nil {
			m.Error.Data = s.translator.ToHost(m.Error.Data)
		}
	case wire.KindRequest:
		s.pend.Track(m.IDKey(), m.Method, pending.ServerToEditor)
		m.Params = s.translator.Params(m.Method, m.Params, translate.ToHost)
	case wire.KindNotification:
		m.Params = s.translator.Params(m.Method, m.Params, translate.ToHost)
	default:
		s.logger.Debugw("dropping invalid message from server", "key", s.ent.Key)
		return
	}

	s.stats.Counter("messages_to_editor").Inc(1)
	s.writeEditor(m)
}

// exitLoop watches for subprocess exit. An unexpected mid-session exit
// degrades the session and cancels whatever was still pending, rather than
// going silently quiet.
func (s *session) exitLoop() {
	defer s.wg.Done()

	select {
	case status := <-s.handle.Done():
		if s.stopped() {
			return
		}
		s.logger.Warnw("language server exited mid-session", "key", s.ent.Key, "exitCode", status.Code, "error", status.Err)
		s.setState(entity.StateDegraded)
		s.cancelPending(s.pend.CancelAll())
	case <-s.stop:
	}
}

// sweepLoop proactively cancels requests older than the staleness
// threshold, bounding memory growth from abandoned requests.
func (s *session) sweepLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case <-s.clk.After(s.sweepInterval):
			stale := s.pend.SweepOlderThan(s.staleness)
			if len(stale) > 0 {
				s.stats.Counter("stale_requests_cancelled").Inc(int64(len(stale)))
				s.cancelPending(stale)
			}
		}
	}
}

// cancelPending informs each still-waiting caller with a cancellation
// rather than leaving it hanging.
func (s *session) cancelPending(entries []pending.Entry) {
	for _, e := range entries {
		m := &wire.Message{
			JSONRPC: "2.0",
			ID:      []byte(e.ID),
			Error: &wire.ResponseError{
				Code:    _codeRequestCancelled,
				Message: "request cancelled: proxy session tearing down",
			},
		}
		switch e.Direction {
		case pending.EditorToServer:
			s.writeEditor(m)
		case pending.ServerToEditor:
			// The server is going away with the session; there is no one
			// left to answer.
			s.logger.Debugw("abandoning server-initiated request", "key", s.ent.Key, "id", e.ID, "method", e.Method)
		}
	}
}

func (s *session) writeServer(m *wire.Message) {
	data, err := wire.Encode(m)
	if err != nil {
		s.logger.Warnw("encoding message for server", "key", s.ent.Key, "error", err)
		return
	}
	s.serverMu.Lock()
	defer s.serverMu.Unlock()
	if _, err := s.handle.Stdin().Write(data); err != nil && !s.stopped() {
		s.logger.Warnw("writing to server", "key", s.ent.Key, "error", err)
		s.setState(entity.StateDegraded)
	}
}

func (s *session) writeEditor(m *wire.Message) {
	data, err := wire.Encode(m)
	if err != nil {
		s.logger.Warnw("encoding message for editor", "key", s.ent.Key, "error", err)
		return
	}
	s.editorMu.Lock()
	defer s.editorMu.Unlock()
	if s.editor == nil {
		s.logger.Debugw("no editor attached, dropping message", "key", s.ent.Key, "method", m.Method)
		return
	}
	if _, err := s.editor.Write(data); err != nil {
		s.logger.Warnw("writing to editor", "key", s.ent.Key, "error", err)
	}
}

func (s *session) detachEditor() {
	s.editorMu.Lock()
	defer s.editorMu.Unlock()
	if s.editor != nil {
		s.editor.Close()
		s.editor = nil
	}
}

func (s *session) detachEditorIf(rwc io.ReadWriteCloser) {
	s.editorMu.Lock()
	defer s.editorMu.Unlock()
	if s.editor == rwc {
		s.editor = nil
	}
}

func (s *session) setState(state entity.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ent.State == entity.StateStopped && state != entity.StateStopped {
		return
	}
	s.ent.State = state
}

func (s *session) setStateIf(from, to entity.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ent.State == from {
		s.ent.State = to
	}
}

func (s *session) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}
