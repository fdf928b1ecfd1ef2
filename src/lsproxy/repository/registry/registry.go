// Package registry tracks at most one live proxy session per
// (container, server) pair. It is the sole cross-session shared structure;
// all mutations are atomic with respect to each other.
package registry

import (
	"context"
	"sync"

	tally "github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/errors"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/mapper"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/model"
)

// Session is the live counterpart of an entity.ProxySession tracked by the
// registry. controller/proxy provides the implementation.
type Session interface {
	Entity() *entity.ProxySession
	Snapshot() entity.SessionSnapshot
	Shutdown(ctx context.Context) error
}

// Factory constructs a new live session. It is invoked at most once per
// concurrent burst of GetOrCreate calls for the same key.
type Factory func(ctx context.Context) (Session, error)

// Repository is the sole creation entry point for proxy sessions. It must
// be safe to call repeatedly in rapid succession; the editor may attempt
// setup from buffer-open events, container-ready events, and retry timers
// at once.
type Repository interface {
	GetOrCreate(ctx context.Context, key entity.SessionKey, factory Factory) (Session, error)
	Get(ctx context.Context, key entity.SessionKey) (Session, error)
	Remove(ctx context.Context, key entity.SessionKey) error
	// RemoveContainer shuts down and removes every session for a container
	// and clears its init status. Fired on container-stop.
	RemoveContainer(ctx context.Context, containerID string) error
	List(ctx context.Context) ([]*entity.ProxySession, error)
	Snapshots(ctx context.Context) []entity.SessionSnapshot
	SessionCount(ctx context.Context) (int, error)
	InitStatus(ctx context.Context, containerID string) entity.InitStatus
}

type record struct {
	sess  Session
	model *model.Session
}

type inflight struct {
	done chan struct{}
	sess Session
	err  error
}

type repository struct {
	mu         sync.Mutex
	sessions   map[entity.SessionKey]*record
	creating   map[entity.SessionKey]*inflight
	initStatus map[string]entity.InitStatus
	stats      tally.Scope
	logger     *zap.SugaredLogger
}

// New returns a Repository backed by an in-memory session map.
func New(stats tally.Scope, logger *zap.SugaredLogger) Repository {
	return &repository{
		sessions:   make(map[entity.SessionKey]*record),
		creating:   make(map[entity.SessionKey]*inflight),
		initStatus: make(map[string]entity.InitStatus),
		stats:      stats,
		logger:     logger,
	}
}

// GetOrCreate returns the live session for the key, joining an in-flight
// creation if one exists, and otherwise constructing via factory. Exactly
// one factory invocation occurs per concurrent burst; every caller receives
// a reference to the same resulting session.
func (r *repository) GetOrCreate(ctx context.Context, key entity.SessionKey, factory Factory) (Session, error) {
	for {
		r.mu.Lock()

		if rec, ok := r.sessions[key]; ok {
			if rec.sess.Entity().State != entity.StateStopped {
				r.mu.Unlock()
				return rec.sess, nil
			}
			// A stopped session must not be reused; fall through to recreate.
			delete(r.sessions, key)
		}

		if fl, ok := r.creating[key]; ok {
			r.mu.Unlock()
			select {
			case <-fl.done:
				return fl.sess, fl.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		// Creation for another server in the same container is serialized on
		// the container's init status; wait for it to settle, then re-check.
		if waiter := r.containerBusyLocked(key.ContainerID); waiter != nil {
			r.mu.Unlock()
			select {
			case <-waiter:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		fl := &inflight{done: make(chan struct{})}
		r.creating[key] = fl
		r.initStatus[key.ContainerID] = entity.InitInProgress
		r.mu.Unlock()

		sess, err := factory(ctx)

		r.mu.Lock()
		delete(r.creating, key)
		if err != nil {
			// Allow a later attempt to retry after container state changes.
			r.initStatus[key.ContainerID] = entity.InitNone
			r.logger.Warnw("session creation failed", "key", key, "error", err)
		} else {
			r.initStatus[key.ContainerID] = entity.InitCompleted
			r.sessions[key] = &record{sess: sess, model: mapper.SessionToModel(sess.Entity())}
			r.stats.Gauge("active_sessions").Update(float64(len(r.sessions)))
		}
		fl.sess, fl.err = sess, err
		close(fl.done)
		r.mu.Unlock()

		return sess, err
	}
}

// containerBusyLocked returns a channel that settles when the container's
// in-flight creation (for any server) completes, or nil when none is active.
func (r *repository) containerBusyLocked(containerID string) <-chan struct{} {
	if r.initStatus[containerID] != entity.InitInProgress {
		return nil
	}
	for key, fl := range r.creating {
		if key.ContainerID == containerID {
			return fl.done
		}
	}
	return nil
}

// Get returns the live session for the key.
func (r *repository) Get(ctx context.Context, key entity.SessionKey) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[key]
	if !ok {
		return nil, &errors.KeyNotFoundError{ContainerID: key.ContainerID, ServerName: key.ServerName}
	}
	return rec.sess, nil
}

// Remove removes the session for the key. Removing a missing key is not an
// error; teardown paths may race.
func (r *repository) Remove(ctx context.Context, key entity.SessionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, key)
	r.stats.Gauge("active_sessions").Update(float64(len(r.sessions)))
	return nil
}

// RemoveContainer shuts down all sessions for the container and clears its
// init status so a restarted container starts from a clean slate.
func (r *repository) RemoveContainer(ctx context.Context, containerID string) error {
	r.mu.Lock()
	var doomed []Session
	for key, rec := range r.sessions {
		if key.ContainerID == containerID {
			doomed = append(doomed, rec.sess)
			delete(r.sessions, key)
		}
	}
	delete(r.initStatus, containerID)
	r.stats.Gauge("active_sessions").Update(float64(len(r.sessions)))
	r.mu.Unlock()

	for _, sess := range doomed {
		if err := sess.Shutdown(ctx); err != nil {
			r.logger.Warnw("shutting down session", "container", containerID, "error", err)
		}
	}
	return nil
}

// List returns the tracked sessions with live state overlaid on the stored
// identity records.
func (r *repository) List(ctx context.Context) ([]*entity.ProxySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*entity.ProxySession, 0, len(r.sessions))
	for _, rec := range r.sessions {
		e, err := mapper.ModelToSession(rec.model)
		if err != nil {
			continue
		}
		e.State = rec.sess.Snapshot().State
		out = append(out, e)
	}
	return out, nil
}

// Snapshots returns the read-only introspection view of every session.
func (r *repository) Snapshots(ctx context.Context) []entity.SessionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entity.SessionSnapshot, 0, len(r.sessions))
	for _, rec := range r.sessions {
		out = append(out, rec.sess.Snapshot())
	}
	return out
}

// SessionCount returns the total count of active sessions.
func (r *repository) SessionCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions), nil
}

// InitStatus reports the container's creation gate state.
func (r *repository) InitStatus(ctx context.Context, containerID string) entity.InitStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.initStatus[containerID]
}
