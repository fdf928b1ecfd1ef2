// Package entity contains the domain types for the lsproxy daemon.
package entity

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

type keyType string

// SessionContextKey indicates the key to be used to identify the session key in the context.
const SessionContextKey keyType = "SessionKey"

// SessionState describes the lifecycle state of a proxy session.
type SessionState string

const (
	// StateStarting indicates the subprocess has been requested but the handshake has not completed.
	StateStarting SessionState = "starting"
	// StateReady indicates the subprocess is alive and the first handshake has completed.
	StateReady SessionState = "ready"
	// StateDegraded indicates an I/O error or unexpected subprocess exit occurred.
	StateDegraded SessionState = "degraded"
	// StateStopped indicates the session was shut down and must not be reused.
	StateStopped SessionState = "stopped"
)

// InitStatus guards concurrent session-creation attempts for a single container.
type InitStatus int

const (
	// InitNone means no creation attempt has been made for this container.
	InitNone InitStatus = iota
	// InitInProgress means a creation attempt is currently in flight.
	InitInProgress
	// InitCompleted means a creation attempt settled successfully.
	InitCompleted
)

// SessionKey identifies at most one live session per container and language server.
type SessionKey struct {
	ContainerID string `json:"containerId" zap:"containerId"`
	ServerName  string `json:"serverName" zap:"serverName"`
}

// String implements fmt.Stringer.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s", k.ContainerID, k.ServerName)
}

// PathMapping is the immutable host-root/container-root pair used for prefix rewriting.
// Both roots are absolute paths without trailing separators.
type PathMapping struct {
	HostRoot      string `json:"hostRoot" yaml:"hostRoot"`
	ContainerRoot string `json:"containerRoot" yaml:"containerRoot"`
}

// NewPathMapping normalizes both roots and returns the resulting mapping.
func NewPathMapping(hostRoot, containerRoot string) (PathMapping, error) {
	hostRoot = normalizeRoot(hostRoot)
	containerRoot = normalizeRoot(containerRoot)
	if !path.IsAbs(hostRoot) || !path.IsAbs(containerRoot) {
		return PathMapping{}, fmt.Errorf("path mapping roots must be absolute: %q, %q", hostRoot, containerRoot)
	}
	return PathMapping{HostRoot: hostRoot, ContainerRoot: containerRoot}, nil
}

func normalizeRoot(p string) string {
	if p == "" {
		return p
	}
	p = path.Clean(p)
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// ProxySession represents one live translation/relay context for one
// language server inside one container.
type ProxySession struct {
	UUID      uuid.UUID    `json:"uuid" zap:"uuid"`
	Key       SessionKey   `json:"key" zap:"key"`
	Mapping   PathMapping  `json:"mapping" zap:"mapping"`
	State     SessionState `json:"state" zap:"state"`
	StartedAt time.Time    `json:"startedAt" zap:"startedAt"`
}

// SessionSnapshot is the read-only introspection view of a session.
type SessionSnapshot struct {
	ContainerID  string        `json:"containerId"`
	ServerName   string        `json:"serverName"`
	State        SessionState  `json:"state"`
	PendingCount int           `json:"pendingCount"`
	Uptime       time.Duration `json:"uptime"`
}
