package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// Session is the repository layer model for a single proxy session.
// It records the immutable identity of the session; live state is owned
// by the session runtime and merged in at read time.
type Session struct {
	UUID          uuid.UUID
	ContainerID   string
	ServerName    string
	HostRoot      string
	ContainerRoot string
	State         string
	StartedAt     time.Time
}
