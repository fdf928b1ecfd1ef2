package entity

// ClientConfigRequest asks the daemon how an editor should integrate one
// language server for one container.
type ClientConfigRequest struct {
	Server    string `json:"server"`
	Container string `json:"container"`
	// HostRoot optionally pins the host workspace root. When empty, the
	// daemon resolves the enclosing repository root itself.
	HostRoot string `json:"hostRoot,omitempty"`
}

// TeardownContainerRequest asks the daemon to shut down every session that
// belongs to a single container.
type TeardownContainerRequest struct {
	Container string `json:"container"`
}
