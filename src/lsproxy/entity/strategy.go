package entity

// StrategyKind distinguishes direct from proxied integration.
type StrategyKind string

const (
	// StrategyDirect means the editor talks straight to the in-container process, no rewriting.
	StrategyDirect StrategyKind = "direct"
	// StrategyProxied means the editor talks to the process only through the translation layer.
	StrategyProxied StrategyKind = "proxied"
)

// ClientConfig is the editor-facing configuration produced for a proxied server.
type ClientConfig struct {
	// Command is the command line the editor should treat as the language server.
	Command []string `json:"command"`
	// RootDir is the host-side root directory the editor should advertise.
	RootDir string `json:"rootDir"`
	// ClientName uniquely names this client to avoid collision with a
	// non-containerized instance of the same server.
	ClientName string `json:"clientName"`
}

// Strategy is the outcome of strategy selection for one (server, container) pair.
type Strategy struct {
	Kind   StrategyKind  `json:"kind"`
	Client *ClientConfig `json:"client,omitempty"`
}

// ServerPolicy configures the integration strategy for a single language server.
type ServerPolicy struct {
	Strategy StrategyKind `yaml:"strategy"`
	// Command overrides the language server command line run inside the container.
	Command []string `yaml:"command"`
}
