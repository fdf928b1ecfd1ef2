// Package strategy decides, per language server, between direct and proxied
// integration and assembles the editor-facing client configuration.
package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/fs"
)

const (
	// Configuration keys
	_configKeyStrategy = "strategy"

	_defaultContainerRoot = "/workspace"
	_shortContainerIDLen  = 12
)

// Controller selects the integration strategy for each language server.
type Controller interface {
	// Select resolves the strategy for one (server, container) pair. The
	// result is cached and re-evaluated only when the container identity or
	// the policy table changes, not on every buffer event.
	Select(ctx context.Context, serverName, containerID, hostRoot string) (entity.Strategy, error)
	// ServerCommand returns the command line run inside the container for
	// the server.
	ServerCommand(serverName string) []string
	// Mapping builds the session path mapping for a host workspace root.
	Mapping(hostRoot string) (entity.PathMapping, error)
}

// Config is the strategy section of the service configuration.
type Config struct {
	Default       entity.StrategyKind            `yaml:"default"`
	ContainerRoot string                         `yaml:"containerRoot"`
	RelayCommand  []string                       `yaml:"relayCommand"`
	PolicyFile    string                         `yaml:"policyFile"`
	Servers       map[string]entity.ServerPolicy `yaml:"servers"`
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Provider
	Logger    *zap.SugaredLogger
	FS        fs.ProxyFS
}

type controller struct {
	mu       sync.Mutex
	cfg      Config
	selected map[selectionKey]entity.Strategy
	logger   *zap.SugaredLogger
	fs       fs.ProxyFS
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

type selectionKey struct {
	serverName  string
	containerID string
}

// New constructs the strategy controller and, when a policy file is
// configured, starts watching it for live reload.
func New(p Params) (Controller, error) {
	var cfg Config
	if err := p.Config.Get(_configKeyStrategy).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyStrategy, err)
	}
	if cfg.Default == "" {
		// Proxied is the safe default: servers that resolve module graphs
		// from their workspace root break silently under a root mismatch.
		cfg.Default = entity.StrategyProxied
	}
	if cfg.ContainerRoot == "" {
		cfg.ContainerRoot = _defaultContainerRoot
	}
	if len(cfg.RelayCommand) == 0 {
		cfg.RelayCommand = []string{"lsproxy", "relay"}
	}

	c := &controller{
		cfg:      cfg,
		selected: make(map[selectionKey]entity.Strategy),
		logger:   p.Logger,
		fs:       p.FS,
		done:     make(chan struct{}),
	}

	if cfg.PolicyFile != "" {
		if err := c.loadPolicyFile(cfg.PolicyFile); err != nil {
			p.Logger.Warnw("initial policy file load failed", "path", cfg.PolicyFile, "error", err)
		}
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error { return c.startWatcher(cfg.PolicyFile) },
			OnStop:  func(ctx context.Context) error { return c.stopWatcher() },
		})
	}

	return c, nil
}

// Select consults the per-server policy table, falling back to the default.
func (c *controller) Select(ctx context.Context, serverName, containerID, hostRoot string) (entity.Strategy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := selectionKey{serverName: serverName, containerID: containerID}
	if st, ok := c.selected[key]; ok {
		return st, nil
	}

	kind := c.cfg.Default
	if policy, ok := c.cfg.Servers[serverName]; ok && policy.Strategy != "" {
		kind = policy.Strategy
	}

	st := entity.Strategy{Kind: kind}
	if kind == entity.StrategyProxied {
		root, err := c.resolveRootLocked(hostRoot)
		if err != nil {
			return entity.Strategy{}, err
		}
		command := append([]string{}, c.cfg.RelayCommand...)
		command = append(command,
			"--container", containerID,
			"--server", serverName,
			"--root", root,
		)
		st.Client = &entity.ClientConfig{
			Command:    command,
			RootDir:    root,
			ClientName: clientName(serverName, containerID),
		}
	}

	c.selected[key] = st
	c.logger.Infow("strategy selected", "server", serverName, "container", containerID, "kind", st.Kind)
	return st, nil
}

// ServerCommand returns the configured in-container command, defaulting to
// the bare server name.
func (c *controller) ServerCommand(serverName string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if policy, ok := c.cfg.Servers[serverName]; ok && len(policy.Command) > 0 {
		return append([]string{}, policy.Command...)
	}
	return []string{serverName}
}

// Mapping pairs the resolved host root with the container's fixed workspace
// mount point.
func (c *controller) Mapping(hostRoot string) (entity.PathMapping, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	root, err := c.resolveRootLocked(hostRoot)
	if err != nil {
		return entity.PathMapping{}, err
	}
	return entity.NewPathMapping(root, c.cfg.ContainerRoot)
}

// resolveRootLocked falls back to the enclosing repository root when the
// caller did not supply one.
func (c *controller) resolveRootLocked(hostRoot string) (string, error) {
	if hostRoot != "" {
		return hostRoot, nil
	}
	root, err := c.fs.WorkspaceRoot(".")
	if err != nil {
		return "", fmt.Errorf("resolving workspace root: %w", err)
	}
	return root, nil
}

// loadPolicyFile replaces the server policy table from the override file
// and invalidates cached selections.
func (c *controller) loadPolicyFile(path string) error {
	data, err := c.fs.ReadFile(path)
	if err != nil {
		return err
	}
	var servers map[string]entity.ServerPolicy
	if err := yaml.Unmarshal(data, &servers); err != nil {
		return fmt.Errorf("parsing policy file %q: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Servers = servers
	c.selected = make(map[selectionKey]entity.Strategy)
	c.logger.Infow("strategy policy reloaded", "path", path, "servers", len(servers))
	return nil
}

func (c *controller) startWatcher(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	c.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					if err := c.loadPolicyFile(path); err != nil {
						c.logger.Warnw("policy reload failed", "path", path, "error", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warnw("policy watcher error", "error", err)
			case <-c.done:
				return
			}
		}
	}()
	return nil
}

func (c *controller) stopWatcher() error {
	close(c.done)
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

func clientName(serverName, containerID string) string {
	short := containerID
	if len(short) > _shortContainerIDLen {
		short = short[:_shortContainerIDLen]
	}
	return fmt.Sprintf("%s-%s", serverName, short)
}
