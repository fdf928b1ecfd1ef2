// Package translate rewrites filesystem paths and file URIs between the
// host-side and container-side views of a workspace. Rewriting happens at
// the protocol-message level only; nothing on disk is virtualized.
package translate

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

// Direction names the side a payload is being rewritten toward.
type Direction int

const (
	// ToContainer rewrites host paths to their container equivalents.
	ToContainer Direction = iota
	// ToHost rewrites container paths to their host equivalents.
	ToHost
)

// Translator applies prefix substitution for one PathMapping. Both
// directions are pure, total, and idempotent: a value already in the target
// form passes through unchanged, as does any path outside the mapping.
type Translator struct {
	mapping entity.PathMapping
	logger  *zap.SugaredLogger
}

// Option customizes a Translator.
type Option func(*Translator)

// WithLogger overrides the default noop logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(t *Translator) {
		t.logger = logger
	}
}

// New creates a Translator for the given mapping.
func New(mapping entity.PathMapping, opts ...Option) *Translator {
	t := &Translator{
		mapping: mapping,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Mapping returns the mapping this translator was built from.
func (t *Translator) Mapping() entity.PathMapping {
	return t.mapping
}

// ToContainer rewrites every path-shaped string in the value from host form
// to container form. Values that fail to parse are returned unchanged;
// forwarding a stale path is preferable to dropping a message.
func (t *Translator) ToContainer(v json.RawMessage) json.RawMessage {
	return t.walkRaw(v, ToContainer)
}

// ToHost rewrites every path-shaped string in the value from container form
// to host form.
func (t *Translator) ToHost(v json.RawMessage) json.RawMessage {
	return t.walkRaw(v, ToHost)
}

// Params rewrites the parameters of a request or notification. Methods with
// a declared field table are rewritten only at those fields, which keeps
// document text and other free-form strings untouched. Unknown methods fall
// back to the generic recursive walk.
func (t *Translator) Params(method string, params json.RawMessage, dir Direction) json.RawMessage {
	if len(params) == 0 {
		return params
	}
	paths, ok := methodPaths[method]
	if !ok {
		return t.walkRaw(params, dir)
	}

	var decoded interface{}
	if err := json.Unmarshal(params, &decoded); err != nil {
		t.logger.Debugw("passing through untranslatable params", "method", method, "error", err)
		return params
	}
	changed := false
	for _, p := range paths {
		if t.applyPath(decoded, p.segments(), dir) {
			changed = true
		}
	}
	if !changed {
		return params
	}
	out, err := json.Marshal(decoded)
	if err != nil {
		t.logger.Debugw("re-encoding translated params failed", "method", method, "error", err)
		return params
	}
	return out
}

// walkRaw decodes a value, rewrites it recursively, and re-encodes it only
// if something changed.
func (t *Translator) walkRaw(v json.RawMessage, dir Direction) json.RawMessage {
	if len(v) == 0 {
		return v
	}
	var decoded interface{}
	if err := json.Unmarshal(v, &decoded); err != nil {
		t.logger.Debugw("passing through untranslatable value", "error", err)
		return v
	}
	rewritten, changed := t.walk(decoded, dir)
	if !changed {
		return v
	}
	out, err := json.Marshal(rewritten)
	if err != nil {
		t.logger.Debugw("re-encoding translated value failed", "error", err)
		return v
	}
	return out
}

// walk traverses arrays and objects, rewriting any string recognized as a
// file URI or as a bare absolute path under the mapping root.
func (t *Translator) walk(v interface{}, dir Direction) (interface{}, bool) {
	switch val := v.(type) {
	case string:
		if s, ok := t.rewriteString(val, dir); ok {
			return s, true
		}
		return val, false
	case []interface{}:
		changed := false
		for i, item := range val {
			next, ok := t.walk(item, dir)
			if ok {
				val[i] = next
				changed = true
			}
		}
		return val, changed
	case map[string]interface{}:
		changed := false
		for k, item := range val {
			next, ok := t.walk(item, dir)
			if ok {
				val[k] = next
				changed = true
			}
			// WorkspaceEdit.changes and friends key objects by document URI.
			if strings.HasPrefix(k, "file://") {
				if mapped, ok := t.rewriteString(k, dir); ok {
					delete(val, k)
					val[mapped] = next
					changed = true
				}
			}
		}
		return val, changed
	default:
		return v, false
	}
}

// rewriteString maps one string value. Only file URIs and absolute paths
// under the source root are rewritten; everything else, including other URI
// schemes and paths outside the mapping, passes through.
func (t *Translator) rewriteString(s string, dir Direction) (string, bool) {
	from, to := t.roots(dir)
	switch {
	case strings.HasPrefix(s, "file://"):
		u, err := url.Parse(s)
		if err != nil || u.Path == "" {
			return s, false
		}
		mapped, ok := mapPath(u.Path, from, to)
		if !ok {
			return s, false
		}
		return string(uri.File(mapped)), true
	case path.IsAbs(s):
		return mapPath(s, from, to)
	default:
		return s, false
	}
}

func (t *Translator) roots(dir Direction) (from string, to string) {
	if dir == ToContainer {
		return t.mapping.HostRoot, t.mapping.ContainerRoot
	}
	return t.mapping.ContainerRoot, t.mapping.HostRoot
}

// mapPath substitutes the root prefix on a path boundary. A path equal to
// the source root maps to the target root; a path merely sharing a string
// prefix without a separator boundary is never partially rewritten.
func mapPath(p, from, to string) (string, bool) {
	if from == "" || to == "" {
		return p, false
	}
	if p == from {
		return to, true
	}
	if strings.HasPrefix(p, from+"/") {
		return to + strings.TrimPrefix(p, from), true
	}
	return p, false
}

// applyPath navigates a decoded value along one field path and rewrites the
// string found at its end. Array segments fan out over every element.
func (t *Translator) applyPath(v interface{}, segs []segment, dir Direction) bool {
	if len(segs) == 0 {
		return false
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	cur, ok := obj[segs[0].name]
	if !ok || cur == nil {
		return false
	}

	if segs[0].array {
		arr, ok := cur.([]interface{})
		if !ok {
			return false
		}
		changed := false
		for i, item := range arr {
			if len(segs) == 1 {
				if s, ok := item.(string); ok {
					if mapped, ok := t.rewriteString(s, dir); ok {
						arr[i] = mapped
						changed = true
					}
				}
				continue
			}
			if t.applyPath(item, segs[1:], dir) {
				changed = true
			}
		}
		return changed
	}

	if len(segs) == 1 {
		s, ok := cur.(string)
		if !ok {
			return false
		}
		mapped, ok := t.rewriteString(s, dir)
		if !ok {
			return false
		}
		obj[segs[0].name] = mapped
		return true
	}
	return t.applyPath(cur, segs[1:], dir)
}

type fieldPath string

type segment struct {
	name  string
	array bool
}

func (p fieldPath) segments() []segment {
	parts := strings.Split(string(p), ".")
	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		if name, ok := strings.CutSuffix(part, "[]"); ok {
			segs = append(segs, segment{name: name, array: true})
			continue
		}
		segs = append(segs, segment{name: part})
	}
	return segs
}
