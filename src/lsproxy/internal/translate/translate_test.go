package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/goleak"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/factory"
)

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	return New(factory.PathMapping())
}

func TestParamsFieldTable(t *testing.T) {
	tr := newTranslator(t)

	t.Run("didOpen rewrites uri but not text", func(t *testing.T) {
		text := "package main\n// see /home/user/project/README.md\n"
		raw, err := json.Marshal(map[string]interface{}{
			"textDocument": map[string]interface{}{
				"uri":        "file:///home/user/project/main.go",
				"languageId": "go",
				"version":    1,
				"text":       text,
			},
		})
		require.NoError(t, err)

		out := tr.Params(protocol.MethodTextDocumentDidOpen, raw, ToContainer)

		var decoded struct {
			TextDocument struct {
				URI  string `json:"uri"`
				Text string `json:"text"`
			} `json:"textDocument"`
		}
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, "file:///workspace/main.go", decoded.TextDocument.URI)
		assert.Equal(t, text, decoded.TextDocument.Text, "document content must never be rewritten")
	})

	t.Run("initialize rewrites root fields", func(t *testing.T) {
		raw := json.RawMessage(`{"rootUri":"file:///home/user/project","rootPath":"/home/user/project","workspaceFolders":[{"uri":"file:///home/user/project","name":"project"}]}`)
		out := tr.Params(protocol.MethodInitialize, raw, ToContainer)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, "file:///workspace", decoded["rootUri"])
		assert.Equal(t, "/workspace", decoded["rootPath"])
		folders := decoded["workspaceFolders"].([]interface{})
		assert.Equal(t, "file:///workspace", folders[0].(map[string]interface{})["uri"])
	})

	t.Run("publishDiagnostics rewrites nested locations", func(t *testing.T) {
		raw := json.RawMessage(`{"uri":"file:///workspace/main.go","diagnostics":[{"message":"x","relatedInformation":[{"location":{"uri":"file:///workspace/other.go","range":{}},"message":"y"}]}]}`)
		out := tr.Params(protocol.MethodTextDocumentPublishDiagnostics, raw, ToHost)

		assert.Contains(t, string(out), "file:///home/user/project/main.go")
		assert.Contains(t, string(out), "file:///home/user/project/other.go")
	})

	t.Run("unchanged params are returned byte for byte", func(t *testing.T) {
		raw := json.RawMessage(`{"textDocument":{"uri":"file:///elsewhere/main.go"},  "position":{"line":1,"character":2}}`)
		out := tr.Params(protocol.MethodTextDocumentDefinition, raw, ToContainer)
		assert.Equal(t, string(raw), string(out), "a no-op translation must not reserialize")
	})

	t.Run("malformed params pass through", func(t *testing.T) {
		raw := json.RawMessage(`{"textDocument":`)
		out := tr.Params(protocol.MethodTextDocumentDidOpen, raw, ToContainer)
		assert.Equal(t, string(raw), string(out))
	})
}

func TestParamsGenericWalk(t *testing.T) {
	tr := newTranslator(t)

	t.Run("unknown method rewrites recursively", func(t *testing.T) {
		raw := json.RawMessage(`{"edit":{"documentChanges":[{"textDocument":{"uri":"file:///workspace/a.go","version":2},"edits":[]}]}}`)
		out := tr.Params("workspace/applyEdit", raw, ToHost)
		assert.Contains(t, string(out), "file:///home/user/project/a.go")
	})

	t.Run("uri-keyed objects are rekeyed", func(t *testing.T) {
		raw := json.RawMessage(`{"edit":{"changes":{"file:///workspace/a.go":[{"newText":"x","range":{}}]}}}`)
		out := tr.Params("workspace/applyEdit", raw, ToHost)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(out, &decoded))
		changes := decoded["edit"].(map[string]interface{})["changes"].(map[string]interface{})
		_, ok := changes["file:///home/user/project/a.go"]
		assert.True(t, ok, "workspace edit keys must be translated: %v", changes)
		_, stale := changes["file:///workspace/a.go"]
		assert.False(t, stale)
	})
}

func TestRewriteString(t *testing.T) {
	tr := newTranslator(t)

	tests := []struct {
		name    string
		in      string
		dir     Direction
		want    string
		changed bool
	}{
		{name: "uri to container", in: "file:///home/user/project/src/main.go", dir: ToContainer, want: "file:///workspace/src/main.go", changed: true},
		{name: "uri to host", in: "file:///workspace/src/main.go", dir: ToHost, want: "file:///home/user/project/src/main.go", changed: true},
		{name: "bare path", in: "/home/user/project/go.mod", dir: ToContainer, want: "/workspace/go.mod", changed: true},
		{name: "root itself", in: "/home/user/project", dir: ToContainer, want: "/workspace", changed: true},
		{name: "outside root", in: "/usr/lib/go/src/fmt", dir: ToContainer, want: "/usr/lib/go/src/fmt"},
		{name: "prefix without boundary", in: "/home/user/project2/main.go", dir: ToContainer, want: "/home/user/project2/main.go"},
		{name: "relative path", in: "src/main.go", dir: ToContainer, want: "src/main.go"},
		{name: "other scheme", in: "https://example.com/home/user/project", dir: ToContainer, want: "https://example.com/home/user/project"},
		{name: "already container form", in: "file:///workspace/main.go", dir: ToContainer, want: "file:///workspace/main.go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := tr.rewriteString(tt.in, tt.dir)
			assert.Equal(t, tt.changed, changed)
			if tt.changed {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Equal(t, tt.in, got)
			}
		})
	}
}

func TestRoundTripStability(t *testing.T) {
	tr := newTranslator(t)

	original := json.RawMessage(`{"textDocument":{"uri":"file:///home/user/project/main.go"},"position":{"line":10,"character":4}}`)
	toServer := tr.Params(protocol.MethodTextDocumentDefinition, original, ToContainer)
	backAgain := tr.Params(protocol.MethodTextDocumentDefinition, toServer, ToHost)

	assert.JSONEq(t, string(original), string(backAgain))
}

func TestIdempotence(t *testing.T) {
	tr := newTranslator(t)

	raw := json.RawMessage(`{"uri":"file:///home/user/project/a.go","path":"/home/user/project/b.go"}`)
	once := tr.ToContainer(raw)
	twice := tr.ToContainer(once)
	assert.Equal(t, string(once), string(twice))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
