// Package factory provides user-defined factories for test data.
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/wire"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// SessionKey is a factory for a session key with a distinguishable id.
func SessionKey(id int) entity.SessionKey {
	return entity.SessionKey{
		ContainerID: fmt.Sprintf("container-%04d", id),
		ServerName:  "gopls",
	}
}

// PathMapping is a factory for a typical host/container mapping.
func PathMapping() entity.PathMapping {
	return entity.PathMapping{
		HostRoot:      "/home/user/project",
		ContainerRoot: "/workspace",
	}
}

// JSONRPCRequest is a user-defined factory for a JSON-RPC request containing the specified method and parameters.
func JSONRPCRequest(method string, params interface{}) jsonrpc2.Request {
	req, _ := jsonrpc2.NewCall(jsonrpc2.NewNumberID(5), method, params)
	return req
}

// Request is a factory for a wire request message.
func Request(id int, method string, params interface{}) wire.Message {
	raw, _ := json.Marshal(params)
	return wire.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(fmt.Sprintf("%d", id)),
		Method:  method,
		Params:  raw,
	}
}

// Notification is a factory for a wire notification message.
func Notification(method string, params interface{}) wire.Message {
	raw, _ := json.Marshal(params)
	return wire.Message{
		JSONRPC: "2.0",
		Method:  method,
		Params:  raw,
	}
}

// Response is a factory for a wire response message.
func Response(id int, result interface{}) wire.Message {
	raw, _ := json.Marshal(result)
	return wire.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(fmt.Sprintf("%d", id)),
		Result:  raw,
	}
}
