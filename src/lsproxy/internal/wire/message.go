// Package wire implements the header-delimited JSON-RPC message stream
// used on both the editor-facing and server-facing channels.
package wire

import (
	"bytes"
	"encoding/json"
)

// Kind distinguishes the three JSON-RPC message shapes.
type Kind int

const (
	// KindInvalid indicates a message with neither id nor method.
	KindInvalid Kind = iota
	// KindRequest is a call expecting exactly one response with the same id.
	KindRequest
	// KindResponse carries the result or error for a previously sent request.
	KindResponse
	// KindNotification is a call with no response.
	KindNotification
)

// Message is a single JSON-RPC 2.0 envelope. Params, Result and ID are kept
// raw so the proxy stays transparent to payloads it does not rewrite.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error member of a response message.
type ResponseError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Kind derives the message shape from the populated fields.
func (m *Message) Kind() Kind {
	hasID := len(m.ID) > 0 && !bytes.Equal(m.ID, []byte("null"))
	switch {
	case m.Method != "" && hasID:
		return KindRequest
	case m.Method != "":
		return KindNotification
	case hasID:
		return KindResponse
	default:
		return KindInvalid
	}
}

// IDKey returns a comparable form of the message id, usable as a map key.
// String and number ids that render identically remain distinct.
func (m *Message) IDKey() string {
	return string(m.ID)
}
