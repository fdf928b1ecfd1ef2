package wire

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func frame(payload string) []byte {
	return []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(payload), payload))
}

func TestEncode(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		m := Message{
			ID:     []byte("1"),
			Method: "initialize",
			Params: []byte(`{"rootUri":"file:///home/user/project"}`),
		}
		out, err := Encode(&m)
		require.NoError(t, err)
		assert.Equal(t, string(frame(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"rootUri":"file:///home/user/project"}}`)), string(out))
	})

	t.Run("fills in version", func(t *testing.T) {
		m := Message{Method: "exit"}
		out, err := Encode(&m)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"jsonrpc":"2.0"`)
	})
}

func TestDecodeSingleFrame(t *testing.T) {
	d := NewDecoder()
	msgs := d.Feed(frame(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	require.Len(t, msgs, 1)
	assert.Equal(t, KindRequest, msgs[0].Kind())
	assert.Equal(t, "initialize", msgs[0].Method)
	assert.Equal(t, "1", msgs[0].IDKey())
	assert.Zero(t, d.Buffered())
}

func TestDecodeSplitAcrossReads(t *testing.T) {
	payload := `{"jsonrpc":"2.0","id":7,"result":{"capabilities":{}}}`
	full := frame(payload)

	for split := 1; split < len(full); split++ {
		d := NewDecoder()
		msgs := d.Feed(full[:split])
		assert.Empty(t, msgs, "no message should surface before the frame completes (split %d)", split)
		msgs = d.Feed(full[split:])
		require.Len(t, msgs, 1, "split %d", split)
		assert.Equal(t, KindResponse, msgs[0].Kind())
		assert.Zero(t, d.Buffered())
	}
}

func TestDecodeBatchedFrames(t *testing.T) {
	d := NewDecoder()
	input := append(frame(`{"jsonrpc":"2.0","method":"initialized","params":{}}`), frame(`{"jsonrpc":"2.0","id":2,"method":"shutdown"}`)...)
	input = append(input, frame(`{"jsonrpc":"2.0","method":"exit"}`)...)

	msgs := d.Feed(input)
	require.Len(t, msgs, 3)
	assert.Equal(t, KindNotification, msgs[0].Kind())
	assert.Equal(t, KindRequest, msgs[1].Kind())
	assert.Equal(t, "exit", msgs[2].Method)
}

func TestDecodeZeroLengthFeed(t *testing.T) {
	d := NewDecoder()
	assert.Nil(t, d.Feed(nil))
	assert.Nil(t, d.Feed([]byte{}))
}

func TestDecodeInvalidPayload(t *testing.T) {
	var errs []error
	d := NewDecoder(WithErrorHandler(func(err error) { errs = append(errs, err) }))

	input := append(frame(`{"jsonrpc":`), frame(`{"jsonrpc":"2.0","id":3,"result":null}`)...)
	msgs := d.Feed(input)

	require.Len(t, msgs, 1, "the stream must recover after one corrupt payload")
	assert.Equal(t, "3", msgs[0].IDKey())
	require.Len(t, errs, 1)
	var fe *FramingError
	require.ErrorAs(t, errs[0], &fe)
	assert.Contains(t, fe.Reason, "invalid payload")
}

func TestDecodeMalformedHeader(t *testing.T) {
	var errs []error
	d := NewDecoder(WithErrorHandler(func(err error) { errs = append(errs, err) }))

	input := []byte("Content-Length: nonsense\r\n\r\n")
	input = append(input, frame(`{"jsonrpc":"2.0","method":"exit"}`)...)
	msgs := d.Feed(input)

	require.Len(t, msgs, 1)
	assert.Equal(t, "exit", msgs[0].Method)
	require.NotEmpty(t, errs)
}

func TestDecodeResyncOnGarbage(t *testing.T) {
	var errs []error
	d := NewDecoder(WithErrorHandler(func(err error) { errs = append(errs, err) }))

	input := []byte("complete garbage with no headers\r\n\r\n")
	input = append(input, frame(`{"jsonrpc":"2.0","id":9,"method":"shutdown"}`)...)
	msgs := d.Feed(input)

	require.Len(t, msgs, 1)
	assert.Equal(t, "shutdown", msgs[0].Method)
	assert.NotEmpty(t, errs)
	assert.Zero(t, d.Buffered())
}

func TestDecodeHeaderCaseInsensitive(t *testing.T) {
	payload := `{"jsonrpc":"2.0","method":"exit"}`
	d := NewDecoder()
	msgs := d.Feed([]byte(fmt.Sprintf("content-length: %d\r\n\r\n%s", len(payload), payload)))
	require.Len(t, msgs, 1)
}

func TestDecodeExtraHeaders(t *testing.T) {
	payload := `{"jsonrpc":"2.0","method":"exit"}`
	d := NewDecoder()
	input := fmt.Sprintf("Content-Type: application/vscode-jsonrpc; charset=utf-8\r\nContent-Length: %d\r\n\r\n%s", len(payload), payload)
	msgs := d.Feed([]byte(input))
	require.Len(t, msgs, 1)
	assert.Equal(t, "exit", msgs[0].Method)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Message{
		ID:     []byte(`"abc"`),
		Method: "textDocument/definition",
		Params: []byte(`{"textDocument":{"uri":"file:///workspace/main.go"}}`),
	}
	raw, err := Encode(&in)
	require.NoError(t, err)

	d := NewDecoder()
	msgs := d.Feed(raw)
	require.Len(t, msgs, 1)
	assert.Equal(t, in.Method, msgs[0].Method)
	assert.Equal(t, `"abc"`, msgs[0].IDKey())
	assert.JSONEq(t, string(in.Params), string(msgs[0].Params))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
