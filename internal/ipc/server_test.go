package ipc

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_AnswersInOrderAndEchoesVersion(t *testing.T) {
	path := startServer(t, HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		return RunResult{Text: req.Method}, nil
	}))

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	// two requests in one write, plus a malformed line the server must skip
	_, err = conn.Write([]byte("{\"id\":1,\"method\":\"a\",\"version\":\"v\"}\ngarbage\n{\"id\":2,\"method\":\"b\",\"version\":\"v\"}\n"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f Framer
	var records [][]byte
	buf := make([]byte, 1024)
	for len(records) < 2 {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		records = append(records, f.Feed(buf[:n])...)
	}

	var first, second Response
	require.NoError(t, json.Unmarshal(records[0], &first))
	require.NoError(t, json.Unmarshal(records[1], &second))
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, "v", first.Version)
	assert.Equal(t, "a", DecodeRunResult(first.Result))
	assert.Equal(t, uint64(2), second.ID)
	assert.Equal(t, "b", DecodeRunResult(second.Result))
}

func TestServe_StopsWithContext(t *testing.T) {
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, HandlerFunc(func(context.Context, *Request) (any, error) { return nil, nil }), nil) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestRequest_DecodeRunParams(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"method":"run","params":{"args":{"_":["fill","e7","hello world"],"submit":true},"cwd":"/w"},"version":"1.0"}`), &req))

	p, err := req.DecodeRunParams()
	require.NoError(t, err)
	assert.Equal(t, "/w", p.Cwd)
	assert.Equal(t, []string{"fill", "e7", "hello world"}, p.Positional())
	assert.Equal(t, true, p.Args["submit"])

	local := RunParams{Args: map[string]any{"_": []string{"snapshot"}}}
	assert.Equal(t, []string{"snapshot"}, local.Positional())
}
