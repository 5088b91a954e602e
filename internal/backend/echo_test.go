package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/berrythewa/pwrepl/internal/config"
	"github.com/berrythewa/pwrepl/internal/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRequest(version string, args map[string]any) *ipc.Request {
	return &ipc.Request{
		ID:      1,
		Method:  ipc.MethodRun,
		Version: version,
		Params:  ipc.RunParams{Args: args, Cwd: "/work"},
	}
}

func TestEcho(t *testing.T) {
	e := NewEcho("1.0", nil)
	ctx := context.Background()

	t.Run("EchoesCommandAndFlags", func(t *testing.T) {
		res, err := e.Handle(ctx, runRequest("1.0", map[string]any{
			"_":       []string{"fill", "e7", "hello world"},
			"submit":  true,
			"timeout": 500,
		}))
		require.NoError(t, err)
		assert.Equal(t, ipc.RunResult{Text: "### Result\nfill e7 hello world\n### Flags\n--submit=true\n--timeout=500\n### Workspace\n/work"}, res)
	})

	t.Run("FailCommand", func(t *testing.T) {
		_, err := e.Handle(ctx, runRequest("1.0", map[string]any{"_": []string{"fail", "Unknown", "ref"}}))
		assert.EqualError(t, err, "failed: Unknown ref")
	})

	t.Run("VersionMismatch", func(t *testing.T) {
		_, err := e.Handle(ctx, runRequest("2.0", map[string]any{"_": []string{"snapshot"}}))
		assert.ErrorContains(t, err, "protocol version mismatch")
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		req := runRequest("1.0", nil)
		req.Method = "eval"
		_, err := e.Handle(ctx, req)
		assert.ErrorContains(t, err, `unknown method "eval"`)
	})

	t.Run("MissingCommand", func(t *testing.T) {
		_, err := e.Handle(ctx, runRequest("1.0", map[string]any{}))
		assert.EqualError(t, err, "missing command")
	})

	assert.Equal(t, int64(1), e.Served())
}

func TestEchoOverSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "pwe")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "e.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ipc.ListenAndServe(ctx, socket, NewEcho(config.DefaultProtocolVersion, nil), nil) }()
	defer func() {
		cancel()
		<-done
	}()

	cfg := &config.Config{Socket: socket, Workspace: "/work", ProtocolVersion: config.DefaultProtocolVersion}
	client := ipc.NewClient(cfg, ipc.Options{})
	defer client.Close()
	require.Eventually(t, func() bool { return client.Connect(ctx) == nil }, 5*time.Second, 10*time.Millisecond)

	raw, err := client.Call(ctx, ipc.MethodRun, ipc.RunParams{Args: map[string]any{"_": []string{"snapshot"}}})
	require.NoError(t, err)
	assert.Equal(t, "### Result\nsnapshot", ipc.DecodeRunResult(raw))

	_, err = client.Call(ctx, ipc.MethodRun, ipc.RunParams{Args: map[string]any{"_": []string{"fail", "boom"}}})
	var remote *ipc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "failed: boom", remote.Message)
}
