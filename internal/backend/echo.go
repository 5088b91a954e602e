// Package backend holds a stand-in automation backend that answers the REPL
// protocol without a browser. It is used by pwrepl-echo for trying the client
// and by tests that need a real socket peer.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/berrythewa/pwrepl/internal/ipc"
	"go.uber.org/zap"
)

// Echo answers every run request with the command it received.
type Echo struct {
	version string
	logger  *zap.Logger
	served  atomic.Int64
}

// NewEcho creates an Echo that accepts requests for protocol version.
// An empty version accepts any.
func NewEcho(version string, logger *zap.Logger) *Echo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Echo{version: version, logger: logger}
}

// Served returns how many requests were answered successfully.
func (e *Echo) Served() int64 { return e.served.Load() }

// Handle implements ipc.Handler.
func (e *Echo) Handle(ctx context.Context, req *ipc.Request) (any, error) {
	if e.version != "" && req.Version != e.version {
		return nil, fmt.Errorf("protocol version mismatch: client %q, backend %q", req.Version, e.version)
	}
	if req.Method != ipc.MethodRun {
		return nil, fmt.Errorf("unknown method %q", req.Method)
	}

	p, err := req.DecodeRunParams()
	if err != nil {
		return nil, err
	}
	words := p.Positional()
	if len(words) == 0 {
		return nil, errors.New("missing command")
	}
	e.logger.Debug("Run", zap.Uint64("id", req.ID), zap.Strings("args", words), zap.String("cwd", p.Cwd))

	if words[0] == "fail" {
		return nil, errors.New(strings.Join(append([]string{"failed:"}, words[1:]...), " "))
	}

	e.served.Add(1)
	return ipc.RunResult{Text: render(words, p)}, nil
}

func render(words []string, p *ipc.RunParams) string {
	var b strings.Builder
	b.WriteString("### Result\n")
	b.WriteString(strings.Join(words, " "))

	var flags []string
	for k, v := range p.Args {
		if k == "_" {
			continue
		}
		flags = append(flags, fmt.Sprintf("--%s=%v", k, v))
	}
	if len(flags) > 0 {
		sort.Strings(flags)
		b.WriteString("\n### Flags\n")
		b.WriteString(strings.Join(flags, "\n"))
	}
	if p.Cwd != "" {
		b.WriteString("\n### Workspace\n")
		b.WriteString(p.Cwd)
	}
	return b.String()
}
