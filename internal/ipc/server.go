package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Handler answers one request. A non-nil error is sent back as the response's error string.
type Handler interface {
	Handle(ctx context.Context, req *Request) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (any, error) { return f(ctx, req) }

// ListenAndServe listens on socketPath and serves the line protocol until ctx is done.
func ListenAndServe(ctx context.Context, socketPath string, h Handler, logger *zap.Logger) error {
	// Remove any stale socket
	_ = os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	defer os.Remove(socketPath)
	return Serve(ctx, ln, h, logger)
}

// Serve accepts connections on ln and answers newline-delimited requests.
// Requests on one connection are handled in order. It returns when ctx is
// done or the listener fails; ln is always closed on return.
func Serve(ctx context.Context, ln net.Listener, h Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(ctx, conn, h, logger)
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, h Handler, logger *zap.Logger) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var framer Framer
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		for _, record := range framer.Feed(buf[:n]) {
			var req Request
			if err := json.Unmarshal(record, &req); err != nil || req.ID == 0 {
				logger.Debug("Ignoring malformed request", zap.Int("size", len(record)))
				continue
			}

			resp := Response{ID: req.ID, Version: req.Version}
			result, herr := h.Handle(ctx, &req)
			if herr != nil {
				resp.Error = herr.Error()
			} else if result != nil {
				raw, merr := json.Marshal(result)
				if merr != nil {
					resp.Error = "internal error: " + merr.Error()
				} else {
					resp.Result = raw
				}
			}

			data, _ := encodeRecord(&resp)
			if _, werr := conn.Write(data); werr != nil {
				if !IsExpectedClose(werr) {
					logger.Warn("Failed to write response", zap.Error(werr))
				}
				return
			}
		}
		if err != nil {
			if !IsExpectedClose(err) {
				logger.Debug("Connection read failed", zap.Error(err))
			}
			return
		}
	}
}
