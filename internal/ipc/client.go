package ipc

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"

	"github.com/berrythewa/pwrepl/internal/config"
	"go.uber.org/zap"
)

const readBufferSize = 64 * 1024

// DialFunc opens the underlying stream connection.
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

// Options holds the optional collaborators of a Client.
type Options struct {
	Logger *zap.Logger

	// OnError receives I/O errors of an established connection. Expected
	// closes (EOF, broken pipe, reset) are never reported.
	OnError func(error)

	// OnClose is called once per connection after it has been torn down.
	OnClose func()

	// Dial replaces the default unix-socket dialer.
	Dial DialFunc
}

type callResult struct {
	result json.RawMessage
	err    error
}

// connection is one generation of the underlying socket.
type connection struct {
	conn      net.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *connection) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(data)
	return err
}

// Client is a persistent, single-connection request/response channel to the
// backend. Requests are correlated to responses by id; ids are unique for the
// lifetime of the Client, across reconnects.
type Client struct {
	address string
	version string
	logger  *zap.Logger
	dial    DialFunc
	onError func(error)
	onClose func()

	nextID atomic.Uint64

	mu      sync.Mutex
	conn    *connection
	pending map[uint64]chan callResult
}

// NewClient creates a client for cfg.Socket. It does not connect.
func NewClient(cfg *config.Config, opts Options) *Client {
	c := &Client{
		address: cfg.Socket,
		version: cfg.ProtocolVersion,
		logger:  opts.Logger,
		dial:    opts.Dial,
		onError: opts.OnError,
		onClose: opts.OnClose,
		pending: make(map[uint64]chan callResult),
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.dial == nil {
		c.dial = dialUnix
	}
	return c
}

func dialUnix(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", address)
}

// Address returns the socket address this client dials.
func (c *Client) Address() string {
	return c.address
}

// Connect establishes the connection. It is a no-op when already connected
// and may be called again after a failure or Close.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if connected {
		return nil
	}

	nc, err := c.dial(ctx, c.address)
	if err != nil {
		return &ConnectionError{Address: c.address, Err: err}
	}

	conn := &connection{conn: nc}
	c.mu.Lock()
	if c.conn != nil {
		// lost a race with a concurrent Connect
		c.mu.Unlock()
		_ = nc.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Debug("Connected to backend", zap.String("address", c.address))
	go c.readLoop(conn)
	return nil
}

// Connected reports whether a connection is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Pending returns the number of calls awaiting a response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Call sends method/params and waits for the matching response. It waits
// indefinitely unless ctx is cancelled or the connection closes.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	id := c.nextID.Add(1)
	ch := make(chan callResult, 1)
	// registered before the write so a fast response always finds its caller
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := encodeRecord(&Request{ID: id, Method: method, Params: params, Version: c.version})
	if err != nil {
		c.forget(id)
		return nil, &TransportError{Op: "marshal", Err: err}
	}

	if err := conn.write(data); err != nil {
		c.forget(id)
		if IsExpectedClose(err) {
			c.shutdown(conn, nil)
		}
		// a close that raced the write has already failed this call
		select {
		case res := <-ch:
			return res.result, res.err
		default:
		}
		return nil, &TransportError{Op: "write", Err: err}
	}
	c.logger.Debug("Request sent", zap.Uint64("id", id), zap.String("method", method))

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close releases the connection and fails outstanding calls with ErrConnectionClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return c.shutdown(conn, nil)
}

// shutdown tears conn down exactly once, however many paths race to it.
func (c *Client) shutdown(conn *connection, cause error) error {
	var closeErr error
	conn.closeOnce.Do(func() {
		closeErr = conn.conn.Close()

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		pending := c.pending
		c.pending = make(map[uint64]chan callResult)
		c.mu.Unlock()

		for _, ch := range pending {
			ch <- callResult{err: ErrConnectionClosed}
		}

		if cause != nil && !IsExpectedClose(cause) {
			c.logger.Warn("Backend connection failed", zap.Error(cause))
			if c.onError != nil {
				c.onError(cause)
			}
		}
		c.logger.Debug("Backend connection closed", zap.Int("failed_calls", len(pending)))
		if c.onClose != nil {
			c.onClose()
		}
	})
	return closeErr
}

func (c *Client) readLoop(conn *connection) {
	var framer Framer
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.conn.Read(buf)
		if n > 0 {
			for _, record := range framer.Feed(buf[:n]) {
				c.deliver(record)
			}
		}
		if err != nil {
			c.shutdown(conn, err)
			return
		}
	}
}

// deliver completes the pending call a record answers. Malformed records and
// responses nobody waits for are dropped.
func (c *Client) deliver(record []byte) {
	resp, err := decodeResponse(record)
	if err != nil {
		c.logger.Debug("Dropping malformed record", zap.Error(err), zap.Int("size", len(record)))
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("Dropping unmatched response", zap.Uint64("id", resp.ID))
		return
	}
	if resp.Error != "" {
		ch <- callResult{err: &RemoteError{Message: resp.Error}}
		return
	}
	ch <- callResult{result: resp.Result}
}
