package onewire

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default timeouts for owserver communication.
const (
	// defaultOwserverTimeout bounds a single request/response exchange.
	defaultOwserverTimeout = 10 * time.Second

	// defaultOwserverPort is the standard owserver listen port.
	defaultOwserverPort = 4304

	// ownetHeaderSize is the fixed size of an ownet protocol header.
	ownetHeaderSize = 24

	// maxOwnetPayload caps accepted response payloads. Directory listings
	// of even large buses stay far below this.
	maxOwnetPayload = 1 << 20

	// defaultReadSize is the buffer size requested for READ operations.
	defaultReadSize = 8192
)

// ownet message types.
const (
	msgNop      = 1
	msgRead     = 2
	msgWrite    = 3
	msgDir      = 4
	msgPresence = 6
	msgDirAll   = 7
)

// ownet flag bits.
const (
	// flagOwnet requests owserver semantics for the connection.
	flagOwnet = 0x00000100

	// flagPersistence asks the server to keep the connection open
	// between transactions. The grant is echoed in response flags.
	flagPersistence = 0x00000004
)

// ownetHeader is the fixed header preceding every ownet message.
// All fields are big-endian on the wire. In responses, ret carries the
// server return code (negative errno on failure).
type ownetHeader struct {
	version int32
	payload int32
	ret     int32
	flags   int32
	size    int32
	offset  int32
}

func (h ownetHeader) encode(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(h.version))
	binary.BigEndian.PutUint32(buf[4:8], uint32(h.payload))
	binary.BigEndian.PutUint32(buf[8:12], uint32(h.ret))
	binary.BigEndian.PutUint32(buf[12:16], uint32(h.flags))
	binary.BigEndian.PutUint32(buf[16:20], uint32(h.size))
	binary.BigEndian.PutUint32(buf[20:24], uint32(h.offset))
}

func parseOwnetHeader(buf []byte) ownetHeader {
	return ownetHeader{
		version: int32(binary.BigEndian.Uint32(buf[0:4])),
		payload: int32(binary.BigEndian.Uint32(buf[4:8])),
		ret:     int32(binary.BigEndian.Uint32(buf[8:12])),
		flags:   int32(binary.BigEndian.Uint32(buf[12:16])),
		size:    int32(binary.BigEndian.Uint32(buf[16:20])),
		offset:  int32(binary.BigEndian.Uint32(buf[20:24])),
	}
}

// OwserverConfig holds owserver connection configuration.
type OwserverConfig struct {
	// Host is the owserver hostname or IP.
	Host string

	// Port is the owserver TCP port. Default: 4304.
	Port int

	// Timeout bounds each request/response exchange. Default: 10 seconds.
	Timeout time.Duration
}

// OwserverStats holds operational statistics.
type OwserverStats struct {
	ReadsTotal      uint64
	DirsTotal       uint64
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	LastActivity    time.Time
	Connected       bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Owserver is the interface backends and readers use to talk to owserver.
// This allows mocking the client in tests.
type Owserver interface {
	// Dir lists the entries under a bus path. Device entries carry a
	// trailing slash, e.g. "/28.0316A279F7FF/".
	Dir(ctx context.Context, path string) ([]string, error)

	// Read returns the raw value of a bus attribute path.
	Read(ctx context.Context, path string) ([]byte, error)

	// IsConnected returns true if the client holds a live connection.
	IsConnected() bool

	// Stats returns operational statistics.
	Stats() OwserverStats
}

// Ensure OwserverClient implements Owserver.
var _ Owserver = (*OwserverClient)(nil)

// OwserverClient is a TCP client for the owserver (ownet) protocol.
//
// The ownet protocol is strictly request/response; all transactions are
// serialized through a single mutex. owserver closes non-persistent
// connections after each transaction, so the client requests the
// persistence flag and redials transparently when the server declines it
// or the connection drops.
//
// Thread Safety: all methods are safe for concurrent use.
type OwserverClient struct {
	cfg     OwserverConfig
	address string

	// Transaction serialization. conn is only touched while held.
	mu         sync.Mutex
	conn       net.Conn
	persistent bool

	// Connection state, readable without the transaction lock.
	connected atomic.Bool

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	readsTotal      atomic.Uint64
	dirsTotal       atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64 // Unix timestamp
}

// DialOwserver connects to an owserver instance.
//
// Parameters:
//   - ctx: Context for the initial connection
//   - cfg: Connection configuration
//
// Returns:
//   - *OwserverClient: Connected client ready for use
//   - error: If the initial connection fails
func DialOwserver(ctx context.Context, cfg OwserverConfig) (*OwserverClient, error) {
	if cfg.Port == 0 {
		cfg.Port = defaultOwserverPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOwserverTimeout
	}

	c := &OwserverClient{
		cfg:     cfg,
		address: net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dialLocked(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// dialLocked establishes the TCP connection. Caller must hold mu.
func (c *OwserverClient) dialLocked(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.address, err)
	}

	c.conn = conn
	c.persistent = false
	c.connected.Store(true)
	c.lastActivity.Store(time.Now().Unix())
	return nil
}

// closeLocked drops the connection. Caller must hold mu.
// connected is left alone; it tracks server reachability, not whether a
// socket happens to be open between non-persistent transactions.
func (c *OwserverClient) closeLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.persistent = false
}

// Dir lists the entries under a bus path using DIRALL.
//
// DIRALL returns the whole listing as one comma-separated payload, which
// avoids the per-entry round trips of the older DIR message. Device
// entries are returned with a trailing slash so attribute paths can be
// built by plain concatenation.
func (c *OwserverClient) Dir(ctx context.Context, path string) ([]string, error) {
	if path == "" {
		path = "/"
	}

	data, err := c.transact(ctx, msgDirAll, path, 0)
	if err != nil {
		return nil, err
	}

	c.dirsTotal.Add(1)

	listing := strings.TrimRight(string(data), "\x00")
	if listing == "" {
		return nil, nil
	}

	entries := strings.Split(listing, ",")
	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.HasSuffix(entry, "/") {
			entry += "/"
		}
		dirs = append(dirs, entry)
	}
	return dirs, nil
}

// Read returns the raw value of a bus attribute path.
//
// Values are textual in owserver's default format, typically a
// space-padded decimal such as "      23.456".
func (c *OwserverClient) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := c.transact(ctx, msgRead, path, defaultReadSize)
	if err != nil {
		return nil, err
	}

	c.readsTotal.Add(1)
	return data, nil
}

// Present reports whether a bus path exists on the server.
func (c *OwserverClient) Present(ctx context.Context, path string) (bool, error) {
	_, err := c.transact(ctx, msgPresence, path, 0)
	if err != nil {
		// A negative server return code means "not present" rather than
		// a transport fault.
		var serverErr *ownetServerError
		if asServerError(err, &serverErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ownetServerError carries a negative return code from owserver.
type ownetServerError struct {
	code int32
}

func (e *ownetServerError) Error() string {
	return fmt.Sprintf("server returned %d", e.code)
}

func asServerError(err error, target **ownetServerError) bool {
	for err != nil {
		if se, ok := err.(*ownetServerError); ok { //nolint:errorlint // walked manually
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error }) //nolint:errorlint // walked manually
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// transact performs one serialized request/response exchange.
// On a network error it redials once and retries before giving up.
func (c *OwserverClient) transact(ctx context.Context, msgType int32, path string, size int32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// owserver drops non-persistent connections after every transaction.
	if c.conn == nil {
		if err := c.dialLocked(ctx); err != nil {
			c.errorsTotal.Add(1)
			c.connected.Store(false)
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		c.reconnectsTotal.Add(1)
	}

	data, err := c.exchangeLocked(ctx, msgType, path, size)
	if err == nil {
		c.lastActivity.Store(time.Now().Unix())
		if !c.persistent {
			c.closeLocked()
		}
		return data, nil
	}

	// Server-level errors (bad path etc.) are not retryable.
	var serverErr *ownetServerError
	if asServerError(err, &serverErr) {
		c.errorsTotal.Add(1)
		if !c.persistent {
			c.closeLocked()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, path, err)
	}

	// Network fault: reconnect and retry once.
	c.logWarn("owserver request failed, reconnecting", "path", path, "error", err)
	c.closeLocked()
	if dialErr := c.dialLocked(ctx); dialErr != nil {
		c.errorsTotal.Add(1)
		c.connected.Store(false)
		return nil, fmt.Errorf("%w: %w", ErrTransport, dialErr)
	}
	c.reconnectsTotal.Add(1)

	data, err = c.exchangeLocked(ctx, msgType, path, size)
	if err != nil {
		c.errorsTotal.Add(1)
		c.closeLocked()
		c.connected.Store(false)
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, path, err)
	}

	c.lastActivity.Store(time.Now().Unix())
	if !c.persistent {
		c.closeLocked()
	}
	return data, nil
}

// exchangeLocked writes one request and reads its response.
// Caller must hold mu with a live connection.
func (c *OwserverClient) exchangeLocked(ctx context.Context, msgType int32, path string, size int32) ([]byte, error) {
	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Request payload is the null-terminated path.
	payload := append([]byte(path), 0)
	req := ownetHeader{
		version: 0,
		payload: int32(len(payload)),
		ret:     msgType,
		flags:   flagOwnet | flagPersistence,
		size:    size,
		offset:  0,
	}

	buf := make([]byte, ownetHeaderSize+len(payload))
	req.encode(buf[:ownetHeaderSize])
	copy(buf[ownetHeaderSize:], payload)

	if _, err := c.conn.Write(buf); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	// Read responses, skipping keepalive pings (payload == -1).
	hdr := make([]byte, ownetHeaderSize)
	for {
		if _, err := io.ReadFull(c.conn, hdr); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}

		resp := parseOwnetHeader(hdr)
		if resp.payload == -1 {
			continue // keepalive ping
		}
		if resp.payload < 0 || resp.payload > maxOwnetPayload {
			return nil, fmt.Errorf("invalid payload length %d", resp.payload)
		}

		c.persistent = resp.flags&flagPersistence != 0

		var data []byte
		if resp.payload > 0 {
			data = make([]byte, resp.payload)
			if _, err := io.ReadFull(c.conn, data); err != nil {
				return nil, fmt.Errorf("read payload: %w", err)
			}
		}

		if resp.ret < 0 {
			return nil, &ownetServerError{code: resp.ret}
		}

		// For reads, size is the number of meaningful bytes.
		if msgType == msgRead && resp.size >= 0 && int(resp.size) < len(data) {
			data = data[:resp.size]
		}

		return data, nil
	}
}

// Close shuts down the connection. Safe to call multiple times.
func (c *OwserverClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

// IsConnected reports whether the server was reachable at the last
// exchange. The socket itself may be closed between transactions when
// the server declines persistence.
func (c *OwserverClient) IsConnected() bool {
	return c.connected.Load()
}

// Address returns the owserver address the client talks to.
func (c *OwserverClient) Address() string {
	return c.address
}

// SetLogger sets the logger for this client.
func (c *OwserverClient) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// Stats returns current operational statistics.
func (c *OwserverClient) Stats() OwserverStats {
	return OwserverStats{
		ReadsTotal:      c.readsTotal.Load(),
		DirsTotal:       c.dirsTotal.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		LastActivity:    time.Unix(c.lastActivity.Load(), 0),
		Connected:       c.IsConnected(),
	}
}

// logWarn logs a warning if a logger is set.
func (c *OwserverClient) logWarn(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}
