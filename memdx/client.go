// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResponseHandler is invoked once per response packet delivered to an
// in-flight entry. Returning keepOpen=true keeps the entry registered for
// further deliveries (used by streaming ops such as cluster-map-
// notification; §4.2). A non-nil err means the op failed terminally
// (dispatch error, protocol error, or cancellation) and the entry is
// always removed regardless of the returned value.
type ResponseHandler func(pkt *Packet, err error) (keepOpen bool)

// ServerPushHandler handles unsolicited ServerReq frames (§4.2), such as
// cluster-map-change notifications.
type ServerPushHandler func(pkt *Packet)

// OrphanHandler is invoked for a response whose opaque matches nothing in
// the in-flight map — logged and surfaced for diagnostics (§4.2).
type OrphanHandler func(pkt *Packet)

// state is the dispatcher's lifecycle state (§4.2 shutdown).
type state int32

const (
	stateOpen state = iota
	stateClosed
)

type inflightEntry struct {
	handler ResponseHandler
}

// Client is a single long-lived connection's dispatcher: it multiplexes
// many in-flight operations, each distinguished by a unique opaque, over
// one net.Conn. It owns exactly one reader goroutine and one writer
// goroutine, matching the teacher's one-send-queue-one-reader shape used
// throughout its drpc transport.
type Client struct {
	conn   io.ReadWriteCloser
	logger *zap.Logger
	connID string

	opaqueCounter uint32

	mu       sync.Mutex
	inflight map[uint32]*inflightEntry
	state    state

	sendCh chan *Packet
	closed chan struct{}
	once   sync.Once

	onServerPush ServerPushHandler
	onOrphan     OrphanHandler

	errorMap *ErrMap

	// clusterMapKnownVersion is not read or written anywhere in this
	// package; the config watcher takes the known version from its
	// ConfigManager instead.
	clusterMapKnownVersion atomic.Value
}

// ClientOptions configures a new dispatcher.
type ClientOptions struct {
	Logger           *zap.Logger
	SendQueueSize    int
	OnServerPush     ServerPushHandler
	OnOrphanResponse OrphanHandler
}

const defaultSendQueueSize = 1024

// NewClient wraps conn with a dispatcher and starts its reader/writer
// goroutines. The caller remains responsible for closing conn if Close is
// never called (e.g. construction failure elsewhere).
func NewClient(conn io.ReadWriteCloser, opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	queueSize := opts.SendQueueSize
	if queueSize <= 0 {
		queueSize = defaultSendQueueSize
	}

	c := &Client{
		conn:         conn,
		logger:       logger,
		connID:       uuid.NewString(),
		inflight:     make(map[uint32]*inflightEntry),
		sendCh:       make(chan *Packet, queueSize),
		closed:       make(chan struct{}),
		onServerPush: opts.OnServerPush,
		onOrphan:     opts.OnOrphanResponse,
	}

	go c.writeLoop()
	go c.readLoop()

	return c
}

// ConnID is an opaque correlation id for this connection, included on
// every log line the dispatcher's reader/writer goroutines emit.
func (c *Client) ConnID() string { return c.connID }

// SetErrorMap installs the error-map table this connection learned during
// bootstrap, consulted by newServerError to classify unknown statuses.
func (c *Client) SetErrorMap(m *ErrMap) { c.errorMap = m }

// currentErrorMap implements errorMapSource.
func (c *Client) currentErrorMap() *ErrMap { return c.errorMap }

func (c *Client) nextOpaque() uint32 {
	return atomic.AddUint32(&c.opaqueCounter, 1)
}

// DispatchCallback sends req and routes every response bearing its opaque
// to handler until handler returns false. This is the low-level primitive;
// most operation encoders use Dispatch instead, which wraps a single-shot
// callback in a channel-based PendingOp.
func (c *Client) DispatchCallback(req *Packet, handler ResponseHandler) (uint32, error) {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return 0, &DispatchError{Cause: ErrClosed}
	}

	opaque := c.nextOpaque()
	req.Opaque = opaque
	c.inflight[opaque] = &inflightEntry{handler: handler}
	c.mu.Unlock()

	select {
	case c.sendCh <- req:
		return opaque, nil
	default:
	}

	// Queue full: fail the dispatch immediately with a retriable
	// DispatchError rather than blocking the caller.
	c.removeInflight(opaque)
	return 0, &DispatchError{Cause: ErrorClass.New("send queue full")}
}

// Dispatch sends req and returns a PendingOp whose Recv delivers exactly
// one response.
func (c *Client) Dispatch(req *Packet) (*PendingOp, error) {
	ch := make(chan opResult, 1)
	handler := func(pkt *Packet, err error) bool {
		ch <- opResult{pkt: pkt, err: err}
		return false
	}

	opaque, err := c.DispatchCallback(req, handler)
	if err != nil {
		return nil, err
	}

	return &PendingOp{opaque: opaque, client: c, ch: ch}, nil
}

func (c *Client) removeInflight(opaque uint32) *inflightEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.inflight[opaque]
	delete(c.inflight, opaque)
	return e
}

// cancelOp implements PendingOp.Cancel: remove from the in-flight map and
// resolve the waiter with a CancelledError. A late-arriving response for
// this opaque is then an orphan: the read loop passes it to the orphan
// handler if one is set, and otherwise drops it.
func (c *Client) cancelOp(opaque uint32, kind CancellationKind) {
	e := c.removeInflight(opaque)
	if e == nil {
		return
	}
	e.handler(nil, &CancelledError{Kind: kind})
}

func (c *Client) writeLoop() {
	for {
		select {
		case pkt := <-c.sendCh:
			buf := Encode(pkt)
			if _, err := c.conn.Write(buf); err != nil {
				c.logger.Debug("write failed, tearing down dispatcher",
					zap.String("conn_id", c.connID), zap.Error(err))
				c.teardown(&DispatchError{Cause: err})
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) readLoop() {
	buf := make([]byte, 0, 16*1024)
	tmp := make([]byte, 64*1024)

	for {
		n, err := c.conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)

			for {
				pkt, rem, decErr := Decode(buf)
				if decErr != nil {
					c.logger.Debug("protocol error, tearing down dispatcher",
						zap.String("conn_id", c.connID), zap.Error(decErr))
					c.teardown(decErr)
					return
				}
				if pkt == nil {
					break
				}
				buf = rem
				c.routePacket(pkt)
			}
		}

		if err != nil {
			if err != io.EOF {
				c.logger.Debug("read failed, tearing down dispatcher",
					zap.String("conn_id", c.connID), zap.Error(err))
			}
			c.teardown(&DispatchError{Cause: err})
			return
		}
	}
}

func (c *Client) routePacket(pkt *Packet) {
	if pkt.IsServerPush() {
		if c.onServerPush != nil {
			c.onServerPush(pkt)
		}
		return
	}

	c.mu.Lock()
	e, ok := c.inflight[pkt.Opaque]
	if ok {
		delete(c.inflight, pkt.Opaque)
	}
	c.mu.Unlock()

	if !ok {
		// Either a truly unsolicited frame, or a response for an opaque
		// that was already cancelled — both are orphans per §4.2/§4.3.
		if c.onOrphan != nil {
			c.onOrphan(pkt)
		}
		return
	}

	if e.handler(pkt, nil) {
		c.mu.Lock()
		if c.state == stateOpen {
			c.inflight[pkt.Opaque] = e
		}
		c.mu.Unlock()
	}
}

// teardown transitions the dispatcher to Closed, failing every in-flight
// waiter with ClosedInFlight whatever the cause, and closing the
// underlying connection.
func (c *Client) teardown(cause error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.state = stateClosed
		inflight := c.inflight
		c.inflight = make(map[uint32]*inflightEntry)
		c.mu.Unlock()

		for _, e := range inflight {
			e.handler(nil, ErrClosedInFlight)
		}

		close(c.closed)
		_ = c.conn.Close()
	})
}

// Close tears the dispatcher down explicitly, as if the socket had
// errored, failing every in-flight op with ClosedInFlight (§4.2).
func (c *Client) Close() error {
	c.teardown(ErrClosed)
	return nil
}

// IsClosed reports whether the dispatcher has torn down.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateClosed
}
