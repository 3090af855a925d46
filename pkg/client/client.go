package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/flix/pkg/diff"
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/protocol"
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("client: closed")

// Update is one batch applied to the client's list.
type Update struct {
	Seq      uint64
	Reset    bool
	Script   *diff.Script
	Snapshot node.Snapshot
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBuffer sets how many updates are buffered for Updates.
func WithBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithErrorHandler sets a callback for error frames sent by the server.
// It runs on the read goroutine.
func WithErrorHandler(fn func(*protocol.ErrorMessage)) Option {
	return func(c *Client) {
		c.onError = fn
	}
}

// WithWriteTimeout bounds every frame written to the server.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// Client mirrors a remote list. Batches are replayed on a local snapshot;
// a sequence gap or a batch that does not fit triggers a resync.
type Client struct {
	conn         *websocket.Conn
	logger       *slog.Logger
	buffer       int
	writeTimeout time.Duration
	onError      func(*protocol.ErrorMessage)

	mu        sync.RWMutex
	snap      node.Snapshot
	seq       uint64
	resyncing bool

	writeMu  sync.Mutex
	eventSeq atomic.Uint64

	updates   chan *Update
	done      chan struct{}
	err       error
	closeOnce sync.Once
}

// Dial connects to a flix websocket endpoint.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}
	return New(conn, opts...), nil
}

// New starts a client on an established connection.
func New(conn *websocket.Conn, opts ...Option) *Client {
	c := &Client{
		conn:         conn,
		logger:       slog.Default(),
		buffer:       64,
		writeTimeout: 10 * time.Second,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.updates = make(chan *Update, c.buffer)
	go c.readLoop()
	return c
}

// Updates delivers applied batches. When the consumer falls behind the
// oldest pending update is dropped; Snapshot always reflects every batch.
func (c *Client) Updates() <-chan *Update {
	return c.updates
}

// Snapshot returns the list as currently displayed.
func (c *Client) Snapshot() node.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Seq returns the sequence number of the last applied batch.
func (c *Client) Seq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil after a normal close.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Select reports a row tap.
func (c *Client) Select(ip node.IndexPath) error {
	return c.sendEvent(&protocol.Event{Kind: protocol.EventSelect, Path: ip})
}

// Delete reports a row delete gesture.
func (c *Client) Delete(ip node.IndexPath) error {
	return c.sendEvent(&protocol.Event{Kind: protocol.EventDelete, Path: ip})
}

// Action reports the edit action at index chosen for a row.
func (c *Client) Action(ip node.IndexPath, index int) error {
	return c.sendEvent(&protocol.Event{Kind: protocol.EventAction, Path: ip, Action: index})
}

// Resync asks the server for every batch after the last applied one.
func (c *Client) Resync() error {
	c.mu.Lock()
	last := c.seq
	c.resyncing = true
	c.mu.Unlock()
	return c.write(protocol.NewFrame(protocol.FrameResync, protocol.EncodeResync(last)))
}

// Close sends a close message and waits for the read loop to end.
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	c.writeMu.Lock()
	deadline := time.Now().Add(c.writeTimeout)
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.writeMu.Unlock()

	select {
	case <-c.done:
	case <-time.After(c.writeTimeout):
		c.conn.Close()
		<-c.done
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (c *Client) sendEvent(ev *protocol.Event) error {
	ev.Seq = c.eventSeq.Add(1)
	return c.write(protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(ev)))
}

func (c *Client) write(f *protocol.Frame) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, f.Encode()); err != nil {
		return fmt.Errorf("client: write %s: %w", f.Type, err)
	}
	return nil
}

func (c *Client) readLoop() {
	var err error
	defer func() {
		c.finish(err)
	}()

	for {
		var data []byte
		_, data, err = c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			return
		}
		var frame *protocol.Frame
		if frame, err = protocol.DecodeFrame(data); err != nil {
			err = fmt.Errorf("client: %w", err)
			return
		}
		if err = c.handleFrame(frame); err != nil {
			return
		}
	}
}

func (c *Client) handleFrame(f *protocol.Frame) error {
	switch f.Type {
	case protocol.FrameBatch:
		b, err := protocol.DecodeBatch(f.Payload)
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		c.handleBatch(b)
	case protocol.FrameError:
		em, err := protocol.DecodeErrorMessage(f.Payload)
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		if c.onError != nil {
			c.onError(em)
		}
		if em.Fatal {
			return em
		}
		c.logger.Warn("server error", "code", em.Code, "message", em.Message)
	default:
		c.logger.Debug("frame ignored", "type", f.Type)
	}
	return nil
}

func (c *Client) handleBatch(b *protocol.Batch) {
	c.mu.Lock()
	var base node.Snapshot
	switch {
	case b.Reset:
	case b.Seq <= c.seq:
		c.mu.Unlock()
		c.logger.Debug("stale batch", "seq", b.Seq, "applied", c.seq)
		return
	case b.Seq != c.seq+1:
		c.mu.Unlock()
		c.logger.Debug("sequence gap", "seq", b.Seq, "applied", c.seq)
		c.requestResync()
		return
	default:
		base = c.snap
	}

	script := b.Script()
	next, err := diff.Apply(base, script)
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("batch does not fit", "seq", b.Seq, "error", err)
		c.requestResync()
		return
	}
	c.snap, c.seq, c.resyncing = next, b.Seq, false
	c.mu.Unlock()

	c.deliver(&Update{Seq: b.Seq, Reset: b.Reset, Script: script, Snapshot: next})
}

// requestResync sends one resync until a batch is applied again.
func (c *Client) requestResync() {
	c.mu.RLock()
	pending := c.resyncing
	c.mu.RUnlock()
	if pending {
		return
	}
	if err := c.Resync(); err != nil {
		c.logger.Warn("resync failed", "error", err)
	}
}

func (c *Client) deliver(u *Update) {
	for {
		select {
		case c.updates <- u:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}

func (c *Client) finish(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		c.conn.Close()
		close(c.done)
		close(c.updates)
	})
}
