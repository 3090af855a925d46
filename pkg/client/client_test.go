package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/flix/pkg/diff"
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/protocol"
	"github.com/vango-dev/flix/pkg/provider"
	"github.com/vango-dev/flix/pkg/server"
	"github.com/vango-dev/flix/pkg/stream"
)

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func rowKeys(s node.Snapshot) string {
	var keys []string
	for _, sec := range s.Sections {
		for _, r := range sec.Rows {
			keys = append(keys, r.Key)
		}
	}
	return strings.Join(keys, ",")
}

func nextUpdate(t *testing.T, c *Client) *Update {
	t.Helper()
	select {
	case u, ok := <-c.Updates():
		if !ok {
			t.Fatalf("updates closed: %v", c.Err())
		}
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return nil
}

func TestClientMirrorsServer(t *testing.T) {
	items := stream.NewVar([]string{"a", "b"})
	selected := make(chan string, 4)
	factory := func(context.Context, string) ([]*provider.Section, error) {
		rows := provider.NewRows[string]("items", items.Stream(), nil,
			provider.WithSelect(func(_ node.IndexPath, v string) { selected <- v }))
		return []*provider.Section{provider.NewSection("main", []provider.RowProvider{rows})}, nil
	}
	srv := server.New(&server.Config{}, factory)
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()
	defer srv.Shutdown(context.Background())

	c, err := Dial(context.Background(), wsURL(hs))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	u := nextUpdate(t, c)
	if u.Seq != 1 || u.Reset {
		t.Errorf("first update Seq = %d Reset = %v, want 1 false", u.Seq, u.Reset)
	}
	if got := rowKeys(c.Snapshot()); got != "a,b" {
		t.Errorf("rows = %q, want \"a,b\"", got)
	}

	items.Set([]string{"c", "a"})
	u = nextUpdate(t, c)
	if u.Seq != 2 {
		t.Errorf("second update Seq = %d, want 2", u.Seq)
	}
	if got := rowKeys(u.Snapshot); got != "c,a" {
		t.Errorf("rows = %q, want \"c,a\"", got)
	}
	if c.Seq() != 2 {
		t.Errorf("Seq() = %d, want 2", c.Seq())
	}

	if err := c.Select(node.IndexPath{Section: 0, Row: 0}); err != nil {
		t.Fatalf("Select: %v", err)
	}
	select {
	case v := <-selected:
		if v != "c" {
			t.Errorf("selected = %q, want \"c\"", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("select callback not called")
	}
}

// scriptedServer upgrades one connection and hands it to fn.
func scriptedServer(t *testing.T, fn func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(hs.Close)
	return hs
}

func writeBatch(t *testing.T, conn *websocket.Conn, b *protocol.Batch) {
	t.Helper()
	payload, err := protocol.EncodeBatch(b)
	if err != nil {
		t.Errorf("EncodeBatch: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, protocol.NewFrame(protocol.FrameBatch, payload).Encode()); err != nil {
		t.Errorf("WriteMessage: %v", err)
	}
}

func section(keys ...string) node.Snapshot {
	rows := make([]node.Node, len(keys))
	for i, k := range keys {
		rows[i] = node.New("items", k, k)
	}
	return node.NewSnapshot(node.NewSection("main", nil, nil, nil, rows...))
}

func script(t *testing.T, from, to node.Snapshot) []diff.Op {
	t.Helper()
	s, err := diff.Diff(from, to)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	return s.Ops
}

func TestClientResyncsOnGap(t *testing.T) {
	first := section("a")
	latest := section("a", "b", "c")
	firstOps := script(t, node.Snapshot{}, first)
	resetOps := script(t, node.Snapshot{}, latest)
	gapOps := script(t, section("a", "b"), latest)

	resynced := make(chan uint64, 1)
	hs := scriptedServer(t, func(conn *websocket.Conn) {
		writeBatch(t, conn, &protocol.Batch{Seq: 1, Ops: firstOps})
		// Seq 2 is never sent.
		writeBatch(t, conn, &protocol.Batch{Seq: 3, Ops: gapOps})

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("ReadMessage: %v", err)
			return
		}
		f, err := protocol.DecodeFrame(data)
		if err != nil || f.Type != protocol.FrameResync {
			t.Errorf("frame = %v, %v, want Resync", f, err)
			return
		}
		last, _ := protocol.DecodeResync(f.Payload)
		resynced <- last
		writeBatch(t, conn, &protocol.Batch{Seq: 3, Reset: true, Ops: resetOps})
		conn.ReadMessage()
	})

	c, err := Dial(context.Background(), wsURL(hs))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if u := nextUpdate(t, c); u.Seq != 1 {
		t.Errorf("first update Seq = %d, want 1", u.Seq)
	}
	select {
	case last := <-resynced:
		if last != 1 {
			t.Errorf("resync lastSeq = %d, want 1", last)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("resync not requested")
	}
	u := nextUpdate(t, c)
	if u.Seq != 3 || !u.Reset {
		t.Errorf("update Seq = %d Reset = %v, want 3 true", u.Seq, u.Reset)
	}
	if got := rowKeys(c.Snapshot()); got != "a,b,c" {
		t.Errorf("rows = %q, want \"a,b,c\"", got)
	}
}

func TestClientSkipsStaleBatches(t *testing.T) {
	ops := script(t, node.Snapshot{}, section("a"))
	next := script(t, section("a"), section("a", "b"))
	hs := scriptedServer(t, func(conn *websocket.Conn) {
		writeBatch(t, conn, &protocol.Batch{Seq: 1, Ops: ops})
		writeBatch(t, conn, &protocol.Batch{Seq: 1, Ops: ops})
		writeBatch(t, conn, &protocol.Batch{Seq: 2, Ops: next})
		conn.ReadMessage()
	})

	c, err := Dial(context.Background(), wsURL(hs))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	nextUpdate(t, c)
	u := nextUpdate(t, c)
	if u.Seq != 2 {
		t.Errorf("update Seq = %d, want 2", u.Seq)
	}
	if got := rowKeys(c.Snapshot()); got != "a,b" {
		t.Errorf("rows = %q, want \"a,b\"", got)
	}
}

func TestClientFatalError(t *testing.T) {
	hs := scriptedServer(t, func(conn *websocket.Conn) {
		payload := protocol.EncodeErrorMessage(&protocol.ErrorMessage{
			Code:    protocol.ErrServerError,
			Message: "boom",
			Fatal:   true,
		})
		conn.WriteMessage(websocket.BinaryMessage, protocol.NewFrame(protocol.FrameError, payload).Encode())
		conn.ReadMessage()
	})

	var handled []*protocol.ErrorMessage
	c, err := Dial(context.Background(), wsURL(hs),
		WithErrorHandler(func(em *protocol.ErrorMessage) { handled = append(handled, em) }))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop on fatal error")
	}
	em, ok := c.Err().(*protocol.ErrorMessage)
	if !ok || em.Code != protocol.ErrServerError {
		t.Errorf("Err() = %v, want ServerError message", c.Err())
	}
	if len(handled) != 1 {
		t.Errorf("handled = %d, want 1", len(handled))
	}
	if err := c.Select(node.IndexPath{}); err != ErrClosed {
		t.Errorf("Select after close = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close after done = %v, want nil", err)
	}
}
