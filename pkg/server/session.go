package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/flix/pkg/archive"
	"github.com/vango-dev/flix/pkg/builder"
	"github.com/vango-dev/flix/pkg/diff"
	"github.com/vango-dev/flix/pkg/metrics"
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/protocol"
	"github.com/vango-dev/flix/pkg/widget"
)

// Session errors.
var (
	ErrSessionClosed = errors.New("server: session closed")
	ErrSendQueueFull = errors.New("server: send queue full")
)

// Session is one websocket connection showing one provider tree. It is the
// builder's widget: every applied batch is encoded and queued to the client.
type Session struct {
	ID        string
	CreatedAt time.Time

	conn    *websocket.Conn
	config  *Config
	builder *builder.Builder
	history *History
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger

	send   chan []byte
	done   chan struct{}
	record chan *archive.Document

	lastActivity atomic.Int64
	eventCount   atomic.Uint64
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

func newSession(id string, conn *websocket.Conn, cfg *Config, m *metrics.Metrics, tracer trace.Tracer, logger *slog.Logger) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		conn:      conn,
		config:    cfg,
		history:   NewHistory(cfg.HistorySize),
		metrics:   m,
		tracer:    tracer,
		logger:    logger.With("session_id", id),
		send:      make(chan []byte, cfg.SendQueue),
		done:      make(chan struct{}),
	}
	s.touch()
	return s
}

// ApplyBatch implements widget.Widget. It runs on the builder's owner
// goroutine, so frames are queued in seq order.
func (s *Session) ApplyBatch(_ context.Context, u *widget.Update) error {
	payload, err := protocol.EncodeBatch(protocol.FromUpdate(u))
	if err != nil {
		return fmt.Errorf("server: encode batch %d: %w", u.Seq, err)
	}
	frame := protocol.NewFrame(protocol.FrameBatch, payload).Encode()
	if err := s.enqueue(frame); err != nil {
		return err
	}
	s.history.Add(u.Seq, frame)
	return nil
}

// Builder returns the session's builder.
func (s *Session) Builder() *builder.Builder {
	return s.builder
}

// History returns the batch frames kept for resync.
func (s *Session) History() *History {
	return s.history
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// LastActivity returns the time of the last frame received.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// EventCount returns the number of events handled.
func (s *Session) EventCount() uint64 {
	return s.eventCount.Load()
}

// Close ends the session, releases its providers and closes the connection.
// Close is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.builder != nil {
			s.builder.Close()
		}
		s.wg.Wait()
		s.conn.Close()
		s.logger.Info("session closed", "events", s.eventCount.Load())
	})
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// enqueue hands a frame to the write loop without blocking.
func (s *Session) enqueue(frame []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		s.metrics.RecordWebSocketError("queue_full")
		return ErrSendQueueFull
	}
}

// startRecording saves the displayed snapshot to store after every applied
// batch. Saves run on their own goroutine and only the latest pending
// document is kept.
func (s *Session) startRecording(store archive.Store) {
	s.record = make(chan *archive.Document, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case doc := <-s.record:
				s.save(store, doc)
			case <-s.done:
				select {
				case doc := <-s.record:
					s.save(store, doc)
				default:
				}
				return
			}
		}
	}()
}

func (s *Session) save(store archive.Store, doc *archive.Document) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()
	if err := store.Save(ctx, s.ID, doc); err != nil {
		s.logger.Warn("record snapshot failed", "seq", doc.Seq, "error", err)
	}
}

// onApply is the builder's apply hook.
func (s *Session) onApply(u *widget.Update, err error) {
	if err != nil || s.record == nil {
		return
	}
	doc := archive.NewDocument(u.Snapshot)
	doc.Seq, doc.Generation = u.Seq, u.Generation
	for {
		select {
		case s.record <- doc:
			return
		default:
		}
		select {
		case <-s.record:
		default:
		}
	}
}

// readLoop handles frames from the client until the connection fails.
func (s *Session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(s.config.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
		return nil
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("read error", "error", err)
				s.metrics.RecordWebSocketError("read")
			}
			return
		}
		s.touch()
		s.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))

		if msgType != websocket.BinaryMessage {
			s.sendError(protocol.ErrInvalidFrame, "expected binary message", false)
			continue
		}
		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			s.metrics.RecordWebSocketError("decode")
			s.sendError(protocol.ErrInvalidFrame, err.Error(), true)
			return
		}
		if err := s.handleFrame(ctx, frame); err != nil {
			s.logger.Debug("frame rejected", "type", frame.Type, "error", err)
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, f *protocol.Frame) error {
	switch f.Type {
	case protocol.FrameEvent:
		ev, err := protocol.DecodeEvent(f.Payload)
		if err != nil {
			s.sendError(protocol.ErrInvalidEvent, err.Error(), false)
			return err
		}
		return s.handleEvent(ctx, ev)
	case protocol.FrameResync:
		lastSeq, err := protocol.DecodeResync(f.Payload)
		if err != nil {
			s.sendError(protocol.ErrInvalidFrame, err.Error(), false)
			return err
		}
		return s.resync(ctx, lastSeq)
	default:
		err := fmt.Errorf("unexpected %s frame", f.Type)
		s.sendError(protocol.ErrInvalidFrame, err.Error(), false)
		return err
	}
}

func (s *Session) handleEvent(ctx context.Context, ev *protocol.Event) error {
	s.eventCount.Add(1)

	ctx, span := s.tracer.Start(ctx, "flix."+ev.Kind.String(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("flix.session_id", s.ID),
			attribute.String("flix.path", ev.Path.String()),
			attribute.Int64("flix.event_seq", int64(ev.Seq)),
		),
	)
	defer span.End()

	var err error
	switch ev.Kind {
	case protocol.EventSelect:
		err = s.builder.Select(ctx, ev.Path)
	case protocol.EventDelete:
		err = s.builder.Delete(ctx, ev.Path)
	case protocol.EventAction:
		err = s.builder.Action(ctx, ev.Path, ev.Action)
	}
	s.metrics.RecordEvent(ev.Kind.String(), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, widget.ErrIndexOutOfRange):
		s.sendError(protocol.ErrIndexOutOfRange, err.Error(), false)
	case errors.Is(err, builder.ErrClosed):
		s.sendError(protocol.ErrSessionClosed, err.Error(), true)
	default:
		s.logger.Warn("event callback failed", "kind", ev.Kind, "path", ev.Path, "error", err)
		s.sendError(protocol.ErrCallbackFailed, err.Error(), false)
	}
	return err
}

// resync replays every batch after lastSeq. When the history no longer holds
// them, the whole displayed snapshot is sent as a reset batch. Both run on
// the owner goroutine so no new batch interleaves.
func (s *Session) resync(ctx context.Context, lastSeq uint64) error {
	return s.builder.Do(ctx, func() error {
		adapter := s.builder.Adapter()
		current := adapter.Seq()
		if lastSeq == current {
			return nil
		}
		if lastSeq < current && s.history.CanRecover(lastSeq) {
			if frames := s.history.Frames(lastSeq, current); frames != nil {
				s.logger.Debug("resync replay", "from", lastSeq, "to", current, "frames", len(frames))
				for _, f := range frames {
					if err := s.enqueue(f); err != nil {
						return err
					}
				}
				return nil
			}
		}

		script, err := diff.Diff(node.Snapshot{}, adapter.Snapshot())
		if err != nil {
			s.sendError(protocol.ErrResyncFailed, err.Error(), true)
			return err
		}
		payload, err := protocol.EncodeBatch(&protocol.Batch{
			Seq:   current,
			Reset: true,
			Ops:   script.Ops,
		})
		if err != nil {
			s.sendError(protocol.ErrResyncFailed, err.Error(), true)
			return err
		}
		s.logger.Debug("resync reset", "from", lastSeq, "to", current)
		return s.enqueue(protocol.NewFrame(protocol.FrameBatch, payload).Encode())
	})
}

func (s *Session) sendError(code protocol.ErrorCode, msg string, fatal bool) {
	payload := protocol.EncodeErrorMessage(&protocol.ErrorMessage{Code: code, Message: msg, Fatal: fatal})
	if err := s.enqueue(protocol.NewFrame(protocol.FrameError, payload).Encode()); err != nil {
		s.logger.Debug("error frame dropped", "code", code, "error", err)
	}
}

// writeLoop is the only writer of the connection.
func (s *Session) writeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.logger.Warn("write error", "error", err)
				s.metrics.RecordWebSocketError("write")
				s.conn.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping failed", "error", err)
				s.conn.Close()
				return
			}
		case <-s.done:
			s.flush()
			deadline := time.Now().Add(s.config.WriteTimeout)
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// flush writes the frames still queued, such as a final fatal error.
func (s *Session) flush() {
	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
