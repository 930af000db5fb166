package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Session is one WebSocket client attached to a document hub. Network
// I/O runs in dedicated goroutines; document state is touched only by
// the hub's apply loop.
type Session struct {
	ID   uint64
	conn *websocket.Conn

	// OutQueue is drained by the writer goroutine. Send never blocks:
	// a full queue disconnects the slow client instead of stalling the
	// document.
	OutQueue chan []byte

	IP string

	hub *Hub

	readTimeout  time.Duration
	writeTimeout time.Duration
	maxMessage   int64

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func newSession(conn *websocket.Conn, id uint64, hub *Hub, cfgOutSize int, readTimeout, writeTimeout time.Duration, maxMessage int64, log *zap.Logger) *Session {
	return &Session{
		ID:           id,
		conn:         conn,
		OutQueue:     make(chan []byte, cfgOutSize),
		IP:           conn.RemoteAddr().String(),
		hub:          hub,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		maxMessage:   maxMessage,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
}

func (s *Session) start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send queues a frame for the writer. Safe from any goroutine.
func (s *Session) Send(data []byte) {
	if data == nil || s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("輸出佇列已滿，斷開慢速連線")
		s.Close()
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
		s.hub.leave(s)
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop pulls binary frames off the socket and hands them to the hub.
// The hub applies them on its own goroutine; nothing here touches the
// document.
func (s *Session) readLoop() {
	defer s.Close()

	s.conn.SetReadLimit(s.maxMessage)
	for {
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("讀取錯誤", zap.Error(err))
			}
			return
		}
		if kind != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		// Block until the hub takes it. The readLoop is per-session, so
		// only this client waits.
		if !s.hub.submit(request{sess: s, kind: data[0], body: data[1:]}, s.closeCh) {
			return
		}
	}
}

// writeLoop drains OutQueue to the socket.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if s.writeTimeout > 0 {
				s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("寫入錯誤", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
