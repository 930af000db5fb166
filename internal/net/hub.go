package net

import (
	"go.uber.org/zap"

	"github.com/ewdc/engine/internal/engine"
	"github.com/ewdc/engine/internal/proto"
)

// MacroRunner is what the hub needs from the scripting layer. A nil
// runner rejects every macro frame.
type MacroRunner interface {
	CallMacro(name string) error
	HasMacro(name string) bool
}

// request is one client frame waiting for the apply loop.
type request struct {
	sess *Session
	kind byte
	body []byte
}

// Hub owns one open document and serializes every mutation through a
// single apply-loop goroutine. Sessions submit frames; the hub applies
// them in arrival order, acks the sender and broadcasts the resulting
// change events to everyone.
type Hub struct {
	doc    *engine.Engine
	macros MacroRunner

	// OnApplied, when set, receives every successfully applied command
	// buffer. The server wires the journal through it.
	OnApplied func(buffer []byte)

	reqCh   chan request
	joinCh  chan *Session
	leaveCh chan *Session
	stopCh  chan struct{}
	doneCh  chan struct{}

	sessions map[uint64]*Session

	log *zap.Logger
}

func NewHub(doc *engine.Engine, macros MacroRunner, log *zap.Logger) *Hub {
	return &Hub{
		doc:      doc,
		macros:   macros,
		reqCh:    make(chan request, 128),
		joinCh:   make(chan *Session, 16),
		leaveCh:  make(chan *Session, 64),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		sessions: make(map[uint64]*Session),
		log:      log,
	}
}

// Run is the apply loop. It is the only goroutine that touches the
// document engine.
func (h *Hub) Run() {
	defer close(h.doneCh)
	for {
		select {
		case req := <-h.reqCh:
			h.handle(req)
		case s := <-h.joinCh:
			h.sessions[s.ID] = s
			// New clients sync from a full snapshot, then follow events.
			s.Send(encodeSnapshot(h.doc.SaveSnapshot()))
			h.log.Info("會話加入文件", zap.Uint64("session", s.ID), zap.String("ip", s.IP))
		case s := <-h.leaveCh:
			delete(h.sessions, s.ID)
		case <-h.stopCh:
			return
		}
	}
}

// Stop shuts the apply loop down and waits for it to drain.
func (h *Hub) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

// submit hands a frame to the apply loop, blocking until accepted or the
// session dies. Returns false when the session should stop reading.
func (h *Hub) submit(req request, closeCh <-chan struct{}) bool {
	select {
	case h.reqCh <- req:
		return true
	case <-closeCh:
		return false
	case <-h.stopCh:
		return false
	}
}

func (h *Hub) join(s *Session) {
	select {
	case h.joinCh <- s:
	case <-h.stopCh:
		s.Close()
	}
}

// leave is called from Session.Close on arbitrary goroutines; the buffer
// keeps it from blocking there. Broadcast prunes closed sessions anyway,
// so a dropped notification only delays cleanup.
func (h *Hub) leave(s *Session) {
	select {
	case h.leaveCh <- s:
	default:
	}
}

func (h *Hub) handle(req request) {
	if req.sess.IsClosed() {
		return
	}
	switch req.kind {
	case MsgApply:
		code := h.doc.ApplyCommandBuffer(req.body)
		if code == proto.Ok && h.OnApplied != nil {
			h.OnApplied(req.body)
		}
		if code != proto.Ok {
			h.log.Warn("指令緩衝套用失敗",
				zap.Uint64("session", req.sess.ID), zap.String("code", code.String()))
		}
		req.sess.Send(encodeAck(code, h.doc.DocumentDigest()))
	case MsgUndo:
		h.doc.Undo()
		req.sess.Send(encodeAck(proto.Ok, h.doc.DocumentDigest()))
	case MsgRedo:
		h.doc.Redo()
		req.sess.Send(encodeAck(proto.Ok, h.doc.DocumentDigest()))
	case MsgSnapshot:
		req.sess.Send(encodeSnapshot(h.doc.SaveSnapshot()))
	case MsgMacro:
		name := string(req.body)
		code := proto.Ok
		if h.macros == nil || !h.macros.HasMacro(name) {
			code = proto.InvalidOperation
		} else if err := h.macros.CallMacro(name); err != nil {
			code = proto.InvalidOperation
		}
		req.sess.Send(encodeAck(code, h.doc.DocumentDigest()))
	default:
		h.log.Warn("未知訊息類型", zap.Uint8("kind", req.kind))
	}
	h.broadcastEvents()
}

// broadcastEvents drains the engine's pending events to every session.
// An overflow turns into a full snapshot resync for everyone.
func (h *Hub) broadcastEvents() {
	evs := h.doc.PollEvents()
	frame := encodeEvents(evs)
	if frame == nil {
		return
	}
	overflowed := false
	for _, ev := range evs {
		if ev.Type == engine.EventOverflow {
			overflowed = true
			break
		}
	}
	var snap []byte
	if overflowed {
		snap = encodeSnapshot(h.doc.SaveSnapshot())
	}
	for id, s := range h.sessions {
		if s.IsClosed() {
			delete(h.sessions, id)
			continue
		}
		s.Send(frame)
		if snap != nil {
			s.Send(snap)
		}
	}
	if overflowed {
		h.doc.AckResync()
	}
}
