package net

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ewdc/engine/internal/config"
)

// Server upgrades HTTP connections to WebSocket sessions and attaches
// them to the document hub.
type Server struct {
	httpSrv  *http.Server
	upgrader websocket.Upgrader
	hub      *Hub
	cfg      config.NetworkConfig
	nextID   atomic.Uint64
	log      *zap.Logger
}

func NewServer(cfg config.NetworkConfig, hub *Hub, log *zap.Logger) *Server {
	s := &Server{
		hub: hub,
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Local tooling connects without an Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/doc", s.handleDoc)
	s.httpSrv = &http.Server{
		Addr:    cfg.BindAddress,
		Handler: mux,
	}
	return s
}

// ListenAndServe blocks until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Addr returns the configured bind address.
func (s *Server) Addr() string {
	return s.cfg.BindAddress
}

func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("連線升級失敗", zap.Error(err))
		return
	}

	id := s.nextID.Add(1)
	sess := newSession(conn, id, s.hub, s.cfg.OutQueueSize,
		s.cfg.ReadTimeout, s.cfg.WriteTimeout, s.cfg.MaxMessageBytes, s.log)
	sess.start()
	s.hub.join(sess)

	s.log.Info("客戶端連線", zap.Uint64("session", id), zap.String("ip", sess.IP))
}
