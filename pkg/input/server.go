package input

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// errInUse is returned when a second controller tries to connect.
var errInUse = errors.New("controller already connected")

// exclusive admits one holder at a time without blocking the others.
type exclusive struct {
	mu    sync.Mutex
	inuse bool
}

func (x *exclusive) acquire() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.inuse {
		return errInUse
	}
	x.inuse = true
	return nil
}

func (x *exclusive) release() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.inuse = false
}

// Server accepts controller samples over a websocket at /control and hands each
// one to submit together with the time since the previous sample.
type Server struct {
	submit   func(Sample)
	info     any
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
	guard    exclusive
	now      func() time.Time
}

// NewServer creates a server. info is served as JSON at /info.json.
func NewServer(submit func(Sample), info any, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		submit: submit,
		info:   info,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		now: time.Now,
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.handleControl)
	mux.HandleFunc("/info.json", s.handleInfo)
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Infow("input server listening", "addr", addr)

	select {
	case err := <-errCh:
		return errors.Wrap(err, "input server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shut down input server")
	}
	return nil
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(s.info); err != nil {
		s.logger.Warnw("encode info", "error", err)
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache")
	if err := s.guard.acquire(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer s.guard.release()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("upgrade control socket", "error", err)
		return
	}
	defer ws.Close()

	s.logger.Infow("controller connected", "remote", r.RemoteAddr)
	s.readSamples(ws)

	// Release everything so held gestures end cleanly when the controller drops.
	s.submit(Sample{Elapsed: 0})
	s.logger.Infow("controller disconnected", "remote", r.RemoteAddr)
}

func (s *Server) readSamples(ws *websocket.Conn) {
	var last time.Time
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warnw("read control socket", "error", err)
			}
			return
		}

		var raw Raw
		if err := json.Unmarshal(data, &raw); err != nil {
			s.logger.Warnw("dropping malformed sample", "error", err)
			continue
		}

		now := s.now()
		var elapsed time.Duration
		if !last.IsZero() {
			elapsed = now.Sub(last)
		}
		last = now

		s.submit(Sample{Raw: raw, Elapsed: elapsed})
	}
}
