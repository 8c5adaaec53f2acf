package adapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/quire-dev/quire/internal/model"
)

// maxPageBytes bounds a single uploaded page body.
const maxPageBytes = 4 << 20

// PageServer exposes a PageStore over HTTP for remote editors: the REST
// surface HTTPStore consumes plus a websocket change feed fanned out to
// every connected watcher.
type PageServer struct {
	store    PageStore
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	mu       sync.Mutex
	watchers map[chan model.PageID]struct{}
}

// NewPageServer wraps store in the HTTP surface.
func NewPageServer(store PageStore) *PageServer {
	s := &PageServer{
		store: store,
		mux:   http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		watchers: make(map[chan model.PageID]struct{}),
	}

	s.mux.HandleFunc("GET /pages", s.handleList)
	s.mux.HandleFunc("GET /pages/{id}", s.handleGet)
	s.mux.HandleFunc("PUT /pages/{id}", s.handlePut)
	s.mux.HandleFunc("POST /pages/{id}/rename", s.handleRename)
	s.mux.HandleFunc("GET /watch", s.handleWatch)

	return s
}

func (s *PageServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *PageServer) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	if ids == nil {
		ids = []model.PageID{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ids)
}

func (s *PageServer) handleGet(w http.ResponseWriter, r *http.Request) {
	page := model.PageID(r.PathValue("id"))

	source, err := s.store.GetSource(r.Context(), page)
	if errors.Is(err, ErrPageNotFound) {
		http.Error(w, "page not found", http.StatusNotFound)

		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, source)
}

func (s *PageServer) handlePut(w http.ResponseWriter, r *http.Request) {
	page := model.PageID(r.PathValue("id"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPageBytes))
	if err != nil {
		http.Error(w, "page body too large", http.StatusRequestEntityTooLarge)

		return
	}

	if err := s.store.SaveSource(r.Context(), page, string(body)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	s.broadcast(page)
	w.WriteHeader(http.StatusNoContent)
}

func (s *PageServer) handleRename(w http.ResponseWriter, r *http.Request) {
	page := model.PageID(r.PathValue("id"))

	var req struct {
		To model.PageID `json:"to"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil || req.To == "" {
		http.Error(w, "invalid rename request", http.StatusBadRequest)

		return
	}

	err := s.store.Rename(r.Context(), page, req.To)
	switch {
	case errors.Is(err, ErrPageNotFound):
		http.Error(w, "page not found", http.StatusNotFound)

		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusConflict)

		return
	}

	s.broadcast(page)
	s.broadcast(req.To)
	w.WriteHeader(http.StatusNoContent)
}

// handleWatch upgrades the connection, registers a subscriber channel,
// acknowledges with an empty event, and pumps change notifications until
// the client goes away.
func (s *PageServer) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.V(1).Infof("[watch]upgrade failed: %v", err)

		return
	}

	ch := make(chan model.PageID, 16)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	watcherCount := len(s.watchers)
	s.mu.Unlock()

	glog.V(1).Infof("[watch]subscriber connected (%d active)", watcherCount)

	defer func() {
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()

		_ = conn.Close()
		glog.V(1).Info("[watch]subscriber disconnected")
	}()

	if err := conn.WriteJSON(watchEvent{}); err != nil {
		return
	}

	// Reads only serve to detect the peer closing the socket.
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case page := <-ch:
			if err := conn.WriteJSON(watchEvent{Page: page}); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// broadcast fans a change notification out to every watcher, dropping
// the event for subscribers whose buffers are full.
func (s *PageServer) broadcast(page model.PageID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	glog.V(2).Infof("[watch]broadcast %s to %d subscribers", page, len(s.watchers))

	for ch := range s.watchers {
		select {
		case ch <- page:
		default:
		}
	}
}
