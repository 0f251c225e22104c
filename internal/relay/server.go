// Package relay is a self-contained implementation of the suite's key/value
// persistence contract, so two peers can call each other without the full
// suite backend: append an item to a named collection, list a collection,
// remove by id. On top of the plain store it offers a websocket feed that
// pushes appends for a room as msgpack frames, for clients preferring push
// over polling.
package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	sweepInterval  = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,
	// The relay is a dev tool; it accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type item struct {
	id    string
	room  string
	added time.Time
	raw   json.RawMessage
}

type subscriber struct {
	room string
	send chan []byte
}

// Server holds every collection in memory. Items older than the retention
// window are swept out periodically; retention is the store's concern, not
// the signaling protocol's.
type Server struct {
	retention time.Duration

	mu          sync.Mutex
	collections map[string][]item
	subs        map[string]map[*subscriber]struct{}

	done chan struct{}
	once sync.Once
}

// NewServer creates a relay keeping items for the given retention window.
// Zero disables sweeping.
func NewServer(retention time.Duration) *Server {
	s := &Server{
		retention:   retention,
		collections: make(map[string][]item),
		subs:        make(map[string]map[*subscriber]struct{}),
		done:        make(chan struct{}),
	}
	if retention > 0 {
		go s.sweepLoop()
	}
	return s
}

// Handler returns the relay's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /collections/{name}", s.handleAppend)
	mux.HandleFunc("GET /collections/{name}", s.handleList)
	mux.HandleFunc("DELETE /collections/{name}/{id}", s.handleRemove)
	mux.HandleFunc("GET /collections/{name}/feed", s.handleFeed)
	return mux
}

// Close stops the sweep loop.
func (s *Server) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("relay is healthy"))
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var probe struct {
		ID   string `json:"id"`
		Room string `json:"room"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		http.Error(w, "item must be a JSON object", http.StatusBadRequest)
		return
	}

	it := item{id: probe.ID, room: probe.Room, added: time.Now(), raw: body}

	s.mu.Lock()
	s.collections[name] = append(s.collections[name], it)
	s.mu.Unlock()

	s.broadcast(name, it)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(body)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.mu.Lock()
	items := s.collections[name]
	out := make([]json.RawMessage, len(items))
	for i, it := range items {
		out[i] = it.raw
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	id := r.PathValue("id")

	s.mu.Lock()
	items := s.collections[name]
	kept := items[:0]
	removed := false
	for _, it := range items {
		if it.id == id {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	s.collections[name] = kept
	s.mu.Unlock()

	if !removed {
		http.Error(w, "no such item", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFeed upgrades to a websocket and streams every append for the given
// room as a msgpack frame until the client goes away.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	room := r.URL.Query().Get("room")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("feed upgrade failed", "err", err)
		return
	}

	sub := &subscriber{room: room, send: make(chan []byte, 64)}

	s.mu.Lock()
	if s.subs[name] == nil {
		s.subs[name] = make(map[*subscriber]struct{})
	}
	s.subs[name][sub] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs[name], sub)
		// broadcast only sends while holding the lock, so closing here
		// cannot race a send; the writer goroutine drains out and exits.
		close(sub.send)
		s.mu.Unlock()
		conn.Close()
	}()

	// Writer: the reader below is only there to notice the close.
	go func() {
		for frame := range sub.send {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// broadcast fans an appended item out to the collection's feed subscribers.
// A subscriber that can't keep up loses frames; feed consumers are built on
// the same loss tolerance as polling ones.
func (s *Server) broadcast(name string, it item) {
	dec := json.NewDecoder(bytes.NewReader(it.raw))
	dec.UseNumber()
	var generic map[string]any
	if err := dec.Decode(&generic); err != nil {
		return
	}
	// Integer fields must round-trip as integers through msgpack.
	for k, v := range generic {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				generic[k] = i
			} else if f, err := n.Float64(); err == nil {
				generic[k] = f
			}
		}
	}
	frame, err := msgpack.Marshal(generic)
	if err != nil {
		slog.Warn("feed frame encode failed", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs[name] {
		if sub.room != "" && sub.room != it.room {
			continue
		}
		select {
		case sub.send <- frame:
		default:
		}
	}
}

func (s *Server) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now().Add(-s.retention))
		}
	}
}

func (s *Server) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, items := range s.collections {
		kept := items[:0]
		for _, it := range items {
			if it.added.After(cutoff) {
				kept = append(kept, it)
			}
		}
		s.collections[name] = kept
	}
}
