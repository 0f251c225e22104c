package signaling

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// FeedTransport is the push-based Transport: it subscribes to the relay's
// websocket feed for a room and buffers incoming frames, so Poll only drains
// what has already been pushed. Publishing still goes through the store.
// Sessions cannot tell a FeedTransport from a PollTransport, which is the
// point: the state machine keys off signal kinds, not transport mechanics.
type FeedTransport struct {
	store      Store
	collection string
	baseURL    string

	mu    sync.Mutex
	room  string
	conn  *websocket.Conn
	queue []Signal
}

// NewFeedTransport creates a push transport against the relay at baseURL
// (the same HTTP base the store client uses).
func NewFeedTransport(s Store, collection, baseURL string) *FeedTransport {
	return &FeedTransport{store: s, collection: collection, baseURL: baseURL}
}

// Publish appends a signal through the store, identical to PollTransport.
func (t *FeedTransport) Publish(ctx context.Context, room string, kind Kind, sender, payload string) string {
	sig := New(room, kind, sender, payload)
	if err := t.store.Append(ctx, t.collection, sig); err != nil {
		slog.Warn("signal publish failed", "room", room, "kind", kind, "err", err)
	}
	return sig.ID
}

// Poll drains the signals pushed since the last call. The feed is opened
// lazily on the first Poll for a room and re-dialed after a drop; a failed
// dial yields an empty batch, same as a failed poll.
func (t *FeedTransport) Poll(ctx context.Context, room, excludeSender string) []Signal {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.room != room {
		t.closeLocked()
		t.room = room
		t.queue = nil
	}
	if t.conn == nil {
		if err := t.dialLocked(room); err != nil {
			slog.Debug("signal feed dial failed", "room", room, "err", err)
			return nil
		}
	}

	batch := filterRoom(t.queue, room, excludeSender)
	t.queue = nil
	return batch
}

// Close tears down the feed connection. Safe to call with no feed open.
func (t *FeedTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
	return nil
}

func (t *FeedTransport) dialLocked(room string) error {
	u, err := url.Parse(t.baseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/collections/" + url.PathEscape(t.collection) + "/feed"
	u.RawQuery = url.Values{"room": {room}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	t.conn = conn
	go t.readPump(conn)
	return nil
}

// readPump decodes msgpack frames into the queue until the feed drops.
func (t *FeedTransport) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()
			return
		}

		var sig Signal
		if err := msgpack.Unmarshal(data, &sig); err != nil {
			slog.Warn("signal feed frame malformed", "err", err)
			continue
		}

		t.mu.Lock()
		if t.conn == conn {
			t.queue = append(t.queue, sig)
		}
		t.mu.Unlock()
	}
}

func (t *FeedTransport) closeLocked() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}
