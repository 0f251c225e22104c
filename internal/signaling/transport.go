package signaling

import (
	"context"
	"log/slog"
)

// Store is the slice of the persistence client the transport needs. The
// production implementation is store.Client; tests use an in-memory store.
type Store interface {
	Append(ctx context.Context, collection string, item any) error
	List(ctx context.Context, collection string, out any) error
}

// Transport publishes and fetches signals for a room. Implementations must
// be safe for concurrent use. The session state machine depends only on
// "a signal of kind K arrived", never on how it arrived, so a polling store
// and a push feed are interchangeable here.
type Transport interface {
	// Publish persists a new signal and returns its id. Transport errors are
	// swallowed and logged: the protocol tolerates lost publishes because the
	// user can always hang up and re-join.
	Publish(ctx context.Context, room string, kind Kind, sender, payload string) string

	// Poll returns every currently visible signal for the room, excluding
	// those sent by excludeSender. On any transport error it returns nil;
	// polling is best-effort and retried on the next tick.
	Poll(ctx context.Context, room, excludeSender string) []Signal
}

// PollTransport reads and writes signals through the persistence service
// directly. Each Poll is a full list of the collection, filtered client-side.
type PollTransport struct {
	store      Store
	collection string
}

// NewPollTransport creates a transport over the given store. All call
// signals share one collection.
func NewPollTransport(s Store, collection string) *PollTransport {
	return &PollTransport{store: s, collection: collection}
}

// Publish appends a signal to the collection.
func (t *PollTransport) Publish(ctx context.Context, room string, kind Kind, sender, payload string) string {
	sig := New(room, kind, sender, payload)
	if err := t.store.Append(ctx, t.collection, sig); err != nil {
		slog.Warn("signal publish failed", "room", room, "kind", kind, "err", err)
	}
	return sig.ID
}

// Poll lists the collection and keeps the room's signals from other senders.
func (t *PollTransport) Poll(ctx context.Context, room, excludeSender string) []Signal {
	var all []Signal
	if err := t.store.List(ctx, t.collection, &all); err != nil {
		slog.Debug("signal poll failed", "room", room, "err", err)
		return nil
	}
	return filterRoom(all, room, excludeSender)
}

func filterRoom(all []Signal, room, excludeSender string) []Signal {
	var out []Signal
	for _, sig := range all {
		if sig.Room != room || sig.Sender == excludeSender {
			continue
		}
		out = append(out, sig)
	}
	return out
}
