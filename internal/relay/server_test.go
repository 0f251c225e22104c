package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/labops/callroom/internal/signaling"
	"github.com/labops/callroom/internal/store"
)

func newTestRelay(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(0)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func TestHealth(t *testing.T) {
	_, ts := newTestRelay(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStoreRoundTrip(t *testing.T) {
	_, ts := newTestRelay(t)
	client := store.NewClient(ts.URL)
	ctx := context.Background()

	sig := signaling.New("room-a", signaling.KindOffer, "alice", "sdp")
	require.NoError(t, client.Append(ctx, "signals", sig))

	var got []signaling.Signal
	require.NoError(t, client.List(ctx, "signals", &got))
	require.Len(t, got, 1)
	assert.Equal(t, sig, got[0])

	t.Run("remove by id", func(t *testing.T) {
		require.NoError(t, client.RemoveByID(ctx, "signals", sig.ID))

		var after []signaling.Signal
		require.NoError(t, client.List(ctx, "signals", &after))
		assert.Empty(t, after)

		// Removing again is a 404.
		assert.Error(t, client.RemoveByID(ctx, "signals", sig.ID))
	})
}

func TestListEmptyCollection(t *testing.T) {
	_, ts := newTestRelay(t)
	client := store.NewClient(ts.URL)

	var got []signaling.Signal
	require.NoError(t, client.List(context.Background(), "never_written", &got))
	assert.Empty(t, got)
}

func TestAppendRejectsNonObject(t *testing.T) {
	_, ts := newTestRelay(t)

	resp, err := http.Post(ts.URL+"/collections/signals", "application/json", strings.NewReader(`"just a string"`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCollectionsAreIsolated(t *testing.T) {
	_, ts := newTestRelay(t)
	client := store.NewClient(ts.URL)
	ctx := context.Background()

	require.NoError(t, client.Append(ctx, "signals_a", signaling.New("r", signaling.KindICE, "alice", "x")))

	var got []signaling.Signal
	require.NoError(t, client.List(ctx, "signals_b", &got))
	assert.Empty(t, got)
}

func TestSweepDropsExpiredItems(t *testing.T) {
	srv, ts := newTestRelay(t)
	client := store.NewClient(ts.URL)
	ctx := context.Background()

	old := signaling.New("room-a", signaling.KindICE, "alice", "stale")
	require.NoError(t, client.Append(ctx, "signals", old))

	// Everything currently stored is older than a cutoff in the future.
	srv.sweep(time.Now().Add(time.Second))

	var got []signaling.Signal
	require.NoError(t, client.List(ctx, "signals", &got))
	assert.Empty(t, got)
}

func TestFeedPushesAppends(t *testing.T) {
	_, ts := newTestRelay(t)
	client := store.NewClient(ts.URL)
	ctx := context.Background()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/collections/signals/feed?room=room-a"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(100 * time.Millisecond)

	sig := signaling.New("room-a", signaling.KindOffer, "alice", "sdp")
	require.NoError(t, client.Append(ctx, "signals", sig))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var got signaling.Signal
	require.NoError(t, msgpack.Unmarshal(frame, &got))
	assert.Equal(t, sig, got)
}

func TestFeedFiltersByRoom(t *testing.T) {
	_, ts := newTestRelay(t)
	client := store.NewClient(ts.URL)
	ctx := context.Background()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/collections/signals/feed?room=room-a"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, client.Append(ctx, "signals", signaling.New("room-b", signaling.KindOffer, "bob", "other")))
	mine := signaling.New("room-a", signaling.KindICE, "alice", "cand")
	require.NoError(t, client.Append(ctx, "signals", mine))

	// The first frame delivered must already be room-a's; room-b was
	// filtered server-side.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var got signaling.Signal
	require.NoError(t, msgpack.Unmarshal(frame, &got))
	assert.Equal(t, mine.ID, got.ID)
}

func TestFeedTransportEndToEnd(t *testing.T) {
	_, ts := newTestRelay(t)
	client := store.NewClient(ts.URL)
	ctx := context.Background()

	feed := signaling.NewFeedTransport(client, "signals", ts.URL)
	defer feed.Close()

	// First poll dials the feed and comes back empty.
	assert.Empty(t, feed.Poll(ctx, "room-a", "me"))

	// Give the relay a moment to register the subscriber.
	time.Sleep(100 * time.Millisecond)

	publisher := signaling.NewPollTransport(client, "signals")
	id := publisher.Publish(ctx, "room-a", signaling.KindOffer, "peer", "sdp")

	var got []signaling.Signal
	require.Eventually(t, func() bool {
		got = feed.Poll(ctx, "room-a", "me")
		return len(got) > 0
	}, 5*time.Second, 50*time.Millisecond)

	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, signaling.KindOffer, got[0].Kind)

	// Drained; the next poll is empty again.
	assert.Empty(t, feed.Poll(ctx, "room-a", "me"))
}

func TestFeedDisconnectReleasesSubscriber(t *testing.T) {
	srv, ts := newTestRelay(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/collections/signals/feed?room=room-a"

	before := runtime.NumGoroutine()
	for range 20 {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		conn.Close()
	}

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.subs["signals"]) == 0
	}, 5*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() < before+10
	}, 5*time.Second, 50*time.Millisecond)
}
