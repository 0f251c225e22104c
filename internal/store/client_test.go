package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID   string `json:"id"`
	Note string `json:"note"`
}

func TestClientRequestShapes(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			w.Write([]byte(`[{"id":"a","note":"hello"}]`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	ctx := context.Background()

	t.Run("append", func(t *testing.T) {
		require.NoError(t, client.Append(ctx, "notes", entry{ID: "a", Note: "hello"}))
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "/collections/notes", gotPath)
		assert.Equal(t, "application/json", gotContentType)
	})

	t.Run("list", func(t *testing.T) {
		var got []entry
		require.NoError(t, client.List(ctx, "notes", &got))
		assert.Equal(t, http.MethodGet, gotMethod)
		assert.Equal(t, []entry{{ID: "a", Note: "hello"}}, got)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, client.RemoveByID(ctx, "notes", "a"))
		assert.Equal(t, http.MethodDelete, gotMethod)
		assert.Equal(t, "/collections/notes/a", gotPath)
	})
}

func TestClientSurfacesBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	ctx := context.Background()

	assert.Error(t, client.Append(ctx, "notes", entry{ID: "a"}))
	var got []entry
	assert.Error(t, client.List(ctx, "notes", &got))
	assert.Error(t, client.RemoveByID(ctx, "notes", "a"))
}

func TestClientUnreachableServer(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	err := client.Append(context.Background(), "notes", entry{ID: "a"})
	assert.Error(t, err)
}
