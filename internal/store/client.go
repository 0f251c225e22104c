// Package store is the HTTP client for the suite's generic key/value
// persistence service. Every feature of the suite talks to the same three
// endpoints: append an item to a named collection, list a collection, and
// remove an item by id. The signaling subsystem only ever appends and lists.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const requestTimeout = 10 * time.Second

// Client talks to one persistence service instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the persistence service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Append persists item at the end of the named collection.
func (c *Client) Append(ctx context.Context, collection string, item any) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.collectionURL(collection), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("append to %s: %w", collection, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("append to %s: unexpected status %s", collection, resp.Status)
	}
	return nil
}

// List fetches every item in the named collection and decodes the response
// into out, which must be a pointer to a slice.
func (c *Client) List(ctx context.Context, collection string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.collectionURL(collection), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("list %s: %w", collection, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("list %s: unexpected status %s", collection, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", collection, err)
	}
	return nil
}

// RemoveByID deletes one item from the named collection. The signaling
// subsystem never calls this; it exists because the CRUD consumers of the
// suite share the same service contract.
func (c *Client) RemoveByID(ctx context.Context, collection, id string) error {
	u := c.collectionURL(collection) + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remove from %s: %w", collection, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remove from %s: unexpected status %s", collection, resp.Status)
	}
	return nil
}

func (c *Client) collectionURL(collection string) string {
	return c.baseURL + "/collections/" + url.PathEscape(collection)
}

// drain consumes and closes the response body so the connection can be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
