package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittocache/pkg/cache"
	"github.com/marmos91/dittocache/pkg/trash"
)

func newTestServer(t *testing.T) (*httptest.Server, *cache.Cache) {
	t.Helper()

	root := t.TempDir()
	ts := trash.New(root)
	t.Cleanup(func() { ts.Close(5 * time.Second) })

	c, err := cache.New(cache.Options{Name: "api", Root: root, Trash: ts})
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	t.Cleanup(c.Close)

	server := httptest.NewServer(NewRouter(c))
	t.Cleanup(server.Close)
	return server, c
}

func doRequest(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestObjectLifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	objectURL := server.URL + "/v1/objects/photo.jpg"

	// Missing object.
	if resp := doRequest(t, http.MethodGet, objectURL, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET missing = %d, want 404", resp.StatusCode)
	}

	// Store.
	payload := []byte("image bytes")
	if resp := doRequest(t, http.MethodPut, objectURL, payload); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT = %d, want 204", resp.StatusCode)
	}

	// Existence.
	if resp := doRequest(t, http.MethodHead, objectURL, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("HEAD = %d, want 200", resp.StatusCode)
	}

	// Read back.
	resp := doRequest(t, http.MethodGet, objectURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET = %d, want 200", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if buf.String() != string(payload) {
		t.Errorf("GET body = %q, want %q", buf.String(), payload)
	}

	// Delete.
	if resp := doRequest(t, http.MethodDelete, objectURL, nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE = %d, want 204", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodDelete, objectURL, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second DELETE = %d, want 404", resp.StatusCode)
	}
}

func TestEscapedKeys(t *testing.T) {
	server, _ := newTestServer(t)

	key := "users/42/avatar.png"
	objectURL := server.URL + "/v1/objects/" + url.PathEscape(key)

	if resp := doRequest(t, http.MethodPut, objectURL, []byte("v")); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT = %d, want 204", resp.StatusCode)
	}

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/keys", nil)
	var body struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding keys: %v", err)
	}
	if len(body.Keys) != 1 || body.Keys[0] != key {
		t.Errorf("keys = %v, want [%q]", body.Keys, key)
	}
}

func TestStats(t *testing.T) {
	server, c := newTestServer(t)

	if err := c.Set("k", []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /v1/stats = %d, want 200", resp.StatusCode)
	}

	var stats struct {
		Name       string `json:"name"`
		EntryCount int    `json:"entry_count"`
		ByteCount  int64  `json:"byte_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.Name != "api" {
		t.Errorf("name = %q, want %q", stats.Name, "api")
	}
	if stats.EntryCount != 1 || stats.ByteCount < 5 {
		t.Errorf("entries=%d bytes=%d, want 1 entry with >= 5 bytes", stats.EntryCount, stats.ByteCount)
	}
}

func TestTrimEndpoint(t *testing.T) {
	server, c := newTestServer(t)

	for _, key := range []string{"a", "b", "c"} {
		if err := c.Set(key, make([]byte, 100)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	body := []byte(`{"mode":"size","limit":150}`)
	resp := doRequest(t, http.MethodPost, server.URL+"/v1/trim", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /v1/trim = %d, want 200", resp.StatusCode)
	}

	var result struct {
		ByteCount int64 `json:"byte_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding trim response: %v", err)
	}
	if result.ByteCount > 150 {
		t.Errorf("byte count after trim = %d, want <= 150", result.ByteCount)
	}
}

func TestTrimRejectsBadMode(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, server.URL+"/v1/trim", []byte(`{"mode":"bogus"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("POST /v1/trim bogus = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteAll(t *testing.T) {
	server, c := newTestServer(t)

	for _, key := range []string{"a", "b"} {
		if err := c.Set(key, []byte("v")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	if resp := doRequest(t, http.MethodDelete, server.URL+"/v1/objects/", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE /v1/objects/ = %d, want 204", resp.StatusCode)
	}

	if got := c.Stats().EntryCount; got != 0 {
		t.Errorf("entries after clear = %d, want 0", got)
	}
}

func TestPutOversizedPayload(t *testing.T) {
	root := t.TempDir()
	ts := trash.New(root)
	t.Cleanup(func() { ts.Close(5 * time.Second) })

	c, err := cache.New(cache.Options{Name: "small", Root: root, ByteLimit: 10, Trash: ts})
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	t.Cleanup(c.Close)

	server := httptest.NewServer(NewRouter(c))
	t.Cleanup(server.Close)

	resp := doRequest(t, http.MethodPut, server.URL+"/v1/objects/big", []byte(strings.Repeat("x", 100)))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized PUT = %d, want 413", resp.StatusCode)
	}
}
