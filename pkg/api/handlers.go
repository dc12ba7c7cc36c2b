package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittocache/pkg/cache"
)

// handler serves the cache routes.
type handler struct {
	cache *cache.Cache
}

func newHandler(c *cache.Cache) *handler {
	return &handler{cache: c}
}

// objectKey extracts and decodes the key path parameter.
func (h *handler) objectKey(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "key")
	return url.PathUnescape(raw)
}

// Health is the liveness probe.
func (h *handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetObject returns the payload stored for the key.
func (h *handler) GetObject(w http.ResponseWriter, r *http.Request) {
	key, err := h.objectKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}

	value, err := h.cache.Get(key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			writeError(w, http.StatusNotFound, "key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(value)))
	_, _ = w.Write(value)
}

// HeadObject reports whether a payload exists for the key.
func (h *handler) HeadObject(w http.ResponseWriter, r *http.Request) {
	key, err := h.objectKey(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if h.cache.Contains(key) {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusNotFound)
	}
}

// PutObject stores the request body as the payload for the key.
func (h *handler) PutObject(w http.ResponseWriter, r *http.Request) {
	key, err := h.objectKey(r)
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}

	value, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body")
		return
	}

	// A payload over the byte limit would be skipped rather than stored;
	// report that instead of a silent no-op.
	if limit := h.cache.ByteLimit(); limit > 0 && int64(len(value)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "payload exceeds byte limit")
		return
	}

	if err := h.cache.Set(key, value); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteObject removes the payload for the key.
func (h *handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	key, err := h.objectKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}

	if !h.cache.Remove(key) {
		writeError(w, http.StatusNotFound, "key not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll clears the cache.
func (h *handler) DeleteAll(w http.ResponseWriter, _ *http.Request) {
	h.cache.RemoveAll()
	w.WriteHeader(http.StatusNoContent)
}

// Keys lists the live keys.
func (h *handler) Keys(w http.ResponseWriter, _ *http.Request) {
	keys := h.cache.Keys()
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// statsResponse is the JSON shape of cache statistics.
type statsResponse struct {
	Name           string `json:"name"`
	Dir            string `json:"dir"`
	EntryCount     int    `json:"entry_count"`
	ByteCount      int64  `json:"byte_count"`
	ByteLimit      int64  `json:"byte_limit"`
	AgeLimitSecs   int64  `json:"age_limit_seconds"`
	TTL            bool   `json:"ttl"`
	DiskStateKnown bool   `json:"disk_state_known"`
}

// Stats returns cache statistics.
func (h *handler) Stats(w http.ResponseWriter, _ *http.Request) {
	s := h.cache.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		Name:           s.Name,
		Dir:            s.Dir,
		EntryCount:     s.EntryCount,
		ByteCount:      s.ByteCount,
		ByteLimit:      s.ByteLimit,
		AgeLimitSecs:   int64(s.AgeLimit / time.Second),
		TTL:            s.TTL,
		DiskStateKnown: s.DiskStateKnown,
	})
}

// trimRequest selects a trim pass.
type trimRequest struct {
	// Mode is "size", "size_by_date" or "date".
	Mode string `json:"mode"`

	// Limit is the byte target for the size modes.
	Limit int64 `json:"limit,omitempty"`

	// Cutoff is the RFC 3339 cutoff for the date mode.
	Cutoff string `json:"cutoff,omitempty"`
}

// Trim runs a synchronous trim pass.
func (h *handler) Trim(w http.ResponseWriter, r *http.Request) {
	var req trimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid trim request")
		return
	}

	switch req.Mode {
	case "size":
		h.cache.TrimToSize(req.Limit)
	case "size_by_date":
		h.cache.TrimToSizeByDate(req.Limit)
	case "date":
		cutoff, err := time.Parse(time.RFC3339, req.Cutoff)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cutoff")
			return
		}
		h.cache.TrimToDate(cutoff)
	default:
		writeError(w, http.StatusBadRequest, "invalid trim mode")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"byte_count": h.cache.ByteCount()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
