// Package handlers implements the HTTP endpoints behind the widget: the
// thread read API, comment submission, and health. Every response is
// JSON; errors follow the {"error": ...} shape throughout.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/signer"
	"github.com/Symbiosis-Lab/moss-social/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	relays   []string
	kv       store.KV
	tracking store.Tracking
	redis    *store.RedisKV
	signCfg  signer.Options
	log      zerolog.Logger

	mu     sync.Mutex
	signer signer.Signer
}

// NewHandler creates a new Handler. redis may be nil; kv must not be,
// since the comment path's fallback identity lives there.
func NewHandler(relays []string, kv store.KV, tracking store.Tracking, redis *store.RedisKV, signCfg signer.Options, log zerolog.Logger) *Handler {
	return &Handler{
		relays:   relays,
		kv:       kv,
		tracking: tracking,
		redis:    redis,
		signCfg:  signCfg,
		log:      log,
	}
}

// activeSigner resolves the signing chain once and caches the result for
// the server's lifetime.
func (h *Handler) activeSigner(ctx context.Context) (signer.Signer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.signer != nil {
		return h.signer, nil
	}
	s, err := signer.Resolve(ctx, h.signCfg)
	if err != nil {
		return nil, err
	}
	h.signer = s
	return s, nil
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeName trims and limits a display name to 100 characters,
// removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 100 {
		name = name[:100]
	}

	return name
}

// validPageURL accepts only absolute http(s) URLs as subject references.
func validPageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
