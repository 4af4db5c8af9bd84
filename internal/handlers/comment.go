package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Symbiosis-Lab/moss-social/internal/aggregate"
	"github.com/Symbiosis-Lab/moss-social/internal/event"
	"github.com/Symbiosis-Lab/moss-social/internal/metrics"
	"github.com/Symbiosis-Lab/moss-social/internal/signer"
)

const maxCommentLength = 4000

// CommentRequest is a visitor comment for one page.
type CommentRequest struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
	Website string `json:"website,omitempty"`
}

// CommentResponse reports the publish outcome. Submitted means at least
// one relay holds the comment; relays that refused it are listed.
type CommentResponse struct {
	EventID    string   `json:"event_id"`
	Acked      []string `json:"acked"`
	Failed     []string `json:"failed,omitempty"`
	SignerKind string   `json:"signer_kind"`
}

// PostComment handles POST /comment: sign with the server's identity
// chain and fan the event out to every relay.
func (h *Handler) PostComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > maxCommentLength {
		h.Error(w, http.StatusBadRequest, "content too long")
		return
	}
	if !validPageURL(req.URL) {
		h.Error(w, http.StatusBadRequest, "url must be absolute http(s)")
		return
	}

	active, err := h.activeSigner(r.Context())
	if err != nil {
		if errors.Is(err, signer.ErrNoSigner) {
			h.Error(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("signer resolution failed")
		h.Error(w, http.StatusInternalServerError, "cannot establish identity")
		return
	}

	ev := event.CommentEvent(req.URL, req.Content, sanitizeName(req.Name), req.Website)
	if err := active.SignEvent(r.Context(), &ev); err != nil {
		h.log.Error().Err(err).Msg("comment signing failed")
		h.Error(w, http.StatusInternalServerError, "signing failed")
		return
	}

	report := aggregate.Publish(r.Context(), h.relays, &ev, h.log)
	if !report.OK() {
		h.Error(w, http.StatusBadGateway, "no relay accepted the comment")
		return
	}
	metrics.CommentsSubmitted.Inc()

	resp := CommentResponse{
		EventID:    ev.ID,
		Acked:      report.Acked,
		SignerKind: string(active.Kind()),
	}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, f.Relay)
	}
	h.JSON(w, http.StatusCreated, resp)
}
