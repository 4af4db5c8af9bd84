package handlers

import (
	"net/http"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/Symbiosis-Lab/moss-social/internal/aggregate"
	"github.com/Symbiosis-Lab/moss-social/internal/event"
	"github.com/Symbiosis-Lab/moss-social/internal/page"
)

// ThreadResponse is the live thread for one page. HTML is the rendered
// thread fragment the loader swaps into the island on refresh.
type ThreadResponse struct {
	URL          string              `json:"url"`
	Comments     int                 `json:"comments"`
	Likes        int                 `json:"likes"`
	ZapTotalSats int64               `json:"zap_total_sats"`
	Interactions []event.Interaction `json:"interactions"`
	HTML         string              `json:"html"`
	FetchedAt    string              `json:"fetched_at"`
}

// GetThread handles GET /thread?url=. It queries every configured relay,
// deduplicates, and returns the interactions oldest first.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		h.Error(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	if !validPageURL(pageURL) {
		h.Error(w, http.StatusBadRequest, "url must be absolute http(s)")
		return
	}

	filters := nostr.Filters{{
		Kinds: []int{nostr.KindTextNote, nostr.KindReaction, nostr.KindZap},
		Tags:  nostr.TagMap{"r": []string{pageURL}},
	}}

	events := aggregate.Fetch(r.Context(), h.relays, filters, h.log)
	aggregate.SortOldestFirst(events)
	interactions := event.FromEvents(events)

	html, err := page.RenderThread(interactions)
	if err != nil {
		h.log.Warn().Err(err).Msg("thread render failed")
	}

	resp := ThreadResponse{
		URL:          pageURL,
		Interactions: interactions,
		HTML:         html,
		FetchedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if resp.Interactions == nil {
		resp.Interactions = []event.Interaction{}
	}
	for _, in := range interactions {
		switch in.Type {
		case event.TypeComment:
			resp.Comments++
		case event.TypeLike:
			resp.Likes++
		case event.TypeZap:
			switch amt := in.Meta["amount"].(type) {
			case int64:
				resp.ZapTotalSats += amt / 1000
			case float64:
				resp.ZapTotalSats += int64(amt) / 1000
			}
		}
	}

	h.JSON(w, http.StatusOK, resp)
}
