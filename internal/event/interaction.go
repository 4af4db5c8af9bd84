// Package event holds the interaction model and the codec between wire-level
// protocol events and the normalized representations used by the rest of the
// system.
package event

import (
	"time"
)

// Source tags which network an interaction was collected from.
const SourceNostr = "nostr"

// Interaction types produced by the codec.
const (
	TypeComment = "comment"
	TypeLike    = "like"
	TypeZap     = "zap"
)

// Author identifies who produced an interaction. It is derived from the
// event's pubkey alone; no profile lookup happens at this layer, so Name is a
// readable abbreviation rather than a chosen display name.
type Author struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Interaction is a normalized social response to a page: a comment, a
// reaction, or a tip receipt. ID is the protocol event id and is the sole
// deduplication key across relays and polling cycles.
type Interaction struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	Type        string         `json:"interaction_type"`
	Author      Author         `json:"author"`
	Content     string         `json:"content,omitempty"`
	ContentHTML string         `json:"content_html,omitempty"`
	PublishedAt time.Time      `json:"published_at"`
	SourceURL   string         `json:"source_url,omitempty"`
	TargetURL   string         `json:"target_url"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Article is a site document to be published onto the network as a signed,
// replicated long-form event.
type Article struct {
	Slug        string
	Title       string
	URL         string
	Summary     string
	Content     string
	PublishedAt time.Time
	Categories  []string
}
