package event

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// permalinkBase is the public gateway used for author and event permalinks.
const permalinkBase = "https://njump.me/"

// FromEvent converts a wire event into an Interaction. The boolean reports
// whether a conversion happened: events without an ["r", url] subject tag and
// events of kinds this system does not render are skipped, not errored —
// unknown kinds are expected as the network evolves.
func FromEvent(ev *nostr.Event) (Interaction, bool) {
	target := firstTagValue(ev.Tags, "r")
	if target == "" {
		return Interaction{}, false
	}

	in := Interaction{
		ID:          ev.ID,
		Source:      SourceNostr,
		Author:      authorFromPubkey(ev.PubKey),
		Content:     ev.Content,
		PublishedAt: ev.CreatedAt.Time(),
		SourceURL:   eventPermalink(ev.ID),
		TargetURL:   target,
	}

	switch ev.Kind {
	case nostr.KindTextNote:
		in.Type = TypeComment
	case nostr.KindReaction:
		in.Type = TypeLike
		if in.Content == "" {
			in.Content = "+"
		}
	case nostr.KindZap:
		in.Type = TypeZap
		if amt := firstTagValue(ev.Tags, "amount"); amt != "" {
			if msat, err := strconv.ParseInt(amt, 10, 64); err == nil {
				in.Meta = map[string]any{"amount": msat}
			}
		}
	default:
		return Interaction{}, false
	}

	return in, true
}

// FromEvents converts a batch, dropping events the codec skips.
func FromEvents(evs []nostr.Event) []Interaction {
	out := make([]Interaction, 0, len(evs))
	for i := range evs {
		if in, ok := FromEvent(&evs[i]); ok {
			out = append(out, in)
		}
	}
	return out
}

// ArticleEvent builds the unsigned long-form event for an article. The "d"
// tag is derived from the slug, so republishing an edited article replaces
// the earlier copy instead of duplicating it.
func ArticleEvent(a Article) nostr.Event {
	tags := nostr.Tags{
		nostr.Tag{"d", a.Slug},
		nostr.Tag{"title", a.Title},
		nostr.Tag{"published_at", strconv.FormatInt(a.PublishedAt.Unix(), 10)},
	}
	if a.URL != "" {
		tags = append(tags, nostr.Tag{"r", a.URL})
	}
	if a.Summary != "" {
		tags = append(tags, nostr.Tag{"summary", a.Summary})
	}
	for _, c := range a.Categories {
		tags = append(tags, nostr.Tag{"t", strings.ToLower(c)})
	}

	return nostr.Event{
		Kind:      nostr.KindArticle,
		CreatedAt: nostr.Timestamp(a.PublishedAt.Unix()),
		Tags:      tags,
		Content:   a.Content,
	}
}

// CommentEvent builds the unsigned text-note event for a visitor comment on
// pageURL. Optional display name and website travel as metadata tags so other
// clients can render them without a profile lookup.
func CommentEvent(pageURL, content, name, website string) nostr.Event {
	tags := nostr.Tags{nostr.Tag{"r", pageURL}}
	if name != "" {
		tags = append(tags, nostr.Tag{"display_name", name})
	}
	if website != "" {
		tags = append(tags, nostr.Tag{"website", website})
	}

	return nostr.Event{
		Kind:      nostr.KindTextNote,
		CreatedAt: nostr.Now(),
		Tags:      tags,
		Content:   content,
	}
}

func authorFromPubkey(pubkey string) Author {
	a := Author{ID: pubkey}
	npub, err := nip19.EncodePublicKey(pubkey)
	if err != nil {
		a.Name = shorten(pubkey)
		return a
	}
	a.Name = shorten(npub)
	a.URL = permalinkBase + npub
	return a
}

func eventPermalink(id string) string {
	note, err := nip19.EncodeNote(id)
	if err != nil {
		return ""
	}
	return permalinkBase + note
}

// shorten abbreviates an identifier for display: first 10 and last 4 runes.
func shorten(s string) string {
	if len(s) <= 15 {
		return s
	}
	return fmt.Sprintf("%s…%s", s[:10], s[len(s)-4:])
}

func firstTagValue(tags nostr.Tags, name string) string {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}
