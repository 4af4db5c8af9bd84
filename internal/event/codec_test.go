package event

import (
	"strings"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

const testPubkey = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"

func makeEvent(t *testing.T, kind int, tags nostr.Tags, content string) *nostr.Event {
	t.Helper()
	ev := &nostr.Event{
		PubKey:    testPubkey,
		CreatedAt: nostr.Timestamp(1700000000),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	ev.ID = ev.GetID()
	return ev
}

func TestFromEventComment(t *testing.T) {
	ev := makeEvent(t, nostr.KindTextNote,
		nostr.Tags{{"r", "https://example.com/post/"}}, "nice article")

	in, ok := FromEvent(ev)
	if !ok {
		t.Fatal("expected conversion")
	}
	if in.Type != TypeComment {
		t.Fatalf("expected comment, got %q", in.Type)
	}
	if in.TargetURL != "https://example.com/post/" {
		t.Fatalf("wrong target url: %q", in.TargetURL)
	}
	if in.Content != "nice article" {
		t.Fatalf("wrong content: %q", in.Content)
	}
	if in.ID != ev.ID {
		t.Fatal("interaction id must be the event id")
	}
	if !in.PublishedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("wrong timestamp: %v", in.PublishedAt)
	}
	if in.Author.ID != testPubkey {
		t.Fatalf("wrong author id: %q", in.Author.ID)
	}
	if !strings.HasPrefix(in.Author.Name, "npub1") {
		t.Fatalf("author name should abbreviate the npub, got %q", in.Author.Name)
	}
}

func TestFromEventMissingSubjectTag(t *testing.T) {
	ev := makeEvent(t, nostr.KindTextNote, nostr.Tags{{"t", "golang"}}, "no subject")
	if _, ok := FromEvent(ev); ok {
		t.Fatal("event without an r tag must be skipped")
	}
}

func TestFromEventEmptyReaction(t *testing.T) {
	ev := makeEvent(t, nostr.KindReaction,
		nostr.Tags{{"r", "https://example.com/"}}, "")

	in, ok := FromEvent(ev)
	if !ok {
		t.Fatal("expected conversion")
	}
	if in.Type != TypeLike {
		t.Fatalf("expected like, got %q", in.Type)
	}
	if in.Content != "+" {
		t.Fatalf("empty reaction content must default to +, got %q", in.Content)
	}
}

func TestFromEventZapAmount(t *testing.T) {
	ev := makeEvent(t, nostr.KindZap,
		nostr.Tags{{"r", "https://example.com/"}, {"amount", "21000"}}, "")

	in, ok := FromEvent(ev)
	if !ok {
		t.Fatal("expected conversion")
	}
	if in.Type != TypeZap {
		t.Fatalf("expected zap, got %q", in.Type)
	}
	if got := in.Meta["amount"]; got != int64(21000) {
		t.Fatalf("expected amount 21000, got %v", got)
	}
}

func TestFromEventUnknownKind(t *testing.T) {
	ev := makeEvent(t, 30078, nostr.Tags{{"r", "https://example.com/"}}, "app data")
	if _, ok := FromEvent(ev); ok {
		t.Fatal("unknown kinds must be skipped")
	}
}

func TestArticleEventTags(t *testing.T) {
	a := Article{
		Slug:        "hello-world",
		Title:       "Hello World",
		URL:         "https://example.com/hello-world/",
		Summary:     "first post",
		Content:     "# Hello",
		PublishedAt: time.Unix(1700000000, 0),
		Categories:  []string{"Go", "Meta"},
	}

	ev := ArticleEvent(a)
	if ev.Kind != nostr.KindArticle {
		t.Fatalf("expected long-form kind, got %d", ev.Kind)
	}

	want := map[string]string{
		"d":            "hello-world",
		"title":        "Hello World",
		"published_at": "1700000000",
		"r":            "https://example.com/hello-world/",
		"summary":      "first post",
	}
	for name, value := range want {
		if got := firstTagValue(ev.Tags, name); got != value {
			t.Fatalf("tag %q: expected %q, got %q", name, value, got)
		}
	}

	var topics []string
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "t" {
			topics = append(topics, tag[1])
		}
	}
	if len(topics) != 2 || topics[0] != "go" || topics[1] != "meta" {
		t.Fatalf("expected lower-cased category tags, got %v", topics)
	}
}

func TestArticleEventStableIdentifier(t *testing.T) {
	a := Article{Slug: "stable", Title: "v1", PublishedAt: time.Unix(1000, 0)}
	b := Article{Slug: "stable", Title: "v2 (edited)", PublishedAt: time.Unix(2000, 0)}

	if firstTagValue(ArticleEvent(a).Tags, "d") != firstTagValue(ArticleEvent(b).Tags, "d") {
		t.Fatal("edits to the same slug must keep the same identifier tag")
	}
}

func TestCommentEventMetadata(t *testing.T) {
	ev := CommentEvent("https://example.com/p/", "hi", "Ada", "https://ada.dev")
	if ev.Kind != nostr.KindTextNote {
		t.Fatalf("expected text note, got %d", ev.Kind)
	}
	if firstTagValue(ev.Tags, "r") != "https://example.com/p/" {
		t.Fatal("comment must reference the page url")
	}
	if firstTagValue(ev.Tags, "display_name") != "Ada" {
		t.Fatal("missing display_name tag")
	}
	if firstTagValue(ev.Tags, "website") != "https://ada.dev" {
		t.Fatal("missing website tag")
	}
}
