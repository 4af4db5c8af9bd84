package page

import (
	"strings"
	"testing"
	"time"

	"github.com/Symbiosis-Lab/moss-social/internal/event"
)

func sampleData() Data {
	return Data{
		Interactions: []event.Interaction{
			{
				ID:          "e1",
				Source:      event.SourceNostr,
				Type:        event.TypeComment,
				Author:      event.Author{ID: "pk1", Name: "npub1abc…wxyz"},
				Content:     "great post </script> with a twist",
				PublishedAt: time.Unix(1000, 0).UTC(),
				TargetURL:   "https://example.com/post/",
			},
			{
				ID:        "e2",
				Type:      event.TypeLike,
				Content:   "+",
				TargetURL: "https://example.com/post/",
			},
			{
				ID:        "e3",
				Type:      event.TypeZap,
				TargetURL: "https://example.com/post/",
				Meta:      map[string]any{"amount": int64(21000)},
			},
		},
		Config:    Config{Relays: []string{"wss://relay.example"}, PageURL: "https://example.com/post/"},
		BuildTime: 1700000000,
	}
}

func TestScriptBlockRoundTrip(t *testing.T) {
	block, err := sampleData().ScriptBlock()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(block, "</script>") != 1 {
		t.Fatal("payload must not close the script element early")
	}

	pageHTML := "<html><body>" + block + "</body></html>"
	payload, err := Extract(pageHTML)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(payload)
	if err != nil {
		t.Fatal(err)
	}

	if parsed.BuildTime != 1700000000 {
		t.Fatalf("wrong build time: %d", parsed.BuildTime)
	}
	if len(parsed.Interactions) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(parsed.Interactions))
	}
	if parsed.Interactions[0].Content != "great post </script> with a twist" {
		t.Fatalf("escaped content did not round trip: %q", parsed.Interactions[0].Content)
	}
	if parsed.Config.Relays[0] != "wss://relay.example" {
		t.Fatal("config must round trip")
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse([]byte(`{"interactions": [`)); err == nil {
		t.Fatal("malformed data must be an error")
	}
}

func TestExtractMissingBlock(t *testing.T) {
	if _, err := Extract("<html><body>no data here</body></html>"); err == nil {
		t.Fatal("expected ErrNoDataBlock")
	}
}

func TestBuildThreadTallies(t *testing.T) {
	thread := BuildThread(sampleData().Interactions)
	if len(thread.Comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(thread.Comments))
	}
	if thread.Likes != 1 {
		t.Fatalf("expected 1 like, got %d", thread.Likes)
	}
	if thread.ZapTotal != 21 {
		t.Fatalf("expected 21 sats, got %d", thread.ZapTotal)
	}
}

func TestRenderThreadEscapesContent(t *testing.T) {
	html, err := RenderThread([]event.Interaction{{
		ID:      "evil",
		Type:    event.TypeComment,
		Author:  event.Author{Name: "<script>alert(1)</script>"},
		Content: "<img src=x onerror=alert(1)>",
	}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>alert") || strings.Contains(html, "<img") {
		t.Fatal("comment content must be escaped")
	}
}

func TestIslandCarriesMarkerAndData(t *testing.T) {
	island, err := Island(sampleData())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(island, `id="moss-social-thread"`) {
		t.Fatal("island must carry the idempotence marker")
	}
	if !strings.Contains(island, `id="moss-social-data"`) {
		t.Fatal("island must carry the data block")
	}
}

func TestIslandWrapsLiveFragment(t *testing.T) {
	island, err := Island(sampleData())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(island, `<div class="moss-social-live">`) {
		t.Fatal("island must carry the live render target")
	}
}

func TestReplaceDataRefreshesPayload(t *testing.T) {
	island, err := Island(sampleData())
	if err != nil {
		t.Fatal(err)
	}
	doc := "<html><body><article>" + island + "</article></body></html>"

	fresh := sampleData()
	fresh.Interactions = append(fresh.Interactions, event.Interaction{
		ID:        "e4",
		Type:      event.TypeComment,
		Content:   "arrived since the last build",
		TargetURL: "https://example.com/post/",
	})

	updated, err := ReplaceData(doc, fresh)
	if err != nil {
		t.Fatal(err)
	}

	payload, err := Extract(updated)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.Interactions) != len(fresh.Interactions) {
		t.Fatalf("payload has %d interactions, want %d", len(parsed.Interactions), len(fresh.Interactions))
	}
	if strings.Count(updated, `id="moss-social-data"`) != 1 {
		t.Fatal("replacement must leave exactly one data block")
	}
	if !strings.Contains(updated, `id="moss-social-thread"`) {
		t.Fatal("replacement must leave the island in place")
	}
}

func TestReplaceDataWithoutBlock(t *testing.T) {
	if _, err := ReplaceData("<html><body></body></html>", sampleData()); err != ErrNoDataBlock {
		t.Fatalf("expected ErrNoDataBlock, got %v", err)
	}
}

func TestWidgetTags(t *testing.T) {
	tags := WidgetTags("/assets/")
	if !strings.Contains(tags, `href="/assets/moss-social.css"`) {
		t.Error("missing stylesheet reference")
	}
	if !strings.Contains(tags, `src="/assets/moss-social.js"`) {
		t.Error("missing loader reference")
	}
	if strings.Count(tags, "data-moss-social-loader") != 1 {
		t.Error("loader idempotence marker must appear exactly once")
	}
}

func TestAssetsPresent(t *testing.T) {
	fsys := Assets()
	for _, name := range []string{"moss-social.js", "moss-social.css"} {
		if _, err := fsys.Open(name); err != nil {
			t.Fatalf("missing asset %s: %v", name, err)
		}
	}
}
