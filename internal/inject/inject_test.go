package inject

import (
	"strings"
	"testing"
)

const (
	island = `<section id="moss-social-thread"></section>`
	loader = `<script data-moss-social-loader src="/assets/moss-social.js"></script>`
)

func countOccurrences(s, sub string) int {
	return strings.Count(s, sub)
}

func TestInjectPrefersArticle(t *testing.T) {
	page := `<html><body><main><article><p>post</p></article></main></body></html>`

	out, res := Inject(page, island, loader)
	if res != Inserted {
		t.Fatal("expected Inserted")
	}
	if !strings.Contains(out, island+`</article>`) {
		t.Fatal("island must land immediately before the article closing mark")
	}
	if !strings.Contains(out, loader+`</body>`) {
		t.Fatal("loader must land immediately before the body closing mark")
	}
}

func TestInjectFallsBackToMain(t *testing.T) {
	page := `<html><body><main><p>page</p></main></body></html>`

	out, res := Inject(page, island, loader)
	if res != Inserted {
		t.Fatal("expected Inserted")
	}
	if !strings.Contains(out, island+`</main>`) {
		t.Fatal("island must land immediately before the main closing mark")
	}
}

func TestInjectFallsBackToBody(t *testing.T) {
	page := `<html><body><p>bare page</p></body></html>`

	out, res := Inject(page, island, loader)
	if res != Inserted {
		t.Fatal("expected Inserted")
	}
	if !strings.Contains(out, island+loader+`</body>`) {
		t.Fatalf("island then loader must sit before the body closing mark, got: %s", out)
	}
}

func TestInjectSkipsNonContentPage(t *testing.T) {
	page := `<?xml version="1.0"?><feed><entry>not html</entry></feed>`

	out, res := Inject(page, island, loader)
	if res != Skipped {
		t.Fatal("expected Skipped")
	}
	if out != page {
		t.Fatal("skipped pages must be left untouched")
	}
}

func TestInjectIdempotent(t *testing.T) {
	page := `<html><body><article>post</article></body></html>`

	once, res := Inject(page, island, loader)
	if res != Inserted {
		t.Fatal("expected Inserted")
	}
	twice, res := Inject(once, island, loader)
	if res != Inserted {
		t.Fatal("a second pass still reports Inserted")
	}
	if twice != once {
		t.Fatal("a second pass must not change the page")
	}
	if n := countOccurrences(twice, IslandMarker); n != 1 {
		t.Fatalf("expected exactly one island, found %d", n)
	}
	if n := countOccurrences(twice, LoaderMarker); n != 1 {
		t.Fatalf("expected exactly one loader, found %d", n)
	}
}

func TestInjectUsesLastClosingMark(t *testing.T) {
	page := `<body><article>a</article><article>b</article></body>`

	out, _ := Inject(page, island, loader)
	if !strings.HasPrefix(out, `<body><article>a</article><article>b`+island) {
		t.Fatalf("island must follow the last article, got: %s", out)
	}
}

func TestInjectCaseInsensitiveMarks(t *testing.T) {
	page := `<HTML><BODY><ARTICLE>shouty markup</ARTICLE></BODY></HTML>`

	out, res := Inject(page, island, loader)
	if res != Inserted {
		t.Fatal("expected Inserted on upper-case markup")
	}
	if !strings.Contains(out, island+`</ARTICLE>`) {
		t.Fatalf("island must respect upper-case closing marks, got: %s", out)
	}
}

func TestInjectNoBodyAppendsLoader(t *testing.T) {
	page := `<article>fragment without body</article>`

	out, res := Inject(page, island, loader)
	if res != Inserted {
		t.Fatal("expected Inserted")
	}
	if !strings.HasSuffix(out, loader) {
		t.Fatal("without a body closing mark the loader is appended at the end")
	}
}
