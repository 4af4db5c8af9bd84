// Package inject splices the interaction island and its loader into
// rendered page markup, independent of which page-generation tool produced
// the page.
package inject

import (
	"strings"
)

// Result reports where an injection pass ended up.
type Result int

const (
	// Skipped: the page has no article, main-content, or body closing
	// mark. Not an error; such pages are assumed to be non-content pages.
	Skipped Result = iota

	// Inserted: the island was placed (or already present).
	Inserted
)

// IslandMarker identifies an already-injected interaction island, keeping
// injection idempotent per page.
const IslandMarker = `id="moss-social-thread"`

// LoaderMarker identifies an already-injected loader reference.
const LoaderMarker = `data-moss-social-loader`

// Inject inserts the island before the page's most specific closing mark
// (</article>, then </main>, then </body>) and the loader immediately
// before </body> (appended at the end when the page has no body closing
// mark). Running Inject over its own output changes nothing.
func Inject(html, island, loader string) (string, Result) {
	out, res := injectIsland(html, island)
	if res == Skipped {
		return html, Skipped
	}
	return injectLoader(out, loader), Inserted
}

func injectIsland(html, island string) (string, Result) {
	if strings.Contains(html, IslandMarker) {
		return html, Inserted
	}

	for _, mark := range []string{"</article>", "</main>", "</body>"} {
		if at := lastIndexFold(html, mark); at >= 0 {
			return html[:at] + island + html[at:], Inserted
		}
	}
	return html, Skipped
}

func injectLoader(html, loader string) string {
	if strings.Contains(html, LoaderMarker) {
		return html
	}
	if at := lastIndexFold(html, "</body>"); at >= 0 {
		return html[:at] + loader + html[at:]
	}
	return html + loader
}

// lastIndexFold finds the last case-insensitive occurrence of mark. The
// marks are ASCII tag names, so a byte-wise fold is enough; lower-casing the
// whole page first would shift byte offsets on some unicode input.
func lastIndexFold(html, mark string) int {
	for i := len(html) - len(mark); i >= 0; i-- {
		if strings.EqualFold(html[i:i+len(mark)], mark) {
			return i
		}
	}
	return -1
}
