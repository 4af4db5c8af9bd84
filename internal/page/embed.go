// Package page builds and parses the interaction island embedded in
// rendered pages: one structured data block, a server-rendered thread
// fallback, and the loader/stylesheet assets served alongside every page.
package page

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Symbiosis-Lab/moss-social/internal/event"
)

// DataBlockID identifies the embedded data block within a page.
const DataBlockID = "moss-social-data"

var ErrNoDataBlock = errors.New("page has no interaction data block")

// Config is the client-facing configuration carried in the data block.
type Config struct {
	Relays  []string        `json:"relays"`
	Flags   map[string]bool `json:"flags,omitempty"`
	PageURL string          `json:"page_url"`
}

// Data is the embedded page data consumed by the hydration engine and
// otherwise opaque to the page.
type Data struct {
	Interactions []event.Interaction `json:"interactions"`
	Config       Config              `json:"config"`
	BuildTime    int64               `json:"buildTime"`
}

// ScriptBlock serializes the data into its script element.
func (d Data) ScriptBlock() (string, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	// "</script>" inside JSON strings would end the element early.
	safe := strings.ReplaceAll(string(payload), "</", `<\/`)
	return fmt.Sprintf(`<script type="application/json" id=%q>%s</script>`, DataBlockID, safe), nil
}

// Parse decodes a raw data block payload. Malformed data is an error the
// caller uses to abort hydration for that page only.
func Parse(payload []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(payload, &d); err != nil {
		return Data{}, fmt.Errorf("malformed interaction data: %w", err)
	}
	return d, nil
}

// Extract pulls the data block payload out of page markup.
func Extract(html string) ([]byte, error) {
	start, end, err := dataBlockSpan(html)
	if err != nil {
		return nil, err
	}
	payload := strings.ReplaceAll(html[start:end], `<\/`, "</")
	return []byte(payload), nil
}

// ReplaceData swaps the payload of an existing data block for freshly
// fetched data, leaving the island and thread fallback around it alone.
// Pages injected on an earlier build keep their interactions current this
// way; ErrNoDataBlock means the page was never injected.
func ReplaceData(html string, d Data) (string, error) {
	start, end, err := dataBlockSpan(html)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	safe := strings.ReplaceAll(string(payload), "</", `<\/`)
	return html[:start] + safe + html[end:], nil
}

// dataBlockSpan locates the payload of the embedded data block, returning
// the half-open byte range between the script element's tags.
func dataBlockSpan(html string) (start, end int, err error) {
	marker := fmt.Sprintf(`id=%q`, DataBlockID)
	at := strings.Index(html, marker)
	if at < 0 {
		return 0, 0, ErrNoDataBlock
	}

	open := strings.Index(html[at:], ">")
	if open < 0 {
		return 0, 0, ErrNoDataBlock
	}
	start = at + open + 1

	length := strings.Index(html[start:], "</script>")
	if length < 0 {
		return 0, 0, ErrNoDataBlock
	}
	return start, start + length, nil
}
