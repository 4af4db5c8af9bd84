package page

import (
	"html/template"
	"strings"
	"time"

	"github.com/Symbiosis-Lab/moss-social/internal/event"
)

// threadTemplate renders the comment thread plus reaction and tip tallies.
// It doubles as the no-script fallback and the live re-render target.
var threadTemplate = template.Must(template.New("thread").Funcs(template.FuncMap{
	"rfc3339": func(t time.Time) string { return t.Format(time.RFC3339) },
	"date":    func(t time.Time) string { return t.Format("2 Jan 2006 15:04") },
}).Parse(`<div class="moss-social-counts">
{{- if .Likes}}<span class="moss-social-likes">{{.Likes}} ♥</span>{{end}}
{{- if .ZapTotal}}<span class="moss-social-zaps">{{.ZapTotal}} sats ⚡</span>{{end}}
</div>
<ol class="moss-social-comments">
{{- range .Comments}}
<li class="moss-social-comment" data-event-id="{{.ID}}">
<header>
{{- if .Author.URL}}<a href="{{.Author.URL}}" rel="nofollow noopener">{{.Author.Name}}</a>{{else}}<span>{{.Author.Name}}</span>{{end}}
<time datetime="{{rfc3339 .PublishedAt}}">{{date .PublishedAt}}</time>
</header>
<p>{{.Content}}</p>
</li>
{{- end}}
</ol>`))

// Thread is the display model derived from a set of interactions.
type Thread struct {
	Comments []event.Interaction
	Likes    int
	ZapTotal int64 // sats
}

// BuildThread folds interactions into the display model. Comments must
// already be in the order the caller wants shown.
func BuildThread(interactions []event.Interaction) Thread {
	var t Thread
	for _, in := range interactions {
		switch in.Type {
		case event.TypeComment:
			t.Comments = append(t.Comments, in)
		case event.TypeLike:
			t.Likes++
		case event.TypeZap:
			// int64 straight from the codec, float64 after a JSON round trip.
			switch msat := in.Meta["amount"].(type) {
			case int64:
				t.ZapTotal += msat / 1000
			case float64:
				t.ZapTotal += int64(msat) / 1000
			}
		}
	}
	return t
}

// RenderThread renders the thread HTML fragment.
func RenderThread(interactions []event.Interaction) (string, error) {
	var sb strings.Builder
	if err := threadTemplate.Execute(&sb, BuildThread(interactions)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Island assembles the full interaction island: the data block followed by
// the rendered thread fallback.
func Island(d Data) (string, error) {
	block, err := d.ScriptBlock()
	if err != nil {
		return "", err
	}
	thread, err := RenderThread(d.Interactions)
	if err != nil {
		return "", err
	}

	// The live div is what the loader swaps on refresh; the data block
	// next to it must survive the swap.
	var sb strings.Builder
	sb.WriteString(`<section id="moss-social-thread" class="moss-social">`)
	sb.WriteString(block)
	sb.WriteString(`<div class="moss-social-live">`)
	sb.WriteString(thread)
	sb.WriteString(`</div>`)
	sb.WriteString(`</section>`)
	return sb.String(), nil
}

// LoaderTag returns the loader reference placed before the body closing
// mark on every injected page.
func LoaderTag(assetBase string) string {
	src := strings.TrimSuffix(assetBase, "/") + "/moss-social.js"
	return `<script defer data-moss-social-loader src="` + src + `"></script>`
}

// StylesheetTag returns the stylesheet reference for themes that want it.
func StylesheetTag(assetBase string) string {
	href := strings.TrimSuffix(assetBase, "/") + "/moss-social.css"
	return `<link rel="stylesheet" href="` + href + `">`
}

// WidgetTags returns the stylesheet and loader references as one unit,
// placed together before the body closing mark at build time.
func WidgetTags(assetBase string) string {
	return StylesheetTag(assetBase) + "\n" + LoaderTag(assetBase)
}
