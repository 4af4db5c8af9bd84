package page

import (
	"embed"
	"io/fs"
)

//go:embed assets
var assetFS embed.FS

// Assets returns the static files (loader script, stylesheet) served
// alongside every page.
func Assets() fs.FS {
	sub, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}
