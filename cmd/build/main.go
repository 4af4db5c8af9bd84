package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/aggregate"
	"github.com/Symbiosis-Lab/moss-social/internal/config"
	"github.com/Symbiosis-Lab/moss-social/internal/event"
	"github.com/Symbiosis-Lab/moss-social/internal/inject"
	"github.com/Symbiosis-Lab/moss-social/internal/page"
)

func main() {
	dir := flag.String("dir", "", "Directory of rendered HTML pages")
	assetBase := flag.String("assets", "/assets", "Public base path for widget assets")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if *dir == "" {
		logger.Fatal().Msg("missing -dir")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration failed")
	}
	if cfg.SiteURL == "" {
		logger.Fatal().Msg("site URL is required: set MOSS_SITE_URL or site_url in moss-social.yml")
	}

	ctx := context.Background()
	buildTime := time.Now().Unix()

	var injected, skipped, failed int
	err = filepath.WalkDir(*dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".html") {
			return nil
		}

		rel, err := filepath.Rel(*dir, p)
		if err != nil {
			return err
		}
		pageURL := pageURLFor(cfg.SiteURL, rel)

		result, err := buildPage(ctx, cfg, p, pageURL, *assetBase, buildTime, logger)
		if err != nil {
			// One broken page never fails the rest of the build.
			logger.Error().Err(err).Str("page", rel).Msg("page failed")
			failed++
			return nil
		}
		if result == inject.Skipped {
			logger.Debug().Str("page", rel).Msg("no insertion point, skipped")
			skipped++
			return nil
		}
		injected++
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("walking pages failed")
	}

	if err := emitAssets(*dir); err != nil {
		logger.Fatal().Err(err).Msg("emitting assets failed")
	}

	logger.Info().
		Int("injected", injected).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("build pass complete")
	if failed > 0 {
		os.Exit(1)
	}
}

func buildPage(ctx context.Context, cfg *config.Config, path, pageURL, assetBase string, buildTime int64, logger zerolog.Logger) (inject.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return inject.Skipped, err
	}

	filters := nostr.Filters{{
		Kinds: []int{nostr.KindTextNote, nostr.KindReaction, nostr.KindZap},
		Tags:  nostr.TagMap{"r": []string{pageURL}},
	}}
	events := aggregate.Fetch(ctx, cfg.Relays, filters, logger)
	aggregate.SortNewestFirst(events)

	data := page.Data{
		Interactions: event.FromEvents(events),
		Config: page.Config{
			Relays:  cfg.Relays,
			Flags:   cfg.Flags,
			PageURL: pageURL,
		},
		BuildTime: buildTime,
	}

	// A page injected on an earlier build keeps its island; only the
	// embedded data is swapped for the fresh fetch.
	if html, err := page.ReplaceData(string(raw), data); err == nil {
		return inject.Inserted, os.WriteFile(path, []byte(html), 0o644)
	} else if !errors.Is(err, page.ErrNoDataBlock) {
		return inject.Skipped, err
	}

	island, err := page.Island(data)
	if err != nil {
		return inject.Skipped, err
	}

	html, result := inject.Inject(string(raw), island, page.WidgetTags(assetBase))
	if result == inject.Skipped {
		return inject.Skipped, nil
	}

	return result, os.WriteFile(path, []byte(html), 0o644)
}

// pageURLFor maps a rendered file back to its canonical URL. Directory
// indexes address the directory itself.
func pageURLFor(siteURL, rel string) string {
	rel = filepath.ToSlash(rel)
	if path.Base(rel) == "index.html" {
		rel = path.Dir(rel)
		if rel == "." {
			rel = ""
		} else {
			rel += "/"
		}
	}
	u, err := url.Parse(siteURL)
	if err != nil {
		return strings.TrimSuffix(siteURL, "/") + "/" + rel
	}
	u.Path = path.Join(u.Path, rel)
	if strings.HasSuffix(rel, "/") && u.Path != "/" {
		u.Path += "/"
	}
	return u.String()
}

// emitAssets copies the embedded loader and stylesheet next to the pages.
func emitAssets(dir string) error {
	out := filepath.Join(dir, "assets")
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	return fs.WalkDir(page.Assets(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := fs.ReadFile(page.Assets(), p)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(out, p), raw, 0o644)
	})
}
