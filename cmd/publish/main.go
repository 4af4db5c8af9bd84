package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/aggregate"
	"github.com/Symbiosis-Lab/moss-social/internal/config"
	"github.com/Symbiosis-Lab/moss-social/internal/event"
	"github.com/Symbiosis-Lab/moss-social/internal/keys"
	"github.com/Symbiosis-Lab/moss-social/internal/metrics"
	"github.com/Symbiosis-Lab/moss-social/internal/store"
)

func main() {
	slug := flag.String("slug", "", "Stable article identifier (defaults to the content file name)")
	title := flag.String("title", "", "Article title")
	pageURL := flag.String("url", "", "Canonical article URL")
	summary := flag.String("summary", "", "Short summary")
	file := flag.String("file", "", "File containing the article content")
	categories := flag.String("categories", "", "Comma-separated category labels")
	published := flag.String("published", "", "Original publication time (RFC3339, defaults to now)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if *title == "" || *pageURL == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: publish -title <title> -url <url> -file <content> [-slug <slug>] [-summary <text>] [-categories a,b] [-published <rfc3339>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration failed")
	}

	key, err := keys.Decode(cfg.NostrKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("MOSS_NOSTR_KEY is missing or invalid")
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot read content file")
	}

	publishedAt := time.Now()
	if *published != "" {
		publishedAt, err = time.Parse(time.RFC3339, *published)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid -published time")
		}
	}

	articleSlug := *slug
	if articleSlug == "" {
		articleSlug = strings.TrimSuffix(filepath.Base(*file), filepath.Ext(*file))
	}

	article := event.Article{
		Slug:        articleSlug,
		Title:       *title,
		URL:         *pageURL,
		Summary:     *summary,
		Content:     string(content),
		PublishedAt: publishedAt,
	}
	for _, c := range strings.Split(*categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			article.Categories = append(article.Categories, c)
		}
	}

	ev := event.ArticleEvent(article)
	if err := key.Sign(&ev); err != nil {
		logger.Fatal().Err(err).Msg("signing failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	tracking, err := store.OpenTracking(ctx, cfg.DatabaseURL, filepath.Join(cfg.DataDir, "moss-social.db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot open tracking store")
	}
	defer tracking.Close()

	// The stable identifier tag makes this an edit of the earlier event,
	// not a second article.
	if prev, err := tracking.GetPublication(ctx, article.Slug); err == nil {
		logger.Info().
			Str("slug", article.Slug).
			Str("previous_event_id", prev.EventID).
			Time("previously_published", prev.PublishedAt).
			Msg("republishing known article")
	}

	report := aggregate.Publish(ctx, cfg.Relays, &ev, logger)
	for _, relay := range report.Acked {
		logger.Info().Str("relay", relay).Msg("accepted")
	}
	for _, f := range report.Failed {
		logger.Warn().Str("relay", f.Relay).Err(f.Err).Msg("failed")
	}

	if !report.OK() {
		logger.Error().Str("slug", article.Slug).Msg("no relay accepted the article")
		os.Exit(1)
	}
	metrics.ArticlesPublished.Inc()

	if err := tracking.RecordPublication(ctx, store.Publication{
		Slug:        article.Slug,
		EventID:     ev.ID,
		PublishedAt: time.Now(),
	}); err != nil {
		logger.Fatal().Err(err).Msg("cannot record publication")
	}

	logger.Info().
		Str("slug", article.Slug).
		Str("event_id", ev.ID).
		Int("acked", len(report.Acked)).
		Int("failed", len(report.Failed)).
		Msg("article published")
}
