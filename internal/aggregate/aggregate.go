// Package aggregate fans queries and publishes out to every configured
// relay concurrently. Each relay's success or failure is independent: all
// attempts are joined unconditionally and their outcomes folded into one
// result, never short-circuited on first failure.
package aggregate

import (
	"context"
	"sort"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/relay"
)

// Fetch queries all relays with the same filter set, deduplicates the
// combined results by event id, and returns them sorted newest-first.
// A relay that fails or times out contributes nothing; it never aborts the
// other relays or the fetch as a whole.
func Fetch(ctx context.Context, relays []string, filters nostr.Filters, log zerolog.Logger) []nostr.Event {
	var (
		wg sync.WaitGroup
		mu sync.Mutex

		events []nostr.Event
	)

	for _, url := range relays {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()

			conn, err := relay.Dial(ctx, url, log)
			if err != nil {
				log.Warn().Err(err).Str("relay", url).Msg("relay unreachable, skipping")
				return
			}
			defer conn.Close()

			got, err := conn.Fetch(ctx, filters)
			if err != nil {
				log.Warn().Err(err).Str("relay", url).Msg("relay fetch failed")
			}

			mu.Lock()
			events = append(events, got...)
			mu.Unlock()
		}(url)
	}
	wg.Wait()

	deduped := Dedupe(events)
	SortNewestFirst(deduped)
	return deduped
}

// Dedupe keeps the first occurrence of each event id. The same underlying
// event seen on two relays must not produce two interactions.
func Dedupe(events []nostr.Event) []nostr.Event {
	seen := make(map[string]struct{}, len(events))
	out := events[:0:0]
	for _, ev := range events {
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}
		out = append(out, ev)
	}
	return out
}

// SortNewestFirst orders events for build-time display.
func SortNewestFirst(events []nostr.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt > events[j].CreatedAt
	})
}

// SortOldestFirst orders events for chronological thread merging.
func SortOldestFirst(events []nostr.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt < events[j].CreatedAt
	})
}

// RelayError records why one relay failed a publish.
type RelayError struct {
	Relay string
	Err   error
}

func (e RelayError) Error() string { return e.Relay + ": " + e.Err.Error() }

// PublishReport is the folded outcome of a fan-out publish. Failures are
// retained, never discarded: whether partial failure counts as success is
// the caller's policy.
type PublishReport struct {
	Acked  []string
	Failed []RelayError
}

// OK reports success: at least one relay acknowledged the event.
func (r PublishReport) OK() bool { return len(r.Acked) > 0 }

// Publish sends a signed event to all relays concurrently and reports the
// per-relay outcome.
func Publish(ctx context.Context, relays []string, ev *nostr.Event, log zerolog.Logger) PublishReport {
	var (
		wg sync.WaitGroup
		mu sync.Mutex

		report PublishReport
	)

	for _, url := range relays {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()

			conn, err := relay.Dial(ctx, url, log)
			if err == nil {
				defer conn.Close()
				err = conn.Publish(ctx, ev)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("relay", url).Msg("relay publish failed")
				report.Failed = append(report.Failed, RelayError{Relay: url, Err: err})
				return
			}
			report.Acked = append(report.Acked, url)
		}(url)
	}
	wg.Wait()

	return report
}
