package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Symbiosis-Lab/moss-social/internal/relaytest"
)

const pageURL = "https://example.com/post/"

func pageFilters() nostr.Filters {
	return nostr.Filters{{
		Kinds: []int{nostr.KindTextNote},
		Tags:  nostr.TagMap{"r": []string{pageURL}},
	}}
}

func TestFetchDeduplicatesAcrossRelays(t *testing.T) {
	shared := relaytest.SignedEvent(t, nostr.KindTextNote, 1000, nostr.Tags{{"r", pageURL}}, "replicated comment")
	only2 := relaytest.SignedEvent(t, nostr.KindTextNote, 2000, nostr.Tags{{"r", pageURL}}, "unique comment")

	srv1 := relaytest.New(t, shared)
	srv2 := relaytest.New(t, shared, only2)

	got := Fetch(context.Background(), []string{srv1.URL, srv2.URL}, pageFilters(), zerolog.Nop())
	require.Len(t, got, 2)

	ids := map[string]int{}
	for _, ev := range got {
		ids[ev.ID]++
	}
	require.Equal(t, 1, ids[shared.ID], "each identity exactly once")
	require.Equal(t, 1, ids[only2.ID])
}

func TestFetchSameEventOnTwoRelays(t *testing.T) {
	c1 := relaytest.SignedEvent(t, nostr.KindTextNote, 1000, nostr.Tags{{"r", pageURL}}, "c1")

	srv1 := relaytest.New(t, c1)
	srv2 := relaytest.New(t, c1)

	got := Fetch(context.Background(), []string{srv1.URL, srv2.URL}, pageFilters(), zerolog.Nop())
	require.Len(t, got, 1)
	require.Equal(t, c1.ID, got[0].ID)
}

func TestFetchSortsNewestFirst(t *testing.T) {
	old := relaytest.SignedEvent(t, nostr.KindTextNote, 1000, nostr.Tags{{"r", pageURL}}, "old")
	mid := relaytest.SignedEvent(t, nostr.KindTextNote, 2000, nostr.Tags{{"r", pageURL}}, "mid")
	latest := relaytest.SignedEvent(t, nostr.KindTextNote, 3000, nostr.Tags{{"r", pageURL}}, "new")

	srv := relaytest.New(t, mid, latest, old)

	got := Fetch(context.Background(), []string{srv.URL}, pageFilters(), zerolog.Nop())
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i-1].CreatedAt, got[i].CreatedAt,
			"build-time results must be non-increasing by timestamp")
	}
}

func TestFetchToleratesFailedRelay(t *testing.T) {
	ok1 := relaytest.SignedEvent(t, nostr.KindTextNote, 1000, nostr.Tags{{"r", pageURL}}, "from relay 1")
	ok2 := relaytest.SignedEvent(t, nostr.KindTextNote, 2000, nostr.Tags{{"r", pageURL}}, "from relay 2")

	srv1 := relaytest.New(t, ok1)
	srv2 := relaytest.New(t, ok2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	relays := []string{srv1.URL, "ws://127.0.0.1:1", srv2.URL}
	got := Fetch(ctx, relays, pageFilters(), zerolog.Nop())
	require.Len(t, got, 2, "surviving relays still contribute")
}

func TestSortOldestFirst(t *testing.T) {
	events := []nostr.Event{
		{ID: "b", CreatedAt: 2000},
		{ID: "a", CreatedAt: 1000},
		{ID: "c", CreatedAt: 3000},
	}
	SortOldestFirst(events)
	require.Equal(t, []string{"a", "b", "c"}, []string{events[0].ID, events[1].ID, events[2].ID})
}

func TestPublishAtLeastOneAck(t *testing.T) {
	srv1 := relaytest.New(t)
	srv2 := relaytest.New(t)
	srv2.Reject = "rate limited"

	ev := relaytest.SignedEvent(t, nostr.KindTextNote, 1000, nostr.Tags{{"r", pageURL}}, "hi")

	report := Publish(context.Background(), []string{srv1.URL, srv2.URL}, &ev, zerolog.Nop())
	require.True(t, report.OK())
	require.Equal(t, []string{srv1.URL}, report.Acked)
	require.Len(t, report.Failed, 1)
	require.Equal(t, srv2.URL, report.Failed[0].Relay)
}

func TestPublishAllRejected(t *testing.T) {
	srv1 := relaytest.New(t)
	srv1.Reject = "no"
	srv2 := relaytest.New(t)
	srv2.Reject = "also no"

	ev := relaytest.SignedEvent(t, nostr.KindTextNote, 1000, nostr.Tags{{"r", pageURL}}, "hi")

	report := Publish(context.Background(), []string{srv1.URL, srv2.URL}, &ev, zerolog.Nop())
	require.False(t, report.OK())
	require.Empty(t, report.Acked)
	require.Len(t, report.Failed, 2, "failed list must be retained")
}

func TestPublishToleratesUnreachableRelay(t *testing.T) {
	srv := relaytest.New(t)

	ev := relaytest.SignedEvent(t, nostr.KindTextNote, 1000, nostr.Tags{{"r", pageURL}}, "hi")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	report := Publish(ctx, []string{"ws://127.0.0.1:1", srv.URL}, &ev, zerolog.Nop())
	require.True(t, report.OK())
	require.Len(t, report.Failed, 1)
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	events := []nostr.Event{
		{ID: "x", Content: "first"},
		{ID: "y"},
		{ID: "x", Content: "second copy"},
	}
	got := Dedupe(events)
	require.Len(t, got, 2)
	require.Equal(t, "first", got[0].Content)
}
