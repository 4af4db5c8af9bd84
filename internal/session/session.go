// Package session runs the page-view side of the system: it parses the
// embedded interaction data, renders the thread, resolves a signer on
// demand, submits new comments, and polls relays for newly arrived events,
// merging them without disturbing what is already shown.
//
// All session state is owned by the goroutine driving the session. Run is
// that driver: commands from other goroutines arrive over channels and are
// handled between poll cycles, so no field needs a lock and a known-set
// check-then-insert can never interleave with another cycle's.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/aggregate"
	"github.com/Symbiosis-Lab/moss-social/internal/event"
	"github.com/Symbiosis-Lab/moss-social/internal/metrics"
	"github.com/Symbiosis-Lab/moss-social/internal/page"
	"github.com/Symbiosis-Lab/moss-social/internal/signer"
	"github.com/Symbiosis-Lab/moss-social/internal/store"
)

const (
	// PollInterval is the steady-state polling cadence.
	PollInterval = 30 * time.Second

	// followUpDelay is how long after a submit the out-of-cycle poll
	// waits, giving relays time to store the visitor's own comment.
	followUpDelay = 5 * time.Second

	profileKeyName = "moss_visitor_profile"
)

var ErrNoRelays = errors.New("no relays configured")

// Hooks connect the session to whatever renders it. All hooks are invoked
// from the session goroutine; nil hooks are skipped.
type Hooks struct {
	// Render receives the thread HTML after hydration and every merge.
	Render func(html string)

	// Notify receives the count of newly arrived comments, fired only
	// after the catch-up first poll.
	Notify func(newComments int)

	// SignerResolved reports which tier serves the session.
	SignerResolved func(kind signer.Kind)
}

// Options configures a session.
type Options struct {
	// PageURL overrides the embedded config's page URL.
	PageURL string

	// Relays overrides the embedded config's relay list.
	Relays []string

	// Signer configures the resolution chain.
	Signer signer.Options

	// KV remembers the visitor's display name and website between
	// visits. Optional.
	KV store.KV

	// PollInterval defaults to PollInterval when zero; tests shorten it.
	PollInterval time.Duration

	Hooks Hooks
	Log   zerolog.Logger
}

// SubmitRequest is a visitor comment to sign and publish.
type SubmitRequest struct {
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
	Website string `json:"website,omitempty"`
}

// SubmitResult is the optimistic outcome surfaced to the visitor: the
// comment is "submitted" once one relay holds it; it appears in the thread
// when a poll brings it back from the network.
type SubmitResult struct {
	EventID    string   `json:"event_id"`
	Acked      []string `json:"acked"`
	FailedURLs []string `json:"failed,omitempty"`
	SignerKind string   `json:"signer_kind"`
}

// Session holds the per-page-view state: the known-event set, the
// timestamp watermark, the merged thread, and the resolved signer. Methods
// are not safe for concurrent use; Run owns the session, and other
// goroutines talk to it through Enqueue.
type Session struct {
	id       string
	pageURL  string
	relays   []string
	interval time.Duration
	opts     Options
	log      zerolog.Logger

	known     map[string]struct{}
	watermark nostr.Timestamp
	thread    []event.Interaction

	active        signer.Signer
	firstPollDone bool

	commands chan command
}

type command struct {
	req   SubmitRequest
	reply chan SubmitReply
}

// SubmitReply pairs a submit outcome with its error for channel delivery.
type SubmitReply struct {
	Result SubmitResult
	Err    error
}

// New hydrates a session from the embedded data block payload. A parse
// failure aborts hydration for this page only; the caller leaves the
// no-script fallback visible.
func New(payload []byte, opts Options) (*Session, error) {
	data, err := page.Parse(payload)
	if err != nil {
		return nil, err
	}

	pageURL := opts.PageURL
	if pageURL == "" {
		pageURL = data.Config.PageURL
	}
	relays := opts.Relays
	if len(relays) == 0 {
		relays = data.Config.Relays
	}
	if len(relays) == 0 {
		return nil, ErrNoRelays
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = PollInterval
	}

	s := &Session{
		id:       ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String(),
		pageURL:  pageURL,
		relays:   relays,
		interval: interval,
		opts:     opts,
		known:    make(map[string]struct{}, len(data.Interactions)),
		commands: make(chan command),
	}
	s.log = opts.Log.With().Str("session", s.id).Str("page", pageURL).Logger()

	// Seed the known set and the watermark from the embedded data, or
	// from the build timestamp when nothing was embedded.
	s.watermark = nostr.Timestamp(data.BuildTime)
	for _, in := range data.Interactions {
		s.known[in.ID] = struct{}{}
		s.thread = append(s.thread, in)
		if at := nostr.Timestamp(in.PublishedAt.Unix()); at > s.watermark {
			s.watermark = at
		}
	}
	sortThread(s.thread)

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Thread returns the merged interactions in chronological order.
func (s *Session) Thread() []event.Interaction {
	out := make([]event.Interaction, len(s.thread))
	copy(out, s.thread)
	return out
}

// Watermark returns the last known timestamp.
func (s *Session) Watermark() nostr.Timestamp { return s.watermark }

// Render produces the current thread HTML and fires the Render hook.
func (s *Session) Render() (string, error) {
	html, err := page.RenderThread(s.thread)
	if err != nil {
		return "", err
	}
	if s.opts.Hooks.Render != nil {
		s.opts.Hooks.Render(html)
	}
	return html, nil
}

// Poll runs one query/merge cycle and returns how many new interactions
// arrived. The known-set check and insert happen together, synchronously,
// so an overlapping cycle can never double-count an event.
func (s *Session) Poll(ctx context.Context) int {
	since := s.watermark + 1
	filters := nostr.Filters{{
		Kinds: []int{nostr.KindTextNote},
		Tags:  nostr.TagMap{"r": []string{s.pageURL}},
		Since: &since,
	}}

	events := aggregate.Fetch(ctx, s.relays, filters, s.log)

	fresh := 0
	for i := range events {
		ev := &events[i]
		if _, seen := s.known[ev.ID]; seen {
			metrics.EventsDropped.WithLabelValues("duplicate").Inc()
			continue
		}
		in, ok := event.FromEvent(ev)
		if !ok {
			continue
		}
		s.known[ev.ID] = struct{}{}
		s.thread = append(s.thread, in)
		if ev.CreatedAt > s.watermark {
			s.watermark = ev.CreatedAt
		}
		fresh++
	}

	if fresh > 0 {
		sortThread(s.thread)
		if _, err := s.Render(); err != nil {
			s.log.Warn().Err(err).Msg("thread render failed")
		}
		if s.firstPollDone && s.opts.Hooks.Notify != nil {
			s.opts.Hooks.Notify(fresh)
		}
	}

	// The first poll is a catch-up, not "new" activity.
	s.firstPollDone = true
	metrics.PollCycles.Inc()
	return fresh
}

// Submit signs and publishes a visitor comment, resolving a signer first
// if the session has none. The comment is not echoed into the thread; the
// follow-up poll brings it back once the network has it.
func (s *Session) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.Content == "" {
		return SubmitResult{}, errors.New("empty comment")
	}

	if s.active == nil {
		resolved, err := signer.Resolve(ctx, s.opts.Signer)
		if err != nil {
			return SubmitResult{}, err
		}
		s.active = resolved
		if s.opts.Hooks.SignerResolved != nil {
			s.opts.Hooks.SignerResolved(resolved.Kind())
		}
	}

	// An empty form falls back to the profile remembered from an
	// earlier visit.
	if req.Name == "" && req.Website == "" {
		req.Name, req.Website = RememberedProfile(ctx, s.opts.KV)
	}

	ev := event.CommentEvent(s.pageURL, req.Content, req.Name, req.Website)
	if err := s.active.SignEvent(ctx, &ev); err != nil {
		return SubmitResult{}, fmt.Errorf("signing comment: %w", err)
	}

	report := aggregate.Publish(ctx, s.relays, &ev, s.log)
	if !report.OK() {
		return SubmitResult{}, fmt.Errorf("no relay accepted the comment (%d failed)", len(report.Failed))
	}

	s.rememberProfile(ctx, req)
	metrics.CommentsSubmitted.Inc()

	result := SubmitResult{
		EventID:    ev.ID,
		Acked:      report.Acked,
		SignerKind: string(s.active.Kind()),
	}
	for _, f := range report.Failed {
		result.FailedURLs = append(result.FailedURLs, f.Relay)
	}
	return result, nil
}

// Signer returns the session's active signer, if one has been resolved.
func (s *Session) Signer() signer.Signer { return s.active }

// Enqueue hands a submit request to the Run loop from another goroutine.
func (s *Session) Enqueue(req SubmitRequest) <-chan SubmitReply {
	reply := make(chan SubmitReply, 1)
	s.commands <- command{req: req, reply: reply}
	return reply
}

// Run drives the session: initial render, an immediate catch-up poll,
// then a poll every interval until the context ends. The interval ticker
// is never paused by a slow cycle; cycles overlap in wall-clock terms and
// rely on arrival-time deduplication.
func (s *Session) Run(ctx context.Context) error {
	if _, err := s.Render(); err != nil {
		return err
	}

	s.Poll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var followUp <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Poll(ctx)
		case <-followUp:
			followUp = nil
			s.Poll(ctx)
		case cmd := <-s.commands:
			result, err := s.Submit(ctx, cmd.req)
			cmd.reply <- SubmitReply{Result: result, Err: err}
			if err == nil {
				// Slight jitter keeps a burst of submits from
				// aligning their follow-up polls.
				followUp = time.After(followUpDelay + time.Duration(rand.Intn(1000))*time.Millisecond)
			}
		}
	}
}

func (s *Session) rememberProfile(ctx context.Context, req SubmitRequest) {
	if s.opts.KV == nil || (req.Name == "" && req.Website == "") {
		return
	}
	profile := fmt.Sprintf("%s\n%s", req.Name, req.Website)
	if err := s.opts.KV.Set(ctx, profileKeyName, profile); err != nil {
		s.log.Debug().Err(err).Msg("could not remember visitor profile")
	}
}

// RememberedProfile returns the visitor's stored display name and website.
func RememberedProfile(ctx context.Context, kv store.KV) (name, website string) {
	if kv == nil {
		return "", ""
	}
	stored, err := kv.Get(ctx, profileKeyName)
	if err != nil {
		return "", ""
	}
	if i := strings.IndexByte(stored, '\n'); i >= 0 {
		return stored[:i], stored[i+1:]
	}
	return stored, ""
}

// sortThread keeps the displayed thread in chronological order.
func sortThread(thread []event.Interaction) {
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].PublishedAt.Before(thread[j].PublishedAt)
	})
}
