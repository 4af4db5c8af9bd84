package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/relaytest"
	"github.com/Symbiosis-Lab/moss-social/internal/signer"
	"github.com/Symbiosis-Lab/moss-social/internal/store"
)

const testPage = "https://example.org/posts/hello"

func newTestHandler(t *testing.T, srv *relaytest.Server) *Handler {
	t.Helper()
	kv, err := store.NewFileKV(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewHandler(
		[]string{srv.URL},
		kv,
		nil,
		nil,
		signer.Options{KV: kv, Log: zerolog.Nop()},
		zerolog.Nop(),
	)
}

func TestGetThreadTallies(t *testing.T) {
	comment := relaytest.SignedEvent(t, nostr.KindTextNote, 1000,
		nostr.Tags{{"r", testPage}}, "nice post")
	like := relaytest.SignedEvent(t, nostr.KindReaction, 1001,
		nostr.Tags{{"r", testPage}}, "+")
	zap := relaytest.SignedEvent(t, nostr.KindZap, 1002,
		nostr.Tags{{"r", testPage}, {"amount", "21000"}}, "")
	srv := relaytest.New(t, comment, like, zap)

	h := newTestHandler(t, srv)
	rec := httptest.NewRecorder()
	h.GetThread(rec, httptest.NewRequest("GET", "/thread?url="+testPage, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ThreadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Comments != 1 || resp.Likes != 1 {
		t.Errorf("comments=%d likes=%d, want 1/1", resp.Comments, resp.Likes)
	}
	if resp.ZapTotalSats != 21 {
		t.Errorf("zap total = %d sats, want 21", resp.ZapTotalSats)
	}
	if len(resp.Interactions) != 3 {
		t.Errorf("interactions = %d, want 3", len(resp.Interactions))
	}
}

// The loader swaps the island's live fragment for the response's html
// field; the endpoint must always serve one.
func TestGetThreadServesRenderedFragment(t *testing.T) {
	comment := relaytest.SignedEvent(t, nostr.KindTextNote, 1000,
		nostr.Tags{{"r", testPage}}, "nice post")
	srv := relaytest.New(t, comment)

	h := newTestHandler(t, srv)
	rec := httptest.NewRecorder()
	h.GetThread(rec, httptest.NewRequest("GET", "/thread?url="+testPage, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"html"`) {
		t.Fatal("response is missing the html field")
	}

	var resp ThreadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.HTML, "nice post") {
		t.Error("rendered fragment is missing the comment")
	}
	if !strings.Contains(resp.HTML, "moss-social-comment") {
		t.Error("rendered fragment is missing the comment markup")
	}
}

func TestGetThreadRequiresURL(t *testing.T) {
	srv := relaytest.New(t)
	h := newTestHandler(t, srv)

	rec := httptest.NewRecorder()
	h.GetThread(rec, httptest.NewRequest("GET", "/thread", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetThread(rec, httptest.NewRequest("GET", "/thread?url=not-a-url", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("relative url status = %d, want 400", rec.Code)
	}
}

func TestPostCommentPublishes(t *testing.T) {
	srv := relaytest.New(t)
	h := newTestHandler(t, srv)

	body := `{"url":"` + testPage + `","content":"hello","name":"ada"}`
	rec := httptest.NewRecorder()
	h.PostComment(rec, httptest.NewRequest("POST", "/comment", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp CommentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.EventID == "" {
		t.Error("missing event id")
	}
	if resp.SignerKind != string(signer.KindLocal) {
		t.Errorf("signer kind = %q, want local", resp.SignerKind)
	}

	published := srv.Published()
	if len(published) != 1 {
		t.Fatalf("relay stored %d events, want 1", len(published))
	}
	if published[0].ID != resp.EventID {
		t.Error("relay stored a different event")
	}
	if ok, _ := published[0].CheckSignature(); !ok {
		t.Error("published event has an invalid signature")
	}
}

func TestPostCommentRejectedEverywhere(t *testing.T) {
	srv := relaytest.New(t)
	srv.Reject = "blocked: spam"
	h := newTestHandler(t, srv)

	body := `{"url":"` + testPage + `","content":"hello"}`
	rec := httptest.NewRecorder()
	h.PostComment(rec, httptest.NewRequest("POST", "/comment", strings.NewReader(body)))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestPostCommentValidation(t *testing.T) {
	srv := relaytest.New(t)
	h := newTestHandler(t, srv)

	cases := []struct {
		name string
		body string
	}{
		{"empty content", `{"url":"` + testPage + `","content":"  "}`},
		{"missing url", `{"content":"hello"}`},
		{"bad json", `{`},
		{"oversized", `{"url":"` + testPage + `","content":"` + strings.Repeat("a", maxCommentLength+1) + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.PostComment(rec, httptest.NewRequest("POST", "/comment", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}
