package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aulavoz/aulavoz/internal/resilience"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return srv, c
}

func TestChat_MapQRShape(t *testing.T) {
	t.Parallel()

	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["text"] != "renovar tne" {
			t.Errorf("request text: %q", req["text"])
		}
		_, _ = w.Write([]byte(`{
			"response": "Puedes renovarla en línea.",
			"qr_codes": {"https://tne.cl/renovar": "qr-payload"},
			"has_qr": true,
			"feedback_session_id": "fs-1",
			"chatlog_id": 42
		}`))
	})

	reply, err := c.Chat(context.Background(), "renovar tne")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.Text != "Puedes renovarla en línea." {
		t.Errorf("text: %q", reply.Text)
	}
	if !reply.HasQR || reply.QRCodes["https://tne.cl/renovar"] != "qr-payload" {
		t.Errorf("qr codes: %+v", reply.QRCodes)
	}
	if reply.FeedbackSessionID != "fs-1" || reply.ChatlogID != 42 {
		t.Errorf("metadata: %+v", reply)
	}
}

func TestChat_ListQRShapeNormalizesToSameMap(t *testing.T) {
	t.Parallel()

	responses := []string{
		`{"response": "ok", "qr_codes": {"https://a": "pa", "https://b": "pb"}}`,
		`{"response": "ok", "qr_codes": [{"url": "https://a", "qr_data": "pa"}, {"url": "https://b", "qr_data": "pb"}]}`,
	}
	var call atomic.Int32
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(responses[call.Add(1)-1]))
	})

	first, err := c.Chat(context.Background(), "hola")
	if err != nil {
		t.Fatalf("map shape: %v", err)
	}
	second, err := c.Chat(context.Background(), "hola")
	if err != nil {
		t.Fatalf("list shape: %v", err)
	}
	if !reflect.DeepEqual(first.QRCodes, second.QRCodes) {
		t.Errorf("shapes must normalize identically:\n map: %+v\nlist: %+v", first.QRCodes, second.QRCodes)
	}
	if !first.HasQR || !second.HasQR {
		t.Error("HasQR must be derived from the codes when the flag is absent")
	}
}

func TestChat_ServerError(t *testing.T) {
	t.Parallel()

	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := c.Chat(context.Background(), "hola"); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestChat_AbortSurfacesAsContextCanceled(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can watch the connection and cancel
		// r.Context() when the client aborts; otherwise Close deadlocks.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.Chat(ctx, "hola")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSubmitFeedback_WireShape(t *testing.T) {
	t.Parallel()

	var got map[string]any
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feedback/response" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.SubmitFeedback(context.Background(), FeedbackReport{
		SessionID: "fs-1",
		Satisfied: true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got["session_id"] != "fs-1" || got["is_satisfied"] != true {
		t.Errorf("body: %+v", got)
	}
	// The satisfied path must carry explicit nulls, not omit the fields.
	if v, ok := got["rating"]; !ok || v != nil {
		t.Errorf("rating must be an explicit null, got %+v", got)
	}
	if v, ok := got["comments"]; !ok || v != nil {
		t.Errorf("comments must be an explicit null, got %+v", got)
	}
}

func TestSubmitDetailedFeedback(t *testing.T) {
	t.Parallel()

	var got map[string]any
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feedback/response/detailed" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	})

	rating := 2
	if err := c.SubmitDetailedFeedback(context.Background(), "fs-2", "respuesta imprecisa", &rating); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got["session_id"] != "fs-2" || got["comments"] != "respuesta imprecisa" {
		t.Errorf("body: %+v", got)
	}
	if got["rating"] != float64(2) {
		t.Errorf("rating: %+v", got["rating"])
	}
}

func TestNew_RejectsInvalidBaseURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "not a url", "/relative"} {
		if _, err := New(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestChat_BreakerOpensOnRepeatedFailure(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	br := resilience.New(resilience.Config{Name: "chat", MaxFailures: 2, ResetTimeout: time.Hour})
	c, err := New(srv.URL, WithBreaker(br))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	for i := 0; i < 4; i++ {
		_, _ = c.Chat(context.Background(), "hola")
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("expected the breaker to stop traffic after 2 failures, server saw %d", n)
	}
	if _, err := c.Chat(context.Background(), "hola"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}
