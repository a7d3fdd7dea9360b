// Package backend is the HTTP JSON client for the campus assistant backend.
// The backend owns all the interesting behavior — reasoning, retrieval, QR
// generation, feedback storage — and this client only consumes its three
// endpoints: /chat, /feedback/response, and /feedback/response/detailed.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aulavoz/aulavoz/internal/observe"
	"github.com/aulavoz/aulavoz/internal/resilience"
	"go.opentelemetry.io/otel/trace"
)

const defaultTimeout = 60 * time.Second

// ChatReply is the normalized backend response to a chat message.
type ChatReply struct {
	// Text is the assistant's answer.
	Text string

	// QRCodes maps each embedded URL to its QR image payload. Empty when
	// the reply carries no codes.
	QRCodes map[string]string

	// HasQR reports whether the reply carries QR codes. Kept separate from
	// len(QRCodes) because the backend may set the flag independently.
	HasQR bool

	// FeedbackSessionID correlates this reply with subsequent satisfaction
	// input. Empty when the backend opened no feedback session.
	FeedbackSessionID string

	// ChatlogID is the backend's log row for this exchange, when reported.
	ChatlogID int64
}

// FeedbackReport is one satisfaction submission.
type FeedbackReport struct {
	SessionID string

	// Satisfied is the overall outcome.
	Satisfied bool

	// Rating is 1–5, or nil when the user gave none.
	Rating *int

	// Comments is free text, or nil when blank.
	Comments *string
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying [http.Client]. Used in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithTimeout sets the per-request timeout. Default: 60s. A user abort via
// context cancellation still takes effect earlier.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.hc.Timeout = d
	}
}

// WithBreaker wraps all requests in the given circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// Client talks to the assistant backend. Safe for concurrent use.
type Client struct {
	baseURL string
	hc      *http.Client
	breaker *resilience.Breaker
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// chatRequest is the wire shape of POST /chat.
type chatRequest struct {
	Text string `json:"text"`
}

// chatResponse is the wire shape of the /chat response. qr_codes arrives in
// two shapes depending on backend version; qrCodes handles both.
type chatResponse struct {
	Response          string  `json:"response"`
	QRCodes           qrCodes `json:"qr_codes"`
	HasQR             bool    `json:"has_qr"`
	FeedbackSessionID string  `json:"feedback_session_id"`
	ChatlogID         int64   `json:"chatlog_id"`
}

// qrCodes normalizes the two accepted wire shapes of qr_codes — a mapping
// of url → payload, or a list of {url, qr_data} objects — into one map.
type qrCodes map[string]string

// UnmarshalJSON implements [json.Unmarshaler].
func (q *qrCodes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*q = nil
		return nil
	}

	switch trimmed[0] {
	case '{':
		var m map[string]string
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return fmt.Errorf("qr_codes object form: %w", err)
		}
		*q = m
		return nil
	case '[':
		var list []struct {
			URL    string `json:"url"`
			QRData string `json:"qr_data"`
		}
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("qr_codes list form: %w", err)
		}
		m := make(map[string]string, len(list))
		for _, item := range list {
			if item.URL != "" {
				m[item.URL] = item.QRData
			}
		}
		*q = m
		return nil
	default:
		return fmt.Errorf("qr_codes: unsupported wire shape %q", trimmed[0])
	}
}

// Chat sends text to POST /chat and returns the normalized reply. A user
// abort surfaces as a [context.Canceled]-wrapped error, which callers must
// distinguish from genuine failures.
func (c *Client) Chat(ctx context.Context, text string) (*ChatReply, error) {
	ctx, span := observe.StartSpan(ctx, "backend.chat",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var resp chatResponse
	err := c.post(ctx, "/chat", chatRequest{Text: text}, &resp)
	if err != nil {
		return nil, fmt.Errorf("backend: chat: %w", err)
	}
	return &ChatReply{
		Text:              resp.Response,
		QRCodes:           map[string]string(resp.QRCodes),
		HasQR:             resp.HasQR || len(resp.QRCodes) > 0,
		FeedbackSessionID: resp.FeedbackSessionID,
		ChatlogID:         resp.ChatlogID,
	}, nil
}

// feedbackRequest is the wire shape of POST /feedback/response.
type feedbackRequest struct {
	SessionID   string  `json:"session_id"`
	IsSatisfied bool    `json:"is_satisfied"`
	Rating      *int    `json:"rating"`
	Comments    *string `json:"comments"`
}

// SubmitFeedback posts a satisfaction report to /feedback/response.
func (c *Client) SubmitFeedback(ctx context.Context, report FeedbackReport) error {
	ctx, span := observe.StartSpan(ctx, "backend.feedback",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req := feedbackRequest{
		SessionID:   report.SessionID,
		IsSatisfied: report.Satisfied,
		Rating:      report.Rating,
		Comments:    report.Comments,
	}
	if err := c.post(ctx, "/feedback/response", req, nil); err != nil {
		return fmt.Errorf("backend: feedback: %w", err)
	}
	return nil
}

// detailedFeedbackRequest is the wire shape of POST /feedback/response/detailed.
type detailedFeedbackRequest struct {
	SessionID string `json:"session_id"`
	Comments  string `json:"comments"`
	Rating    *int   `json:"rating,omitempty"`
}

// SubmitDetailedFeedback posts free-text comments with an optional rating to
// /feedback/response/detailed.
func (c *Client) SubmitDetailedFeedback(ctx context.Context, sessionID, comments string, rating *int) error {
	ctx, span := observe.StartSpan(ctx, "backend.feedback_detailed",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req := detailedFeedbackRequest{
		SessionID: sessionID,
		Comments:  comments,
		Rating:    rating,
	}
	if err := c.post(ctx, "/feedback/response/detailed", req, nil); err != nil {
		return fmt.Errorf("backend: detailed feedback: %w", err)
	}
	return nil
}

// Ping probes the backend for the readiness check. Any HTTP response counts
// as reachable; only transport errors fail the probe.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/chat", nil)
	if err != nil {
		return fmt.Errorf("backend: ping: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("backend: ping: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// post sends body as JSON to path and decodes the response into out when
// out is non-nil. Non-2xx statuses are errors carrying the status and a
// body excerpt.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	do := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			// Unwrap the url.Error so context.Canceled is visible to
			// errors.Is at the call site and in the breaker.
			var uerr *url.Error
			if errors.As(err, &uerr) {
				return uerr.Err
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(excerpt)))
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	if c.breaker != nil {
		return c.breaker.Do(do)
	}
	return do()
}
