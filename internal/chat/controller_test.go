package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aulavoz/aulavoz/internal/backend"
	"github.com/aulavoz/aulavoz/internal/i18n"
	"github.com/aulavoz/aulavoz/internal/speech"
	speechmock "github.com/aulavoz/aulavoz/internal/speech/mock"
)

// fakeChatter returns canned replies or errors, optionally blocking until
// the context is cancelled.
type fakeChatter struct {
	mu    sync.Mutex
	reply *backend.ChatReply
	err   error
	block bool
}

func (f *fakeChatter) Chat(ctx context.Context, _ string) (*backend.ChatReply, error) {
	f.mu.Lock()
	reply, err, block := f.reply, f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func TestSend_AppendsUserAndAssistantMessages(t *testing.T) {
	t.Parallel()

	chatter := &fakeChatter{reply: &backend.ChatReply{
		Text:              "La TNE se renueva en línea.",
		QRCodes:           map[string]string{"https://tne.cl": "qr"},
		HasQR:             true,
		FeedbackSessionID: "fs-1",
	}}

	var feedbackIDs []string
	c := NewController(Config{
		Chatter:           chatter,
		OnFeedbackSession: func(id string) { feedbackIDs = append(feedbackIDs, id) },
	})

	if err := c.Send(context.Background(), "  renovar tne  "); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	user, reply := msgs[0], msgs[1]
	if !user.FromUser || user.Text != "renovar tne" {
		t.Errorf("user message: %+v", user)
	}
	if reply.FromUser || reply.Text != "La TNE se renueva en línea." {
		t.Errorf("assistant message: %+v", reply)
	}
	if !reply.HasQR || reply.QRCodes["https://tne.cl"] != "qr" {
		t.Errorf("qr codes: %+v", reply.QRCodes)
	}
	if reply.FeedbackSessionID != "fs-1" {
		t.Errorf("feedback session id: %q", reply.FeedbackSessionID)
	}
	if user.ID == reply.ID || user.ID == "" {
		t.Error("messages must carry distinct non-empty ids")
	}
	if len(feedbackIDs) != 1 || feedbackIDs[0] != "fs-1" {
		t.Errorf("feedback callback: %v", feedbackIDs)
	}
}

func TestSend_BlankTextIsIgnored(t *testing.T) {
	t.Parallel()

	c := NewController(Config{Chatter: &fakeChatter{}})
	if err := c.Send(context.Background(), "   "); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(c.Messages()) != 0 {
		t.Error("blank text must append nothing")
	}
}

func TestSend_FailureAppendsLocalizedInlineError(t *testing.T) {
	t.Parallel()

	chatter := &fakeChatter{err: errors.New("boom")}
	c := NewController(Config{Chatter: chatter, Lang: "es"})

	if err := c.Send(context.Background(), "hola"); err == nil {
		t.Fatal("expected the backend error to propagate")
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user message plus inline error, got %d", len(msgs))
	}
	errMsg := msgs[1]
	if !errMsg.IsError {
		t.Error("inline error must be flagged")
	}
	want := i18n.Default().MustResolve("es", i18n.KeyChatError)
	if errMsg.Text != want {
		t.Errorf("inline error text: %q, want %q", errMsg.Text, want)
	}
}

func TestSend_AbortAppendsNoErrorMessage(t *testing.T) {
	t.Parallel()

	chatter := &fakeChatter{block: true}
	c := NewController(Config{Chatter: chatter})

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "hola") }()

	// Wait for the user message to land, then abort.
	for len(c.Messages()) == 0 {
		time.Sleep(time.Millisecond)
	}
	c.StopGeneration()

	if err := <-done; err != nil {
		t.Fatalf("aborted send must not error: %v", err)
	}
	msgs := c.Messages()
	if len(msgs) != 1 {
		t.Fatalf("abort must append only the user message, got %d", len(msgs))
	}
	if msgs[0].IsError {
		t.Error("abort must not produce an inline error")
	}
}

// sequencedChatter blocks requests for blockText until their context dies
// and answers every other one.
type sequencedChatter struct {
	blockText string
	reply     *backend.ChatReply
}

func (f *sequencedChatter) Chat(ctx context.Context, text string) (*backend.ChatReply, error) {
	if text == f.blockText {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.reply, nil
}

func TestSend_SupersedingSendGetsItsReply(t *testing.T) {
	t.Parallel()

	chatter := &sequencedChatter{blockText: "primera", reply: &backend.ChatReply{Text: "Segunda respuesta"}}
	c := NewController(Config{Chatter: chatter})

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Send(context.Background(), "primera") }()

	// Wait for the first user message so the first request is in flight.
	for len(c.Messages()) == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := c.Send(context.Background(), "segunda"); err != nil {
		t.Fatalf("superseding send: %v", err)
	}
	if err := <-firstDone; err != nil {
		t.Fatalf("superseded send must abort quietly: %v", err)
	}

	msgs := c.Messages()
	var replies []string
	for _, m := range msgs {
		if !m.FromUser && !m.IsError {
			replies = append(replies, m.Text)
		}
	}
	if len(replies) != 1 || replies[0] != "Segunda respuesta" {
		t.Fatalf("superseding send must get its reply, got %v in %+v", replies, msgs)
	}
}

func TestSend_MalformedReplyGetsDisplayCleanup(t *testing.T) {
	t.Parallel()

	chatter := &fakeChatter{reply: &backend.ChatReply{Text: "Claro!!!!!!!!! es en línea"}}
	c := NewController(Config{Chatter: chatter})

	if err := c.Send(context.Background(), "hola"); err != nil {
		t.Fatalf("send: %v", err)
	}
	reply := c.Messages()[1]
	if strings.Contains(reply.Text, "!!") {
		t.Errorf("malformed reply not cleaned: %q", reply.Text)
	}
}

func TestSend_SpeaksReplyWhenEnabled(t *testing.T) {
	t.Parallel()

	out := &speechmock.SynthesisOutput{}
	sp := speech.NewSpeaker(out, nil)
	chatter := &fakeChatter{reply: &backend.ChatReply{Text: "Hola estudiante"}}

	c := NewController(Config{Chatter: chatter, Speaker: sp, SpeakReplies: true, Lang: "es"})
	if err := c.Send(context.Background(), "hola"); err != nil {
		t.Fatalf("send: %v", err)
	}

	utts := out.Utterances()
	if len(utts) != 1 || utts[0].Text != "Hola estudiante" {
		t.Errorf("utterances: %+v", utts)
	}
	if utts[0].Lang != "es" {
		t.Errorf("utterance lang: %q", utts[0].Lang)
	}
}

func TestSend_NoSpeechWhenDisabled(t *testing.T) {
	t.Parallel()

	out := &speechmock.SynthesisOutput{}
	sp := speech.NewSpeaker(out, nil)
	chatter := &fakeChatter{reply: &backend.ChatReply{Text: "Hola"}}

	c := NewController(Config{Chatter: chatter, Speaker: sp, SpeakReplies: false})
	if err := c.Send(context.Background(), "hola"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(out.Utterances()) != 0 {
		t.Error("disabled speech must not synthesize")
	}
}

func TestClear_ReplacesList(t *testing.T) {
	t.Parallel()

	chatter := &fakeChatter{reply: &backend.ChatReply{Text: "hola"}}
	c := NewController(Config{Chatter: chatter})

	_ = c.Send(context.Background(), "uno")
	_ = c.Send(context.Background(), "dos")
	if len(c.Messages()) != 4 {
		t.Fatalf("setup: %d messages", len(c.Messages()))
	}

	c.Clear()
	if len(c.Messages()) != 0 {
		t.Error("clear must empty the conversation")
	}
}
