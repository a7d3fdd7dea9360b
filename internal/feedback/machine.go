// Package feedback implements the per-reply satisfaction widget's state
// machine. The backend issues an opaque session id with each assistant
// reply; the machine tracks exactly one such session at a time through
// Prompt → Followup → Submitted (or straight to Submitted), with an
// auto-accept timer that defaults an unanswered prompt to the satisfied
// outcome.
//
// States only move forward; the sole way back is a full reset when the next
// assistant reply opens a new session, which discards the old one
// unconditionally.
package feedback

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aulavoz/aulavoz/internal/backend"
	"github.com/aulavoz/aulavoz/internal/sched"
)

// State is one phase of the feedback widget.
type State int

const (
	// StateHidden means no feedback UI is showing.
	StateHidden State = iota

	// StatePrompt shows the satisfied/unsatisfied question.
	StatePrompt

	// StateFollowup shows the rating and comment form.
	StateFollowup

	// StateSubmitted shows the thank-you note for the display delay.
	StateSubmitted
)

// String returns the state's wire/log name.
func (s State) String() string {
	switch s {
	case StatePrompt:
		return "prompt"
	case StateFollowup:
		return "followup"
	case StateSubmitted:
		return "submitted"
	default:
		return "hidden"
	}
}

// ErrInvalidTransition is returned when an action is not legal in the
// current state, e.g. submitting details before entering the followup form.
var ErrInvalidTransition = errors.New("feedback: invalid transition")

// Default durations.
const (
	defaultAutoAccept   = 45 * time.Second
	defaultDisplayDelay = 2 * time.Second
)

// Submitter posts satisfaction reports. *backend.Client implements it.
// Quick prompt answers go through SubmitFeedback; the followup form goes
// through the detailed endpoint.
type Submitter interface {
	SubmitFeedback(ctx context.Context, report backend.FeedbackReport) error
	SubmitDetailedFeedback(ctx context.Context, sessionID, comments string, rating *int) error
}

var _ Submitter = (*backend.Client)(nil)

// Snapshot is an immutable view of the machine for the UI layer.
type Snapshot struct {
	SessionID string
	State     State
}

// Config configures a [Machine].
type Config struct {
	// Submitter posts reports to the backend. Required.
	Submitter Submitter

	// Scheduler owns the auto-accept and display-delay timers. Required.
	Scheduler *sched.Scheduler

	// AutoAccept is how long an unanswered prompt stays up before the
	// satisfied outcome is submitted automatically. Defaults to 45s.
	AutoAccept time.Duration

	// DisplayDelay is how long the thank-you state shows before the
	// widget hides. Defaults to 2s.
	DisplayDelay time.Duration

	// Journal optionally records every successful submission locally. May
	// be nil.
	Journal *FileStore

	// OnChange is called with a snapshot after every state change. May be
	// nil. Called without internal locks held.
	OnChange func(Snapshot)
}

// Machine is the feedback session state machine. All methods are safe for
// concurrent use.
type Machine struct {
	submitter    Submitter
	scheduler    *sched.Scheduler
	autoAccept   time.Duration
	displayDelay time.Duration
	journal      *FileStore
	onChange     func(Snapshot)

	mu        sync.Mutex
	sessionID string
	state     State
}

// NewMachine creates a Machine from cfg, applying defaults for zero
// durations.
func NewMachine(cfg Config) *Machine {
	autoAccept := cfg.AutoAccept
	if autoAccept <= 0 {
		autoAccept = defaultAutoAccept
	}
	delay := cfg.DisplayDelay
	if delay <= 0 {
		delay = defaultDisplayDelay
	}
	return &Machine{
		submitter:    cfg.Submitter,
		scheduler:    cfg.Scheduler,
		autoAccept:   autoAccept,
		displayDelay: delay,
		journal:      cfg.Journal,
		onChange:     cfg.OnChange,
		state:        StateHidden,
	}
}

// Snapshot returns the current session id and state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{SessionID: m.sessionID, State: m.state}
}

// Begin opens a new feedback session for the given backend-issued id,
// discarding any prior session unconditionally, and shows the prompt. The
// auto-accept timer starts; if the prompt is still unanswered when it
// fires, the satisfied outcome is submitted as if clicked.
func (m *Machine) Begin(id string) {
	m.mu.Lock()
	m.sessionID = id
	m.state = StatePrompt
	m.mu.Unlock()

	m.scheduler.Stop(sched.TimerSubmittedDelay)
	m.scheduler.Start(sched.TimerAutoAccept, m.autoAccept, func() {
		// Detached from any request context: the user is idle.
		if err := m.Satisfied(context.Background()); err != nil && !errors.Is(err, ErrInvalidTransition) {
			slog.Warn("feedback: auto-accept submit failed", "err", err)
		}
	})
	m.notify()
}

// Satisfied reports the positive outcome from the prompt: a report with no
// rating and no comments is posted, and on success the machine shows the
// thank-you state before hiding. On a network failure the state is left
// unchanged so the user may retry; the error is logged and returned.
func (m *Machine) Satisfied(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StatePrompt {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	id := m.sessionID
	m.mu.Unlock()

	report := backend.FeedbackReport{SessionID: id, Satisfied: true}
	if err := m.submitter.SubmitFeedback(ctx, report); err != nil {
		slog.Warn("feedback: submit failed", "session_id", id, "err", err)
		return err
	}
	m.journalReport(report)
	m.finishSubmission(id)
	return nil
}

// Unsatisfied moves from the prompt to the followup form. No network call
// is made yet; the auto-accept timer stops because the prompt has been
// answered.
func (m *Machine) Unsatisfied() error {
	m.mu.Lock()
	if m.state != StatePrompt {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.state = StateFollowup
	m.mu.Unlock()

	m.scheduler.Stop(sched.TimerAutoAccept)
	m.notify()
	return nil
}

// SubmitDetails posts the followup form: a rating of 1–5 (nil when the user
// picked none) and free-text comments (blank becomes null on the wire). On
// failure the machine stays in the followup state for a retry.
func (m *Machine) SubmitDetails(ctx context.Context, rating *int, comments string) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return errors.New("feedback: rating must be between 1 and 5")
	}

	m.mu.Lock()
	if m.state != StateFollowup {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	id := m.sessionID
	m.mu.Unlock()

	comments = strings.TrimSpace(comments)
	if err := m.submitter.SubmitDetailedFeedback(ctx, id, comments, rating); err != nil {
		slog.Warn("feedback: detailed submit failed", "session_id", id, "err", err)
		return err
	}
	report := backend.FeedbackReport{SessionID: id, Satisfied: false, Rating: rating}
	if comments != "" {
		report.Comments = &comments
	}
	m.journalReport(report)
	m.finishSubmission(id)
	return nil
}

// Dismiss hides the widget without sending anything: explicit cancel from
// the followup form, a click outside the widget, or session teardown. A
// hidden machine ignores the call.
func (m *Machine) Dismiss() {
	m.mu.Lock()
	if m.state == StateHidden {
		m.mu.Unlock()
		return
	}
	m.state = StateHidden
	m.mu.Unlock()

	m.scheduler.Stop(sched.TimerAutoAccept)
	m.scheduler.Stop(sched.TimerSubmittedDelay)
	m.notify()
}

// finishSubmission moves to the thank-you state and schedules the hide.
// The submission may race a Begin from a newer assistant reply; in that
// case the newer session already owns the machine and this result is
// dropped.
func (m *Machine) finishSubmission(id string) {
	m.mu.Lock()
	if m.sessionID != id {
		m.mu.Unlock()
		return
	}
	m.state = StateSubmitted
	m.mu.Unlock()

	m.scheduler.Stop(sched.TimerAutoAccept)
	m.scheduler.Start(sched.TimerSubmittedDelay, m.displayDelay, func() {
		m.mu.Lock()
		if m.sessionID != id || m.state != StateSubmitted {
			m.mu.Unlock()
			return
		}
		m.state = StateHidden
		m.mu.Unlock()
		m.notify()
	})
	m.notify()
}

// journalReport appends a submitted report to the local journal, when one
// is configured. Journal failures never affect the machine.
func (m *Machine) journalReport(report backend.FeedbackReport) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Append(report); err != nil {
		slog.Warn("feedback: journal write failed", "err", err)
	}
}

// notify invokes the change callback outside the lock.
func (m *Machine) notify() {
	if m.onChange != nil {
		m.onChange(m.Snapshot())
	}
}
