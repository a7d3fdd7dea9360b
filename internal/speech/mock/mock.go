// Package mock provides in-process fakes for the speech package's engine
// interfaces, used in tests.
package mock

import (
	"context"
	"sync"

	"github.com/aulavoz/aulavoz/internal/speech"
)

// RecognizerControl records start/stop calls and can be told to fail.
type RecognizerControl struct {
	mu       sync.Mutex
	starts   int
	stops    int
	StartErr error
	StopErr  error
}

// StartRecognition implements [speech.RecognizerControl].
func (m *RecognizerControl) StartRecognition(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.starts++
	return nil
}

// StopRecognition implements [speech.RecognizerControl].
func (m *RecognizerControl) StopRecognition(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StopErr != nil {
		return m.StopErr
	}
	m.stops++
	return nil
}

// Starts returns the number of successful StartRecognition calls.
func (m *RecognizerControl) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns the number of successful StopRecognition calls.
func (m *RecognizerControl) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// SynthesisOutput records spoken utterances and cancellations.
type SynthesisOutput struct {
	mu         sync.Mutex
	utterances []speech.Utterance
	cancels    int
	SpeakErr   error
}

// Speak implements [speech.SynthesisOutput].
func (m *SynthesisOutput) Speak(_ context.Context, u speech.Utterance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SpeakErr != nil {
		return m.SpeakErr
	}
	m.utterances = append(m.utterances, u)
	return nil
}

// Cancel implements [speech.SynthesisOutput].
func (m *SynthesisOutput) Cancel(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels++
	return nil
}

// Utterances returns a copy of everything spoken so far.
func (m *SynthesisOutput) Utterances() []speech.Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]speech.Utterance, len(m.utterances))
	copy(out, m.utterances)
	return out
}

// Cancels returns the number of Cancel calls.
func (m *SynthesisOutput) Cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}

// Compile-time interface checks.
var (
	_ speech.RecognizerControl = (*RecognizerControl)(nil)
	_ speech.SynthesisOutput   = (*SynthesisOutput)(nil)
)
