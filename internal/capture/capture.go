// Package capture accumulates the transcript of a conversation.
//
// [Live] streams microphone audio from an [audio.Source] into an
// [stt.Provider] session and appends every final transcript. [Manual] has
// no audio at all; text arrives through Append, which is how the HTTP API,
// the MCP tools and the CLI feed typed or pasted conversations.
package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrAlreadyListening is returned by Start while a capture is running.
var ErrAlreadyListening = errors.New("capture: already listening")

// DefaultLanguage is the recognition locale when Options leaves it empty.
const DefaultLanguage = "hu-HU"

// Options controls one listening run.
type Options struct {
	// Continuous keeps listening across pauses. When false the run ends
	// after the first committed utterance.
	Continuous bool

	// Language is the BCP 47 recognition locale. Default: hu-HU.
	Language string
}

// Capture is a speech-to-text capture with an accumulating transcript.
type Capture interface {
	// Start begins listening. The transcript is kept, not cleared.
	Start(ctx context.Context, opts Options) error

	// Stop halts listening and waits for pending text to land in the
	// transcript. Stopping an idle capture is a no-op.
	Stop() error

	// Reset clears the transcript.
	Reset()

	// Transcript returns the accumulated final text.
	Transcript() string

	// Listening reports whether a run is active.
	Listening() bool

	// Append adds text to the transcript as if it had been spoken.
	Append(text string)
}

// buffer is the mutex-guarded transcript shared by both implementations.
type buffer struct {
	mu        sync.RWMutex
	parts     []string
	interim   string
	listening bool
}

func (b *buffer) Append(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.mu.Lock()
	b.parts = append(b.parts, text)
	b.interim = ""
	b.mu.Unlock()
}

func (b *buffer) setInterim(text string) {
	b.mu.Lock()
	b.interim = strings.TrimSpace(text)
	b.mu.Unlock()
}

// Interim returns the latest uncommitted partial transcript.
func (b *buffer) Interim() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.interim
}

func (b *buffer) Reset() {
	b.mu.Lock()
	b.parts = nil
	b.interim = ""
	b.mu.Unlock()
}

func (b *buffer) Transcript() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.Join(b.parts, " ")
}

func (b *buffer) Listening() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.listening
}

func (b *buffer) setListening(v bool) {
	b.mu.Lock()
	b.listening = v
	b.mu.Unlock()
}

// Manual is a capture without audio. Start and Stop only toggle the
// listening flag.
type Manual struct {
	buffer
}

// NewManual returns an empty manual capture.
func NewManual() *Manual { return &Manual{} }

// Start marks the capture as listening.
func (m *Manual) Start(_ context.Context, _ Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listening {
		return ErrAlreadyListening
	}
	m.listening = true
	return nil
}

// Stop clears the listening flag.
func (m *Manual) Stop() error {
	m.setListening(false)
	return nil
}

var (
	_ Capture = (*Manual)(nil)
	_ Capture = (*Live)(nil)
)
