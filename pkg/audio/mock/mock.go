// Package mock provides in-memory implementations of [audio.Source] and
// [audio.Stream] for unit tests.
//
// Typical usage:
//
//	src := &mock.Source{}
//	stream, _ := src.Open(ctx)
//	src.Last().Feed(pcm)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/ticketvox/pkg/audio"
)

// Source is a mock implementation of audio.Source.
type Source struct {
	mu sync.Mutex

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// Streams records every stream opened, in order.
	Streams []*Stream
}

// Open returns a fresh Stream or OpenErr.
func (s *Source) Open(ctx context.Context) (audio.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	st := NewStream()
	s.Streams = append(s.Streams, st)
	return st, nil
}

// Last returns the most recently opened stream, or nil.
func (s *Source) Last() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Streams) == 0 {
		return nil
	}
	return s.Streams[len(s.Streams)-1]
}

// OpenCount returns how many streams were opened.
func (s *Source) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Streams)
}

var _ audio.Source = (*Source)(nil)

// Stream is a mock implementation of audio.Stream fed by the test.
type Stream struct {
	mu      sync.Mutex
	chunks  chan []byte
	stopped bool

	// StopCount is the number of Stop calls.
	StopCount int
}

// NewStream returns a Stream with a buffered chunk channel.
func NewStream() *Stream {
	return &Stream{chunks: make(chan []byte, 64)}
}

// Feed pushes a chunk. It reports false after Stop.
func (s *Stream) Feed(chunk []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.chunks <- chunk
	return true
}

// Chunks implements audio.Stream.
func (s *Stream) Chunks() <-chan []byte { return s.chunks }

// Format implements audio.Stream.
func (s *Stream) Format() audio.Format { return audio.SpeechFormat }

// Stop closes the chunk channel once.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCount++
	if !s.stopped {
		s.stopped = true
		close(s.chunks)
	}
	return nil
}

// Stopped reports whether Stop has been called.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

var _ audio.Stream = (*Stream)(nil)
