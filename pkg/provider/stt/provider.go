// Package stt defines the Provider interface for speech-to-text backends.
//
// A provider wraps a transcription service (a whisper.cpp server, Deepgram)
// and exposes a streaming session: raw PCM goes in through SendAudio, and
// recognised text comes out on two channels. Partials are interim guesses for
// live display. Finals are committed utterances and are the only values that
// belong in a recording's transcript.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by optional session features a backend lacks.
var ErrNotSupported = errors.New("stt: not supported")

// StreamConfig describes the audio format and recognition hints for a session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Microphone capture delivers 16000.
	SampleRate int

	// Channels is the number of interleaved audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 tag for recognition ("hu", "hu-HU", "en-US").
	// Empty lets the provider fall back to its configured default.
	Language string

	// Keywords are vocabulary hints, typically the names of the billable roles
	// and product terms that come up in a client conversation.
	Keywords []KeywordBoost
}

// SessionHandle represents an open streaming session.
//
// Callers must call Close when done. After Close returns, the Partials and
// Finals channels are closed. Calling Close more than once returns nil.
type SessionHandle interface {
	// SendAudio delivers a chunk of 16-bit little-endian PCM matching the
	// StreamConfig. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. Closed when the session ends.
	Partials() <-chan Transcript

	// Finals emits committed transcripts. Closed when the session ends.
	Finals() <-chan Transcript

	// SetKeywords replaces the active vocabulary hints. Backends that cannot
	// update hints mid-session return an error wrapping ErrNotSupported.
	SetKeywords(keywords []KeywordBoost) error

	// Close flushes pending audio and releases the session's resources.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a new transcription session. The returned handle is
	// ready to accept audio immediately. The caller owns the handle.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// BaseLanguage reduces a locale tag such as "hu-HU" to its primary language
// subtag ("hu"). Backends that only take ISO 639-1 codes use it.
func BaseLanguage(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '-' || tag[i] == '_' {
			return tag[:i]
		}
	}
	return tag
}
