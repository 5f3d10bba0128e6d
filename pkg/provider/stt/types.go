package stt

import "time"

// Transcript is a recognition result. Partials and finals share the type.
type Transcript struct {
	// Text is the recognised speech.
	Text string

	// IsFinal reports whether the provider has committed to this result.
	IsFinal bool

	// Confidence is the overall confidence (0.0 to 1.0). Zero when unreported.
	Confidence float64

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// KeywordBoost is a vocabulary hint.
type KeywordBoost struct {
	// Keyword is the text to favour, e.g. "Backend engineer".
	Keyword string

	// Boost is the intensity (provider-specific scale). Zero means default.
	Boost float64
}
