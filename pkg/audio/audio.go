// Package audio defines the narrow interfaces between a microphone backend
// and the speech capture pipeline.
//
// A [Source] opens a [Stream] of fixed-size PCM chunks. Implementations live
// in sub-packages (audio/pulse for PulseAudio and PipeWire hosts); tests use
// audio/mock.
package audio

import (
	"context"
	"time"
)

// Format describes the sample layout of a stream. Chunks are always 16-bit
// signed little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// SpeechFormat is what the STT providers expect: 16 kHz mono.
var SpeechFormat = Format{SampleRate: 16000, Channels: 1}

// BytesPerSecond returns the PCM data rate of f.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Duration returns the play time of n bytes of PCM in format f.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// Stream is an open capture.
type Stream interface {
	// Chunks emits PCM chunks in capture order. It is closed after Stop.
	Chunks() <-chan []byte

	// Format reports the layout of the emitted chunks.
	Format() Format

	// Stop ends the capture and closes Chunks. Calling Stop twice returns nil.
	Stop() error
}

// Source opens capture streams from one input device.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}
