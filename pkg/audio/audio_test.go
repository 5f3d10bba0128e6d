package audio_test

import (
	"testing"
	"time"

	"github.com/MrWong99/ticketvox/pkg/audio"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	if got := audio.SpeechFormat.BytesPerSecond(); got != 32000 {
		t.Errorf("bytes/s = %d", got)
	}
	if got := audio.SpeechFormat.Duration(640); got != 20*time.Millisecond {
		t.Errorf("640 bytes = %v, want 20ms", got)
	}
	if got := (audio.Format{}).Duration(640); got != 0 {
		t.Errorf("zero format duration = %v", got)
	}
}

func TestDrain(t *testing.T) {
	t.Parallel()

	ch := make(chan int, 3)
	ch <- 1
	ch <- 2
	close(ch)
	audio.Drain(ch)
	if _, ok := <-ch; ok {
		t.Error("channel should be empty and closed")
	}
}
