package whisper

import (
	"encoding/binary"
	"testing"
)

func loudChunk(ms int) []byte {
	buf := make([]byte, ms*32)
	for i := 0; i+1 < len(buf); i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(8000)))
	}
	return buf
}

func quietChunk(ms int) []byte { return make([]byte, ms*32) }

func TestSegmenter(t *testing.T) {
	t.Parallel()

	g := newSegmenter(16000, 1, 100, 1000)

	if got := g.push(quietChunk(200)); got != nil {
		t.Fatal("leading silence produced an utterance")
	}
	if got := g.push(loudChunk(50)); got != nil {
		t.Fatal("speech alone produced an utterance")
	}
	if got := g.push(quietChunk(50)); got != nil {
		t.Fatal("short pause produced an utterance")
	}
	utt := g.push(quietChunk(60))
	if len(utt) != (50+50+60)*32 {
		t.Fatalf("utterance len = %d", len(utt))
	}
	if g.flush() != nil {
		t.Fatal("flush after commit should be empty")
	}
}

func TestSegmenter_MaxLength(t *testing.T) {
	t.Parallel()

	g := newSegmenter(16000, 1, 10_000, 100)
	if got := g.push(loudChunk(60)); got != nil {
		t.Fatal("flushed too early")
	}
	if got := g.push(loudChunk(60)); len(got) != 120*32 {
		t.Fatalf("forced flush len = %d", len(got))
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	t.Parallel()

	wav := encodeWAV(make([]byte, 320), 16000, 1)
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatal("bad RIFF markers")
	}
	if sr := binary.LittleEndian.Uint32(wav[24:28]); sr != 16000 {
		t.Errorf("sample rate = %d", sr)
	}
	if n := binary.LittleEndian.Uint32(wav[40:44]); n != 320 {
		t.Errorf("data size = %d", n)
	}
}

func TestComputeRMS(t *testing.T) {
	t.Parallel()
	if got := computeRMS(nil); got != 0 {
		t.Errorf("empty RMS = %v", got)
	}
	if got := computeRMS(loudChunk(1)); got < 7999 || got > 8001 {
		t.Errorf("constant RMS = %v", got)
	}
}
