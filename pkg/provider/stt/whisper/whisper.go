// Package whisper provides an STT provider backed by a whisper.cpp server.
//
// whisper-server exposes POST /inference for batch transcription. The
// provider turns that into a session: incoming PCM is segmented into
// utterances by an energy-based silence detector, and each utterance is
// posted as a WAV file. Every committed utterance is emitted as a partial and
// a final with identical text.
//
// Keyword hints are forwarded as whisper's initial prompt, which biases the
// decoder towards the given spelling of role names and product terms.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8081", whisper.WithLanguage("hu"))
//	handle, err := p.StartStream(ctx, stt.StreamConfig{SampleRate: 16000, Channels: 1})
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/ticketvox/pkg/provider/stt"
)

const (
	bitsPerSample = 16

	// defaultRMSThreshold is the 16-bit PCM energy below which a chunk counts
	// as silence. 300 of a possible 32 767 is near-silence.
	defaultRMSThreshold = 300.0

	defaultLanguage            = "hu"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 700
	defaultMaxBufferDurationMs = 15_000
	flushTimeout               = 30 * time.Second
)

var _ stt.Provider = (*Provider)(nil)

// InferenceHook observes every /inference round trip.
type InferenceHook func(d time.Duration, err error)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the server. Empty uses
// whichever model the server was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language code sent to the server. Locale tags such
// as "hu-HU" are reduced to "hu". Defaults to "hu".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		if lang != "" {
			p.language = stt.BaseLanguage(lang)
		}
	}
}

// WithSampleRate sets the default sample rate in Hz. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithSilenceThresholdMs sets how much trailing silence ends an utterance.
func WithSilenceThresholdMs(ms int) Option {
	return func(p *Provider) { p.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs caps the length of a single utterance; longer
// speech is flushed in pieces.
func WithMaxBufferDurationMs(ms int) Option {
	return func(p *Provider) { p.maxBufferDurationMs = ms }
}

// WithHTTPClient replaces the HTTP client used for inference calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		if hc != nil {
			p.httpClient = hc
		}
	}
}

// WithInferenceHook registers a callback invoked after every inference call.
func WithInferenceHook(h InferenceHook) Option {
	return func(p *Provider) { p.hook = h }
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL           string
	model               string
	language            string
	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
	httpClient          *http.Client
	hook                InferenceHook
}

// New creates a Provider for the whisper.cpp server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:           strings.TrimRight(serverURL, "/"),
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
		httpClient:          &http.Client{Timeout: flushTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a new session. No connection is made until the first
// utterance is complete.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := p.language
	if cfg.Language != "" {
		lang = stt.BaseLanguage(cfg.Language)
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = p.sampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	s := &session{
		provider:   p,
		language:   lang,
		sampleRate: sr,
		channels:   ch,
		prompt:     promptFromKeywords(cfg.Keywords),
		seg:        newSegmenter(sr, ch, p.silenceThresholdMs, p.maxBufferDurationMs),
		audioCh:    make(chan []byte, 256),
		partials:   make(chan stt.Transcript, 64),
		finals:     make(chan stt.Transcript, 64),
		done:       make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(ctx)
	return s, nil
}

func promptFromKeywords(kws []stt.KeywordBoost) string {
	words := make([]string, 0, len(kws))
	for _, kw := range kws {
		if w := strings.TrimSpace(kw.Keyword); w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, ", ")
}

type session struct {
	provider   *Provider
	language   string
	sampleRate int
	channels   int

	promptMu sync.Mutex
	prompt   string

	// seg is confined to processLoop.
	seg     *segmenter
	started time.Time
	offset  time.Duration

	audioCh  chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

func (s *session) Partials() <-chan stt.Transcript { return s.partials }

func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords replaces the initial prompt used for the next utterance.
func (s *session) SetKeywords(keywords []stt.KeywordBoost) error {
	s.promptMu.Lock()
	s.prompt = promptFromKeywords(keywords)
	s.promptMu.Unlock()
	return nil
}

// Close flushes buffered speech, then closes the transcript channels.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	final := func() {
		fc, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		s.commit(fc, s.seg.flush())
	}

	for {
		select {
		case <-ctx.Done():
			final()
			return
		case <-s.done:
			s.drain()
			final()
			return
		case chunk := <-s.audioCh:
			if utt := s.seg.push(chunk); utt != nil {
				s.commit(ctx, utt)
			}
		}
	}
}

// drain consumes chunks that were accepted before Close.
func (s *session) drain() {
	for {
		select {
		case chunk := <-s.audioCh:
			if utt := s.seg.push(chunk); utt != nil {
				s.commit(context.Background(), utt)
			}
		default:
			return
		}
	}
}

// commit transcribes one utterance and emits it. Inference errors drop the
// utterance; the session keeps running.
func (s *session) commit(ctx context.Context, pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	dur := time.Duration(chunkDurationMs(pcm, s.sampleRate, s.channels)) * time.Millisecond
	ts := s.offset
	s.offset += dur

	text, err := s.infer(ctx, pcm)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		return
	}

	tr := stt.Transcript{Text: text, Timestamp: ts, Duration: dur}
	select {
	case s.partials <- tr:
	default:
	}
	tr.IsFinal = true
	select {
	case s.finals <- tr:
	default:
	}
}

// infer posts pcm as a WAV file to /inference and returns the text.
func (s *session) infer(ctx context.Context, pcm []byte) (text string, err error) {
	start := time.Now()
	if h := s.provider.hook; h != nil {
		defer func() { h(time.Since(start), err) }()
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(encodeWAV(pcm, s.sampleRate, s.channels)); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	s.promptMu.Lock()
	prompt := s.prompt
	s.promptMu.Unlock()

	fields := map[string]string{
		"response_format": "json",
		"language":        s.language,
		"model":           s.provider.model,
		"prompt":          prompt,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.provider.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.provider.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.Text, nil
}

// segmenter groups PCM chunks into utterances. Leading silence is dropped;
// an utterance ends after silenceMs of trailing silence or when it reaches
// maxBytes.
type segmenter struct {
	sampleRate int
	channels   int
	silenceMs  int
	maxBytes   int

	buf       []byte
	hadSpeech bool
	quietMs   int
}

func newSegmenter(sampleRate, channels, silenceMs, maxMs int) *segmenter {
	bytesPerMs := sampleRate * channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	return &segmenter{
		sampleRate: sampleRate,
		channels:   channels,
		silenceMs:  silenceMs,
		maxBytes:   maxMs * bytesPerMs,
	}
}

// push adds a chunk and returns a completed utterance, or nil.
func (g *segmenter) push(chunk []byte) []byte {
	if computeRMS(chunk) < defaultRMSThreshold {
		if !g.hadSpeech {
			return nil
		}
		g.quietMs += chunkDurationMs(chunk, g.sampleRate, g.channels)
		g.buf = append(g.buf, chunk...)
		if g.quietMs >= g.silenceMs {
			return g.flush()
		}
		return nil
	}

	g.hadSpeech = true
	g.quietMs = 0
	g.buf = append(g.buf, chunk...)
	if g.maxBytes > 0 && len(g.buf) >= g.maxBytes {
		return g.flush()
	}
	return nil
}

// flush returns buffered speech and resets. Buffers without speech yield nil.
func (g *segmenter) flush() []byte {
	out := g.buf
	speech := g.hadSpeech
	g.buf, g.hadSpeech, g.quietMs = nil, false, 0
	if !speech || len(out) == 0 {
		return nil
	}
	return out
}

// encodeWAV wraps 16-bit little-endian PCM in a RIFF/WAV container.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)
	return buf
}

// computeRMS returns the root-mean-square energy of 16-bit PCM.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

func chunkDurationMs(chunk []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return len(chunk) * 1000 / (sampleRate * channels * (bitsPerSample / 8))
}
