package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/ticketvox/pkg/audio"
	"github.com/MrWong99/ticketvox/pkg/provider/stt"
)

// LiveOption configures a [Live] capture.
type LiveOption func(*Live)

// WithKeywords sets a function returning vocabulary hints for each run,
// typically the current role names.
func WithKeywords(fn func() []string) LiveOption {
	return func(l *Live) { l.keywords = fn }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) LiveOption {
	return func(l *Live) { l.logger = logger }
}

// Live captures microphone audio and transcribes it as it is spoken.
type Live struct {
	buffer

	source   audio.Source
	stt      stt.Provider
	keywords func() []string
	logger   *slog.Logger

	// opMu serialises Start and Stop; buffer.mu guards the transcript.
	opMu sync.Mutex
	cur  *run
}

type run struct {
	stream audio.Stream
	sess   stt.SessionHandle
	cancel context.CancelFunc

	pumpDone    chan struct{}
	readersDone sync.WaitGroup
}

// NewLive returns a capture reading from source and transcribing with p.
func NewLive(source audio.Source, p stt.Provider, opts ...LiveOption) *Live {
	l := &Live{source: source, stt: p}
	for _, o := range opts {
		o(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Start opens the microphone and an STT session. The run outlives ctx's
// cancellation; it ends with Stop.
func (l *Live) Start(ctx context.Context, opts Options) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()
	if l.cur != nil {
		return ErrAlreadyListening
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := l.source.Open(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("capture: open audio: %w", err)
	}

	cfg := stt.StreamConfig{
		SampleRate: stream.Format().SampleRate,
		Channels:   stream.Format().Channels,
		Language:   opts.Language,
	}
	if l.keywords != nil {
		for _, k := range l.keywords() {
			cfg.Keywords = append(cfg.Keywords, stt.KeywordBoost{Keyword: k, Boost: 1})
		}
	}
	sess, err := l.stt.StartStream(runCtx, cfg)
	if err != nil {
		_ = stream.Stop()
		cancel()
		return fmt.Errorf("capture: start stt: %w", err)
	}

	r := &run{stream: stream, sess: sess, cancel: cancel, pumpDone: make(chan struct{})}
	l.cur = r
	l.setListening(true)

	go l.pump(r)
	r.readersDone.Add(2)
	go l.readPartials(r)
	go l.readFinals(r, opts.Continuous)

	l.logger.Info("capture started", "language", opts.Language, "continuous", opts.Continuous,
		"sample_rate", cfg.SampleRate, "keywords", len(cfg.Keywords))
	return nil
}

func (l *Live) pump(r *run) {
	defer close(r.pumpDone)
	for chunk := range r.stream.Chunks() {
		if err := r.sess.SendAudio(chunk); err != nil {
			l.logger.Warn("capture: send audio failed, discarding input until stop", "err", err)
			// Keep the device reader unblocked.
			audio.Drain(r.stream.Chunks())
			return
		}
	}
}

func (l *Live) readPartials(r *run) {
	defer r.readersDone.Done()
	for p := range r.sess.Partials() {
		l.setInterim(p.Text)
	}
}

func (l *Live) readFinals(r *run, continuous bool) {
	defer r.readersDone.Done()
	stopped := false
	for f := range r.sess.Finals() {
		l.Append(f.Text)
		if !continuous && !stopped && f.Text != "" {
			stopped = true
			go func() { _ = l.stopRun(r) }()
		}
	}
}

// Stop ends the current run after the STT session has flushed.
func (l *Live) Stop() error {
	l.opMu.Lock()
	r := l.cur
	l.opMu.Unlock()
	if r == nil {
		return nil
	}
	return l.stopRun(r)
}

func (l *Live) stopRun(r *run) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()
	if l.cur != r {
		return nil
	}

	var errs []error
	if err := r.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("capture: stop audio: %w", err))
	}
	<-r.pumpDone
	if err := r.sess.Close(); err != nil {
		errs = append(errs, fmt.Errorf("capture: close stt: %w", err))
	}
	r.readersDone.Wait()
	r.cancel()

	l.cur = nil
	l.setListening(false)
	l.setInterim("")
	l.logger.Info("capture stopped")
	return errors.Join(errs...)
}
