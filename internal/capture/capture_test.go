package capture_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrWong99/ticketvox/internal/capture"
	audiomock "github.com/MrWong99/ticketvox/pkg/audio/mock"
	sttmock "github.com/MrWong99/ticketvox/pkg/provider/stt/mock"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func TestManual(t *testing.T) {
	t.Parallel()

	m := capture.NewManual()
	require.False(t, m.Listening())

	require.NoError(t, m.Start(context.Background(), capture.Options{Continuous: true}))
	require.True(t, m.Listening())
	require.ErrorIs(t, m.Start(context.Background(), capture.Options{}), capture.ErrAlreadyListening)

	m.Append("  Kell egy login oldal.  ")
	m.Append("   ")
	m.Append("És egy API.")
	require.Equal(t, "Kell egy login oldal. És egy API.", m.Transcript())

	require.NoError(t, m.Stop())
	require.False(t, m.Listening())
	require.Equal(t, "Kell egy login oldal. És egy API.", m.Transcript(), "stop keeps the transcript")

	m.Reset()
	require.Empty(t, m.Transcript())
}

func newLive(t *testing.T, opts ...capture.LiveOption) (*capture.Live, *audiomock.Source, *sttmock.Provider, *sttmock.Session) {
	t.Helper()
	src := &audiomock.Source{}
	sess := sttmock.NewSession()
	p := &sttmock.Provider{Session: sess}
	l := capture.NewLive(src, p, opts...)
	t.Cleanup(func() { _ = l.Stop() })
	return l, src, p, sess
}

func TestLive_StreamsAudioAndCollectsFinals(t *testing.T) {
	t.Parallel()

	l, src, p, sess := newLive(t, capture.WithKeywords(func() []string {
		return []string{"Frontend engineer", "Designer"}
	}))
	require.NoError(t, l.Start(context.Background(), capture.Options{Continuous: true}))
	require.True(t, l.Listening())

	calls := p.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "hu-HU", calls[0].Cfg.Language)
	require.Equal(t, 16000, calls[0].Cfg.SampleRate)
	require.Equal(t, 1, calls[0].Cfg.Channels)
	require.Len(t, calls[0].Cfg.Keywords, 2)
	require.Equal(t, "Designer", calls[0].Cfg.Keywords[1].Keyword)

	stream := src.Last()
	require.True(t, stream.Feed(make([]byte, 640)))
	require.True(t, stream.Feed(make([]byte, 640)))
	require.Eventually(t, func() bool { return sess.ChunkCount() == 2 }, waitFor, tick)

	require.True(t, sess.EmitPartial("kell egy"))
	require.Eventually(t, func() bool { return l.Interim() == "kell egy" }, waitFor, tick)

	require.True(t, sess.Emit("Kell egy login oldal."))
	require.True(t, sess.Emit("Két nap frontend."))
	require.Eventually(t, func() bool {
		return l.Transcript() == "Kell egy login oldal. Két nap frontend."
	}, waitFor, tick)
	require.True(t, l.Listening(), "continuous capture keeps listening")

	require.NoError(t, l.Stop())
	require.False(t, l.Listening())
	require.True(t, sess.Closed())
	require.True(t, stream.Stopped())
	require.Empty(t, l.Interim())
	require.Equal(t, "Kell egy login oldal. Két nap frontend.", l.Transcript())
}

func TestLive_SingleUtteranceStopsItself(t *testing.T) {
	t.Parallel()

	l, _, _, sess := newLive(t)
	require.NoError(t, l.Start(context.Background(), capture.Options{Continuous: false, Language: "en-US"}))

	require.True(t, sess.Emit("one ticket please"))
	require.Eventually(t, func() bool { return !l.Listening() }, waitFor, tick)
	require.Equal(t, "one ticket please", l.Transcript())
	require.True(t, sess.Closed())
}

func TestLive_RunOutlivesStartContext(t *testing.T) {
	t.Parallel()

	l, _, _, sess := newLive(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Start(ctx, capture.Options{Continuous: true}))
	cancel()

	require.True(t, sess.Emit("still here"))
	require.Eventually(t, func() bool { return l.Transcript() == "still here" }, waitFor, tick)
	require.True(t, l.Listening())
}

func TestLive_StartErrors(t *testing.T) {
	t.Parallel()

	errMic := errors.New("no such device")
	src := &audiomock.Source{OpenErr: errMic}
	l := capture.NewLive(src, &sttmock.Provider{})
	require.ErrorIs(t, l.Start(context.Background(), capture.Options{}), errMic)
	require.False(t, l.Listening())

	errSTT := errors.New("dial refused")
	src = &audiomock.Source{}
	l = capture.NewLive(src, &sttmock.Provider{StartStreamErr: errSTT})
	require.ErrorIs(t, l.Start(context.Background(), capture.Options{}), errSTT)
	require.True(t, src.Last().Stopped(), "audio stream released on stt failure")
	require.False(t, l.Listening())
}

func TestLive_DoubleStartAndIdleStop(t *testing.T) {
	t.Parallel()

	l, _, _, _ := newLive(t)
	require.NoError(t, l.Stop(), "stopping an idle capture is a no-op")
	require.NoError(t, l.Start(context.Background(), capture.Options{Continuous: true}))
	require.ErrorIs(t, l.Start(context.Background(), capture.Options{}), capture.ErrAlreadyListening)
}

func TestLive_ResetAndAppend(t *testing.T) {
	t.Parallel()

	l, _, _, sess := newLive(t)
	l.Append("typed text")
	require.NoError(t, l.Start(context.Background(), capture.Options{Continuous: true}))
	require.True(t, sess.Emit("spoken text"))
	require.Eventually(t, func() bool { return l.Transcript() == "typed text spoken text" }, waitFor, tick)

	l.Reset()
	require.Empty(t, l.Transcript())
	require.True(t, l.Listening(), "reset does not stop listening")
}
