// Package pulse captures microphone audio from a PulseAudio (or PipeWire
// pulse-compatible) server as 16 kHz mono PCM.
package pulse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/MrWong99/ticketvox/pkg/audio"
)

const (
	appName = "ticketvox"

	// chunkSizeBytes is 20 ms of 16 kHz mono s16.
	chunkSizeBytes = 640
)

// Device describes one input source known to the server.
type Device struct {
	ID          string
	Description string
	Available   bool
	Muted       bool
	Default     bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("pulse: connect server: %w", err)
	}
	return client, nil
}

// ListDevices returns the server's input sources.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("pulse: read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("pulse: list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == def.ID(),
		})
	}
	return devices, nil
}

// selectDevice picks the device matching want (substring of ID or
// description, case-insensitive). Empty or "default" picks the server
// default. Muted or unavailable devices are rejected.
func selectDevice(devices []Device, want string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, errors.New("pulse: no input devices found")
	}
	want = strings.ToLower(strings.TrimSpace(want))

	var picked *Device
	for i := range devices {
		d := &devices[i]
		if want == "" || want == "default" {
			if d.Default {
				picked = d
				break
			}
			continue
		}
		if strings.Contains(strings.ToLower(d.ID), want) || strings.Contains(strings.ToLower(d.Description), want) {
			picked = d
			break
		}
	}
	switch {
	case picked == nil && (want == "" || want == "default"):
		return Device{}, errors.New("pulse: default input device is unavailable")
	case picked == nil:
		return Device{}, fmt.Errorf("pulse: input %q did not match any device", want)
	case picked.Muted:
		return Device{}, fmt.Errorf("pulse: input %q is muted", picked.ID)
	case !picked.Available:
		return Device{}, fmt.Errorf("pulse: input %q is not available", picked.ID)
	}
	return *picked, nil
}

// Source opens capture streams on a configured device.
type Source struct {
	// Device is the preferred input (substring match). Empty selects the
	// server default.
	Device string
}

// Check reports whether the configured device can be opened right now.
func (s *Source) Check(ctx context.Context) error {
	devices, err := ListDevices(ctx)
	if err != nil {
		return err
	}
	_, err = selectDevice(devices, s.Device)
	return err
}

// Open resolves the device and starts a 16 kHz mono record stream. The
// stream stops when ctx is cancelled or Stop is called.
func (s *Source) Open(ctx context.Context) (audio.Stream, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	dev, err := selectDevice(devices, s.Device)
	if err != nil {
		return nil, err
	}

	client, err := newClient()
	if err != nil {
		return nil, err
	}
	src, err := client.SourceByID(dev.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pulse: resolve source %q: %w", dev.ID, err)
	}

	c := &capture{
		client: client,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}
	writer := pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(src),
		pulse.RecordMono,
		pulse.RecordSampleRate(audio.SpeechFormat.SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("ticketvox conversation"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("pulse: create record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.stopCh:
		}
	}()
	return c, nil
}

var _ audio.Source = (*Source)(nil)

// capture re-chunks Pulse frames into chunkSizeBytes slices.
type capture struct {
	client *pulse.Client
	stream *pulse.RecordStream
	chunks chan []byte
	stopCh chan struct{}

	mu       sync.Mutex
	pending  []byte
	stopped  bool
	inflight sync.WaitGroup
}

func (c *capture) Chunks() <-chan []byte { return c.chunks }

func (c *capture) Format() audio.Format { return audio.SpeechFormat }

// Stop halts the stream, emits any residual PCM and closes Chunks once.
func (c *capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	c.client.Close()
	c.inflight.Wait()

	c.mu.Lock()
	rest := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(rest) > 0 {
		select {
		case c.chunks <- append([]byte(nil), rest...):
		default:
		}
	}
	close(c.chunks)
	return nil
}

func (c *capture) onPCM(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same lock as stopped so Stop's Wait cannot race it.
	c.inflight.Add(1)
	c.pending = append(c.pending, buf...)
	var out [][]byte
	for len(c.pending) >= chunkSizeBytes {
		out = append(out, append([]byte(nil), c.pending[:chunkSizeBytes]...))
		c.pending = c.pending[chunkSizeBytes:]
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	for _, chunk := range out {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}
	return len(buf), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }

// sourceAvailable reports whether the active port is usable.
// PulseAudio port availability: unknown=0, no=1, yes=2.
func sourceAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
