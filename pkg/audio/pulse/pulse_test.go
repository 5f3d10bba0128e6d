package pulse

import (
	"context"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestSelectDeviceDefault(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.usb-rode", Description: "Rode NT-USB", Available: true, Default: true},
		{ID: "alsa_input.pci-builtin", Description: "Built-in Audio", Available: true},
	}

	d, err := selectDevice(devices, "")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.usb-rode", d.ID)

	d, err = selectDevice(devices, "default")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.usb-rode", d.ID)
}

func TestSelectDeviceByDescription(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.usb-rode", Description: "Rode NT-USB", Available: true, Default: true},
		{ID: "alsa_input.pci-builtin", Description: "Built-in Audio", Available: true},
	}

	d, err := selectDevice(devices, "built-in")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.pci-builtin", d.ID)
}

func TestSelectDeviceRejectsMutedAndUnknown(t *testing.T) {
	devices := []Device{{ID: "mic", Description: "Mic", Available: true, Muted: true, Default: true}}

	_, err := selectDevice(devices, "")
	require.ErrorContains(t, err, "muted")

	_, err = selectDevice(devices, "headset")
	require.ErrorContains(t, err, "did not match")

	_, err = selectDevice(nil, "")
	require.Error(t, err)
}

func TestSourceAvailable(t *testing.T) {
	info := &pulseproto.GetSourceInfoReply{ActivePortName: "analog-input"}
	require.True(t, sourceAvailable(info))
	require.False(t, sourceAvailable(nil))
}

func TestOnPCMRechunks(t *testing.T) {
	c := &capture{chunks: make(chan []byte, 8), stopCh: make(chan struct{})}

	n, err := c.onPCM(make([]byte, chunkSizeBytes+100))
	require.NoError(t, err)
	require.Equal(t, chunkSizeBytes+100, n)
	require.Len(t, c.chunks, 1)

	_, err = c.onPCM(make([]byte, chunkSizeBytes-100))
	require.NoError(t, err)
	require.Len(t, c.chunks, 2)
	require.Empty(t, c.pending)
}

func TestOpenFailsWithoutServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := (&Source{}).Open(context.Background())
	require.Error(t, err)
}
