package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/p4calc/internal/core"
)

func TestParseDriver(t *testing.T) {
	tests := []struct {
		input    string
		expected Driver
	}{
		{"afpacket", DriverAFPacket},
		{"AF_PACKET", DriverAFPacket},
		{" af-packet ", DriverAFPacket},
		{"pcap", DriverPCAP},
		{"PCAP", DriverPCAP},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDriver(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}

	_, err := ParseDriver("xdp")
	assert.ErrorIs(t, err, core.ErrUnsupportedDriver)
}

func TestDriverUnmarshalText(t *testing.T) {
	var d Driver
	require.NoError(t, d.UnmarshalText([]byte("af_packet")))
	assert.Equal(t, DriverAFPacket, d)
	assert.Error(t, d.UnmarshalText([]byte("bogus")))
}

func TestDecodeOptionsOverDefaults(t *testing.T) {
	opts := DefaultAFPacketOptions()
	err := decodeOptions(map[string]interface{}{
		"snap_len":     "512",
		"poll_timeout": "10ms",
	}, &opts)
	require.NoError(t, err)

	assert.Equal(t, 512, opts.SnapLen)
	assert.Equal(t, 10*time.Millisecond, opts.PollTimeout)
	assert.Equal(t, 1, opts.BufferSizeMB, "unset options keep defaults")
}

func TestDecodeOptionsRejectsUnknownKeys(t *testing.T) {
	opts := DefaultPCAPOptions()
	err := decodeOptions(map[string]interface{}{"snaplen": 10}, &opts)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestNewOpenerUnsupported(t *testing.T) {
	_, err := NewOpener(Driver("xdp"), nil)
	assert.ErrorIs(t, err, core.ErrUnsupportedDriver)
}

func TestNewOpenerPCAPValidation(t *testing.T) {
	_, err := NewOpener(DriverPCAP, map[string]interface{}{"snap_len": 0})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	opener, err := NewOpener(DriverPCAP, map[string]interface{}{"promiscuous": false})
	require.NoError(t, err)
	p, ok := opener.(*pcapOpener)
	require.True(t, ok)
	assert.False(t, p.opts.Promiscuous)
	assert.Equal(t, 2048, p.opts.SnapLen)
}

func TestNewOpenerAFPacketValidation(t *testing.T) {
	_, err := NewOpener(DriverAFPacket, map[string]interface{}{"buffer_size_mb": -1})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
