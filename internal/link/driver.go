package link

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/p4calc/internal/core"
)

// Driver names a link implementation.
type Driver string

const (
	DriverAFPacket Driver = "afpacket"
	DriverPCAP     Driver = "pcap"
)

// ParseDriver converts a string to a Driver (case-insensitive, trimmed).
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "afpacket", "af_packet", "af-packet":
		return DriverAFPacket, nil
	case "pcap":
		return DriverPCAP, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedDriver, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for mapstructure/yaml.
func (d *Driver) UnmarshalText(text []byte) error {
	v, err := ParseDriver(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// AFPacketOptions configures the AF_PACKET driver.
type AFPacketOptions struct {
	SnapLen      int           `mapstructure:"snap_len"`       // bytes kept per frame
	BufferSizeMB int           `mapstructure:"buffer_size_mb"` // ring size
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`   // receive wake-up interval
}

// DefaultAFPacketOptions returns options sized for small control frames.
func DefaultAFPacketOptions() AFPacketOptions {
	return AFPacketOptions{
		SnapLen:      2048,
		BufferSizeMB: 1,
		PollTimeout:  50 * time.Millisecond,
	}
}

// PCAPOptions configures the libpcap driver.
type PCAPOptions struct {
	SnapLen     int           `mapstructure:"snap_len"`
	Promiscuous bool          `mapstructure:"promiscuous"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// DefaultPCAPOptions returns the libpcap defaults.
func DefaultPCAPOptions() PCAPOptions {
	return PCAPOptions{
		SnapLen:     2048,
		Promiscuous: true,
		ReadTimeout: 50 * time.Millisecond,
	}
}

// NewOpener builds the Opener for driver, decoding driver-specific options
// over the driver defaults.
func NewOpener(driver Driver, options map[string]interface{}) (Opener, error) {
	switch driver {
	case DriverAFPacket:
		opts := DefaultAFPacketOptions()
		if err := decodeOptions(options, &opts); err != nil {
			return nil, err
		}
		if opts.SnapLen <= 0 || opts.BufferSizeMB <= 0 || opts.PollTimeout <= 0 {
			return nil, fmt.Errorf("%w: afpacket options must be positive: %+v", core.ErrConfigInvalid, opts)
		}
		return newAFPacketOpener(opts)
	case DriverPCAP:
		opts := DefaultPCAPOptions()
		if err := decodeOptions(options, &opts); err != nil {
			return nil, err
		}
		if opts.SnapLen <= 0 || opts.ReadTimeout <= 0 {
			return nil, fmt.Errorf("%w: pcap options must be positive: %+v", core.ErrConfigInvalid, opts)
		}
		return &pcapOpener{opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedDriver, driver)
	}
}

func decodeOptions(in map[string]interface{}, out interface{}) error {
	if len(in) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("%w: link options: %v", core.ErrConfigInvalid, err)
	}
	return nil
}
