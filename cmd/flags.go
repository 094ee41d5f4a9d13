package cmd

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/spf13/pflag"

	"firestige.xyz/p4calc/internal/config"
	"firestige.xyz/p4calc/internal/core"
	"firestige.xyz/p4calc/internal/exchange"
	"firestige.xyz/p4calc/internal/link"
	"firestige.xyz/p4calc/internal/p4calc"
)

// exchangeFlags are the request flags shared by send and probe. A flag only
// overrides the configuration when it was set on the command line.
type exchangeFlags struct {
	fs *pflag.FlagSet

	driver    string
	iface     string
	dst       string
	etherType uint16
	op        string
	operands  []int32
	seed      int32
	timeout   time.Duration
}

func (f *exchangeFlags) register(fs *pflag.FlagSet) {
	f.fs = fs
	fs.StringVar(&f.driver, "driver", "", "link driver: afpacket | pcap (default from config)")
	fs.StringVarP(&f.iface, "iface", "i", "", "interface to send on (default from config)")
	fs.StringVarP(&f.dst, "dst", "d", "", "destination MAC address (default from config)")
	fs.Uint16Var(&f.etherType, "ethertype", uint16(link.DefaultEtherType), "Ethertype binding the protocol")
	fs.StringVarP(&f.op, "op", "o", "", "operation: + - * / G or add sub mul div get (default from config)")
	fs.Int32SliceVar(&f.operands, "operands", nil, "comma separated operands, at most 10")
	fs.Int32Var(&f.seed, "seed", 0, "request seed (default from config)")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "reply timeout (default from config)")
}

// apply merges the flags that were set into a copy of c.
func (f *exchangeFlags) apply(c config.Config) config.Config {
	if f.changed("driver") {
		c.Link.Driver = f.driver
	}
	if f.changed("iface") {
		c.Link.Interface = f.iface
	}
	if f.changed("dst") {
		c.Exchange.Destination = f.dst
	}
	if f.changed("ethertype") {
		c.Exchange.EtherType = f.etherType
	}
	if f.changed("op") {
		c.Exchange.Op = f.op
	}
	if f.changed("seed") {
		c.Exchange.Seed = f.seed
	}
	if f.changed("timeout") {
		c.Exchange.Timeout = f.timeout
	}
	return c
}

func (f *exchangeFlags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}

// request builds the exchange request described by c and the operands flag.
func (f *exchangeFlags) request(c config.Config) (exchange.Request, error) {
	op, err := p4calc.ParseOperation(c.Exchange.Op)
	if err != nil {
		return exchange.Request{}, err
	}
	dst, err := net.ParseMAC(c.Exchange.Destination)
	if err != nil {
		return exchange.Request{}, fmt.Errorf("%w: destination: %v", core.ErrInvalidRequest, err)
	}
	if len(f.operands) > p4calc.OperandCount {
		return exchange.Request{}, fmt.Errorf("%w: %d operands, at most %d", core.ErrInvalidRequest, len(f.operands), p4calc.OperandCount)
	}
	return exchange.Request{
		Interface:   c.Link.Interface,
		Destination: dst,
		Op:          op,
		Operands:    f.operands,
		Seed:        c.Exchange.Seed,
		Timeout:     c.Exchange.Timeout,
	}, nil
}

// newController builds the single-shot exchange controller for c.
func newController(c config.Config) (*exchange.Controller, error) {
	driver, err := link.ParseDriver(c.Link.Driver)
	if err != nil {
		return nil, err
	}
	opener, err := link.NewOpener(driver, c.Link.Options)
	if err != nil {
		return nil, err
	}
	return exchange.NewController(opener, link.Binding{EtherType: layers.EthernetType(c.Exchange.EtherType)}), nil
}
