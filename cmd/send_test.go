package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/p4calc/internal/config"
	"firestige.xyz/p4calc/internal/core"
	"firestige.xyz/p4calc/internal/exchange"
	"firestige.xyz/p4calc/internal/p4calc"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendRequest(ctx context.Context, req exchange.Request) (p4calc.Header, error) {
	args := m.Called(ctx, req)
	h, _ := args.Get(0).(p4calc.Header)
	return h, args.Error(1)
}

func testRequest() exchange.Request {
	return exchange.Request{
		Interface:   "veth0",
		Destination: net.HardwareAddr{0x00, 0x04, 0x00, 0x00, 0x00, 0x00},
		Op:          p4calc.OpAdd,
		Operands:    []int32{1, 2},
		Seed:        42,
		Timeout:     time.Second,
	}
}

func testReply(seed int32) p4calc.Header {
	h := p4calc.Header{Marker: p4calc.Marker, Op: p4calc.OpAdd, Seed: seed}
	h.Operands[0] = 3
	return h
}

func TestRunSend_Text(t *testing.T) {
	mockSender := new(MockSender)
	mockSender.On("SendRequest", mock.Anything, testRequest()).Return(testReply(42), nil)

	var buf bytes.Buffer
	err := runSend(context.Background(), mockSender, testRequest(), outputText, &buf)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "###[ P4calc ]###")
	assert.Contains(t, buf.String(), "t_0  = 3")
	assert.NotContains(t, buf.String(), "warning")
	mockSender.AssertExpectations(t)
}

func TestRunSend_JSON(t *testing.T) {
	mockSender := new(MockSender)
	mockSender.On("SendRequest", mock.Anything, mock.Anything).Return(testReply(42), nil)

	var buf bytes.Buffer
	require.NoError(t, runSend(context.Background(), mockSender, testRequest(), outputJSON, &buf))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "K", got["p"])
	assert.Equal(t, "+", got["op"])
	assert.Equal(t, float64(42), got["seed"])
	assert.Len(t, got["operands"], p4calc.OperandCount)
}

func TestRunSend_YAML(t *testing.T) {
	mockSender := new(MockSender)
	mockSender.On("SendRequest", mock.Anything, mock.Anything).Return(testReply(42), nil)

	var buf bytes.Buffer
	require.NoError(t, runSend(context.Background(), mockSender, testRequest(), outputYAML, &buf))

	var got headerView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, newHeaderView(testReply(42)), got)
}

func TestRunSend_SeedMismatchWarns(t *testing.T) {
	mockSender := new(MockSender)
	mockSender.On("SendRequest", mock.Anything, mock.Anything).Return(testReply(99), nil)

	var buf bytes.Buffer
	err := runSend(context.Background(), mockSender, testRequest(), outputText, &buf)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "warning: reply seed 99 does not match request seed 42")
	assert.Contains(t, buf.String(), "seed = 99")
}

func TestRunSend_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind string
	}{
		{"timeout", fmt.Errorf("%w after 1s", core.ErrResponseTimeout), "ResponseTimeout"},
		{"transmit", fmt.Errorf("%w: eth0: network is down", core.ErrTransmit), "TransmitError"},
		{"not p4calc", fmt.Errorf("%w: marker 'X'", core.ErrNotP4calc), "NotP4calc"},
		{"malformed", core.ErrMalformedHeader, "MalformedHeader"},
		{"other", errors.New("boom"), "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSender := new(MockSender)
			mockSender.On("SendRequest", mock.Anything, mock.Anything).Return(p4calc.Header{}, tt.err)

			var out bytes.Buffer
			err := runSend(context.Background(), mockSender, testRequest(), outputText, &out)

			require.Error(t, err)
			assert.Empty(t, out.String())

			var stderr bytes.Buffer
			printError(&stderr, err)
			assert.True(t, strings.HasPrefix(stderr.String(), "Error: "+tt.wantKind+": "))
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	f, err := parseOutputFormat("JSON")
	assert.NoError(t, err)
	assert.Equal(t, outputJSON, f)

	_, err = parseOutputFormat("xml")
	assert.Error(t, err)
}

func newTestFlags(t *testing.T, args ...string) *exchangeFlags {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := &exchangeFlags{}
	f.register(fs)
	require.NoError(t, fs.Parse(args))
	return f
}

func defaultConfig(t *testing.T) config.Config {
	t.Helper()
	c, err := config.Load("")
	require.NoError(t, err)
	return *c
}

func TestExchangeFlags_DefaultsFromConfig(t *testing.T) {
	f := newTestFlags(t)
	c := f.apply(defaultConfig(t))

	req, err := f.request(c)
	require.NoError(t, err)
	assert.Equal(t, "eth0", req.Interface)
	assert.Equal(t, "00:04:00:00:00:00", req.Destination.String())
	assert.Equal(t, p4calc.OpGet, req.Op)
	assert.Equal(t, int32(1234), req.Seed)
	assert.Equal(t, time.Second, req.Timeout)
	assert.Empty(t, req.Operands)
}

func TestExchangeFlags_Overrides(t *testing.T) {
	f := newTestFlags(t,
		"--iface", "veth1",
		"--dst", "00:04:00:00:00:09",
		"--op", "mul",
		"--operands=-6,7",
		"--seed", "7",
		"--timeout", "250ms",
		"--driver", "pcap",
		"--ethertype", "4661",
	)
	c := f.apply(defaultConfig(t))
	assert.Equal(t, "pcap", c.Link.Driver)
	assert.Equal(t, uint16(0x1235), c.Exchange.EtherType)

	req, err := f.request(c)
	require.NoError(t, err)
	assert.Equal(t, "veth1", req.Interface)
	assert.Equal(t, "00:04:00:00:00:09", req.Destination.String())
	assert.Equal(t, p4calc.OpMul, req.Op)
	assert.Equal(t, []int32{-6, 7}, req.Operands)
	assert.Equal(t, int32(7), req.Seed)
	assert.Equal(t, 250*time.Millisecond, req.Timeout)
}

func TestExchangeFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too many operands", []string{"--operands", "1,2,3,4,5,6,7,8,9,10,11"}},
		{"bad destination", []string{"--dst", "nowhere"}},
		{"bad op", []string{"--op", "modulo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFlags(t, tt.args...)
			_, err := f.request(f.apply(defaultConfig(t)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidRequest))
		})
	}
}

func TestNewController_UnsupportedDriver(t *testing.T) {
	c := defaultConfig(t)
	c.Link.Driver = "xdp"

	_, err := newController(c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnsupportedDriver))
	assert.Equal(t, "ConfigInvalid", errorKind(err))
}
