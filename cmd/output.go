package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"firestige.xyz/p4calc/internal/p4calc"
)

type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
	outputYAML outputFormat = "yaml"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case outputText, outputJSON, outputYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (must be text/json/yaml)", s)
	}
}

// headerView is the structured rendering of a reply.
type headerView struct {
	P        string           `json:"p" yaml:"p"`
	Op       p4calc.Operation `json:"op" yaml:"op"`
	Operands []int32          `json:"operands" yaml:"operands"`
	Seed     int32            `json:"seed" yaml:"seed"`
}

func newHeaderView(h p4calc.Header) headerView {
	return headerView{
		P:        string(rune(h.Marker)),
		Op:       h.Op,
		Operands: append([]int32(nil), h.Operands[:]...),
		Seed:     h.Seed,
	}
}

func renderHeader(w io.Writer, format outputFormat, h p4calc.Header) error {
	switch format {
	case outputJSON:
		out, err := json.MarshalIndent(newHeaderView(h), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal reply: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newHeaderView(h)); err != nil {
			return fmt.Errorf("failed to marshal reply: %w", err)
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, h.String())
		return err
	}
}
