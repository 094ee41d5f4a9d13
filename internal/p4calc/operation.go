package p4calc

import (
	"fmt"
	"strings"

	"firestige.xyz/p4calc/internal/core"
)

// Operation selects what the device computes.
type Operation byte

const (
	OpAdd Operation = '+'
	OpSub Operation = '-'
	OpMul Operation = '*'
	OpDiv Operation = '/'
	OpGet Operation = 'G' // echo probe
)

// ParseOperation accepts an operator symbol, a name (add, sub, mul, div, get)
// or any other single byte, which is passed through untouched.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "+", "add":
		return OpAdd, nil
	case "-", "sub":
		return OpSub, nil
	case "*", "mul":
		return OpMul, nil
	case "/", "div":
		return OpDiv, nil
	case "g", "get":
		return OpGet, nil
	}
	if len(s) == 1 {
		return Operation(s[0]), nil
	}
	return 0, fmt.Errorf("%w: unknown operation %q", core.ErrInvalidRequest, s)
}

func (o Operation) String() string {
	if o >= 0x20 && o < 0x7f {
		return string(rune(o))
	}
	return fmt.Sprintf("0x%02x", byte(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Operation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operation) UnmarshalText(text []byte) error {
	op, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}
