// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers discriminate with errors.Is; producers wrap with %w.
var (
	// Header codec errors
	ErrMalformedHeader = errors.New("p4calc: malformed header")

	// Exchange errors
	ErrNotP4calc       = errors.New("p4calc: not a p4calc frame")
	ErrTransmit        = errors.New("p4calc: transmit failed")
	ErrResponseTimeout = errors.New("p4calc: response timeout")
	ErrInvalidRequest  = errors.New("p4calc: invalid request")
	ErrSeedInUse       = errors.New("p4calc: seed already in flight")

	// Link errors
	ErrLinkClosed        = errors.New("p4calc: link closed")
	ErrUnsupportedDriver = errors.New("p4calc: unsupported link driver")

	// Configuration errors
	ErrConfigInvalid = errors.New("p4calc: invalid configuration")
)
