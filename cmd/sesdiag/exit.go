package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigreer/sesdiag/internal/ses"
	"github.com/sigreer/sesdiag/internal/sgio"
)

// Exit codes
const (
	exitOK        = 0
	exitFailure   = 1
	exitRetryable = 2
	exitUsage     = 3
)

var errPollSkipped = errors.New("poll skipped, enclosure busy or changed")

// usageError marks bad command lines and malformed input.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErr(err error) error {
	return &usageError{err: err}
}

// exitCode maps an error to the process exit status. Busy enclosures and
// changed generation codes succeed when retried.
func exitCode(err error) int {
	var ue *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue),
		errors.Is(err, ses.ErrMalformedHex),
		errors.Is(err, ses.ErrPayloadTooLarge),
		errors.Is(err, ses.ErrUnsupportedControlPage),
		errors.Is(err, ses.ErrHeadersRequired):
		return exitUsage
	case errors.Is(err, ses.ErrEnclosureBusy),
		errors.Is(err, ses.ErrGenerationMismatch),
		errors.Is(err, sgio.ErrDeviceBusy),
		errors.Is(err, errPollSkipped):
		return exitRetryable
	}
	return exitFailure
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return usageErr(err)
		}
		return nil
	}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageErr(err)
		}
		return nil
	}
}

// parseByte accepts a decimal number, or hex with a 0x prefix or h suffix.
func parseByte(s string) (uint8, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	base := 10
	switch {
	case strings.HasPrefix(t, "0x"):
		t, base = t[2:], 16
	case strings.HasSuffix(t, "h"):
		t, base = t[:len(t)-1], 16
	}
	v, err := strconv.ParseUint(t, base, 8)
	if err != nil {
		return 0, usageErr(fmt.Errorf("bad byte value %q: want 0..255, decimal or hex (0x1f or 1fh)", s))
	}
	return uint8(v), nil
}
