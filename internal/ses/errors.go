package ses

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrTruncated              = errors.New("response too short")
	ErrUnexpectedPage         = errors.New("unexpected diagnostic page")
	ErrEnclosureBusy          = errors.New("enclosure busy, try again later")
	ErrShortStatusOnly        = errors.New("enclosure only supports short enclosure status")
	ErrGenerationMismatch     = errors.New("state of enclosure changed, please try again")
	ErrTooManyElements        = errors.New("too many element type headers")
	ErrUnsupportedControlPage = errors.New("control page not supported")
	ErrMalformedHex           = errors.New("malformed hex input")
	ErrPayloadTooLarge        = errors.New("control page payload too large")
	ErrHeadersRequired        = errors.New("element type headers required for this page")
)

// UnexpectedPageError reports that the device answered with a different
// diagnostic page than the one requested. The busy and short-status cases
// are expected alternate device states and match ErrEnclosureBusy and
// ErrShortStatusOnly respectively.
type UnexpectedPageError struct {
	Want uint8
	Got  uint8
	// Byte1 is the second byte of the returned page: the busy flag for
	// page 0x09, the short enclosure status for page 0x08.
	Byte1 uint8
}

func (e *UnexpectedPageError) Busy() bool {
	return e.Got == PageBusy && e.Byte1&0x01 != 0
}

func (e *UnexpectedPageError) ShortStatusOnly() bool {
	return e.Got == PageShortStatus
}

func (e *UnexpectedPageError) Error() string {
	switch {
	case e.Busy():
		return ErrEnclosureBusy.Error()
	case e.ShortStatusOnly():
		return fmt.Sprintf("%s: 0x%x", ErrShortStatusOnly, e.Byte1)
	}
	return fmt.Sprintf("invalid response, wanted page code: 0x%x but got 0x%x", e.Want, e.Got)
}

func (e *UnexpectedPageError) Is(target error) bool {
	switch target {
	case ErrUnexpectedPage:
		return true
	case ErrEnclosureBusy:
		return e.Busy()
	case ErrShortStatusOnly:
		return e.ShortStatusOnly()
	}
	return false
}

// GenerationError carries both generation codes of a rejected page.
type GenerationError struct {
	Page      uint8
	Reference uint32
	Got       uint32
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("page 0x%x generation code 0x%x, expected 0x%x: %s",
		e.Page, e.Got, e.Reference, ErrGenerationMismatch)
}

func (e *GenerationError) Unwrap() error { return ErrGenerationMismatch }
