package ses

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// DecodeOptions controls DecodePage.
type DecodeOptions struct {
	Mode   Mode
	Filter bool
	// Headers is the element layout from the configuration page. Pages
	// 0x02, 0x05, 0x07 and 0x0a cannot be decoded without it.
	Headers *HeaderMap
	// Generation is checked against pages 0x0b and 0x0c. When nil the
	// generation of Headers is used, if any.
	Generation *uint32
	// Log receives decoder warnings. Nil discards them.
	Log logrus.FieldLogger
}

func (o *DecodeOptions) warn(page uint8, warnings []string) {
	if o.Log == nil {
		return
	}
	for _, w := range warnings {
		o.Log.WithField("page", fmt.Sprintf("0x%02x", page)).Warn(w)
	}
}

func (o *DecodeOptions) reference() *uint32 {
	if o.Generation != nil {
		return o.Generation
	}
	if o.Headers != nil {
		g := o.Headers.Generation
		return &g
	}
	return nil
}

// DecodePage renders a diagnostic page read for pageCode to w.
//
// A response carrying a different page code is reported as an
// *UnexpectedPageError in every mode. Hex mode still dumps such a response;
// raw mode prints nothing, as its output may be sent back as a control page.
//
// Decoding stops at the first structural error. Whatever was decoded up to
// that point is rendered and the error is returned afterwards, except for a
// generation code mismatch, which renders nothing.
func DecodePage(w io.Writer, pageCode uint8, raw []byte, opts DecodeOptions) error {
	if len(raw) < headerLen {
		return fmt.Errorf("%w: page 0x%x has %d bytes", ErrTruncated, pageCode, len(raw))
	}
	p := &printer{w: w}

	switch opts.Mode {
	case ModeHex:
		pageErr := checkPageCode(pageCode, raw)
		_, page, warnings, _ := trimPage(raw)
		opts.warn(pageCode, warnings)
		p.f(0, "Response in hex:")
		p.dump(0, page)
		if p.err != nil {
			return p.err
		}
		return pageErr
	case ModeRaw:
		if err := checkPageCode(pageCode, raw); err != nil {
			return err
		}
		_, page, warnings, _ := trimPage(raw)
		opts.warn(pageCode, warnings)
		return DumpRaw(w, page[headerLen:])
	}

	err := decodeStructured(p, pageCode, raw, &opts)
	if p.err != nil {
		return p.err
	}
	return err
}

func decodeStructured(p *printer, pageCode uint8, raw []byte, opts *DecodeOptions) error {
	var ge *GenerationError
	switch pageCode {
	case PageSupported, PageSupportedSES:
		s, err := ParseSupportedPages(raw)
		if s != nil {
			opts.warn(pageCode, s.Warnings)
			renderSupportedPages(p, s)
		}
		return err
	case PageConfiguration:
		c, err := ParseConfiguration(raw)
		if c != nil {
			opts.warn(pageCode, c.Warnings)
			renderConfiguration(p, c)
		}
		return err
	case PageEnclosureStatus:
		s, err := ParseEnclosureStatus(raw, opts.Headers)
		if s != nil && !errors.As(err, &ge) {
			opts.warn(pageCode, s.Warnings)
			renderEnclosureStatus(p, s, opts.Mode, opts.Filter)
		}
		return err
	case PageHelpText, PageString:
		t, err := parseTextPage(pageCode, raw)
		if t != nil {
			opts.warn(pageCode, t.Warnings)
			renderTextPage(p, t)
		}
		return err
	case PageThreshold:
		t, err := ParseThresholdIn(raw, opts.Headers)
		if t != nil && !errors.As(err, &ge) {
			opts.warn(pageCode, t.Warnings)
			renderThresholdPage(p, t, opts.Mode)
		}
		return err
	case PageElementDescriptor:
		d, err := ParseElementDescriptors(raw, opts.Headers)
		if d != nil && !errors.As(err, &ge) {
			opts.warn(pageCode, d.Warnings)
			renderElementDescriptors(p, d)
		}
		return err
	case PageShortStatus:
		s, err := ParseShortStatus(raw)
		if s != nil {
			p.f(0, "Short enclosure status diagnostic page, status=0x%x", s.Status)
		}
		return err
	case PageBusy:
		b, err := ParseBusy(raw)
		if b != nil {
			p.f(0, "Enclosure busy diagnostic page, busy=%d [vendor specific=0x%x]",
				b2i(b.Busy), b.VendorSpecific)
		}
		return err
	case PageDeviceElementStatus:
		d, err := ParseDeviceElementStatus(raw, opts.Headers)
		if d != nil && !errors.As(err, &ge) {
			opts.warn(pageCode, d.Warnings)
			renderDeviceElements(p, d, opts.Mode)
		}
		return err
	case PageSubenclosureHelp, PageSubenclosureString:
		t, err := parseSubenclosureText(pageCode, raw, opts.reference())
		if t != nil && !errors.As(err, &ge) {
			opts.warn(pageCode, t.Warnings)
			renderSubenclosureText(p, t)
		}
		return err
	}

	_, page, warnings, _ := trimPage(raw)
	opts.warn(pageCode, warnings)
	if d, ok := PageDescription(pageCode); ok {
		p.f(0, "Cannot decode response from diagnostic page: %s", d)
	} else {
		p.f(0, "Cannot decode response from diagnostic page: 0x%x", pageCode)
	}
	p.dump(0, page)
	return nil
}
