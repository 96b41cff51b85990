package ses

import (
	"fmt"
)

// ElementGroup holds the records of one element type header: the overall
// record followed by one record per possible element.
type ElementGroup[T any] struct {
	Header     ElementTypeHeader
	Overall    T
	Individual []T
}

// statusPrologue validates the page code and returns the trimmed page with
// its generation code checked against the header map.
func statusPrologue(code uint8, b []byte, hm *HeaderMap) (PageHeader, []byte, uint32, []string, error) {
	if err := checkPageCode(code, b); err != nil {
		return PageHeader{}, nil, 0, nil, err
	}
	if hm == nil {
		return PageHeader{}, nil, 0, nil, ErrHeadersRequired
	}
	hdr, page, warnings, err := trimPage(b)
	if err != nil {
		return hdr, nil, 0, warnings, err
	}
	gen, err := generation(page)
	if err != nil {
		return hdr, page, 0, warnings, err
	}
	if gen != hm.Generation {
		return hdr, page, gen, warnings, &GenerationError{Page: code, Reference: hm.Generation, Got: gen}
	}
	return hdr, page, gen, warnings, nil
}

// EnclosureStatusPage is a decoded Enclosure Status diagnostic page (0x02).
type EnclosureStatusPage struct {
	Header     PageHeader
	Generation uint32
	// Summary flags of byte 1.
	InvalidOperation bool
	Info             bool
	NonCritical      bool
	Critical         bool
	Unrecoverable    bool
	Groups           []ElementGroup[*ElementStatus]
	Warnings         []string
}

// ParseEnclosureStatus decodes an Enclosure Status page with the element
// layout from hm. A page whose generation code differs from hm is rejected
// with a GenerationError and no element records. On ErrTruncated the
// groups decoded so far are returned with the error.
func ParseEnclosureStatus(b []byte, hm *HeaderMap) (*EnclosureStatusPage, error) {
	hdr, page, gen, warnings, err := statusPrologue(PageEnclosureStatus, b, hm)
	if page == nil {
		return nil, err
	}
	p := &EnclosureStatusPage{
		Header:           hdr,
		Generation:       gen,
		InvalidOperation: page[1]&0x10 != 0,
		Info:             page[1]&0x08 != 0,
		NonCritical:      page[1]&0x04 != 0,
		Critical:         page[1]&0x02 != 0,
		Unrecoverable:    page[1]&0x01 != 0,
		Warnings:         warnings,
	}
	if err != nil {
		return p, err
	}

	c := newCursor(page, 8)
	for _, h := range hm.Headers {
		rec, err := c.take(4)
		if err != nil {
			return p, err
		}
		g := ElementGroup[*ElementStatus]{Header: h}
		g.Overall, _ = UnmarshalElementStatus(h.Type, rec)
		for j := 0; j < int(h.MaxElements); j++ {
			rec, err := c.take(4)
			if err != nil {
				p.Groups = append(p.Groups, g)
				return p, err
			}
			s, _ := UnmarshalElementStatus(h.Type, rec)
			g.Individual = append(g.Individual, s)
		}
		p.Groups = append(p.Groups, g)
	}
	return p, nil
}

// Element returns individual element index of the n-th group of type t,
// counting groups of that type from zero.
func (p *EnclosureStatusPage) Element(t ElementType, n, index int) (*ElementStatus, bool) {
	for _, g := range p.Groups {
		if g.Header.Type != t {
			continue
		}
		if n > 0 {
			n--
			continue
		}
		if index < 0 || index >= len(g.Individual) {
			return nil, false
		}
		return g.Individual[index], true
	}
	return nil, false
}

// ThresholdPage is a decoded Threshold In diagnostic page (0x05).
type ThresholdPage struct {
	Header           PageHeader
	Generation       uint32
	InvalidOperation bool
	Groups           []ElementGroup[*Threshold]
	Warnings         []string
}

// ParseThresholdIn decodes a Threshold In page with the layout from hm.
func ParseThresholdIn(b []byte, hm *HeaderMap) (*ThresholdPage, error) {
	hdr, page, gen, warnings, err := statusPrologue(PageThreshold, b, hm)
	if page == nil {
		return nil, err
	}
	p := &ThresholdPage{
		Header:           hdr,
		Generation:       gen,
		InvalidOperation: page[1]&0x10 != 0,
		Warnings:         warnings,
	}
	if err != nil {
		return p, err
	}

	c := newCursor(page, 8)
	for _, h := range hm.Headers {
		rec, err := c.take(4)
		if err != nil {
			return p, err
		}
		g := ElementGroup[*Threshold]{Header: h}
		g.Overall, _ = UnmarshalThreshold(h.Type, rec)
		for j := 0; j < int(h.MaxElements); j++ {
			rec, err := c.take(4)
			if err != nil {
				p.Groups = append(p.Groups, g)
				return p, err
			}
			th, _ := UnmarshalThreshold(h.Type, rec)
			g.Individual = append(g.Individual, th)
		}
		p.Groups = append(p.Groups, g)
	}
	return p, nil
}

// ElementDescriptorPage is a decoded Element Descriptor page (0x07).
type ElementDescriptorPage struct {
	Header     PageHeader
	Generation uint32
	Groups     []ElementGroup[string]
	Warnings   []string
}

// ParseElementDescriptors decodes an Element Descriptor page with the
// layout from hm. Empty descriptors decode as "".
func ParseElementDescriptors(b []byte, hm *HeaderMap) (*ElementDescriptorPage, error) {
	hdr, page, gen, warnings, err := statusPrologue(PageElementDescriptor, b, hm)
	if page == nil {
		return nil, err
	}
	p := &ElementDescriptorPage{Header: hdr, Generation: gen, Warnings: warnings}
	if err != nil {
		return p, err
	}

	c := newCursor(page, 8)
	for _, h := range hm.Headers {
		g := ElementGroup[string]{Header: h}
		text, err := takeDescriptor(c)
		if err != nil {
			return p, err
		}
		g.Overall = text
		for j := 0; j < int(h.MaxElements); j++ {
			text, err := takeDescriptor(c)
			if err != nil {
				p.Groups = append(p.Groups, g)
				return p, err
			}
			g.Individual = append(g.Individual, text)
		}
		p.Groups = append(p.Groups, g)
	}
	return p, nil
}

// takeDescriptor reads a descriptor with 2 reserved bytes and a 16-bit
// length ahead of its text.
func takeDescriptor(c *cursor) (string, error) {
	h, err := c.take(4)
	if err != nil {
		return "", err
	}
	n := int(h[2])<<8 | int(h[3])
	text, err := c.take(n)
	if err != nil {
		return "", err
	}
	return string(text), nil
}

// SubenclosureText is the help text or string data of one subenclosure.
type SubenclosureText struct {
	ID   uint8
	Data []byte
}

// SubenclosureTextPage is a decoded Subenclosure Help Text (0x0b) or
// Subenclosure String In (0x0c) page.
type SubenclosureTextPage struct {
	Header                 PageHeader
	SecondarySubenclosures int
	Generation             uint32
	Subenclosures          []SubenclosureText
	Warnings               []string
}

// ParseSubenclosureHelpText decodes a Subenclosure Help Text page. When
// ref is not nil the generation code is checked against it.
func ParseSubenclosureHelpText(b []byte, ref *uint32) (*SubenclosureTextPage, error) {
	return parseSubenclosureText(PageSubenclosureHelp, b, ref)
}

// ParseSubenclosureStrings decodes a Subenclosure String In page. When ref
// is not nil the generation code is checked against it.
func ParseSubenclosureStrings(b []byte, ref *uint32) (*SubenclosureTextPage, error) {
	return parseSubenclosureText(PageSubenclosureString, b, ref)
}

func parseSubenclosureText(code uint8, b []byte, ref *uint32) (*SubenclosureTextPage, error) {
	if err := checkPageCode(code, b); err != nil {
		return nil, err
	}
	hdr, page, warnings, err := trimPage(b)
	if err != nil {
		return nil, err
	}
	p := &SubenclosureTextPage{
		Header:                 hdr,
		SecondarySubenclosures: int(page[1]),
		Warnings:               warnings,
	}
	if p.Generation, err = generation(page); err != nil {
		return p, err
	}
	if ref != nil && *ref != p.Generation {
		return p, &GenerationError{Page: code, Reference: *ref, Got: p.Generation}
	}

	c := newCursor(page, 8)
	for k := 0; k <= p.SecondarySubenclosures; k++ {
		h, err := c.take(4)
		if err != nil {
			return p, err
		}
		n := int(h[2])<<8 | int(h[3])
		data, err := c.take(n)
		if err != nil {
			return p, err
		}
		p.Subenclosures = append(p.Subenclosures, SubenclosureText{ID: h[1], Data: data})
	}
	return p, nil
}

// SupportedPages is a decoded Supported Diagnostic Pages page (0x00) or
// Supported SES Diagnostic Pages page (0x0d).
type SupportedPages struct {
	Header   PageHeader
	Codes    []uint8
	Warnings []string
}

// ParseSupportedPages decodes a page list. The list ends at the first code
// lower than its predecessor, which is taken as padding.
func ParseSupportedPages(b []byte) (*SupportedPages, error) {
	if len(b) < headerLen {
		return nil, fmt.Errorf("%w: supported pages list has %d bytes", ErrTruncated, len(b))
	}
	if b[0] != PageSupported && b[0] != PageSupportedSES {
		return nil, &UnexpectedPageError{Want: PageSupported, Got: b[0], Byte1: b[1]}
	}
	hdr, page, warnings, err := trimPage(b)
	if err != nil {
		return nil, err
	}
	p := &SupportedPages{Header: hdr, Warnings: warnings}
	var prev uint8
	for _, code := range page[headerLen:] {
		if code < prev {
			break
		}
		p.Codes = append(p.Codes, code)
		prev = code
	}
	return p, nil
}

// TextPage holds the payload of the Help Text (0x03) and String In (0x04)
// pages of the primary subenclosure.
type TextPage struct {
	Header   PageHeader
	Data     []byte
	Warnings []string
}

// ParseHelpText decodes a Help Text page.
func ParseHelpText(b []byte) (*TextPage, error) {
	return parseTextPage(PageHelpText, b)
}

// ParseStringIn decodes a String In page.
func ParseStringIn(b []byte) (*TextPage, error) {
	return parseTextPage(PageString, b)
}

func parseTextPage(code uint8, b []byte) (*TextPage, error) {
	if err := checkPageCode(code, b); err != nil {
		return nil, err
	}
	hdr, page, warnings, err := trimPage(b)
	if err != nil {
		return nil, err
	}
	return &TextPage{Header: hdr, Data: page[headerLen:], Warnings: warnings}, nil
}

// ShortStatus is a decoded Short Enclosure Status page (0x08).
type ShortStatus struct {
	Header PageHeader
	Status uint8
}

// ParseShortStatus decodes a Short Enclosure Status page.
func ParseShortStatus(b []byte) (*ShortStatus, error) {
	if err := checkPageCode(PageShortStatus, b); err != nil {
		return nil, err
	}
	var h PageHeader
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &ShortStatus{Header: h, Status: h.Flags}, nil
}

// BusyPage is a decoded Enclosure Busy page (0x09).
type BusyPage struct {
	Header         PageHeader
	Busy           bool
	VendorSpecific uint8
}

// ParseBusy decodes an Enclosure Busy page.
func ParseBusy(b []byte) (*BusyPage, error) {
	if err := checkPageCode(PageBusy, b); err != nil {
		return nil, err
	}
	var h PageHeader
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &BusyPage{Header: h, Busy: h.Flags&0x01 != 0, VendorSpecific: h.Flags >> 1}, nil
}
