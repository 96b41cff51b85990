package ses

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// DefaultMaxElementHeaders caps the number of element type headers taken
// from a configuration page.
const DefaultMaxElementHeaders = 512

// minSubenclosureLen is the smallest enclosure descriptor that carries the
// logical id and the vendor identification strings.
const minSubenclosureLen = 40

// ElementTypeHeader is one type descriptor header from the configuration
// page. It drives the walk over every status-class page.
type ElementTypeHeader struct {
	Type           ElementType
	MaxElements    uint8
	SubenclosureID uint8
	// TextLength is the length of the type descriptor text that follows
	// the type descriptor header list.
	TextLength uint8
}

// HeaderMap is the ordered list of element type headers and the generation
// code captured from one configuration page read. A HeaderMap is owned by
// the caller; its capacity bounds the number of headers it accepts.
type HeaderMap struct {
	Generation uint32
	Headers    []ElementTypeHeader
	// Incomplete is set when the page ended before every announced
	// header was read. Headers then holds the prefix that was decoded.
	Incomplete bool
	Warnings   []string

	capacity int
}

// NewHeaderMap returns an empty HeaderMap accepting at most capacity
// headers. A capacity of zero or less selects DefaultMaxElementHeaders.
func NewHeaderMap(capacity int) *HeaderMap {
	if capacity <= 0 {
		capacity = DefaultMaxElementHeaders
	}
	return &HeaderMap{capacity: capacity}
}

// Capacity reports the maximum number of headers the map accepts.
func (m *HeaderMap) Capacity() int {
	if m.capacity <= 0 {
		return DefaultMaxElementHeaders
	}
	return m.capacity
}

// ExtractElementHeaders decodes the element type headers and generation
// code of a configuration page using the default capacity.
func ExtractElementHeaders(b []byte) (*HeaderMap, error) {
	m := NewHeaderMap(DefaultMaxElementHeaders)
	if err := m.UnmarshalBinary(b); err != nil {
		return m, err
	}
	return m, nil
}

// UnmarshalBinary fills the map from a raw configuration page.
//
// On ErrTruncated the headers decoded before the end of the page are kept
// and Incomplete is set. ErrTooManyElements discards everything.
func (m *HeaderMap) UnmarshalBinary(b []byte) error {
	m.Headers = m.Headers[:0]
	m.Incomplete = false
	m.Warnings = nil

	if len(b) < headerLen {
		return fmt.Errorf("%w: configuration page has %d bytes", ErrTruncated, len(b))
	}
	if err := checkPageCode(PageConfiguration, b); err != nil {
		return err
	}
	_, page, warnings, err := trimPage(b)
	if err != nil {
		return err
	}
	m.Warnings = warnings

	gen, err := generation(page)
	if err != nil {
		m.Incomplete = true
		return err
	}
	m.Generation = gen

	numSubs := int(page[1]) + 1
	c := newCursor(page, 8)
	sumTypes := 0
	for k := 0; k < numSubs; k++ {
		hdr, err := c.peek(4)
		if err != nil {
			m.Incomplete = true
			return err
		}
		el := int(hdr[3]) + 4
		sumTypes += int(hdr[2])
		if el < minSubenclosureLen {
			m.Warnings = append(m.Warnings, fmt.Sprintf("short enclosure descriptor len=%d", el))
		}
		if _, err := c.take(el); err != nil {
			m.Incomplete = true
			return err
		}
	}

	capacity := m.Capacity()
	for k := 0; k < sumTypes; k++ {
		if k >= capacity {
			m.Headers = m.Headers[:0]
			return fmt.Errorf("%w: configuration page announces %d, limit is %d",
				ErrTooManyElements, sumTypes, capacity)
		}
		th, err := c.take(4)
		if err != nil {
			m.Incomplete = true
			return err
		}
		m.Headers = append(m.Headers, ElementTypeHeader{
			Type:           ElementType(th[0]),
			MaxElements:    th[1],
			SubenclosureID: th[2],
			TextLength:     th[3],
		})
	}
	return nil
}

// Subenclosure is one enclosure descriptor of the configuration page.
type Subenclosure struct {
	RelativeProcessID uint8
	NumProcesses      uint8
	ID                uint8
	NumElementTypes   uint8
	// Length is the whole descriptor length, header included.
	Length int
	// Short is set when the descriptor is too small to carry the fields
	// below; they are left zero.
	Short          bool
	LogicalID      [8]byte
	Vendor         string
	Product        string
	Revision       string
	VendorSpecific []byte
}

// TypeDescriptor is an element type header with its descriptor text.
type TypeDescriptor struct {
	ElementTypeHeader
	Text string
}

// ConfigurationPage is a decoded Configuration diagnostic page (0x01).
type ConfigurationPage struct {
	Header PageHeader
	// SecondarySubenclosures does not count the primary subenclosure.
	SecondarySubenclosures int
	Generation             uint32
	Subenclosures          []Subenclosure
	Types                  []TypeDescriptor
	Warnings               []string
}

// ParseConfiguration decodes a Configuration diagnostic page. On
// ErrTruncated the partially decoded page is returned with the error.
func ParseConfiguration(b []byte) (*ConfigurationPage, error) {
	if err := checkPageCode(PageConfiguration, b); err != nil {
		return nil, err
	}
	hdr, page, warnings, err := trimPage(b)
	if err != nil {
		return nil, err
	}
	p := &ConfigurationPage{
		Header:                 hdr,
		SecondarySubenclosures: int(page[1]),
		Warnings:               warnings,
	}
	if p.Generation, err = generation(page); err != nil {
		return p, err
	}

	c := newCursor(page, 8)
	sumTypes := 0
	for k := 0; k <= p.SecondarySubenclosures; k++ {
		h, err := c.peek(4)
		if err != nil {
			return p, err
		}
		el := int(h[3]) + 4
		d, err := c.take(el)
		if err != nil {
			return p, err
		}
		s := Subenclosure{
			RelativeProcessID: (d[0] & 0x70) >> 4,
			NumProcesses:      d[0] & 0x07,
			ID:                d[1],
			NumElementTypes:   d[2],
			Length:            el,
		}
		sumTypes += int(d[2])
		if el < minSubenclosureLen {
			s.Short = true
			p.Warnings = append(p.Warnings, fmt.Sprintf("enc descriptor len=%d ??", el))
		} else {
			copy(s.LogicalID[:], d[4:12])
			s.Vendor = fixedString(d[12:20])
			s.Product = fixedString(d[20:36])
			s.Revision = fixedString(d[36:40])
			if el > minSubenclosureLen {
				s.VendorSpecific = d[minSubenclosureLen:]
			}
		}
		p.Subenclosures = append(p.Subenclosures, s)
	}

	for k := 0; k < sumTypes; k++ {
		th, err := c.take(4)
		if err != nil {
			return p, err
		}
		p.Types = append(p.Types, TypeDescriptor{ElementTypeHeader: ElementTypeHeader{
			Type:           ElementType(th[0]),
			MaxElements:    th[1],
			SubenclosureID: th[2],
			TextLength:     th[3],
		}})
	}
	for i := range p.Types {
		n := int(p.Types[i].TextLength)
		if n == 0 {
			continue
		}
		text, err := c.take(n)
		if err != nil {
			return p, err
		}
		p.Types[i].Text = string(text)
	}
	return p, nil
}

// HeaderMap returns the element type headers of the page.
func (p *ConfigurationPage) HeaderMap() *HeaderMap {
	m := NewHeaderMap(len(p.Types))
	m.Generation = p.Generation
	for _, t := range p.Types {
		m.Headers = append(m.Headers, t.ElementTypeHeader)
	}
	return m
}

// LogicalIDUint64 returns a subenclosure logical id as an integer.
func (s *Subenclosure) LogicalIDUint64() uint64 {
	return binary.BigEndian.Uint64(s.LogicalID[:])
}

// fixedString converts a space padded SCSI ASCII field.
func fixedString(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}
