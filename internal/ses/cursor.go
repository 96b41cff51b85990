package ses

import (
	"encoding/binary"
	"fmt"
)

// cursor walks a bounded byte slice. Every read goes through take so a
// short page surfaces as ErrTruncated instead of an out of range panic.
type cursor struct {
	b   []byte
	off int
}

func newCursor(b []byte, off int) *cursor {
	return &cursor{b: b, off: off}
}

func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || c.off+n > len(c.b) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, page has %d",
			ErrTruncated, n, c.off, len(c.b))
	}
	p := c.b[c.off : c.off+n]
	c.off += n
	return p, nil
}

// peek returns the next n bytes without advancing.
func (c *cursor) peek(n int) ([]byte, error) {
	p, err := c.take(n)
	if err != nil {
		return nil, err
	}
	c.off -= n
	return p, nil
}

func (c *cursor) remaining() int {
	return len(c.b) - c.off
}

// PageHeader is the 4-byte header shared by every diagnostic page.
type PageHeader struct {
	Code  uint8
	Flags uint8
	// Length counts the bytes following the header.
	Length uint16
}

// headerLen is the size of a diagnostic page header.
//
// 1 byte : page code
// 1 byte : page specific flags
// 2 bytes: page length (big endian)
const headerLen = 4

// MarshalBinary encodes the header.
func (h PageHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, headerLen)
	b[0] = h.Code
	b[1] = h.Flags
	binary.BigEndian.PutUint16(b[2:4], h.Length)
	return b, nil
}

// UnmarshalBinary decodes the header from the start of b.
func (h *PageHeader) UnmarshalBinary(b []byte) error {
	if len(b) < headerLen {
		return fmt.Errorf("%w: page header needs %d bytes, got %d", ErrTruncated, headerLen, len(b))
	}
	h.Code = b[0]
	h.Flags = b[1]
	h.Length = binary.BigEndian.Uint16(b[2:4])
	return nil
}

// trimPage parses the page header and returns the page cut to its
// effective length. A declared length running past the buffer is clipped
// to the buffer and reported as a warning.
func trimPage(b []byte) (PageHeader, []byte, []string, error) {
	var h PageHeader
	if err := h.UnmarshalBinary(b); err != nil {
		return h, nil, nil, err
	}
	var warnings []string
	n := int(h.Length) + headerLen
	if n > len(b) {
		warnings = append(warnings, fmt.Sprintf(
			"response buffer too small [%d but need %d]", len(b), n))
		n = len(b)
	}
	return h, b[:n], warnings, nil
}

// checkPageCode validates the code of a returned page against the
// requested one.
func checkPageCode(want uint8, b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("%w: page code and flags missing", ErrTruncated)
	}
	if b[0] != want {
		return &UnexpectedPageError{Want: want, Got: b[0], Byte1: b[1]}
	}
	return nil
}

// generation reads the generation code at bytes 4..7.
func generation(b []byte) (uint32, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("%w: generation code missing", ErrTruncated)
	}
	return binary.BigEndian.Uint32(b[4:8]), nil
}
