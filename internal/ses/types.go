package ses

import "fmt"

// Mode selects how a decoded page is rendered.
type Mode int

const (
	// ModeText prints every record with its fields interpreted.
	ModeText Mode = iota
	// ModeHex dumps the whole page in hex, bypassing structured decoding.
	ModeHex
	// ModeInnerHex walks the page structure but prints each record in hex.
	ModeInnerHex
	// ModeRaw prints the bytes after the page header in a form suitable
	// for feeding back as control page data.
	ModeRaw
)

func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeHex:
		return "hex"
	case ModeInnerHex:
		return "inner-hex"
	case ModeRaw:
		return "raw"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}
