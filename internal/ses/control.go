package ses

import (
	"encoding/binary"
	"fmt"
)

// MaxControlPayload is the largest payload accepted after the 4-byte
// control page header.
const MaxControlPayload = 1020

var controlPageNames = map[uint8]string{
	PageEnclosureStatus:    "Enclosure control",
	PageString:             "String Out",
	PageThreshold:          "Threshold Out",
	PageArray:              "Array control",
	PageSubenclosureString: "Subenclosure String Out",
}

// ControlPageName returns the name of an outgoing page, or false when the
// page code has no encoder.
func ControlPageName(code uint8) (string, bool) {
	n, ok := controlPageNames[code]
	return n, ok
}

// ControlPage is an outgoing diagnostic page for SEND DIAGNOSTIC.
type ControlPage struct {
	Code uint8
	// Byte1 is the page specific second byte, e.g. the INFO, NON-CRIT,
	// CRIT and UNRECOV request bits of the Enclosure Control page.
	Byte1 uint8
	Data  []byte
}

// MarshalBinary allocates a byte slice holding the page header followed
// by Data.
//
// Page codes other than 0x02, 0x04, 0x05, 0x06 and 0x0c return
// ErrUnsupportedControlPage. Data longer than MaxControlPayload returns
// ErrPayloadTooLarge.
func (p *ControlPage) MarshalBinary() ([]byte, error) {
	if _, ok := controlPageNames[p.Code]; !ok {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnsupportedControlPage, p.Code)
	}
	if len(p.Data) > MaxControlPayload {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(p.Data), MaxControlPayload)
	}
	b := make([]byte, headerLen+len(p.Data))
	b[0] = p.Code
	b[1] = p.Byte1
	binary.BigEndian.PutUint16(b[2:4], uint16(len(p.Data)))
	copy(b[headerLen:], p.Data)
	return b, nil
}

// EncodeControlPage builds an outgoing page from a page code, the second
// header byte and the payload.
func EncodeControlPage(code, byte1 uint8, payload []byte) ([]byte, error) {
	p := ControlPage{Code: code, Byte1: byte1, Data: payload}
	return p.MarshalBinary()
}

// Indicator selects the request bit set by BuildElementControl.
type Indicator int

const (
	IndicatorIdent Indicator = iota
	IndicatorFault
)

func (i Indicator) String() string {
	if i == IndicatorFault {
		return "fault"
	}
	return "ident"
}

const controlSelect = 0x80

// indicatorBit locates the request bit of ind for element type t as a
// byte offset within the control descriptor and a mask.
func indicatorBit(t ElementType, ind Indicator) (int, uint8, bool) {
	switch ind {
	case IndicatorIdent:
		switch t {
		case TypeDevice, TypeArrayDevice:
			return 2, 0x02, true
		case TypeUPS:
			return 3, 0x80, true
		case TypeUnspecified, TypeInvalidOperation:
			return 0, 0, false
		}
		if t.Known() {
			return 1, 0x80, true
		}
	case IndicatorFault:
		switch t {
		case TypeDevice, TypeArrayDevice:
			return 3, 0x20, true
		case TypePowerSupply, TypeCooling:
			return 3, 0x40, true
		case TypeEnclosure:
			return 3, 0x02, true
		}
	}
	return 0, 0, false
}

// BuildElementControl returns an Enclosure Control page that selects one
// individual element and sets or clears its ident or fault request. The
// element is addressed by type, the ordinal of the group of that type and
// the element index within the group, all counted from zero. Other
// elements are left unselected. The current ident and fault requests of
// the selected element are carried over.
func BuildElementControl(st *EnclosureStatusPage, t ElementType, group, index int, ind Indicator, on bool) ([]byte, error) {
	bytePos, mask, ok := indicatorBit(t, ind)
	if !ok {
		return nil, fmt.Errorf("element type %s has no %s request", t, ind)
	}

	records := 0
	target := -1
	n := group
	for _, g := range st.Groups {
		if g.Header.Type == t && target < 0 {
			if n == 0 {
				if index < 0 || index >= len(g.Individual) {
					return nil, fmt.Errorf("%s element %d out of range (%d elements)", t, index, len(g.Individual))
				}
				target = records + 1 + index
			}
			n--
		}
		records += 1 + len(g.Individual)
	}
	if target < 0 {
		return nil, fmt.Errorf("%s group %d not present in enclosure status", t, group)
	}
	status, _ := st.Element(t, group, index)

	payload := make([]byte, 4+4*records)
	binary.BigEndian.PutUint32(payload[0:4], st.Generation)
	d := payload[4+4*target : 8+4*target]
	d[0] = controlSelect
	for _, other := range []Indicator{IndicatorIdent, IndicatorFault} {
		if pos, m, ok := indicatorBit(t, other); ok && status.Raw[pos]&m != 0 {
			d[pos] |= m
		}
	}
	if on {
		d[bytePos] |= mask
	} else {
		d[bytePos] &^= mask
	}
	return EncodeControlPage(PageEnclosureStatus, 0, payload)
}
