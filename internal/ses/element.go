package ses

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// ElementType is an SES element type code.
type ElementType uint8

// Element type codes, SES and SES-2.
const (
	TypeUnspecified         ElementType = 0x00
	TypeDevice              ElementType = 0x01
	TypePowerSupply         ElementType = 0x02
	TypeCooling             ElementType = 0x03
	TypeTemperature         ElementType = 0x04
	TypeDoorLock            ElementType = 0x05
	TypeAudibleAlarm        ElementType = 0x06
	TypeESCElectronics      ElementType = 0x07
	TypeSCCElectronics      ElementType = 0x08
	TypeNonvolatileCache    ElementType = 0x09
	TypeInvalidOperation    ElementType = 0x0a
	TypeUPS                 ElementType = 0x0b
	TypeDisplay             ElementType = 0x0c
	TypeKeyPad              ElementType = 0x0d
	TypeEnclosure           ElementType = 0x0e
	TypeSCSIPort            ElementType = 0x0f
	TypeLanguage            ElementType = 0x10
	TypeCommunicationPort   ElementType = 0x11
	TypeVoltageSensor       ElementType = 0x12
	TypeCurrentSensor       ElementType = 0x13
	TypeSCSITargetPort      ElementType = 0x14
	TypeSCSIInitiatorPort   ElementType = 0x15
	TypeSimpleSubenclosure  ElementType = 0x16
	TypeArrayDevice         ElementType = 0x17
)

// String returns the catalog description, or the code in brackets.
func (t ElementType) String() string {
	if d, ok := ElementTypeDescription(uint8(t)); ok {
		return d
	}
	return fmt.Sprintf("[0x%x]", uint8(t))
}

// Known reports whether the type has a field layout.
func (t ElementType) Known() bool {
	return int(t) < len(elementRules)
}

// StatusCode is the element status code in bits 3..0 of byte 0.
type StatusCode uint8

const (
	StatusUnsupported StatusCode = iota
	StatusOK
	StatusCritical
	StatusNonCritical
	StatusUnrecoverable
	StatusNotInstalled
	StatusUnknown
	StatusNotAvailable
)

var statusCodeNames = [16]string{
	"Unsupported", "OK", "Critical", "Non-critical",
	"Unrecoverable", "Not installed", "Unknown", "Not available",
	"reserved [8]", "reserved [9]", "reserved [10]", "reserved [11]",
	"reserved [12]", "reserved [13]", "reserved [14]", "reserved [15]",
}

func (c StatusCode) String() string {
	return statusCodeNames[c&0x0f]
}

// Common status bits of byte 0.
const (
	commonPredictedFailure uint32 = 0x40 << 24
	commonSwap             uint32 = 0x10 << 24
	commonStatusCode       uint32 = 0x0f << 24
	commonMask                    = commonPredictedFailure | commonSwap | commonStatusCode
)

// at places a byte mask at byte position i of a 4-byte record viewed as a
// big endian word.
func at(i int, m uint8) uint32 {
	return uint32(m) << (8 * (3 - i))
}

// bitField is a named, contiguous run of bits in a 4-byte record.
type bitField struct {
	name string
	mask uint32
}

func (f bitField) get(w uint32) uint32 {
	return (w & f.mask) >> bits.TrailingZeros32(f.mask)
}

func (f bitField) set(w, v uint32) uint32 {
	return (w &^ f.mask) | ((v << bits.TrailingZeros32(f.mask)) & f.mask)
}

// Field is one decoded value of an element status record.
type Field struct {
	Name  string
	Value uint32
}

// ElementStatus is a decoded 4-byte element status record.
type ElementStatus struct {
	Type             ElementType
	PredictedFailure bool
	Swap             bool
	Code             StatusCode
	// Fields holds the type specific values in layout order. Records of
	// an unknown type carry a single "raw" field with bytes 1..3.
	Fields []Field
	Raw    [4]byte
}

// UnmarshalElementStatus decodes a status record of element type t.
func UnmarshalElementStatus(t ElementType, b []byte) (*ElementStatus, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: element status needs 4 bytes, got %d", ErrTruncated, len(b))
	}
	s := &ElementStatus{Type: t}
	copy(s.Raw[:], b[:4])
	w := binary.BigEndian.Uint32(s.Raw[:])
	s.PredictedFailure = w&commonPredictedFailure != 0
	s.Swap = w&commonSwap != 0
	s.Code = StatusCode((w & commonStatusCode) >> 24)
	for _, f := range ruleFor(t).fields {
		s.Fields = append(s.Fields, Field{Name: f.name, Value: f.get(w)})
	}
	return s, nil
}

// MarshalBinary encodes the common status and the named fields back into
// a 4-byte record. Bits not owned by the type layout are zero.
func (s *ElementStatus) MarshalBinary() ([]byte, error) {
	var w uint32
	if s.PredictedFailure {
		w |= commonPredictedFailure
	}
	if s.Swap {
		w |= commonSwap
	}
	w |= uint32(s.Code&0x0f) << 24
	rule := ruleFor(s.Type)
	for _, fv := range s.Fields {
		f, ok := rule.field(fv.Name)
		if !ok {
			return nil, fmt.Errorf("element type %s has no field %q", s.Type, fv.Name)
		}
		w = f.set(w, fv.Value)
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, w)
	return b, nil
}

// Value returns a named field of the record.
func (s *ElementStatus) Value(name string) (uint32, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// Flag reports whether a named single-bit field is set.
func (s *ElementStatus) Flag(name string) bool {
	v, _ := s.Value(name)
	return v != 0
}

func (s *ElementStatus) v(name string) uint32 {
	v, _ := s.Value(name)
	return v
}

// OwnedBits returns the mask of record bits the layout of type t decodes.
func OwnedBits(t ElementType) [4]byte {
	w := commonMask
	for _, f := range ruleFor(t).fields {
		w |= f.mask
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], w)
	return b
}

// Derived values. Each returns false when the record type does not carry
// the quantity.

var fanSpeedNames = [8]string{
	"stopped", "at lowest speed", "at second lowest speed",
	"at third lowest speed", "at intermediate speed",
	"at third highest speed", "at second highest speed", "at highest speed",
}

// FanSpeedRPM returns the actual fan speed of a cooling element.
func (s *ElementStatus) FanSpeedRPM() (int, bool) {
	if s.Type != TypeCooling {
		return 0, false
	}
	return int(s.v("Actual speed")) * 10, true
}

// FanSpeedDescription returns the speed code name of a cooling element.
func (s *ElementStatus) FanSpeedDescription() (string, bool) {
	if s.Type != TypeCooling {
		return "", false
	}
	return fanSpeedNames[s.v("Speed code")&0x07], true
}

// TemperatureCelsius returns the reading of a temperature sensor. A raw
// value of zero is reserved and reported as not available.
func (s *ElementStatus) TemperatureCelsius() (int, bool) {
	if s.Type != TypeTemperature {
		return 0, false
	}
	raw := s.v("Temperature")
	if raw == 0 {
		return 0, false
	}
	return int(raw) - 20, true
}

// Volts returns the reading of a voltage sensor.
func (s *ElementStatus) Volts() (float64, bool) {
	if s.Type != TypeVoltageSensor {
		return 0, false
	}
	return float64(int16(s.v("Voltage"))) / 100.0, true
}

// Amps returns the reading of a current sensor.
func (s *ElementStatus) Amps() (float64, bool) {
	if s.Type != TypeCurrentSensor {
		return 0, false
	}
	return float64(int16(s.v("Current"))) / 100.0, true
}

var nvCacheUnits = [4]string{"Bytes", "KiB", "MiB", "GiB"}

// CacheSize returns the size and unit of a nonvolatile cache element.
func (s *ElementStatus) CacheSize() (int, string, bool) {
	if s.Type != TypeNonvolatileCache {
		return 0, "", false
	}
	return int(s.v("Cache size")), nvCacheUnits[s.v("Size multiplier")&0x03], true
}

// CacheSizeBytes returns the cache size scaled to bytes.
func (s *ElementStatus) CacheSizeBytes() (uint64, bool) {
	n, _, ok := s.CacheSize()
	if !ok {
		return 0, false
	}
	return uint64(n) << (10 * (s.v("Size multiplier") & 0x03)), true
}

// BatteryMinutes returns the remaining UPS battery time. Zero means
// discharged or unknown, 255 means 255 minutes or more.
func (s *ElementStatus) BatteryMinutes() (int, bool) {
	if s.Type != TypeUPS {
		return 0, false
	}
	return int(s.v("Battery status")), true
}

var invopTypeNames = [4]string{
	"SEND DIAGNOSTIC page code error", "SEND DIAGNOSTIC page format error",
	"Reserved", "Vendor specific error",
}

// ThresholdLevel is one of the four limits of a threshold record.
type ThresholdLevel struct {
	Value float64
	// Reserved marks the sentinel meaning reserved, vendor specific or
	// not applicable for the element type.
	Reserved bool
	Present  bool
}

// Threshold is a decoded 4-byte threshold record.
type Threshold struct {
	Type         ElementType
	Raw          [4]byte
	HighCritical ThresholdLevel
	HighWarning  ThresholdLevel
	LowWarning   ThresholdLevel
	LowCritical  ThresholdLevel
}

// HasThresholds reports whether type t defines threshold fields.
func HasThresholds(t ElementType) bool {
	switch t {
	case TypeTemperature, TypeUPS, TypeVoltageSensor, TypeCurrentSensor:
		return true
	}
	return false
}

// UnmarshalThreshold decodes a threshold record of element type t.
// Types without threshold fields keep only Raw.
func UnmarshalThreshold(t ElementType, b []byte) (*Threshold, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: threshold needs 4 bytes, got %d", ErrTruncated, len(b))
	}
	th := &Threshold{Type: t}
	copy(th.Raw[:], b[:4])
	r := th.Raw
	switch t {
	case TypeTemperature:
		lvl := func(v byte) ThresholdLevel {
			return ThresholdLevel{Value: float64(int(v) - 20), Reserved: v == 0, Present: true}
		}
		th.HighCritical, th.HighWarning = lvl(r[0]), lvl(r[1])
		th.LowWarning, th.LowCritical = lvl(r[2]), lvl(r[3])
	case TypeUPS:
		lvl := func(v byte) ThresholdLevel {
			return ThresholdLevel{Value: float64(v), Reserved: v == 0, Present: true}
		}
		th.LowWarning, th.LowCritical = lvl(r[2]), lvl(r[3])
	case TypeVoltageSensor:
		lvl := func(v byte) ThresholdLevel {
			return ThresholdLevel{Value: 0.5 * float64(v), Present: true}
		}
		th.HighCritical, th.HighWarning = lvl(r[0]), lvl(r[1])
		th.LowWarning, th.LowCritical = lvl(r[2]), lvl(r[3])
	case TypeCurrentSensor:
		lvl := func(v byte) ThresholdLevel {
			return ThresholdLevel{Value: 0.5 * float64(v), Present: true}
		}
		th.HighCritical, th.HighWarning = lvl(r[0]), lvl(r[1])
	}
	return th, nil
}
