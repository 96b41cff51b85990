package ses

import (
	"fmt"
	"strings"
)

// elementRule is the layout of one element type: the fields it owns and
// the lines used to print them.
type elementRule struct {
	fields []bitField
	lines  []statusLine
}

func (r *elementRule) field(name string) (bitField, bool) {
	for _, f := range r.fields {
		if f.name == name {
			return f, true
		}
	}
	return bitField{}, false
}

// statusLine prints a group of fields. Under the filter option the line is
// skipped when every bit in filter is clear; a zero filter always prints.
type statusLine struct {
	filter uint32
	text   func(s *ElementStatus) string
}

func (l statusLine) visible(s *ElementStatus, filter bool) bool {
	if !filter || l.filter == 0 {
		return true
	}
	return wordOf(s.Raw)&l.filter != 0
}

func wordOf(b [4]byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// flagLine prints "prefix" followed by "Name=value" pairs.
func flagLine(filter uint32, prefix string, names ...string) statusLine {
	return statusLine{filter: filter, text: func(s *ElementStatus) string {
		parts := make([]string, len(names))
		for i, n := range names {
			parts[i] = fmt.Sprintf("%s=%d", n, s.v(n))
		}
		return prefix + strings.Join(parts, ", ")
	}}
}

func always(text func(s *ElementStatus) string) statusLine {
	return statusLine{text: text}
}

func flag(name string, i int, m uint8) bitField {
	return bitField{name: name, mask: at(i, m)}
}

var ident = flag("Ident", 1, 0x80)

var rawRule = &elementRule{
	fields: []bitField{{name: "raw", mask: 0x00ffffff}},
	lines: []statusLine{always(func(s *ElementStatus) string {
		return fmt.Sprintf("Unknown element type, status in hex: %s", hexBytes(s.Raw[:]))
	})},
}

func ruleFor(t ElementType) *elementRule {
	if int(t) < len(elementRules) {
		return &elementRules[t]
	}
	return rawRule
}

// elementRules is indexed by element type code.
var elementRules = [...]elementRule{
	TypeUnspecified: {
		fields: []bitField{{name: "raw", mask: 0x00ffffff}},
		lines: []statusLine{always(func(s *ElementStatus) string {
			return "status in hex: " + hexBytes(s.Raw[:])
		})},
	},
	TypeDevice: {
		fields: []bitField{
			{name: "Slot address", mask: at(1, 0xff)},
			flag("App client bypassed A", 2, 0x80),
			flag("Do not remove", 2, 0x40),
			flag("Enc bypassed A", 2, 0x20),
			flag("Enc bypassed B", 2, 0x10),
			flag("Ready to insert", 2, 0x08),
			flag("RMV", 2, 0x04),
			flag("Ident", 2, 0x02),
			flag("Report", 2, 0x01),
			flag("App client bypassed B", 3, 0x80),
			flag("Fault sensed", 3, 0x40),
			flag("Fault requested", 3, 0x20),
			flag("Device off", 3, 0x10),
			flag("Bypassed A", 3, 0x08),
			flag("Bypassed B", 3, 0x04),
			flag("Device bypassed A", 3, 0x02),
			flag("Device bypassed B", 3, 0x01),
		},
		lines: []statusLine{
			always(func(s *ElementStatus) string {
				return fmt.Sprintf("Slot address: %d", s.v("Slot address"))
			}),
			flagLine(at(2, 0xe0), "", "App client bypassed A", "Do not remove", "Enc bypassed A"),
			flagLine(at(2, 0x1c), "", "Enc bypassed B", "Ready to insert", "RMV", "Ident"),
			flagLine(at(2, 0x01)|at(3, 0xe0), "", "Report", "App client bypassed B", "Fault sensed", "Fault requested"),
			flagLine(at(3, 0x1e), "", "Device off", "Bypassed A", "Bypassed B", "Device bypassed A"),
			flagLine(at(3, 0x01), "", "Device bypassed B"),
		},
	},
	TypePowerSupply: {
		fields: []bitField{
			ident,
			flag("DC overvoltage", 2, 0x08),
			flag("DC undervoltage", 2, 0x04),
			flag("DC overcurrent", 2, 0x02),
			flag("Fail", 3, 0x40),
			flag("Requested on", 3, 0x20),
			flag("Off", 3, 0x10),
			flag("Overtemperature fail", 3, 0x08),
			flag("Temperature warn", 3, 0x04),
			flag("AC fail", 3, 0x02),
			flag("DC fail", 3, 0x01),
		},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(2, 0x0e), "", "Ident", "DC overvoltage", "DC undervoltage", "DC overcurrent"),
			flagLine(at(3, 0x78), "", "Fail", "Requested on", "Off", "Overtemperature fail"),
			flagLine(at(3, 0x07), "", "Temperature warn", "AC fail", "DC fail"),
		},
	},
	TypeCooling: {
		fields: []bitField{
			ident,
			{name: "Actual speed", mask: at(1, 0x03) | at(2, 0xff)},
			flag("Fail", 3, 0x40),
			flag("Requested on", 3, 0x20),
			flag("Off", 3, 0x10),
			{name: "Speed code", mask: at(3, 0x07)},
		},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(3, 0x70), "", "Ident", "Fail", "Requested on", "Off"),
			always(func(s *ElementStatus) string {
				rpm, _ := s.FanSpeedRPM()
				desc, _ := s.FanSpeedDescription()
				return fmt.Sprintf("Actual speed=%d rpm, Fan %s", rpm, desc)
			}),
		},
	},
	TypeTemperature: {
		fields: []bitField{
			ident,
			{name: "Temperature", mask: at(2, 0xff)},
			flag("OT Failure", 3, 0x08),
			flag("OT warning", 3, 0x04),
			flag("UT failure", 3, 0x02),
			flag("UT warning", 3, 0x01),
		},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(3, 0x0f), "", "Ident", "OT Failure", "OT warning", "UT failure", "UT warning"),
			always(func(s *ElementStatus) string {
				if c, ok := s.TemperatureCelsius(); ok {
					return fmt.Sprintf("Temperature=%d C", c)
				}
				return "Temperature: <reserved>"
			}),
		},
	},
	TypeDoorLock: {
		fields: []bitField{ident, flag("Unlock", 3, 0x01)},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(3, 0x01), "", "Ident", "Unlock"),
		},
	},
	TypeAudibleAlarm: {
		fields: []bitField{
			ident,
			flag("Request mute", 3, 0x80),
			flag("Mute", 3, 0x40),
			flag("Remind", 3, 0x10),
			flag("Info", 3, 0x08),
			flag("Non-crit", 3, 0x04),
			flag("Crit", 3, 0x02),
			flag("Unrecov", 3, 0x01),
		},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(3, 0xd0), "", "Ident", "Request mute", "Mute", "Remind"),
			flagLine(at(3, 0x0f), "Tone indicator: ", "Info", "Non-crit", "Crit", "Unrecov"),
		},
	},
	TypeESCElectronics: {
		fields: []bitField{ident, flag("Report", 2, 0x01)},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(2, 0x01), "", "Ident", "Report"),
		},
	},
	TypeSCCElectronics: {
		fields: []bitField{ident, flag("Report", 2, 0x01)},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(2, 0x01), "", "Ident", "Report"),
		},
	},
	TypeNonvolatileCache: {
		fields: []bitField{
			ident,
			{name: "Size multiplier", mask: at(1, 0x03)},
			{name: "Cache size", mask: at(2, 0xff) | at(3, 0xff)},
		},
		lines: []statusLine{
			always(func(s *ElementStatus) string {
				return fmt.Sprintf("Ident=%d, Size multiplier=%d, Non volatile cache size=0x%x",
					s.v("Ident"), s.v("Size multiplier"), s.v("Cache size"))
			}),
			always(func(s *ElementStatus) string {
				n, unit, _ := s.CacheSize()
				return fmt.Sprintf("Hence non volatile cache size: %d %s", n, unit)
			}),
		},
	},
	TypeInvalidOperation: {
		fields: []bitField{
			{name: "Invop type", mask: at(1, 0xc0)},
			{name: "Invop specific", mask: at(1, 0x3f)},
			{name: "Byte offset", mask: at(2, 0xff) | at(3, 0xff)},
		},
		lines: []statusLine{
			always(func(s *ElementStatus) string {
				t := s.v("Invop type")
				return fmt.Sprintf("Invop type=%d   %s", t, invopTypeNames[t&0x03])
			}),
			always(func(s *ElementStatus) string {
				switch s.v("Invop type") {
				case 0:
					return fmt.Sprintf("Page not supported=%d", s.v("Invop specific")&0x01)
				case 1:
					return fmt.Sprintf("Byte offset=%d, bit number=%d",
						s.v("Byte offset"), s.v("Invop specific")&0x07)
				}
				return "last 3 bytes (hex): " + hexBytes(s.Raw[1:])
			}),
		},
	},
	TypeUPS: {
		fields: []bitField{
			{name: "Battery status", mask: at(1, 0xff)},
			flag("AC low", 2, 0x80),
			flag("AC high", 2, 0x40),
			flag("AC qual", 2, 0x20),
			flag("AC fail", 2, 0x10),
			flag("DC fail", 2, 0x08),
			flag("UPS fail", 2, 0x04),
			flag("Warn", 2, 0x02),
			flag("Intf fail", 2, 0x01),
			flag("Ident", 3, 0x80),
			flag("Batt fail", 3, 0x02),
			flag("BPF", 3, 0x01),
		},
		lines: []statusLine{
			always(func(s *ElementStatus) string {
				switch m, _ := s.BatteryMinutes(); m {
				case 0:
					return "Battery status: discharged or unknown"
				case 255:
					return "Battery status: 255 or more minutes remaining"
				default:
					return fmt.Sprintf("Battery status: %d minutes remaining", m)
				}
			}),
			flagLine(at(2, 0xf8), "", "AC low", "AC high", "AC qual", "AC fail", "DC fail"),
			flagLine(at(2, 0x07)|at(3, 0x83), "", "UPS fail", "Warn", "Intf fail", "Ident", "Batt fail", "BPF"),
		},
	},
	TypeDisplay: {
		fields: []bitField{ident},
		lines:  []statusLine{flagLine(at(1, 0x80), "", "Ident")},
	},
	TypeKeyPad: {
		fields: []bitField{ident},
		lines:  []statusLine{flagLine(at(1, 0x80), "", "Ident")},
	},
	TypeEnclosure: {
		fields: []bitField{
			ident,
			flag("Failure indication", 2, 0x02),
			flag("Warning indication", 2, 0x01),
			flag("Failure requested", 3, 0x02),
			flag("Warning requested", 3, 0x01),
		},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(2, 0x03), "", "Ident", "Failure indication", "Warning indication"),
			flagLine(at(3, 0x03), "", "Failure requested", "Warning requested"),
		},
	},
	TypeSCSIPort: {
		fields: []bitField{
			ident,
			flag("Report", 2, 0x01),
			flag("Disabled", 3, 0x10),
			flag("Loss of link", 3, 0x02),
			flag("Xmit fail", 3, 0x01),
		},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(2, 0x01)|at(3, 0x13), "", "Ident", "Report", "Disabled", "Loss of link", "Xmit fail"),
		},
	},
	TypeLanguage: {
		fields: []bitField{
			ident,
			{name: "Language code", mask: at(2, 0xff) | at(3, 0xff)},
		},
		lines: []statusLine{
			always(func(s *ElementStatus) string {
				return fmt.Sprintf("Ident=%d, Language code: %s", s.v("Ident"), printable(s.Raw[2:4]))
			}),
		},
	},
	TypeCommunicationPort: {
		fields: []bitField{ident, flag("Disabled", 3, 0x01)},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(3, 0x01), "", "Ident", "Disabled"),
		},
	},
	TypeVoltageSensor: {
		fields: []bitField{
			ident,
			flag("Warn Over", 1, 0x08),
			flag("Warn Under", 1, 0x04),
			flag("Crit Over", 1, 0x02),
			flag("Crit Under", 1, 0x01),
			{name: "Voltage", mask: at(2, 0xff) | at(3, 0xff)},
		},
		lines: []statusLine{
			flagLine(at(1, 0x8f), "", "Ident", "Warn Over", "Warn Under", "Crit Over", "Crit Under"),
			always(func(s *ElementStatus) string {
				v, _ := s.Volts()
				return fmt.Sprintf("Voltage: %.2f volts", v)
			}),
		},
	},
	TypeCurrentSensor: {
		fields: []bitField{
			ident,
			flag("Warn Over", 1, 0x08),
			flag("Crit Over", 1, 0x02),
			{name: "Current", mask: at(2, 0xff) | at(3, 0xff)},
		},
		lines: []statusLine{
			flagLine(at(1, 0x8a), "", "Ident", "Warn Over", "Crit Over"),
			always(func(s *ElementStatus) string {
				a, _ := s.Amps()
				return fmt.Sprintf("Current: %.2f amps", a)
			}),
		},
	},
	TypeSCSITargetPort: {
		fields: []bitField{ident, flag("Report", 2, 0x01), flag("Enabled", 3, 0x01)},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(2, 0x01)|at(3, 0x01), "", "Ident", "Report", "Enabled"),
		},
	},
	TypeSCSIInitiatorPort: {
		fields: []bitField{ident, flag("Report", 2, 0x01), flag("Enabled", 3, 0x01)},
		lines: []statusLine{
			flagLine(at(1, 0x80)|at(2, 0x01)|at(3, 0x01), "", "Ident", "Report", "Enabled"),
		},
	},
	TypeSimpleSubenclosure: {
		fields: []bitField{
			ident,
			{name: "Short enclosure status", mask: at(3, 0xff)},
		},
		lines: []statusLine{
			always(func(s *ElementStatus) string {
				return fmt.Sprintf("Ident=%d, Short enclosure status: 0x%x",
					s.v("Ident"), s.v("Short enclosure status"))
			}),
		},
	},
	TypeArrayDevice: {
		fields: []bitField{
			flag("OK", 1, 0x80),
			flag("Reserved device", 1, 0x40),
			flag("Hot spare", 1, 0x20),
			flag("Cons check", 1, 0x10),
			flag("In crit array", 1, 0x08),
			flag("In failed array", 1, 0x04),
			flag("Rebuild/remap", 1, 0x02),
			flag("R/R abort", 1, 0x01),
			flag("App client bypass A", 2, 0x80),
			flag("Don't remove", 2, 0x40),
			flag("Enc bypass A", 2, 0x20),
			flag("Enc bypass B", 2, 0x10),
			flag("Ready to insert", 2, 0x08),
			flag("RMV", 2, 0x04),
			flag("Ident", 2, 0x02),
			flag("Report", 2, 0x01),
			flag("App client bypass B", 3, 0x80),
			flag("Fault sensed", 3, 0x40),
			flag("Fault reqstd", 3, 0x20),
			flag("Device off", 3, 0x10),
			flag("Bypassed A", 3, 0x08),
			flag("Bypassed B", 3, 0x04),
			flag("Dev bypassed A", 3, 0x02),
			flag("Dev bypassed B", 3, 0x01),
		},
		lines: []statusLine{
			flagLine(at(1, 0xf0), "", "OK", "Reserved device", "Hot spare", "Cons check"),
			flagLine(at(1, 0x0f), "", "In crit array", "In failed array", "Rebuild/remap", "R/R abort"),
			flagLine(at(2, 0xf0), "", "App client bypass A", "Don't remove", "Enc bypass A", "Enc bypass B"),
			flagLine(at(2, 0x0f), "", "Ready to insert", "RMV", "Ident", "Report"),
			flagLine(at(3, 0xf0), "", "App client bypass B", "Fault sensed", "Fault reqstd", "Device off"),
			flagLine(at(3, 0x0f), "", "Bypassed A", "Bypassed B", "Dev bypassed A", "Dev bypassed B"),
		},
	},
}

// StatusLines renders the type specific lines of a record, honoring the
// filter option.
func (s *ElementStatus) StatusLines(filter bool) []string {
	var out []string
	for _, l := range ruleFor(s.Type).lines {
		if l.visible(s, filter) {
			out = append(out, l.text(s))
		}
	}
	return out
}

// Summary is the common status line shared by every element type.
func (s *ElementStatus) Summary() string {
	return fmt.Sprintf("Predicted failure=%d, swap=%d, status: %s",
		b2i(s.PredictedFailure), b2i(s.Swap), s.Code)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
