package ses

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestElementStatusRoundTrip(t *testing.T) {
	patterns := [][4]byte{
		{0xff, 0xff, 0xff, 0xff},
		{0x41, 0x80, 0x12, 0x03},
		{0x13, 0x0f, 0xf0, 0xaa},
		{0x00, 0x00, 0x00, 0x00},
	}
	for typ := ElementType(0); typ <= TypeArrayDevice; typ++ {
		mask := OwnedBits(typ)
		for k, p := range patterns {
			s, err := UnmarshalElementStatus(typ, p[:])
			if err != nil {
				t.Fatalf("[%02d] type %s, unexpected error: %v", k, typ, err)
			}
			got, err := s.MarshalBinary()
			if err != nil {
				t.Fatalf("[%02d] type %s, marshal: %v", k, typ, err)
			}
			var want [4]byte
			for i := range want {
				want[i] = p[i] & mask[i]
			}
			if !bytes.Equal(got, want[:]) {
				t.Fatalf("[%02d] type %s, unexpected bytes: %x != %x", k, typ, want, got)
			}
		}
	}
}

func TestUnmarshalElementStatusShort(t *testing.T) {
	if _, err := UnmarshalElementStatus(TypeDevice, []byte{1, 2, 3}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestMarshalUnknownField(t *testing.T) {
	s := &ElementStatus{Type: TypeDoorLock, Fields: []Field{{Name: "Slot address", Value: 1}}}
	if _, err := s.MarshalBinary(); err == nil {
		t.Fatal("expected error for field outside type layout")
	}
}

func TestCoolingElement(t *testing.T) {
	s, err := UnmarshalElementStatus(TypeCooling, []byte{0x80, 0x01, 0x2c, 0x03})
	if err != nil {
		t.Fatal(err)
	}
	if s.Flag("Ident") || s.Flag("Fail") || s.Flag("Requested on") || s.Flag("Off") {
		t.Fatalf("unexpected flags: %+v", s.Fields)
	}
	if rpm, ok := s.FanSpeedRPM(); !ok || rpm != 3000 {
		t.Fatalf("unexpected speed: %d", rpm)
	}
	if d, _ := s.FanSpeedDescription(); d != "at third lowest speed" {
		t.Fatalf("unexpected speed code: %q", d)
	}
	if s.Code != StatusUnsupported || s.PredictedFailure {
		t.Fatalf("unexpected common status: %+v", s)
	}

	lines := s.StatusLines(false)
	if len(lines) != 2 || lines[1] != "Actual speed=3000 rpm, Fan at third lowest speed" {
		t.Fatalf("unexpected lines: %q", lines)
	}
	// Under the filter the all-clear flag line is dropped.
	if lines := s.StatusLines(true); len(lines) != 1 {
		t.Fatalf("unexpected filtered lines: %q", lines)
	}
}

func TestDerivedValues(t *testing.T) {
	tests := []struct {
		desc  string
		typ   ElementType
		rec   []byte
		check func(s *ElementStatus) bool
	}{
		{
			desc: "temperature 25 C",
			typ:  TypeTemperature,
			rec:  []byte{0x01, 0x00, 45, 0x00},
			check: func(s *ElementStatus) bool {
				c, ok := s.TemperatureCelsius()
				return ok && c == 25 && s.Code == StatusOK
			},
		},
		{
			desc: "temperature reserved",
			typ:  TypeTemperature,
			rec:  []byte{0x01, 0x00, 0x00, 0x00},
			check: func(s *ElementStatus) bool {
				_, ok := s.TemperatureCelsius()
				return !ok && s.StatusLines(false)[1] == "Temperature: <reserved>"
			},
		},
		{
			desc: "negative voltage",
			typ:  TypeVoltageSensor,
			rec:  []byte{0x01, 0x00, 0xfb, 0x2e},
			check: func(s *ElementStatus) bool {
				v, ok := s.Volts()
				return ok && v == -12.34
			},
		},
		{
			desc: "current",
			typ:  TypeCurrentSensor,
			rec:  []byte{0x01, 0x0a, 0x01, 0xf4},
			check: func(s *ElementStatus) bool {
				a, ok := s.Amps()
				return ok && a == 5 && s.Flag("Warn Over") && s.Flag("Crit Over")
			},
		},
		{
			desc: "cache in MiB",
			typ:  TypeNonvolatileCache,
			rec:  []byte{0x01, 0x02, 0x01, 0x00},
			check: func(s *ElementStatus) bool {
				n, unit, ok := s.CacheSize()
				b, _ := s.CacheSizeBytes()
				return ok && n == 256 && unit == "MiB" && b == 256<<20
			},
		},
		{
			desc: "ups battery",
			typ:  TypeUPS,
			rec:  []byte{0x01, 0xff, 0x00, 0x80},
			check: func(s *ElementStatus) bool {
				m, ok := s.BatteryMinutes()
				return ok && m == 255 && s.Flag("Ident") &&
					s.StatusLines(false)[0] == "Battery status: 255 or more minutes remaining"
			},
		},
		{
			desc: "device slot and fault",
			typ:  TypeDevice,
			rec:  []byte{0x42, 0x07, 0x02, 0x20},
			check: func(s *ElementStatus) bool {
				v, _ := s.Value("Slot address")
				return v == 7 && s.Flag("Ident") && s.Flag("Fault requested") &&
					s.PredictedFailure && s.Code == StatusCritical
			},
		},
		{
			desc: "derived values only for their own type",
			typ:  TypeDevice,
			rec:  []byte{0x01, 0x00, 0x00, 0x00},
			check: func(s *ElementStatus) bool {
				_, a := s.FanSpeedRPM()
				_, b := s.TemperatureCelsius()
				_, c := s.Volts()
				_, d := s.BatteryMinutes()
				return !a && !b && !c && !d
			},
		},
		{
			desc: "unknown type keeps raw bytes",
			typ:  ElementType(0x80),
			rec:  []byte{0x05, 0xde, 0xad, 0x01},
			check: func(s *ElementStatus) bool {
				v, _ := s.Value("raw")
				return v == 0xdead01 && s.Code == StatusNotInstalled &&
					s.StatusLines(true)[0] == "Unknown element type, status in hex: 05 de ad 01"
			},
		},
	}

	for i, tt := range tests {
		s, err := UnmarshalElementStatus(tt.typ, tt.rec)
		if err != nil {
			t.Fatalf("[%02d] test %q, unexpected error: %v", i, tt.desc, err)
		}
		if !tt.check(s) {
			t.Fatalf("[%02d] test %q, unexpected decode: %+v", i, tt.desc, s)
		}
	}
}

func TestStatusCodeString(t *testing.T) {
	if StatusNonCritical.String() != "Non-critical" || StatusCode(9).String() != "reserved [9]" {
		t.Fatal("unexpected status code names")
	}
	if ElementType(0x30).String() != "[0x30]" || TypeArrayDevice.String() != "Array device" {
		t.Fatal("unexpected element type names")
	}
}

func TestUnmarshalThreshold(t *testing.T) {
	tests := []struct {
		desc string
		typ  ElementType
		rec  []byte
		want string
	}{
		{
			desc: "temperature",
			typ:  TypeTemperature,
			rec:  []byte{80, 70, 0, 25},
			want: "high critical=60 C, high warning=50 C\n        low warning=<res>, low critical=5 C",
		},
		{
			desc: "ups",
			typ:  TypeUPS,
			rec:  []byte{0, 0, 10, 0},
			want: "low warning=10, low critical=<vendor> (in minutes)",
		},
		{
			desc: "voltage",
			typ:  TypeVoltageSensor,
			rec:  []byte{20, 10, 9, 19},
			want: "high critical=10.0 %, high warning=5.0 %  (above nominal voltage)\n        low warning=4.5 %, low critical=9.5 %  (below nominal voltage)",
		},
		{
			desc: "current",
			typ:  TypeCurrentSensor,
			rec:  []byte{4, 3, 0, 0},
			want: "high critical=2.0 %, high warning=1.5 %  (above nominal current)",
		},
		{
			desc: "no thresholds",
			typ:  TypeDevice,
			rec:  []byte{1, 2, 3, 4},
			want: "threshold in hex: 01 02 03 04",
		},
	}

	for i, tt := range tests {
		th, err := UnmarshalThreshold(tt.typ, tt.rec)
		if err != nil {
			t.Fatalf("[%02d] test %q, unexpected error: %v", i, tt.desc, err)
		}
		var sb strings.Builder
		renderThreshold(&printer{w: &sb}, th, ModeText)
		if got := strings.TrimSpace(sb.String()); got != tt.want {
			t.Fatalf("[%02d] test %q, unexpected output:\n%s\nwant:\n%s", i, tt.desc, got, tt.want)
		}
	}

	if _, err := UnmarshalThreshold(TypeTemperature, []byte{1}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
