package ses

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		desc string
		in   string
		want []byte
		pos  int
	}{
		{desc: "empty", in: ""},
		{desc: "values", in: "1,2,ff,0A", want: []byte{0x01, 0x02, 0xff, 0x0a}},
		{desc: "leading zeros", in: "00ff", want: []byte{0xff}},
		{desc: "bad character", in: "1,2,x", pos: 5},
		{desc: "space not allowed", in: "1, 2", pos: 3},
		{desc: "value too large", in: "1,100", pos: 3},
		{desc: "empty value", in: "1,,2", pos: 3},
		{desc: "too many values", in: strings.Repeat("0,", MaxControlPayload) + "0", pos: 2*MaxControlPayload + 1},
	}

	for i, tt := range tests {
		got, err := ParseHex(tt.in)
		if tt.pos > 0 {
			var he *HexError
			if !errors.As(err, &he) || !errors.Is(err, ErrMalformedHex) {
				t.Fatalf("[%02d] test %q, expected HexError, got %v", i, tt.desc, err)
			}
			if he.Pos != tt.pos {
				t.Fatalf("[%02d] test %q, unexpected position: %d != %d", i, tt.desc, tt.pos, he.Pos)
			}
			continue
		}
		if err != nil {
			t.Fatalf("[%02d] test %q, unexpected error: %v", i, tt.desc, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Fatalf("[%02d] test %q, unexpected bytes: %x != %x", i, tt.desc, tt.want, got)
		}
	}
}

func TestReadHex(t *testing.T) {
	tests := []struct {
		desc string
		in   string
		want []byte
		line int
		pos  int
	}{
		{
			desc: "comments blank lines and separators",
			in:   "# enclosure control\n\n  02 00,00\t04\n aa bb cc dd\n",
			want: []byte{0x02, 0x00, 0x00, 0x04, 0xaa, 0xbb, 0xcc, 0xdd},
		},
		{
			desc: "crlf",
			in:   "01 02\r\n03\r\n",
			want: []byte{1, 2, 3},
		},
		{desc: "syntax error", in: "01\n02 zz\n", line: 2, pos: 4},
		{desc: "value too large", in: "01 1ff\n", line: 1, pos: 4},
		{desc: "indented value too large", in: "  aa\n   bb 100\n", line: 2, pos: 7},
		{desc: "indented syntax error", in: "\t 01 g2\n", line: 1, pos: 6},
		{desc: "value after separators", in: "01,, 02 ,3ff\n", line: 1, pos: 10},
		{
			desc: "too many values",
			in:   strings.Repeat("00 ", MaxControlPayload) + "\n  00\n",
			line: 2,
			pos:  3,
		},
	}

	for i, tt := range tests {
		got, err := ReadHex(strings.NewReader(tt.in))
		if tt.line > 0 {
			var he *HexError
			if !errors.As(err, &he) || he.Line != tt.line {
				t.Fatalf("[%02d] test %q, expected error on line %d, got %v", i, tt.desc, tt.line, err)
			}
			if he.Pos != tt.pos {
				t.Fatalf("[%02d] test %q, unexpected column: %d != %d", i, tt.desc, tt.pos, he.Pos)
			}
			continue
		}
		if err != nil {
			t.Fatalf("[%02d] test %q, unexpected error: %v", i, tt.desc, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Fatalf("[%02d] test %q, unexpected bytes: %x != %x", i, tt.desc, tt.want, got)
		}
	}
}

func TestRawOutputReadsBack(t *testing.T) {
	in := make([]byte, 40)
	for i := range in {
		in[i] = byte(i * 7)
	}
	var buf bytes.Buffer
	if err := DumpRaw(&buf, in); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 3 {
		t.Fatalf("expected 3 lines, got %d", lines)
	}
	out, err := ReadHex(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("raw output did not read back: %x != %x", in, out)
	}
}

func TestDumpHex(t *testing.T) {
	var sb strings.Builder
	if err := DumpHex(&sb, []byte("ABC\x00"), "  "); err != nil {
		t.Fatal(err)
	}
	want := "  00     41 42 43 00                                      ABC.\n"
	if sb.String() != want {
		t.Fatalf("unexpected dump:\n%q\n%q", sb.String(), want)
	}
}

func TestDumpWriteError(t *testing.T) {
	b := make([]byte, 40)
	if err := DumpHex(failingWriter{}, b, ""); err == nil || err.Error() != "closed" {
		t.Fatalf("DumpHex: want writer error, got %v", err)
	}
	if err := DumpRaw(failingWriter{}, b); err == nil || err.Error() != "closed" {
		t.Fatalf("DumpRaw: want writer error, got %v", err)
	}
}
