package ses

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// HexError reports the position of a malformed hex value. Line is zero for
// command line input.
type HexError struct {
	Line int
	Pos  int
	Msg  string
}

func (e *HexError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d, pos %d: %s", ErrMalformedHex, e.Line, e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s: pos %d: %s", ErrMalformedHex, e.Pos, e.Msg)
}

func (e *HexError) Unwrap() error { return ErrMalformedHex }

const hexDigits = "0123456789abcdefABCDEF"

// ParseHex decodes a comma separated list of hex byte values such as
// "1,2,ff". At most MaxControlPayload values are accepted.
func ParseHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if i := strings.IndexFunc(s, func(r rune) bool {
		return r != ',' && !strings.ContainsRune(hexDigits, r)
	}); i >= 0 {
		return nil, &HexError{Pos: i + 1, Msg: "only hex digits and commas allowed"}
	}
	var out []byte
	pos := 1
	for _, tok := range strings.Split(s, ",") {
		v, err := parseHexByte(tok)
		if err != nil {
			return nil, &HexError{Pos: pos, Msg: err.Error()}
		}
		if len(out) >= MaxControlPayload {
			return nil, &HexError{Pos: pos, Msg: fmt.Sprintf("more than %d values", MaxControlPayload)}
		}
		out = append(out, v)
		pos += len(tok) + 1
	}
	return out, nil
}

// ReadHex decodes hex byte values from r. Values are separated by spaces,
// tabs or commas. Empty lines and lines starting with '#' are skipped.
func ReadHex(r io.Reader) ([]byte, error) {
	var out []byte
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		trimmed := strings.TrimLeft(text, " \t")
		if trimmed == "" || trimmed[0] == '#' {
			continue
		}
		if i := strings.IndexFunc(text, func(r rune) bool {
			return !strings.ContainsRune(hexDigits+" ,\t\r", r)
		}); i >= 0 {
			return nil, &HexError{Line: line, Pos: i + 1, Msg: "syntax error"}
		}
		// Pos is the 1-based column where the offending value starts.
		for start := 0; start < len(text); {
			if isHexSep(text[start]) {
				start++
				continue
			}
			end := start
			for end < len(text) && !isHexSep(text[end]) {
				end++
			}
			v, err := parseHexByte(text[start:end])
			if err != nil {
				return nil, &HexError{Line: line, Pos: start + 1, Msg: err.Error()}
			}
			if len(out) >= MaxControlPayload {
				return nil, &HexError{Line: line, Pos: start + 1, Msg: fmt.Sprintf("more than %d values", MaxControlPayload)}
			}
			out = append(out, v)
			start = end
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read hex input: %w", err)
	}
	return out, nil
}

func isHexSep(c byte) bool {
	return c == ' ' || c == ',' || c == '\t' || c == '\r'
}

func parseHexByte(tok string) (byte, error) {
	if tok == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseUint(tok, 16, 32)
	if err != nil || v > 0xff {
		return 0, fmt.Errorf("value %q exceeds 0xff", tok)
	}
	return byte(v), nil
}

// hexBytes formats b as space separated hex pairs.
func hexBytes(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}

// printable replaces non printable ASCII with '.'.
func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= ' ' && c <= '~' {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

// DumpHex writes b as offset, hex and ASCII columns, 16 bytes per line. It
// returns the first write error.
func DumpHex(w io.Writer, b []byte, indent string) error {
	for off := 0; off < len(b); off += 16 {
		end := off + 16
		if end > len(b) {
			end = len(b)
		}
		line := b[off:end]
		if _, err := fmt.Fprintf(w, "%s%02x     %-47s  %s\n", indent, off, hexBytes(line), printable(line)); err != nil {
			return err
		}
	}
	return nil
}

// DumpRaw writes b as bare hex pairs, 16 per line, in the form ReadHex
// accepts. It returns the first write error.
func DumpRaw(w io.Writer, b []byte) error {
	for off := 0; off < len(b); off += 16 {
		end := off + 16
		if end > len(b) {
			end = len(b)
		}
		if _, err := fmt.Fprintln(w, hexBytes(b[off:end])); err != nil {
			return err
		}
	}
	return nil
}
