package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sigreer/sesdiag/internal/config"
	"github.com/sigreer/sesdiag/internal/enclosure"
	"github.com/sigreer/sesdiag/internal/ses"
	"github.com/sigreer/sesdiag/internal/sgio"
)

func TestExitCode(t *testing.T) {
	var tests = []struct {
		desc string
		err  error
		code int
	}{
		{desc: "nil", err: nil, code: exitOK},
		{desc: "generic", err: errors.New("boom"), code: exitFailure},
		{desc: "usage", err: usageErr(errors.New("bad flag")), code: exitUsage},
		{desc: "malformed hex", err: fmt.Errorf("--data: %w", &ses.HexError{Pos: 3, Msg: "x"}), code: exitUsage},
		{desc: "payload too large", err: ses.ErrPayloadTooLarge, code: exitUsage},
		{desc: "unsupported control page", err: ses.ErrUnsupportedControlPage, code: exitUsage},
		{desc: "busy page", err: &ses.UnexpectedPageError{Want: 2, Got: ses.PageBusy, Byte1: 1}, code: exitRetryable},
		{desc: "generation", err: &ses.GenerationError{Page: 2, Reference: 1, Got: 2}, code: exitRetryable},
		{desc: "device busy", err: fmt.Errorf("receive: %w", sgio.ErrDeviceBusy), code: exitRetryable},
		{desc: "poll skipped", err: errPollSkipped, code: exitRetryable},
		{desc: "short status is a failure", err: &ses.UnexpectedPageError{Want: 2, Got: ses.PageShortStatus}, code: exitFailure},
	}

	for i, tt := range tests {
		if want, got := tt.code, exitCode(tt.err); want != got {
			t.Fatalf("[%02d] test %q, unexpected exit code: want %d, got %d",
				i, tt.desc, want, got)
		}
	}
}

func TestParseByte(t *testing.T) {
	var tests = []struct {
		in  string
		out uint8
		ok  bool
	}{
		{in: "0", out: 0, ok: true},
		{in: "10", out: 10, ok: true},
		{in: "0x1f", out: 0x1f, ok: true},
		{in: "0XA", out: 0x0a, ok: true},
		{in: "1fh", out: 0x1f, ok: true},
		{in: " 255 ", out: 255, ok: true},
		{in: "256", ok: false},
		{in: "zz", ok: false},
		{in: "", ok: false},
	}

	for i, tt := range tests {
		got, err := parseByte(tt.in)
		if tt.ok != (err == nil) {
			t.Fatalf("[%02d] test %q, unexpected error: %v", i, tt.in, err)
		}
		if err != nil {
			if exitCode(err) != exitUsage {
				t.Fatalf("[%02d] test %q, error not a usage error: %v", i, tt.in, err)
			}
			continue
		}
		if got != tt.out {
			t.Fatalf("[%02d] test %q, unexpected value: want 0x%x, got 0x%x", i, tt.in, tt.out, got)
		}
	}
}

func TestReadHexCapture(t *testing.T) {
	// Longer than one control page body, split over lines.
	var sb strings.Builder
	sb.WriteString("# captured page\n")
	for i := 0; i < 130; i++ {
		sb.WriteString("00 01 02 03 04 05 06 07\n")
	}
	b, err := readHexCapture(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 1040 {
		t.Fatalf("unexpected length: want 1040, got %d", len(b))
	}

	_, err = readHexCapture(strings.NewReader("01 02\n03 xx\n"))
	var he *ses.HexError
	if !errors.As(err, &he) {
		t.Fatalf("want *ses.HexError, got %v", err)
	}
	if he.Line != 2 {
		t.Fatalf("unexpected error line: want 2, got %d", he.Line)
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"page", "control", "list", "decode", "discover", "locate", "watch", "history", "version"} {
		c, _, err := rootCmd.Find([]string{name})
		if err != nil || c.Name() != name {
			t.Fatalf("command %q not registered: %v", name, err)
		}
	}
	if c, _, _ := rootCmd.Find([]string{"status"}); c.Name() != "page" {
		t.Fatalf("status alias resolves to %q", c.Name())
	}
}

func TestSetupLogging(t *testing.T) {
	var tests = []struct {
		level   string
		verbose int
		want    logrus.Level
	}{
		{level: "warn", verbose: 0, want: logrus.WarnLevel},
		{level: "warn", verbose: 1, want: logrus.InfoLevel},
		{level: "warn", verbose: 2, want: logrus.DebugLevel},
		{level: "warn", verbose: 5, want: logrus.TraceLevel},
		{level: "error", verbose: 1, want: logrus.WarnLevel},
		{level: "bogus", verbose: 0, want: logrus.WarnLevel},
	}

	for i, tt := range tests {
		setupLogging(config.Log{Level: tt.level, Format: "text"}, tt.verbose)
		if got := log.GetLevel(); got != tt.want {
			t.Fatalf("[%02d] test %q -v x%d, unexpected level: want %s, got %s",
				i, tt.level, tt.verbose, tt.want, got)
		}
	}

	setupLogging(config.Log{Level: "info", Format: "json"}, 0)
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("want JSON formatter, got %T", log.Formatter)
	}
}

func TestPrintSink(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	r := &enclosure.ChangeReport{
		DetectedAt: at,
		Changes: []enclosure.Change{
			{
				Target: enclosure.Target{Type: ses.TypeDevice, Group: 0, Index: 3},
				Before: &enclosure.ElementState{Status: "OK"},
				After:  &enclosure.ElementState{Status: "Critical", Code: uint8(ses.StatusCritical)},
			},
			{
				Target: enclosure.Target{Type: ses.TypeCooling, Group: 0, Index: 1},
				Before: &enclosure.ElementState{Status: "OK"},
			},
		},
	}

	var buf bytes.Buffer
	if err := (printSink{w: &buf}).Record(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "2026-03-04 05:06:07 ! ") || !strings.HasSuffix(lines[0], "OK -> Critical") {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "OK -> absent") || strings.Contains(lines[1], "!") {
		t.Fatalf("unexpected second line: %q", lines[1])
	}
}

func TestLocateResponse(t *testing.T) {
	info := &enclosure.LocateInfo{
		Device:     "/dev/sg3",
		Target:     enclosure.Target{Type: ses.TypeDevice, Group: 0, Index: 5},
		TypeName:   "Device",
		Slot:       5,
		Descriptor: "Bay 5",
		Status:     "OK",
	}
	resp := buildResponse(info, "timed", "off", "timeout", 1.5)
	if !resp.Success || resp.Slot == nil || *resp.Slot != 5 || resp.Descriptor != "Bay 5" || resp.StopReason != "timeout" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	fan := &enclosure.LocateInfo{Target: enclosure.Target{Type: ses.TypeCooling, Index: 1}}
	if resp := buildResponse(fan, "on", "on", "", 0); resp.Slot != nil || resp.Duration != 0 {
		t.Fatalf("unexpected response for fan: %+v", resp)
	}
	if got := describe(info); got != "slot 5 (Device 0/5) Bay 5" {
		t.Fatalf("unexpected description: %q", got)
	}
}
