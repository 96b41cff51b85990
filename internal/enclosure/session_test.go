package enclosure

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/sigreer/sesdiag/internal/cache"
	"github.com/sigreer/sesdiag/internal/ses"
)

// memTransport serves fixed pages and records control pages.
type memTransport struct {
	mu    sync.Mutex
	pages map[uint8][]byte
	errs  map[uint8]error
	reads map[uint8]int
	sent  [][]byte
}

func newMemTransport() *memTransport {
	return &memTransport{pages: map[uint8][]byte{}, errs: map[uint8]error{}, reads: map[uint8]int{}}
}

func (m *memTransport) ReceiveDiagnostic(_ context.Context, code uint8, maxLen int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[code]++
	if err := m.errs[code]; err != nil {
		return nil, err
	}
	b, ok := m.pages[code]
	if !ok {
		return nil, errors.New("page not supported")
	}
	if len(b) > maxLen {
		b = b[:maxLen]
	}
	return append([]byte(nil), b...), nil
}

func (m *memTransport) SendDiagnostic(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, append([]byte(nil), payload...))
	return nil
}

func (m *memTransport) set(code uint8, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[code] = b
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func page(code, byte1 uint8, gen uint32, body ...[]byte) []byte {
	b := []byte{code, byte1, 0, 0, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(b[4:8], gen)
	for _, r := range body {
		b = append(b, r...)
	}
	binary.BigEndian.PutUint16(b[2:4], uint16(len(b)-4))
	return b
}

// configPage describes two device slots and one fan.
func configPage(gen uint32) []byte {
	sub := make([]byte, 40)
	sub[0], sub[2], sub[3] = 0x11, 2, 36
	copy(sub[4:12], []byte{0x50, 0x03, 0x04, 0x80, 0x00, 0x00, 0x00, 0x7f})
	copy(sub[12:20], "ACME    ")
	copy(sub[20:36], "JBOD            ")
	copy(sub[36:40], "0001")
	return page(ses.PageConfiguration, 0, gen, sub,
		[]byte{byte(ses.TypeDevice), 2, 0, 0},
		[]byte{byte(ses.TypeCooling), 1, 0, 0},
	)
}

func statusPage(gen uint32, disk1 []byte) []byte {
	return page(ses.PageEnclosureStatus, 0, gen,
		[]byte{0x01, 0, 0, 0},
		[]byte{0x01, 0x00, 0x00, 0x00},
		disk1,
		[]byte{0x01, 0, 0, 0},
		[]byte{0x01, 0x00, 0x64, 0x02},
	)
}

func descriptorPage(gen uint32) []byte {
	d := func(s string) []byte { return append([]byte{0, 0, 0, byte(len(s))}, s...) }
	return page(ses.PageElementDescriptor, 0, gen, d(""), d("Bay 0"), d("Bay 1"), d(""), d("Fan 0"))
}

func newTestSession(t *testing.T) (*Session, *memTransport) {
	t.Helper()
	m := newMemTransport()
	m.set(ses.PageConfiguration, configPage(1))
	m.set(ses.PageEnclosureStatus, statusPage(1, []byte{0x01, 0x05, 0x00, 0x00}))
	m.set(ses.PageElementDescriptor, descriptorPage(1))
	s := NewSession(m, Options{Key: "/dev/sg9", Cache: cache.New(), Log: quietLogger()})
	return s, m
}

func TestSessionHeadersCached(t *testing.T) {
	s, m := newTestSession(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		hm, err := s.Headers(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if hm.Generation != 1 || len(hm.Headers) != 2 {
			t.Fatalf("unexpected headers: %+v", hm)
		}
	}
	if m.reads[ses.PageConfiguration] != 1 {
		t.Fatalf("expected one configuration read, got %d", m.reads[ses.PageConfiguration])
	}

	s.InvalidateHeaders()
	if _, err := s.Headers(ctx); err != nil {
		t.Fatal(err)
	}
	if m.reads[ses.PageConfiguration] != 2 {
		t.Fatalf("expected re-read after invalidation, got %d", m.reads[ses.PageConfiguration])
	}
}

func TestSessionGenerationChangeDropsLayout(t *testing.T) {
	s, m := newTestSession(t)
	ctx := context.Background()

	if _, err := s.Status(ctx); err != nil {
		t.Fatal(err)
	}

	// The enclosure reconfigures: both pages move to generation 2.
	m.set(ses.PageConfiguration, configPage(2))
	m.set(ses.PageEnclosureStatus, statusPage(2, []byte{0x01, 0x05, 0x00, 0x00}))

	var buf bytes.Buffer
	err := s.Decode(ctx, &buf, ses.PageEnclosureStatus, ses.ModeText, false)
	if !errors.Is(err, ses.ErrGenerationMismatch) {
		t.Fatalf("expected generation mismatch, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got:\n%s", buf.String())
	}

	buf.Reset()
	if err := s.Decode(ctx, &buf, ses.PageEnclosureStatus, ses.ModeText, false); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if !strings.Contains(buf.String(), "generation code: 0x2") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestSessionDecodeRawSkipsConfiguration(t *testing.T) {
	s, m := newTestSession(t)
	var buf bytes.Buffer
	if err := s.Decode(context.Background(), &buf, ses.PageEnclosureStatus, ses.ModeRaw, false); err != nil {
		t.Fatal(err)
	}
	if m.reads[ses.PageConfiguration] != 0 {
		t.Fatal("raw mode should not read the configuration page")
	}
	if !strings.HasPrefix(buf.String(), "00 00 00 01 01 00 00 00") {
		t.Fatalf("unexpected raw output: %q", buf.String())
	}
}

func TestSessionSend(t *testing.T) {
	s, m := newTestSession(t)
	ctx := context.Background()

	if err := s.Send(ctx, ses.PageString, 0, []byte{0xaa}); err != nil {
		t.Fatal(err)
	}
	if len(m.sent) != 1 || !bytes.Equal(m.sent[0], []byte{0x04, 0, 0, 1, 0xaa}) {
		t.Fatalf("unexpected sent pages: %x", m.sent)
	}
	if err := s.Send(ctx, ses.PageConfiguration, 0, nil); !errors.Is(err, ses.ErrUnsupportedControlPage) {
		t.Fatalf("expected unsupported page, got %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatal("rejected page was sent")
	}
}

func TestSessionPageError(t *testing.T) {
	s, m := newTestSession(t)
	m.errs[ses.PageConfiguration] = errors.New("io error")
	if _, err := s.Status(context.Background()); err == nil || err.Error() != "io error" {
		t.Fatalf("expected transport error, got %v", err)
	}
}
