// Package enclosure runs SES requests against one enclosure: reading the
// configuration page that every status page depends on, fetching and
// decoding pages, and sending control pages.
package enclosure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sigreer/sesdiag/internal/cache"
	"github.com/sigreer/sesdiag/internal/ses"
)

// Options configures a Session. Zero values select defaults.
type Options struct {
	// Key identifies the enclosure in the cache, usually the device path.
	Key               string
	MaxResponseLen    int
	MaxElementHeaders int
	Cache             *cache.Cache
	Log               logrus.FieldLogger
}

// Session issues diagnostic page requests to one enclosure.
type Session struct {
	t          ses.Transport
	key        string
	maxLen     int
	maxHeaders int
	cache      *cache.Cache
	log        logrus.FieldLogger
}

// NewSession wraps a transport.
func NewSession(t ses.Transport, opts Options) *Session {
	s := &Session{
		t:          t,
		key:        opts.Key,
		maxLen:     opts.MaxResponseLen,
		maxHeaders: opts.MaxElementHeaders,
		cache:      opts.Cache,
		log:        opts.Log,
	}
	if s.maxLen <= 0 {
		s.maxLen = ses.DefaultMaxResponseLen
	}
	if s.maxHeaders <= 0 {
		s.maxHeaders = ses.DefaultMaxElementHeaders
	}
	if s.cache == nil {
		s.cache = cache.Global()
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

// needsHeaders reports whether decoding a page depends on the element
// layout of the configuration page.
func needsHeaders(code uint8) bool {
	switch code {
	case ses.PageEnclosureStatus, ses.PageThreshold, ses.PageElementDescriptor,
		ses.PageDeviceElementStatus, ses.PageSubenclosureHelp, ses.PageSubenclosureString:
		return true
	}
	return false
}

func (s *Session) headersKey() string {
	return "ses:headers:" + s.key
}

// Page reads a diagnostic page.
func (s *Session) Page(ctx context.Context, code uint8) ([]byte, error) {
	b, err := s.t.ReceiveDiagnostic(ctx, code, s.maxLen)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"page": fmt.Sprintf("0x%02x", code), "len": len(b)}).Debug("page received")
	return b, nil
}

// Headers returns the element layout, reading the configuration page when
// no cached copy exists.
func (s *Session) Headers(ctx context.Context) (*ses.HeaderMap, error) {
	now := time.Now()
	if e := s.cache.GetEntry(s.headersKey()); e != nil && !e.IsExpired(now) {
		s.log.WithField("age", e.Age(now).Round(time.Second)).Debug("using cached element layout")
		return e.Value.(*ses.HeaderMap), nil
	}
	b, err := s.Page(ctx, ses.PageConfiguration)
	if err != nil {
		return nil, err
	}
	hm := ses.NewHeaderMap(s.maxHeaders)
	err = hm.UnmarshalBinary(b)
	for _, w := range hm.Warnings {
		s.log.WithField("page", "0x01").Warn(w)
	}
	if err != nil {
		return hm, fmt.Errorf("configuration page: %w", err)
	}
	s.cache.SetSlow(s.headersKey(), hm)
	return hm, nil
}

// InvalidateHeaders drops the cached element layout.
func (s *Session) InvalidateHeaders() {
	s.cache.Delete(s.headersKey())
}

// Decode reads a page and renders it to w. Status pages are decoded with
// the element layout from the configuration page. Raw and hex modes skip
// the configuration read.
func (s *Session) Decode(ctx context.Context, w io.Writer, code uint8, mode ses.Mode, filter bool) error {
	opts := ses.DecodeOptions{Mode: mode, Filter: filter, Log: s.log}
	structured := mode == ses.ModeText || mode == ses.ModeInnerHex
	if structured && needsHeaders(code) {
		hm, err := s.Headers(ctx)
		if err != nil {
			return err
		}
		opts.Headers = hm
	}
	b, err := s.Page(ctx, code)
	if err != nil {
		return err
	}
	err = ses.DecodePage(w, code, b, opts)
	if errors.Is(err, ses.ErrGenerationMismatch) {
		s.InvalidateHeaders()
	}
	return err
}

// Status reads and decodes the Enclosure Status page.
func (s *Session) Status(ctx context.Context) (*ses.EnclosureStatusPage, error) {
	hm, err := s.Headers(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.Page(ctx, ses.PageEnclosureStatus)
	if err != nil {
		return nil, err
	}
	st, err := ses.ParseEnclosureStatus(b, hm)
	if st != nil {
		for _, w := range st.Warnings {
			s.log.WithField("page", "0x02").Warn(w)
		}
	}
	if errors.Is(err, ses.ErrGenerationMismatch) {
		s.InvalidateHeaders()
	}
	return st, err
}

// Descriptors reads the Element Descriptor page.
func (s *Session) Descriptors(ctx context.Context) (*ses.ElementDescriptorPage, error) {
	hm, err := s.Headers(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.Page(ctx, ses.PageElementDescriptor)
	if err != nil {
		return nil, err
	}
	return ses.ParseElementDescriptors(b, hm)
}

// Send encodes and writes a control page.
func (s *Session) Send(ctx context.Context, code, byte1 uint8, payload []byte) error {
	b, err := ses.EncodeControlPage(code, byte1, payload)
	if err != nil {
		return err
	}
	name, _ := ses.ControlPageName(code)
	s.log.WithFields(logrus.Fields{"page": name, "len": len(b)}).Info("sending control page")
	return s.t.SendDiagnostic(ctx, b)
}
