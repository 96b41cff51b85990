//go:build !linux

package sgio

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Device is unavailable outside Linux.
type Device struct {
	Path string
}

func Open(path string, log logrus.FieldLogger) (*Device, error) {
	return nil, ErrUnsupported
}

func (d *Device) Close() error { return nil }

func (d *Device) ReceiveDiagnostic(ctx context.Context, pageCode uint8, maxLen int) ([]byte, error) {
	return nil, ErrUnsupported
}

func (d *Device) SendDiagnostic(ctx context.Context, payload []byte) error {
	return ErrUnsupported
}

func (d *Device) Inquiry(ctx context.Context) (*InquiryData, error) {
	return nil, ErrUnsupported
}
