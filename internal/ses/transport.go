package ses

import "context"

// DefaultMaxResponseLen is the allocation length used for RECEIVE
// DIAGNOSTIC RESULTS when none is configured.
const DefaultMaxResponseLen = 4096

// Transport moves diagnostic pages to and from an enclosure.
type Transport interface {
	// ReceiveDiagnostic issues RECEIVE DIAGNOSTIC RESULTS with PCV set for
	// pageCode and returns the bytes the device transferred.
	ReceiveDiagnostic(ctx context.Context, pageCode uint8, maxLen int) ([]byte, error)
	// SendDiagnostic issues SEND DIAGNOSTIC with PF set and payload as the
	// parameter list.
	SendDiagnostic(ctx context.Context, payload []byte) error
}
