package sgio

import (
	"errors"
	"testing"
	"time"
)

func TestCDBs(t *testing.T) {
	tests := []struct {
		desc string
		got  [6]byte
		want [6]byte
	}{
		{"receive configuration page", ReceiveDiagnosticCDB(0x01, 4096), [6]byte{0x1c, 0x01, 0x01, 0x10, 0x00, 0x00}},
		{"receive status page", ReceiveDiagnosticCDB(0x02, 0xffff), [6]byte{0x1c, 0x01, 0x02, 0xff, 0xff, 0x00}},
		{"send control page", SendDiagnosticCDB(36), [6]byte{0x1d, 0x10, 0x00, 0x00, 0x24, 0x00}},
		{"inquiry", InquiryCDB(InquiryLen), [6]byte{0x12, 0x00, 0x00, 0x00, 0x24, 0x00}},
	}

	for i, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("[%02d] test %q, unexpected CDB: % x != % x", i, tt.desc, tt.want, tt.got)
		}
	}
}

func TestStatusError(t *testing.T) {
	fixed := make([]byte, 18)
	fixed[0] = 0x70
	fixed[2] = SenseIllegalRequest
	fixed[12], fixed[13] = 0x24, 0x00

	descriptor := []byte{0x72, SenseHardwareError, 0x35, 0x01, 0, 0, 0, 0}

	recovered := make([]byte, 18)
	recovered[0] = 0x70
	recovered[2] = SenseRecoveredError

	tests := []struct {
		desc   string
		status uint8
		host   uint16
		driver uint16
		sense  []byte
		check  func(err error) bool
	}{
		{
			desc:  "good",
			check: func(err error) bool { return err == nil },
		},
		{
			desc:   "busy",
			status: StatusBusy,
			check:  func(err error) bool { return errors.Is(err, ErrDeviceBusy) },
		},
		{
			desc:   "fixed format illegal request",
			status: StatusCheckCondition,
			sense:  fixed,
			check: func(err error) bool {
				var se *SenseError
				return errors.As(err, &se) && se.Key == SenseIllegalRequest && se.ASC == 0x24 && se.ASCQ == 0 &&
					se.Error() == "command 0x1c failed: Illegal Request, asc=0x24 ascq=0x00"
			},
		},
		{
			desc:   "descriptor format hardware error",
			status: StatusCheckCondition,
			sense:  descriptor,
			check: func(err error) bool {
				var se *SenseError
				return errors.As(err, &se) && se.Key == SenseHardwareError && se.ASC == 0x35 && se.ASCQ == 0x01
			},
		},
		{
			desc:   "recovered error is success",
			status: StatusCheckCondition,
			sense:  recovered,
			check:  func(err error) bool { return err == nil },
		},
		{
			desc: "host error",
			host: 0x01,
			check: func(err error) bool {
				var he *HostError
				return errors.As(err, &he) && he.HostStatus == 1
			},
		},
		{
			desc:   "driver sense flag only",
			driver: 0x08 << 4,
			check:  func(err error) bool { return err == nil },
		},
	}

	for i, tt := range tests {
		err := statusError(OpReceiveDiagnostic, tt.status, tt.host, tt.driver, tt.sense)
		if !tt.check(err) {
			t.Fatalf("[%02d] test %q, unexpected error: %v", i, tt.desc, err)
		}
	}
}

func TestParseInquiry(t *testing.T) {
	b := make([]byte, InquiryLen)
	b[0] = 0x0d
	b[2] = 0x06
	copy(b[8:16], "LSI     ")
	copy(b[16:32], "SAS3x28         ")
	copy(b[32:36], "0601")

	d, err := ParseInquiry(b)
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsEnclosure() || d.Vendor != "LSI" || d.Product != "SAS3x28" || d.Revision != "0601" || d.Version != 6 {
		t.Fatalf("unexpected inquiry: %+v", d)
	}
	if d.String() != "LSI       SAS3x28           0601" {
		t.Fatalf("unexpected string %q", d.String())
	}

	b[0] = 0x00
	b[6] = 0x40
	if d, _ := ParseInquiry(b); !d.IsEnclosure() || d.PeripheralType != 0 {
		t.Fatalf("disk with EncServ should count as enclosure: %+v", d)
	}

	if _, err := ParseInquiry(b[:20]); err == nil {
		t.Fatal("expected error for short inquiry")
	}
}

func TestTimeoutMillis(t *testing.T) {
	if got := timeoutMillis(time.Time{}, false); got != 60000 {
		t.Fatalf("unexpected default timeout: %d", got)
	}
	if got := timeoutMillis(time.Now().Add(-time.Second), true); got != 1 {
		t.Fatalf("expired deadline should clamp to 1ms, got %d", got)
	}
	if got := timeoutMillis(time.Now().Add(10*time.Second), true); got < 9000 || got > 10000 {
		t.Fatalf("unexpected timeout: %d", got)
	}
}
