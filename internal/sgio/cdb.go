// Package sgio issues SCSI commands to enclosure devices through the Linux
// SCSI generic driver.
package sgio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SCSI commands used by this package
const (
	OpInquiry           = 0x12
	OpReceiveDiagnostic = 0x1c
	OpSendDiagnostic    = 0x1d
)

// SCSI status codes
const (
	StatusGood           = 0x00
	StatusCheckCondition = 0x02
	StatusBusy           = 0x08
)

// Sense keys
const (
	SenseNoSense        = 0x00
	SenseRecoveredError = 0x01
	SenseNotReady       = 0x02
	SenseMediumError    = 0x03
	SenseHardwareError  = 0x04
	SenseIllegalRequest = 0x05
	SenseUnitAttention  = 0x06
	SenseDataProtect    = 0x07
	SenseAbortedCommand = 0x0b
)

const (
	// InquiryLen is the standard INQUIRY allocation length.
	InquiryLen = 36
	// DefaultTimeout applies when the context carries no deadline.
	DefaultTimeout = 60 * time.Second

	senseBufLen = 32
)

var (
	ErrDeviceBusy  = errors.New("device busy")
	ErrUnsupported = errors.New("SCSI generic access not supported on this platform")
)

var senseKeyNames = map[uint8]string{
	SenseNoSense:        "No Sense",
	SenseRecoveredError: "Recovered Error",
	SenseNotReady:       "Not Ready",
	SenseMediumError:    "Medium Error",
	SenseHardwareError:  "Hardware Error",
	SenseIllegalRequest: "Illegal Request",
	SenseUnitAttention:  "Unit Attention",
	SenseDataProtect:    "Data Protect",
	SenseAbortedCommand: "Aborted Command",
}

// SenseError is a CHECK CONDITION with its decoded sense data.
type SenseError struct {
	Op     uint8
	Status uint8
	Key    uint8
	ASC    uint8
	ASCQ   uint8
	Sense  []byte
}

func (e *SenseError) Error() string {
	name, ok := senseKeyNames[e.Key]
	if !ok {
		name = fmt.Sprintf("sense key 0x%x", e.Key)
	}
	return fmt.Sprintf("command 0x%02x failed: %s, asc=0x%02x ascq=0x%02x", e.Op, name, e.ASC, e.ASCQ)
}

// HostError reports a transport level failure outside SCSI sense data.
type HostError struct {
	Op           uint8
	Status       uint8
	HostStatus   uint16
	DriverStatus uint16
}

func (e *HostError) Error() string {
	return fmt.Sprintf("command 0x%02x: SCSI status: %#02x, host status: %#02x, driver status: %#02x",
		e.Op, e.Status, e.HostStatus, e.DriverStatus)
}

// decodeSense fills key, asc and ascq from fixed or descriptor format
// sense data.
func decodeSense(op, status uint8, sense []byte) *SenseError {
	e := &SenseError{Op: op, Status: status, Sense: sense}
	if len(sense) < 2 {
		return e
	}
	switch sense[0] & 0x7f {
	case 0x70, 0x71:
		if len(sense) > 2 {
			e.Key = sense[2] & 0x0f
		}
		if len(sense) > 13 {
			e.ASC, e.ASCQ = sense[12], sense[13]
		}
	case 0x72, 0x73:
		e.Key = sense[1] & 0x0f
		if len(sense) > 3 {
			e.ASC, e.ASCQ = sense[2], sense[3]
		}
	}
	return e
}

// statusError maps a completed command to an error, nil on GOOD.
func statusError(op, status uint8, host, driver uint16, sense []byte) error {
	switch {
	case status == StatusBusy:
		return fmt.Errorf("command 0x%02x: %w", op, ErrDeviceBusy)
	case status == StatusCheckCondition:
		se := decodeSense(op, status, sense)
		if se.Key == SenseNoSense || se.Key == SenseRecoveredError {
			return nil
		}
		return se
	case status != StatusGood || host != 0 || (driver&0x0f) != 0:
		return &HostError{Op: op, Status: status, HostStatus: host, DriverStatus: driver}
	}
	return nil
}

// ReceiveDiagnosticCDB builds RECEIVE DIAGNOSTIC RESULTS with PCV set.
func ReceiveDiagnosticCDB(pageCode uint8, allocLen int) [6]byte {
	cdb := [6]byte{OpReceiveDiagnostic, 0x01, pageCode}
	binary.BigEndian.PutUint16(cdb[3:5], uint16(allocLen))
	return cdb
}

// SendDiagnosticCDB builds SEND DIAGNOSTIC with PF set for a parameter
// list of paramLen bytes.
func SendDiagnosticCDB(paramLen int) [6]byte {
	cdb := [6]byte{OpSendDiagnostic, 0x10}
	binary.BigEndian.PutUint16(cdb[3:5], uint16(paramLen))
	return cdb
}

// InquiryCDB builds a standard INQUIRY.
func InquiryCDB(allocLen int) [6]byte {
	cdb := [6]byte{OpInquiry}
	binary.BigEndian.PutUint16(cdb[3:5], uint16(allocLen))
	return cdb
}

// InquiryData is a standard INQUIRY response.
type InquiryData struct {
	PeripheralQualifier uint8
	PeripheralType      uint8
	Version             uint8
	EncServ             bool
	Vendor              string
	Product             string
	Revision            string
}

// ParseInquiry decodes a standard INQUIRY response.
func ParseInquiry(b []byte) (*InquiryData, error) {
	if len(b) < InquiryLen {
		return nil, fmt.Errorf("inquiry response has %d bytes, need %d", len(b), InquiryLen)
	}
	trim := func(s []byte) string { return strings.TrimRight(string(s), " \x00") }
	return &InquiryData{
		PeripheralQualifier: b[0] >> 5,
		PeripheralType:      b[0] & 0x1f,
		Version:             b[2],
		EncServ:             b[6]&0x40 != 0,
		Vendor:              trim(b[8:16]),
		Product:             trim(b[16:32]),
		Revision:            trim(b[32:36]),
	}, nil
}

// String returns vendor, product and revision in the usual column layout.
func (d *InquiryData) String() string {
	return fmt.Sprintf("%-8s  %-16s  %-4s", d.Vendor, d.Product, d.Revision)
}

// PeripheralTypeEnclosure is the device type of an SES device.
const PeripheralTypeEnclosure = 0x0d

// IsEnclosure reports whether the device is a standalone enclosure services
// device or another device type with embedded enclosure services.
func (d *InquiryData) IsEnclosure() bool {
	return d.PeripheralType == PeripheralTypeEnclosure || d.EncServ
}

func timeoutMillis(deadline time.Time, ok bool) uint32 {
	if !ok {
		return uint32(DefaultTimeout / time.Millisecond)
	}
	d := time.Until(deadline)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return uint32(d / time.Millisecond)
}
