//go:build linux

package sgio

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	sgDxferNone    = -1
	sgDxferToDev   = -2
	sgDxferFromDev = -3

	sgIO = 0x2285
)

// sgIoHdr mirrors sg_io_hdr_t from <scsi/sg.h>.
type sgIoHdr struct {
	interfaceID    int32   // 'S' for SCSI generic (required)
	dxferDirection int32   // data transfer direction
	cmdLen         uint8   // SCSI command length (<= 16 bytes)
	mxSbLen        uint8   // max length to write to sbp
	iovecCount     uint16  // 0 implies no scatter gather
	dxferLen       uint32  // byte count of data transfer
	dxferp         uintptr // points to data transfer memory
	cmdp           uintptr // points to command to perform
	sbp            uintptr // points to sense_buffer memory
	timeout        uint32  // unit: millisec
	flags          uint32
	packID         int32
	usrPtr         uintptr
	status         uint8 // SCSI status
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8 // byte count actually written to sbp
	hostStatus     uint16
	driverStatus   uint16
	resid          int32 // dxfer_len - actual_transferred
	duration       uint32
	info           uint32
}

// Device is an open SCSI generic device node.
type Device struct {
	Path string
	fd   int
	log  logrus.FieldLogger
}

// Open opens an sg device node read/write.
func Open(path string, log logrus.FieldLogger) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Device{Path: path, fd: fd, log: log.WithField("device", path)}, nil
}

// Close releases the device node.
func (d *Device) Close() error {
	return unix.Close(d.fd)
}

func (d *Device) execute(ctx context.Context, cdb []byte, dir int32, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sense := make([]byte, senseBufLen)
	hdr := sgIoHdr{
		interfaceID:    'S',
		dxferDirection: dir,
		cmdLen:         uint8(len(cdb)),
		mxSbLen:        uint8(len(sense)),
		dxferLen:       uint32(len(buf)),
		cmdp:           uintptr(unsafe.Pointer(&cdb[0])),
		sbp:            uintptr(unsafe.Pointer(&sense[0])),
		timeout:        timeoutMillis(ctx.Deadline()),
	}
	if len(buf) > 0 {
		hdr.dxferp = uintptr(unsafe.Pointer(&buf[0]))
	}

	d.log.WithField("cdb", fmt.Sprintf("% x", cdb)).Debug("issuing SCSI command")
	if dir == sgDxferToDev {
		d.log.WithField("data", fmt.Sprintf("% x", buf)).Trace("parameter list")
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), sgIO, uintptr(unsafe.Pointer(&hdr))); errno != 0 {
		return 0, fmt.Errorf("SG_IO ioctl: %w", errno)
	}
	if err := statusError(cdb[0], hdr.status, hdr.hostStatus, hdr.driverStatus, sense[:hdr.sbLenWr]); err != nil {
		return 0, err
	}
	n := len(buf) - int(hdr.resid)
	if n < 0 || n > len(buf) {
		n = len(buf)
	}
	d.log.WithField("len", n).Debug("command complete")
	return n, nil
}

// ReceiveDiagnostic reads a diagnostic page.
func (d *Device) ReceiveDiagnostic(ctx context.Context, pageCode uint8, maxLen int) ([]byte, error) {
	cdb := ReceiveDiagnosticCDB(pageCode, maxLen)
	buf := make([]byte, maxLen)
	n, err := d.execute(ctx, cdb[:], sgDxferFromDev, buf)
	if err != nil {
		return nil, fmt.Errorf("receive diagnostic page 0x%x: %w", pageCode, err)
	}
	return buf[:n], nil
}

// SendDiagnostic writes a control page.
func (d *Device) SendDiagnostic(ctx context.Context, payload []byte) error {
	cdb := SendDiagnosticCDB(len(payload))
	dir := int32(sgDxferToDev)
	if len(payload) == 0 {
		dir = sgDxferNone
	}
	if _, err := d.execute(ctx, cdb[:], dir, payload); err != nil {
		return fmt.Errorf("send diagnostic: %w", err)
	}
	return nil
}

// Inquiry issues a standard INQUIRY.
func (d *Device) Inquiry(ctx context.Context) (*InquiryData, error) {
	cdb := InquiryCDB(InquiryLen)
	buf := make([]byte, InquiryLen)
	n, err := d.execute(ctx, cdb[:], sgDxferFromDev, buf)
	if err != nil {
		return nil, fmt.Errorf("inquiry: %w", err)
	}
	return ParseInquiry(buf[:n])
}
