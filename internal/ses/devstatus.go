package ses

import (
	"fmt"
)

// Transport protocol identifiers used by device element status descriptors.
const (
	ProtocolFCP uint8 = 0x0
	ProtocolSAS uint8 = 0x6
)

var transportProtocolNames = [16]string{
	"Fibre Channel (FCP-2)",
	"Parallel SCSI (SPI-5)",
	"SSA (SSA-S3P)",
	"IEEE 1394 (SBP-3)",
	"Remote Direct Memory Access (RDMA)",
	"Internet SCSI (iSCSI)",
	"Serial Attached SCSI (SAS)",
	"Automation/Drive Interface Transport Protocol (ADT)",
	"ATA Packet Interface (ATA/ATAPI-7)",
	"0x9", "0xa", "0xb", "0xc", "0xd", "0xe",
	"No specific protocol",
}

// ProtocolName returns the name of a transport protocol identifier.
func ProtocolName(p uint8) string {
	return transportProtocolNames[p&0x0f]
}

var sasDeviceTypeNames = [8]string{
	"no device attached",
	"end device",
	"edge expander device",
	"fanout expander device",
	"reserved [4]", "reserved [5]", "reserved [6]", "reserved [7]",
}

// FCPPort is one port descriptor of an FCP device element.
type FCPPort struct {
	LoopPosition         uint8
	RequestedHardAddress uint8
	NPortID              [3]byte
	NPortName            [8]byte
}

// SASPhy is one phy descriptor of a SAS device element.
type SASPhy struct {
	DeviceType         uint8
	InitiatorProtocols uint8 // SSP 0x08, STP 0x04, SMP 0x02
	TargetProtocols    uint8
	AttachedSASAddress [8]byte
	SASAddress         [8]byte
	PhyID              uint8
}

// DeviceTypeName returns the attached device type name.
func (p SASPhy) DeviceTypeName() string {
	return sasDeviceTypeNames[p.DeviceType&0x07]
}

// DeviceElement is one descriptor of the Device Element Status page.
type DeviceElement struct {
	Protocol uint8
	// FCP fields.
	NodeName [8]byte
	Ports    []FCPPort
	// SAS fields.
	NotAllPhys bool
	Phys       []SASPhy
	// Data holds the descriptor body after the 4-byte descriptor header,
	// used to dump protocols that are not decoded.
	Data []byte
}

// DeviceElementPage is a decoded Device Element Status page (0x0a). Only
// Device and Array Device element types carry descriptors.
type DeviceElementPage struct {
	Header     PageHeader
	Generation uint32
	Groups     []ElementGroup[*DeviceElement]
	Warnings   []string
}

const (
	fcpPortLen = 16
	sasPhyLen  = 28
)

// ParseDeviceElementStatus decodes a Device Element Status page with the
// layout from hm.
func ParseDeviceElementStatus(b []byte, hm *HeaderMap) (*DeviceElementPage, error) {
	hdr, page, gen, warnings, err := statusPrologue(PageDeviceElementStatus, b, hm)
	if page == nil {
		return nil, err
	}
	p := &DeviceElementPage{Header: hdr, Generation: gen, Warnings: warnings}
	if err != nil {
		return p, err
	}

	c := newCursor(page, 8)
	for _, h := range hm.Headers {
		if h.Type != TypeDevice && h.Type != TypeArrayDevice {
			continue
		}
		g := ElementGroup[*DeviceElement]{Header: h}
		for j := 0; j < int(h.MaxElements); j++ {
			d, err := takeDeviceElement(c)
			if err != nil {
				p.Groups = append(p.Groups, g)
				return p, err
			}
			g.Individual = append(g.Individual, d)
		}
		p.Groups = append(p.Groups, g)
	}
	return p, nil
}

func takeDeviceElement(c *cursor) (*DeviceElement, error) {
	h, err := c.peek(2)
	if err != nil {
		return nil, err
	}
	desc, err := c.take(int(h[1]) + 2)
	if err != nil {
		return nil, err
	}
	d := &DeviceElement{Protocol: desc[0] & 0x0f}
	if len(desc) < 4 {
		return d, nil
	}
	d.Data = desc[4:]

	dc := newCursor(desc, 4)
	switch d.Protocol {
	case ProtocolFCP:
		ports := int(desc[2])
		name, err := dc.take(8)
		if err != nil {
			return nil, fmt.Errorf("fcp node name: %w", err)
		}
		copy(d.NodeName[:], name)
		for k := 0; k < ports; k++ {
			pd, err := dc.take(fcpPortLen)
			if err != nil {
				return nil, fmt.Errorf("fcp port %d: %w", k+1, err)
			}
			port := FCPPort{LoopPosition: pd[0], RequestedHardAddress: pd[4]}
			copy(port.NPortID[:], pd[5:8])
			copy(port.NPortName[:], pd[8:16])
			d.Ports = append(d.Ports, port)
		}
	case ProtocolSAS:
		phys := int(desc[2])
		d.NotAllPhys = desc[3]&0x01 != 0
		for k := 0; k < phys; k++ {
			pd, err := dc.take(sasPhyLen)
			if err != nil {
				return nil, fmt.Errorf("sas phy %d: %w", k+1, err)
			}
			phy := SASPhy{
				DeviceType:         (pd[0] & 0x70) >> 4,
				InitiatorProtocols: pd[2] & 0x0e,
				TargetProtocols:    pd[3] & 0x0e,
				PhyID:              pd[20],
			}
			copy(phy.AttachedSASAddress[:], pd[4:12])
			copy(phy.SASAddress[:], pd[12:20])
			d.Phys = append(d.Phys, phy)
		}
	}
	return d, nil
}
