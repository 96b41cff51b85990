package ses

import (
	"fmt"
	"io"
	"strings"
)

// printer tracks the writer and the first write error so renderers can
// print without checking every call.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) f(indent int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, strings.Repeat(" ", indent)+format+"\n", args...)
}

func (p *printer) dump(indent int, b []byte) {
	if p.err != nil {
		return
	}
	p.err = DumpHex(p.w, b, strings.Repeat(" ", indent))
}

func (p *printer) groupHeading(h ElementTypeHeader) {
	p.f(4, "Element type: %s, subenclosure id: %d", h.Type, h.SubenclosureID)
}

func renderConfiguration(p *printer, c *ConfigurationPage) {
	p.f(0, "Configuration diagnostic page:")
	p.f(2, "number of secondary subenclosures: %d", c.SecondarySubenclosures)
	p.f(2, "generation code: 0x%x", c.Generation)
	p.f(2, "enclosure descriptor list")
	for _, s := range c.Subenclosures {
		p.f(4, "Subenclosure identifier: %d", s.ID)
		p.f(6, "relative ES process id: %d, number of ES processes: %d", s.RelativeProcessID, s.NumProcesses)
		p.f(6, "number of type descriptor headers: %d", s.NumElementTypes)
		if s.Short {
			p.f(6, "enc descriptor len=%d ??", s.Length)
			continue
		}
		p.f(6, "logical identifier (hex): %s", strings.ReplaceAll(hexBytes(s.LogicalID[:]), " ", ""))
		p.f(6, "vendor: %-8s  product: %-16s  rev: %-4s", s.Vendor, s.Product, s.Revision)
		if len(s.VendorSpecific) > 0 {
			p.f(6, "vendor-specific data:")
			p.dump(8, s.VendorSpecific)
		}
	}
	p.f(2, "type descriptor header/text list")
	for _, t := range c.Types {
		p.f(4, "Element type: %s, subenclosure id: %d", t.Type, t.SubenclosureID)
		p.f(6, "number of possible elements: %d", t.MaxElements)
		if t.TextLength > 0 {
			p.f(6, "text: %s", t.Text)
		}
	}
}

func renderEnclosureStatus(p *printer, s *EnclosureStatusPage, mode Mode, filter bool) {
	p.f(0, "Enclosure status diagnostic page:")
	p.f(2, "INVOP=%d, INFO=%d, NON-CRIT=%d, CRIT=%d, UNRECOV=%d",
		b2i(s.InvalidOperation), b2i(s.Info), b2i(s.NonCritical), b2i(s.Critical), b2i(s.Unrecoverable))
	p.f(2, "generation code: 0x%x", s.Generation)
	p.f(2, "status descriptor list")
	for _, g := range s.Groups {
		p.groupHeading(g.Header)
		p.f(6, "Overall status:")
		renderElementStatus(p, g.Overall, mode, filter)
		for j, e := range g.Individual {
			p.f(6, "Element %d status:", j+1)
			renderElementStatus(p, e, mode, filter)
		}
	}
}

func renderElementStatus(p *printer, s *ElementStatus, mode Mode, filter bool) {
	if s == nil {
		return
	}
	if mode == ModeInnerHex {
		p.f(8, "status in hex: %s", hexBytes(s.Raw[:]))
		return
	}
	p.f(8, "%s", s.Summary())
	for _, l := range s.StatusLines(filter) {
		p.f(8, "%s", l)
	}
}

func renderThresholdPage(p *printer, t *ThresholdPage, mode Mode) {
	p.f(0, "Threshold In diagnostic page:")
	p.f(2, "INVOP=%d", b2i(t.InvalidOperation))
	p.f(2, "generation code: 0x%x", t.Generation)
	p.f(2, "Threshold status descriptor list")
	for _, g := range t.Groups {
		p.groupHeading(g.Header)
		p.f(6, "Overall threshold:")
		renderThreshold(p, g.Overall, mode)
		for j, th := range g.Individual {
			p.f(6, "Element %d threshold:", j+1)
			renderThreshold(p, th, mode)
		}
	}
}

func renderThreshold(p *printer, th *Threshold, mode Mode) {
	if th == nil {
		return
	}
	if mode == ModeInnerHex || !HasThresholds(th.Type) {
		p.f(8, "threshold in hex: %s", hexBytes(th.Raw[:]))
		return
	}
	switch th.Type {
	case TypeTemperature:
		p.f(8, "high critical=%s, high warning=%s",
			levelText(th.HighCritical, "<res>", "%.0f C"), levelText(th.HighWarning, "<res>", "%.0f C"))
		p.f(8, "low warning=%s, low critical=%s",
			levelText(th.LowWarning, "<res>", "%.0f C"), levelText(th.LowCritical, "<res>", "%.0f C"))
	case TypeUPS:
		p.f(8, "low warning=%s, low critical=%s (in minutes)",
			levelText(th.LowWarning, "<vendor>", "%.0f"), levelText(th.LowCritical, "<vendor>", "%.0f"))
	case TypeVoltageSensor:
		p.f(8, "high critical=%.1f %%, high warning=%.1f %%  (above nominal voltage)",
			th.HighCritical.Value, th.HighWarning.Value)
		p.f(8, "low warning=%.1f %%, low critical=%.1f %%  (below nominal voltage)",
			th.LowWarning.Value, th.LowCritical.Value)
	case TypeCurrentSensor:
		p.f(8, "high critical=%.1f %%, high warning=%.1f %%  (above nominal current)",
			th.HighCritical.Value, th.HighWarning.Value)
	}
}

func levelText(l ThresholdLevel, reserved, format string) string {
	if l.Reserved {
		return reserved
	}
	return fmt.Sprintf(format, l.Value)
}

func renderElementDescriptors(p *printer, d *ElementDescriptorPage) {
	p.f(0, "Element descriptor In diagnostic page:")
	p.f(2, "generation code: 0x%x", d.Generation)
	p.f(2, "element descriptor by type list")
	text := func(s string) string {
		if s == "" {
			return "<empty>"
		}
		return s
	}
	for _, g := range d.Groups {
		p.groupHeading(g.Header)
		p.f(6, "Overall descriptor: %s", text(g.Overall))
		for j, s := range g.Individual {
			p.f(6, "Element %d descriptor: %s", j+1, text(s))
		}
	}
}

func renderDeviceElements(p *printer, d *DeviceElementPage, mode Mode) {
	p.f(0, "Device element status diagnostic page:")
	p.f(2, "generation code: 0x%x", d.Generation)
	p.f(2, "device element status descriptor list")
	for _, g := range d.Groups {
		p.groupHeading(g.Header)
		for j, e := range g.Individual {
			p.f(6, "Element %d descriptor:", j+1)
			renderDeviceElement(p, e, mode)
		}
	}
}

func renderDeviceElement(p *printer, e *DeviceElement, mode Mode) {
	if mode == ModeInnerHex {
		p.dump(8, e.Data)
		return
	}
	switch e.Protocol {
	case ProtocolFCP:
		p.f(8, "Transport protocol: FCP")
		p.f(8, "number of ports: %d", len(e.Ports))
		p.f(8, "node_name: 0x%s", compactHex(e.NodeName[:]))
		for k, port := range e.Ports {
			p.f(10, "port index: %d, req hard address: 0x%x", k, port.RequestedHardAddress)
			p.f(12, "loop position: %d", port.LoopPosition)
			p.f(12, "n_port identifier: %s", compactHex(port.NPortID[:]))
			p.f(12, "n_port name: 0x%s", compactHex(port.NPortName[:]))
		}
	case ProtocolSAS:
		p.f(8, "Transport protocol: SAS")
		p.f(8, "number of phy descriptors: %d, not all phys: %d", len(e.Phys), b2i(e.NotAllPhys))
		for k, phy := range e.Phys {
			p.f(10, "phy index: %d", k)
			p.f(12, "device type: %s", phy.DeviceTypeName())
			p.f(12, "initiator port for:%s", sasProtocols(phy.InitiatorProtocols))
			p.f(12, "target port for:%s", sasProtocols(phy.TargetProtocols))
			p.f(12, "attached SAS address: 0x%s", compactHex(phy.AttachedSASAddress[:]))
			p.f(12, "SAS address: 0x%s", compactHex(phy.SASAddress[:]))
			p.f(12, "phy identifier: 0x%x", phy.PhyID)
		}
	default:
		p.f(8, "Transport protocol: %s not decoded, in hex:", ProtocolName(e.Protocol))
		p.dump(10, e.Data)
	}
}

func sasProtocols(m uint8) string {
	var s string
	if m&0x08 != 0 {
		s += " SSP"
	}
	if m&0x04 != 0 {
		s += " STP"
	}
	if m&0x02 != 0 {
		s += " SMP"
	}
	return s
}

func compactHex(b []byte) string {
	return strings.ReplaceAll(hexBytes(b), " ", "")
}

func renderSubenclosureText(p *printer, t *SubenclosureTextPage) {
	help := t.Header.Code == PageSubenclosureHelp
	if help {
		p.f(0, "Subenclosure help text diagnostic page:")
	} else {
		p.f(0, "Subenclosure string in diagnostic page:")
	}
	p.f(2, "number of secondary subenclosures: %d", t.SecondarySubenclosures)
	p.f(2, "generation code: 0x%x", t.Generation)
	for _, s := range t.Subenclosures {
		p.f(4, "subenclosure identifier: %d", s.ID)
		switch {
		case len(s.Data) == 0:
			p.f(6, "<empty>")
		case help:
			p.f(6, "%s", s.Data)
		default:
			p.f(6, "string in data:")
			p.dump(8, s.Data)
		}
	}
}

func renderSupportedPages(p *printer, s *SupportedPages) {
	if s.Header.Code == PageSupportedSES {
		p.f(0, "Supported SES diagnostic pages:")
	} else {
		p.f(0, "Supported diagnostic pages:")
	}
	for _, code := range s.Codes {
		if d, ok := PageDescription(code); ok {
			p.f(2, "%s [0x%x]", d, code)
		} else {
			p.f(2, "<unknown> [0x%x]", code)
		}
	}
}

func renderTextPage(p *printer, t *TextPage) {
	if t.Header.Code == PageHelpText {
		p.f(0, "Help text diagnostic page (for primary subenclosure):")
		if len(t.Data) > 0 {
			p.f(2, "%s", t.Data)
		} else {
			p.f(2, "<empty>")
		}
		return
	}
	p.f(0, "String In diagnostic page (for primary subenclosure):")
	if len(t.Data) > 0 {
		p.dump(2, t.Data)
	} else {
		p.f(2, "<empty>")
	}
}
