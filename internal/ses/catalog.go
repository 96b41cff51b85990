package ses

// Diagnostic page codes understood by this package.
const (
	PageSupported           uint8 = 0x00
	PageConfiguration       uint8 = 0x01
	PageEnclosureStatus     uint8 = 0x02 // Enclosure Control when sent
	PageHelpText            uint8 = 0x03
	PageString              uint8 = 0x04 // String In / String Out
	PageThreshold           uint8 = 0x05 // Threshold In / Threshold Out
	PageArray               uint8 = 0x06 // Array Status / Array Control (obsolete)
	PageElementDescriptor   uint8 = 0x07
	PageShortStatus         uint8 = 0x08
	PageBusy                uint8 = 0x09
	PageDeviceElementStatus uint8 = 0x0a
	PageSubenclosureHelp    uint8 = 0x0b
	PageSubenclosureString  uint8 = 0x0c
	PageSupportedSES        uint8 = 0x0d
)

// CatalogEntry pairs a code with its description.
type CatalogEntry struct {
	Code        uint8
	Description string
}

// Both tables must stay sorted by code; lookup relies on it.
var pageCatalog = []CatalogEntry{
	{0x00, "Supported diagnostic pages"},
	{0x01, "Configuration (SES)"},
	{0x02, "Enclosure status/control (SES)"},
	{0x03, "Help text (SES)"},
	{0x04, "String In/Out (SES)"},
	{0x05, "Threshold In/Out (SES)"},
	{0x06, "Array Status/Control (SES, obsolete)"},
	{0x07, "Element descriptor (SES)"},
	{0x08, "Short enclosure status (SES)"},
	{0x09, "Enclosure busy (SES-2)"},
	{0x0a, "Device element status (SES-2)"},
	{0x0b, "Subenclosure help text (SES-2)"},
	{0x0c, "Subenclosure string In/Out (SES-2)"},
	{0x0d, "Supported SES diagnostic pages (SES-2)"},
	{0x3f, "Protocol specific SAS (SAS-1)"},
	{0x40, "Translate address (SBC)"},
	{0x41, "Device status (SBC)"},
}

var elementTypeCatalog = []CatalogEntry{
	{0x00, "Unspecified"},
	{0x01, "Device"},
	{0x02, "Power supply"},
	{0x03, "Cooling"},
	{0x04, "Temperature sense"},
	{0x05, "Door lock"},
	{0x06, "Audible alarm"},
	{0x07, "Enclosure service controller electronics"},
	{0x08, "SCC controller electronics"},
	{0x09, "Nonvolatile cache"},
	{0x0a, "Invalid operation reason"},
	{0x0b, "Uninterruptible power supply"},
	{0x0c, "Display"},
	{0x0d, "Key pad entry"},
	{0x0e, "Enclosure"},
	{0x0f, "SCSI port/transceiver"},
	{0x10, "Language"},
	{0x11, "Communication port"},
	{0x12, "Voltage sensor"},
	{0x13, "Current sensor"},
	{0x14, "SCSI target port"},
	{0x15, "SCSI initiator port"},
	{0x16, "Simple subenclosure"},
	{0x17, "Array device"},
}

func lookup(table []CatalogEntry, code uint8) (string, bool) {
	for _, e := range table {
		if code == e.Code {
			return e.Description, true
		}
		if code < e.Code {
			return "", false
		}
	}
	return "", false
}

// PageDescription returns the description of a diagnostic page code.
func PageDescription(code uint8) (string, bool) {
	return lookup(pageCatalog, code)
}

// ElementTypeDescription returns the description of an element type code.
func ElementTypeDescription(code uint8) (string, bool) {
	return lookup(elementTypeCatalog, code)
}

// Pages returns a copy of the known diagnostic page table.
func Pages() []CatalogEntry {
	return append([]CatalogEntry(nil), pageCatalog...)
}

// ElementTypes returns a copy of the known element type table.
func ElementTypes() []CatalogEntry {
	return append([]CatalogEntry(nil), elementTypeCatalog...)
}
