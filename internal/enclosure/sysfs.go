package enclosure

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SysfsRoot is the directory the ses kernel driver registers enclosures in.
const SysfsRoot = "/sys/class/enclosure"

// DiscoverSysfs lists enclosures registered by the ses kernel driver under
// root. It spawns no processes. Enclosures without an sg node are skipped
// because they cannot be sent diagnostic pages.
func DiscoverSysfs(root string) ([]*Device, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var devices []*Device
	for _, entry := range entries {
		hctl := entry.Name()
		encPath := filepath.Join(root, hctl)
		devPath := filepath.Join(encPath, "device")

		sg := sgNode(devPath)
		if sg == "" {
			continue
		}
		d := &Device{
			HCTL:     hctl,
			SGDevice: sg,
			Vendor:   readAttr(devPath, "vendor"),
			Product:  readAttr(devPath, "model"),
			Revision: readAttr(devPath, "rev"),
		}
		// The kernel reports the logical identifier as 0x prefixed hex.
		if id := readAttr(encPath, "id"); id != "" {
			d.LogicalID = strings.TrimPrefix(strings.ToLower(id), "0x")
		}
		if n, err := strconv.Atoi(readAttr(encPath, "components")); err == nil {
			d.Components = n
		}
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].SGDevice < devices[j].SGDevice
	})
	return devices, nil
}

// sgNode finds the sg device bound to a SCSI device directory.
func sgNode(devPath string) string {
	entries, err := os.ReadDir(filepath.Join(devPath, "scsi_generic"))
	if err != nil || len(entries) == 0 {
		return ""
	}
	return "/dev/" + entries[0].Name()
}

func readAttr(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
