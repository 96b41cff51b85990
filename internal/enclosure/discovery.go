package enclosure

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/sigreer/sesdiag/internal/cache"
	"github.com/sigreer/sesdiag/internal/ses"
)

var ErrLsscsiNotInstalled = errors.New("lsscsi not found in PATH")

// Device is an enclosure services device found by Discover.
type Device struct {
	HCTL      string `json:"hctl"`
	Vendor    string `json:"vendor"`
	Product   string `json:"product"`
	Revision  string `json:"revision"`
	SGDevice  string `json:"sg_device"`
	LogicalID string `json:"logical_id,omitempty"`
	// Components is the element count the ses kernel driver registered,
	// known only for sysfs discovery.
	Components int `json:"components,omitempty"`
}

const devicesKey = "ses:devices"

// Discover finds enclosure devices from the output of lsscsi -g. Without
// lsscsi the enclosures registered in sysfs are listed instead.
func Discover(ctx context.Context) ([]*Device, error) {
	c := cache.Global()
	if cached := c.Get(devicesKey); cached != nil {
		return cached.([]*Device), nil
	}

	var devices []*Device
	if _, err := exec.LookPath("lsscsi"); err != nil {
		devices, err = DiscoverSysfs(SysfsRoot)
		if err != nil {
			return nil, ErrLsscsiNotInstalled
		}
	} else {
		out, err := exec.CommandContext(ctx, "lsscsi", "-g").CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("lsscsi failed: %w", err)
		}
		devices = ParseLsscsi(string(out))
	}
	if len(devices) > 0 {
		c.SetSlow(devicesKey, devices)
	}
	return devices, nil
}

var (
	hctlRe = regexp.MustCompile(`^\[(\d+:\d+:\d+:\d+)\]`)
	sgRe   = regexp.MustCompile(`(/dev/sg\d+)\s*$`)
)

// ParseLsscsi extracts the enclosure lines of lsscsi -g output.
//
//	[6:0:24:0]   enclosu SMC      SC826-P          0001  -         /dev/sg23
//	[H:C:T:L]    type    vendor   product          rev   block     generic
func ParseLsscsi(out string) []*Device {
	var devices []*Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(strings.ToLower(line), "enclosu") {
			continue
		}
		sg := sgRe.FindStringSubmatch(line)
		if len(sg) < 2 {
			continue
		}
		d := &Device{SGDevice: sg[1]}
		if m := hctlRe.FindStringSubmatch(line); len(m) == 2 {
			d.HCTL = m[1]
		}
		fields := strings.Fields(line)
		for i, f := range fields {
			if strings.ToLower(f) != "enclosu" {
				continue
			}
			if i+1 < len(fields) {
				d.Vendor = fields[i+1]
			}
			if i+2 < len(fields) {
				d.Product = fields[i+2]
			}
			// The revision sits before the block device column.
			if i+3 < len(fields)-2 {
				d.Revision = fields[i+3]
			}
			break
		}
		devices = append(devices, d)
	}
	return devices
}

// Identify fills the logical identifier of d from the primary
// subenclosure of its configuration page.
func (s *Session) Identify(ctx context.Context, d *Device) error {
	b, err := s.Page(ctx, ses.PageConfiguration)
	if err != nil {
		return err
	}
	cfg, err := ses.ParseConfiguration(b)
	if err != nil {
		return err
	}
	if len(cfg.Subenclosures) > 0 && !cfg.Subenclosures[0].Short {
		d.LogicalID = fmt.Sprintf("%016x", cfg.Subenclosures[0].LogicalIDUint64())
	}
	return nil
}
