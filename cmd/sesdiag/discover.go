package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sigreer/sesdiag/internal/enclosure"
	"github.com/sigreer/sesdiag/internal/sgio"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find enclosure services devices",
	Long: `List the enclosure sg devices reported by "lsscsi -g".

Each enclosure's configuration page is read to show the logical identifier
of its primary subenclosure, which stays the same when the sg numbering
changes between boots. Use --no-identify to skip opening the devices.`,
	Args: maxArgs(0),
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().Bool("json", false, "Output as JSON")
	discoverCmd.Flags().Bool("no-identify", false, "don't read configuration pages")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	noIdentify, _ := cmd.Flags().GetBool("no-identify")

	ctx, cancel := commandContext(cmd)
	defer cancel()

	devices, err := enclosure.Discover(ctx)
	if errors.Is(err, enclosure.ErrLsscsiNotInstalled) {
		fmt.Fprintf(os.Stderr, "Install: sudo pacman -S lsscsi  (Arch)\n")
		fmt.Fprintf(os.Stderr, "     or: sudo apt install lsscsi  (Debian/Ubuntu)\n")
	}
	if err != nil {
		return err
	}

	if !noIdentify {
		for _, d := range devices {
			identify(cmd, d)
		}
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Println("No enclosures found (try: sudo modprobe sg)")
		return nil
	}
	fmt.Printf("%-12s %-10s %-8s %-16s %-5s %s\n", "HCTL", "SG", "VENDOR", "PRODUCT", "REV", "LOGICAL ID")
	for _, d := range devices {
		id := d.LogicalID
		if id == "" {
			id = "-"
		}
		fmt.Printf("%-12s %-10s %-8s %-16s %-5s %s\n", d.HCTL, d.SGDevice, d.Vendor, d.Product, d.Revision, id)
	}
	return nil
}

// identify fills the logical ID of d. Failures are logged, the device is
// still listed.
func identify(cmd *cobra.Command, d *enclosure.Device) {
	entry := log.WithField("device", d.SGDevice)
	dev, err := sgio.Open(d.SGDevice, log)
	if err != nil {
		entry.WithError(err).Info("cannot open enclosure")
		return
	}
	defer dev.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()
	sess := enclosure.NewSession(dev, enclosure.Options{
		Key:            d.SGDevice,
		MaxResponseLen: cfg.MaxResponseLen,
		Log:            entry,
	})
	if err := sess.Identify(ctx, d); err != nil {
		entry.WithFields(logrus.Fields{"hctl": d.HCTL}).WithError(err).Info("reading configuration page failed")
	}
}
