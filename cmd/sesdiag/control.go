package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/sesdiag/internal/ses"
)

var controlCmd = &cobra.Command{
	Use:   "control [device]",
	Short: "Send a control page to the enclosure",
	Long: `Send a control diagnostic page built from hex data.

The data is the page body after the 4-byte header. The header is filled in
from --page, --byte1 and the data length. Give the data as comma separated
hex bytes, or "-" to read it from stdin, where whitespace and commas
separate bytes and lines starting with # are ignored.

Supported control pages: 0x02 Enclosure Control, 0x04 String Out,
0x05 Threshold Out, 0x06 Array Control, 0x0c Subenclosure String Out.

Examples:
  sesdiag control --page 0x4 --data "1,2,3" /dev/sg3
  sesdiag page --page 2 --raw /dev/sg3 | edit | sesdiag control --page 2 --data - /dev/sg3`,
	Args: maxArgs(1),
	RunE: runControl,
}

func init() {
	controlCmd.Flags().StringP("page", "p", "", "control page code (decimal, 0x1f or 1fh)")
	controlCmd.Flags().String("byte1", "0", "value for byte 1 of the page header")
	controlCmd.Flags().String("data", "", `page body as hex bytes, or "-" for stdin`)
	controlCmd.Flags().Bool("dry-run", false, "print the encoded page instead of sending it")
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	pageArg, _ := cmd.Flags().GetString("page")
	byte1Arg, _ := cmd.Flags().GetString("byte1")
	data, _ := cmd.Flags().GetString("data")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if pageArg == "" {
		return usageErr(errors.New("--page is required"))
	}
	code, err := parseByte(pageArg)
	if err != nil {
		return err
	}
	byte1, err := parseByte(byte1Arg)
	if err != nil {
		return err
	}

	var payload []byte
	switch data {
	case "":
		return usageErr(errors.New("--data is required"))
	case "-":
		payload, err = ses.ReadHex(os.Stdin)
	default:
		payload, err = ses.ParseHex(data)
	}
	if err != nil {
		return fmt.Errorf("--data: %w", err)
	}

	// Encode up front so bad input is rejected without touching the device.
	page, err := ses.EncodeControlPage(code, byte1, payload)
	if err != nil {
		return err
	}
	if dryRun {
		return ses.DumpHex(os.Stdout, page, "  ")
	}

	sess, dev, err := openSession(args)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()
	if err := sess.Send(ctx, code, byte1, payload); err != nil {
		return err
	}
	name, _ := ses.ControlPageName(code)
	fmt.Printf("Sent %s page (%d bytes)\n", name, len(page))
	return nil
}
