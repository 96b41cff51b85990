package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/sesdiag/internal/ses"
)

var pageCmd = &cobra.Command{
	Use:     "page [device]",
	Aliases: []string{"status"},
	Short:   "Fetch and decode a diagnostic page",
	Long: `Fetch a diagnostic page from the enclosure and decode it.

Status pages (0x02, 0x05, 0x07, 0x0a) are decoded against the element layout
of the configuration page, which is read first. If the enclosure changes its
configuration between the two reads the command fails with exit status 2 and
should be retried.

Output modes:
  (default)    every field interpreted
  --inner-hex  page structure walked, each record printed in hex
  --hex        whole response in hex
  --raw        bytes after the page header, usable as control --data input

Examples:
  sesdiag page /dev/sg3                     # supported diagnostic pages
  sesdiag page --page 2 /dev/sg3            # enclosure status
  sesdiag page --page 2 --filter /dev/sg3   # only elements with flags set
  sesdiag page --page 0x7 --raw /dev/sg3`,
	Args: maxArgs(1),
	RunE: runPage,
}

func init() {
	pageCmd.Flags().StringP("page", "p", "0", "diagnostic page code (decimal, 0x1f or 1fh)")
	pageCmd.Flags().BoolP("hex", "H", false, "print the response in hex")
	pageCmd.Flags().BoolP("inner-hex", "i", false, "print each record in hex")
	pageCmd.Flags().BoolP("raw", "r", false, "print the page body as raw hex bytes")
	pageCmd.Flags().BoolP("filter", "f", false, "omit status fields that are clear")
	pageCmd.Flags().Bool("no-inquiry", false, "skip the INQUIRY line")
	pageCmd.MarkFlagsMutuallyExclusive("hex", "inner-hex", "raw")
	rootCmd.AddCommand(pageCmd)
}

func modeFromFlags(cmd *cobra.Command) ses.Mode {
	hex, _ := cmd.Flags().GetBool("hex")
	inner, _ := cmd.Flags().GetBool("inner-hex")
	raw, _ := cmd.Flags().GetBool("raw")
	switch {
	case hex:
		return ses.ModeHex
	case inner:
		return ses.ModeInnerHex
	case raw:
		return ses.ModeRaw
	}
	return ses.ModeText
}

func runPage(cmd *cobra.Command, args []string) error {
	pageArg, _ := cmd.Flags().GetString("page")
	filter, _ := cmd.Flags().GetBool("filter")
	noInquiry, _ := cmd.Flags().GetBool("no-inquiry")

	code, err := parseByte(pageArg)
	if err != nil {
		return err
	}
	mode := modeFromFlags(cmd)

	sess, dev, err := openSession(args)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	// Raw output is meant for piping, so nothing else goes to stdout.
	if mode != ses.ModeRaw && !noInquiry {
		inq, err := dev.Inquiry(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", inq)
		if !inq.IsEnclosure() {
			log.WithField("peripheral_type", fmt.Sprintf("0x%x", inq.PeripheralType)).
				Warn("device reports no enclosure services, pages may be rejected")
		}
	}

	if name, ok := ses.PageDescription(code); ok && mode == ses.ModeText {
		log.WithField("page", name).Debug("decoding page")
	}
	return sess.Decode(ctx, os.Stdout, code, mode, filter)
}
