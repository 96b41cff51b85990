package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigreer/sesdiag/internal/ses"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file|->",
	Short: "Decode a captured diagnostic page without a device",
	Long: `Decode a diagnostic page captured earlier, without opening a device.

The input is hex bytes separated by whitespace or commas, with # comment
lines, or the page as binary with --binary. It must start with the 4-byte
page header.

Status pages need the element layout from a configuration page capture,
given with --config-page. When the two captures have different generation
codes the page is rejected.

Examples:
  sesdiag decode --page 1 config.hex
  sesdiag decode --page 2 --config-page config.hex status.hex
  cat status.hex | sesdiag decode --page 2 --config-page config.hex -`,
	Args: exactArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringP("page", "p", "", "page code of the capture (default: byte 0 of the input)")
	decodeCmd.Flags().StringP("config-page", "c", "", "configuration page capture for status pages")
	decodeCmd.Flags().Bool("binary", false, "input is binary rather than hex")
	decodeCmd.Flags().BoolP("hex", "H", false, "print the page in hex")
	decodeCmd.Flags().BoolP("inner-hex", "i", false, "print each record in hex")
	decodeCmd.Flags().BoolP("raw", "r", false, "print the page body as raw hex bytes")
	decodeCmd.Flags().BoolP("filter", "f", false, "omit status fields that are clear")
	decodeCmd.MarkFlagsMutuallyExclusive("hex", "inner-hex", "raw")
	rootCmd.AddCommand(decodeCmd)
}

func readCapture(name string, binary bool) ([]byte, error) {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	if binary {
		return io.ReadAll(r)
	}
	return readHexCapture(r)
}

// readHexCapture parses hex line by line. ReadHex limits a single call to
// one control page body while a captured page may be longer.
func readHexCapture(r io.Reader) ([]byte, error) {
	var out []byte
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		b, err := ses.ReadHex(strings.NewReader(sc.Text()))
		if err != nil {
			var he *ses.HexError
			if errors.As(err, &he) {
				he.Line = line
			}
			return nil, err
		}
		out = append(out, b...)
	}
	return out, sc.Err()
}

func runDecode(cmd *cobra.Command, args []string) error {
	pageArg, _ := cmd.Flags().GetString("page")
	cfgPage, _ := cmd.Flags().GetString("config-page")
	binary, _ := cmd.Flags().GetBool("binary")
	filter, _ := cmd.Flags().GetBool("filter")

	raw, err := readCapture(args[0], binary)
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	if len(raw) == 0 {
		return usageErr(fmt.Errorf("%s: no page data", args[0]))
	}
	code := raw[0]
	if pageArg != "" {
		if code, err = parseByte(pageArg); err != nil {
			return err
		}
	}

	opts := ses.DecodeOptions{Mode: modeFromFlags(cmd), Filter: filter, Log: log}
	if cfgPage != "" {
		b, err := readCapture(cfgPage, binary)
		if err != nil {
			return fmt.Errorf("reading %s: %w", cfgPage, err)
		}
		hm := ses.NewHeaderMap(cfg.MaxElementHeaders)
		err = hm.UnmarshalBinary(b)
		for _, w := range hm.Warnings {
			log.WithField("page", "0x01").Warn(w)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", cfgPage, err)
		}
		opts.Headers = hm
	}
	return ses.DecodePage(os.Stdout, code, raw, opts)
}
