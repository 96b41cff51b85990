package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigreer/sesdiag/internal/enclosure"
	"github.com/sigreer/sesdiag/internal/ses"
)

// LocateResponse is the JSON response structure for application integration
type LocateResponse struct {
	Success    bool    `json:"success"`
	Action     string  `json:"action"`    // "on", "off", "timed", "info"
	LEDState   string  `json:"led_state"` // "on", "off", "unknown"
	Device     string  `json:"device"`
	Element    string  `json:"element"`
	Type       string  `json:"type,omitempty"`
	Group      int     `json:"group"`
	Index      int     `json:"index"`
	Slot       *int    `json:"slot,omitempty"`
	Descriptor string  `json:"descriptor,omitempty"`
	Status     string  `json:"status,omitempty"`
	Fault      bool    `json:"fault,omitempty"`
	Duration   float64 `json:"duration_seconds,omitempty"` // How long LED was on
	StopReason string  `json:"stop_reason,omitempty"`      // "timeout", "interrupted", "manual"
	Timestamp  string  `json:"timestamp"`
	Error      string  `json:"error,omitempty"`
}

var locateCmd = &cobra.Command{
	Use:   "locate [device]",
	Short: "Flash the identify LED of an enclosure element",
	Long: `Set the identify (locate) indicator of one element of the enclosure.

The element is chosen by --slot, the slot address of a drive bay, or by
--type with --group and --index, counted from zero in the order of the
configuration page. Types can be given as a name (device, fan, psu, temp,
voltage, current, ...) or as a type code.

The control page is built from the current Enclosure Status page with only
the chosen element selected, so other elements keep their state.

Modes:
  (default)    Flash LED for --timeout duration, then turn off
  --on         Turn LED on and exit (for external app control)
  --off        Turn LED off
  --info-only  Show element state without changing LED

Examples:
  sesdiag locate --slot 5 /dev/sg3                  # Flash bay 5 for 30s
  sesdiag locate --slot 5 --timeout 2m /dev/sg3
  sesdiag locate --type fan --index 1 --on /dev/sg3
  sesdiag locate --slot 5 --off --json /dev/sg3`,
	Args: maxArgs(1),
	RunE: runLocate,
}

func init() {
	locateCmd.Flags().String("type", "device", "element type name or code")
	locateCmd.Flags().Int("group", 0, "ordinal of the element group of that type")
	locateCmd.Flags().Int("index", -1, "element index within the group")
	locateCmd.Flags().Int("slot", -1, "device slot address")
	locateCmd.Flags().DurationP("timeout", "t", enclosure.DefaultLocateTimeout, "LED flash duration (e.g., 30s, 1m)")
	locateCmd.Flags().Bool("json", false, "Output result as JSON (for application integration)")
	locateCmd.Flags().Bool("info-only", false, "Only show element info, don't change LED")
	locateCmd.Flags().Bool("on", false, "Turn LED on and exit immediately (for external control)")
	locateCmd.Flags().Bool("off", false, "Turn LED off")
	locateCmd.Flags().Bool("fault", false, "Use the fault indicator instead of ident (with --on/--off)")
	locateCmd.MarkFlagsMutuallyExclusive("on", "off", "info-only")
	locateCmd.MarkFlagsMutuallyExclusive("slot", "index")
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	typeArg, _ := cmd.Flags().GetString("type")
	group, _ := cmd.Flags().GetInt("group")
	index, _ := cmd.Flags().GetInt("index")
	slot, _ := cmd.Flags().GetInt("slot")
	duration, _ := cmd.Flags().GetDuration("timeout")
	jsonOut, _ := cmd.Flags().GetBool("json")
	infoOnly, _ := cmd.Flags().GetBool("info-only")
	turnOn, _ := cmd.Flags().GetBool("on")
	turnOff, _ := cmd.Flags().GetBool("off")
	fault, _ := cmd.Flags().GetBool("fault")

	fail := func(err error, info *enclosure.LocateInfo) error {
		if jsonOut {
			outputError(err.Error(), info)
		}
		return err
	}

	if slot < 0 && index < 0 {
		return fail(usageErr(errors.New("one of --slot or --index is required")), nil)
	}
	ind := ses.IndicatorIdent
	if fault {
		if !turnOn && !turnOff {
			return fail(usageErr(errors.New("--fault needs --on or --off")), nil)
		}
		ind = ses.IndicatorFault
	}

	sess, dev, err := openSession(args)
	if err != nil {
		return fail(err, nil)
	}
	defer dev.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	var target enclosure.Target
	if slot >= 0 {
		st, err := sess.Status(ctx)
		if err != nil {
			return fail(err, nil)
		}
		if target, err = enclosure.FindSlot(st, slot); err != nil {
			return fail(err, nil)
		}
	} else {
		t, err := enclosure.ParseElementType(typeArg)
		if err != nil {
			return fail(usageErr(err), nil)
		}
		target = enclosure.Target{Type: t, Group: group, Index: index}
	}

	info, err := sess.Info(ctx, target)
	if err != nil {
		return fail(err, nil)
	}

	// Info-only mode: just display the element and exit
	if infoOnly {
		led := "off"
		if info.Ident {
			led = "on"
		}
		resp := buildResponse(info, "info", led, "", 0)
		if jsonOut {
			outputJSON(resp)
		} else {
			fmt.Printf("Device:     %s\n", info.Device)
			fmt.Printf("Element:    %s\n", info.Target)
			if info.Descriptor != "" {
				fmt.Printf("Descriptor: %s\n", info.Descriptor)
			}
			if info.Target.Type == ses.TypeDevice {
				fmt.Printf("Slot:       %d\n", info.Slot)
			}
			fmt.Printf("Status:     %s\n", info.Status)
			fmt.Printf("Ident:      %s\n", onOff(info.Ident))
			fmt.Printf("Fault:      %s\n", onOff(info.Fault))
		}
		return nil
	}

	if turnOn || turnOff {
		action, state := "on", "on"
		if turnOff {
			action, state = "off", "off"
		}
		if err := sess.SetIndicator(ctx, target, ind, turnOn); err != nil {
			return fail(err, info)
		}
		reason := ""
		if turnOff {
			reason = "manual"
		}
		if jsonOut {
			outputJSON(buildResponse(info, action, state, reason, 0))
		} else {
			fmt.Printf("%s %s for %s\n", ledName(ind), strings.ToUpper(state), describe(info))
		}
		return nil
	}

	// Timed locate mode (default). ctx above only bounds the lookup.
	res, err := sess.LocateWithTimeout(cmd.Context(), target, enclosure.LocateOptions{
		Duration:       duration,
		CommandTimeout: cfg.Timeout,
		OnStarted: func() {
			if jsonOut {
				outputJSON(buildResponse(info, "timed", "on", "", 0))
			} else {
				fmt.Printf("LED ON for %s - will turn off in %v\n", describe(info), duration)
			}
		},
		OnStopping: func(reason string) {
			if reason == enclosure.StopInterrupted && !jsonOut {
				fmt.Println("\nInterrupted, turning off LED...")
			}
		},
	})
	if err != nil {
		if res == nil {
			return fail(err, info)
		}
		if jsonOut {
			resp := buildResponse(info, "timed", "on", res.StopReason, res.Elapsed.Seconds())
			resp.Success = false
			resp.Error = err.Error()
			outputJSON(resp)
		}
		return err
	}

	if jsonOut {
		outputJSON(buildResponse(info, "timed", "off", res.StopReason, res.Elapsed.Seconds()))
	} else {
		fmt.Printf("LED OFF (was on for %v)\n", res.Elapsed.Round(time.Second))
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func ledName(ind ses.Indicator) string {
	if ind == ses.IndicatorFault {
		return "Fault LED"
	}
	return "LED"
}

func describe(info *enclosure.LocateInfo) string {
	s := info.Target.String()
	if info.Target.Type == ses.TypeDevice {
		s = fmt.Sprintf("slot %d (%s)", info.Slot, s)
	}
	if info.Descriptor != "" {
		s += " " + info.Descriptor
	}
	return s
}

func buildResponse(info *enclosure.LocateInfo, action, ledState, stopReason string, duration float64) *LocateResponse {
	resp := &LocateResponse{
		Success:   true,
		Action:    action,
		LEDState:  ledState,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	fillResponse(resp, info)
	if stopReason != "" {
		resp.StopReason = stopReason
	}
	if duration > 0 {
		resp.Duration = duration
	}
	return resp
}

func fillResponse(resp *LocateResponse, info *enclosure.LocateInfo) {
	if info == nil {
		return
	}
	resp.Device = info.Device
	resp.Element = info.Target.String()
	resp.Type = info.TypeName
	resp.Group = info.Target.Group
	resp.Index = info.Target.Index
	if info.Target.Type == ses.TypeDevice {
		slot := info.Slot
		resp.Slot = &slot
	}
	resp.Descriptor = info.Descriptor
	resp.Status = info.Status
	resp.Fault = info.Fault
}

func outputJSON(resp *LocateResponse) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(resp)
}

func outputError(errMsg string, info *enclosure.LocateInfo) {
	resp := &LocateResponse{
		Success:   false,
		Action:    "error",
		LEDState:  "unknown",
		Error:     errMsg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	fillResponse(resp, info)
	outputJSON(resp)
}
