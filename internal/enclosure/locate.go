package enclosure

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sigreer/sesdiag/internal/ses"
)

// DefaultLocateTimeout is the default duration for the locate LED
const DefaultLocateTimeout = 30 * time.Second

var (
	ErrElementNotFound = errors.New("element not found in enclosure")
	ErrSlotNotFound    = errors.New("slot not found in enclosure")
)

// Target addresses one individual element: its type, the ordinal of the
// group of that type and the index within the group, counted from zero.
type Target struct {
	Type  ses.ElementType `json:"type"`
	Group int             `json:"group"`
	Index int             `json:"index"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s %d/%d", t.Type, t.Group, t.Index)
}

var elementTypeAliases = map[string]ses.ElementType{
	"device":      ses.TypeDevice,
	"dev":         ses.TypeDevice,
	"psu":         ses.TypePowerSupply,
	"power":       ses.TypePowerSupply,
	"cooling":     ses.TypeCooling,
	"fan":         ses.TypeCooling,
	"temperature": ses.TypeTemperature,
	"temp":        ses.TypeTemperature,
	"alarm":       ses.TypeAudibleAlarm,
	"esc":         ses.TypeESCElectronics,
	"ups":         ses.TypeUPS,
	"display":     ses.TypeDisplay,
	"enclosure":   ses.TypeEnclosure,
	"port":        ses.TypeSCSIPort,
	"voltage":     ses.TypeVoltageSensor,
	"current":     ses.TypeCurrentSensor,
	"array":       ses.TypeArrayDevice,
}

// ParseElementType accepts an alias such as "device" or "fan", or a
// decimal or 0x prefixed type code.
func ParseElementType(s string) (ses.ElementType, error) {
	if t, ok := elementTypeAliases[strings.ToLower(s)]; ok {
		return t, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown element type %q", s)
	}
	return ses.ElementType(v), nil
}

// LocateInfo describes an element for the locate command.
type LocateInfo struct {
	Device     string `json:"device"`
	Target     Target `json:"target"`
	TypeName   string `json:"type_name"`
	Slot       int    `json:"slot,omitempty"`
	Descriptor string `json:"descriptor,omitempty"`
	Status     string `json:"status"`
	Ident      bool   `json:"ident"`
	Fault      bool   `json:"fault"`
	Generation uint32 `json:"generation"`
}

// FindSlot returns the device element whose slot address equals slot.
func FindSlot(st *ses.EnclosureStatusPage, slot int) (Target, error) {
	n := 0
	for _, g := range st.Groups {
		if g.Header.Type != ses.TypeDevice {
			continue
		}
		for i, e := range g.Individual {
			if v, ok := e.Value("Slot address"); ok && int(v) == slot {
				return Target{Type: ses.TypeDevice, Group: n, Index: i}, nil
			}
		}
		n++
	}
	return Target{}, fmt.Errorf("%w: %d", ErrSlotNotFound, slot)
}

// Info returns the current state of an element, with its descriptor text
// when the enclosure reports one.
func (s *Session) Info(ctx context.Context, t Target) (*LocateInfo, error) {
	st, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	e, ok := st.Element(t.Type, t.Group, t.Index)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, t)
	}
	info := &LocateInfo{
		Device:     s.key,
		Target:     t,
		TypeName:   t.Type.String(),
		Status:     e.Code.String(),
		Ident:      e.Flag("Ident"),
		Fault:      e.Flag("Fault sensed") || e.Flag("Fault requested") || e.Flag("Fault reqstd") || e.Flag("Fail"),
		Generation: st.Generation,
	}
	if v, ok := e.Value("Slot address"); ok {
		info.Slot = int(v)
	}
	if d, err := s.Descriptors(ctx); err == nil {
		info.Descriptor = descriptorOf(d, t)
	} else {
		s.log.WithError(err).Debug("element descriptor page unavailable")
	}
	return info, nil
}

func descriptorOf(d *ses.ElementDescriptorPage, t Target) string {
	n := t.Group
	for _, g := range d.Groups {
		if g.Header.Type != t.Type {
			continue
		}
		if n > 0 {
			n--
			continue
		}
		if t.Index < len(g.Individual) {
			return g.Individual[t.Index]
		}
	}
	return ""
}

// SetIndicator sets or clears the ident or fault request of an element.
// The current Enclosure Status page is read first so the control page
// carries its generation code.
func (s *Session) SetIndicator(ctx context.Context, t Target, ind ses.Indicator, on bool) error {
	st, err := s.Status(ctx)
	if err != nil {
		return err
	}
	b, err := ses.BuildElementControl(st, t.Type, t.Group, t.Index, ind, on)
	if err != nil {
		return err
	}
	s.log.WithField("target", t.String()).WithField(ind.String(), on).Info("setting indicator")
	return s.t.SendDiagnostic(ctx, b)
}

// Stop reasons of a timed locate.
const (
	StopTimeout     = "timeout"
	StopInterrupted = "interrupted"
)

// LocateOptions controls LocateWithTimeout.
type LocateOptions struct {
	Duration time.Duration
	// CommandTimeout bounds each control page exchange. Zero means 30s.
	CommandTimeout time.Duration
	// OnStarted is called once the indicator is on.
	OnStarted func()
	// OnStopping is called with the stop reason before the indicator is
	// turned off.
	OnStopping func(reason string)
}

// LocateResult reports how a timed locate ended.
type LocateResult struct {
	StopReason string
	// Elapsed runs from the indicator going on until it went off, or until
	// turning it off failed.
	Elapsed time.Duration
}

// LocateWithTimeout turns on the ident indicator for opts.Duration then
// turns it off again. The indicator is cleared even when ctx is cancelled
// first, in which case the stop reason is StopInterrupted. When turning the
// indicator off fails the result is returned along with the error.
func (s *Session) LocateWithTimeout(ctx context.Context, t Target, opts LocateOptions) (*LocateResult, error) {
	cmdTimeout := opts.CommandTimeout
	if cmdTimeout <= 0 {
		cmdTimeout = 30 * time.Second
	}

	onCtx, onCancel := context.WithTimeout(ctx, cmdTimeout)
	err := s.SetIndicator(onCtx, t, ses.IndicatorIdent, true)
	onCancel()
	if err != nil {
		return nil, fmt.Errorf("failed to turn on LED: %w", err)
	}
	start := time.Now()
	if opts.OnStarted != nil {
		opts.OnStarted()
	}

	res := &LocateResult{StopReason: StopTimeout}
	timer := time.NewTimer(opts.Duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		res.StopReason = StopInterrupted
	}
	if opts.OnStopping != nil {
		opts.OnStopping(res.StopReason)
	}

	offCtx, offCancel := context.WithTimeout(context.WithoutCancel(ctx), cmdTimeout)
	defer offCancel()
	err = s.SetIndicator(offCtx, t, ses.IndicatorIdent, false)
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("failed to turn off LED: %w", err)
	}
	s.log.WithField("target", t.String()).WithField("reason", res.StopReason).Info("locate finished")
	return res, nil
}
