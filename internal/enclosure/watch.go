package enclosure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sigreer/sesdiag/internal/ses"
)

// ElementState is the monitored part of one individual element status.
type ElementState struct {
	Target
	TypeName         string   `json:"type_name"`
	Status           string   `json:"status"`
	Code             uint8    `json:"code"`
	PredictedFailure bool     `json:"prdfail"`
	Swap             bool     `json:"swap"`
	Temperature      *int     `json:"temperature,omitempty"`
	Volts            *float64 `json:"volts,omitempty"`
	Amps             *float64 `json:"amps,omitempty"`
	FanRPM           *int     `json:"fan_rpm,omitempty"`
}

// Snapshot is the state of every individual element at one poll.
type Snapshot struct {
	Device     string         `json:"device"`
	CapturedAt time.Time      `json:"captured_at"`
	Generation uint32         `json:"generation"`
	Critical   bool           `json:"critical"`
	NonCrit    bool           `json:"non_critical"`
	Unrecov    bool           `json:"unrecoverable"`
	Elements   []ElementState `json:"elements"`
}

// NewSnapshot flattens an Enclosure Status page.
func NewSnapshot(device string, st *ses.EnclosureStatusPage, at time.Time) *Snapshot {
	snap := &Snapshot{
		Device:     device,
		CapturedAt: at,
		Generation: st.Generation,
		Critical:   st.Critical,
		NonCrit:    st.NonCritical,
		Unrecov:    st.Unrecoverable,
	}
	groups := map[ses.ElementType]int{}
	for _, g := range st.Groups {
		n := groups[g.Header.Type]
		groups[g.Header.Type]++
		for i, e := range g.Individual {
			es := ElementState{
				Target:           Target{Type: g.Header.Type, Group: n, Index: i},
				TypeName:         g.Header.Type.String(),
				Status:           e.Code.String(),
				Code:             uint8(e.Code),
				PredictedFailure: e.PredictedFailure,
				Swap:             e.Swap,
			}
			if v, ok := e.TemperatureCelsius(); ok {
				es.Temperature = &v
			}
			if v, ok := e.Volts(); ok {
				es.Volts = &v
			}
			if v, ok := e.Amps(); ok {
				es.Amps = &v
			}
			if v, ok := e.FanSpeedRPM(); ok {
				es.FanRPM = &v
			}
			snap.Elements = append(snap.Elements, es)
		}
	}
	return snap
}

// Change is a status difference of one element between two polls. Before
// is nil for an element that appeared, After for one that disappeared.
type Change struct {
	ID     string        `json:"id"`
	Target Target        `json:"target"`
	Before *ElementState `json:"before,omitempty"`
	After  *ElementState `json:"after,omitempty"`
}

// Alert reports whether the change moved the element into a critical or
// unrecoverable state, or raised predicted failure.
func (c Change) Alert() bool {
	if c.After == nil {
		return false
	}
	switch ses.StatusCode(c.After.Code) {
	case ses.StatusCritical, ses.StatusUnrecoverable:
		return true
	}
	return c.After.PredictedFailure && (c.Before == nil || !c.Before.PredictedFailure)
}

// ChangeReport lists the changes detected between two polls.
type ChangeReport struct {
	RunID      string    `json:"run_id"`
	Device     string    `json:"device"`
	DetectedAt time.Time `json:"detected_at"`
	Snapshot   *Snapshot `json:"-"`
	Changes    []Change  `json:"changes"`
}

// Diff compares two snapshots. Sensor readings are not compared; only
// status code, predicted failure and swap changes are reported.
func Diff(prev, cur *Snapshot) []Change {
	before := map[Target]*ElementState{}
	if prev != nil {
		for i := range prev.Elements {
			before[prev.Elements[i].Target] = &prev.Elements[i]
		}
	}
	var changes []Change
	for i := range cur.Elements {
		after := &cur.Elements[i]
		b, ok := before[after.Target]
		delete(before, after.Target)
		if ok && b.Code == after.Code && b.PredictedFailure == after.PredictedFailure && b.Swap == after.Swap {
			continue
		}
		if !ok && prev == nil {
			continue
		}
		c := Change{ID: uuid.NewString(), Target: after.Target, After: after}
		if ok {
			c.Before = b
		}
		changes = append(changes, c)
	}
	if prev == nil {
		return changes
	}
	for i := range prev.Elements {
		e := &prev.Elements[i]
		if _, gone := before[e.Target]; gone {
			changes = append(changes, Change{ID: uuid.NewString(), Target: e.Target, Before: e})
		}
	}
	return changes
}

// Sink receives every poll of a Watcher. The report carries no changes
// for a poll that found none.
type Sink interface {
	Record(ctx context.Context, r *ChangeReport) error
}

// Watcher polls the Enclosure Status page at a fixed interval.
type Watcher struct {
	Session  *Session
	Interval time.Duration
	Sinks    []Sink
	Log      logrus.FieldLogger

	runID string
	prev  *Snapshot
	now   func() time.Time
}

// Poll reads the status page once and hands the report to every sink. A
// busy enclosure or a changed generation code is logged and skipped, and
// the element layout is re-read on the next poll. Sink failures are
// logged and do not fail the poll.
func (w *Watcher) Poll(ctx context.Context) (*ChangeReport, error) {
	if w.runID == "" {
		w.runID = uuid.NewString()
	}
	if w.now == nil {
		w.now = time.Now
	}
	log := w.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	st, err := w.Session.Status(ctx)
	if err != nil {
		if errors.Is(err, ses.ErrEnclosureBusy) || errors.Is(err, ses.ErrGenerationMismatch) {
			log.WithError(err).Warn("skipping poll")
			return nil, nil
		}
		return nil, err
	}

	snap := NewSnapshot(w.Session.key, st, w.now())
	r := &ChangeReport{
		RunID:      w.runID,
		Device:     w.Session.key,
		DetectedAt: snap.CapturedAt,
		Snapshot:   snap,
		Changes:    Diff(w.prev, snap),
	}
	w.prev = snap

	for _, c := range r.Changes {
		entry := log.WithFields(logrus.Fields{"element": c.Target.String()})
		if c.After != nil {
			entry = entry.WithField("status", c.After.Status)
		}
		if c.Alert() {
			entry.Error("element entered failure state")
		} else {
			entry.Info("element status changed")
		}
	}

	for _, sink := range w.Sinks {
		if err := sink.Record(ctx, r); err != nil {
			log.WithError(err).WithField("sink", fmt.Sprintf("%T", sink)).Warn("recording poll failed")
		}
	}
	return r, nil
}

// Run polls until ctx is cancelled or the transport fails.
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	if _, err := w.Poll(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Session.cache.Cleanup()
			if _, err := w.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
