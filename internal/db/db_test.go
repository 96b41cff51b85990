package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigreer/sesdiag/internal/enclosure"
	"github.com/sigreer/sesdiag/internal/ses"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "sub", "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	d, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	d.Close()

	d, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()
	if d.Path() != path {
		t.Fatalf("unexpected path %q", d.Path())
	}
}

func TestRecordChangeReport(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	temp := 31
	target := enclosure.Target{Type: ses.TypeDevice, Group: 0, Index: 3}
	removed := enclosure.Target{Type: ses.TypePowerSupply, Group: 0, Index: 1}
	before := &enclosure.ElementState{Target: target, Status: "OK", Code: uint8(ses.StatusOK)}
	after := &enclosure.ElementState{Target: target, Status: "Critical", Code: uint8(ses.StatusCritical)}
	gone := &enclosure.ElementState{Target: removed, Status: "OK", Code: uint8(ses.StatusOK)}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	r := &enclosure.ChangeReport{
		RunID:      "run-1",
		Device:     "/dev/sg3",
		DetectedAt: now,
		Snapshot: &enclosure.Snapshot{
			Device:     "/dev/sg3",
			CapturedAt: now,
			Generation: 7,
			Critical:   true,
			Elements: []enclosure.ElementState{
				*after,
				{Target: enclosure.Target{Type: ses.TypeTemperature}, Status: "OK", Code: 1, Temperature: &temp},
			},
		},
		Changes: []enclosure.Change{
			{ID: "c1", Target: target, Before: before, After: after},
			{ID: "c2", Target: removed, Before: gone},
		},
	}
	if err := d.Record(ctx, r); err != nil {
		t.Fatalf("record: %v", err)
	}

	polls, err := d.GetRecentPolls("/dev/sg3", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(polls) != 1 || polls[0].Generation != 7 || !polls[0].Critical || polls[0].Changes != 2 || polls[0].Elements != 2 {
		t.Fatalf("unexpected polls: %+v", polls)
	}

	readings, err := d.ReadingsForPoll(polls[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if readings["4/0/0 temperature"] != 31 || len(readings) != 1 {
		t.Fatalf("unexpected readings: %v", readings)
	}

	events, err := d.GetRecentEvents("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	byID := map[string]*ElementEvent{}
	for _, ev := range events {
		byID[ev.ChangeID] = ev
	}
	if ev := byID["c1"]; ev == nil || ev.OldStatus != "OK" || ev.NewStatus != "Critical" || ev.ElementIndex != 3 {
		t.Fatalf("unexpected event c1: %+v", ev)
	}
	if ev := byID["c2"]; ev == nil || ev.NewStatus != "" || ev.ElementType != int(ses.TypePowerSupply) {
		t.Fatalf("unexpected event c2: %+v", ev)
	}

	alerts, err := d.GetAlerts("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	total, unacked, critical, warning, err := d.AlertCount()
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || unacked != 2 || critical != 1 || warning != 1 {
		t.Fatalf("unexpected counts: %d %d %d %d", total, unacked, critical, warning)
	}

	crit, err := d.GetAlerts(SeverityCritical, 0)
	if err != nil || len(crit) != 1 {
		t.Fatalf("unexpected critical alerts: %v %v", crit, err)
	}
	if crit[0].Category != CategoryElementFailed || crit[0].ElementIndex == nil || *crit[0].ElementIndex != 3 {
		t.Fatalf("unexpected critical alert: %+v", crit[0])
	}

	if err := d.AcknowledgeAlert(crit[0].ID); err != nil {
		t.Fatal(err)
	}
	open, err := d.GetUnacknowledgedAlerts()
	if err != nil || len(open) != 1 || open[0].Category != CategoryElementRemoved {
		t.Fatalf("unexpected open alerts: %v %v", open, err)
	}
	n, err := d.AcknowledgeAllAlerts()
	if err != nil || n != 1 {
		t.Fatalf("acknowledge all: %d %v", n, err)
	}

	// Change IDs are unique, so replaying a report fails and rolls back.
	if err := d.Record(ctx, r); err == nil {
		t.Fatal("expected duplicate change id to fail")
	}
	polls, _ = d.GetRecentPolls("", 10)
	if len(polls) != 1 {
		t.Fatalf("expected rollback, found %d polls", len(polls))
	}
}

func TestRecordEventAndCreateAlert(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	since := time.Now().Add(-time.Minute)

	ev := &ElementEvent{ChangeID: "x", Device: "/dev/sg1", ElementType: 1, NewStatus: "OK"}
	if err := d.RecordEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if ev.ID == 0 {
		t.Fatal("expected event id")
	}

	events, err := d.GetEventsSince(since)
	if err != nil || len(events) != 1 || events[0].PollID != 0 {
		t.Fatalf("unexpected events: %v %v", events, err)
	}
	if events, _ := d.GetRecentEvents("/dev/other", 10); len(events) != 0 {
		t.Fatalf("expected device filter to exclude event, got %d", len(events))
	}

	a := &Alert{Severity: SeverityInfo, Category: "manual", Message: "hello"}
	if err := d.CreateAlert(ctx, a); err != nil {
		t.Fatal(err)
	}
	alerts, err := d.GetAlerts(SeverityInfo, 1)
	if err != nil || len(alerts) != 1 || alerts[0].ElementType != nil || alerts[0].Device != "" {
		t.Fatalf("unexpected alerts: %+v %v", alerts, err)
	}
}
