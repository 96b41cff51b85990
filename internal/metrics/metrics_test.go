package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/sigreer/sesdiag/internal/enclosure"
	"github.com/sigreer/sesdiag/internal/ses"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestExporterRecord(t *testing.T) {
	e := NewExporter(quietLogger())

	temp, rpm := 29, 3000
	volts := 12.05
	fan := enclosure.Target{Type: ses.TypeCooling, Group: 0, Index: 1}
	disk := enclosure.Target{Type: ses.TypeDevice, Group: 0, Index: 0}
	r := &enclosure.ChangeReport{
		Device:     "/dev/sg2",
		DetectedAt: time.Unix(1700000000, 0),
		Snapshot: &enclosure.Snapshot{
			Generation: 5,
			NonCrit:    true,
			Elements: []enclosure.ElementState{
				{Target: disk, Code: uint8(ses.StatusCritical), PredictedFailure: true},
				{Target: fan, Code: uint8(ses.StatusOK), FanRPM: &rpm},
				{Target: enclosure.Target{Type: ses.TypeTemperature}, Code: 1, Temperature: &temp},
				{Target: enclosure.Target{Type: ses.TypeVoltageSensor}, Code: 1, Volts: &volts},
			},
		},
		Changes: []enclosure.Change{{Target: disk, After: &enclosure.ElementState{Target: disk}}},
	}
	if err := e.Record(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		desc string
		got  float64
		want float64
	}{
		{"disk status", testutil.ToFloat64(e.elementStatus.WithLabelValues(labels("/dev/sg2", disk)...)), 2},
		{"disk prdfail", testutil.ToFloat64(e.predictedFail.WithLabelValues(labels("/dev/sg2", disk)...)), 1},
		{"fan rpm", testutil.ToFloat64(e.fanRPM.WithLabelValues(labels("/dev/sg2", fan)...)), 3000},
		{"temperature", testutil.ToFloat64(e.temperature.WithLabelValues("/dev/sg2", ses.TypeTemperature.String(), "0", "0")), 29},
		{"volts", testutil.ToFloat64(e.volts.WithLabelValues("/dev/sg2", ses.TypeVoltageSensor.String(), "0", "0")), 12.05},
		{"non critical", testutil.ToFloat64(e.enclosureFlag.WithLabelValues("/dev/sg2", "non_critical")), 1},
		{"critical", testutil.ToFloat64(e.enclosureFlag.WithLabelValues("/dev/sg2", "critical")), 0},
		{"generation", testutil.ToFloat64(e.generation.WithLabelValues("/dev/sg2")), 5},
		{"polls", testutil.ToFloat64(e.polls.WithLabelValues("/dev/sg2")), 1},
		{"changes", testutil.ToFloat64(e.changes.WithLabelValues("/dev/sg2", ses.TypeDevice.String())), 1},
		{"last poll", testutil.ToFloat64(e.lastPoll.WithLabelValues("/dev/sg2")), 1700000000},
	}
	for i, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("[%02d] test %q, unexpected value: %v != %v", i, tt.desc, tt.want, tt.got)
		}
	}
}

func TestExporterForgetsRemovedElements(t *testing.T) {
	e := NewExporter(quietLogger())
	psu := enclosure.Target{Type: ses.TypePowerSupply, Group: 0, Index: 1}
	ctx := context.Background()

	first := &enclosure.ChangeReport{
		Device:   "d",
		Snapshot: &enclosure.Snapshot{Elements: []enclosure.ElementState{{Target: psu, Code: 1}}},
	}
	if err := e.Record(ctx, first); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(e.elementStatus); n != 1 {
		t.Fatalf("expected 1 series, got %d", n)
	}

	second := &enclosure.ChangeReport{
		Device:   "d",
		Snapshot: &enclosure.Snapshot{},
		Changes:  []enclosure.Change{{Target: psu, Before: &enclosure.ElementState{Target: psu}}},
	}
	if err := e.Record(ctx, second); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(e.elementStatus); n != 0 {
		t.Fatalf("expected removed element series to be dropped, got %d", n)
	}
}

func TestHandler(t *testing.T) {
	e := NewExporter(quietLogger())
	if err := e.Record(context.Background(), &enclosure.ChangeReport{Device: "d"}); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `ses_polls_total{device="d"} 1`) {
		t.Fatalf("polls counter missing from exposition:\n%s", body)
	}

	resp, err = srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("unexpected health status %d", resp.StatusCode)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	e := NewExporter(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
