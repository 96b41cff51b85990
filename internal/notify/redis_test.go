package notify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sigreer/sesdiag/internal/enclosure"
	"github.com/sigreer/sesdiag/internal/ses"
)

func TestEncode(t *testing.T) {
	disk := enclosure.Target{Type: ses.TypeDevice, Group: 1, Index: 4}
	tests := []struct {
		desc    string
		report  *enclosure.ChangeReport
		wantNil bool
		wantSub []string
	}{
		{
			desc:    "no changes",
			report:  &enclosure.ChangeReport{Device: "/dev/sg1", Snapshot: &enclosure.Snapshot{}},
			wantNil: true,
		},
		{
			desc: "status change",
			report: &enclosure.ChangeReport{
				RunID:      "run",
				Device:     "/dev/sg1",
				DetectedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
				Snapshot:   &enclosure.Snapshot{Generation: 99},
				Changes: []enclosure.Change{{
					ID:     "id-1",
					Target: disk,
					Before: &enclosure.ElementState{Target: disk, Status: "OK", Code: 1},
					After:  &enclosure.ElementState{Target: disk, Status: "Critical", Code: 2},
				}},
			},
			wantSub: []string{`"run_id":"run"`, `"device":"/dev/sg1"`, `"status":"Critical"`, `"id":"id-1"`},
		},
	}

	for i, tt := range tests {
		b, err := Encode(tt.report)
		if err != nil {
			t.Fatalf("[%02d] test %q, unexpected error: %v", i, tt.desc, err)
		}
		if tt.wantNil {
			if b != nil {
				t.Fatalf("[%02d] test %q, expected no message, got %s", i, tt.desc, b)
			}
			continue
		}
		for _, sub := range tt.wantSub {
			if !strings.Contains(string(b), sub) {
				t.Fatalf("[%02d] test %q, message missing %s: %s", i, tt.desc, sub, b)
			}
		}
		if strings.Contains(string(b), "generation") {
			t.Fatalf("[%02d] test %q, snapshot leaked into message: %s", i, tt.desc, b)
		}

		var back enclosure.ChangeReport
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("[%02d] test %q, message is not a change report: %v", i, tt.desc, err)
		}
		if len(back.Changes) != 1 || back.Changes[0].Target != disk {
			t.Fatalf("[%02d] test %q, unexpected decoded changes: %+v", i, tt.desc, back.Changes)
		}
	}
}

func TestHistoryKey(t *testing.T) {
	if got := HistoryKey("/dev/sg4"); got != "sesdiag:/dev/sg4:changes" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestRecordSkipsEmptyReport(t *testing.T) {
	// A publisher with no client must not be touched for an empty report.
	p := &Publisher{channel: "c"}
	if err := p.Record(context.Background(), &enclosure.ChangeReport{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
