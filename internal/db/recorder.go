package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sigreer/sesdiag/internal/enclosure"
	"github.com/sigreer/sesdiag/internal/ses"
)

// Record stores one watch poll: the poll row, a row per element change,
// sensor readings and alerts for failures. It implements enclosure.Sink.
func (d *DB) Record(ctx context.Context, r *enclosure.ChangeReport) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	snap := r.Snapshot
	if snap == nil {
		snap = &enclosure.Snapshot{Device: r.Device, CapturedAt: r.DetectedAt}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO polls (run_id, device, generation, critical, non_critical, unrecoverable, elements, changes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Device, snap.Generation, snap.Critical, snap.NonCrit, snap.Unrecov,
		len(snap.Elements), len(r.Changes), r.DetectedAt)
	if err != nil {
		return fmt.Errorf("failed to record poll: %w", err)
	}
	pollID, err := result.LastInsertId()
	if err != nil {
		return err
	}

	for _, e := range snap.Elements {
		if err := insertReadings(ctx, tx, pollID, e); err != nil {
			return err
		}
	}

	for _, c := range r.Changes {
		details, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode change: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO element_events (change_id, poll_id, device, element_type, type_group, element_index, old_status, new_status, details, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, pollID, r.Device, int(c.Target.Type), c.Target.Group, c.Target.Index,
			nullString(statusOf(c.Before)), nullString(statusOf(c.After)), string(details), r.DetectedAt)
		if err != nil {
			return fmt.Errorf("failed to record event: %w", err)
		}

		alert := alertFor(r.Device, c)
		if alert == nil {
			continue
		}
		typ, group, index := int(c.Target.Type), c.Target.Group, c.Target.Index
		_, err = tx.ExecContext(ctx, `
			INSERT INTO alerts (severity, category, message, device, element_type, type_group, element_index, details, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, alert.Severity, alert.Category, alert.Message, r.Device, typ, group, index, string(details), r.DetectedAt)
		if err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}
	}

	return tx.Commit()
}

func insertReadings(ctx context.Context, tx *sql.Tx, pollID int64, e enclosure.ElementState) error {
	readings := map[string]float64{}
	if e.Temperature != nil {
		readings["temperature"] = float64(*e.Temperature)
	}
	if e.Volts != nil {
		readings["volts"] = *e.Volts
	}
	if e.Amps != nil {
		readings["amps"] = *e.Amps
	}
	if e.FanRPM != nil {
		readings["fan_rpm"] = float64(*e.FanRPM)
	}
	for q, v := range readings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO readings (poll_id, element_type, type_group, element_index, quantity, value)
			VALUES (?, ?, ?, ?, ?, ?)
		`, pollID, int(e.Type), e.Group, e.Index, q, v)
		if err != nil {
			return fmt.Errorf("failed to record reading: %w", err)
		}
	}
	return nil
}

func statusOf(e *enclosure.ElementState) string {
	if e == nil {
		return ""
	}
	return e.Status
}

// alertFor returns the alert a change raises, or nil.
func alertFor(device string, c enclosure.Change) *Alert {
	switch {
	case c.After == nil:
		return &Alert{
			Severity: SeverityWarning,
			Category: CategoryElementRemoved,
			Message:  fmt.Sprintf("%s: %s no longer reported", device, c.Target),
		}
	case !c.Alert():
		return nil
	case c.After.Code == uint8(ses.StatusCritical) || c.After.Code == uint8(ses.StatusUnrecoverable):
		return &Alert{
			Severity: SeverityCritical,
			Category: CategoryElementFailed,
			Message:  fmt.Sprintf("%s: %s is %s", device, c.Target, c.After.Status),
		}
	default:
		return &Alert{
			Severity: SeverityWarning,
			Category: CategoryPredictedFailure,
			Message:  fmt.Sprintf("%s: %s predicts failure", device, c.Target),
		}
	}
}

// ReadingsForPoll returns the sensor readings of one poll keyed by
// "type/group/index quantity".
func (d *DB) ReadingsForPoll(pollID int64) (map[string]float64, error) {
	rows, err := d.conn.Query(`
		SELECT element_type, type_group, element_index, quantity, value
		FROM readings WHERE poll_id = ?
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var typ, group, index int
		var q string
		var v float64
		if err := rows.Scan(&typ, &group, &index, &q, &v); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		out[fmt.Sprintf("%d/%d/%d %s", typ, group, index, q)] = v
	}
	return out, rows.Err()
}

// GetRecentPolls returns the most recent polls of a device, or of all
// devices when device is empty.
func (d *DB) GetRecentPolls(device string, limit int) ([]*Poll, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
		SELECT id, run_id, device, generation, critical, non_critical, unrecoverable, elements, changes, timestamp
		FROM polls
		WHERE ? = '' OR device = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, device, device, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}
	defer rows.Close()

	var polls []*Poll
	for rows.Next() {
		var p Poll
		if err := rows.Scan(&p.ID, &p.RunID, &p.Device, &p.Generation, &p.Critical, &p.NonCritical,
			&p.Unrecoverable, &p.Elements, &p.Changes, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, &p)
	}
	return polls, rows.Err()
}
