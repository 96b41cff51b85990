package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const eventColumns = `id, change_id, poll_id, device, element_type, type_group, element_index, old_status, new_status, details, timestamp`

// RecordEvent logs an element status transition
func (d *DB) RecordEvent(ctx context.Context, ev *ElementEvent) error {
	var pollID sql.NullInt64
	if ev.PollID != 0 {
		pollID = sql.NullInt64{Int64: ev.PollID, Valid: true}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	result, err := d.conn.ExecContext(ctx, `
		INSERT INTO element_events (change_id, poll_id, device, element_type, type_group, element_index, old_status, new_status, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ChangeID, pollID, ev.Device, ev.ElementType, ev.TypeGroup, ev.ElementIndex,
		nullString(ev.OldStatus), nullString(ev.NewStatus), nullString(ev.Details), ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	ev.ID, _ = result.LastInsertId()
	return nil
}

// GetRecentEvents returns the most recent events, optionally for one device
func (d *DB) GetRecentEvents(device string, limit int) ([]*ElementEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if device != "" {
		rows, err = d.conn.Query(`
			SELECT `+eventColumns+`
			FROM element_events
			WHERE device = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, device, limit)
	} else {
		rows, err = d.conn.Query(`
			SELECT `+eventColumns+`
			FROM element_events
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventsSince returns events since a given timestamp
func (d *DB) GetEventsSince(since time.Time) ([]*ElementEvent, error) {
	rows, err := d.conn.Query(`
		SELECT `+eventColumns+`
		FROM element_events
		WHERE timestamp > ?
		ORDER BY timestamp DESC, id DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query events since: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*ElementEvent, error) {
	var events []*ElementEvent
	for rows.Next() {
		var ev ElementEvent
		var pollID sql.NullInt64
		var oldStatus, newStatus, details sql.NullString

		err := rows.Scan(
			&ev.ID, &ev.ChangeID, &pollID, &ev.Device,
			&ev.ElementType, &ev.TypeGroup, &ev.ElementIndex,
			&oldStatus, &newStatus, &details, &ev.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ev.PollID = pollID.Int64
		ev.OldStatus = oldStatus.String
		ev.NewStatus = newStatus.String
		ev.Details = details.String

		events = append(events, &ev)
	}

	return events, rows.Err()
}
