package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const alertColumns = `id, severity, category, message, device, element_type, type_group, element_index, details, acknowledged, ack_timestamp, timestamp`

// CreateAlert creates a new alert
func (d *DB) CreateAlert(ctx context.Context, alert *Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	result, err := d.conn.ExecContext(ctx, `
		INSERT INTO alerts (severity, category, message, device, element_type, type_group, element_index, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, alert.Severity, alert.Category, alert.Message, nullString(alert.Device),
		alert.ElementType, alert.TypeGroup, alert.ElementIndex, nullString(alert.Details), alert.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	alert.ID, _ = result.LastInsertId()
	return nil
}

// GetUnacknowledgedAlerts returns all unacknowledged alerts
func (d *DB) GetUnacknowledgedAlerts() ([]*Alert, error) {
	rows, err := d.conn.Query(`
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE acknowledged = 0
		ORDER BY timestamp DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unacknowledged alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetAlerts returns alerts with optional filtering
func (d *DB) GetAlerts(severity string, limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error

	if severity != "" {
		rows, err = d.conn.Query(`
			SELECT `+alertColumns+`
			FROM alerts
			WHERE severity = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, severity, limit)
	} else {
		rows, err = d.conn.Query(`
			SELECT `+alertColumns+`
			FROM alerts
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// AcknowledgeAlert marks an alert as acknowledged
func (d *DB) AcknowledgeAlert(id int64) error {
	_, err := d.conn.Exec(`
		UPDATE alerts SET acknowledged = 1, ack_timestamp = ? WHERE id = ?
	`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return nil
}

// AcknowledgeAllAlerts marks all alerts as acknowledged
func (d *DB) AcknowledgeAllAlerts() (int64, error) {
	result, err := d.conn.Exec(`
		UPDATE alerts SET acknowledged = 1, ack_timestamp = ? WHERE acknowledged = 0
	`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge all alerts: %w", err)
	}
	return result.RowsAffected()
}

// AlertCount returns counts of alerts by severity
func (d *DB) AlertCount() (total, unacked, critical, warning int, err error) {
	row := d.conn.QueryRow(`
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN acknowledged = 0 THEN 1 ELSE 0 END), 0) as unacked,
			COALESCE(SUM(CASE WHEN severity = 'critical' AND acknowledged = 0 THEN 1 ELSE 0 END), 0) as critical,
			COALESCE(SUM(CASE WHEN severity = 'warning' AND acknowledged = 0 THEN 1 ELSE 0 END), 0) as warning
		FROM alerts
	`)
	err = row.Scan(&total, &unacked, &critical, &warning)
	return
}

func scanAlerts(rows *sql.Rows) ([]*Alert, error) {
	var alerts []*Alert
	for rows.Next() {
		var alert Alert
		var device, details sql.NullString
		var elementType, typeGroup, elementIndex sql.NullInt64
		var ackTimestamp sql.NullTime
		var acknowledged int

		err := rows.Scan(
			&alert.ID, &alert.Severity, &alert.Category, &alert.Message,
			&device, &elementType, &typeGroup, &elementIndex, &details,
			&acknowledged, &ackTimestamp, &alert.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		alert.Device = device.String
		alert.Details = details.String
		alert.Acknowledged = acknowledged == 1
		if ackTimestamp.Valid {
			alert.AckTimestamp = &ackTimestamp.Time
		}
		alert.ElementType = nullInt(elementType)
		alert.TypeGroup = nullInt(typeGroup)
		alert.ElementIndex = nullInt(elementIndex)

		alerts = append(alerts, &alert)
	}

	return alerts, rows.Err()
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
