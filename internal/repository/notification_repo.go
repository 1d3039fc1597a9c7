package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sm "station_monitor"
)

type NotificationSQLite struct {
	db *sql.DB
}

func NewNotificationSQLite(db *sql.DB) *NotificationSQLite {
	return &NotificationSQLite{db: db}
}

const (
	selectScheduleByTagSQL = `
		SELECT id, tag_id, breach_id, interval, first_notified_at,
			last_notified_at, notification_count, is_active
		FROM notification_schedules
		WHERE tag_id = ?`

	upsertScheduleSQL = `
		INSERT INTO notification_schedules (
			tag_id, breach_id, interval, first_notified_at, last_notified_at,
			notification_count, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tag_id) DO UPDATE SET
			breach_id = excluded.breach_id,
			interval = excluded.interval,
			first_notified_at = excluded.first_notified_at,
			last_notified_at = excluded.last_notified_at,
			notification_count = excluded.notification_count,
			is_active = excluded.is_active`

	recordNotificationSQL = `
		UPDATE notification_schedules
		SET breach_id = ?, last_notified_at = ?,
			notification_count = notification_count + 1
		WHERE id = ?`

	deactivateScheduleSQL = `
		UPDATE notification_schedules
		SET is_active = 0
		WHERE tag_id = ? AND is_active = 1`

	selectRecipientsByTagSQL = `
		SELECT id, tag_id, email, alert_level, enabled
		FROM notification_recipients
		WHERE tag_id = ? AND enabled = 1`
)

// GetScheduleByTag returns nil with no error when the tag has never alerted.
func (r *NotificationSQLite) GetScheduleByTag(ctx context.Context, tagID int) (*sm.NotificationSchedule, error) {
	row := r.db.QueryRowContext(ctx, selectScheduleByTagSQL, tagID)
	var s sm.NotificationSchedule
	err := row.Scan(
		&s.ID,
		&s.TagID,
		&s.BreachID,
		&s.Interval,
		&s.FirstNotifiedAt,
		&s.LastNotifiedAt,
		&s.NotificationCount,
		&s.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.FirstNotifiedAt = s.FirstNotifiedAt.UTC()
	s.LastNotifiedAt = s.LastNotifiedAt.UTC()
	return &s, nil
}

// UpsertSchedule writes a fresh schedule for the tag, replacing any row left
// from an earlier, resolved condition. One schedule per tag.
func (r *NotificationSQLite) UpsertSchedule(ctx context.Context, s sm.NotificationSchedule) (sm.NotificationSchedule, error) {
	res, err := r.db.ExecContext(ctx, upsertScheduleSQL,
		s.TagID, s.BreachID, s.Interval, s.FirstNotifiedAt.UTC(), s.LastNotifiedAt.UTC(),
		s.NotificationCount, s.IsActive)
	if err != nil {
		return sm.NotificationSchedule{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return sm.NotificationSchedule{}, err
	}
	s.ID = int(id)
	return s, nil
}

func (r *NotificationSQLite) RecordNotification(ctx context.Context, scheduleID, breachID int, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, recordNotificationSQL, breachID, ts.UTC(), scheduleID)
	return err
}

// DeactivateByTag retires the tag's schedule once its condition resolves, so
// the next breach alerts immediately instead of inheriting the old throttle.
func (r *NotificationSQLite) DeactivateByTag(ctx context.Context, tagID int) error {
	_, err := r.db.ExecContext(ctx, deactivateScheduleSQL, tagID)
	return err
}

func (r *NotificationSQLite) ListRecipients(ctx context.Context, tagID int) ([]sm.NotificationRecipient, error) {
	rows, err := r.db.QueryContext(ctx, selectRecipientsByTagSQL, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []sm.NotificationRecipient
	for rows.Next() {
		var rec sm.NotificationRecipient
		if err := rows.Scan(&rec.ID, &rec.TagID, &rec.Email, &rec.AlertLevel, &rec.Enabled); err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}
