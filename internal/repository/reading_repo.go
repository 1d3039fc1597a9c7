package repository

import (
	"context"
	"database/sql"
	"time"

	sm "station_monitor"
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite {
	return &ReadingSQLite{db: db}
}

const (
	insertReadingSQL = `INSERT INTO readings (station_id, tag_id, value, timestamp) VALUES (?, ?, ?, ?)`

	insertAlarmEventSQL = `INSERT INTO alarm_events (tag_id, station_id, value, timestamp) VALUES (?, ?, ?, ?)`

	selectReadingsByTagSQL = `
		SELECT id, station_id, tag_id, value, timestamp
		FROM readings
		WHERE tag_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC
		LIMIT ?`
)

func (r *ReadingSQLite) Append(ctx context.Context, reading sm.Reading) error {
	ts := reading.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		reading.StationID, reading.TagID, reading.Value, ts.UTC())
	return err
}

func (r *ReadingSQLite) AppendAlarmEvent(ctx context.Context, e sm.AlarmEvent) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, insertAlarmEventSQL,
		e.TagID, e.StationID, e.Value, ts.UTC())
	return err
}

func (r *ReadingSQLite) ListByTag(ctx context.Context, tagID int, from, to time.Time, limit int) ([]sm.Reading, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, selectReadingsByTagSQL, tagID, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []sm.Reading
	for rows.Next() {
		var reading sm.Reading
		if err := rows.Scan(
			&reading.ID,
			&reading.StationID,
			&reading.TagID,
			&reading.Value,
			&reading.Timestamp,
		); err != nil {
			return nil, err
		}
		reading.Timestamp = reading.Timestamp.UTC()
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}
