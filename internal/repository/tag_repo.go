package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sm "station_monitor"
)

type TagSQLite struct {
	db *sql.DB
}

func NewTagSQLite(db *sql.DB) *TagSQLite {
	return &TagSQLite{db: db}
}

const (
	tagColumns = `
		id, station_id, node_id, tag_name, tag_units, data_type, access_level,
		min_value, max_value, warning_level, critical_level, threshold_active,
		is_boolean_control, is_alarm, sampling_interval_s,
		sample_on_whole_number_change, last_whole_number, last_value, last_updated`

	selectTagsByStationSQL = `SELECT` + tagColumns + ` FROM tags WHERE station_id = ? ORDER BY tag_name`
	selectTagByIDSQL       = `SELECT` + tagColumns + ` FROM tags WHERE id = ?`

	updateTagLastValueSQL   = `UPDATE tags SET last_value = ?, last_updated = ? WHERE id = ?`
	updateTagWholeNumberSQL = `UPDATE tags SET last_whole_number = ? WHERE id = ?`
)

func scanTag(scan func(dest ...interface{}) error) (sm.TagConfig, error) {
	var t sm.TagConfig
	var minV, maxV, warnV, critV sql.NullFloat64
	var lastWhole sql.NullInt64
	var lastUpdated sql.NullTime
	err := scan(
		&t.ID,
		&t.StationID,
		&t.NodeID,
		&t.TagName,
		&t.TagUnits,
		&t.DataType,
		&t.AccessLevel,
		&minV,
		&maxV,
		&warnV,
		&critV,
		&t.ThresholdActive,
		&t.IsBooleanControl,
		&t.IsAlarm,
		&t.SamplingInterval,
		&t.SampleOnWholeNumberChange,
		&lastWhole,
		&t.LastValue,
		&lastUpdated,
	)
	if err != nil {
		return sm.TagConfig{}, err
	}
	if minV.Valid {
		t.MinValue = &minV.Float64
	}
	if maxV.Valid {
		t.MaxValue = &maxV.Float64
	}
	if warnV.Valid {
		t.WarningLevel = &warnV.Float64
	}
	if critV.Valid {
		t.CriticalLevel = &critV.Float64
	}
	if lastWhole.Valid {
		whole := int(lastWhole.Int64)
		t.LastWholeNumber = &whole
	}
	if lastUpdated.Valid {
		ts := lastUpdated.Time.UTC()
		t.LastUpdated = &ts
	}
	return t, nil
}

func (r *TagSQLite) ListByStation(ctx context.Context, stationID int) ([]sm.TagConfig, error) {
	rows, err := r.db.QueryContext(ctx, selectTagsByStationSQL, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []sm.TagConfig
	for rows.Next() {
		t, err := scanTag(rows.Scan)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *TagSQLite) GetByID(ctx context.Context, id int) (sm.TagConfig, error) {
	row := r.db.QueryRowContext(ctx, selectTagByIDSQL, id)
	t, err := scanTag(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return sm.TagConfig{}, fmt.Errorf("tag %d not found", id)
	}
	return t, err
}

func (r *TagSQLite) UpdateLastValue(ctx context.Context, tagID int, value string, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, updateTagLastValueSQL, value, ts.UTC(), tagID)
	return err
}

func (r *TagSQLite) UpdateLastWholeNumber(ctx context.Context, tagID int, whole int) error {
	_, err := r.db.ExecContext(ctx, updateTagWholeNumberSQL, whole, tagID)
	return err
}
