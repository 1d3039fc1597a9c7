package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sm "station_monitor"
)

type BreachSQLite struct {
	db *sql.DB
}

func NewBreachSQLite(db *sql.DB) *BreachSQLite {
	return &BreachSQLite{db: db}
}

const (
	insertBreachSQL = `INSERT INTO breaches (tag_id, value, level, timestamp) VALUES (?, ?, ?, ?)`

	breachColumns = `id, tag_id, value, level, acknowledged, acknowledged_by, acknowledged_at, timestamp`

	selectBreachByIDSQL = `SELECT ` + breachColumns + ` FROM breaches WHERE id = ?`

	acknowledgeBreachSQL = `
		UPDATE breaches SET acknowledged = 1, acknowledged_by = ?, acknowledged_at = ?
		WHERE id = ? AND acknowledged = 0`

	deleteBreachesOlderSQL = `DELETE FROM breaches WHERE timestamp < ?`
)

var ErrBreachNotFound = errors.New("breach not found")

func scanBreach(scan func(dest ...interface{}) error) (sm.Breach, error) {
	var b sm.Breach
	var ackAt sql.NullTime
	err := scan(
		&b.ID,
		&b.TagID,
		&b.Value,
		&b.Level,
		&b.Acknowledged,
		&b.AcknowledgedBy,
		&ackAt,
		&b.Timestamp,
	)
	if err != nil {
		return sm.Breach{}, err
	}
	if ackAt.Valid {
		t := ackAt.Time.UTC()
		b.AcknowledgedAt = &t
	}
	b.Timestamp = b.Timestamp.UTC()
	return b, nil
}

func (r *BreachSQLite) Append(ctx context.Context, b sm.Breach) (int, error) {
	ts := b.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	res, err := r.db.ExecContext(ctx, insertBreachSQL, b.TagID, b.Value, b.Level, ts.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return int(id), err
}

func (r *BreachSQLite) GetByID(ctx context.Context, id int) (sm.Breach, error) {
	row := r.db.QueryRowContext(ctx, selectBreachByIDSQL, id)
	b, err := scanBreach(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return sm.Breach{}, ErrBreachNotFound
	}
	return b, err
}

// Acknowledge marks a breach as seen. Acknowledging twice is an error so
// operators never silently overwrite each other.
func (r *BreachSQLite) Acknowledge(ctx context.Context, breachID int, username string, ts time.Time) error {
	res, err := r.db.ExecContext(ctx, acknowledgeBreachSQL, username, ts.UTC(), breachID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("breach %d: already acknowledged or not found", breachID)
	}
	return nil
}

func (r *BreachSQLite) List(ctx context.Context, f BreachFilter) ([]sm.Breach, error) {
	var conds []string
	var args []interface{}
	if f.TagID > 0 {
		conds = append(conds, "tag_id = ?")
		args = append(args, f.TagID)
	}
	if f.UnackOnly {
		conds = append(conds, "acknowledged = 0")
	}
	if f.Level != "" {
		conds = append(conds, "level = ?")
		args = append(args, f.Level)
	}
	query := `SELECT ` + breachColumns + ` FROM breaches`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaches []sm.Breach
	for rows.Next() {
		b, err := scanBreach(rows.Scan)
		if err != nil {
			return nil, err
		}
		breaches = append(breaches, b)
	}
	return breaches, rows.Err()
}

func (r *BreachSQLite) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteBreachesOlderSQL, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
