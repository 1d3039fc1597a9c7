package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sm "station_monitor"
)

type StationSQLite struct {
	db *sql.DB
}

func NewStationSQLite(db *sql.DB) *StationSQLite {
	return &StationSQLite{db: db}
}

const (
	stationColumns = `
		id, station_name, endpoint_url, active, security_policy, security_mode,
		username, password, connection_timeout_ms, session_timeout_ms,
		secure_timeout_ms, request_timeout_ms, acknowledge_timeout_ms,
		poll_interval_ms, last_connected, connection_status, created_at`

	selectStationsSQL       = `SELECT` + stationColumns + ` FROM stations ORDER BY station_name`
	selectActiveStationsSQL = `SELECT` + stationColumns + ` FROM stations WHERE active = 1 ORDER BY station_name`
	selectStationByIDSQL    = `SELECT` + stationColumns + ` FROM stations WHERE id = ?`

	selectStationStatusSQL = `SELECT connection_status FROM stations WHERE id = ?`
	updateStationStatusSQL = `UPDATE stations SET connection_status = ? WHERE id = ?`
	updateLastConnectedSQL = `UPDATE stations SET last_connected = ? WHERE id = ?`

	insertConnectionLogSQL = `INSERT INTO connection_log (station_id, status, timestamp) VALUES (?, ?, ?)`

	selectStationSummarySQL = `
		SELECT
			COUNT(CASE WHEN active = 1 THEN 1 END),
			COUNT(CASE WHEN active = 1 AND connection_status = 'Connected' THEN 1 END)
		FROM stations`
)

func scanStation(scan func(dest ...interface{}) error) (sm.StationConfig, error) {
	var s sm.StationConfig
	var lastConnected sql.NullTime
	err := scan(
		&s.ID,
		&s.StationName,
		&s.EndpointURL,
		&s.Active,
		&s.SecurityPolicy,
		&s.SecurityMode,
		&s.Username,
		&s.Password,
		&s.ConnectionTimeout,
		&s.SessionTimeout,
		&s.SecureTimeout,
		&s.RequestTimeout,
		&s.AcknowledgeTimeout,
		&s.PollInterval,
		&lastConnected,
		&s.ConnectionStatus,
		&s.CreatedAt,
	)
	if err != nil {
		return sm.StationConfig{}, err
	}
	if lastConnected.Valid {
		t := lastConnected.Time.UTC()
		s.LastConnected = &t
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

func (r *StationSQLite) list(ctx context.Context, query string) ([]sm.StationConfig, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []sm.StationConfig
	for rows.Next() {
		s, err := scanStation(rows.Scan)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

func (r *StationSQLite) List(ctx context.Context) ([]sm.StationConfig, error) {
	return r.list(ctx, selectStationsSQL)
}

func (r *StationSQLite) ListActive(ctx context.Context) ([]sm.StationConfig, error) {
	return r.list(ctx, selectActiveStationsSQL)
}

func (r *StationSQLite) GetByID(ctx context.Context, id int) (sm.StationConfig, error) {
	row := r.db.QueryRowContext(ctx, selectStationByIDSQL, id)
	s, err := scanStation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return sm.StationConfig{}, fmt.Errorf("station %d not found", id)
	}
	return s, err
}

// SetConnectionStatus updates the station row and, when the online/offline
// side of the status actually flips, appends a connection_log row in the
// same transaction.
func (r *StationSQLite) SetConnectionStatus(ctx context.Context, stationID int, status string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var previous string
	if err := tx.QueryRowContext(ctx, selectStationStatusSQL, stationID).Scan(&previous); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, updateStationStatusSQL, status, stationID); err != nil {
		return err
	}
	if onlineState(status) != onlineState(previous) {
		_, err := tx.ExecContext(ctx, insertConnectionLogSQL,
			stationID, onlineState(status), time.Now().UTC())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func onlineState(status string) string {
	if status == sm.StatusConnected {
		return "online"
	}
	return "offline"
}

func (r *StationSQLite) SetLastConnected(ctx context.Context, stationID int, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, updateLastConnectedSQL, ts.UTC(), stationID)
	return err
}

func (r *StationSQLite) Summary(ctx context.Context) (sm.StationSummary, error) {
	var s sm.StationSummary
	err := r.db.QueryRowContext(ctx, selectStationSummarySQL).Scan(&s.TotalActive, &s.TotalConnected)
	return s, err
}
