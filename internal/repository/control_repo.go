package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sm "station_monitor"
)

type ControlSQLite struct {
	db *sql.DB
}

func NewControlSQLite(db *sql.DB) *ControlSQLite {
	return &ControlSQLite{db: db}
}

var ErrRequestNotFound = errors.New("control change request not found")

const (
	controlStateColumns = `
		id, tag_id, tag_type, current_value, plc_value, is_synced_with_plc,
		sync_error, requires_confirmation, confirmation_timeout_s, rate_limit_s,
		danger_level, description, last_changed_by, last_changed_at`

	selectControlStateByTagSQL = `SELECT` + controlStateColumns + ` FROM control_states WHERE tag_id = ?`
	selectControlStateByIDSQL  = `SELECT` + controlStateColumns + ` FROM control_states WHERE id = ?`
	selectControlStatesSQL     = `SELECT` + controlStateColumns + ` FROM control_states ORDER BY id`

	upsertControlStateSQL = `
		INSERT INTO control_states (
			tag_id, tag_type, current_value, plc_value, is_synced_with_plc,
			sync_error, requires_confirmation, confirmation_timeout_s, rate_limit_s,
			danger_level, description, last_changed_by, last_changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tag_id) DO UPDATE SET
			current_value=excluded.current_value,
			plc_value=excluded.plc_value,
			is_synced_with_plc=excluded.is_synced_with_plc,
			sync_error=excluded.sync_error,
			last_changed_by=excluded.last_changed_by,
			last_changed_at=excluded.last_changed_at`

	insertControlHistorySQL = `
		INSERT INTO control_history (
			control_id, change_type, requested_by, confirmed_by, previous_value,
			requested_value, final_value, reason, error_message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectControlHistorySQL = `
		SELECT id, control_id, change_type, requested_by, confirmed_by,
			previous_value, requested_value, final_value, reason, error_message, timestamp
		FROM control_history
		WHERE control_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`

	insertControlRequestSQL = `
		INSERT INTO control_requests (
			control_id, requested_value, reason, status, confirmation_token,
			expires_at, requested_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectRequestByTokenSQL = `
		SELECT id, control_id, requested_value, reason, status, confirmation_token,
			expires_at, requested_by, confirmed_by, confirmed_at, created_at
		FROM control_requests
		WHERE confirmation_token = ?`

	updateRequestStatusSQL = `
		UPDATE control_requests SET status = ?, confirmed_by = ?, confirmed_at = ?
		WHERE id = ?`

	selectActivePermissionSQL = `
		SELECT COUNT(1) FROM control_permissions
		WHERE user_id = ? AND control_id = ? AND is_active = 1
			AND (expires_at IS NULL OR expires_at > ?)`
)

func scanControlState(scan func(dest ...interface{}) error) (sm.ControlState, error) {
	var s sm.ControlState
	var changedBy sql.NullInt64
	err := scan(
		&s.ID,
		&s.TagID,
		&s.TagType,
		&s.CurrentValue,
		&s.PLCValue,
		&s.IsSyncedWithPLC,
		&s.SyncError,
		&s.RequiresConfirmation,
		&s.ConfirmationTimeout,
		&s.RateLimitSeconds,
		&s.DangerLevel,
		&s.Description,
		&changedBy,
		&s.LastChangedAt,
	)
	if err != nil {
		return sm.ControlState{}, err
	}
	if changedBy.Valid {
		s.LastChangedBy = int(changedBy.Int64)
	}
	s.LastChangedAt = s.LastChangedAt.UTC()
	return s, nil
}

// GetStateByTag returns nil with no error when the tag has no control state
// yet, so callers can create one lazily on the first write.
func (r *ControlSQLite) GetStateByTag(ctx context.Context, tagID int) (*sm.ControlState, error) {
	row := r.db.QueryRowContext(ctx, selectControlStateByTagSQL, tagID)
	s, err := scanControlState(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ControlSQLite) GetStateByID(ctx context.Context, id int) (sm.ControlState, error) {
	row := r.db.QueryRowContext(ctx, selectControlStateByIDSQL, id)
	s, err := scanControlState(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return sm.ControlState{}, fmt.Errorf("control %d not found", id)
	}
	return s, err
}

func (r *ControlSQLite) ListStates(ctx context.Context) ([]sm.ControlState, error) {
	rows, err := r.db.QueryContext(ctx, selectControlStatesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []sm.ControlState
	for rows.Next() {
		s, err := scanControlState(rows.Scan)
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// SaveExecution persists the post-write control state and its audit row in
// one transaction; neither lands without the other.
func (r *ControlSQLite) SaveExecution(ctx context.Context, state sm.ControlState, hist sm.ControlHistory) (sm.ControlState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return sm.ControlState{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := execUpsertControlState(ctx, tx, state); err != nil {
		return sm.ControlState{}, err
	}

	row := tx.QueryRowContext(ctx, selectControlStateByTagSQL, state.TagID)
	saved, err := scanControlState(row.Scan)
	if err != nil {
		return sm.ControlState{}, err
	}

	hist.ControlID = saved.ID
	if err := execInsertHistory(ctx, tx, hist); err != nil {
		return sm.ControlState{}, err
	}
	if err := tx.Commit(); err != nil {
		return sm.ControlState{}, err
	}
	return saved, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func execUpsertControlState(ctx context.Context, ex execer, s sm.ControlState) error {
	var changedBy interface{}
	if s.LastChangedBy != 0 {
		changedBy = s.LastChangedBy
	}
	_, err := ex.ExecContext(ctx, upsertControlStateSQL,
		s.TagID, s.TagType, s.CurrentValue, s.PLCValue, s.IsSyncedWithPLC,
		s.SyncError, s.RequiresConfirmation, s.ConfirmationTimeout, s.RateLimitSeconds,
		s.DangerLevel, s.Description, changedBy, s.LastChangedAt.UTC())
	return err
}

func execInsertHistory(ctx context.Context, ex execer, h sm.ControlHistory) error {
	ts := h.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var confirmedBy interface{}
	if h.ConfirmedBy != nil {
		confirmedBy = *h.ConfirmedBy
	}
	var finalValue interface{}
	if h.FinalValue != nil {
		finalValue = *h.FinalValue
	}
	_, err := ex.ExecContext(ctx, insertControlHistorySQL,
		h.ControlID, h.ChangeType, h.RequestedBy, confirmedBy, h.PreviousValue,
		h.RequestedValue, finalValue, h.Reason, h.ErrorMessage, ts.UTC())
	return err
}

func (r *ControlSQLite) AppendHistory(ctx context.Context, h sm.ControlHistory) error {
	return execInsertHistory(ctx, r.db, h)
}

func (r *ControlSQLite) ListHistory(ctx context.Context, controlID, limit int) ([]sm.ControlHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, selectControlHistorySQL, controlID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []sm.ControlHistory
	for rows.Next() {
		var h sm.ControlHistory
		var confirmedBy sql.NullInt64
		var finalValue sql.NullBool
		if err := rows.Scan(
			&h.ID,
			&h.ControlID,
			&h.ChangeType,
			&h.RequestedBy,
			&confirmedBy,
			&h.PreviousValue,
			&h.RequestedValue,
			&finalValue,
			&h.Reason,
			&h.ErrorMessage,
			&h.Timestamp,
		); err != nil {
			return nil, err
		}
		if confirmedBy.Valid {
			v := int(confirmedBy.Int64)
			h.ConfirmedBy = &v
		}
		if finalValue.Valid {
			v := finalValue.Bool
			h.FinalValue = &v
		}
		h.Timestamp = h.Timestamp.UTC()
		history = append(history, h)
	}
	return history, rows.Err()
}

func (r *ControlSQLite) CreateRequest(ctx context.Context, req sm.ControlChangeRequest) (sm.ControlChangeRequest, error) {
	created := req.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, insertControlRequestSQL,
		req.ControlID, req.RequestedValue, req.Reason, req.Status,
		req.ConfirmationToken, req.ExpiresAt.UTC(), req.RequestedBy, created.UTC())
	if err != nil {
		return sm.ControlChangeRequest{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return sm.ControlChangeRequest{}, err
	}
	req.ID = int(id)
	req.CreatedAt = created.UTC()
	return req, nil
}

func (r *ControlSQLite) GetRequestByToken(ctx context.Context, token string) (sm.ControlChangeRequest, error) {
	row := r.db.QueryRowContext(ctx, selectRequestByTokenSQL, token)
	var req sm.ControlChangeRequest
	var confirmedBy sql.NullInt64
	var confirmedAt sql.NullTime
	err := row.Scan(
		&req.ID,
		&req.ControlID,
		&req.RequestedValue,
		&req.Reason,
		&req.Status,
		&req.ConfirmationToken,
		&req.ExpiresAt,
		&req.RequestedBy,
		&confirmedBy,
		&confirmedAt,
		&req.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return sm.ControlChangeRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return sm.ControlChangeRequest{}, err
	}
	if confirmedBy.Valid {
		v := int(confirmedBy.Int64)
		req.ConfirmedBy = &v
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		req.ConfirmedAt = &t
	}
	req.ExpiresAt = req.ExpiresAt.UTC()
	req.CreatedAt = req.CreatedAt.UTC()
	return req, nil
}

func (r *ControlSQLite) UpdateRequestStatus(ctx context.Context, requestID int, status string, confirmedBy *int, confirmedAt *time.Time) error {
	var by interface{}
	if confirmedBy != nil {
		by = *confirmedBy
	}
	var at interface{}
	if confirmedAt != nil {
		at = confirmedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, updateRequestStatusSQL, status, by, at, requestID)
	return err
}

func (r *ControlSQLite) HasActivePermission(ctx context.Context, userID, controlID int, now time.Time) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, selectActivePermissionSQL, userID, controlID, now.UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
