package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is not great with many writers
	db.SetMaxIdleConns(1)

	// Pragmas to improve reliability
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaStations = `
CREATE TABLE IF NOT EXISTS stations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_name TEXT NOT NULL UNIQUE,
    endpoint_url TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT 0,
    security_policy TEXT NOT NULL DEFAULT 'None',
    security_mode TEXT NOT NULL DEFAULT 'None',
    username TEXT NOT NULL DEFAULT '',
    password TEXT NOT NULL DEFAULT '',
    connection_timeout_ms INTEGER NOT NULL DEFAULT 5000,
    session_timeout_ms INTEGER NOT NULL DEFAULT 60000,
    secure_timeout_ms INTEGER NOT NULL DEFAULT 10000,
    request_timeout_ms INTEGER NOT NULL DEFAULT 10000,
    acknowledge_timeout_ms INTEGER NOT NULL DEFAULT 5000,
    poll_interval_ms INTEGER NOT NULL DEFAULT 5000,
    last_connected TIMESTAMP,
    connection_status TEXT NOT NULL DEFAULT 'Disconnected',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (station_name, endpoint_url)
);
`

const schemaTags = `
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id INTEGER NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
    node_id TEXT NOT NULL,
    tag_name TEXT NOT NULL,
    tag_units TEXT NOT NULL DEFAULT '',
    data_type TEXT NOT NULL DEFAULT 'Float',
    access_level TEXT NOT NULL DEFAULT 'ReadOnly',
    min_value REAL,
    max_value REAL,
    warning_level REAL,
    critical_level REAL,
    threshold_active BOOLEAN NOT NULL DEFAULT 1,
    is_boolean_control BOOLEAN NOT NULL DEFAULT 0,
    is_alarm BOOLEAN NOT NULL DEFAULT 0,
    sampling_interval_s INTEGER NOT NULL DEFAULT 60,
    sample_on_whole_number_change BOOLEAN NOT NULL DEFAULT 0,
    last_whole_number INTEGER,
    last_value TEXT NOT NULL DEFAULT '',
    last_updated TIMESTAMP,
    UNIQUE (station_id, node_id),
    UNIQUE (station_id, tag_name)
);
`

const schemaReadings = `
CREATE TABLE IF NOT EXISTS readings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id INTEGER NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    value TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_tag_ts ON readings(tag_id, timestamp);
`

const schemaAlarmEvents = `
CREATE TABLE IF NOT EXISTS alarm_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    station_id INTEGER NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
    value BOOLEAN NOT NULL,
    timestamp TIMESTAMP NOT NULL
);
`

const schemaBreaches = `
CREATE TABLE IF NOT EXISTS breaches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    value REAL NOT NULL,
    level TEXT NOT NULL,
    acknowledged BOOLEAN NOT NULL DEFAULT 0,
    acknowledged_by TEXT NOT NULL DEFAULT '',
    acknowledged_at TIMESTAMP,
    timestamp TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_breaches_tag_ts ON breaches(tag_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_breaches_level_ack ON breaches(level, acknowledged, timestamp);
`

const schemaControlStates = `
CREATE TABLE IF NOT EXISTS control_states (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tag_id INTEGER NOT NULL UNIQUE REFERENCES tags(id) ON DELETE CASCADE,
    tag_type TEXT NOT NULL DEFAULT 'other',
    current_value BOOLEAN NOT NULL DEFAULT 0,
    plc_value BOOLEAN NOT NULL DEFAULT 0,
    is_synced_with_plc BOOLEAN NOT NULL DEFAULT 0,
    sync_error TEXT NOT NULL DEFAULT '',
    requires_confirmation BOOLEAN NOT NULL DEFAULT 1,
    confirmation_timeout_s INTEGER NOT NULL DEFAULT 30,
    rate_limit_s INTEGER NOT NULL DEFAULT 5,
    danger_level INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    last_changed_by INTEGER,
    last_changed_at TIMESTAMP NOT NULL
);
`

const schemaControlHistory = `
CREATE TABLE IF NOT EXISTS control_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    control_id INTEGER NOT NULL REFERENCES control_states(id) ON DELETE CASCADE,
    change_type TEXT NOT NULL,
    requested_by INTEGER,
    confirmed_by INTEGER,
    previous_value BOOLEAN NOT NULL,
    requested_value BOOLEAN NOT NULL,
    final_value BOOLEAN,
    reason TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    timestamp TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_control_history_control_ts ON control_history(control_id, timestamp);
`

const schemaControlRequests = `
CREATE TABLE IF NOT EXISTS control_requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    control_id INTEGER NOT NULL REFERENCES control_states(id) ON DELETE CASCADE,
    requested_value BOOLEAN NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    confirmation_token TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP NOT NULL,
    requested_by INTEGER,
    confirmed_by INTEGER,
    confirmed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_control_requests_status ON control_requests(status, expires_at);
`

const schemaControlPermissions = `
CREATE TABLE IF NOT EXISTS control_permissions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    control_id INTEGER NOT NULL REFERENCES control_states(id) ON DELETE CASCADE,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    granted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    expires_at TIMESTAMP,
    UNIQUE (user_id, control_id)
);
`

const schemaNotificationSchedules = `
CREATE TABLE IF NOT EXISTS notification_schedules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tag_id INTEGER NOT NULL UNIQUE REFERENCES tags(id) ON DELETE CASCADE,
    breach_id INTEGER NOT NULL REFERENCES breaches(id) ON DELETE CASCADE,
    interval TEXT NOT NULL DEFAULT '1hour',
    first_notified_at TIMESTAMP NOT NULL,
    last_notified_at TIMESTAMP NOT NULL,
    notification_count INTEGER NOT NULL DEFAULT 1,
    is_active BOOLEAN NOT NULL DEFAULT 1
);
`

const schemaNotificationRecipients = `
CREATE TABLE IF NOT EXISTS notification_recipients (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    alert_level TEXT NOT NULL DEFAULT 'both',
    enabled BOOLEAN NOT NULL DEFAULT 1,
    UNIQUE (tag_id, email)
);
`

const schemaConnectionLog = `
CREATE TABLE IF NOT EXISTS connection_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id INTEGER NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
    status TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    is_staff BOOLEAN NOT NULL DEFAULT 0,
    is_superuser BOOLEAN NOT NULL DEFAULT 0
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaUsers,
		schemaStations,
		schemaTags,
		schemaReadings,
		schemaAlarmEvents,
		schemaBreaches,
		schemaControlStates,
		schemaControlHistory,
		schemaControlRequests,
		schemaControlPermissions,
		schemaNotificationSchedules,
		schemaNotificationRecipients,
		schemaConnectionLog,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
