package repository

import (
	"context"
	"database/sql"
	"time"

	sm "station_monitor"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*sm.User, error)
	GetByID(id int) (*sm.User, error)
}

// StationRepo is the configuration-store view of stations plus the status
// writes the connection layer performs.
type StationRepo interface {
	List(ctx context.Context) ([]sm.StationConfig, error)
	ListActive(ctx context.Context) ([]sm.StationConfig, error)
	GetByID(ctx context.Context, id int) (sm.StationConfig, error)
	SetConnectionStatus(ctx context.Context, stationID int, status string) error
	SetLastConnected(ctx context.Context, stationID int, ts time.Time) error
	Summary(ctx context.Context) (sm.StationSummary, error)
}

type TagRepo interface {
	ListByStation(ctx context.Context, stationID int) ([]sm.TagConfig, error)
	GetByID(ctx context.Context, id int) (sm.TagConfig, error)
	UpdateLastValue(ctx context.Context, tagID int, value string, ts time.Time) error
	UpdateLastWholeNumber(ctx context.Context, tagID int, whole int) error
}

type ReadingRepo interface {
	Append(ctx context.Context, r sm.Reading) error
	AppendAlarmEvent(ctx context.Context, e sm.AlarmEvent) error
	ListByTag(ctx context.Context, tagID int, from, to time.Time, limit int) ([]sm.Reading, error)
}

// BreachFilter narrows breach listings.
type BreachFilter struct {
	TagID     int    // 0 means all tags
	UnackOnly bool
	Level     string // "" means both levels
	Limit     int
}

type BreachRepo interface {
	Append(ctx context.Context, b sm.Breach) (int, error)
	GetByID(ctx context.Context, id int) (sm.Breach, error)
	Acknowledge(ctx context.Context, breachID int, username string, ts time.Time) error
	List(ctx context.Context, f BreachFilter) ([]sm.Breach, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type ControlRepo interface {
	GetStateByTag(ctx context.Context, tagID int) (*sm.ControlState, error)
	GetStateByID(ctx context.Context, id int) (sm.ControlState, error)
	ListStates(ctx context.Context) ([]sm.ControlState, error)
	// SaveExecution persists the post-write control state together with its
	// executed history row in one transaction.
	SaveExecution(ctx context.Context, state sm.ControlState, hist sm.ControlHistory) (sm.ControlState, error)
	AppendHistory(ctx context.Context, h sm.ControlHistory) error
	ListHistory(ctx context.Context, controlID, limit int) ([]sm.ControlHistory, error)
	CreateRequest(ctx context.Context, r sm.ControlChangeRequest) (sm.ControlChangeRequest, error)
	GetRequestByToken(ctx context.Context, token string) (sm.ControlChangeRequest, error)
	UpdateRequestStatus(ctx context.Context, requestID int, status string, confirmedBy *int, confirmedAt *time.Time) error
	HasActivePermission(ctx context.Context, userID, controlID int, now time.Time) (bool, error)
}

type NotificationRepo interface {
	GetScheduleByTag(ctx context.Context, tagID int) (*sm.NotificationSchedule, error)
	UpsertSchedule(ctx context.Context, s sm.NotificationSchedule) (sm.NotificationSchedule, error)
	RecordNotification(ctx context.Context, scheduleID, breachID int, ts time.Time) error
	DeactivateByTag(ctx context.Context, tagID int) error
	ListRecipients(ctx context.Context, tagID int) ([]sm.NotificationRecipient, error)
}

type Repository struct {
	Stations      StationRepo
	Tags          TagRepo
	Readings      ReadingRepo
	Breaches      BreachRepo
	Controls      ControlRepo
	Notifications NotificationRepo
	Auth          Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Stations:      NewStationSQLite(db),
		Tags:          NewTagSQLite(db),
		Readings:      NewReadingSQLite(db),
		Breaches:      NewBreachSQLite(db),
		Controls:      NewControlSQLite(db),
		Notifications: NewNotificationSQLite(db),
		Auth:          NewUserRepository(db),
	}
}
