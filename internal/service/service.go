package service

import (
	"context"
	"time"

	sm "station_monitor"
	"station_monitor/internal/logger"
	"station_monitor/internal/opc"
	"station_monitor/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	GetUser(userID int) (*sm.User, error)
}

// Stations exposes station configuration merged with live connection state.
type Stations interface {
	List(ctx context.Context) ([]StationStatus, error)
	Get(ctx context.Context, id int) (StationStatus, error)
	Summary(ctx context.Context) (sm.StationSummary, error)
	Tags(ctx context.Context, stationID int) ([]sm.TagConfig, error)
}

// Readings exposes the telemetry history.
type Readings interface {
	ListByTag(ctx context.Context, tagID int, from, to time.Time, limit int) ([]sm.Reading, error)
}

// Breaches exposes the threshold violation log.
type Breaches interface {
	List(ctx context.Context, f repository.BreachFilter) ([]sm.Breach, error)
	Acknowledge(ctx context.Context, breachID, userID int) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	RunRetention(ctx context.Context, interval, maxAge time.Duration)
}

// Controls is the write gateway for boolean actuator tags.
type Controls interface {
	RequestChange(ctx context.Context, p ChangeParams) (*ChangeOutcome, error)
	ConfirmChange(ctx context.Context, token string, userID int) (*ChangeOutcome, error)
	ListStates(ctx context.Context) ([]sm.ControlState, error)
	History(ctx context.Context, controlID, limit int) ([]sm.ControlHistory, error)
}

// Poller runs the background telemetry acquisition loop.
type Poller interface {
	Run(ctx context.Context)
}

type Service struct {
	Stations
	Readings
	Breaches
	Controls
	Poller
	Authorization
}

func NewService(repos *repository.Repository, registry *opc.Registry, log *logger.Logger) *Service {
	notifier := NewNotificationService(repos.Notifications, repos.Tags, NewLogTransport(log), log)
	thresholds := NewThresholdService(repos.Breaches, notifier, log)
	return &Service{
		Stations:      NewStationService(repos.Stations, repos.Tags, registry),
		Readings:      NewReadingService(repos.Readings),
		Breaches:      NewBreachService(repos.Breaches, repos.Auth, log),
		Controls:      NewControlService(repos.Controls, repos.Tags, repos.Stations, repos.Auth, registry, log),
		Poller:        NewPollerService(repos.Stations, repos.Tags, repos.Readings, registry, thresholds, log),
		Authorization: NewAuthService(repos.Auth),
	}
}
