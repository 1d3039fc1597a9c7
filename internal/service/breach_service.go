package service

import (
	"context"
	"errors"
	"time"

	sm "station_monitor"
	"station_monitor/internal/logger"
	"station_monitor/internal/repository"
)

var ErrUnknownUser = errors.New("unknown user")

type BreachService struct {
	breaches repository.BreachRepo
	users    repository.Authorization
	log      *logger.Logger
}

func NewBreachService(breaches repository.BreachRepo, users repository.Authorization, log *logger.Logger) *BreachService {
	return &BreachService{breaches: breaches, users: users, log: log}
}

func (s *BreachService) List(ctx context.Context, f repository.BreachFilter) ([]sm.Breach, error) {
	return s.breaches.List(ctx, f)
}

// Acknowledge stamps the breach with the acknowledging user's name.
func (s *BreachService) Acknowledge(ctx context.Context, breachID, userID int) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUnknownUser
	}
	return s.breaches.Acknowledge(ctx, breachID, user.Username, time.Now().UTC())
}

// PurgeOlderThan trims the breach log for retention housekeeping.
func (s *BreachService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.breaches.DeleteOlderThan(ctx, cutoff)
}

// RunRetention purges breaches older than maxAge every interval until ctx is
// cancelled. Purge failures are non-fatal; the next tick retries.
func (s *BreachService) RunRetention(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeOlderThan(ctx, time.Now().UTC().Add(-maxAge))
			if err != nil {
				s.log.Errorw("breach retention purge failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Infow("purged old breaches", "rows", n)
			}
		}
	}
}
