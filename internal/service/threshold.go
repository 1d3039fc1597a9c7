package service

import (
	"context"
	"time"

	sm "station_monitor"
	"station_monitor/internal/logger"
	"station_monitor/internal/repository"
)

// ThresholdService classifies numeric readings against a tag's configured
// limits and appends a breach row per violating poll cycle. The breach log is
// append-only: a tag stuck above its critical level produces one row per
// cycle, which is what lets notification throttling count condition duration.
type ThresholdService struct {
	breaches repository.BreachRepo
	notifier *NotificationService
	log      *logger.Logger
}

func NewThresholdService(breaches repository.BreachRepo, notifier *NotificationService, log *logger.Logger) *ThresholdService {
	return &ThresholdService{breaches: breaches, notifier: notifier, log: log}
}

// Evaluate checks one reading against the tag's thresholds and records a
// breach if any is violated.
func (s *ThresholdService) Evaluate(ctx context.Context, tag sm.TagConfig, value float64, ts time.Time) {
	if !tag.ThresholdActive {
		return
	}
	level, ok := Classify(tag, value)
	if !ok {
		s.notifier.HandleRecovery(ctx, tag)
		return
	}
	breach := sm.Breach{TagID: tag.ID, Value: value, Level: level, Timestamp: ts}
	id, err := s.breaches.Append(ctx, breach)
	if err != nil {
		s.log.Errorw("failed to record breach", "tag", tag.TagName, "level", level, "err", err)
		return
	}
	breach.ID = id
	s.log.Warnw("threshold breached",
		"tag", tag.TagName, "value", value, "level", level)
	s.notifier.HandleBreach(ctx, tag, breach)
}

// Classify maps a value to a breach level. Checks run in strict priority
// order and the first match wins: critical, then warning, then the min/max
// operating range.
func Classify(tag sm.TagConfig, value float64) (string, bool) {
	if tag.CriticalLevel != nil && value >= *tag.CriticalLevel {
		return sm.LevelCritical, true
	}
	if tag.WarningLevel != nil && value >= *tag.WarningLevel {
		return sm.LevelWarning, true
	}
	if tag.MinValue != nil && value < *tag.MinValue {
		return sm.LevelWarning, true
	}
	if tag.MaxValue != nil && value > *tag.MaxValue {
		return sm.LevelWarning, true
	}
	return "", false
}
