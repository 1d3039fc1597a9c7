package service

import (
	"context"
	"time"

	sm "station_monitor"
	"station_monitor/internal/repository"
)

type ReadingService struct {
	readings repository.ReadingRepo
}

func NewReadingService(readings repository.ReadingRepo) *ReadingService {
	return &ReadingService{readings: readings}
}

func (s *ReadingService) ListByTag(ctx context.Context, tagID int, from, to time.Time, limit int) ([]sm.Reading, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	return s.readings.ListByTag(ctx, tagID, from, to, limit)
}
