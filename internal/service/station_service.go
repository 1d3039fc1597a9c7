package service

import (
	"context"

	sm "station_monitor"
	"station_monitor/internal/opc"
	"station_monitor/internal/repository"
)

// StationStatus merges the persisted station config with the live connection
// state the supervisor maintains in memory.
type StationStatus struct {
	sm.StationConfig
	LiveState string `json:"live_state"`
	TagCount  int    `json:"tag_count"`
}

type StationService struct {
	stations repository.StationRepo
	tags     repository.TagRepo
	registry *opc.Registry
}

func NewStationService(stations repository.StationRepo, tags repository.TagRepo, registry *opc.Registry) *StationService {
	return &StationService{stations: stations, tags: tags, registry: registry}
}

func (s *StationService) List(ctx context.Context) ([]StationStatus, error) {
	configs, err := s.stations.List(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]StationStatus, 0, len(configs))
	for _, cfg := range configs {
		statuses = append(statuses, s.withLiveState(ctx, cfg))
	}
	return statuses, nil
}

func (s *StationService) Get(ctx context.Context, id int) (StationStatus, error) {
	cfg, err := s.stations.GetByID(ctx, id)
	if err != nil {
		return StationStatus{}, err
	}
	return s.withLiveState(ctx, cfg), nil
}

func (s *StationService) Summary(ctx context.Context) (sm.StationSummary, error) {
	return s.stations.Summary(ctx)
}

func (s *StationService) Tags(ctx context.Context, stationID int) ([]sm.TagConfig, error) {
	return s.tags.ListByStation(ctx, stationID)
}

func (s *StationService) withLiveState(ctx context.Context, cfg sm.StationConfig) StationStatus {
	status := StationStatus{StationConfig: cfg, LiveState: string(opc.StateInactive)}
	if conn := s.registry.Get(cfg.StationName); conn != nil {
		status.LiveState = string(conn.State())
	}
	if tags, err := s.tags.ListByStation(ctx, cfg.ID); err == nil {
		status.TagCount = len(tags)
	}
	return status
}
