package service

import (
	"context"
	"math"
	"strconv"
	"time"

	sm "station_monitor"
	"station_monitor/internal/logger"
	"station_monitor/internal/opc"
	"station_monitor/internal/repository"
)

const (
	defaultPollInterval = 15 * time.Second
	pollTick            = time.Second

	// Readings are flushed with a short retry so one transient lock does not
	// drop a sample. Alarm events get more attempts; they are audit rows.
	persistAttempts = 3
	auditAttempts   = 5
	persistDelay    = 200 * time.Millisecond
)

// PollerService walks every connected station on its poll interval, reads all
// of its tags, and hands values to persistence and threshold evaluation. One
// tag failing never stops the rest of the cycle.
type PollerService struct {
	stations repository.StationRepo
	tags     repository.TagRepo
	readings repository.ReadingRepo
	registry *opc.Registry
	eval     *ThresholdService
	log      *logger.Logger

	lastPolled map[int]time.Time
}

func NewPollerService(stations repository.StationRepo, tags repository.TagRepo, readings repository.ReadingRepo, registry *opc.Registry, eval *ThresholdService, log *logger.Logger) *PollerService {
	return &PollerService{
		stations:   stations,
		tags:       tags,
		readings:   readings,
		registry:   registry,
		eval:       eval,
		log:        log,
		lastPolled: make(map[int]time.Time),
	}
}

// Run drives the acquisition loop until ctx is cancelled.
func (p *PollerService) Run(ctx context.Context) {
	ticker := time.NewTicker(pollTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollDue(ctx)
		}
	}
}

func (p *PollerService) pollDue(ctx context.Context) {
	now := time.Now()
	live := make(map[int]bool)
	for _, conn := range p.registry.Snapshot() {
		cfg := conn.Config()
		live[cfg.ID] = true
		interval := defaultPollInterval
		if cfg.PollInterval > 0 {
			interval = time.Duration(cfg.PollInterval) * time.Millisecond
		}
		if now.Sub(p.lastPolled[cfg.ID]) < interval {
			continue
		}
		p.lastPolled[cfg.ID] = now
		if !conn.Connected() {
			continue
		}
		p.pollStation(ctx, conn)
	}
	// Forget stations the supervisor has stopped.
	for id := range p.lastPolled {
		if !live[id] {
			delete(p.lastPolled, id)
		}
	}
}

// pollStation reads every tag of one station. Per-tag failures are isolated;
// a session-level failure aborts the cycle and asks the connection to rebuild.
func (p *PollerService) pollStation(ctx context.Context, conn *opc.Connection) {
	cfg := conn.Config()
	tags, err := p.tags.ListByStation(ctx, cfg.ID)
	if err != nil {
		p.log.Errorw("failed to list tags", "station", cfg.StationName, "err", err)
		return
	}
	for _, tag := range tags {
		if tag.AccessLevel == sm.AccessWriteOnly {
			continue
		}
		raw, err := conn.ReadTag(ctx, tag)
		if err != nil {
			if opc.IsSessionLoss(err) {
				p.log.Warnw("session lost mid-poll, scheduling reconnect",
					"station", cfg.StationName, "tag", tag.TagName)
				conn.ReportSessionLoss()
				return
			}
			p.log.Warnw("tag read failed",
				"station", cfg.StationName, "tag", tag.TagName, "node", tag.NodeID, "err", err)
			continue
		}
		p.handleValue(ctx, cfg, tag, raw)
	}
}

func (p *PollerService) handleValue(ctx context.Context, cfg sm.StationConfig, tag sm.TagConfig, raw interface{}) {
	now := time.Now().UTC()
	value := formatValue(raw)

	// The cached last value always reflects the newest read, even for samples
	// the whole-number filter drops from history.
	if err := p.tags.UpdateLastValue(ctx, tag.ID, value, now); err != nil {
		p.log.Errorw("failed to cache last value", "tag", tag.TagName, "err", err)
	}

	if b, ok := raw.(bool); ok && tag.IsAlarm {
		p.persistAlarm(ctx, sm.AlarmEvent{TagID: tag.ID, StationID: cfg.ID, Value: b, Timestamp: now})
	}

	if numeric, ok := toFloat64(raw); ok {
		// Round before any comparison so float jitter at an integer boundary
		// (21.999 vs 22.001) resolves to the same stored value and marker.
		numeric = math.Round(numeric*100) / 100
		if tag.SampleOnWholeNumberChange && !tag.IsAlarm {
			whole := int(math.Floor(numeric))
			if tag.LastWholeNumber != nil && whole == *tag.LastWholeNumber {
				p.log.Debugw("sample filtered, whole number unchanged",
					"tag", tag.TagName, "value", value)
				return
			}
			if err := p.tags.UpdateLastWholeNumber(ctx, tag.ID, whole); err != nil {
				p.log.Errorw("failed to store whole number", "tag", tag.TagName, "err", err)
			}
		}
		p.eval.Evaluate(ctx, tag, numeric, now)
	}

	p.persistReading(ctx, sm.Reading{StationID: cfg.ID, TagID: tag.ID, Value: value, Timestamp: now})
}

func (p *PollerService) persistReading(ctx context.Context, r sm.Reading) {
	var err error
	for attempt := 0; attempt < persistAttempts; attempt++ {
		if err = p.readings.Append(ctx, r); err == nil {
			return
		}
		time.Sleep(persistDelay)
	}
	p.log.Errorw("dropping reading after retries", "tag_id", r.TagID, "err", err)
}

func (p *PollerService) persistAlarm(ctx context.Context, e sm.AlarmEvent) {
	var err error
	for attempt := 0; attempt < auditAttempts; attempt++ {
		if err = p.readings.AppendAlarmEvent(ctx, e); err == nil {
			return
		}
		time.Sleep(persistDelay)
	}
	p.log.Errorw("dropping alarm event after retries", "tag_id", e.TagID, "err", err)
}

// formatValue renders a raw protocol value for storage. Floats are rounded to
// two decimals; everything else uses its natural string form.
func formatValue(raw interface{}) string {
	if f, ok := toFloat64(raw); ok {
		if _, isInt := rawInt(raw); !isInt {
			return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
		}
	}
	switch v := raw.(type) {
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	}
	if i, ok := rawInt(raw); ok {
		return strconv.FormatInt(i, 10)
	}
	if f, ok := toFloat64(raw); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func toFloat64(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	if i, ok := rawInt(raw); ok {
		return float64(i), true
	}
	return 0, false
}

func rawInt(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	}
	return 0, false
}
