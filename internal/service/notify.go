package service

import (
	"context"
	"fmt"
	"time"

	sm "station_monitor"
	"station_monitor/internal/logger"
	"station_monitor/internal/repository"
)

// Transport delivers one alert to one recipient address.
type Transport interface {
	Send(ctx context.Context, email, subject, body string) error
}

// NotificationService throttles breach alerts per recipient preferences.
// Breach rows are appended every violating poll cycle, so throttling keys on
// the tag's schedule, not on individual rows: the first breach of a condition
// notifies immediately and starts a schedule, repeat breaches of the same
// condition notify only once the schedule's interval has elapsed, and a
// recovered tag deactivates its schedule so the next condition starts fresh.
type NotificationService struct {
	schedules repository.NotificationRepo
	tags      repository.TagRepo
	transport Transport
	log       *logger.Logger
}

func NewNotificationService(schedules repository.NotificationRepo, tags repository.TagRepo, transport Transport, log *logger.Logger) *NotificationService {
	return &NotificationService{schedules: schedules, tags: tags, transport: transport, log: log}
}

// HandleBreach decides whether this breach warrants an alert and sends it.
// Notification failures are logged, never propagated; alerting must not
// disturb acquisition.
func (s *NotificationService) HandleBreach(ctx context.Context, tag sm.TagConfig, breach sm.Breach) {
	now := time.Now().UTC()

	schedule, err := s.schedules.GetScheduleByTag(ctx, tag.ID)
	if err != nil {
		s.log.Errorw("failed to load notification schedule", "tag", tag.TagName, "err", err)
		return
	}
	if schedule == nil || !schedule.IsActive {
		// New condition: alert immediately and start the throttle window.
		if _, err := s.schedules.UpsertSchedule(ctx, sm.NotificationSchedule{
			TagID:             tag.ID,
			BreachID:          breach.ID,
			Interval:          sm.Interval1Hour,
			FirstNotifiedAt:   now,
			LastNotifiedAt:    now,
			NotificationCount: 1,
			IsActive:          true,
		}); err != nil {
			s.log.Errorw("failed to create notification schedule", "tag", tag.TagName, "err", err)
		}
		s.deliver(ctx, tag, breach)
		return
	}
	if !schedule.ShouldNotifyNow(now) {
		return
	}
	if err := s.schedules.RecordNotification(ctx, schedule.ID, breach.ID, now); err != nil {
		s.log.Errorw("failed to record notification", "schedule_id", schedule.ID, "err", err)
	}
	s.deliver(ctx, tag, breach)
}

// HandleRecovery retires the tag's schedule once readings are back in range.
func (s *NotificationService) HandleRecovery(ctx context.Context, tag sm.TagConfig) {
	if err := s.schedules.DeactivateByTag(ctx, tag.ID); err != nil {
		s.log.Errorw("failed to deactivate notification schedule", "tag", tag.TagName, "err", err)
	}
}

func (s *NotificationService) deliver(ctx context.Context, tag sm.TagConfig, breach sm.Breach) {
	recipients, err := s.schedules.ListRecipients(ctx, tag.ID)
	if err != nil {
		s.log.Errorw("failed to list recipients", "tag", tag.TagName, "err", err)
		return
	}
	subject := fmt.Sprintf("[%s] %s threshold breached", breach.Level, tag.TagName)
	body := fmt.Sprintf("Tag %s read %.2f %s (%s) at %s.",
		tag.TagName, breach.Value, tag.TagUnits, breach.Level,
		breach.Timestamp.Format(time.RFC3339))
	for _, rec := range recipients {
		if !rec.WantsLevel(breach.Level) {
			continue
		}
		if err := s.transport.Send(ctx, rec.Email, subject, body); err != nil {
			s.log.Errorw("alert delivery failed", "email", rec.Email, "tag", tag.TagName, "err", err)
		}
	}
}

// LogTransport records alerts in the application log. Stands in until an
// SMTP relay is configured for the deployment.
type LogTransport struct {
	log *logger.Logger
}

func NewLogTransport(log *logger.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Send(_ context.Context, email, subject, body string) error {
	t.log.Infow("alert", "to", email, "subject", subject, "body", body)
	return nil
}
