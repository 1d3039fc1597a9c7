package station_monitor

import "time"

// Notification intervals while a breach condition stays active.
const (
	Interval15Min  = "15min"
	Interval30Min  = "30min"
	Interval1Hour  = "1hour"
	Interval4Hours = "4hours"
	IntervalDaily  = "daily"
	IntervalNever  = "never"
)

// IntervalDuration maps an interval name to its duration. Unknown names fall
// back to one hour; "never" maps to a ten-year horizon.
func IntervalDuration(interval string) time.Duration {
	switch interval {
	case Interval15Min:
		return 15 * time.Minute
	case Interval30Min:
		return 30 * time.Minute
	case Interval1Hour:
		return time.Hour
	case Interval4Hours:
		return 4 * time.Hour
	case IntervalDaily:
		return 24 * time.Hour
	case IntervalNever:
		return 10 * 365 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// NotificationSchedule throttles repeat alerts for one tag's active breach
// condition. Each breaching poll cycle appends a fresh breach row, so the
// schedule is keyed by tag; BreachID tracks the latest breach that alerted.
// Deactivated when the tag recovers, so the next condition alerts immediately.
type NotificationSchedule struct {
	ID                int       `json:"id"`
	TagID             int       `json:"tag_id"`
	BreachID          int       `json:"breach_id"`
	Interval          string    `json:"interval"`
	FirstNotifiedAt   time.Time `json:"first_notified_at"`
	LastNotifiedAt    time.Time `json:"last_notified_at"`
	NotificationCount int       `json:"notification_count"`
	IsActive          bool      `json:"is_active"`
}

// ShouldNotifyNow is the pure interval check: has enough time passed since
// the last notification to send another?
func (s NotificationSchedule) ShouldNotifyNow(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	return !now.Before(s.LastNotifiedAt.Add(IntervalDuration(s.Interval)))
}

// Alert levels a recipient subscribes to.
const (
	AlertWarningOnly  = "warning"
	AlertCriticalOnly = "critical"
	AlertBoth         = "both"
)

// NotificationRecipient subscribes an address to breach alerts for one tag.
type NotificationRecipient struct {
	ID         int    `json:"id"`
	TagID      int    `json:"tag_id"`
	Email      string `json:"email"`
	AlertLevel string `json:"alert_level"`
	Enabled    bool   `json:"enabled"`
}

// WantsLevel reports whether the subscription covers a breach level.
func (r NotificationRecipient) WantsLevel(level string) bool {
	if !r.Enabled {
		return false
	}
	switch r.AlertLevel {
	case AlertBoth:
		return true
	case AlertWarningOnly:
		return level == LevelWarning
	case AlertCriticalOnly:
		return level == LevelCritical
	default:
		return false
	}
}
