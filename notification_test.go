package station_monitor

import (
	"testing"
	"time"
)

func TestIntervalDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		interval string
		want     time.Duration
	}{
		{Interval15Min, 15 * time.Minute},
		{Interval30Min, 30 * time.Minute},
		{Interval1Hour, time.Hour},
		{Interval4Hours, 4 * time.Hour},
		{IntervalDaily, 24 * time.Hour},
		{"bogus", time.Hour},
	}
	for _, tc := range cases {
		if got := IntervalDuration(tc.interval); got != tc.want {
			t.Errorf("IntervalDuration(%q) = %v, want %v", tc.interval, got, tc.want)
		}
	}
	if IntervalDuration(IntervalNever) < 365*24*time.Hour {
		t.Error("never should effectively suppress repeats")
	}
}

func TestNotificationSchedule_ShouldNotifyNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NotificationSchedule{Interval: Interval30Min, LastNotifiedAt: now.Add(-31 * time.Minute), IsActive: true}
	if !s.ShouldNotifyNow(now) {
		t.Error("elapsed interval should notify")
	}

	s.LastNotifiedAt = now.Add(-29 * time.Minute)
	if s.ShouldNotifyNow(now) {
		t.Error("unelapsed interval should not notify")
	}

	s.LastNotifiedAt = now.Add(-time.Hour)
	s.IsActive = false
	if s.ShouldNotifyNow(now) {
		t.Error("inactive schedule should never notify")
	}
}

func TestNotificationRecipient_WantsLevel(t *testing.T) {
	t.Parallel()

	r := NotificationRecipient{AlertLevel: AlertBoth, Enabled: true}
	if !r.WantsLevel(LevelWarning) || !r.WantsLevel(LevelCritical) {
		t.Error("both should cover warning and critical")
	}

	r.AlertLevel = AlertCriticalOnly
	if r.WantsLevel(LevelWarning) || !r.WantsLevel(LevelCritical) {
		t.Error("critical-only mismatch")
	}

	r.Enabled = false
	if r.WantsLevel(LevelCritical) {
		t.Error("disabled recipient should never match")
	}
}
