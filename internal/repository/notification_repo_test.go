package repository

import (
	"regexp"
	"testing"
	"time"

	sm "station_monitor"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestNotificationUpsertSchedule_ReplacesOnTagConflict(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT(tag_id) DO UPDATE SET`)).
		WithArgs(3, 41, sm.Interval1Hour, now, now, 1, true).
		WillReturnResult(sqlmock.NewResult(5, 1))

	repo := NewNotificationSQLite(db)
	sched, err := repo.UpsertSchedule(ctx(t), sm.NotificationSchedule{
		TagID:             3,
		BreachID:          41,
		Interval:          sm.Interval1Hour,
		FirstNotifiedAt:   now,
		LastNotifiedAt:    now,
		NotificationCount: 1,
		IsActive:          true,
	})
	if err != nil {
		t.Fatalf("UpsertSchedule: %v", err)
	}
	if sched.ID != 5 {
		t.Fatalf("expected id 5, got %d", sched.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestNotificationGetScheduleByTag_NoRowIsNil(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM notification_schedules`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tag_id", "breach_id", "interval", "first_notified_at",
			"last_notified_at", "notification_count", "is_active",
		}))

	repo := NewNotificationSQLite(db)
	sched, err := repo.GetScheduleByTag(ctx(t), 3)
	if err != nil {
		t.Fatalf("GetScheduleByTag: %v", err)
	}
	if sched != nil {
		t.Fatalf("expected nil schedule, got %+v", sched)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestNotificationDeactivateByTag(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`SET is_active = 0`)).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewNotificationSQLite(db)
	if err := repo.DeactivateByTag(ctx(t), 3); err != nil {
		t.Fatalf("DeactivateByTag: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}
