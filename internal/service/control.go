package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	sm "station_monitor"
	"station_monitor/internal/logger"
	"station_monitor/internal/opc"
	"station_monitor/internal/repository"
)

// Domain errors for control flows.
var (
	ErrPermissionDenied      = errors.New("user has no permission for this control")
	ErrNoChange              = errors.New("control is already in the requested state")
	ErrNotAControl           = errors.New("tag is not a boolean control")
	ErrStationUnavailable    = errors.New("station is not connected")
	ErrConfirmationExpired   = errors.New("confirmation window has expired")
	ErrRequestNotPending     = errors.New("request is no longer pending")
	ErrConfirmationForbidden = errors.New("only staff may confirm control changes")
)

// RateLimitedError carries the seconds remaining before the next change is
// allowed.
type RateLimitedError struct {
	Remaining float64
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %.1fs", e.Remaining)
}

const defaultConfirmationTimeout = 30 // seconds

// Change request/outcome payloads.
type ChangeParams struct {
	TagID  int
	Value  bool
	Reason string
	UserID int
}

type ChangeOutcome struct {
	Status            string           `json:"status"` // executed | pending_confirmation
	Message           string           `json:"message"`
	ConfirmationToken string           `json:"confirmation_token,omitempty"`
	ExpiresAt         *time.Time       `json:"expires_at,omitempty"`
	State             *sm.ControlState `json:"state,omitempty"`
}

// ControlService guards every write to a device: permission, rate limit,
// no-op suppression, dual confirmation for dangerous controls, and a full
// audit trail around the device write itself.
type ControlService struct {
	controls repository.ControlRepo
	tags     repository.TagRepo
	stations repository.StationRepo
	users    repository.Authorization
	registry *opc.Registry
	log      *logger.Logger
}

func NewControlService(controls repository.ControlRepo, tags repository.TagRepo, stations repository.StationRepo, users repository.Authorization, registry *opc.Registry, log *logger.Logger) *ControlService {
	return &ControlService{
		controls: controls,
		tags:     tags,
		stations: stations,
		users:    users,
		registry: registry,
		log:      log,
	}
}

// RequestChange runs the full gate chain for one change attempt. Controls
// that require confirmation return a pending outcome with a one-time token;
// everything else executes immediately.
func (s *ControlService) RequestChange(ctx context.Context, p ChangeParams) (*ChangeOutcome, error) {
	tag, err := s.tags.GetByID(ctx, p.TagID)
	if err != nil {
		return nil, err
	}
	if !tag.IsBooleanControl {
		return nil, ErrNotAControl
	}

	// Resolve the caller before touching control state so a rejected request
	// never creates the lazy state row as a side effect.
	user, err := s.users.GetByID(p.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrPermissionDenied
	}

	state, err := s.stateFor(ctx, tag)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !user.IsSuperuser {
		allowed, err := s.controls.HasActivePermission(ctx, user.ID, state.ID, now)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrPermissionDenied
		}
	}

	if state.IsRateLimited(now) {
		return nil, &RateLimitedError{Remaining: state.TimeUntilAllowed(now)}
	}

	if p.Value == state.CurrentValue && state.IsSyncedWithPLC {
		return nil, ErrNoChange
	}

	if err := s.controls.AppendHistory(ctx, sm.ControlHistory{
		ControlID:      state.ID,
		ChangeType:     sm.ChangeRequested,
		RequestedBy:    user.ID,
		PreviousValue:  state.CurrentValue,
		RequestedValue: p.Value,
		Reason:         p.Reason,
		Timestamp:      now,
	}); err != nil {
		return nil, err
	}

	if state.RequiresConfirmation {
		timeout := state.ConfirmationTimeout
		if timeout <= 0 {
			timeout = defaultConfirmationTimeout
		}
		expires := now.Add(time.Duration(timeout) * time.Second)
		req, err := s.controls.CreateRequest(ctx, sm.ControlChangeRequest{
			ControlID:         state.ID,
			RequestedValue:    p.Value,
			Reason:            p.Reason,
			Status:            sm.RequestPending,
			ConfirmationToken: uuid.NewString(),
			ExpiresAt:         expires,
			RequestedBy:       user.ID,
			CreatedAt:         now,
		})
		if err != nil {
			return nil, err
		}
		s.log.Infow("control change awaiting confirmation",
			"control_id", state.ID, "tag", tag.TagName, "requested_by", user.Username)
		return &ChangeOutcome{
			Status:            "pending_confirmation",
			Message:           fmt.Sprintf("change to %s requires confirmation within %ds", tag.TagName, timeout),
			ConfirmationToken: req.ConfirmationToken,
			ExpiresAt:         &req.ExpiresAt,
		}, nil
	}

	return s.execute(ctx, tag, state, p.Value, p.Reason, user.ID, nil)
}

// ConfirmChange completes a pending two-step change. Expired requests are
// marked as such so operators see exactly why nothing happened.
func (s *ControlService) ConfirmChange(ctx context.Context, token string, userID int) (*ChangeOutcome, error) {
	req, err := s.controls.GetRequestByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if req.Status != sm.RequestPending {
		return nil, ErrRequestNotPending
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil || (!user.IsStaff && !user.IsSuperuser) {
		return nil, ErrConfirmationForbidden
	}

	state, err := s.controls.GetStateByID(ctx, req.ControlID)
	if err != nil {
		return nil, err
	}
	tag, err := s.tags.GetByID(ctx, state.TagID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if req.IsExpired(now) {
		if err := s.controls.UpdateRequestStatus(ctx, req.ID, sm.RequestExpired, nil, nil); err != nil {
			s.log.Errorw("failed to expire request", "request_id", req.ID, "err", err)
		}
		if err := s.controls.AppendHistory(ctx, sm.ControlHistory{
			ControlID:      state.ID,
			ChangeType:     sm.ChangeTimeout,
			RequestedBy:    req.RequestedBy,
			PreviousValue:  state.CurrentValue,
			RequestedValue: req.RequestedValue,
			Reason:         req.Reason,
			Timestamp:      now,
		}); err != nil {
			s.log.Errorw("failed to record timeout", "request_id", req.ID, "err", err)
		}
		return nil, ErrConfirmationExpired
	}

	if err := s.controls.UpdateRequestStatus(ctx, req.ID, sm.RequestConfirmed, &user.ID, &now); err != nil {
		return nil, err
	}
	if err := s.controls.AppendHistory(ctx, sm.ControlHistory{
		ControlID:      state.ID,
		ChangeType:     sm.ChangeConfirmed,
		RequestedBy:    req.RequestedBy,
		ConfirmedBy:    &user.ID,
		PreviousValue:  state.CurrentValue,
		RequestedValue: req.RequestedValue,
		Reason:         req.Reason,
		Timestamp:      now,
	}); err != nil {
		s.log.Errorw("failed to record confirmation", "request_id", req.ID, "err", err)
	}

	return s.execute(ctx, tag, state, req.RequestedValue, req.Reason, req.RequestedBy, &user.ID)
}

// execute performs the device write and persists the resulting state and
// audit row atomically.
func (s *ControlService) execute(ctx context.Context, tag sm.TagConfig, state sm.ControlState, value bool, reason string, requestedBy int, confirmedBy *int) (*ChangeOutcome, error) {
	station, err := s.stations.GetByID(ctx, tag.StationID)
	if err != nil {
		return nil, err
	}
	conn := s.registry.Get(station.StationName)
	if conn == nil || !conn.Connected() {
		s.recordFailure(ctx, state, value, reason, requestedBy, "station not connected")
		return nil, ErrStationUnavailable
	}

	now := time.Now().UTC()
	msg, err := conn.WriteTag(ctx, tag, value)
	if err != nil {
		s.recordFailure(ctx, state, value, reason, requestedBy, err.Error())
		return nil, fmt.Errorf("write %s: %w", tag.TagName, err)
	}

	previous := state.CurrentValue
	state.CurrentValue = value
	state.PLCValue = value
	state.IsSyncedWithPLC = true
	state.SyncError = ""
	state.LastChangedBy = requestedBy
	state.LastChangedAt = now

	final := value
	saved, err := s.controls.SaveExecution(ctx, state, sm.ControlHistory{
		ChangeType:     sm.ChangeExecuted,
		RequestedBy:    requestedBy,
		ConfirmedBy:    confirmedBy,
		PreviousValue:  previous,
		RequestedValue: value,
		FinalValue:     &final,
		Reason:         reason,
		Timestamp:      now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("control change executed",
		"control_id", saved.ID, "tag", tag.TagName, "value", value, "by", requestedBy)
	return &ChangeOutcome{Status: "executed", Message: msg, State: &saved}, nil
}

func (s *ControlService) recordFailure(ctx context.Context, state sm.ControlState, value bool, reason string, requestedBy int, errMsg string) {
	if err := s.controls.AppendHistory(ctx, sm.ControlHistory{
		ControlID:      state.ID,
		ChangeType:     sm.ChangeFailed,
		RequestedBy:    requestedBy,
		PreviousValue:  state.CurrentValue,
		RequestedValue: value,
		Reason:         reason,
		ErrorMessage:   errMsg,
		Timestamp:      time.Now().UTC(),
	}); err != nil {
		s.log.Errorw("failed to record write failure", "control_id", state.ID, "err", err)
	}
}

// stateFor loads the control state for a tag, creating a default one on
// first use.
func (s *ControlService) stateFor(ctx context.Context, tag sm.TagConfig) (sm.ControlState, error) {
	state, err := s.controls.GetStateByTag(ctx, tag.ID)
	if err != nil {
		return sm.ControlState{}, err
	}
	if state != nil {
		return *state, nil
	}
	fresh := sm.ControlState{
		TagID:                tag.ID,
		TagType:              sm.TagTypeOther,
		RequiresConfirmation: true,
		ConfirmationTimeout:  defaultConfirmationTimeout,
		RateLimitSeconds:     5,
		DangerLevel:          sm.DangerSafe,
		LastChangedAt:        time.Unix(0, 0).UTC(),
	}
	saved, err := s.controls.SaveExecution(ctx, fresh, sm.ControlHistory{
		ChangeType:     sm.ChangeSynced,
		RequestedBy:    0,
		PreviousValue:  false,
		RequestedValue: false,
		Reason:         "control state created",
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		return sm.ControlState{}, err
	}
	return saved, nil
}

func (s *ControlService) ListStates(ctx context.Context) ([]sm.ControlState, error) {
	return s.controls.ListStates(ctx)
}

func (s *ControlService) History(ctx context.Context, controlID, limit int) ([]sm.ControlHistory, error) {
	return s.controls.ListHistory(ctx, controlID, limit)
}
