package station_monitor

import "time"

// Kinds of plant equipment a control tag drives.
const (
	TagTypePump      = "pump"
	TagTypeValve     = "valve"
	TagTypeAlarm     = "alarm"
	TagTypeEmergency = "emergency"
	TagTypeMode      = "mode"
	TagTypeReset     = "reset"
	TagTypeDoor      = "door"
	TagTypeOther     = "other"
)

// Danger levels for changing a control.
const (
	DangerSafe     = 0
	DangerCaution  = 1
	DangerDanger   = 2
	DangerCritical = 3
)

// ControlState is the persistent state of one boolean actuator tag. Created
// lazily on the first successful write; never deleted except with its tag.
type ControlState struct {
	ID                   int       `json:"id"`
	TagID                int       `json:"tag_id"`
	TagType              string    `json:"tag_type"`
	CurrentValue         bool      `json:"current_value"`
	PLCValue             bool      `json:"plc_value"` // last value confirmed from the device
	IsSyncedWithPLC      bool      `json:"is_synced_with_plc"`
	SyncError            string    `json:"sync_error,omitempty"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	ConfirmationTimeout  int       `json:"confirmation_timeout_s"`
	RateLimitSeconds     int       `json:"rate_limit_s"`
	DangerLevel          int       `json:"danger_level"`
	Description          string    `json:"description,omitempty"`
	LastChangedBy        int       `json:"last_changed_by,omitempty"`
	LastChangedAt        time.Time `json:"last_changed_at"`
}

// IsRateLimited reports whether a change attempt at now falls inside the
// rate-limit window.
func (c ControlState) IsRateLimited(now time.Time) bool {
	return now.Sub(c.LastChangedAt).Seconds() < float64(c.RateLimitSeconds)
}

// TimeUntilAllowed returns the seconds remaining before the next change is
// allowed, zero when not rate-limited.
func (c ControlState) TimeUntilAllowed(now time.Time) float64 {
	elapsed := now.Sub(c.LastChangedAt).Seconds()
	remaining := float64(c.RateLimitSeconds) - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Lifecycle states of a pending change request.
const (
	RequestPending   = "pending"
	RequestConfirmed = "confirmed"
	RequestCancelled = "cancelled"
	RequestExpired   = "expired"
	RequestFailed    = "failed"
)

// ControlChangeRequest is an ephemeral dual-confirmation request for a
// dangerous control change.
type ControlChangeRequest struct {
	ID                int        `json:"id"`
	ControlID         int        `json:"control_id"`
	RequestedValue    bool       `json:"requested_value"`
	Reason            string     `json:"reason,omitempty"`
	Status            string     `json:"status"`
	ConfirmationToken string     `json:"confirmation_token"`
	ExpiresAt         time.Time  `json:"expires_at"`
	RequestedBy       int        `json:"requested_by"`
	ConfirmedBy       *int       `json:"confirmed_by,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// IsExpired reports whether the request passed its confirmation deadline.
func (r ControlChangeRequest) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Audit event types on a control.
const (
	ChangeRequested = "requested"
	ChangeConfirmed = "confirmed"
	ChangeExecuted  = "executed"
	ChangeFailed    = "failed"
	ChangeSynced    = "synced"
	ChangeTimeout   = "timeout"
	ChangeCancelled = "cancelled"
)

// ControlHistory is one append-only audit row for a control.
type ControlHistory struct {
	ID             int       `json:"id"`
	ControlID      int       `json:"control_id"`
	ChangeType     string    `json:"change_type"`
	RequestedBy    int       `json:"requested_by"`
	ConfirmedBy    *int      `json:"confirmed_by,omitempty"`
	PreviousValue  bool      `json:"previous_value"`
	RequestedValue bool      `json:"requested_value"`
	FinalValue     *bool     `json:"final_value,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ControlPermission grants one user the right to request changes on one
// control. Superusers bypass permission checks entirely.
type ControlPermission struct {
	ID        int        `json:"id"`
	UserID    int        `json:"user_id"`
	ControlID int        `json:"control_id"`
	IsActive  bool       `json:"is_active"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsValid reports whether the permission is active and unexpired at now.
func (p ControlPermission) IsValid(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	return true
}

// User mirrors the account row the auth layer manages. Staff users may
// confirm pending control changes; superusers may change any control.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	IsStaff      bool   `json:"is_staff"`
	IsSuperuser  bool   `json:"is_superuser"`
}
