package service

import (
	"context"
	"errors"
	"sync"
	"time"

	sm "station_monitor"
	"station_monitor/internal/repository"
)

// In-memory repository stubs shared by the service tests.

type stubStationRepo struct {
	stations []sm.StationConfig
}

func (s *stubStationRepo) List(ctx context.Context) ([]sm.StationConfig, error) {
	return s.stations, nil
}
func (s *stubStationRepo) ListActive(ctx context.Context) ([]sm.StationConfig, error) {
	var active []sm.StationConfig
	for _, st := range s.stations {
		if st.Active {
			active = append(active, st)
		}
	}
	return active, nil
}
func (s *stubStationRepo) GetByID(ctx context.Context, id int) (sm.StationConfig, error) {
	for _, st := range s.stations {
		if st.ID == id {
			return st, nil
		}
	}
	return sm.StationConfig{}, errors.New("station not found")
}
func (s *stubStationRepo) SetConnectionStatus(ctx context.Context, stationID int, status string) error {
	return nil
}
func (s *stubStationRepo) SetLastConnected(ctx context.Context, stationID int, ts time.Time) error {
	return nil
}
func (s *stubStationRepo) Summary(ctx context.Context) (sm.StationSummary, error) {
	return sm.StationSummary{}, nil
}

type stubTagRepo struct {
	mu           sync.Mutex
	tags         map[int]sm.TagConfig
	lastValues   map[int]string
	wholeNumbers map[int]int
}

func newStubTagRepo(tags ...sm.TagConfig) *stubTagRepo {
	r := &stubTagRepo{
		tags:         make(map[int]sm.TagConfig),
		lastValues:   make(map[int]string),
		wholeNumbers: make(map[int]int),
	}
	for _, t := range tags {
		r.tags[t.ID] = t
	}
	return r
}

func (r *stubTagRepo) ListByStation(ctx context.Context, stationID int) ([]sm.TagConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sm.TagConfig
	for _, t := range r.tags {
		if t.StationID == stationID {
			out = append(out, t)
		}
	}
	return out, nil
}
func (r *stubTagRepo) GetByID(ctx context.Context, id int) (sm.TagConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[id]
	if !ok {
		return sm.TagConfig{}, errors.New("tag not found")
	}
	return t, nil
}
func (r *stubTagRepo) UpdateLastValue(ctx context.Context, tagID int, value string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastValues[tagID] = value
	return nil
}
func (r *stubTagRepo) UpdateLastWholeNumber(ctx context.Context, tagID int, whole int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wholeNumbers[tagID] = whole
	if t, ok := r.tags[tagID]; ok {
		w := whole
		t.LastWholeNumber = &w
		r.tags[tagID] = t
	}
	return nil
}

type stubReadingRepo struct {
	mu           sync.Mutex
	readings     []sm.Reading
	alarms       []sm.AlarmEvent
	failuresLeft int
}

func (r *stubReadingRepo) Append(ctx context.Context, reading sm.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failuresLeft > 0 {
		r.failuresLeft--
		return errors.New("database is locked")
	}
	r.readings = append(r.readings, reading)
	return nil
}
func (r *stubReadingRepo) AppendAlarmEvent(ctx context.Context, e sm.AlarmEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alarms = append(r.alarms, e)
	return nil
}
func (r *stubReadingRepo) ListByTag(ctx context.Context, tagID int, from, to time.Time, limit int) ([]sm.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readings, nil
}

type stubBreachRepo struct {
	mu       sync.Mutex
	breaches []sm.Breach
	nextID   int
}

func (r *stubBreachRepo) Append(ctx context.Context, b sm.Breach) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	r.breaches = append(r.breaches, b)
	return b.ID, nil
}
func (r *stubBreachRepo) GetByID(ctx context.Context, id int) (sm.Breach, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.breaches {
		if b.ID == id {
			return b, nil
		}
	}
	return sm.Breach{}, errors.New("breach not found")
}
func (r *stubBreachRepo) Acknowledge(ctx context.Context, breachID int, username string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.breaches {
		if b.ID == breachID {
			r.breaches[i].Acknowledged = true
			r.breaches[i].AcknowledgedBy = username
			return nil
		}
	}
	return errors.New("breach not found")
}
func (r *stubBreachRepo) List(ctx context.Context, f repository.BreachFilter) ([]sm.Breach, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breaches, nil
}
func (r *stubBreachRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type stubControlRepo struct {
	mu       sync.Mutex
	states   map[int]sm.ControlState // keyed by tag ID
	history  []sm.ControlHistory
	requests map[string]sm.ControlChangeRequest
	allowed  map[int]bool // userID -> permitted
	nextID   int
}

func newStubControlRepo() *stubControlRepo {
	return &stubControlRepo{
		states:   make(map[int]sm.ControlState),
		requests: make(map[string]sm.ControlChangeRequest),
		allowed:  make(map[int]bool),
	}
}

func (r *stubControlRepo) GetStateByTag(ctx context.Context, tagID int) (*sm.ControlState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[tagID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
func (r *stubControlRepo) GetStateByID(ctx context.Context, id int) (sm.ControlState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s.ID == id {
			return s, nil
		}
	}
	return sm.ControlState{}, errors.New("control not found")
}
func (r *stubControlRepo) ListStates(ctx context.Context) ([]sm.ControlState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sm.ControlState
	for _, s := range r.states {
		out = append(out, s)
	}
	return out, nil
}
func (r *stubControlRepo) SaveExecution(ctx context.Context, state sm.ControlState, hist sm.ControlHistory) (sm.ControlState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state.ID == 0 {
		r.nextID++
		state.ID = r.nextID
	}
	r.states[state.TagID] = state
	hist.ControlID = state.ID
	r.history = append(r.history, hist)
	return state, nil
}
func (r *stubControlRepo) AppendHistory(ctx context.Context, h sm.ControlHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, h)
	return nil
}
func (r *stubControlRepo) ListHistory(ctx context.Context, controlID, limit int) ([]sm.ControlHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history, nil
}
func (r *stubControlRepo) CreateRequest(ctx context.Context, req sm.ControlChangeRequest) (sm.ControlChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	req.ID = r.nextID
	r.requests[req.ConfirmationToken] = req
	return req, nil
}
func (r *stubControlRepo) GetRequestByToken(ctx context.Context, token string) (sm.ControlChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[token]
	if !ok {
		return sm.ControlChangeRequest{}, repository.ErrRequestNotFound
	}
	return req, nil
}
func (r *stubControlRepo) UpdateRequestStatus(ctx context.Context, requestID int, status string, confirmedBy *int, confirmedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, req := range r.requests {
		if req.ID == requestID {
			req.Status = status
			req.ConfirmedBy = confirmedBy
			req.ConfirmedAt = confirmedAt
			r.requests[token] = req
		}
	}
	return nil
}
func (r *stubControlRepo) HasActivePermission(ctx context.Context, userID, controlID int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allowed[userID], nil
}

func (r *stubControlRepo) historyTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, h := range r.history {
		types = append(types, h.ChangeType)
	}
	return types
}

type stubNotificationRepo struct {
	mu          sync.Mutex
	schedules   map[int]sm.NotificationSchedule // keyed by tag ID
	recipients  []sm.NotificationRecipient
	recorded    int
	deactivated int
	nextID      int
}

func newStubNotificationRepo() *stubNotificationRepo {
	return &stubNotificationRepo{schedules: make(map[int]sm.NotificationSchedule)}
}

func (r *stubNotificationRepo) GetScheduleByTag(ctx context.Context, tagID int) (*sm.NotificationSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[tagID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
func (r *stubNotificationRepo) UpsertSchedule(ctx context.Context, s sm.NotificationSchedule) (sm.NotificationSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.schedules[s.TagID]; ok {
		s.ID = prev.ID
	} else {
		r.nextID++
		s.ID = r.nextID
	}
	r.schedules[s.TagID] = s
	return s, nil
}
func (r *stubNotificationRepo) RecordNotification(ctx context.Context, scheduleID, breachID int, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded++
	for tagID, s := range r.schedules {
		if s.ID == scheduleID {
			s.BreachID = breachID
			s.LastNotifiedAt = ts
			s.NotificationCount++
			r.schedules[tagID] = s
		}
	}
	return nil
}
func (r *stubNotificationRepo) DeactivateByTag(ctx context.Context, tagID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deactivated++
	if s, ok := r.schedules[tagID]; ok && s.IsActive {
		s.IsActive = false
		r.schedules[tagID] = s
	}
	return nil
}
func (r *stubNotificationRepo) ListRecipients(ctx context.Context, tagID int) ([]sm.NotificationRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recipients, nil
}

type stubUsers struct {
	users map[int]*sm.User
}

func (s *stubUsers) Create(username, hash string) (int, error) { return 0, nil }
func (s *stubUsers) GetByUsername(username string) (*sm.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}
func (s *stubUsers) GetByID(id int) (*sm.User, error) {
	return s.users[id], nil
}

type countingTransport struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (t *countingTransport) Send(ctx context.Context, email, subject, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return errors.New("smtp unavailable")
	}
	t.sent = append(t.sent, email)
	return nil
}
