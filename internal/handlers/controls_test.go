package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sm "station_monitor"
	"station_monitor/internal/service"
)

// mockControls is a stub for service.Controls.
type mockControls struct {
	outcome *service.ChangeOutcome
	err     error
}

func (m *mockControls) RequestChange(ctx context.Context, p service.ChangeParams) (*service.ChangeOutcome, error) {
	return m.outcome, m.err
}

func (m *mockControls) ConfirmChange(ctx context.Context, token string, userID int) (*service.ChangeOutcome, error) {
	return m.outcome, m.err
}

func (m *mockControls) ListStates(ctx context.Context) ([]sm.ControlState, error) {
	return nil, nil
}

func (m *mockControls) History(ctx context.Context, controlID, limit int) ([]sm.ControlHistory, error) {
	return nil, nil
}

func postJSON(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	r.ServeHTTP(w, req)
	return w
}

func TestRequestControlChange_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"permission denied", service.ErrPermissionDenied, http.StatusForbidden},
		{"rate limited", &service.RateLimitedError{Remaining: 2.5}, http.StatusTooManyRequests},
		{"no-op", service.ErrNoChange, http.StatusConflict},
		{"station down", service.ErrStationUnavailable, http.StatusServiceUnavailable},
		{"not a control", service.ErrNotAControl, http.StatusBadRequest},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := &service.Service{
				Authorization: &mockAuth{parseID: 1},
				Controls:      &mockControls{err: tc.err},
			}
			r := newTestRouter(s)
			w := postJSON(t, r, "/api/v1/controls/request", `{"tag_id":5,"value":true}`)
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d, body=%s", w.Code, tc.wantCode, w.Body.String())
			}
		})
	}
}

func TestConfirmControlChange_ExpiredMapsToGone(t *testing.T) {
	s := &service.Service{
		Authorization: &mockAuth{parseID: 1},
		Controls:      &mockControls{err: service.ErrConfirmationExpired},
	}
	r := newTestRouter(s)
	w := postJSON(t, r, "/api/v1/controls/confirm", `{"token":"tok-1"}`)
	if w.Code != http.StatusGone {
		t.Fatalf("status=%d, want %d", w.Code, http.StatusGone)
	}
}

func TestRequestControlChange_Executed(t *testing.T) {
	s := &service.Service{
		Authorization: &mockAuth{parseID: 1},
		Controls: &mockControls{outcome: &service.ChangeOutcome{
			Status:  "executed",
			Message: "wrote true to pump_run",
		}},
	}
	r := newTestRouter(s)
	w := postJSON(t, r, "/api/v1/controls/request", `{"tag_id":5,"value":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := &service.Service{Authorization: &mockAuth{parseID: 1}}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/controls/", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}
