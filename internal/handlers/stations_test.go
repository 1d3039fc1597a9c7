package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"station_monitor/internal/logger"
	"station_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

func TestReconcileStations_TriggersSupervisor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(&service.Service{Authorization: &mockAuth{parseID: 1}}, logger.Get(logger.ErrorLevel))

	triggered := 0
	h.SetReconcile(func() { triggered++ })
	r := h.InitRoutes()

	w := postJSON(t, r, "/api/v1/stations/reconcile", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d, want %d, body=%s", w.Code, http.StatusAccepted, w.Body.String())
	}
	if triggered != 1 {
		t.Fatalf("expected one supervisor nudge, got %d", triggered)
	}
}

func TestReconcileStations_NoSupervisorInstalled(t *testing.T) {
	s := &service.Service{Authorization: &mockAuth{parseID: 1}}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stations/reconcile", nil)
	req.Header.Set("Authorization", "Bearer token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
