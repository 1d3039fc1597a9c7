package handlers

import (
	sm "station_monitor"
	"station_monitor/internal/logger"
	"station_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// mockAuth is a stub for service.Authorization.
type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error
	user          *sm.User
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	return m.signUpID, m.signUpErr
}

func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	return m.genTokenToken, m.genTokenErr
}

func (m *mockAuth) ParseToken(accessToken string) (int, error) {
	return m.parseID, m.parseErr
}

func (m *mockAuth) GetUser(userID int) (*sm.User, error) {
	return m.user, nil
}

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, logger.Get(logger.ErrorLevel))
	return h.InitRoutes()
}
