package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"station_monitor/internal/service"
)

const (
	errListControls   = "failed to list controls"
	errControlHistory = "failed to load control history"
)

// Request DTO for a control change.
type changeRequest struct {
	TagID  int    `json:"tag_id" binding:"required"`
	Value  *bool  `json:"value" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

// Request DTO for confirming a pending change.
type confirmRequest struct {
	Token string `json:"token" binding:"required"`
}

// @Summary      List control states
// @Tags         controls
// @Produce      json
// @Success      200  {array}  station_monitor.ControlState
// @Router       /api/v1/controls [get]
// @Security     BearerAuth
func (h *Handler) listControls(c *gin.Context) {
	states, err := h.services.Controls.ListStates(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListControls, "controls_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, states)
}

// @Summary      Request a control change
// @Description  Dangerous controls return a confirmation token instead of executing
// @Tags         controls
// @Accept       json
// @Produce      json
// @Param        body  body      changeRequest  true  "change payload"
// @Success      200   {object}  service.ChangeOutcome
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      429   {object}  map[string]interface{}
// @Router       /api/v1/controls/request [post]
// @Security     BearerAuth
func (h *Handler) requestControlChange(c *gin.Context) {
	var input changeRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	outcome, err := h.services.Controls.RequestChange(c.Request.Context(), service.ChangeParams{
		TagID:  input.TagID,
		Value:  *input.Value,
		Reason: input.Reason,
		UserID: c.GetInt(ctxUserID),
	})
	if err != nil {
		h.writeControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// @Summary      Confirm a pending control change
// @Tags         controls
// @Accept       json
// @Produce      json
// @Param        body  body      confirmRequest  true  "confirmation token"
// @Success      200   {object}  service.ChangeOutcome
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      410   {object}  map[string]string
// @Router       /api/v1/controls/confirm [post]
// @Security     BearerAuth
func (h *Handler) confirmControlChange(c *gin.Context) {
	var input confirmRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	outcome, err := h.services.Controls.ConfirmChange(c.Request.Context(), input.Token, c.GetInt(ctxUserID))
	if err != nil {
		h.writeControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// @Summary      Audit history for a control
// @Tags         controls
// @Produce      json
// @Param        id     path   int  true   "control ID"
// @Param        limit  query  int  false  "max rows"
// @Success      200  {array}  station_monitor.ControlHistory
// @Router       /api/v1/controls/{id}/history [get]
// @Security     BearerAuth
func (h *Handler) controlHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	history, err := h.services.Controls.History(c.Request.Context(), id, limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errControlHistory, "control_history_failed", err, "control_id", id)
		return
	}
	c.JSON(http.StatusOK, history)
}

// writeControlError maps gate-chain errors to HTTP codes so clients can
// distinguish "denied" from "retry later" from "nothing to do".
func (h *Handler) writeControlError(c *gin.Context, err error) {
	var rateErr *service.RateLimitedError
	switch {
	case errors.As(err, &rateErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":            rateErr.Error(),
			"retry_after_secs": rateErr.Remaining,
		})
	case errors.Is(err, service.ErrPermissionDenied),
		errors.Is(err, service.ErrConfirmationForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoChange):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConfirmationExpired),
		errors.Is(err, service.ErrRequestNotPending):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStationUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotAControl):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "control change failed", "control_change_failed", err)
	}
}
