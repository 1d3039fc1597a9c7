package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"station_monitor/internal/repository"
)

const (
	errListBreaches = "failed to list breaches"
	errAcknowledge  = "failed to acknowledge breach"
)

// @Summary      List threshold breaches
// @Tags         breaches
// @Produce      json
// @Param        tag_id  query  int     false  "filter by tag"
// @Param        unack   query  bool    false  "only unacknowledged"
// @Param        level   query  string  false  "Warning or Critical"
// @Param        limit   query  int     false  "max rows"
// @Success      200  {array}  station_monitor.Breach
// @Router       /api/v1/breaches [get]
// @Security     BearerAuth
func (h *Handler) listBreaches(c *gin.Context) {
	var filter repository.BreachFilter
	filter.TagID, _ = strconv.Atoi(c.Query("tag_id"))
	filter.UnackOnly = c.Query("unack") == "true"
	filter.Level = c.Query("level")
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))

	breaches, err := h.services.Breaches.List(c.Request.Context(), filter)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListBreaches, "breaches_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, breaches)
}

// @Summary      Acknowledge a breach
// @Tags         breaches
// @Produce      json
// @Param        id  path  int  true  "breach ID"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/breaches/{id}/acknowledge [post]
// @Security     BearerAuth
func (h *Handler) acknowledgeBreach(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	userID := c.GetInt(ctxUserID)
	if err := h.services.Breaches.Acknowledge(c.Request.Context(), id, userID); err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errAcknowledge, "breach_ack_failed", err, "breach_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
}
