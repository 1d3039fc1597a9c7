package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errListStations = "failed to list stations"
	errGetStation   = "failed to load station"
	errGetSummary   = "failed to load summary"
	errListTags     = "failed to list tags"
	errListReadings = "failed to list readings"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List stations with live connection state
// @Tags         stations
// @Produce      json
// @Success      200  {array}   service.StationStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/stations [get]
// @Security     BearerAuth
func (h *Handler) listStations(c *gin.Context) {
	stations, err := h.services.Stations.List(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListStations, "stations_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, stations)
}

// @Summary      Get one station
// @Tags         stations
// @Produce      json
// @Param        id   path      int  true  "station ID"
// @Success      200  {object}  service.StationStatus
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/stations/{id} [get]
// @Security     BearerAuth
func (h *Handler) getStation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	station, err := h.services.Stations.Get(c.Request.Context(), id)
	if err != nil {
		h.logAndJSONError(c, http.StatusNotFound, errGetStation, "station_get_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, station)
}

// @Summary      Station health rollup
// @Tags         stations
// @Produce      json
// @Success      200  {object}  station_monitor.StationSummary
// @Router       /api/v1/stations/summary [get]
// @Security     BearerAuth
func (h *Handler) stationSummary(c *gin.Context) {
	summary, err := h.services.Stations.Summary(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSummary, "station_summary_failed", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary      Ask the supervisor to re-check station connections now
// @Tags         stations
// @Produce      json
// @Success      202  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/stations/reconcile [post]
// @Security     BearerAuth
func (h *Handler) reconcileStations(c *gin.Context) {
	if h.reconcile == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "supervisor not running"})
		return
	}
	h.reconcile()
	c.JSON(http.StatusAccepted, gin.H{"status": "reconciliation scheduled"})
}

// @Summary      List a station's tags
// @Tags         stations
// @Produce      json
// @Param        id   path      int  true  "station ID"
// @Success      200  {array}   station_monitor.TagConfig
// @Router       /api/v1/stations/{id}/tags [get]
// @Security     BearerAuth
func (h *Handler) listStationTags(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	tags, err := h.services.Stations.Tags(c.Request.Context(), id)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListTags, "tags_list_failed", err, "station_id", id)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// @Summary      Telemetry history for a tag
// @Tags         readings
// @Produce      json
// @Param        id     path   int     true   "tag ID"
// @Param        from   query  string  false  "RFC3339 start time"
// @Param        to     query  string  false  "RFC3339 end time"
// @Param        limit  query  int     false  "max rows"
// @Success      200  {array}  station_monitor.Reading
// @Router       /api/v1/tags/{id}/readings [get]
// @Security     BearerAuth
func (h *Handler) listReadings(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var from, to time.Time
	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp"})
			return
		}
		from = t
	}
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp"})
			return
		}
		to = t
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	readings, err := h.services.Readings.ListByTag(c.Request.Context(), id, from, to, limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListReadings, "readings_list_failed", err, "tag_id", id)
		return
	}
	c.JSON(http.StatusOK, readings)
}
