package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"msgmon/internal/history"
	"msgmon/internal/logger"
	"msgmon/pkg/errors"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Handler{service: service, logger: log}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/dashboard", h.GetDashboard)

		hist := v1.Group("/history")
		{
			hist.GET("", h.ListHistory)
			hist.GET("/:id", h.GetMessage)
			hist.DELETE("/:id", h.DeleteMessage)
		}

		schedules := v1.Group("/schedules")
		{
			schedules.GET("", h.ListSchedules)
			schedules.GET("/:name", h.GetSchedule)
		}

		transports := v1.Group("/transports")
		{
			transports.GET("", h.ListTransports)
			transports.GET("/:name/messages", h.ListTransportMessages)
		}

		v1.GET("/workers", h.ListWorkers)
		v1.GET("/alerts", h.ListAlerts)
	}
}

func (h *Handler) GetDashboard(c *gin.Context) {
	view, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListHistory accepts period, from, to, transport, status, type, tag,
// not_tag, schedule, sort, run_id and limit.
func (h *Handler) ListHistory(c *gin.Context) {
	q, err := historyQuery(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	view, err := h.service.History(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetMessage(c *gin.Context) {
	record, err := h.service.Message(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.service.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListSchedules(c *gin.Context) {
	views, err := h.service.Schedules(c.Request.Context(), periodParam(c, history.InLastDay))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) GetSchedule(c *gin.Context) {
	view, err := h.service.Schedule(c.Request.Context(), c.Param("name"), periodParam(c, history.InLastWeek), ParseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ListTransports(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Transports(c.Request.Context(), nil))
}

func (h *Handler) ListTransportMessages(c *gin.Context) {
	messages, err := h.service.TransportMessages(c.Request.Context(), c.Param("name"), ParseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *Handler) ListWorkers(c *gin.Context) {
	workers, err := h.service.Workers(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, workers)
}

func (h *Handler) ListAlerts(c *gin.Context) {
	alerts, err := h.service.Alerts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func historyQuery(c *gin.Context) (HistoryQuery, error) {
	q := HistoryQuery{
		Input: history.Input{
			Period:      c.Query("period"),
			From:        c.Query("from"),
			To:          c.Query("to"),
			Status:      c.Query("status"),
			MessageType: c.Query("type"),
			Transport:   c.Query("transport"),
			Tags:        c.QueryArray("tag"),
			NotTags:     c.QueryArray("not_tag"),
			Sort:        c.Query("sort"),
		},
		Schedule: c.Query("schedule"),
		Limit:    ParseLimit(c.Query("limit")),
	}
	if raw := c.Query("run_id"); raw != "" {
		runID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return HistoryQuery{}, errors.ErrValidation.WithMessage("invalid run_id %q", raw)
		}
		q.RunID = runID
	}
	return q, nil
}

func periodParam(c *gin.Context, def history.Period) history.Period {
	return history.ParsePeriod(c.Query("period"), def)
}
