package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"engagement-service/internal/engagement"
	"engagement-service/internal/logging"
	"engagement-service/internal/models"
	"engagement-service/internal/providers"
	"engagement-service/internal/services"
)

// Engagement is the service surface the HTTP API exposes.
type Engagement interface {
	Now() time.Time
	ClassifySla(ctx context.Context, leadID string, now time.Time) (models.SlaStatus, error)
	HoursWithoutResponse(ctx context.Context, leadID string, now time.Time) (int, error)
	RankBusinessType(ctx context.Context, businessType string, now time.Time) ([]models.LeadUrgency, error)
	AppendMessage(ctx context.Context, m models.Message) (models.Message, error)
	MarkRead(ctx context.Context, leadID, messageID string) (models.Message, error)
	GenerateFollowUpAlerts(ctx context.Context, now time.Time, thresholdDays int) ([]models.FollowUpAlert, error)
	MarkContacted(ctx context.Context, dealID string) (models.Deal, error)
	Postpone(ctx context.Context, dealID string, days int) (models.Deal, error)
	Discard(ctx context.Context, dealID string) (models.Deal, error)
	IsNotificationSuppressed(now time.Time) bool
	EvaluateNow(ctx context.Context) (services.EvaluationReport, error)
}

type Handler struct {
	svc      Engagement
	hub      *providers.Hub
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

func NewHandler(svc Engagement, hub *providers.Hub, logger *logging.Logger) *Handler {
	return &Handler{
		svc:    svc,
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type appendMessageRequest struct {
	ID        string     `json:"id"`
	Direction string     `json:"direction" binding:"required,oneof=inbound outbound"`
	Body      string     `json:"body"`
	Timestamp *time.Time `json:"timestamp"`
}

type postponeRequest struct {
	Days int `json:"days" binding:"required"`
}

func (h *Handler) GetLeadSla(c *gin.Context) {
	leadID := c.Param("id")
	now := h.svc.Now()
	status, err := h.svc.ClassifySla(c.Request.Context(), leadID, now)
	if err != nil {
		h.fail(c, "Failed to classify SLA for lead "+leadID, err)
		return
	}
	hours, err := h.svc.HoursWithoutResponse(c.Request.Context(), leadID, now)
	if err != nil {
		h.fail(c, "Failed to compute hours without response for lead "+leadID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead_id": leadID, "status": status, "hours_without_response": hours})
}

func (h *Handler) GetHoursWithoutResponse(c *gin.Context) {
	leadID := c.Param("id")
	hours, err := h.svc.HoursWithoutResponse(c.Request.Context(), leadID, h.svc.Now())
	if err != nil {
		h.fail(c, "Failed to compute hours without response for lead "+leadID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead_id": leadID, "hours_without_response": hours})
}

func (h *Handler) RankLeads(c *gin.Context) {
	ranked, err := h.svc.RankBusinessType(c.Request.Context(), c.Query("business_type"), h.svc.Now())
	if err != nil {
		h.fail(c, "Failed to rank leads", err)
		return
	}
	c.JSON(http.StatusOK, ranked)
}

func (h *Handler) AppendMessage(c *gin.Context) {
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request body for message: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	m := models.Message{
		ID:        req.ID,
		LeadID:    c.Param("id"),
		Direction: models.Direction(req.Direction),
		Body:      req.Body,
	}
	if req.Timestamp != nil {
		m.Timestamp = *req.Timestamp
	}

	stored, err := h.svc.AppendMessage(c.Request.Context(), m)
	if err != nil {
		h.fail(c, "Failed to append message", err)
		return
	}
	h.logger.Infof("Appended message %s to lead %s", stored.ID, stored.LeadID)
	c.JSON(http.StatusCreated, stored)
}

func (h *Handler) MarkRead(c *gin.Context) {
	m, err := h.svc.MarkRead(c.Request.Context(), c.Param("id"), c.Param("message_id"))
	if err != nil {
		h.fail(c, "Failed to mark message read", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) GetFollowUps(c *gin.Context) {
	threshold := -1
	if raw := c.Query("threshold_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			h.logger.Errorf("Invalid threshold_days %s", raw)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid threshold_days"})
			return
		}
		threshold = v
	}

	alerts, err := h.svc.GenerateFollowUpAlerts(c.Request.Context(), h.svc.Now(), threshold)
	if err != nil {
		h.fail(c, "Failed to generate follow-up alerts", err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *Handler) MarkContacted(c *gin.Context) {
	d, err := h.svc.MarkContacted(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to mark deal contacted", err)
		return
	}
	h.logger.Infof("Deal %s marked contacted", d.ID)
	c.JSON(http.StatusOK, d)
}

func (h *Handler) Postpone(c *gin.Context) {
	var req postponeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request body for postpone: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	d, err := h.svc.Postpone(c.Request.Context(), c.Param("id"), req.Days)
	if err != nil {
		h.fail(c, "Failed to postpone deal", err)
		return
	}
	h.logger.Infof("Deal %s postponed %d days", d.ID, req.Days)
	c.JSON(http.StatusOK, d)
}

func (h *Handler) Discard(c *gin.Context) {
	d, err := h.svc.Discard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to discard deal", err)
		return
	}
	h.logger.Infof("Deal %s discarded", d.ID)
	c.JSON(http.StatusOK, d)
}

func (h *Handler) GetSuppressed(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suppressed": h.svc.IsNotificationSuppressed(h.svc.Now())})
}

func (h *Handler) Evaluate(c *gin.Context) {
	report, err := h.svc.EvaluateNow(c.Request.Context())
	if err != nil {
		h.fail(c, "Evaluation pass failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ServeWebSocket streams dispatched notifications to a dashboard until it disconnects.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "WebSocket channel disabled"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	if !h.hub.AddConnection(conn) {
		_ = conn.Close()
		return
	}
	defer func() {
		h.hub.RemoveConnection(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrDuplicate):
		status = http.StatusConflict
	case engagement.IsInvalidInput(err):
		status = http.StatusBadRequest
	case engagement.IsDataIntegrityError(err):
		status = http.StatusUnprocessableEntity
	}
	h.logger.Errorf("%s: %v", msg, err)
	c.JSON(status, gin.H{"error": err.Error()})
}
