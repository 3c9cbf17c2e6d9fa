package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/analytics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/live"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/logger"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/metrics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/services"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
)

// Subscriber opens live event subscriptions.
type Subscriber interface {
	Subscribe(topic string) (<-chan live.Event, func())
}

// EventsHandler streams live project and notification changes as server-sent events.
type EventsHandler struct {
	hub              Subscriber
	analyticsService services.AnalyticsServicer
	keepAlive        time.Duration
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(hub Subscriber, analyticsService services.AnalyticsServicer) *EventsHandler {
	return &EventsHandler{hub: hub, analyticsService: analyticsService, keepAlive: 25 * time.Second}
}

// summaryEvent is the SSE event name carrying a recomputed summary.
const summaryEvent = "summary"

func sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// ProjectEvents streams a project's changes. The current summary is sent
// first and again after every change, so a client can bind a view to the
// stream without polling.
// @Summary     Stream project changes
// @Description Server-sent events: "summary" snapshots plus expense_added, expense_edited, expense_deleted, project_updated and project_deleted. Browsers may pass the token as ?access_token=.
// @Tags        live
// @Produce     text/event-stream
// @Security    BearerAuth
// @Param       id    path  string true  "Project ID"
// @Param       month query int    false "Month (1-12)"
// @Param       year  query int    false "Year"
// @Success     200 {string} string "Event stream"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/events [get]
func (h *EventsHandler) ProjectEvents(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	period, err := parsePeriod(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Subscribe before the first snapshot so no change slips in between.
	events, cancel := h.hub.Subscribe(live.ProjectTopic(projectID))
	defer cancel()

	summary, err := h.analyticsService.ProjectSummary(c.Request.Context(), sess, projectID, period)
	if err != nil {
		respondWithError(c, err)
		return
	}

	metrics.LiveSubscribers.Inc()
	defer metrics.LiveSubscribers.Dec()

	sseHeaders(c)
	c.SSEvent(summaryEvent, summary)
	c.Writer.Flush()

	h.stream(c, events, func(ev live.Event) bool {
		c.SSEvent(ev.Kind, ev.Payload)
		if ev.Kind == live.KindProjectDeleted {
			return false
		}
		return h.sendSummary(c, sess, projectID, period)
	})
}

func (h *EventsHandler) sendSummary(c *gin.Context, sess session.Session, projectID string, period *analytics.Period) bool {
	summary, err := h.analyticsService.ProjectSummary(c.Request.Context(), sess, projectID, period)
	if err != nil {
		// Membership revoked or project gone: end the stream.
		logger.Get().Infow("closing project stream", "project_id", projectID, "user_id", sess.UserID, "error", err)
		return false
	}
	c.SSEvent(summaryEvent, summary)
	return true
}

// NotificationEvents streams the caller's new notifications.
// @Summary     Stream notifications
// @Tags        live
// @Produce     text/event-stream
// @Security    BearerAuth
// @Success     200 {string} string "Event stream"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications/events [get]
func (h *EventsHandler) NotificationEvents(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	events, cancel := h.hub.Subscribe(live.UserTopic(sess.UserID))
	defer cancel()

	metrics.LiveSubscribers.Inc()
	defer metrics.LiveSubscribers.Dec()

	sseHeaders(c)
	c.SSEvent("ready", gin.H{"user_id": sess.UserID})
	c.Writer.Flush()

	h.stream(c, events, func(ev live.Event) bool {
		c.SSEvent(ev.Kind, ev.Payload)
		return true
	})
}

// stream pumps events until the client disconnects, the subscription
// closes or handle returns false. Idle streams get a keep-alive comment.
func (h *EventsHandler) stream(c *gin.Context, events <-chan live.Event, handle func(live.Event) bool) {
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			return handle(ev)
		case <-ticker.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		}
	})
}
