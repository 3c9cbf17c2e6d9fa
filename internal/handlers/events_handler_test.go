package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/analytics"
	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/live"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
)

// streamRecorder adds the CloseNotifier gin's Stream requires.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func setupEventsRouter(handler *EventsHandler) *gin.Engine {
	r := gin.New()
	r.GET("/projects/:id/events", injectSession(aliceID), handler.ProjectEvents)
	return r
}

func waitForSubscriber(t *testing.T, hub *live.Hub, topic string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(topic) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventsHandler_ProjectEvents(t *testing.T) {
	t.Run("streams snapshot, change and refreshed summary", func(t *testing.T) {
		hub := live.NewHub(8)
		calls := 0
		analyticsSvc := &mockAnalyticsService{
			projectSummaryFn: func(session.Session, string, *analytics.Period) (*analytics.Summary, error) {
				calls++
				return &analytics.Summary{ProjectID: projectID, ExpenseCount: calls - 1}, nil
			},
		}
		r := setupEventsRouter(NewEventsHandler(hub, analyticsSvc))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req := httptest.NewRequest("GET", "/projects/"+projectID+"/events", http.NoBody).WithContext(ctx)
		rec := newStreamRecorder()

		done := make(chan struct{})
		go func() {
			r.ServeHTTP(rec, req)
			close(done)
		}()

		topic := live.ProjectTopic(projectID)
		waitForSubscriber(t, hub, topic)
		hub.Publish(live.Event{Topic: topic, Kind: live.KindExpenseAdded, ID: expenseID, Payload: testExpense()})
		hub.Publish(live.Event{Topic: topic, Kind: live.KindProjectDeleted, ID: projectID})

		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("stream did not end after project deletion")
		}

		body := rec.Body.String()
		for _, want := range []string{"event:summary", "event:expense_added", "event:project_deleted", `"expense_count":1`} {
			if !strings.Contains(body, want) {
				t.Errorf("expected %q in stream:\n%s", want, body)
			}
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/event-stream") {
			t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
		}
		if hub.Subscribers(topic) != 0 {
			t.Error("expected subscription released")
		}
	})

	t.Run("returns 404 for non-members without streaming", func(t *testing.T) {
		hub := live.NewHub(8)
		analyticsSvc := &mockAnalyticsService{
			projectSummaryFn: func(session.Session, string, *analytics.Period) (*analytics.Summary, error) {
				return nil, apperrors.ErrProjectNotFound
			},
		}
		r := setupEventsRouter(NewEventsHandler(hub, analyticsSvc))

		rec := doRequest(r, "GET", "/projects/"+projectID+"/events", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if hub.Subscribers(live.ProjectTopic(projectID)) != 0 {
			t.Error("expected subscription released")
		}
	})
}
