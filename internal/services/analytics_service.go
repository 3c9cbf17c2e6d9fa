package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/analytics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/logger"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
)

// analyticsService feeds stored projects through the aggregation engine.
type analyticsService struct {
	db    *gorm.DB
	users UserServicer
	now   func() time.Time
}

// NewAnalyticsService creates a new AnalyticsServicer.
func NewAnalyticsService(db *gorm.DB, users UserServicer) AnalyticsServicer {
	return &analyticsService{db: db, users: users, now: time.Now}
}

// ProjectSummary computes the summary of a project the caller belongs to.
func (s *analyticsService) ProjectSummary(ctx context.Context, sess session.Session, projectID string, period *analytics.Period) (*analytics.Summary, error) {
	project, err := findMemberProject(ctx, s.db, sess, projectID)
	if err != nil {
		return nil, err
	}
	summary, _, err := s.Summarize(ctx, project, period)
	return summary, err
}

// Summarize loads the expenses of an already authorized project and computes
// its summary. The expenses are returned newest first.
func (s *analyticsService) Summarize(ctx context.Context, project *models.Project, period *analytics.Period) (*analytics.Summary, []models.Expense, error) {
	expenses, err := loadExpenses(ctx, s.db, project.ID)
	if err != nil {
		return nil, nil, err
	}
	summary := analytics.Compute(project, expenses, analytics.Options{
		Period:    period,
		Directory: s.directory(ctx),
		Now:       s.now(),
	})
	return &summary, expenses, nil
}

// directory resolves expense creators through the user table. Lookup errors
// leave creators unresolved rather than failing the summary.
func (s *analyticsService) directory(ctx context.Context) analytics.Directory {
	return func(ids []string) map[string]analytics.UserInfo {
		out := make(map[string]analytics.UserInfo, len(ids))
		users, err := s.users.GetUsersByIDs(ctx, ids)
		if err != nil {
			logger.Get().Warnw("failed to resolve expense creators", "error", err, "count", len(ids))
			return out
		}
		for id, u := range users {
			out[id] = analytics.UserInfo{
				ID:          u.ID,
				DisplayName: u.DisplayName,
				Email:       u.Email,
				AvatarURL:   u.AvatarURL,
			}
		}
		return out
	}
}
