package services

import (
	"context"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/analytics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
)

// shareService hands out share tokens and builds the anonymous read-only view.
type shareService struct {
	projects  ProjectServicer
	analytics AnalyticsServicer
}

// NewShareService creates a new ShareServicer.
func NewShareService(projects ProjectServicer, analytics AnalyticsServicer) ShareServicer {
	return &shareService{projects: projects, analytics: analytics}
}

// GetOrCreateShareToken returns the project's current token, issuing one if
// the project has never been shared.
func (s *shareService) GetOrCreateShareToken(ctx context.Context, sess session.Session, projectID string) (string, error) {
	project, err := s.projects.GetProject(ctx, sess, projectID)
	if err != nil {
		return "", err
	}
	if project.ShareableID != nil && *project.ShareableID != "" {
		return *project.ShareableID, nil
	}
	return s.projects.GenerateShareToken(ctx, sess, projectID)
}

// RegenerateShareToken replaces the token, invalidating previously issued links.
func (s *shareService) RegenerateShareToken(ctx context.Context, sess session.Session, projectID string) (string, error) {
	return s.projects.GenerateShareToken(ctx, sess, projectID)
}

// ResolveShared returns the project behind token with its expenses and summary.
// Member emails are withheld from anonymous viewers.
func (s *shareService) ResolveShared(ctx context.Context, token string, period *analytics.Period) (*SharedView, error) {
	project, err := s.projects.ResolveByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}

	summary, expenses, err := s.analytics.Summarize(ctx, project, period)
	if err != nil {
		return nil, err
	}

	project.MemberEmails = nil
	project.ShareableID = nil
	for i := range project.Members {
		project.Members[i].Email = ""
	}
	for i := range summary.Members {
		summary.Members[i].Email = ""
	}

	return &SharedView{
		Project:  project,
		Expenses: expenses,
		Summary:  summary,
		ReadOnly: true,
	}, nil
}
