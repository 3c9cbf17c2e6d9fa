package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/metrics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/storage"
)

// maxStorageConcurrency bounds parallel object store calls per request.
const maxStorageConcurrency = 8

// membersByPosition preloads project members in their declared order.
func membersByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// receiptsByPosition preloads receipts in upload order.
func receiptsByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// findProject loads a project with its members, without any access check.
func findProject(ctx context.Context, db *gorm.DB, id string) (*models.Project, error) {
	var project models.Project
	err := db.WithContext(ctx).
		Preload("Members", membersByPosition).
		Where("id = ?", id).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProjectNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &project, nil
}

// findMemberProject loads a project the session belongs to. Non-members get
// PROJECT_NOT_FOUND so project ids are not disclosed.
func findMemberProject(ctx context.Context, db *gorm.DB, sess session.Session, id string) (*models.Project, error) {
	project, err := findProject(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if !project.IsMember(sess.UserID) {
		return nil, apperrors.ErrProjectNotFound
	}
	return project, nil
}

// loadExpenses returns every expense of a project with receipts, newest first.
func loadExpenses(ctx context.Context, db *gorm.DB, projectID string) ([]models.Expense, error) {
	var expenses []models.Expense
	err := db.WithContext(ctx).
		Preload("Receipts", receiptsByPosition).
		Where("project_id = ?", projectID).
		Order("created_at DESC").Order("id DESC").
		Find(&expenses).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return expenses, nil
}

// deleteObjects removes paths from the store concurrently. All deletes are
// attempted; the first error is returned and nothing is restored.
func deleteObjects(ctx context.Context, store storage.ObjectStore, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	var g errgroup.Group
	g.SetLimit(maxStorageConcurrency)
	for _, p := range paths {
		g.Go(func() error {
			err := store.Delete(ctx, p)
			metrics.ObserveReceipt("delete", err)
			return err
		})
	}
	return g.Wait()
}
