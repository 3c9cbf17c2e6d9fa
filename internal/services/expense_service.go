package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/live"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/logger"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/metrics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/pagination"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/storage"
)

// expenseService handles expense-related business logic.
type expenseService struct {
	db            *gorm.DB
	store         storage.ObjectStore
	notifications NotificationServicer
	live          live.Publisher
	now           func() time.Time
}

// NewExpenseService creates a new ExpenseServicer.
func NewExpenseService(db *gorm.DB, store storage.ObjectStore, notifications NotificationServicer, publisher live.Publisher) ExpenseServicer {
	return &expenseService{
		db:            db,
		store:         store,
		notifications: notifications,
		live:          publisher,
		now:           time.Now,
	}
}

// memberProject loads the project and requires the caller to be a member.
func (s *expenseService) memberProject(ctx context.Context, sess session.Session, projectID string) (*models.Project, error) {
	project, err := findProject(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	if !project.IsMember(sess.UserID) {
		return nil, apperrors.ErrNotProjectMember
	}
	return project, nil
}

// AddExpense uploads any receipts, stores the expense and notifies the other
// members. Receipts already uploaded are not removed if a later step fails.
func (s *expenseService) AddExpense(ctx context.Context, sess session.Session, projectID string, in CreateExpenseInput, files []ReceiptUpload) (*models.Expense, error) {
	project, err := s.memberProject(ctx, sess, projectID)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description is required")
	}
	if !in.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}

	receipts, err := s.upload(ctx, project.ID, files)
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		ProjectID:   project.ID,
		Description: description,
		Amount:      in.Amount,
		Category:    models.NormalizeCategory(project.ProjectType, strings.TrimSpace(in.Category)),
		CreatedBy:   sess.UserID,
		Receipts:    receipts,
	}
	expense.CreatedAt = s.now()
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		expense.CreatedAt = *in.CreatedAt
	}

	if err := s.db.WithContext(ctx).Create(expense).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrWriteFailure, err)
	}

	s.afterMutation(ctx, project, sess, models.NotificationExpenseAdded, expense)
	return expense, nil
}

// UploadReceipts stores files without attaching them to an expense, so a
// caller can build the receipt set passed to UpdateExpense.
func (s *expenseService) UploadReceipts(ctx context.Context, sess session.Session, projectID string, files []ReceiptUpload) ([]models.Receipt, error) {
	project, err := s.memberProject(ctx, sess, projectID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "no files uploaded")
	}
	return s.upload(ctx, project.ID, files)
}

// upload stores all files concurrently and returns their receipts in input order.
func (s *expenseService) upload(ctx context.Context, projectID string, files []ReceiptUpload) ([]models.Receipt, error) {
	if len(files) == 0 {
		return nil, nil
	}

	receipts := make([]models.Receipt, len(files))
	now := s.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxStorageConcurrency)
	for i, f := range files {
		g.Go(func() error {
			// Offset by index so same-named files in one batch get distinct keys.
			key := storage.ReceiptKey(projectID, f.Filename, now.Add(time.Duration(i)*time.Millisecond))
			obj, err := s.store.Put(gctx, key, f.ContentType, f.Data)
			metrics.ObserveReceipt("upload", err)
			if err != nil {
				return err
			}
			receipts[i] = models.Receipt{
				URL:      obj.URL,
				Path:     obj.Path,
				Name:     f.Filename,
				Type:     obj.ContentType,
				Position: i,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return receipts, nil
}

// GetExpense returns one expense of a project the caller belongs to.
func (s *expenseService) GetExpense(ctx context.Context, sess session.Session, projectID, expenseID string) (*models.Expense, error) {
	if _, err := findMemberProject(ctx, s.db, sess, projectID); err != nil {
		return nil, err
	}
	return s.findExpense(ctx, projectID, expenseID)
}

func (s *expenseService) findExpense(ctx context.Context, projectID, expenseID string) (*models.Expense, error) {
	var expense models.Expense
	err := s.db.WithContext(ctx).
		Preload("Receipts", receiptsByPosition).
		Where("id = ? AND project_id = ?", expenseID, projectID).
		First(&expense).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &expense, nil
}

// ListProjectExpenses returns a page of expenses, newest first.
func (s *expenseService) ListProjectExpenses(ctx context.Context, sess session.Session, projectID string, page pagination.PageRequest) (*pagination.PageResponse[models.Expense], error) {
	if _, err := findMemberProject(ctx, s.db, sess, projectID); err != nil {
		return nil, err
	}
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Expense{}).Where("project_id = ?", projectID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var expenses []models.Expense
	err := base.
		Preload("Receipts", receiptsByPosition).
		Scopes(pagination.NewestFirst("expenses"), pagination.Paginate(page)).
		Find(&expenses).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(expenses, page.Page, page.PageSize, total)
	return &resp, nil
}

// editableExpense loads an expense and requires the caller to be its creator.
func (s *expenseService) editableExpense(ctx context.Context, sess session.Session, projectID, expenseID string) (*models.Project, *models.Expense, error) {
	project, err := findMemberProject(ctx, s.db, sess, projectID)
	if err != nil {
		return nil, nil, err
	}
	expense, err := s.findExpense(ctx, projectID, expenseID)
	if err != nil {
		return nil, nil, err
	}
	if expense.CreatedBy != sess.UserID {
		return nil, nil, apperrors.ErrNotExpenseCreator
	}
	return project, expense, nil
}

// UpdateExpense merges the given fields. A receipt set replaces the stored
// one; files of receipts that were dropped are removed on a best-effort basis.
func (s *expenseService) UpdateExpense(ctx context.Context, sess session.Session, projectID, expenseID string, in UpdateExpenseInput) (*models.Expense, error) {
	project, expense, err := s.editableExpense(ctx, sess, projectID, expenseID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description cannot be empty")
		}
		updates["description"] = d
	}
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *in.Amount
	}
	if in.Category != nil {
		updates["category"] = models.NormalizeCategory(project.ProjectType, strings.TrimSpace(*in.Category))
	}
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		updates["created_at"] = *in.CreatedAt
	}

	var receipts []models.Receipt
	var dropped []string
	if in.Receipts != nil {
		receipts, err = s.checkReceipts(ctx, projectID, expense.ID, *in.Receipts)
		if err != nil {
			return nil, err
		}
		kept := make(map[string]bool, len(receipts))
		for _, r := range receipts {
			kept[r.Path] = true
		}
		for _, r := range expense.Receipts {
			if !kept[r.Path] {
				dropped = append(dropped, r.Path)
			}
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Expense{}).Where("id = ?", expense.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if in.Receipts == nil {
			return nil
		}
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.Receipt{}).Error; err != nil {
			return err
		}
		if len(receipts) == 0 {
			return nil
		}
		rows := make([]models.Receipt, 0, len(receipts))
		for i, r := range receipts {
			rows = append(rows, models.Receipt{
				ExpenseID: expense.ID,
				URL:       r.URL,
				Path:      r.Path,
				Name:      r.Name,
				Type:      r.Type,
				Position:  i,
			})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrWriteFailure, err)
	}

	if err := deleteObjects(ctx, s.store, dropped); err != nil {
		logger.With("expense_id", expense.ID).Warnw("failed to delete dropped receipt files", "error", err)
	}

	updated, err := s.findExpense(ctx, projectID, expense.ID)
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, project, sess, models.NotificationExpenseEdited, updated)
	return updated, nil
}

// checkReceipts normalises the paths of a replacement receipt set. Each path
// must be a key under the project's prefix that no other expense references,
// since the files are deleted along with the expense.
func (s *expenseService) checkReceipts(ctx context.Context, projectID, expenseID string, in []models.Receipt) ([]models.Receipt, error) {
	prefix := storage.ProjectPrefix(projectID)
	out := make([]models.Receipt, len(in))
	paths := make([]string, 0, len(in))
	for i, r := range in {
		key, err := storage.CleanKey(r.Path)
		if err != nil || !strings.HasPrefix(key, prefix) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "receipt does not belong to this project")
		}
		r.Path = key
		out[i] = r
		paths = append(paths, key)
	}
	if len(paths) == 0 {
		return out, nil
	}

	db := s.db.WithContext(ctx)
	var shared int64
	err := db.Model(&models.Receipt{}).
		Where("path IN ? AND expense_id <> ?", paths, expenseID).
		Count(&shared).Error
	if err == nil && shared == 0 {
		err = db.Model(&models.Expense{}).
			Where("image_path IN ? AND id <> ?", paths, expenseID).
			Count(&shared).Error
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if shared > 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "receipt is attached to another expense")
	}
	return out, nil
}

// DeleteExpense removes every stored receipt file and then the expense. If a
// file cannot be deleted the expense is kept and STORAGE_FAILURE is returned.
func (s *expenseService) DeleteExpense(ctx context.Context, sess session.Session, projectID, expenseID string) error {
	project, expense, err := s.editableExpense(ctx, sess, projectID, expenseID)
	if err != nil {
		return err
	}
	snapshot := *expense

	if err := deleteObjects(ctx, s.store, expense.StoragePaths()); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.Receipt{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", expense.ID).Delete(&models.Expense{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrExpenseNotFound
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Wrap(apperrors.ErrWriteFailure, err)
	}

	s.afterMutation(ctx, project, sess, models.NotificationExpenseDeleted, &snapshot)
	return nil
}

// afterMutation notifies the other members and pushes the change to live
// subscribers. A failed fan-out is logged; the expense write already succeeded.
func (s *expenseService) afterMutation(ctx context.Context, project *models.Project, sess session.Session, kind models.NotificationType, expense *models.Expense) {
	metrics.ExpenseEvents.WithLabelValues(string(kind)).Inc()

	if err := s.notifications.FanOut(ctx, project, sess, kind, expense); err != nil {
		logger.With("project_id", project.ID, "expense_id", expense.ID).Errorw("notification fan-out failed", "error", err, "type", kind)
	}

	s.live.Publish(live.Event{
		Topic:   live.ProjectTopic(project.ID),
		Kind:    string(kind),
		ID:      expense.ID,
		Payload: *expense,
	})
}
