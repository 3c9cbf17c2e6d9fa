package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/ids"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/live"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/logger"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/pagination"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/storage"
)

const defaultCurrency = "INR"

// ContributionMismatch is returned as error details when member contributions
// do not add up to the total budget.
type ContributionMismatch struct {
	Contributions decimal.Decimal `json:"contributions"`
	TotalBudget   decimal.Decimal `json:"total_budget"`
}

// projectService handles project-related business logic.
type projectService struct {
	db    *gorm.DB
	users UserServicer
	store storage.ObjectStore
	live  live.Publisher
}

// NewProjectService creates a new ProjectServicer.
func NewProjectService(db *gorm.DB, users UserServicer, store storage.ObjectStore, publisher live.Publisher) ProjectServicer {
	return &projectService{db: db, users: users, store: store, live: publisher}
}

// CreateProject validates the request, resolves every member email and stores
// the project with its members. Nothing is written if validation fails.
func (s *projectService) CreateProject(ctx context.Context, sess session.Session, in CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "project name is required")
	}
	tpl, ok := models.TemplateFor(in.ProjectType)
	if !ok {
		return nil, apperrors.ErrInvalidProjectType
	}
	if in.TotalBudget.IsNegative() || (in.MonthlyBudget != nil && in.MonthlyBudget.IsNegative()) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budgets cannot be negative")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	ownerEmail := normalizeEmail(sess.Email)
	var requested []MemberInput
	if !tpl.SharedBudget {
		for _, m := range in.Members {
			if normalizeEmail(m.Email) != ownerEmail {
				return nil, apperrors.WithMessage(apperrors.ErrPersonalProjectLocked, "personal projects cannot have other members")
			}
		}
		requested = []MemberInput{{Email: ownerEmail, Contribution: decimal.Zero}}
	} else {
		requested = withOwnerFirst(ownerEmail, in.Members)
		if err := checkMembers(requested, in.TotalBudget); err != nil {
			return nil, err
		}
	}

	members, emails, err := s.resolveMembers(ctx, sess, requested)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		Name:          name,
		ProjectType:   in.ProjectType,
		Currency:      currency,
		TotalBudget:   in.TotalBudget,
		MonthlyBudget: in.MonthlyBudget,
		SharedBudget:  tpl.SharedBudget,
		OwnerID:       sess.UserID,
		MemberEmails:  emails,
		Version:       1,
		Members:       members,
	}
	if !tpl.Monthly {
		project.MonthlyBudget = nil
	}

	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrWriteFailure, err)
	}

	logger.With("project_id", project.ID, "owner_id", sess.UserID).Infow("project created",
		"type", project.ProjectType,
		"members", len(project.Members),
	)
	return project, nil
}

// withOwnerFirst puts the owner at the head of the member list, adding them
// with a zero contribution when the request did not include them.
func withOwnerFirst(ownerEmail string, members []MemberInput) []MemberInput {
	out := make([]MemberInput, 0, len(members)+1)
	var owner *MemberInput
	for i := range members {
		m := MemberInput{Email: normalizeEmail(members[i].Email), Contribution: members[i].Contribution}
		if m.Email == ownerEmail && owner == nil {
			owner = &m
			continue
		}
		out = append(out, m)
	}
	if owner == nil {
		owner = &MemberInput{Email: ownerEmail, Contribution: decimal.Zero}
	}
	return append([]MemberInput{*owner}, out...)
}

// keepsOwner rejects a member list that drops the project owner.
func keepsOwner(project *models.Project, members []MemberInput) error {
	owner, ok := project.Member(project.OwnerID)
	if !ok || listsEmail(members, owner.Email) {
		return nil
	}
	return apperrors.WithMessage(apperrors.ErrInvalidInput, "the project owner must remain a member")
}

func listsEmail(members []MemberInput, email string) bool {
	email = normalizeEmail(email)
	for _, m := range members {
		if normalizeEmail(m.Email) == email {
			return true
		}
	}
	return false
}

// checkMembers enforces the shared budget invariants on a member list.
func checkMembers(members []MemberInput, totalBudget decimal.Decimal) error {
	if len(members) == 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "a project needs at least one member")
	}
	seen := make(map[string]bool, len(members))
	var dups []string
	sum := decimal.Zero
	for _, m := range members {
		email := normalizeEmail(m.Email)
		if email == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "member email is required")
		}
		if seen[email] {
			dups = append(dups, email)
		}
		seen[email] = true
		if m.Contribution.IsNegative() {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "contributions cannot be negative")
		}
		sum = sum.Add(m.Contribution)
	}
	if len(dups) > 0 {
		return apperrors.WithDetails(apperrors.ErrInvalidInput, "duplicate member emails", map[string][]string{"emails": dups})
	}
	if !sum.Equal(totalBudget) {
		return apperrors.WithDetails(apperrors.ErrContributionMismatch,
			"Total contributions ("+sum.StringFixed(2)+") must equal the total budget ("+totalBudget.StringFixed(2)+")",
			ContributionMismatch{Contributions: sum, TotalBudget: totalBudget})
	}
	return nil
}

// resolveMembers maps requested emails onto user records. Every unresolved
// email is reported, not just the first.
func (s *projectService) resolveMembers(ctx context.Context, sess session.Session, requested []MemberInput) ([]models.ProjectMember, []string, error) {
	emails := make([]string, 0, len(requested))
	for _, m := range requested {
		emails = append(emails, normalizeEmail(m.Email))
	}

	found, missing, err := s.users.ResolveEmails(ctx, emails)
	if err != nil {
		return nil, nil, err
	}
	if len(missing) > 0 {
		return nil, nil, apperrors.WithDetails(apperrors.ErrMemberNotFound,
			"No user found for: "+strings.Join(missing, ", "),
			map[string][]string{"emails": missing})
	}

	members := make([]models.ProjectMember, 0, len(requested))
	for i, m := range requested {
		u := found[emails[i]]
		name := u.DisplayName
		if u.ID == sess.UserID && sess.DisplayName != "" {
			name = sess.DisplayName
		}
		members = append(members, models.ProjectMember{
			UserID:       u.ID,
			DisplayName:  name,
			Email:        u.Email,
			AvatarURL:    u.AvatarURL,
			Contribution: m.Contribution,
			Position:     i,
		})
	}
	return members, emails, nil
}

// GetProject returns a project the caller is a member of.
func (s *projectService) GetProject(ctx context.Context, sess session.Session, id string) (*models.Project, error) {
	return findMemberProject(ctx, s.db, sess, id)
}

// ListUserProjects returns the caller's projects, newest first.
func (s *projectService) ListUserProjects(ctx context.Context, sess session.Session, page pagination.PageRequest) (*pagination.PageResponse[models.Project], error) {
	page.Defaults()

	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Project{}).
			Joins("JOIN project_members ON project_members.project_id = projects.id AND project_members.user_id = ?", sess.UserID)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var projects []models.Project
	err := base().
		Preload("Members", membersByPosition).
		Scopes(pagination.NewestFirst("projects"), pagination.Paginate(page)).
		Find(&projects).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(projects, page.Page, page.PageSize, total)
	return &resp, nil
}

// ValidateUpdate checks an update against the project's effective state after
// merging. Callers run it before UpdateProject, which does not re-check.
func (s *projectService) ValidateUpdate(project *models.Project, in UpdateProjectInput) error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "project name cannot be empty")
	}
	if project.IsPersonal() {
		if in.Members != nil || in.TotalBudget != nil {
			return apperrors.ErrPersonalProjectLocked
		}
		return nil
	}
	if in.TotalBudget == nil && in.Members == nil {
		return nil
	}

	total := project.TotalBudget
	if in.TotalBudget != nil {
		total = *in.TotalBudget
	}

	var members []MemberInput
	if in.Members != nil {
		members = *in.Members
		if err := keepsOwner(project, members); err != nil {
			return err
		}
	} else {
		for _, m := range project.Members {
			members = append(members, MemberInput{Email: m.Email, Contribution: m.Contribution})
		}
	}
	return checkMembers(members, total)
}

// UpdateProject merges the given fields into the stored project. When
// ExpectedVersion is set the write only succeeds against that version.
func (s *projectService) UpdateProject(ctx context.Context, sess session.Session, id string, in UpdateProjectInput) (*models.Project, error) {
	project, err := findMemberProject(ctx, s.db, sess, id)
	if err != nil {
		return nil, err
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion != project.Version {
		return nil, apperrors.WithDetails(apperrors.ErrStaleWrite, apperrors.ErrStaleWrite.Message,
			map[string]int{"current_version": project.Version})
	}
	if project.IsPersonal() && (in.Members != nil || in.TotalBudget != nil) {
		return nil, apperrors.ErrPersonalProjectLocked
	}

	var members []models.ProjectMember
	var emails []string
	if in.Members != nil {
		if err := keepsOwner(project, *in.Members); err != nil {
			return nil, err
		}
		if sess.Email != "" && !listsEmail(*in.Members, sess.Email) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "you cannot remove yourself from the project")
		}
		requested := make([]MemberInput, 0, len(*in.Members))
		for _, m := range *in.Members {
			requested = append(requested, MemberInput{Email: normalizeEmail(m.Email), Contribution: m.Contribution})
		}
		members, emails, err = s.resolveMembers(ctx, sess, requested)
		if err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{"version": project.Version + 1}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Currency != nil {
		updates["currency"] = strings.ToUpper(strings.TrimSpace(*in.Currency))
	}
	if in.TotalBudget != nil {
		updates["total_budget"] = *in.TotalBudget
	}
	if in.MonthlyBudget != nil && project.IsMonthly() {
		updates["monthly_budget"] = *in.MonthlyBudget
	}
	if members != nil {
		updates["member_emails"] = datatypes.JSONSlice[string](emails)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Project{}).Where("id = ?", project.ID)
		if in.ExpectedVersion != nil {
			q = q.Where("version = ?", *in.ExpectedVersion)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrWriteFailure, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrStaleWrite
		}

		if members == nil {
			return nil
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectMember{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrWriteFailure, err)
		}
		for i := range members {
			members[i].ProjectID = project.ID
		}
		if err := tx.Create(&members).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrWriteFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := findProject(ctx, s.db, project.ID)
	if err != nil {
		return nil, err
	}
	s.live.Publish(live.Event{
		Topic:   live.ProjectTopic(updated.ID),
		Kind:    live.KindProjectUpdated,
		ID:      updated.ID,
		Payload: updated,
	})
	return updated, nil
}

// DeleteProject removes a project with all of its expenses and receipts.
// Receipt files are removed first on a best-effort basis; the rows are then
// deleted in one transaction.
func (s *projectService) DeleteProject(ctx context.Context, sess session.Session, id string) error {
	project, err := findMemberProject(ctx, s.db, sess, id)
	if err != nil {
		return err
	}

	expenses, err := loadExpenses(ctx, s.db, project.ID)
	if err != nil {
		return err
	}
	var paths []string
	for i := range expenses {
		paths = append(paths, expenses[i].StoragePaths()...)
	}
	if err := deleteObjects(ctx, s.store, paths); err != nil {
		logger.With("project_id", project.ID).Warnw("failed to delete some receipt files", "error", err, "files", len(paths))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expenseIDs := tx.Model(&models.Expense{}).Select("id").Where("project_id = ?", project.ID)
		if err := tx.Where("expense_id IN (?)", expenseIDs).Delete(&models.Receipt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Expense{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", project.ID).Delete(&models.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrProjectNotFound
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Wrap(apperrors.ErrWriteFailure, err)
	}

	logger.With("project_id", project.ID).Infow("project deleted", "expenses", len(expenses), "files", len(paths))
	s.live.Publish(live.Event{
		Topic: live.ProjectTopic(project.ID),
		Kind:  live.KindProjectDeleted,
		ID:    project.ID,
	})
	return nil
}

// GenerateShareToken issues a fresh share token, replacing any previous one.
func (s *projectService) GenerateShareToken(ctx context.Context, sess session.Session, id string) (string, error) {
	project, err := findMemberProject(ctx, s.db, sess, id)
	if err != nil {
		return "", err
	}

	token, err := ids.ShareToken(project.ID)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	res := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", project.ID).Update("shareable_id", token)
	if res.Error != nil {
		return "", apperrors.Wrap(apperrors.ErrWriteFailure, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", apperrors.ErrProjectNotFound
	}
	return token, nil
}

// ResolveByShareToken finds the project a share token points to.
func (s *projectService) ResolveByShareToken(ctx context.Context, token string) (*models.Project, error) {
	if _, ok := ids.ProjectIDFromShareToken(token); !ok {
		return nil, apperrors.ErrShareNotFound
	}

	var project models.Project
	res := s.db.WithContext(ctx).
		Preload("Members", membersByPosition).
		Where("shareable_id = ?", token).
		Limit(1).
		Find(&project)
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrShareNotFound
	}
	return &project, nil
}
