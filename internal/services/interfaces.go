package services

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/analytics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/pagination"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
)

// UserServicer defines the contract for the user directory and sign-in lifecycle.
type UserServicer interface {
	CreateUser(ctx context.Context, email, password, displayName string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	ResolveEmails(ctx context.Context, emails []string) (map[string]*models.User, []string, error)
	AttemptLogin(ctx context.Context, email, password string) (*models.User, error)
	StoreRefreshTokenHash(ctx context.Context, userID, tokenHash string) error
	GetRefreshTokenHash(ctx context.Context, userID string) (string, error)
	ClearRefreshTokenHash(ctx context.Context, userID string) error
}

// MemberInput is one requested project member.
type MemberInput struct {
	Email        string          `json:"email" binding:"required,email"`
	Contribution decimal.Decimal `json:"contribution" binding:"gte=0,money"`
}

// CreateProjectInput holds the fields for a new project.
type CreateProjectInput struct {
	Name          string
	ProjectType   models.ProjectType
	Currency      string
	TotalBudget   decimal.Decimal
	MonthlyBudget *decimal.Decimal
	Members       []MemberInput
}

// UpdateProjectInput holds a partial project update. Nil fields are left unchanged.
type UpdateProjectInput struct {
	Name            *string
	Currency        *string
	TotalBudget     *decimal.Decimal
	MonthlyBudget   *decimal.Decimal
	Members         *[]MemberInput
	ExpectedVersion *int
}

// ProjectServicer defines the contract for the project store.
type ProjectServicer interface {
	CreateProject(ctx context.Context, sess session.Session, in CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, sess session.Session, id string) (*models.Project, error)
	ListUserProjects(ctx context.Context, sess session.Session, page pagination.PageRequest) (*pagination.PageResponse[models.Project], error)
	ValidateUpdate(project *models.Project, in UpdateProjectInput) error
	UpdateProject(ctx context.Context, sess session.Session, id string, in UpdateProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, sess session.Session, id string) error
	GenerateShareToken(ctx context.Context, sess session.Session, id string) (string, error)
	ResolveByShareToken(ctx context.Context, token string) (*models.Project, error)
}

// ReceiptUpload is a file received with an expense.
type ReceiptUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CreateExpenseInput holds the fields for a new expense.
type CreateExpenseInput struct {
	Description string
	Amount      decimal.Decimal
	Category    string
	CreatedAt   *time.Time
}

// UpdateExpenseInput holds a partial expense update. A non-nil Receipts
// replaces the stored receipt set wholesale.
type UpdateExpenseInput struct {
	Description *string
	Amount      *decimal.Decimal
	Category    *string
	CreatedAt   *time.Time
	Receipts    *[]models.Receipt
}

// ExpenseServicer defines the contract for the expense store.
type ExpenseServicer interface {
	AddExpense(ctx context.Context, sess session.Session, projectID string, in CreateExpenseInput, files []ReceiptUpload) (*models.Expense, error)
	UploadReceipts(ctx context.Context, sess session.Session, projectID string, files []ReceiptUpload) ([]models.Receipt, error)
	GetExpense(ctx context.Context, sess session.Session, projectID, expenseID string) (*models.Expense, error)
	ListProjectExpenses(ctx context.Context, sess session.Session, projectID string, page pagination.PageRequest) (*pagination.PageResponse[models.Expense], error)
	UpdateExpense(ctx context.Context, sess session.Session, projectID, expenseID string, in UpdateExpenseInput) (*models.Expense, error)
	DeleteExpense(ctx context.Context, sess session.Session, projectID, expenseID string) error
}

// NotificationPage is a page of notifications plus the id of the newest one.
type NotificationPage struct {
	pagination.PageResponse[models.Notification]
	LatestID string `json:"latest_id,omitempty"`
}

// NotificationServicer defines the contract for notification fan-out and inboxes.
type NotificationServicer interface {
	FanOut(ctx context.Context, project *models.Project, actor session.Session, kind models.NotificationType, expense *models.Expense) error
	ListNotifications(ctx context.Context, sess session.Session, page pagination.PageRequest) (*NotificationPage, error)
	ClearNotifications(ctx context.Context, sess session.Session) (int64, error)
}

// AnalyticsServicer loads project data and runs the aggregation engine over it.
type AnalyticsServicer interface {
	ProjectSummary(ctx context.Context, sess session.Session, projectID string, period *analytics.Period) (*analytics.Summary, error)
	Summarize(ctx context.Context, project *models.Project, period *analytics.Period) (*analytics.Summary, []models.Expense, error)
}

// SharedView is the read-only projection served for a share token.
type SharedView struct {
	Project  *models.Project    `json:"project"`
	Expenses []models.Expense   `json:"expenses"`
	Summary  *analytics.Summary `json:"summary"`
	ReadOnly bool               `json:"read_only"`
}

// ShareServicer defines the contract for the sharing resolver.
type ShareServicer interface {
	GetOrCreateShareToken(ctx context.Context, sess session.Session, projectID string) (string, error)
	RegenerateShareToken(ctx context.Context, sess session.Session, projectID string) (string, error)
	ResolveShared(ctx context.Context, token string, period *analytics.Period) (*SharedView, error)
}

// ExportServicer writes project workbooks.
type ExportServicer interface {
	ExportProject(ctx context.Context, sess session.Session, projectID string, w io.Writer) (string, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
