package models

import "github.com/shopspring/decimal"

// NotificationType is the kind of expense mutation a notification reports.
type NotificationType string

const (
	NotificationExpenseAdded   NotificationType = "expense_added"
	NotificationExpenseEdited  NotificationType = "expense_edited"
	NotificationExpenseDeleted NotificationType = "expense_deleted"
)

// Notification tells one project member about another member's expense change.
// Description and Amount are a snapshot taken when the event happened.
type Notification struct {
	Base
	RecipientID string           `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Type        NotificationType `gorm:"not null" json:"type"`
	ProjectID   string           `gorm:"type:uuid;not null" json:"project_id"`
	ExpenseID   string           `gorm:"type:uuid;not null" json:"expense_id"`
	ActorID     string           `gorm:"type:uuid;not null" json:"by"`
	ActorName   string           `json:"by_name"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `gorm:"type:numeric(14,2)" json:"amount"`
}
