package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	n := nextID()
	return CreateTestUserWithEmail(t, db, fmt.Sprintf("user%d@test.com", n), fmt.Sprintf("User %d", n))
}

// CreateTestUserWithEmail creates a user with the given email and display name.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email, name string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:       email,
		DisplayName: name,
		Password:    string(hash),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// SessionFor returns the session a request by u would carry.
func SessionFor(u *models.User) session.Session {
	return session.FromUser(u)
}

// CreateTestProject stores a shared project of the given type whose members
// are the given users, each contributing the matching amount.
func CreateTestProject(t *testing.T, db *gorm.DB, typ models.ProjectType, members []*models.User, contributions []int64) *models.Project {
	t.Helper()

	if len(members) == 0 {
		t.Fatal("project fixture needs at least one member")
	}

	total := decimal.Zero
	project := &models.Project{
		Name:         fmt.Sprintf("Test Project %d", nextID()),
		ProjectType:  typ,
		Currency:     "INR",
		SharedBudget: typ != models.ProjectTypePersonal,
		OwnerID:      members[0].ID,
		Version:      1,
	}
	for i, u := range members {
		var c decimal.Decimal
		if i < len(contributions) {
			c = decimal.NewFromInt(contributions[i])
		}
		total = total.Add(c)
		project.Members = append(project.Members, models.ProjectMember{
			UserID:       u.ID,
			DisplayName:  u.DisplayName,
			Email:        u.Email,
			Contribution: c,
			Position:     i,
		})
		project.MemberEmails = append(project.MemberEmails, u.Email)
	}
	project.TotalBudget = total

	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return project
}

// CreateTestExpense stores an expense created by userID at the given time.
func CreateTestExpense(t *testing.T, db *gorm.DB, projectID, userID string, amount string, at time.Time) *models.Expense {
	t.Helper()

	expense := &models.Expense{
		ProjectID:   projectID,
		Description: fmt.Sprintf("Test Expense %d", nextID()),
		Amount:      decimal.RequireFromString(amount),
		Category:    models.CategoryOther,
		CreatedBy:   userID,
	}
	expense.CreatedAt = at
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return expense
}

// CreateTestNotification stores a notification for recipientID.
func CreateTestNotification(t *testing.T, db *gorm.DB, recipientID, projectID string) *models.Notification {
	t.Helper()

	n := &models.Notification{
		RecipientID: recipientID,
		Type:        models.NotificationExpenseAdded,
		ProjectID:   projectID,
		ExpenseID:   fmt.Sprintf("expense-%d", nextID()),
		ActorID:     "actor",
		ActorName:   "Someone",
		Description: "Fixture",
		Amount:      decimal.NewFromInt(1),
	}
	if err := db.Create(n).Error; err != nil {
		t.Fatalf("failed to create test notification: %v", err)
	}
	return n
}
