package services

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/metrics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	tu "github.com/CodeSyncr/collaborative-expense-tracker/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	t.Run("records_changes", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		svc := NewAuditService(db)
		user := tu.CreateTestUser(t, db)
		before := testutil.ToFloat64(metrics.AuditEntries.WithLabelValues("UPDATE_EXPENSE", "ok"))

		svc.Log(user.ID, "UPDATE_EXPENSE", "expense", "exp-1", "10.0.0.1", map[string]interface{}{
			"amount": decimal.RequireFromString("12.50"),
		})

		var entry models.AuditLog
		if err := db.First(&entry).Error; err != nil {
			t.Fatalf("expected audit entry: %v", err)
		}
		if entry.Action != "UPDATE_EXPENSE" || entry.ResourceID != "exp-1" || entry.IPAddress != "10.0.0.1" {
			t.Errorf("unexpected entry %+v", entry)
		}
		var changes map[string]string
		if err := json.Unmarshal(entry.Changes, &changes); err != nil {
			t.Fatalf("changes are not JSON: %v", err)
		}
		if changes["amount"] != "12.5" {
			t.Errorf("expected amount 12.5, got %q", changes["amount"])
		}
		if got := testutil.ToFloat64(metrics.AuditEntries.WithLabelValues("UPDATE_EXPENSE", "ok")); got != before+1 {
			t.Errorf("expected ok counter %v, got %v", before+1, got)
		}
	})

	t.Run("no_changes_stored_as_null", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		svc := NewAuditService(db)
		user := tu.CreateTestUser(t, db)

		svc.Log(user.ID, "DELETE_PROJECT", "project", "p-1", "", nil)

		var entry models.AuditLog
		if err := db.First(&entry).Error; err != nil {
			t.Fatalf("expected audit entry: %v", err)
		}
		if len(entry.Changes) != 0 {
			t.Errorf("expected no changes, got %s", entry.Changes)
		}
	})

	t.Run("write_failure_is_swallowed", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		svc := NewAuditService(db)
		if err := db.Migrator().DropTable(&models.AuditLog{}); err != nil {
			t.Fatalf("failed to drop table: %v", err)
		}
		before := testutil.ToFloat64(metrics.AuditEntries.WithLabelValues("LOGIN", "error"))

		svc.Log("u-1", "LOGIN", "user", "u-1", "", nil)

		if got := testutil.ToFloat64(metrics.AuditEntries.WithLabelValues("LOGIN", "error")); got != before+1 {
			t.Errorf("expected error counter %v, got %v", before+1, got)
		}
	})
}
