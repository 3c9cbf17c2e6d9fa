package services

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/analytics"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/testutil"
)

func TestProjectSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("trip", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUserWithEmail(t, db, "alice@example.com", "Alice")
		bob := testutil.CreateTestUserWithEmail(t, db, "bob@example.com", "Bob")
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice, bob}, []int64{600, 400})
		testutil.CreateTestExpense(t, db, project.ID, alice.ID, "250", time.Now())

		summary, err := ts.analytics.ProjectSummary(ctx, testutil.SessionFor(bob), project.ID, nil)
		testutil.AssertNoError(t, err)

		if summary.Mode != analytics.ModeTotal {
			t.Errorf("expected total mode, got %s", summary.Mode)
		}
		testutil.AssertDecimal(t, *summary.RemainingBudget, "750")
		if summary.SpentPercentage != 25 {
			t.Errorf("expected 25%%, got %v", summary.SpentPercentage)
		}
		if len(summary.Members) != 2 {
			t.Fatalf("expected 2 members, got %d", len(summary.Members))
		}
		if u := summary.Members[0].Utilization; u == nil || math.Abs(*u-41.67) > 0.01 {
			t.Errorf("expected alice near 41.67%%, got %v", u)
		}
		if u := summary.Members[1].Utilization; u == nil || *u != 0 {
			t.Errorf("expected bob at 0%%, got %v", u)
		}
	})

	t.Run("resolves_former_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		former := testutil.CreateTestUserWithEmail(t, db, "former@example.com", "Former")
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{100})
		testutil.CreateTestExpense(t, db, project.ID, former.ID, "30", time.Now())
		testutil.CreateTestExpense(t, db, project.ID, "00000000-0000-0000-0000-000000000000", "5", time.Now())

		summary, err := ts.analytics.ProjectSummary(ctx, testutil.SessionFor(alice), project.ID, nil)
		testutil.AssertNoError(t, err)

		if len(summary.Members) != 2 {
			t.Fatalf("expected alice plus the resolved creator, got %d members", len(summary.Members))
		}
		row := summary.Members[1]
		if row.UserID != former.ID || row.DisplayName != "Former" || row.Declared {
			t.Errorf("unexpected resolved member row %+v", row)
		}
		testutil.AssertDecimal(t, row.Spent, "30")
		testutil.AssertDecimal(t, summary.TotalSpent, "35")
	})

	t.Run("monthly_period", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeRoommates, []*models.User{alice}, []int64{1000})
		db.Model(project).Update("monthly_budget", dec(200))
		testutil.CreateTestExpense(t, db, project.ID, alice.ID, "50", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
		testutil.CreateTestExpense(t, db, project.ID, alice.ID, "70", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

		period, err := analytics.NewPeriod(3, 2024)
		testutil.AssertNoError(t, err)
		summary, err := ts.analytics.ProjectSummary(ctx, testutil.SessionFor(alice), project.ID, &period)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, *summary.MonthlySpent, "70")
		if summary.MonthlyUtilization != 35 {
			t.Errorf("expected 35%% monthly utilization, got %v", summary.MonthlyUtilization)
		}
		testutil.AssertDecimal(t, summary.TotalSpent, "120")
	})

	t.Run("non_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		mallory := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{100})

		_, err := ts.analytics.ProjectSummary(ctx, testutil.SessionFor(mallory), project.ID, nil)
		testutil.AssertAppError(t, err, "PROJECT_NOT_FOUND")
	})
}

func TestResolveShared(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	ts := newTestServices(t, db)
	alice := testutil.CreateTestUser(t, db)
	project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{100})
	older := testutil.CreateTestExpense(t, db, project.ID, alice.ID, "10", time.Now().Add(-time.Hour))
	newer := testutil.CreateTestExpense(t, db, project.ID, alice.ID, "20", time.Now())

	token, err := ts.shares.GetOrCreateShareToken(ctx, testutil.SessionFor(alice), project.ID)
	testutil.AssertNoError(t, err)

	view, err := ts.shares.ResolveShared(ctx, token, nil)
	testutil.AssertNoError(t, err)

	if !view.ReadOnly {
		t.Error("expected shared view to be read-only")
	}
	if view.Project.ID != project.ID {
		t.Errorf("expected project %s, got %s", project.ID, view.Project.ID)
	}
	if len(view.Expenses) != 2 || view.Expenses[0].ID != newer.ID || view.Expenses[1].ID != older.ID {
		t.Error("expected expenses newest first")
	}
	testutil.AssertDecimal(t, view.Summary.TotalSpent, "30")
	if view.Project.Members[0].Email != "" {
		t.Error("expected member emails withheld from the shared view")
	}

	_, err = ts.shares.ResolveShared(ctx, "shared-"+project.ID+"-zzzzzzzz", nil)
	testutil.AssertAppError(t, err, "SHARE_NOT_FOUND")
}

func TestExportProject(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	ts := newTestServices(t, db)
	alice := testutil.CreateTestUserWithEmail(t, db, "alice@example.com", "Alice")
	project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{1000})
	db.Model(project).Update("name", "Goa Trip")
	testutil.CreateTestExpense(t, db, project.ID, alice.ID, "250", time.Now())

	var buf bytes.Buffer
	filename, err := ts.exports.ExportProject(ctx, testutil.SessionFor(alice), project.ID, &buf)
	testutil.AssertNoError(t, err)

	if filename != "Goa_Trip_expenses.xlsx" {
		t.Errorf("unexpected filename %q", filename)
	}

	f, err := excelize.OpenReader(&buf)
	testutil.AssertNoError(t, err)
	defer f.Close()

	sheets := strings.Join(f.GetSheetList(), ",")
	if sheets != "Expenses,Summary" {
		t.Errorf("expected Expenses and Summary sheets, got %s", sheets)
	}

	added, err := f.GetCellValue("Expenses", "E2")
	testutil.AssertNoError(t, err)
	if added != "Alice" {
		t.Errorf("expected creator name Alice, got %q", added)
	}
	amount, err := f.GetCellValue("Expenses", "D2")
	testutil.AssertNoError(t, err)
	if amount != "250" {
		t.Errorf("expected amount 250, got %q", amount)
	}
	label, err := f.GetCellValue("Expenses", "A3")
	testutil.AssertNoError(t, err)
	if label != "Total" {
		t.Errorf("expected total row, got %q", label)
	}

	name, err := f.GetCellValue("Summary", "B2")
	testutil.AssertNoError(t, err)
	if name != "Goa Trip" {
		t.Errorf("expected project name on summary sheet, got %q", name)
	}
}
