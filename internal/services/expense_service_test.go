package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/live"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/pagination"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/testutil"
)

func TestAddExpense(t *testing.T) {
	ctx := context.Background()

	t.Run("with_receipts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice, bob}, []int64{500, 500})

		expense, err := ts.expenses.AddExpense(ctx, testutil.SessionFor(alice), project.ID,
			CreateExpenseInput{Description: " Dinner ", Amount: dec(120), Category: "Food & Dining"},
			[]ReceiptUpload{
				{Filename: "one.txt", Data: []byte("first")},
				{Filename: "../two.png", ContentType: "image/png", Data: []byte("second")},
			})
		testutil.AssertNoError(t, err)

		if expense.Description != "Dinner" {
			t.Errorf("expected trimmed description, got %q", expense.Description)
		}
		if expense.CreatedBy != alice.ID {
			t.Errorf("expected creator %s, got %s", alice.ID, expense.CreatedBy)
		}
		if len(expense.Receipts) != 2 {
			t.Fatalf("expected 2 receipts, got %d", len(expense.Receipts))
		}
		for i, r := range expense.Receipts {
			if r.Position != i {
				t.Errorf("expected receipt %d at position %d, got %d", i, i, r.Position)
			}
			if !strings.HasPrefix(r.Path, "expenses/"+project.ID+"/") {
				t.Errorf("unexpected receipt key %q", r.Path)
			}
			if !ts.store.has(r.Path) {
				t.Errorf("expected %q stored", r.Path)
			}
		}
		if !strings.HasPrefix(expense.Receipts[0].Type, "text/plain") {
			t.Errorf("expected sniffed text type, got %q", expense.Receipts[0].Type)
		}
		if expense.Receipts[1].Type != "image/png" {
			t.Errorf("expected declared type kept, got %q", expense.Receipts[1].Type)
		}

		var notes []models.Notification
		db.Find(&notes)
		if len(notes) != 1 || notes[0].RecipientID != bob.ID || notes[0].Type != models.NotificationExpenseAdded {
			t.Fatalf("expected one expense_added notification for bob, got %+v", notes)
		}
		if kinds := ts.events.kinds(live.ProjectTopic(project.ID)); len(kinds) != 1 || kinds[0] != live.KindExpenseAdded {
			t.Errorf("expected expense_added on the project topic, got %v", kinds)
		}
		if kinds := ts.events.kinds(live.UserTopic(bob.ID)); len(kinds) != 1 {
			t.Errorf("expected bob notified live, got %v", kinds)
		}
	})

	t.Run("category_normalized", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{100})

		expense, err := ts.expenses.AddExpense(ctx, testutil.SessionFor(alice), project.ID,
			CreateExpenseInput{Description: "Thing", Amount: dec(1), Category: "Not A Category"}, nil)
		testutil.AssertNoError(t, err)
		if expense.Category != models.CategoryOther {
			t.Errorf("expected %q, got %q", models.CategoryOther, expense.Category)
		}
	})

	t.Run("custom_date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{100})

		at := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
		expense, err := ts.expenses.AddExpense(ctx, testutil.SessionFor(alice), project.ID,
			CreateExpenseInput{Description: "Old", Amount: dec(1), CreatedAt: &at}, nil)
		testutil.AssertNoError(t, err)
		if !expense.CreatedAt.Equal(at) {
			t.Errorf("expected created_at %v, got %v", at, expense.CreatedAt)
		}
	})

	t.Run("not_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		mallory := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{100})

		_, err := ts.expenses.AddExpense(ctx, testutil.SessionFor(mallory), project.ID,
			CreateExpenseInput{Description: "Sneaky", Amount: dec(1)}, nil)
		testutil.AssertAppError(t, err, "NOT_PROJECT_MEMBER")
	})

	t.Run("invalid_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{100})

		_, err := ts.expenses.AddExpense(ctx, testutil.SessionFor(alice), project.ID,
			CreateExpenseInput{Description: "Free", Amount: dec(0)}, nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("storage_failure", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{100})
		ts.store.failPut = true

		_, err := ts.expenses.AddExpense(ctx, testutil.SessionFor(alice), project.ID,
			CreateExpenseInput{Description: "Lunch", Amount: dec(10)},
			[]ReceiptUpload{{Filename: "a.txt", Data: []byte("a")}})
		testutil.AssertAppError(t, err, "STORAGE_FAILURE")

		var count int64
		db.Model(&models.Expense{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no expense written, got %d", count)
		}
	})
}

func TestListProjectExpenses(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	ts := newTestServices(t, db)
	alice := testutil.CreateTestUser(t, db)
	project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{100})

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	old := testutil.CreateTestExpense(t, db, project.ID, alice.ID, "10", base)
	mid := testutil.CreateTestExpense(t, db, project.ID, alice.ID, "20", base.Add(time.Hour))
	newest := testutil.CreateTestExpense(t, db, project.ID, alice.ID, "30", base.Add(2*time.Hour))

	page, err := ts.expenses.ListProjectExpenses(ctx, testutil.SessionFor(alice), project.ID, pagination.PageRequest{Page: 1, PageSize: 2})
	testutil.AssertNoError(t, err)

	if page.TotalItems != 3 || page.TotalPages != 2 {
		t.Errorf("expected 3 items over 2 pages, got %d/%d", page.TotalItems, page.TotalPages)
	}
	if len(page.Data) != 2 || page.Data[0].ID != newest.ID || page.Data[1].ID != mid.ID {
		t.Error("expected newest expenses first")
	}

	page, err = ts.expenses.ListProjectExpenses(ctx, testutil.SessionFor(alice), project.ID, pagination.PageRequest{Page: 2, PageSize: 2})
	testutil.AssertNoError(t, err)
	if len(page.Data) != 1 || page.Data[0].ID != old.ID {
		t.Error("expected oldest expense on the second page")
	}
}

func TestUpdateExpense(t *testing.T) {
	ctx := context.Background()

	t.Run("fields_and_receipts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice, bob}, []int64{50, 50})
		sess := testutil.SessionFor(alice)

		expense, err := ts.expenses.AddExpense(ctx, sess, project.ID,
			CreateExpenseInput{Description: "Fuel", Amount: dec(40)},
			[]ReceiptUpload{{Filename: "a.txt", Data: []byte("a")}, {Filename: "b.txt", Data: []byte("b")}})
		testutil.AssertNoError(t, err)
		dropped := expense.Receipts[0].Path
		kept := expense.Receipts[1]

		extra, err := ts.expenses.UploadReceipts(ctx, sess, project.ID, []ReceiptUpload{{Filename: "c.txt", Data: []byte("c")}})
		testutil.AssertNoError(t, err)

		desc := "Fuel and tolls"
		amount := dec(55)
		receipts := []models.Receipt{kept, extra[0]}
		updated, err := ts.expenses.UpdateExpense(ctx, sess, project.ID, expense.ID, UpdateExpenseInput{
			Description: &desc,
			Amount:      &amount,
			Receipts:    &receipts,
		})
		testutil.AssertNoError(t, err)

		if updated.Description != desc {
			t.Errorf("expected description %q, got %q", desc, updated.Description)
		}
		testutil.AssertDecimal(t, updated.Amount, "55")
		if len(updated.Receipts) != 2 || updated.Receipts[0].Path != kept.Path || updated.Receipts[1].Path != extra[0].Path {
			t.Errorf("expected receipt set replaced in order, got %+v", updated.Receipts)
		}
		if ts.store.has(dropped) {
			t.Error("expected dropped receipt file removed")
		}
		if !ts.store.has(kept.Path) {
			t.Error("expected kept receipt file untouched")
		}

		var edited int64
		db.Model(&models.Notification{}).Where("type = ? AND recipient_id = ?", models.NotificationExpenseEdited, bob.ID).Count(&edited)
		if edited != 1 {
			t.Errorf("expected one expense_edited notification, got %d", edited)
		}
	})

	t.Run("not_creator", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice, bob}, []int64{50, 50})
		expense := testutil.CreateTestExpense(t, db, project.ID, alice.ID, "10", time.Now())

		desc := "Mine now"
		_, err := ts.expenses.UpdateExpense(ctx, testutil.SessionFor(bob), project.ID, expense.ID, UpdateExpenseInput{Description: &desc})
		testutil.AssertAppError(t, err, "NOT_EXPENSE_CREATOR")
	})

	t.Run("receipts_limited_to_own_project", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		mallory := testutil.CreateTestUser(t, db)
		trip := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{50})
		other := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{mallory}, []int64{50})

		victim, err := ts.expenses.AddExpense(ctx, testutil.SessionFor(alice), trip.ID,
			CreateExpenseInput{Description: "Hotel", Amount: dec(20)},
			[]ReceiptUpload{{Filename: "r.png", Data: []byte("png")}})
		testutil.AssertNoError(t, err)
		victimPath := victim.Receipts[0].Path

		sess := testutil.SessionFor(mallory)
		own, err := ts.expenses.AddExpense(ctx, sess, other.ID,
			CreateExpenseInput{Description: "Taxi", Amount: dec(5)}, nil)
		testutil.AssertNoError(t, err)

		for _, path := range []string{
			victimPath,
			"expenses/" + other.ID + "/../" + trip.ID + "/" + victimPath[strings.LastIndex(victimPath, "/")+1:],
			"config.db",
			"",
		} {
			receipts := []models.Receipt{{Path: path, Name: "r.png"}}
			_, err := ts.expenses.UpdateExpense(ctx, sess, other.ID, own.ID, UpdateExpenseInput{Receipts: &receipts})
			testutil.AssertAppError(t, err, "INVALID_INPUT")
		}

		testutil.AssertNoError(t, ts.expenses.DeleteExpense(ctx, sess, other.ID, own.ID))
		if !ts.store.has(victimPath) {
			t.Errorf("expected %q to survive another project's expense deletion", victimPath)
		}
	})

	t.Run("receipt_of_sibling_expense_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{50})
		sess := testutil.SessionFor(alice)

		first, err := ts.expenses.AddExpense(ctx, sess, project.ID,
			CreateExpenseInput{Description: "Lunch", Amount: dec(8)},
			[]ReceiptUpload{{Filename: "l.txt", Data: []byte("l")}})
		testutil.AssertNoError(t, err)
		second := testutil.CreateTestExpense(t, db, project.ID, alice.ID, "3", time.Now())

		receipts := []models.Receipt{first.Receipts[0]}
		_, err = ts.expenses.UpdateExpense(ctx, sess, project.ID, second.ID, UpdateExpenseInput{Receipts: &receipts})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{50})

		desc := "x"
		_, err := ts.expenses.UpdateExpense(ctx, testutil.SessionFor(alice), project.ID, "00000000-0000-0000-0000-000000000000", UpdateExpenseInput{Description: &desc})
		testutil.AssertAppError(t, err, "EXPENSE_NOT_FOUND")
	})
}

func TestDeleteExpense(t *testing.T) {
	ctx := context.Background()

	t.Run("removes_receipts_and_legacy_file", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice, bob}, []int64{50, 50})
		sess := testutil.SessionFor(alice)

		expense, err := ts.expenses.AddExpense(ctx, sess, project.ID,
			CreateExpenseInput{Description: "Snacks", Amount: dec(5)},
			[]ReceiptUpload{{Filename: "s.txt", Data: []byte("s")}})
		testutil.AssertNoError(t, err)

		legacy, err := ts.store.Put(ctx, "expenses/"+project.ID+"/legacy.txt", "", []byte("legacy"))
		testutil.AssertNoError(t, err)
		db.Model(&models.Expense{}).Where("id = ?", expense.ID).Update("image_path", legacy.Path)

		testutil.AssertNoError(t, ts.expenses.DeleteExpense(ctx, sess, project.ID, expense.ID))

		if ts.store.has(expense.Receipts[0].Path) || ts.store.has(legacy.Path) {
			t.Error("expected every stored file removed")
		}
		_, err = ts.expenses.GetExpense(ctx, sess, project.ID, expense.ID)
		testutil.AssertAppError(t, err, "EXPENSE_NOT_FOUND")

		var note models.Notification
		db.Where("type = ?", models.NotificationExpenseDeleted).First(&note)
		if note.RecipientID != bob.ID || note.Description != "Snacks" {
			t.Errorf("expected deletion notice for bob carrying the snapshot, got %+v", note)
		}
	})

	t.Run("storage_failure_keeps_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice}, []int64{50})
		sess := testutil.SessionFor(alice)

		expense, err := ts.expenses.AddExpense(ctx, sess, project.ID,
			CreateExpenseInput{Description: "Bus", Amount: dec(2)},
			[]ReceiptUpload{{Filename: "b.txt", Data: []byte("b")}})
		testutil.AssertNoError(t, err)

		ts.store.failDelete = true
		err = ts.expenses.DeleteExpense(ctx, sess, project.ID, expense.ID)
		testutil.AssertAppError(t, err, "STORAGE_FAILURE")

		_, err = ts.expenses.GetExpense(ctx, sess, project.ID, expense.ID)
		testutil.AssertNoError(t, err)
	})

	t.Run("not_creator", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ts := newTestServices(t, db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		project := testutil.CreateTestProject(t, db, models.ProjectTypeTrip, []*models.User{alice, bob}, []int64{50, 50})
		expense := testutil.CreateTestExpense(t, db, project.ID, alice.ID, "10", time.Now())

		err := ts.expenses.DeleteExpense(ctx, testutil.SessionFor(bob), project.ID, expense.ID)
		testutil.AssertAppError(t, err, "NOT_EXPENSE_CREATOR")
	})
}
