package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/PrithiviPM2580/coaching-management-backend/internal/db"
	"github.com/PrithiviPM2580/coaching-management-backend/internal/model"
	"github.com/PrithiviPM2580/coaching-management-backend/internal/service"
)

// openTestStore connects to DATABASE_URL, applies the schema and wipes
// the tables. Tests are skipped when no database is configured.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{"fee_payments", "refresh_tokens", "students", "batches", "users"} {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}
	return NewStore(pool)
}

func insertBatch(t *testing.T, store *Store) model.Batch {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	batch := model.Batch{
		ID:          uuid.NewString(),
		BatchName:   "Physics Evening",
		Subject:     "Physics",
		Teacher:     "Mr. Rao",
		Timing:      "18:00-19:30",
		MonthlyFees: 1500,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateBatch(context.Background(), batch); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return batch
}

func insertStudent(t *testing.T, store *Store, batchID string, due int64) model.Student {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	student := model.Student{
		ID:        uuid.NewString(),
		Name:      "Ravi",
		Phone:     "9876543210",
		Fees:      due,
		DueAmount: due,
		JoinDate:  now,
		BatchID:   batchID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateStudent(context.Background(), student); err != nil {
		t.Fatalf("create student: %v", err)
	}
	return student
}

func TestUserStore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	user := model.User{
		ID:           uuid.NewString(),
		Name:         "Alice",
		Email:        "alice@test.local",
		PasswordHash: "hash",
		Role:         model.RoleStaff,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	exists, err := store.EmailExists(ctx, user.Email)
	if err != nil || exists {
		t.Fatalf("expected email to be free, exists=%v err=%v", exists, err)
	}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	exists, err = store.EmailExists(ctx, user.Email)
	if err != nil || !exists {
		t.Fatalf("expected email to be taken, exists=%v err=%v", exists, err)
	}

	got, found, err := store.GetUserByEmail(ctx, user.Email)
	if err != nil || !found {
		t.Fatalf("get user: found=%v err=%v", found, err)
	}
	if got.ID != user.ID || got.Role != model.RoleStaff {
		t.Fatalf("unexpected user %+v", got)
	}

	if _, found, err := store.GetUserByEmail(ctx, "nobody@test.local"); err != nil || found {
		t.Fatalf("expected miss, found=%v err=%v", found, err)
	}
}

func TestRefreshTokenStore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	user := model.User{ID: uuid.NewString(), Name: "Alice", Email: "alice@test.local", PasswordHash: "hash", Role: model.RoleStaff, CreatedAt: now, UpdatedAt: now}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	token := model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     "opaque-token-value",
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}
	if err := store.CreateRefreshToken(ctx, token); err != nil {
		t.Fatalf("create token: %v", err)
	}

	present, err := store.RefreshTokenExists(ctx, token.Token)
	if err != nil || !present {
		t.Fatalf("expected token present, present=%v err=%v", present, err)
	}

	deleted, err := store.DeleteRefreshToken(ctx, token.Token)
	if err != nil || deleted != 1 {
		t.Fatalf("delete token: deleted=%d err=%v", deleted, err)
	}
	deleted, err = store.DeleteRefreshToken(ctx, token.Token)
	if err != nil || deleted != 0 {
		t.Fatalf("second delete: deleted=%d err=%v", deleted, err)
	}
}

func TestBatchCRUD(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	batch := insertBatch(t, store)

	batches, err := store.ListBatches(ctx)
	if err != nil || len(batches) != 1 {
		t.Fatalf("list batches: n=%d err=%v", len(batches), err)
	}

	newName := "Physics Morning"
	updated, found, err := store.UpdateBatch(ctx, batch.ID, service.BatchUpdate{BatchName: &newName})
	if err != nil || !found {
		t.Fatalf("update batch: found=%v err=%v", found, err)
	}
	if updated.BatchName != newName || updated.Subject != batch.Subject {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if _, found, err := store.UpdateBatch(ctx, uuid.NewString(), service.BatchUpdate{BatchName: &newName}); err != nil || found {
		t.Fatalf("expected update miss, found=%v err=%v", found, err)
	}

	deleted, err := store.DeleteBatch(ctx, batch.ID)
	if err != nil || deleted != 1 {
		t.Fatalf("delete batch: deleted=%d err=%v", deleted, err)
	}
}

func TestStudentCRUD(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	batch := insertBatch(t, store)
	student := insertStudent(t, store, batch.ID, 1000)

	entry, found, err := store.GetStudentWithBatch(ctx, student.ID)
	if err != nil || !found {
		t.Fatalf("get student: found=%v err=%v", found, err)
	}
	if entry.Batch.ID != batch.ID || entry.Student.DueAmount != 1000 {
		t.Fatalf("unexpected entry %+v", entry)
	}

	phone := "9000000000"
	updated, found, err := store.UpdateStudent(ctx, student.ID, service.StudentUpdate{Phone: &phone})
	if err != nil || !found {
		t.Fatalf("update student: found=%v err=%v", found, err)
	}
	if updated.Phone != phone || updated.Name != student.Name || updated.DueAmount != 1000 {
		t.Fatalf("unexpected update result %+v", updated)
	}

	entries, err := store.ListStudents(ctx)
	if err != nil || len(entries) != 1 {
		t.Fatalf("list students: n=%d err=%v", len(entries), err)
	}

	deleted, err := store.DeleteStudent(ctx, student.ID)
	if err != nil || deleted != 1 {
		t.Fatalf("delete student: deleted=%d err=%v", deleted, err)
	}
}

func TestRecordPaymentTransaction(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	batch := insertBatch(t, store)
	student := insertStudent(t, store, batch.ID, 500)

	payment := model.FeePayment{
		ReceiptNo:  "RCPT-1-1234",
		StudentID:  student.ID,
		BatchID:    batch.ID,
		AmountPaid: 300,
		Mode:       model.PaymentModeCash,
		Date:       time.Now().UTC().Truncate(time.Millisecond),
	}
	saved, updated, err := store.RecordPayment(ctx, payment)
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected payment id to be assigned")
	}
	if updated.DueAmount != 200 {
		t.Fatalf("expected due 200, got %d", updated.DueAmount)
	}

	// More than the remaining balance must be rejected and leave no trace.
	payment.ReceiptNo = "RCPT-1-5678"
	payment.AmountPaid = 300
	if _, _, err := store.RecordPayment(ctx, payment); !errors.Is(err, model.ErrDueExceeded) {
		t.Fatalf("expected ErrDueExceeded, got %v", err)
	}
	got, found, err := store.GetStudent(ctx, student.ID)
	if err != nil || !found {
		t.Fatalf("get student: found=%v err=%v", found, err)
	}
	if got.DueAmount != 200 {
		t.Fatalf("expected due still 200, got %d", got.DueAmount)
	}
	payments, err := store.PaymentsByStudent(ctx, student.ID)
	if err != nil || len(payments) != 1 {
		t.Fatalf("expected one payment row, n=%d err=%v", len(payments), err)
	}

	detail, found, err := store.GetPaymentDetail(ctx, saved.ID)
	if err != nil || !found {
		t.Fatalf("payment detail: found=%v err=%v", found, err)
	}
	if detail.Payment.ReceiptNo != "RCPT-1-1234" || detail.Student.ID != student.ID || detail.Batch.ID != batch.ID {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestCollectedBetween(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	batch := insertBatch(t, store)
	student := insertStudent(t, store, batch.ID, 10000)

	day := func(value string) time.Time {
		parsed, err := time.Parse("2006-01-02", value)
		if err != nil {
			t.Fatalf("bad test date: %v", err)
		}
		return parsed
	}
	for i, p := range []struct {
		amount int64
		mode   string
		date   time.Time
	}{
		{500, model.PaymentModeCash, day("2025-03-10")},
		{300, model.PaymentModeUPI, day("2025-03-10")},
		{900, model.PaymentModeBank, day("2025-04-01")},
	} {
		if _, _, err := store.RecordPayment(ctx, model.FeePayment{
			ReceiptNo:  "RCPT-2-" + uuid.NewString()[:4],
			StudentID:  student.ID,
			BatchID:    batch.ID,
			AmountPaid: p.amount,
			Mode:       p.mode,
			Date:       p.date,
		}); err != nil {
			t.Fatalf("record payment %d: %v", i, err)
		}
	}

	total, breakDown, err := store.CollectedBetween(ctx, day("2025-03-10"), day("2025-03-11"))
	if err != nil {
		t.Fatalf("collected between: %v", err)
	}
	if total != 800 || breakDown[model.PaymentModeCash] != 500 || breakDown[model.PaymentModeUPI] != 300 {
		t.Fatalf("unexpected aggregate: total=%d breakDown=%v", total, breakDown)
	}
}
