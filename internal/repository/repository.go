package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PrithiviPM2580/coaching-management-backend/internal/model"
	"github.com/PrithiviPM2580/coaching-management-backend/internal/service"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ---- users ----

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, bool, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	return user, true, nil
}

// ---- refresh tokens ----

func (s *Store) CreateRefreshToken(ctx context.Context, token model.RefreshToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt)
	return err
}

func (s *Store) RefreshTokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token = $1)`, token).Scan(&exists)
	return exists, err
}

func (s *Store) DeleteRefreshToken(ctx context.Context, token string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ---- batches ----

func (s *Store) CreateBatch(ctx context.Context, batch model.Batch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO batches (id, batch_name, subject, teacher, timing, monthly_fees, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, batch.ID, batch.BatchName, batch.Subject, batch.Teacher, batch.Timing, batch.MonthlyFees, batch.CreatedAt, batch.UpdatedAt)
	return err
}

func (s *Store) ListBatches(ctx context.Context) ([]model.Batch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, batch_name, subject, teacher, timing, monthly_fees, created_at, updated_at
		FROM batches
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		var batch model.Batch
		if err := rows.Scan(&batch.ID, &batch.BatchName, &batch.Subject, &batch.Teacher, &batch.Timing, &batch.MonthlyFees, &batch.CreatedAt, &batch.UpdatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

func (s *Store) GetBatch(ctx context.Context, id string) (model.Batch, bool, error) {
	var batch model.Batch
	row := s.pool.QueryRow(ctx, `
		SELECT id, batch_name, subject, teacher, timing, monthly_fees, created_at, updated_at
		FROM batches
		WHERE id = $1
	`, id)
	err := row.Scan(&batch.ID, &batch.BatchName, &batch.Subject, &batch.Teacher, &batch.Timing, &batch.MonthlyFees, &batch.CreatedAt, &batch.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Batch{}, false, nil
	}
	if err != nil {
		return model.Batch{}, false, err
	}
	return batch, true, nil
}

func (s *Store) UpdateBatch(ctx context.Context, id string, update service.BatchUpdate) (model.Batch, bool, error) {
	var batch model.Batch
	row := s.pool.QueryRow(ctx, `
		UPDATE batches
		SET batch_name = COALESCE($2, batch_name),
		    subject = COALESCE($3, subject),
		    teacher = COALESCE($4, teacher),
		    timing = COALESCE($5, timing),
		    monthly_fees = COALESCE($6, monthly_fees),
		    updated_at = $7
		WHERE id = $1
		RETURNING id, batch_name, subject, teacher, timing, monthly_fees, created_at, updated_at
	`, id, update.BatchName, update.Subject, update.Teacher, update.Timing, update.MonthlyFees, time.Now().UTC())
	err := row.Scan(&batch.ID, &batch.BatchName, &batch.Subject, &batch.Teacher, &batch.Timing, &batch.MonthlyFees, &batch.CreatedAt, &batch.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Batch{}, false, nil
	}
	if err != nil {
		return model.Batch{}, false, err
	}
	return batch, true, nil
}

func (s *Store) DeleteBatch(ctx context.Context, id string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ---- students ----

func (s *Store) CreateStudent(ctx context.Context, student model.Student) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (id, name, phone, fees, due_amount, join_date, address, guardian_name, guardian_phone, batch_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, student.ID, student.Name, student.Phone, student.Fees, student.DueAmount, student.JoinDate, student.Address, student.GuardianName, student.GuardianPhone, student.BatchID, student.CreatedAt, student.UpdatedAt)
	return err
}

func (s *Store) GetStudent(ctx context.Context, id string) (model.Student, bool, error) {
	var student model.Student
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, phone, fees, due_amount, join_date, address, guardian_name, guardian_phone, batch_id, created_at, updated_at
		FROM students
		WHERE id = $1
	`, id)
	err := scanStudent(row, &student)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Student{}, false, nil
	}
	if err != nil {
		return model.Student{}, false, err
	}
	return student, true, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]model.StudentWithBatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.name, s.phone, s.fees, s.due_amount, s.join_date, s.address, s.guardian_name, s.guardian_phone, s.batch_id, s.created_at, s.updated_at,
		       b.id, b.batch_name, b.subject, b.teacher, b.timing, b.monthly_fees, b.created_at, b.updated_at
		FROM students s
		JOIN batches b ON b.id = s.batch_id
		ORDER BY s.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.StudentWithBatch
	for rows.Next() {
		var entry model.StudentWithBatch
		if err := rows.Scan(
			&entry.Student.ID, &entry.Student.Name, &entry.Student.Phone, &entry.Student.Fees, &entry.Student.DueAmount, &entry.Student.JoinDate,
			&entry.Student.Address, &entry.Student.GuardianName, &entry.Student.GuardianPhone, &entry.Student.BatchID, &entry.Student.CreatedAt, &entry.Student.UpdatedAt,
			&entry.Batch.ID, &entry.Batch.BatchName, &entry.Batch.Subject, &entry.Batch.Teacher, &entry.Batch.Timing, &entry.Batch.MonthlyFees, &entry.Batch.CreatedAt, &entry.Batch.UpdatedAt,
		); err != nil {
			return nil, err
		}
		students = append(students, entry)
	}
	return students, rows.Err()
}

func (s *Store) GetStudentWithBatch(ctx context.Context, id string) (model.StudentWithBatch, bool, error) {
	var entry model.StudentWithBatch
	row := s.pool.QueryRow(ctx, `
		SELECT s.id, s.name, s.phone, s.fees, s.due_amount, s.join_date, s.address, s.guardian_name, s.guardian_phone, s.batch_id, s.created_at, s.updated_at,
		       b.id, b.batch_name, b.subject, b.teacher, b.timing, b.monthly_fees, b.created_at, b.updated_at
		FROM students s
		JOIN batches b ON b.id = s.batch_id
		WHERE s.id = $1
	`, id)
	err := row.Scan(
		&entry.Student.ID, &entry.Student.Name, &entry.Student.Phone, &entry.Student.Fees, &entry.Student.DueAmount, &entry.Student.JoinDate,
		&entry.Student.Address, &entry.Student.GuardianName, &entry.Student.GuardianPhone, &entry.Student.BatchID, &entry.Student.CreatedAt, &entry.Student.UpdatedAt,
		&entry.Batch.ID, &entry.Batch.BatchName, &entry.Batch.Subject, &entry.Batch.Teacher, &entry.Batch.Timing, &entry.Batch.MonthlyFees, &entry.Batch.CreatedAt, &entry.Batch.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.StudentWithBatch{}, false, nil
	}
	if err != nil {
		return model.StudentWithBatch{}, false, err
	}
	return entry, true, nil
}

func (s *Store) UpdateStudent(ctx context.Context, id string, update service.StudentUpdate) (model.Student, bool, error) {
	var student model.Student
	row := s.pool.QueryRow(ctx, `
		UPDATE students
		SET name = COALESCE($2, name),
		    phone = COALESCE($3, phone),
		    address = COALESCE($4, address),
		    guardian_name = COALESCE($5, guardian_name),
		    guardian_phone = COALESCE($6, guardian_phone),
		    batch_id = COALESCE($7, batch_id),
		    updated_at = $8
		WHERE id = $1
		RETURNING id, name, phone, fees, due_amount, join_date, address, guardian_name, guardian_phone, batch_id, created_at, updated_at
	`, id, update.Name, update.Phone, update.Address, update.GuardianName, update.GuardianPhone, update.BatchID, time.Now().UTC())
	err := scanStudent(row, &student)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Student{}, false, nil
	}
	if err != nil {
		return model.Student{}, false, err
	}
	return student, true, nil
}

func (s *Store) DeleteStudent(ctx context.Context, id string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ---- fee payments ----

// RecordPayment inserts the payment row and applies the balance update in
// one transaction. The student row is locked first so two concurrent
// payments can never both compute against the same stale balance; the due
// check is repeated under that lock.
func (s *Store) RecordPayment(ctx context.Context, payment model.FeePayment) (model.FeePayment, model.Student, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.FeePayment{}, model.Student{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var due int64
	if err := tx.QueryRow(ctx, `SELECT due_amount FROM students WHERE id = $1 FOR UPDATE`, payment.StudentID).Scan(&due); err != nil {
		return model.FeePayment{}, model.Student{}, err
	}
	if payment.AmountPaid > due {
		return model.FeePayment{}, model.Student{}, model.ErrDueExceeded
	}

	now := time.Now().UTC()
	payment.ID = uuid.NewString()
	payment.CreatedAt = now
	if _, err := tx.Exec(ctx, `
		INSERT INTO fee_payments (id, receipt_no, student_id, batch_id, amount_paid, mode, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, payment.ID, payment.ReceiptNo, payment.StudentID, payment.BatchID, payment.AmountPaid, payment.Mode, payment.Date, payment.CreatedAt); err != nil {
		return model.FeePayment{}, model.Student{}, err
	}

	var student model.Student
	row := tx.QueryRow(ctx, `
		UPDATE students
		SET due_amount = due_amount - $2, updated_at = $3
		WHERE id = $1
		RETURNING id, name, phone, fees, due_amount, join_date, address, guardian_name, guardian_phone, batch_id, created_at, updated_at
	`, payment.StudentID, payment.AmountPaid, now)
	if err := scanStudent(row, &student); err != nil {
		return model.FeePayment{}, model.Student{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.FeePayment{}, model.Student{}, err
	}
	return payment, student, nil
}

func (s *Store) PaymentsByStudent(ctx context.Context, studentID string) ([]model.FeePayment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, receipt_no, student_id, batch_id, amount_paid, mode, date, created_at
		FROM fee_payments
		WHERE student_id = $1
		ORDER BY date DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []model.FeePayment
	for rows.Next() {
		var payment model.FeePayment
		if err := rows.Scan(&payment.ID, &payment.ReceiptNo, &payment.StudentID, &payment.BatchID, &payment.AmountPaid, &payment.Mode, &payment.Date, &payment.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func (s *Store) GetPaymentDetail(ctx context.Context, paymentID string) (model.PaymentDetail, bool, error) {
	var detail model.PaymentDetail
	row := s.pool.QueryRow(ctx, `
		SELECT p.id, p.receipt_no, p.student_id, p.batch_id, p.amount_paid, p.mode, p.date, p.created_at,
		       s.id, s.name, s.phone, s.fees, s.due_amount, s.join_date, s.address, s.guardian_name, s.guardian_phone, s.batch_id, s.created_at, s.updated_at,
		       b.id, b.batch_name, b.subject, b.teacher, b.timing, b.monthly_fees, b.created_at, b.updated_at
		FROM fee_payments p
		JOIN students s ON s.id = p.student_id
		JOIN batches b ON b.id = p.batch_id
		WHERE p.id = $1
	`, paymentID)
	err := row.Scan(
		&detail.Payment.ID, &detail.Payment.ReceiptNo, &detail.Payment.StudentID, &detail.Payment.BatchID, &detail.Payment.AmountPaid, &detail.Payment.Mode, &detail.Payment.Date, &detail.Payment.CreatedAt,
		&detail.Student.ID, &detail.Student.Name, &detail.Student.Phone, &detail.Student.Fees, &detail.Student.DueAmount, &detail.Student.JoinDate,
		&detail.Student.Address, &detail.Student.GuardianName, &detail.Student.GuardianPhone, &detail.Student.BatchID, &detail.Student.CreatedAt, &detail.Student.UpdatedAt,
		&detail.Batch.ID, &detail.Batch.BatchName, &detail.Batch.Subject, &detail.Batch.Teacher, &detail.Batch.Timing, &detail.Batch.MonthlyFees, &detail.Batch.CreatedAt, &detail.Batch.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PaymentDetail{}, false, nil
	}
	if err != nil {
		return model.PaymentDetail{}, false, err
	}
	return detail, true, nil
}

func (s *Store) CollectedBetween(ctx context.Context, start, end time.Time) (int64, map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mode, COALESCE(SUM(amount_paid), 0)
		FROM fee_payments
		WHERE date >= $1 AND date < $2
		GROUP BY mode
	`, start, end)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var total int64
	breakDown := make(map[string]int64)
	for rows.Next() {
		var mode string
		var sum int64
		if err := rows.Scan(&mode, &sum); err != nil {
			return 0, nil, err
		}
		breakDown[mode] = sum
		total += sum
	}
	return total, breakDown, rows.Err()
}

func scanStudent(row pgx.Row, student *model.Student) error {
	return row.Scan(
		&student.ID, &student.Name, &student.Phone, &student.Fees, &student.DueAmount, &student.JoinDate,
		&student.Address, &student.GuardianName, &student.GuardianPhone, &student.BatchID, &student.CreatedAt, &student.UpdatedAt,
	)
}
