package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/PrithiviPM2580/coaching-management-backend/internal/model"
)

// memStore is an in-memory stand-in for the repository used by the
// service tests. failCreateToken and failTx force persistence failures
// at the points the tests care about.
type memStore struct {
	users    map[string]model.User // keyed by email
	tokens   map[string]model.RefreshToken
	batches  map[string]model.Batch
	students map[string]model.Student
	payments []model.FeePayment

	failCreateToken bool
	failTx          bool
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]model.User),
		tokens:   make(map[string]model.RefreshToken),
		batches:  make(map[string]model.Batch),
		students: make(map[string]model.Student),
	}
}

var errForced = errors.New("forced store failure")

func (m *memStore) EmailExists(_ context.Context, email string) (bool, error) {
	_, ok := m.users[email]
	return ok, nil
}

func (m *memStore) CreateUser(_ context.Context, user model.User) error {
	m.users[user.Email] = user
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (model.User, bool, error) {
	user, ok := m.users[email]
	return user, ok, nil
}

func (m *memStore) CreateRefreshToken(_ context.Context, token model.RefreshToken) error {
	if m.failCreateToken {
		return errForced
	}
	m.tokens[token.Token] = token
	return nil
}

func (m *memStore) RefreshTokenExists(_ context.Context, token string) (bool, error) {
	_, ok := m.tokens[token]
	return ok, nil
}

func (m *memStore) DeleteRefreshToken(_ context.Context, token string) (int64, error) {
	if _, ok := m.tokens[token]; !ok {
		return 0, nil
	}
	delete(m.tokens, token)
	return 1, nil
}

func (m *memStore) CreateBatch(_ context.Context, batch model.Batch) error {
	m.batches[batch.ID] = batch
	return nil
}

func (m *memStore) ListBatches(_ context.Context) ([]model.Batch, error) {
	batches := make([]model.Batch, 0, len(m.batches))
	for _, batch := range m.batches {
		batches = append(batches, batch)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].CreatedAt.After(batches[j].CreatedAt) })
	return batches, nil
}

func (m *memStore) GetBatch(_ context.Context, id string) (model.Batch, bool, error) {
	batch, ok := m.batches[id]
	return batch, ok, nil
}

func (m *memStore) UpdateBatch(_ context.Context, id string, update BatchUpdate) (model.Batch, bool, error) {
	batch, ok := m.batches[id]
	if !ok {
		return model.Batch{}, false, nil
	}
	if update.BatchName != nil {
		batch.BatchName = *update.BatchName
	}
	if update.Subject != nil {
		batch.Subject = *update.Subject
	}
	if update.Teacher != nil {
		batch.Teacher = *update.Teacher
	}
	if update.Timing != nil {
		batch.Timing = *update.Timing
	}
	if update.MonthlyFees != nil {
		batch.MonthlyFees = *update.MonthlyFees
	}
	batch.UpdatedAt = time.Now().UTC()
	m.batches[id] = batch
	return batch, true, nil
}

func (m *memStore) DeleteBatch(_ context.Context, id string) (int64, error) {
	if _, ok := m.batches[id]; !ok {
		return 0, nil
	}
	delete(m.batches, id)
	return 1, nil
}

func (m *memStore) CreateStudent(_ context.Context, student model.Student) error {
	m.students[student.ID] = student
	return nil
}

func (m *memStore) ListStudents(_ context.Context) ([]model.StudentWithBatch, error) {
	entries := make([]model.StudentWithBatch, 0, len(m.students))
	for _, student := range m.students {
		entries = append(entries, model.StudentWithBatch{Student: student, Batch: m.batches[student.BatchID]})
	}
	return entries, nil
}

func (m *memStore) GetStudent(_ context.Context, id string) (model.Student, bool, error) {
	student, ok := m.students[id]
	return student, ok, nil
}

func (m *memStore) GetStudentWithBatch(_ context.Context, id string) (model.StudentWithBatch, bool, error) {
	student, ok := m.students[id]
	if !ok {
		return model.StudentWithBatch{}, false, nil
	}
	return model.StudentWithBatch{Student: student, Batch: m.batches[student.BatchID]}, true, nil
}

func (m *memStore) UpdateStudent(_ context.Context, id string, update StudentUpdate) (model.Student, bool, error) {
	student, ok := m.students[id]
	if !ok {
		return model.Student{}, false, nil
	}
	if update.Name != nil {
		student.Name = *update.Name
	}
	if update.Phone != nil {
		student.Phone = *update.Phone
	}
	if update.Address != nil {
		student.Address = update.Address
	}
	if update.GuardianName != nil {
		student.GuardianName = update.GuardianName
	}
	if update.GuardianPhone != nil {
		student.GuardianPhone = update.GuardianPhone
	}
	if update.BatchID != nil {
		student.BatchID = *update.BatchID
	}
	student.UpdatedAt = time.Now().UTC()
	m.students[id] = student
	return student, true, nil
}

func (m *memStore) DeleteStudent(_ context.Context, id string) (int64, error) {
	if _, ok := m.students[id]; !ok {
		return 0, nil
	}
	delete(m.students, id)
	return 1, nil
}

func (m *memStore) RecordPayment(_ context.Context, payment model.FeePayment) (model.FeePayment, model.Student, error) {
	if m.failTx {
		return model.FeePayment{}, model.Student{}, errForced
	}
	student, ok := m.students[payment.StudentID]
	if !ok {
		return model.FeePayment{}, model.Student{}, errors.New("student missing")
	}
	if payment.AmountPaid > student.DueAmount {
		return model.FeePayment{}, model.Student{}, model.ErrDueExceeded
	}
	payment.ID = "payment-" + payment.ReceiptNo
	payment.CreatedAt = time.Now().UTC()
	student.DueAmount -= payment.AmountPaid
	m.students[student.ID] = student
	m.payments = append(m.payments, payment)
	return payment, student, nil
}

func (m *memStore) PaymentsByStudent(_ context.Context, studentID string) ([]model.FeePayment, error) {
	var payments []model.FeePayment
	for _, payment := range m.payments {
		if payment.StudentID == studentID {
			payments = append(payments, payment)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].Date.After(payments[j].Date) })
	return payments, nil
}

func (m *memStore) GetPaymentDetail(_ context.Context, paymentID string) (model.PaymentDetail, bool, error) {
	for _, payment := range m.payments {
		if payment.ID == paymentID {
			return model.PaymentDetail{
				Payment: payment,
				Student: m.students[payment.StudentID],
				Batch:   m.batches[payment.BatchID],
			}, true, nil
		}
	}
	return model.PaymentDetail{}, false, nil
}

func (m *memStore) CollectedBetween(_ context.Context, start, end time.Time) (int64, map[string]int64, error) {
	var total int64
	breakDown := make(map[string]int64)
	for _, payment := range m.payments {
		if payment.Date.Before(start) || !payment.Date.Before(end) {
			continue
		}
		breakDown[payment.Mode] += payment.AmountPaid
		total += payment.AmountPaid
	}
	return total, breakDown, nil
}
