package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PrithiviPM2580/coaching-management-backend/internal/model"
)

type StudentStore interface {
	CreateStudent(ctx context.Context, student model.Student) error
	ListStudents(ctx context.Context) ([]model.StudentWithBatch, error)
	GetStudentWithBatch(ctx context.Context, id string) (model.StudentWithBatch, bool, error)
	UpdateStudent(ctx context.Context, id string, update StudentUpdate) (model.Student, bool, error)
	DeleteStudent(ctx context.Context, id string) (int64, error)
	GetBatch(ctx context.Context, id string) (model.Batch, bool, error)
}

// StudentUpdate carries optional fields for a partial student update.
// DueAmount is deliberately absent: the balance is mutated only through
// the fee ledger.
type StudentUpdate struct {
	Name          *string
	Phone         *string
	Address       *string
	GuardianName  *string
	GuardianPhone *string
	BatchID       *string
}

type Students struct {
	store StudentStore
}

func NewStudents(store StudentStore) *Students {
	return &Students{store: store}
}

type CreateStudentInput struct {
	Name          string
	Phone         string
	Fees          int64
	JoinDate      time.Time
	Address       *string
	GuardianName  *string
	GuardianPhone *string
	BatchID       string
}

// Create registers a student. The opening due balance equals the agreed
// fees; payments bring it down from there.
func (s *Students) Create(ctx context.Context, in CreateStudentInput) (model.Student, error) {
	if in.Name == "" || in.Phone == "" || in.BatchID == "" {
		return model.Student{}, ErrMissingFields
	}
	if in.Fees < 0 {
		return model.Student{}, ErrInvalidAmount
	}

	if _, found, err := s.store.GetBatch(ctx, in.BatchID); err != nil {
		return model.Student{}, fmt.Errorf("get batch: %w", err)
	} else if !found {
		return model.Student{}, ErrBatchNotFound
	}

	joinDate := in.JoinDate
	if joinDate.IsZero() {
		joinDate = time.Now().UTC()
	}

	now := time.Now().UTC()
	student := model.Student{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Phone:         in.Phone,
		Fees:          in.Fees,
		DueAmount:     in.Fees,
		JoinDate:      joinDate,
		Address:       in.Address,
		GuardianName:  in.GuardianName,
		GuardianPhone: in.GuardianPhone,
		BatchID:       in.BatchID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateStudent(ctx, student); err != nil {
		return model.Student{}, fmt.Errorf("create student: %w", err)
	}
	return student, nil
}

func (s *Students) List(ctx context.Context) ([]model.StudentWithBatch, error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

func (s *Students) Get(ctx context.Context, id string) (model.StudentWithBatch, error) {
	if id == "" {
		return model.StudentWithBatch{}, ErrMissingFields
	}
	student, found, err := s.store.GetStudentWithBatch(ctx, id)
	if err != nil {
		return model.StudentWithBatch{}, fmt.Errorf("get student: %w", err)
	}
	if !found {
		return model.StudentWithBatch{}, ErrStudentNotFound
	}
	return student, nil
}

func (s *Students) Update(ctx context.Context, id string, update StudentUpdate) (model.Student, error) {
	if id == "" {
		return model.Student{}, ErrMissingFields
	}
	if update.BatchID != nil {
		if _, found, err := s.store.GetBatch(ctx, *update.BatchID); err != nil {
			return model.Student{}, fmt.Errorf("get batch: %w", err)
		} else if !found {
			return model.Student{}, ErrBatchNotFound
		}
	}
	student, found, err := s.store.UpdateStudent(ctx, id, update)
	if err != nil {
		return model.Student{}, fmt.Errorf("update student: %w", err)
	}
	if !found {
		return model.Student{}, ErrStudentNotFound
	}
	return student, nil
}

func (s *Students) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingFields
	}
	deleted, err := s.store.DeleteStudent(ctx, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if deleted == 0 {
		return ErrStudentNotFound
	}
	return nil
}
