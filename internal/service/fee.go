package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/PrithiviPM2580/coaching-management-backend/internal/crypto"
	"github.com/PrithiviPM2580/coaching-management-backend/internal/model"
)

type FeeStore interface {
	GetStudent(ctx context.Context, id string) (model.Student, bool, error)
	GetBatch(ctx context.Context, id string) (model.Batch, bool, error)
	// RecordPayment persists the payment row and the student's new due
	// amount in one transaction, re-checking the balance under a row lock.
	// It returns model.ErrDueExceeded when the payment no longer fits.
	RecordPayment(ctx context.Context, payment model.FeePayment) (model.FeePayment, model.Student, error)
	PaymentsByStudent(ctx context.Context, studentID string) ([]model.FeePayment, error)
	GetPaymentDetail(ctx context.Context, paymentID string) (model.PaymentDetail, bool, error)
	CollectedBetween(ctx context.Context, start, end time.Time) (int64, map[string]int64, error)
}

type Fee struct {
	store FeeStore
}

func NewFee(store FeeStore) *Fee {
	return &Fee{store: store}
}

type RecordPaymentInput struct {
	StudentID  string
	BatchID    string
	AmountPaid int64
	Mode       string
	Date       time.Time
}

type PaymentResult struct {
	Payment model.FeePayment
	Student model.Student
}

// RecordPayment validates the payment against the student's current due
// balance and commits the payment row plus the balance update atomically.
// Overpayment is rejected so due_amount never goes negative.
func (f *Fee) RecordPayment(ctx context.Context, in RecordPaymentInput) (PaymentResult, error) {
	if in.StudentID == "" || in.BatchID == "" {
		return PaymentResult{}, ErrMissingFields
	}
	if in.AmountPaid <= 0 {
		return PaymentResult{}, ErrInvalidAmount
	}
	if !model.ValidPaymentMode(in.Mode) {
		return PaymentResult{}, ErrInvalidPaymentMode
	}

	student, found, err := f.store.GetStudent(ctx, in.StudentID)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("get student: %w", err)
	}
	if !found {
		return PaymentResult{}, ErrStudentNotFound
	}

	if _, found, err := f.store.GetBatch(ctx, in.BatchID); err != nil {
		return PaymentResult{}, fmt.Errorf("get batch: %w", err)
	} else if !found {
		return PaymentResult{}, ErrBatchNotFound
	}

	if in.AmountPaid > student.DueAmount {
		log.Printf("fee: payment of %d rejected for student %s, due is %d", in.AmountPaid, student.ID, student.DueAmount)
		return PaymentResult{}, ErrOverpayment
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	payment := model.FeePayment{
		ReceiptNo:  crypto.NewReceiptNumber(),
		StudentID:  in.StudentID,
		BatchID:    in.BatchID,
		AmountPaid: in.AmountPaid,
		Mode:       in.Mode,
		Date:       date,
	}

	saved, updated, err := f.store.RecordPayment(ctx, payment)
	if err != nil {
		// The balance is re-checked inside the transaction; a concurrent
		// payment can still win the row lock and shrink the due amount.
		if errors.Is(err, model.ErrDueExceeded) {
			return PaymentResult{}, ErrOverpayment
		}
		return PaymentResult{}, fmt.Errorf("record payment: %w", err)
	}

	return PaymentResult{Payment: saved, Student: updated}, nil
}

type StudentFees struct {
	Student  model.Student      `json:"student"`
	Payments []model.FeePayment `json:"payments"`
}

// StudentFees returns a student together with their payment history,
// newest first.
func (f *Fee) StudentFees(ctx context.Context, studentID string) (StudentFees, error) {
	if studentID == "" {
		return StudentFees{}, ErrMissingFields
	}
	student, found, err := f.store.GetStudent(ctx, studentID)
	if err != nil {
		return StudentFees{}, fmt.Errorf("get student: %w", err)
	}
	if !found {
		return StudentFees{}, ErrStudentNotFound
	}
	payments, err := f.store.PaymentsByStudent(ctx, studentID)
	if err != nil {
		return StudentFees{}, fmt.Errorf("list payments: %w", err)
	}
	return StudentFees{Student: student, Payments: payments}, nil
}

type FeeReport struct {
	Start          time.Time        `json:"start"`
	End            time.Time        `json:"end"`
	TotalCollected int64            `json:"totalCollected"`
	BreakDown      map[string]int64 `json:"breakDown"`
}

// Report aggregates collected fees for a day ("daily", date 2006-01-02)
// or a calendar month ("monthly", date 2006-01).
func (f *Fee) Report(ctx context.Context, reportType, date string) (FeeReport, error) {
	var start, end time.Time
	switch reportType {
	case "daily":
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return FeeReport{}, ErrInvalidReportQuery
		}
		start = day
		end = day.AddDate(0, 0, 1)
	case "monthly":
		month, err := time.Parse("2006-01", date)
		if err != nil {
			return FeeReport{}, ErrInvalidReportQuery
		}
		start = month
		end = month.AddDate(0, 1, 0)
	default:
		return FeeReport{}, ErrInvalidReportQuery
	}

	total, breakDown, err := f.store.CollectedBetween(ctx, start, end)
	if err != nil {
		return FeeReport{}, fmt.Errorf("aggregate fees: %w", err)
	}
	return FeeReport{Start: start, End: end, TotalCollected: total, BreakDown: breakDown}, nil
}

// Receipt returns a payment joined with its student and batch.
func (f *Fee) Receipt(ctx context.Context, paymentID string) (model.PaymentDetail, error) {
	if paymentID == "" {
		return model.PaymentDetail{}, ErrMissingFields
	}
	detail, found, err := f.store.GetPaymentDetail(ctx, paymentID)
	if err != nil {
		return model.PaymentDetail{}, fmt.Errorf("get payment: %w", err)
	}
	if !found {
		return model.PaymentDetail{}, ErrPaymentNotFound
	}
	return detail, nil
}
