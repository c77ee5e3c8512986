package model

import (
	"errors"
	"time"
)

// ErrDueExceeded is returned by the payment transaction when the amount
// paid is larger than the student's current due balance.
var ErrDueExceeded = errors.New("amount paid exceeds due amount")

const (
	RoleAdmin      = "admin"
	RoleStaff      = "staff"
	RoleAccountant = "accountant"
)

const (
	PaymentModeCash = "cash"
	PaymentModeUPI  = "upi"
	PaymentModeBank = "bank"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Batch struct {
	ID          string
	BatchName   string
	Subject     string
	Teacher     string
	Timing      string
	MonthlyFees int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Student struct {
	ID            string
	Name          string
	Phone         string
	Fees          int64
	DueAmount     int64
	JoinDate      time.Time
	Address       *string
	GuardianName  *string
	GuardianPhone *string
	BatchID       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type FeePayment struct {
	ID         string
	ReceiptNo  string
	StudentID  string
	BatchID    string
	AmountPaid int64
	Mode       string
	Date       time.Time
	CreatedAt  time.Time
}

// PaymentDetail is a fee payment joined with its student and batch,
// used by receipt lookup and PDF rendering.
type PaymentDetail struct {
	Payment FeePayment
	Student Student
	Batch   Batch
}

// StudentWithBatch is a student joined with its batch for listing.
type StudentWithBatch struct {
	Student Student
	Batch   Batch
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStaff, RoleAccountant:
		return true
	default:
		return false
	}
}

func ValidPaymentMode(mode string) bool {
	switch mode {
	case PaymentModeCash, PaymentModeUPI, PaymentModeBank:
		return true
	default:
		return false
	}
}
