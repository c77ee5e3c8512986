package service

// Kind classifies a service failure so the transport layer can pick a
// status code without inspecting messages.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindDuplicateEmail Kind = "duplicate_email"
	KindAuthentication Kind = "authentication"
	KindInvalidToken   Kind = "invalid_token"
	KindNotFound       Kind = "not_found"
	KindInvalidRequest Kind = "invalid_request"
	KindInternal       Kind = "internal"
)

type Error struct {
	Kind Kind
	Code string
}

func (e *Error) Error() string { return e.Code }

var (
	ErrDuplicateEmail = &Error{Kind: KindDuplicateEmail, Code: "email_in_use"}
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// the response does not leak which accounts exist.
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Code: "invalid_credentials"}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken, Code: "invalid_refresh_token"}
	ErrMissingToken       = &Error{Kind: KindInvalidRequest, Code: "missing_refresh_token"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Code: "user_not_found"}
	ErrStudentNotFound    = &Error{Kind: KindNotFound, Code: "student_not_found"}
	ErrBatchNotFound      = &Error{Kind: KindNotFound, Code: "batch_not_found"}
	ErrPaymentNotFound    = &Error{Kind: KindNotFound, Code: "payment_not_found"}
	ErrOverpayment        = &Error{Kind: KindValidation, Code: "amount_exceeds_due"}
	ErrInvalidPaymentMode = &Error{Kind: KindValidation, Code: "invalid_payment_mode"}
	ErrInvalidAmount      = &Error{Kind: KindValidation, Code: "invalid_amount"}
	ErrMissingFields      = &Error{Kind: KindInvalidRequest, Code: "missing_fields"}
	ErrInvalidReportQuery = &Error{Kind: KindValidation, Code: "invalid_report_query"}
)
