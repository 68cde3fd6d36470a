package ledger

import (
	"context"
	"errors"
)

var (
	ErrStudentNotFound   = errors.New("student not found")
	ErrStudentExists     = errors.New("a student with this USN already exists")
	ErrFeeRecordNotFound = errors.New("fee record not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrConflict          = errors.New("the student was modified concurrently, retry")
)

type (
	// StudentFilter applies AND operation on its set fields.
	StudentFilter struct {
		Year       int // 0: any
		Department string
		Status     Status
	}

	// Repository is the ledger record store.
	// Students returned by the store always carry dues derived from their fee records.
	Repository interface {
		// CreateStudent inserts a student along with its initial fee records. ErrStudentExists on duplicate USN.
		CreateStudent(ctx context.Context, s Student, records ...FeeRecord) (Student, error)
		GetStudent(ctx context.Context, usn string) (Student, error)
		// QueryStudents returns the students matching filter in insertion order.
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		// FeeRecords returns the student's records ordered by (year, semester, created).
		FeeRecords(ctx context.Context, usn string) ([]FeeRecord, error)
		// Payments returns the student's payments, newest first.
		Payments(ctx context.Context, usn string) ([]Payment, error)

		// WithStudent runs fn in a unit of work holding an exclusive lock on the student.
		// Writes made through tx are committed if fn returns nil and discarded otherwise.
		WithStudent(ctx context.Context, usn string, fn func(tx Tx) error) error
	}

	// Tx is a per-student unit of work.
	Tx interface {
		// Student returns the locked student, dues reflecting writes made in this unit of work.
		Student(ctx context.Context) (Student, error)
		FeeRecords(ctx context.Context) ([]FeeRecord, error)
		CreateFeeRecord(ctx context.Context, rec FeeRecord) (FeeRecord, error)
		// UpdateFeeRecord saves the amount paid and status of rec.
		UpdateFeeRecord(ctx context.Context, rec FeeRecord) (FeeRecord, error)
		SavePayment(ctx context.Context, p Payment) (Payment, error)
		// PaymentByReference returns ErrPaymentNotFound if the student has no payment with ref.
		PaymentByReference(ctx context.Context, ref string) (Payment, error)
		// UpdateStudent saves the lifecycle and facility fields of s.
		// ErrConflict if s.Version does not match the stored version.
		UpdateStudent(ctx context.Context, s Student) (Student, error)
	}
)
