package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

var (
	ErrNothingDue = errors.New("no outstanding dues for this fee")
	errTarget     = errors.New("exactly one of fee_record_id or fee_type must be given")
)

type (
	NewPayment struct {
		USN         string             `json:"usn" validate:"required,usn"`
		FeeRecordID string             `json:"fee_record_id" validate:"omitempty,uuid"`
		FeeType     ledger.FeeType     `json:"fee_type" validate:"omitempty,feetype"`
		Amount      int64              `json:"amount" validate:"gt=0"`
		Mode        ledger.PaymentMode `json:"mode" validate:"required,paymode"`
		Reference   string             `json:"reference" validate:"max=100"`
	}

	// DueOverrides sets the outstanding due of each given stream; nil fields are left unchanged.
	DueOverrides struct {
		College   *int64 `json:"college_fee_due"`
		Transport *int64 `json:"transport_fee_due"`
		Hostel    *int64 `json:"hostel_fee_due"`
		Placement *int64 `json:"placement_fee_due"`
	}

	Receipt struct {
		Payment   ledger.Payment `json:"payment"`
		Student   ledger.Student `json:"student"`
		Duplicate bool           `json:"duplicate"`
	}

	Service struct {
		repo    ledger.Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo ledger.Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, logger: logger}
}

// Streams returns the fee streams touched by the overrides.
func (o DueOverrides) Streams() []ledger.FeeType {
	streams := make([]ledger.FeeType, 0, len(ledger.FeeTypes))
	for _, ft := range ledger.FeeTypes {
		if o.of(ft) != nil {
			streams = append(streams, ft)
		}
	}
	return streams
}

func (o DueOverrides) of(ft ledger.FeeType) *int64 {
	switch ft {
	case ledger.College:
		return o.College
	case ledger.Transport:
		return o.Transport
	case ledger.Hostel:
		return o.Hostel
	case ledger.Placement:
		return o.Placement
	}
	return nil
}

func validatePayment(np NewPayment) error {
	if err := ledger.Validate(np); err != nil {
		return err
	}
	if (np.FeeRecordID == "") == (np.FeeType == "") {
		return core.NewValidationError(errTarget,
			core.FieldError{Field: "fee_record_id", Error: errTarget.Error()},
			core.FieldError{Field: "fee_type", Error: errTarget.Error()},
		)
	}
	if np.Mode == ledger.Adjustment {
		return core.NewFieldError("mode", "adjustments are made by overriding the due")
	}
	return nil
}

// RecordPayment applies a payment to a fee record, or first-in first-out over a fee stream.
// A payment replayed with the reference of an existing one returns the original, marked as duplicate.
func (svc *Service) RecordPayment(ctx context.Context, np NewPayment) (Receipt, error) {
	np.USN = core.CleanUSN(np.USN)
	np.Reference = core.CleanString(np.Reference)
	if err := validatePayment(np); err != nil {
		return Receipt{}, err
	}
	return svc.record(ctx, np, false)
}

// SettleStream pays the whole outstanding due of a stream.
func (svc *Service) SettleStream(ctx context.Context, usn string, ft ledger.FeeType, mode ledger.PaymentMode, reference string) (Receipt, error) {
	np := NewPayment{
		USN:       core.CleanUSN(usn),
		FeeType:   ft,
		Amount:    1, // resolved under lock
		Mode:      mode,
		Reference: core.CleanString(reference),
	}
	if err := validatePayment(np); err != nil {
		return Receipt{}, err
	}
	return svc.record(ctx, np, true)
}

func (svc *Service) record(ctx context.Context, np NewPayment, settle bool) (Receipt, error) {
	var rcpt Receipt
	err := svc.repo.WithStudent(ctx, np.USN, func(tx ledger.Tx) error {
		if np.Reference != "" {
			p, err := tx.PaymentByReference(ctx, np.Reference)
			switch errors.Cause(err) {
			case nil:
				s, err := tx.Student(ctx)
				if err != nil {
					return err
				}
				rcpt = Receipt{Payment: p, Student: s, Duplicate: true}
				return nil
			case ledger.ErrPaymentNotFound: // pass
			default:
				return err
			}
		}

		if settle {
			s, err := tx.Student(ctx)
			if err != nil {
				return err
			}
			if np.Amount = s.Dues.Of(np.FeeType); np.Amount <= 0 {
				return core.NewValidationError(ErrNothingDue, core.FieldError{Field: "fee_type", Error: ErrNothingDue.Error()})
			}
		}

		p := ledger.Payment{
			FeeType:   np.FeeType,
			Amount:    np.Amount,
			Mode:      np.Mode,
			CreatedAt: time.Now().UTC(),
		}
		if np.Reference != "" {
			p.Reference = null.StringFrom(np.Reference)
		}
		if err := ledger.ApplyPayment(ctx, tx, &p, np.FeeRecordID); err != nil {
			return err
		}

		var err error
		if rcpt.Payment, err = tx.SavePayment(ctx, p); err != nil {
			return errors.Wrap(err, "saving payment")
		}
		rcpt.Student, err = tx.Student(ctx)
		return err
	})
	if err != nil {
		return Receipt{}, err
	}

	if !rcpt.Duplicate {
		svc.sendReceipt(rcpt)
	}
	return rcpt, nil
}

// OverrideDue sets the outstanding due of the given streams. Lowering a due records an adjustment
// payment for the difference; raising it records an adjustment fee for the current year.
func (svc *Service) OverrideDue(ctx context.Context, usn string, overrides DueOverrides) (ledger.Student, error) {
	streams := overrides.Streams()
	if len(streams) == 0 {
		return ledger.Student{}, core.NewValidationError(errors.New("nothing to update"))
	}
	for _, ft := range streams {
		if *overrides.of(ft) < 0 {
			field := string(ft) + "_fee_due"
			return ledger.Student{}, core.NewFieldError(field, field+" cannot be negative")
		}
	}

	var updated ledger.Student
	err := svc.repo.WithStudent(ctx, core.CleanUSN(usn), func(tx ledger.Tx) error {
		for _, ft := range streams {
			s, err := tx.Student(ctx)
			if err != nil {
				return err
			}
			if err := overrideStream(ctx, tx, s, ft, *overrides.of(ft)); err != nil {
				return err
			}
		}
		var err error
		updated, err = tx.Student(ctx)
		return err
	})
	if err != nil {
		return ledger.Student{}, err
	}
	return updated, nil
}

func overrideStream(ctx context.Context, tx ledger.Tx, s ledger.Student, ft ledger.FeeType, newDue int64) error {
	cur := s.Dues.Of(ft)
	if newDue > cur {
		field := string(ft) + "_fee_due"
		if !s.IsActive() {
			return core.NewFieldError(field, "cannot raise the due of a graduated student")
		}
		if !s.Opted(ft) {
			return core.NewFieldError(field, fmt.Sprintf("student has not opted in to %s", ft))
		}
	}
	now := time.Now().UTC()
	raise := ledger.FeeRecord{
		Year:      s.CurrentYear,
		Note:      ledger.NoteAdjustment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := ledger.SetDue(ctx, tx, ft, cur, newDue, raise)
	return err
}

// QueryPayments returns the payment history of a student, newest first.
func (svc *Service) QueryPayments(ctx context.Context, usn string) ([]ledger.Payment, error) {
	return svc.repo.Payments(ctx, core.CleanUSN(usn))
}
