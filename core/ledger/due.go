package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ApplyPayment allocates p over the student's records and saves them. When recordID is given the
// whole amount goes to that record and p.FeeType is taken from it.
func ApplyPayment(ctx context.Context, tx Tx, p *Payment, recordID string) error {
	records, err := tx.FeeRecords(ctx)
	if err != nil {
		return err
	}

	if recordID != "" {
		p.Allocations = nil
		for _, rec := range records {
			if rec.ID == recordID {
				p.FeeType = rec.FeeType
				p.Allocations = []Allocation{{FeeRecordID: rec.ID, Amount: p.Amount}}
				break
			}
		}
		if p.Allocations == nil {
			return ErrFeeRecordNotFound
		}
	} else if p.Allocations, err = Allocate(records, p.FeeType, p.Amount); err != nil {
		return err
	}

	byID := make(map[string]FeeRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	now := time.Now().UTC()
	for _, a := range p.Allocations {
		rec := byID[a.FeeRecordID]
		if err := rec.Apply(a.Amount); err != nil {
			return err
		}
		rec.UpdatedAt = now
		if _, err := tx.UpdateFeeRecord(ctx, rec); err != nil {
			return errors.Wrap(err, "updating fee record")
		}
	}
	return nil
}

// SetDue moves the outstanding due of ft from cur to due.
// A decrease is saved as an ADJUSTMENT payment allocated oldest first. An increase creates raise
// with AmountDue set to the difference. It reports whether anything changed.
func SetDue(ctx context.Context, tx Tx, ft FeeType, cur, due int64, raise FeeRecord) (bool, error) {
	switch {
	case due == cur:
		return false, nil

	case due < cur:
		p := Payment{
			FeeType:   ft,
			Amount:    cur - due,
			Mode:      Adjustment,
			CreatedAt: time.Now().UTC(),
		}
		if err := ApplyPayment(ctx, tx, &p, ""); err != nil {
			return false, err
		}
		if _, err := tx.SavePayment(ctx, p); err != nil {
			return false, errors.Wrap(err, "saving adjustment")
		}
		return true, nil

	default:
		raise.FeeType = ft
		raise.AmountDue = due - cur
		raise.AmountPaid = 0
		raise.Status = Unpaid
		if _, err := tx.CreateFeeRecord(ctx, raise); err != nil {
			return false, errors.Wrap(err, "creating fee record")
		}
		return true, nil
	}
}
