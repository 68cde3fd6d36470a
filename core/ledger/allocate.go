package ledger

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/ramesh-perabattula/EduPay/core"
)

// SortRecords orders records by (year, semester, created); records without a semester come first within a year.
func SortRecords(records []FeeRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Semester.Valid != b.Semester.Valid {
			return !a.Semester.Valid
		}
		if a.Semester.Int != b.Semester.Int {
			return a.Semester.Int < b.Semester.Int
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// Allocate distributes amount first-in first-out over the outstanding records of a stream.
// records must be sorted with SortRecords. Paying more than the stream's balance is rejected.
func Allocate(records []FeeRecord, ft FeeType, amount int64) ([]Allocation, error) {
	if amount <= 0 {
		return nil, core.NewFieldError("amount", "amount must be greater than zero")
	}

	remaining := amount
	allocs := make([]Allocation, 0)
	for _, rec := range records {
		if remaining == 0 {
			break
		}
		if rec.FeeType != ft {
			continue
		}
		bal := rec.Balance()
		if bal == 0 {
			continue
		}
		share := bal
		if remaining < share {
			share = remaining
		}
		allocs = append(allocs, Allocation{FeeRecordID: rec.ID, Amount: share})
		remaining -= share
	}
	if remaining > 0 {
		return nil, core.NewValidationError(
			errors.Errorf("payment of %d exceeds the outstanding %s due of %d", amount, ft, amount-remaining),
			core.FieldError{Field: "amount", Error: "amount exceeds the outstanding due"},
		)
	}
	return allocs, nil
}

// Apply credits amount to rec, rejecting overpayment.
func (r *FeeRecord) Apply(amount int64) error {
	if amount <= 0 {
		return core.NewFieldError("amount", "amount must be greater than zero")
	}
	if amount > r.Balance() {
		return core.NewValidationError(
			errors.Errorf("payment of %d exceeds the record balance of %d", amount, r.Balance()),
			core.FieldError{Field: "amount", Error: "amount exceeds the outstanding due"},
		)
	}
	r.AmountPaid += amount
	r.Status = StatusFor(r.AmountDue, r.AmountPaid)
	return nil
}
