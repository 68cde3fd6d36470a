package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

var errAbort = errors.New("abort")

// RunRepositoryTests checks the behaviour every ledger.Repository implementation must share.
// newRepo must return an empty store.
func RunRepositoryTests(t *testing.T, newRepo func(t *testing.T) ledger.Repository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		s := NewStudent("1AB21CS001", "CSE", 1, ledger.Government)
		s.Email = null.StringFrom("a@test.in")
		created := CreateStudent(t, repo, s,
			Record(ledger.College, 1, 50000, 20000),
			Record(ledger.Hostel, 1, 30000, 0),
		)
		assert.Equal(t, int64(1), created.Version)
		assert.NotZero(t, created.ID)
		assert.Equal(t, ledger.Dues{College: 30000, Hostel: 30000}, created.Dues)

		got, err := repo.GetStudent(ctx, s.USN)
		require.NoError(t, err)
		assert.Equal(t, s.USN, got.USN)
		assert.Equal(t, "a@test.in", got.Email.String)
		assert.Equal(t, created.Dues, got.Dues)

		_, err = repo.CreateStudent(ctx, s)
		assert.Equal(t, ledger.ErrStudentExists, errors.Cause(err))

		_, err = repo.GetStudent(ctx, "NOPE")
		assert.Equal(t, ledger.ErrStudentNotFound, errors.Cause(err))
		_, err = repo.FeeRecords(ctx, "NOPE")
		assert.Equal(t, ledger.ErrStudentNotFound, errors.Cause(err))
		_, err = repo.Payments(ctx, "NOPE")
		assert.Equal(t, ledger.ErrStudentNotFound, errors.Cause(err))
	})

	t.Run("fee records are ordered", func(t *testing.T) {
		repo := newRepo(t)
		s := CreateStudent(t, repo, NewStudent("1AB21CS002", "CSE", 2, ledger.Government),
			Record(ledger.College, 2, 100, 0, 4),
			Record(ledger.College, 1, 100, 0),
			Record(ledger.College, 2, 100, 0, 3),
		)
		records := FeeRecords(t, repo, s.USN)
		require.Len(t, records, 3)
		assert.Equal(t, 1, records[0].Year)
		assert.Equal(t, 3, records[1].Semester.Int)
		assert.Equal(t, 4, records[2].Semester.Int)
		for _, rec := range records {
			assert.Equal(t, ledger.Unpaid, rec.Status)
			assert.NotEmpty(t, rec.ID)
		}
	})

	t.Run("query students", func(t *testing.T) {
		repo := newRepo(t)
		a := CreateStudent(t, repo, NewStudent("A1", "CSE", 1, ledger.Government))
		b := CreateStudent(t, repo, NewStudent("B1", "ECE", 1, ledger.Management), Record(ledger.College, 1, 10, 0))
		c := CreateStudent(t, repo, NewStudent("C1", "CSE", 2, ledger.Government))
		g := NewStudent("D1", "CSE", 4, ledger.Government)
		g.Status = ledger.Graduated
		CreateStudent(t, repo, g)

		usns := func(students []ledger.Student) []string {
			out := make([]string, 0, len(students))
			for _, s := range students {
				out = append(out, s.USN)
			}
			return out
		}

		tests := []struct {
			name   string
			filter ledger.StudentFilter
			want   []string
		}{
			{name: "all", want: []string{a.USN, b.USN, c.USN, g.USN}},
			{name: "year", filter: ledger.StudentFilter{Year: 1}, want: []string{a.USN, b.USN}},
			{name: "department", filter: ledger.StudentFilter{Department: "CSE"}, want: []string{a.USN, c.USN, g.USN}},
			{name: "status", filter: ledger.StudentFilter{Status: ledger.Active}, want: []string{a.USN, b.USN, c.USN}},
			{name: "combined", filter: ledger.StudentFilter{Year: 1, Department: "CSE", Status: ledger.Active}, want: []string{a.USN}},
			{name: "empty", filter: ledger.StudentFilter{Year: 3}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.QueryStudents(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, usns(got))
			})
		}

		got, err := repo.QueryStudents(ctx, ledger.StudentFilter{Department: "ECE"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(10), got[0].Dues.College)
	})

	t.Run("unit of work commits", func(t *testing.T) {
		repo := newRepo(t)
		s := CreateStudent(t, repo, NewStudent("1AB21CS003", "CSE", 1, ledger.Government), Record(ledger.College, 1, 1000, 0))
		recID := FeeRecords(t, repo, s.USN)[0].ID

		err := repo.WithStudent(ctx, s.USN, func(tx ledger.Tx) error {
			records, err := tx.FeeRecords(ctx)
			if err != nil {
				return err
			}
			rec := records[0]
			if err := rec.Apply(400); err != nil {
				return err
			}
			if _, err := tx.UpdateFeeRecord(ctx, rec); err != nil {
				return err
			}
			if _, err := tx.CreateFeeRecord(ctx, Record(ledger.Placement, 1, 200, 0)); err != nil {
				return err
			}
			p, err := tx.SavePayment(ctx, ledger.Payment{
				FeeType:     ledger.College,
				Amount:      400,
				Mode:        ledger.Cash,
				Reference:   null.StringFrom("R-1"),
				Allocations: []ledger.Allocation{{FeeRecordID: rec.ID, Amount: 400}},
				CreatedAt:   time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			assert.NotEmpty(t, p.ID)

			staged, err := tx.Student(ctx)
			if err != nil {
				return err
			}
			assert.Equal(t, ledger.Dues{College: 600, Placement: 200}, staged.Dues)
			return nil
		})
		require.NoError(t, err)

		got := GetStudent(t, repo, s.USN)
		assert.Equal(t, ledger.Dues{College: 600, Placement: 200}, got.Dues)

		payments, err := repo.Payments(ctx, s.USN)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, int64(400), payments[0].Amount)
		require.Len(t, payments[0].Allocations, 1)
		assert.Equal(t, recID, payments[0].Allocations[0].FeeRecordID)

		err = repo.WithStudent(ctx, s.USN, func(tx ledger.Tx) error {
			p, err := tx.PaymentByReference(ctx, "R-1")
			require.NoError(t, err)
			assert.Equal(t, payments[0].ID, p.ID)
			assert.Len(t, p.Allocations, 1)

			_, err = tx.PaymentByReference(ctx, "R-2")
			assert.Equal(t, ledger.ErrPaymentNotFound, errors.Cause(err))

			_, err = tx.SavePayment(ctx, ledger.Payment{
				FeeType: ledger.College, Amount: 1, Mode: ledger.Cash, Reference: null.StringFrom("R-1"), CreatedAt: time.Now().UTC(),
			})
			assert.Equal(t, ledger.ErrConflict, errors.Cause(err))
			return errAbort
		})
		assert.Equal(t, errAbort, err)
	})

	t.Run("unit of work rolls back", func(t *testing.T) {
		repo := newRepo(t)
		s := CreateStudent(t, repo, NewStudent("1AB21CS004", "CSE", 1, ledger.Government), Record(ledger.College, 1, 1000, 0))

		err := repo.WithStudent(ctx, s.USN, func(tx ledger.Tx) error {
			if _, err := tx.CreateFeeRecord(ctx, Record(ledger.Hostel, 1, 500, 0)); err != nil {
				return err
			}
			st, err := tx.Student(ctx)
			if err != nil {
				return err
			}
			st.CurrentYear = 2
			if _, err := tx.UpdateStudent(ctx, st); err != nil {
				return err
			}
			return errAbort
		})
		assert.Equal(t, errAbort, err)

		got := GetStudent(t, repo, s.USN)
		assert.Equal(t, 1, got.CurrentYear)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, ledger.Dues{College: 1000}, got.Dues)
		assert.Len(t, FeeRecords(t, repo, s.USN), 1)

		err = repo.WithStudent(ctx, "NOPE", func(tx ledger.Tx) error { return nil })
		assert.Equal(t, ledger.ErrStudentNotFound, errors.Cause(err))
	})

	t.Run("update student", func(t *testing.T) {
		repo := newRepo(t)
		s := CreateStudent(t, repo, NewStudent("1AB21CS005", "CSE", 4, ledger.Government))
		other := CreateStudent(t, repo, NewStudent("1AB21CS006", "CSE", 4, ledger.Government), Record(ledger.College, 4, 10, 0))
		otherRec := FeeRecords(t, repo, other.USN)[0]

		err := repo.WithStudent(ctx, s.USN, func(tx ledger.Tx) error {
			st, err := tx.Student(ctx)
			if err != nil {
				return err
			}
			stale := st

			st.Status = ledger.Graduated
			st.GraduatedAt = null.TimeFrom(time.Now().UTC())
			st.HostelOpted = true
			updated, err := tx.UpdateStudent(ctx, st)
			if err != nil {
				return err
			}
			assert.Equal(t, int64(2), updated.Version)

			_, err = tx.UpdateStudent(ctx, stale)
			assert.Equal(t, ledger.ErrConflict, errors.Cause(err))

			otherRec.AmountPaid = 10
			_, err = tx.UpdateFeeRecord(ctx, otherRec)
			assert.Equal(t, ledger.ErrFeeRecordNotFound, errors.Cause(err))
			return nil
		})
		require.NoError(t, err)

		got := GetStudent(t, repo, s.USN)
		assert.Equal(t, ledger.Graduated, got.Status)
		assert.True(t, got.GraduatedAt.Valid)
		assert.True(t, got.HostelOpted)
		assert.Equal(t, int64(10), GetStudent(t, repo, other.USN).Dues.College)
	})

	t.Run("units of work on a student are serialized", func(t *testing.T) {
		repo := newRepo(t)
		s := CreateStudent(t, repo, NewStudent("1AB21CS007", "CSE", 1, ledger.Government), Record(ledger.College, 1, 200, 0))

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.WithStudent(ctx, s.USN, func(tx ledger.Tx) error {
					records, err := tx.FeeRecords(ctx)
					if err != nil {
						return err
					}
					rec := records[0]
					if err := rec.Apply(10); err != nil {
						return err
					}
					_, err = tx.UpdateFeeRecord(ctx, rec)
					return err
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		records := FeeRecords(t, repo, s.USN)
		assert.Equal(t, int64(200), records[0].AmountPaid)
		assert.Equal(t, ledger.Paid, records[0].Status)
		assert.Zero(t, GetStudent(t, repo, s.USN).Dues.College)
	})
}
