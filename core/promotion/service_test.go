package promotion

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
	"github.com/ramesh-perabattula/EduPay/storage/database/inmem"
	"github.com/ramesh-perabattula/EduPay/testutil"
)

func setup(t *testing.T) (*Service, ledger.Repository) {
	repo := inmemdb.NewLedgerRepository(inmemdb.Open())
	conf := &core.Config{Ledger: core.LedgerConfig{CohortWorkers: 3}}
	return NewService(repo, conf, testutil.NewLogger(t)), repo
}

func causeOf(err error) error {
	if verr, ok := errors.Cause(err).(*core.ValidationError); ok {
		return verr.Err
	}
	return errors.Cause(err)
}

func TestService_ListCohort(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	testutil.CreateStudent(t, repo, testutil.NewStudent("B", "CSE", 2, ledger.Government), testutil.Record(ledger.College, 2, 100, 0))
	testutil.CreateStudent(t, repo, testutil.NewStudent("A", "ECE", 2, ledger.Management))
	testutil.CreateStudent(t, repo, testutil.NewStudent("C", "ECE", 3, ledger.Management))

	cohort, err := svc.ListCohort(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cohort, 2)
	assert.Equal(t, "B", cohort[0].USN)
	assert.Equal(t, int64(100), cohort[0].Dues.College)
	assert.Equal(t, "A", cohort[1].USN)

	for _, year := range []int{0, 5} {
		_, err = svc.ListCohort(ctx, year)
		assert.True(t, core.IsValidationError(err))
	}
}

func TestService_PromoteCohort(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cohort", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.PromoteCohort(ctx, 1)
		assert.Equal(t, ErrEmptyCohort, causeOf(err))
	})

	t.Run("no eligible students", func(t *testing.T) {
		svc, repo := setup(t)
		testutil.CreateStudent(t, repo, testutil.NewStudent("A", "CSE", 1, ledger.Government), testutil.Record(ledger.College, 1, 100, 0))
		_, err := svc.PromoteCohort(ctx, 1)
		assert.Equal(t, ErrNoEligibleStudents, causeOf(err))
		assert.Equal(t, 1, testutil.GetStudent(t, repo, "A").CurrentYear)
	})

	t.Run("mixed cohort", func(t *testing.T) {
		svc, repo := setup(t)
		for i := 1; i <= 6; i++ {
			testutil.CreateStudent(t, repo, testutil.NewStudent(fmt.Sprintf("P%d", i), "CSE", 2, ledger.Government),
				testutil.Record(ledger.College, 2, 100, 100))
		}
		testutil.CreateStudent(t, repo, testutil.NewStudent("OWES", "CSE", 2, ledger.Government),
			testutil.Record(ledger.College, 2, 100, 100),
			testutil.Record(ledger.Hostel, 2, 300, 0),
			testutil.Record(ledger.Placement, 2, 50, 0),
		)

		res, err := svc.PromoteCohort(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 7, res.CohortSize)
		assert.Equal(t, 6, res.Promoted)
		assert.Zero(t, res.Graduated)
		assert.Equal(t, []Skip{{USN: "OWES", Reason: ReasonDues, TotalDue: 350}}, res.Skipped)
		assert.Empty(t, res.Failed)
		assert.Equal(t, res.CohortSize-res.Promoted, len(res.Skipped))

		assert.Equal(t, 3, testutil.GetStudent(t, repo, "P1").CurrentYear)
		assert.Equal(t, 2, testutil.GetStudent(t, repo, "OWES").CurrentYear)

		cohort, err := svc.ListCohort(ctx, 2)
		require.NoError(t, err)
		require.Len(t, cohort, 1)

		// promoted students are not promoted twice
		_, err = svc.PromoteCohort(ctx, 2)
		assert.Equal(t, ErrNoEligibleStudents, causeOf(err))
	})

	t.Run("final year graduates", func(t *testing.T) {
		svc, repo := setup(t)
		testutil.CreateStudent(t, repo, testutil.NewStudent("F1", "ME", 4, ledger.Government))
		testutil.CreateStudent(t, repo, testutil.NewStudent("F2", "ME", 4, ledger.Management), testutil.Record(ledger.College, 4, 10, 0))

		res, err := svc.PromoteCohort(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Graduated)
		assert.Zero(t, res.Promoted)
		assert.Len(t, res.Skipped, 1)

		grad := testutil.GetStudent(t, repo, "F1")
		assert.Equal(t, ledger.Graduated, grad.Status)
		assert.Equal(t, 4, grad.CurrentYear)
		assert.True(t, grad.GraduatedAt.Valid)

		cohort, err := svc.ListCohort(ctx, 4)
		require.NoError(t, err)
		require.Len(t, cohort, 1)
		assert.Equal(t, "F2", cohort[0].USN)
	})
}

func TestService_promote_recheck(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	testutil.CreateStudent(t, repo, testutil.NewStudent("A", "CSE", 1, ledger.Government), testutil.Record(ledger.College, 1, 100, 0))
	testutil.CreateStudent(t, repo, testutil.NewStudent("B", "CSE", 2, ledger.Government))

	o := svc.promote(ctx, "A", 1)
	require.NotNil(t, o.skip)
	assert.Equal(t, ReasonDues, o.skip.Reason)
	assert.Equal(t, int64(100), o.skip.TotalDue)

	o = svc.promote(ctx, "B", 1)
	require.NotNil(t, o.skip)
	assert.Equal(t, ReasonLeftCohort, o.skip.Reason)

	o = svc.promote(ctx, "NOPE", 1)
	assert.Equal(t, ledger.ErrStudentNotFound, errors.Cause(o.err))
}
