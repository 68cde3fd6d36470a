package analytics

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
	"github.com/ramesh-perabattula/EduPay/storage/database/inmem"
	"github.com/ramesh-perabattula/EduPay/testutil"
)

func setup(t *testing.T) *Service {
	repo := inmemdb.NewLedgerRepository(inmemdb.Open())
	testutil.CreateStudent(t, repo, testutil.NewStudent("CSE1", "CSE", 1, ledger.Government), testutil.Record(ledger.College, 1, 1000, 0))
	testutil.CreateStudent(t, repo, testutil.NewStudent("CSE2", "CSE", 1, ledger.Government))
	testutil.CreateStudent(t, repo, testutil.NewStudent("CSE3", "CSE", 3, ledger.Management),
		testutil.Record(ledger.Hostel, 3, 500, 100),
		testutil.Record(ledger.Transport, 3, 200, 0),
	)
	testutil.CreateStudent(t, repo, testutil.NewStudent("ECE1", "ECE", 1, ledger.Government), testutil.Record(ledger.Placement, 1, 300, 0))
	testutil.CreateStudent(t, repo, testutil.NewStudent("MBA1", "MBA", 2, ledger.Government))
	grad := testutil.NewStudent("GRAD", "CSE", 4, ledger.Government)
	grad.Status = ledger.Graduated
	testutil.CreateStudent(t, repo, grad, testutil.Record(ledger.College, 4, 999, 0))
	return NewService(repo)
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name       string
		year, dept string
		want       Filter
		wantErr    bool
	}{
		{name: "defaults", want: Filter{}},
		{name: "all", year: "all", dept: "ALL", want: Filter{}},
		{name: "fixed", year: "2", dept: "cse-aiml", want: Filter{Year: 2, Department: "CSE-AIML"}},
		{name: "bad year", year: "five", wantErr: true},
		{name: "year out of range", year: "0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilter(tt.year, tt.dept)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Analyze(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	t.Run("by department", func(t *testing.T) {
		rep, err := svc.Analyze(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, ByDepartment, rep.GroupBy)

		labels := make([]string, 0, len(rep.Groups))
		for _, g := range rep.Groups {
			labels = append(labels, g.Label)
		}
		assert.Equal(t, append(append([]string{}, ledger.Departments...), "MBA"), labels)

		assert.Equal(t, Group{Label: "CSE", Students: 3, FullyPaid: 1, Pending: 2, TotalDue: 1600}, rep.Groups[0])
		assert.Equal(t, Group{Label: "CSE-CAD"}, rep.Groups[1])
		assert.Equal(t, Group{Label: "ECE", Students: 1, Pending: 1, TotalDue: 300}, rep.Groups[4])
		assert.Equal(t, Group{Label: "MBA", Students: 1, FullyPaid: 1}, rep.Groups[8])

		assert.Equal(t, Totals{
			Dues:            ledger.Dues{College: 1000, Transport: 200, Hostel: 400, Placement: 300},
			TotalOverallDue: 1900,
			TotalStudents:   5,
			FullyPaid:       2,
			Pending:         3,
		}, rep.Totals)
	})

	t.Run("by year", func(t *testing.T) {
		rep, err := svc.Analyze(ctx, Filter{Department: "CSE"})
		require.NoError(t, err)
		assert.Equal(t, ByYear, rep.GroupBy)
		assert.Equal(t, []Group{
			{Label: "Year 1", Students: 2, FullyPaid: 1, Pending: 1, TotalDue: 1000},
			{Label: "Year 2"},
			{Label: "Year 3", Students: 1, Pending: 1, TotalDue: 600},
			{Label: "Year 4"},
		}, rep.Groups)
		assert.Equal(t, 3, rep.Totals.TotalStudents)
		assert.Equal(t, int64(1600), rep.Totals.TotalOverallDue)
	})

	t.Run("single group", func(t *testing.T) {
		rep, err := svc.Analyze(ctx, Filter{Year: 1, Department: "CSE"})
		require.NoError(t, err)
		assert.Equal(t, Single, rep.GroupBy)
		assert.Equal(t, []Group{{Label: "CSE", Students: 2, FullyPaid: 1, Pending: 1, TotalDue: 1000}}, rep.Groups)
	})

	t.Run("empty selection", func(t *testing.T) {
		rep, err := svc.Analyze(ctx, Filter{Year: 2, Department: "EEE"})
		require.NoError(t, err)
		assert.Equal(t, []Group{{Label: "EEE"}}, rep.Groups)
		assert.Zero(t, rep.Totals.TotalStudents)
	})

	t.Run("year of all departments", func(t *testing.T) {
		rep, err := svc.Analyze(ctx, Filter{Year: 1})
		require.NoError(t, err)
		assert.Len(t, rep.Groups, len(ledger.Departments))
		assert.Equal(t, 3, rep.Totals.TotalStudents)
	})

	t.Run("reads are repeatable", func(t *testing.T) {
		a, err := svc.Analyze(ctx, Filter{})
		require.NoError(t, err)
		b, err := svc.Analyze(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("invalid year", func(t *testing.T) {
		_, err := svc.Analyze(ctx, Filter{Year: 7})
		assert.True(t, core.IsValidationError(err))
	})
}

func TestExport(t *testing.T) {
	svc := setup(t)
	rep, err := svc.Analyze(context.Background(), Filter{Department: "CSE"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(rep, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SummarySheet, DuesSheet}, f.GetSheetList())

	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"Year", "Students", "Fully paid", "Pending", "Total due"}, rows[0])
	assert.Equal(t, []string{"Year 1", "2", "1", "1", "1000"}, rows[1])
	assert.Equal(t, []string{"Total", "3", "1", "2", "1600"}, rows[5])

	rows, err = f.GetRows(DuesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"hostel", "400"}, rows[3])
	assert.Equal(t, []string{"Total", "1600"}, rows[5])
}
