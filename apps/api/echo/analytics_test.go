package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	. "github.com/ramesh-perabattula/EduPay/apps/api/echo"
	"github.com/ramesh-perabattula/EduPay/core/analytics"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
	"github.com/ramesh-perabattula/EduPay/testutil"
)

func Test_analyticsApi(t *testing.T) {
	app := setup(t)

	testutil.CreateStudent(t, app.repo, testutil.NewStudent("1CS21001", "CSE", 2, ledger.Government),
		testutil.Record(ledger.College, 2, 50000, 50000),
	)
	testutil.CreateStudent(t, app.repo, testutil.NewStudent("1EC21001", "ECE", 2, ledger.Government),
		testutil.Record(ledger.College, 2, 50000, 20000),
	)
	graduated := testutil.NewStudent("1EC18001", "ECE", 4, ledger.Government)
	graduated.Status = ledger.Graduated
	testutil.CreateStudent(t, app.repo, graduated, testutil.Record(ledger.College, 4, 1000, 0))

	principal := getToken(t, app.conf, RolePrincipal)

	t.Run("by department", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/analytics?year=all&department=all", principal)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rep analytics.Report
		unmarshal(t, rec, &rep)
		assert.Equal(t, analytics.ByDepartment, rep.GroupBy)
		assert.Len(t, rep.Groups, len(ledger.Departments))
		assert.Equal(t, 2, rep.Totals.TotalStudents)
		assert.Equal(t, 1, rep.Totals.FullyPaid)
		assert.Equal(t, 1, rep.Totals.Pending)
		assert.Equal(t, int64(30000), rep.Totals.TotalOverallDue)
	})

	t.Run("by year", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/analytics?department=ece", principal)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rep analytics.Report
		unmarshal(t, rec, &rep)
		assert.Equal(t, analytics.ByYear, rep.GroupBy)
		require.Len(t, rep.Groups, 4)
		assert.Equal(t, analytics.Group{Label: "Year 2", Students: 1, Pending: 1, TotalDue: 30000}, rep.Groups[1])
	})

	t.Run("export", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/analytics/export?year=2", principal)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "dues-report.xlsx")

		f, err := excelize.OpenReader(rec.Body)
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		rows, err := f.GetRows(analytics.SummarySheet)
		require.NoError(t, err)
		assert.Len(t, rows, len(ledger.Departments)+2)
	})

	tests := []httpTest{
		{
			name:     "invalid year",
			method:   http.MethodGet,
			path:     "/v1/analytics?year=9",
			token:    principal,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"year": "year must be all or between 1 and 4"}),
		},
		{
			name:     "registrar",
			method:   http.MethodGet,
			path:     "/v1/analytics",
			token:    getToken(t, app.conf, RoleRegistrar),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	}
	runHTTPTests(t, app, tests)
}
