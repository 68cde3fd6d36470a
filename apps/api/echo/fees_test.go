package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	. "github.com/ramesh-perabattula/EduPay/apps/api/echo"
	"github.com/ramesh-perabattula/EduPay/core/assignment"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
	"github.com/ramesh-perabattula/EduPay/testutil"
)

func Test_feeApi_configure(t *testing.T) {
	app := setup(t)

	testutil.CreateStudent(t, app.repo, testutil.NewStudent("1CS22001", "CSE", 2, ledger.Government))
	testutil.CreateStudent(t, app.repo, testutil.NewStudent("1CS22002", "CSE", 2, ledger.Government))
	testutil.CreateStudent(t, app.repo, testutil.NewStudent("1CS22003", "CSE", 2, ledger.Management))

	admin := getToken(t, app.conf, RoleAdmin)
	path := "/v1/fees/config"

	t.Run("government cohort", func(t *testing.T) {
		body := marchallObj(t, FeeConfig{
			Quota:    ledger.Government,
			FeeType:  ledger.College,
			Year:     2,
			Amount:   45000,
			Semester: null.IntFrom(3),
		})
		req, rec := newAuthRequest(http.MethodPost, path, admin, body)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res assignment.Result
		unmarshal(t, rec, &res)
		require.NotNil(t, res.Cohort)
		assert.Equal(t, 3, res.Cohort.CohortSize)
		assert.Equal(t, 2, res.Cohort.Assigned)
		require.Len(t, res.Cohort.Skipped, 1)
		assert.Equal(t, assignment.Skip{USN: "1CS22003", Reason: assignment.ReasonQuota}, res.Cohort.Skipped[0])

		assert.Equal(t, int64(45000), testutil.GetStudent(t, app.repo, "1CS22001").Dues.College)
		assert.Zero(t, testutil.GetStudent(t, app.repo, "1CS22003").Dues.College)
	})

	t.Run("management student", func(t *testing.T) {
		body := marchallObj(t, FeeConfig{Quota: ledger.Management, FeeType: ledger.College, USN: "1cs22003", Amount: 90000})
		req, rec := newAuthRequest(http.MethodPost, path, admin, body)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res assignment.Result
		unmarshal(t, rec, &res)
		require.NotNil(t, res.Student)
		require.NotNil(t, res.Record)
		assert.Equal(t, int64(90000), res.Student.Dues.College)
		assert.Equal(t, ledger.NoteIndividual, res.Record.Note)
	})

	t.Run("placement officer assigns placement", func(t *testing.T) {
		body := marchallObj(t, FeeConfig{Quota: ledger.Government, FeeType: ledger.Placement, Year: 2, Amount: 5000})
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, app.conf, RolePlacementOfficer), body)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res assignment.Result
		unmarshal(t, rec, &res)
		require.NotNil(t, res.Cohort)
		assert.Equal(t, 3, res.Cohort.Assigned)
	})

	tests := []httpTest{
		{
			name:     "government quota requires a year",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, FeeConfig{Quota: ledger.Government, FeeType: ledger.College, USN: "1CS22001", Amount: 100}),
			token:    admin,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"year": "year is required for government quota"}),
		},
		{
			name:     "management quota requires a usn",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, FeeConfig{Quota: ledger.Management, FeeType: ledger.College, Year: 2, Amount: 100}),
			token:    admin,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"usn": "usn is required for management quota"}),
		},
		{
			name:     "placement officer cannot assign college",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, FeeConfig{Quota: ledger.Government, FeeType: ledger.College, Year: 2, Amount: 100}),
			token:    getToken(t, app.conf, RolePlacementOfficer),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "government student assigned individually",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, FeeConfig{Quota: ledger.Management, FeeType: ledger.College, USN: "1CS22001", Amount: 100}),
			token:    admin,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown student",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, FeeConfig{Quota: ledger.Management, FeeType: ledger.Placement, USN: "1CS99999", Amount: 100}),
			token:    admin,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: ledger.ErrStudentNotFound.Error()}),
		},
		{
			name:     "invalid amount",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"quota":"government","fee_type":"college","year":2,"amount":0}`),
			token:    admin,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no token",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
	}
	runHTTPTests(t, app, tests)
}
