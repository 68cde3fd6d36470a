package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
	"github.com/ramesh-perabattula/EduPay/testutil"
)

func Test_newAppHTTPErrorHandler(t *testing.T) {
	handle := newAppHTTPErrorHandler(testutil.NewLogger(t))
	e := echo.New()

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "student not found", err: errors.Wrap(ledger.ErrStudentNotFound, "loading student"), wantCode: http.StatusNotFound, wantBody: ledger.ErrStudentNotFound.Error()},
		{name: "fee record not found", err: ledger.ErrFeeRecordNotFound, wantCode: http.StatusNotFound},
		{name: "conflict", err: errors.Wrap(ledger.ErrConflict, "saving"), wantCode: http.StatusConflict},
		{name: "validation", err: core.NewFieldError("amount", "amount must be greater than zero"), wantCode: http.StatusBadRequest, wantBody: "amount must be greater than zero"},
		{name: "forbidden", err: errHttpForbidden, wantCode: http.StatusForbidden},
		{name: "anything else", err: errors.New("connection reset"), wantCode: http.StatusInternalServerError, wantBody: http.StatusText(http.StatusInternalServerError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			handle(tt.err, ctx)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}
