package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
	"github.com/ramesh-perabattula/EduPay/core/payment"
	"github.com/ramesh-perabattula/EduPay/core/promotion"
	"github.com/ramesh-perabattula/EduPay/core/student"
)

type studentApi struct {
	svc      *student.Service
	payments *payment.Service
	promoter *promotion.Service
}

func registerStudentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *student.Service,
	payments *payment.Service,
	promoter *promotion.Service,
) {
	api := studentApi{svc: svc, payments: payments, promoter: promoter}

	sg := g.Group("/students", jwt)
	sg.POST("", api.register, capabilityMiddleware(CapRegister))
	sg.GET("/search", api.search, capabilityMiddleware(CapViewStudents))
	sg.GET("/year/:year", api.listCohort, capabilityMiddleware(CapViewStudents))
	sg.POST("/promote", api.promote, capabilityMiddleware(CapPromote))

	// detail endpoints
	dg := sg.Group("/:usn")
	dg.PUT("/fees", api.updateFees) // stream capabilities are checked per request
	dg.POST("/payments", api.pay)
	dg.GET("/payments", api.queryPayments, capabilityMiddleware(CapViewStudents))
	dg.PUT("/facilities", api.updateFacilities, capabilityMiddleware(CapFacilities))
}

// Handlers

func (api *studentApi) register(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	s, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) search(ctx echo.Context) error {
	usn := core.CleanUSN(ctx.QueryParam("query"))
	if usn == "" {
		return core.NewFieldError("query", "query is required")
	}
	l, err := api.svc.Ledger(ctx.Request().Context(), usn)
	if err != nil {
		return errors.Wrap(err, "getting ledger")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *studentApi) listCohort(ctx echo.Context) error {
	year, err := strconv.Atoi(ctx.Param("year"))
	if err != nil {
		return core.NewFieldError("year", "year must be a number")
	}
	students, err := api.promoter.ListCohort(ctx.Request().Context(), year)
	if err != nil {
		return errors.Wrap(err, "listing cohort")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) promote(ctx echo.Context) error {
	var data PromoteRequest
	if err := bindAndValidate(ctx, &data, "PromoteRequest"); err != nil {
		return err
	}
	res, err := api.promoter.PromoteCohort(ctx.Request().Context(), data.CurrentYear)
	if err != nil {
		return errors.Wrap(err, "promoting cohort")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) updateFees(ctx echo.Context) error {
	var data FeesUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeesUpdate")
	}
	if data.Payment != nil {
		if err := ctx.Validate(data.Payment); err != nil {
			return err
		}
		return api.recordPayment(ctx, *data.Payment)
	}

	caps := make([]string, 0, len(ledger.FeeTypes))
	for _, ft := range data.Streams() {
		caps = append(caps, payCap(ft))
	}
	if err := checkCapabilities(ctx, caps...); err != nil {
		return err
	}
	s, err := api.payments.OverrideDue(ctx.Request().Context(), ctx.Param("usn"), data.DueOverrides)
	if err != nil {
		return errors.Wrap(err, "overriding dues")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) pay(ctx echo.Context) error {
	var data PaymentRequest
	if err := bindAndValidate(ctx, &data, "PaymentRequest"); err != nil {
		return err
	}
	return api.recordPayment(ctx, data)
}

func (api *studentApi) recordPayment(ctx echo.Context, data PaymentRequest) error {
	rctx := ctx.Request().Context()
	usn := ctx.Param("usn")

	// the stream of a targeted record decides the capability
	ft := data.FeeType
	if data.FeeRecordID != "" {
		if err := checkAnyPayCapability(ctx); err != nil {
			return err
		}
		l, err := api.svc.Ledger(rctx, usn)
		if err != nil {
			return errors.Wrap(err, "getting ledger")
		}
		ft = ""
		for _, rec := range l.FeeRecords {
			if rec.ID == data.FeeRecordID {
				ft = rec.FeeType
				break
			}
		}
		if ft == "" {
			return ledger.ErrFeeRecordNotFound
		}
	}
	if ft == "" {
		return core.NewFieldError("fee_type", "fee_type or fee_record_id is required")
	}
	if err := checkCapabilities(ctx, payCap(ft)); err != nil {
		return err
	}

	var rcpt payment.Receipt
	var err error
	if data.Settle {
		if data.FeeRecordID != "" {
			return core.NewFieldError("settle", "settling applies to a whole stream, not to a fee record")
		}
		rcpt, err = api.payments.SettleStream(rctx, usn, ft, data.Mode, data.Reference)
	} else {
		rcpt, err = api.payments.RecordPayment(rctx, payment.NewPayment{
			USN:         usn,
			FeeRecordID: data.FeeRecordID,
			FeeType:     data.FeeType,
			Amount:      data.Amount,
			Mode:        data.Mode,
			Reference:   data.Reference,
		})
	}
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}

	code := http.StatusCreated
	if rcpt.Duplicate {
		code = http.StatusOK
	}
	return ctx.JSON(code, rcpt)
}

func (api *studentApi) queryPayments(ctx echo.Context) error {
	payments, err := api.payments.QueryPayments(ctx.Request().Context(), ctx.Param("usn"))
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *studentApi) updateFacilities(ctx echo.Context) error {
	var data student.Facilities
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Facilities")
	}
	s, err := api.svc.UpdateFacilities(ctx.Request().Context(), ctx.Param("usn"), data)
	if err != nil {
		return errors.Wrap(err, "updating facilities")
	}
	return ctx.JSON(http.StatusOK, s)
}
