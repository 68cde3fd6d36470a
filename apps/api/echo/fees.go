package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/assignment"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

type feeApi struct {
	svc *assignment.Service
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *assignment.Service) {
	api := feeApi{svc: svc}

	fg := g.Group("/fees", jwt)
	fg.POST("/config", api.configure)
}

// Handlers

func (api *feeApi) configure(ctx echo.Context) error {
	var data FeeConfig
	if err := bindAndValidate(ctx, &data, "FeeConfig"); err != nil {
		return err
	}
	if err := checkCapabilities(ctx, assignCap(data.FeeType)); err != nil {
		return err
	}

	af := assignment.AssignFee{
		FeeType:  data.FeeType,
		Amount:   data.Amount,
		Semester: data.Semester,
	}
	switch data.Quota {
	case ledger.Government:
		if data.Year == 0 {
			return core.NewFieldError("year", "year is required for government quota")
		}
		af.Selector.Year = data.Year
	case ledger.Management:
		if data.USN == "" {
			return core.NewFieldError("usn", "usn is required for management quota")
		}
		af.Selector.USN = data.USN
	}

	res, err := api.svc.Assign(ctx.Request().Context(), af)
	if err != nil {
		return errors.Wrap(err, "assigning fee")
	}
	return ctx.JSON(http.StatusOK, res)
}
