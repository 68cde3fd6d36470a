package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ramesh-perabattula/EduPay/core/analytics"
)

type analyticsApi struct {
	svc *analytics.Service
}

func registerAnalyticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *analytics.Service) {
	api := analyticsApi{svc: svc}

	ag := g.Group("/analytics", jwt, capabilityMiddleware(CapAnalytics))
	ag.GET("", api.report)
	ag.GET("/export", api.export)
}

func (api *analyticsApi) analyze(ctx echo.Context) (analytics.Report, error) {
	f, err := analytics.ParseFilter(ctx.QueryParam("year"), ctx.QueryParam("department"))
	if err != nil {
		return analytics.Report{}, err
	}
	rep, err := api.svc.Analyze(ctx.Request().Context(), f)
	if err != nil {
		return analytics.Report{}, errors.Wrap(err, "analyzing dues")
	}
	return rep, nil
}

// Handlers

func (api *analyticsApi) report(ctx echo.Context) error {
	rep, err := api.analyze(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *analyticsApi) export(ctx echo.Context) error {
	rep, err := api.analyze(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = analytics.Export(rep, &buf); err != nil {
		return errors.Wrap(err, "exporting report")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="dues-report.xlsx"`)
	return ctx.Blob(http.StatusOK, analytics.ContentType, buf.Bytes())
}
