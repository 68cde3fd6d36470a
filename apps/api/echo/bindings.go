package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ramesh-perabattula/EduPay/core/ledger"
	"github.com/ramesh-perabattula/EduPay/core/payment"
)

// appValidator validates request bodies with the ledger validator.
type appValidator struct{}

func (appValidator) Validate(i interface{}) error {
	return ledger.Validate(i)
}

type (
	PaymentRequest struct {
		FeeRecordID string             `json:"fee_record_id" validate:"omitempty,uuid"`
		FeeType     ledger.FeeType     `json:"fee_type" validate:"omitempty,feetype"`
		Amount      int64              `json:"amount" validate:"omitempty,gt=0"`
		Mode        ledger.PaymentMode `json:"mode" validate:"required,paymode"`
		Reference   string             `json:"reference" validate:"max=100"`
		// Settle pays the whole outstanding due of FeeType; Amount is ignored.
		Settle bool `json:"settle"`
	}

	// FeesUpdate either overrides stream dues or records a payment.
	FeesUpdate struct {
		payment.DueOverrides
		Payment *PaymentRequest `json:"payment"`
	}

	// FeeConfig assigns a fee to a government quota cohort (year) or a management quota student (usn).
	FeeConfig struct {
		Quota    ledger.Quota   `json:"quota" validate:"required,quota"`
		FeeType  ledger.FeeType `json:"fee_type" validate:"required,feetype"`
		Year     int            `json:"year" validate:"omitempty,min=1,max=4"`
		USN      string         `json:"usn" validate:"omitempty,usn"`
		Amount   int64          `json:"amount" validate:"gt=0"`
		Semester null.Int       `json:"semester"`
	}

	PromoteRequest struct {
		CurrentYear int `json:"current_year" validate:"required,min=1,max=4"`
	}
)

func bindAndValidate(ctx echo.Context, data interface{}, name string) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding to "+name)
	}
	return ctx.Validate(data)
}
