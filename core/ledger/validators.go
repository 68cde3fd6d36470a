package ledger

import (
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ramesh-perabattula/EduPay/core"
)

var (
	validate      *validator.Validate
	translator    ut.Translator
	validatorInit sync.Once
)

// RegisterValidators registers the `department`, `feetype`, `quota`, `entry` and `paymode` tags.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, "department", Departments...)
	core.RegisterOneOf(validate, translator, "feetype", strs(FeeTypes)...)
	core.RegisterOneOf(validate, translator, "quota", strs(Quotas)...)
	core.RegisterOneOf(validate, translator, "entry", strs(Entries)...)
	core.RegisterOneOf(validate, translator, "paymode", strs(PaymentModes)...)
}

// Validator returns the shared validator with the core and ledger tags registered.
func Validator() (*validator.Validate, ut.Translator) {
	validatorInit.Do(func() {
		validate, translator = core.NewValidator()
		RegisterValidators(validate, translator)
	})
	return validate, translator
}

// Validate checks the `validate` tags of v, returning a *core.ValidationError with translated messages.
func Validate(v interface{}) error {
	validate, translator := Validator()
	if err := validate.Struct(v); err != nil {
		return core.TranslateValidationErrors(err, translator)
	}
	return nil
}

func strs[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}
