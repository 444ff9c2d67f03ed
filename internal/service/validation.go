package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

var (
	validate = newValidator()
	hundred  = decimal.NewFromInt(100)
	digitsRe = regexp.MustCompile(`^[0-9]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	// numeric also accepts signs and decimal points.
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsRe.MatchString(fl.Field().String())
	})
	return v
}

// fieldErrors runs the struct tags of req and returns one entry per failed
// field, named by its JSON path.
func fieldErrors(req any) []store.FieldError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []store.FieldError{{Field: "request", Message: err.Error()}}
	}

	out := make([]store.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, store.FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "digits":
		return "must contain only digits"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

func invalid(fields []store.FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &store.ValidationError{Fields: fields}
}

// normalizeSale validates a checkout request before any lookup and fills its
// defaults. Card details are dropped for cash payments.
func normalizeSale(req *domain.CreateSaleRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	req.CardLastDigits = strings.TrimSpace(req.CardLastDigits)
	req.CouponCode = strings.TrimSpace(req.CouponCode)
	for i := range req.Items {
		req.Items[i].ProductID = strings.TrimSpace(req.Items[i].ProductID)
	}

	fields := fieldErrors(req)
	for i, line := range req.Items {
		fields = append(fields, checkPrice(fmt.Sprintf("items[%d].discount_amount", i), line.DiscountAmount)...)
	}

	if req.Installments == 0 {
		req.Installments = 1
	}
	if req.Installments > 1 && req.PaymentMethod != domain.PaymentCreditCard {
		fields = append(fields, store.FieldError{Field: "installments", Message: "only credit_card payments can be split into installments"})
	}

	switch req.PaymentMethod {
	case domain.PaymentCash:
		req.CardLastDigits = ""
	case domain.PaymentCreditCard, domain.PaymentDebitCard:
		if req.CardLastDigits == "" {
			fields = append(fields, store.FieldError{Field: "card_last_digits", Message: "is required for card payments"})
		}
	}

	return invalid(fields)
}

func checkDiscountPercentage(field string, pct *decimal.Decimal) []store.FieldError {
	if pct == nil {
		return nil
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return []store.FieldError{{Field: field, Message: "must be between 0 and 100"}}
	}
	return nil
}

func checkPrice(field string, price decimal.Decimal) []store.FieldError {
	if price.IsNegative() {
		return []store.FieldError{{Field: field, Message: "must not be negative"}}
	}
	if !price.Equal(price.Round(2)) {
		return []store.FieldError{{Field: field, Message: "must have at most 2 decimal places"}}
	}
	return nil
}
