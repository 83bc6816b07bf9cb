// Package schema holds the per-step validation rules. The same rules back
// the interactive path (errors for display) and the programmatic path
// (valid or not), so there is one definition of a valid section.
package schema

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"social-support-wizard/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxAgeYears = 120

var (
	phonePattern       = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	integerPattern     = regexp.MustCompile(`^-?\d+$`)
	leadingZeroPattern = regexp.MustCompile(`^-?0\d`)
)

// Rules is the validator shared by all step schemas. The clock decides what
// "today" is for date-of-birth checks.
type Rules struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewRules builds the validator. A nil clock means time.Now.
func NewRules(now func() time.Time) *Rules {
	if now == nil {
		now = time.Now
	}
	r := &Rules{now: now}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	must("phone_number", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	must("calendar_date", func(fl validator.FieldLevel) bool {
		_, err := models.ParseDate(fl.Field().String())
		return err == nil
	})
	must("dob_past", r.notInFuture)
	must("dob_max_age", r.notTooOld)
	must("int_string", func(fl validator.FieldLevel) bool {
		v := strings.TrimSpace(fl.Field().String())
		if !integerPattern.MatchString(v) {
			return false
		}
		_, err := strconv.Atoi(v)
		return err == nil
	})
	must("decimal_string", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil
	})
	must("non_negative", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err != nil || !d.IsNegative()
	})
	must("no_leading_zeros", func(fl validator.FieldLevel) bool {
		return !leadingZeroPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})

	r.validate = v
	return r
}

func (r *Rules) today() models.Date {
	return models.DateOf(r.now())
}

func (r *Rules) notInFuture(fl validator.FieldLevel) bool {
	dob, err := models.ParseDate(fl.Field().String())
	if err != nil || dob.IsZero() {
		return true
	}
	return !dob.After(r.today())
}

func (r *Rules) notTooOld(fl validator.FieldLevel) bool {
	dob, err := models.ParseDate(fl.Field().String())
	if err != nil || dob.IsZero() {
		return true
	}
	return !dob.Before(r.today().AddYears(-maxAgeYears))
}
