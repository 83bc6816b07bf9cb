package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Errors maps a form field (its JSON name) to a localized message.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	return fmt.Sprintf("invalid fields: %s", strings.Join(fields, ", "))
}

// Schema validates one step's form F and converts it into section S.
type Schema[F any, S any] struct {
	rules   *Rules
	t       i18n.Localizer
	convert func(F) (S, error)
	form    func(S) F
}

// Validate checks every field and collects every failure. On success it
// returns the converted section and nil.
func (s *Schema[F, S]) Validate(form F) (S, Errors) {
	var zero S
	if err := s.rules.validate.Struct(form); err != nil {
		return zero, s.translate(err)
	}
	section, err := s.convert(form)
	if err != nil {
		var fe *conversionError
		if errors.As(err, &fe) {
			return zero, Errors{fe.field: s.t.T(MessageKey(fe.field, fe.tag))}
		}
		return zero, Errors{"": s.t.T("socialSupportFormWizard.validationError")}
	}
	return section, nil
}

// IsValid runs the same rules and reduces the outcome to a boolean. It
// never panics.
func (s *Schema[F, S]) IsValid(form F) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_, errs := s.Validate(form)
	return errs == nil
}

// IsValidSection checks an already committed section.
func (s *Schema[F, S]) IsValidSection(section S) bool {
	return s.IsValid(s.form(section))
}

func (s *Schema[F, S]) translate(err error) Errors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{"": s.t.T("socialSupportFormWizard.validationError")}
	}

	out := make(Errors, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = s.t.T(MessageKey(field, fe.ActualTag()))
	}
	return out
}

// conversionError names the form field a value could not be converted for.
type conversionError struct {
	field string
	tag   string
	err   error
}

func (e *conversionError) Error() string { return fmt.Sprintf("%s: %v", e.field, e.err) }

func (e *conversionError) Unwrap() error { return e.err }

// MessageKey is the catalog key reported when field fails tag.
func MessageKey(field, tag string) string {
	var suffix string
	switch tag {
	case "required", "notblank":
		suffix = "Required"
	case "min":
		suffix = "MinLength"
	case "max":
		suffix = "MaxLength"
	case "dob_past":
		suffix = "Past"
	case "dob_max_age":
		suffix = "NotTooOld"
	case "non_negative":
		suffix = "Min"
	case "no_leading_zeros":
		suffix = "NoLeadingZeros"
	default:
		suffix = "Invalid"
	}
	return "validation." + field + suffix
}

type (
	PersonalInfoSchema          = Schema[models.PersonalInfoForm, models.PersonalInfo]
	FamilyFinancialInfoSchema   = Schema[models.FamilyFinancialInfoForm, models.FamilyFinancialInfo]
	SituationDescriptionsSchema = Schema[models.SituationDescriptionsForm, models.SituationDescriptions]
)

func (r *Rules) PersonalInfo(t i18n.Localizer) *PersonalInfoSchema {
	return &PersonalInfoSchema{rules: r, t: t, convert: toPersonalInfo, form: models.PersonalInfo.Form}
}

func (r *Rules) FamilyFinancialInfo(t i18n.Localizer) *FamilyFinancialInfoSchema {
	return &FamilyFinancialInfoSchema{rules: r, t: t, convert: toFamilyFinancialInfo, form: models.FamilyFinancialInfo.Form}
}

func (r *Rules) SituationDescriptions(t i18n.Localizer) *SituationDescriptionsSchema {
	return &SituationDescriptionsSchema{rules: r, t: t, convert: toSituationDescriptions, form: models.SituationDescriptions.Form}
}

// Set bundles the three step schemas for one language.
type Set struct {
	Personal  *PersonalInfoSchema
	Family    *FamilyFinancialInfoSchema
	Situation *SituationDescriptionsSchema
}

func (r *Rules) For(t i18n.Localizer) Set {
	return Set{
		Personal:  r.PersonalInfo(t),
		Family:    r.FamilyFinancialInfo(t),
		Situation: r.SituationDescriptions(t),
	}
}

// ValidateApplication checks all three committed sections and returns the
// first failing section in step order.
func (s Set) ValidateApplication(a models.ApplicationData) (models.Section, bool) {
	switch {
	case !s.Personal.IsValidSection(a.PersonalInfo):
		return models.SectionPersonalInfo, false
	case !s.Family.IsValidSection(a.FamilyFinancialInfo):
		return models.SectionFamilyFinancialInfo, false
	case !s.Situation.IsValidSection(a.SituationDescriptions):
		return models.SectionSituationDescriptions, false
	}
	return "", true
}

func toPersonalInfo(f models.PersonalInfoForm) (models.PersonalInfo, error) {
	dob, err := models.ParseDate(f.DateOfBirth)
	if err != nil {
		return models.PersonalInfo{}, &conversionError{field: "dateOfBirth", tag: "calendar_date", err: err}
	}
	return models.PersonalInfo{
		Name:        f.Name,
		NationalID:  f.NationalID,
		DateOfBirth: dob,
		Gender:      models.Gender(f.Gender),
		Address:     f.Address,
		City:        f.City,
		State:       f.State,
		Country:     f.Country,
		Phone:       f.Phone,
		Email:       f.Email,
	}, nil
}

func toFamilyFinancialInfo(f models.FamilyFinancialInfoForm) (models.FamilyFinancialInfo, error) {
	dependents, err := strconv.Atoi(strings.TrimSpace(f.Dependents))
	if err != nil {
		return models.FamilyFinancialInfo{}, &conversionError{field: "dependents", tag: "int_string", err: err}
	}
	income, err := decimal.NewFromString(strings.TrimSpace(f.MonthlyIncome))
	if err != nil {
		return models.FamilyFinancialInfo{}, &conversionError{field: "monthlyIncome", tag: "decimal_string", err: err}
	}
	return models.FamilyFinancialInfo{
		MaritalStatus:    models.MaritalStatus(f.MaritalStatus),
		Dependents:       dependents,
		EmploymentStatus: models.EmploymentStatus(f.EmploymentStatus),
		MonthlyIncome:    income,
		HousingStatus:    models.HousingStatus(f.HousingStatus),
	}, nil
}

func toSituationDescriptions(f models.SituationDescriptionsForm) (models.SituationDescriptions, error) {
	return models.SituationDescriptions(f), nil
}
