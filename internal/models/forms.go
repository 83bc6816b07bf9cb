package models

import "strconv"

// The *Form types hold step input as a browser form would: every value is
// a string, so representation rules (leading zeros, date format) can be
// checked before conversion.

type PersonalInfoForm struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	NationalID  string `json:"nationalId" validate:"required,min=5,max=20"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,calendar_date,dob_past,dob_max_age"`
	Gender      string `json:"gender" validate:"required,oneof=male female other"`
	Address     string `json:"address" validate:"required,min=5,max=200"`
	City        string `json:"city" validate:"required,min=2,max=50"`
	State       string `json:"state" validate:"required,min=2,max=50"`
	Country     string `json:"country" validate:"required,min=2,max=50"`
	Phone       string `json:"phone" validate:"required,phone_number"`
	Email       string `json:"email" validate:"required,email,max=100"`
}

type FamilyFinancialInfoForm struct {
	MaritalStatus    string `json:"maritalStatus" validate:"required,oneof=single married divorced widowed"`
	Dependents       string `json:"dependents" validate:"required,int_string,non_negative,no_leading_zeros"`
	EmploymentStatus string `json:"employmentStatus" validate:"required,oneof=employed unemployed self-employed retired student"`
	MonthlyIncome    string `json:"monthlyIncome" validate:"required,decimal_string,non_negative,no_leading_zeros"`
	HousingStatus    string `json:"housingStatus" validate:"required,oneof=own rent with-family-friends temporary homeless"`
}

type SituationDescriptionsForm struct {
	CurrentFinancialSituation string `json:"currentFinancialSituation" validate:"required,notblank"`
	EmploymentCircumstances   string `json:"employmentCircumstances" validate:"required,notblank"`
	ReasonForApplying         string `json:"reasonForApplying" validate:"required,notblank"`
}

// Field returns the value of one situation field.
func (f SituationDescriptionsForm) Field(field SituationField) string {
	return SituationDescriptions(f).Field(field)
}

// SetField writes one situation field and reports whether field is known.
func (f *SituationDescriptionsForm) SetField(field SituationField, value string) bool {
	switch field {
	case FieldCurrentFinancialSituation:
		f.CurrentFinancialSituation = value
	case FieldEmploymentCircumstances:
		f.EmploymentCircumstances = value
	case FieldReasonForApplying:
		f.ReasonForApplying = value
	default:
		return false
	}
	return true
}

func (p PersonalInfo) Form() PersonalInfoForm {
	return PersonalInfoForm{
		Name:        p.Name,
		NationalID:  p.NationalID,
		DateOfBirth: p.DateOfBirth.String(),
		Gender:      string(p.Gender),
		Address:     p.Address,
		City:        p.City,
		State:       p.State,
		Country:     p.Country,
		Phone:       p.Phone,
		Email:       p.Email,
	}
}

func (f FamilyFinancialInfo) Form() FamilyFinancialInfoForm {
	return FamilyFinancialInfoForm{
		MaritalStatus:    string(f.MaritalStatus),
		Dependents:       strconv.Itoa(f.Dependents),
		EmploymentStatus: string(f.EmploymentStatus),
		MonthlyIncome:    f.MonthlyIncome.String(),
		HousingStatus:    string(f.HousingStatus),
	}
}

func (s SituationDescriptions) Form() SituationDescriptionsForm {
	return SituationDescriptionsForm(s)
}
