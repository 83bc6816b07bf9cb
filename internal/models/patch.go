package models

import "github.com/shopspring/decimal"

// Patches carry only the fields a caller wants to change; nil leaves the
// stored value untouched.

type PersonalInfoPatch struct {
	Name        *string `json:"name,omitempty"`
	NationalID  *string `json:"nationalId,omitempty"`
	DateOfBirth *Date   `json:"dateOfBirth,omitempty"`
	Gender      *Gender `json:"gender,omitempty"`
	Address     *string `json:"address,omitempty"`
	City        *string `json:"city,omitempty"`
	State       *string `json:"state,omitempty"`
	Country     *string `json:"country,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
}

func (p *PersonalInfo) Apply(patch PersonalInfoPatch) {
	setIf(&p.Name, patch.Name)
	setIf(&p.NationalID, patch.NationalID)
	setIf(&p.DateOfBirth, patch.DateOfBirth)
	setIf(&p.Gender, patch.Gender)
	setIf(&p.Address, patch.Address)
	setIf(&p.City, patch.City)
	setIf(&p.State, patch.State)
	setIf(&p.Country, patch.Country)
	setIf(&p.Phone, patch.Phone)
	setIf(&p.Email, patch.Email)
}

// Patch returns a patch that sets every field to p's value.
func (p PersonalInfo) Patch() PersonalInfoPatch {
	return PersonalInfoPatch{
		Name: &p.Name, NationalID: &p.NationalID, DateOfBirth: &p.DateOfBirth, Gender: &p.Gender,
		Address: &p.Address, City: &p.City, State: &p.State, Country: &p.Country,
		Phone: &p.Phone, Email: &p.Email,
	}
}

type FamilyFinancialInfoPatch struct {
	MaritalStatus    *MaritalStatus    `json:"maritalStatus,omitempty"`
	Dependents       *int              `json:"dependents,omitempty"`
	EmploymentStatus *EmploymentStatus `json:"employmentStatus,omitempty"`
	MonthlyIncome    *decimal.Decimal  `json:"monthlyIncome,omitempty"`
	HousingStatus    *HousingStatus    `json:"housingStatus,omitempty"`
}

func (f *FamilyFinancialInfo) Apply(patch FamilyFinancialInfoPatch) {
	setIf(&f.MaritalStatus, patch.MaritalStatus)
	setIf(&f.Dependents, patch.Dependents)
	setIf(&f.EmploymentStatus, patch.EmploymentStatus)
	setIf(&f.MonthlyIncome, patch.MonthlyIncome)
	setIf(&f.HousingStatus, patch.HousingStatus)
}

func (f FamilyFinancialInfo) Patch() FamilyFinancialInfoPatch {
	return FamilyFinancialInfoPatch{
		MaritalStatus: &f.MaritalStatus, Dependents: &f.Dependents, EmploymentStatus: &f.EmploymentStatus,
		MonthlyIncome: &f.MonthlyIncome, HousingStatus: &f.HousingStatus,
	}
}

type SituationDescriptionsPatch struct {
	CurrentFinancialSituation *string `json:"currentFinancialSituation,omitempty"`
	EmploymentCircumstances   *string `json:"employmentCircumstances,omitempty"`
	ReasonForApplying         *string `json:"reasonForApplying,omitempty"`
}

func (s *SituationDescriptions) Apply(patch SituationDescriptionsPatch) {
	setIf(&s.CurrentFinancialSituation, patch.CurrentFinancialSituation)
	setIf(&s.EmploymentCircumstances, patch.EmploymentCircumstances)
	setIf(&s.ReasonForApplying, patch.ReasonForApplying)
}

func (s SituationDescriptions) Patch() SituationDescriptionsPatch {
	return SituationDescriptionsPatch{
		CurrentFinancialSituation: &s.CurrentFinancialSituation,
		EmploymentCircumstances:   &s.EmploymentCircumstances,
		ReasonForApplying:         &s.ReasonForApplying,
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
