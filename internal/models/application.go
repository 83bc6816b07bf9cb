// internal/models/application.go
package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Section names one of the three sub-records of an application. The string
// value doubles as the JSON key of the section.
type Section string

const (
	SectionPersonalInfo          Section = "personalInfo"
	SectionFamilyFinancialInfo   Section = "familyFinancialInfo"
	SectionSituationDescriptions Section = "situationDescriptions"
)

// Sections lists the sections in step order.
var Sections = []Section{SectionPersonalInfo, SectionFamilyFinancialInfo, SectionSituationDescriptions}

// Step returns the wizard step index that edits the section.
func (s Section) Step() int {
	switch s {
	case SectionPersonalInfo:
		return 0
	case SectionFamilyFinancialInfo:
		return 1
	case SectionSituationDescriptions:
		return 2
	}
	return -1
}

// SectionForStep is the inverse of Section.Step.
func SectionForStep(step int) (Section, bool) {
	if step < 0 || step >= len(Sections) {
		return "", false
	}
	return Sections[step], true
}

var ErrMissingSection = errors.New("MISSING_SECTION")

type PersonalInfo struct {
	Name        string `json:"name"`
	NationalID  string `json:"nationalId"`
	DateOfBirth Date   `json:"dateOfBirth"`
	Gender      Gender `json:"gender"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

// IsEmpty reports whether every field still holds its zero value.
func (p PersonalInfo) IsEmpty() bool {
	return p.Name == "" && p.NationalID == "" && p.DateOfBirth.IsZero() && p.Gender == "" &&
		p.Address == "" && p.City == "" && p.State == "" && p.Country == "" &&
		p.Phone == "" && p.Email == ""
}

type FamilyFinancialInfo struct {
	MaritalStatus    MaritalStatus    `json:"maritalStatus"`
	Dependents       int              `json:"dependents"`
	EmploymentStatus EmploymentStatus `json:"employmentStatus"`
	MonthlyIncome    decimal.Decimal  `json:"monthlyIncome"`
	HousingStatus    HousingStatus    `json:"housingStatus"`
}

func (f FamilyFinancialInfo) IsEmpty() bool {
	return f.MaritalStatus == "" && f.Dependents == 0 && f.EmploymentStatus == "" &&
		f.MonthlyIncome.IsZero() && f.HousingStatus == ""
}

type SituationDescriptions struct {
	CurrentFinancialSituation string `json:"currentFinancialSituation"`
	EmploymentCircumstances   string `json:"employmentCircumstances"`
	ReasonForApplying         string `json:"reasonForApplying"`
}

func (s SituationDescriptions) IsEmpty() bool {
	return s.CurrentFinancialSituation == "" && s.EmploymentCircumstances == "" && s.ReasonForApplying == ""
}

// Field returns the text of one situation field.
func (s SituationDescriptions) Field(f SituationField) string {
	switch f {
	case FieldCurrentFinancialSituation:
		return s.CurrentFinancialSituation
	case FieldEmploymentCircumstances:
		return s.EmploymentCircumstances
	case FieldReasonForApplying:
		return s.ReasonForApplying
	}
	return ""
}

// ApplicationData is the aggregate the wizard edits.
type ApplicationData struct {
	PersonalInfo          PersonalInfo          `json:"personalInfo"`
	FamilyFinancialInfo   FamilyFinancialInfo   `json:"familyFinancialInfo"`
	SituationDescriptions SituationDescriptions `json:"situationDescriptions"`
}

// SectionEmpty applies the non-empty predicate to one section.
func (a ApplicationData) SectionEmpty(s Section) bool {
	switch s {
	case SectionPersonalInfo:
		return a.PersonalInfo.IsEmpty()
	case SectionFamilyFinancialInfo:
		return a.FamilyFinancialInfo.IsEmpty()
	case SectionSituationDescriptions:
		return a.SituationDescriptions.IsEmpty()
	}
	return true
}

// Equal compares field by field; decimals compare by value.
func (a ApplicationData) Equal(b ApplicationData) bool {
	fa, fb := a.FamilyFinancialInfo, b.FamilyFinancialInfo
	return a.PersonalInfo.equal(b.PersonalInfo) &&
		a.SituationDescriptions == b.SituationDescriptions &&
		fa.MaritalStatus == fb.MaritalStatus && fa.Dependents == fb.Dependents &&
		fa.EmploymentStatus == fb.EmploymentStatus && fa.HousingStatus == fb.HousingStatus &&
		fa.MonthlyIncome.Equal(fb.MonthlyIncome)
}

func (p PersonalInfo) equal(o PersonalInfo) bool {
	pd, od := p.DateOfBirth, o.DateOfBirth
	p.DateOfBirth, o.DateOfBirth = Date{}, Date{}
	return p == o && pd.Equal(od)
}

// PersistedRecord is the shape written under the storage key. Empty
// sections are omitted so that their absence reads as "no progress".
type PersistedRecord struct {
	PersonalInfo          *PersonalInfo          `json:"personalInfo,omitempty"`
	FamilyFinancialInfo   *FamilyFinancialInfo   `json:"familyFinancialInfo,omitempty"`
	SituationDescriptions *SituationDescriptions `json:"situationDescriptions,omitempty"`
}

func NewPersistedRecord(a ApplicationData) PersistedRecord {
	var rec PersistedRecord
	if !a.PersonalInfo.IsEmpty() {
		p := a.PersonalInfo
		rec.PersonalInfo = &p
	}
	if !a.FamilyFinancialInfo.IsEmpty() {
		f := a.FamilyFinancialInfo
		rec.FamilyFinancialInfo = &f
	}
	if !a.SituationDescriptions.IsEmpty() {
		s := a.SituationDescriptions
		rec.SituationDescriptions = &s
	}
	return rec
}

// IsEmpty is true when no section was worth persisting.
func (r PersistedRecord) IsEmpty() bool {
	return r.PersonalInfo == nil && r.FamilyFinancialInfo == nil && r.SituationDescriptions == nil
}

// SubmittedPersonalInfo carries the date of birth as a YYYY-MM-DD string.
type SubmittedPersonalInfo struct {
	Name        string `json:"name"`
	NationalID  string `json:"nationalId"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      Gender `json:"gender"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

// Submission is the full validated payload handed to a submission sink.
type Submission struct {
	PersonalInfo          SubmittedPersonalInfo `json:"personalInfo"`
	FamilyFinancialInfo   FamilyFinancialInfo   `json:"familyFinancialInfo"`
	SituationDescriptions SituationDescriptions `json:"situationDescriptions"`
}

// NewSubmission assembles the payload and refuses one with an empty section.
func NewSubmission(a ApplicationData) (Submission, error) {
	var missing []string
	for _, s := range Sections {
		if a.SectionEmpty(s) {
			missing = append(missing, string(s))
		}
	}
	if len(missing) > 0 {
		return Submission{}, fmt.Errorf("%w: %s", ErrMissingSection, strings.Join(missing, ", "))
	}

	p := a.PersonalInfo
	return Submission{
		PersonalInfo: SubmittedPersonalInfo{
			Name:        p.Name,
			NationalID:  p.NationalID,
			DateOfBirth: p.DateOfBirth.String(),
			Gender:      p.Gender,
			Address:     p.Address,
			City:        p.City,
			State:       p.State,
			Country:     p.Country,
			Phone:       p.Phone,
			Email:       p.Email,
		},
		FamilyFinancialInfo:   a.FamilyFinancialInfo,
		SituationDescriptions: a.SituationDescriptions,
	}, nil
}

// ApplicationData converts a submission back into the aggregate.
func (s Submission) ApplicationData() (ApplicationData, error) {
	dob, err := ParseDate(s.PersonalInfo.DateOfBirth)
	if err != nil {
		return ApplicationData{}, fmt.Errorf("dateOfBirth: %w", err)
	}
	p := s.PersonalInfo
	return ApplicationData{
		PersonalInfo: PersonalInfo{
			Name:        p.Name,
			NationalID:  p.NationalID,
			DateOfBirth: dob,
			Gender:      p.Gender,
			Address:     p.Address,
			City:        p.City,
			State:       p.State,
			Country:     p.Country,
			Phone:       p.Phone,
			Email:       p.Email,
		},
		FamilyFinancialInfo:   s.FamilyFinancialInfo,
		SituationDescriptions: s.SituationDescriptions,
	}, nil
}

// Receipt is what a submission sink reports back.
type Receipt struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	SubmittedAt   string `json:"submittedAt"`
}

const ApplicationStatusSubmitted = "submitted"
