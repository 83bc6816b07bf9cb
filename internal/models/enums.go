package models

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

var GenderOptions = []Gender{GenderMale, GenderFemale, GenderOther}

type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "single"
	MaritalMarried  MaritalStatus = "married"
	MaritalDivorced MaritalStatus = "divorced"
	MaritalWidowed  MaritalStatus = "widowed"
)

var MaritalStatusOptions = []MaritalStatus{MaritalSingle, MaritalMarried, MaritalDivorced, MaritalWidowed}

type EmploymentStatus string

const (
	EmploymentEmployed     EmploymentStatus = "employed"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
	EmploymentSelfEmployed EmploymentStatus = "self-employed"
	EmploymentRetired      EmploymentStatus = "retired"
	EmploymentStudent      EmploymentStatus = "student"
)

var EmploymentStatusOptions = []EmploymentStatus{
	EmploymentEmployed, EmploymentUnemployed, EmploymentSelfEmployed, EmploymentRetired, EmploymentStudent,
}

type HousingStatus string

const (
	HousingOwn               HousingStatus = "own"
	HousingRent              HousingStatus = "rent"
	HousingWithFamilyFriends HousingStatus = "with-family-friends"
	HousingTemporary         HousingStatus = "temporary"
	HousingHomeless          HousingStatus = "homeless"
)

var HousingStatusOptions = []HousingStatus{
	HousingOwn, HousingRent, HousingWithFamilyFriends, HousingTemporary, HousingHomeless,
}

// SituationField identifies one of the free-text fields the suggestion
// helper can draft.
type SituationField string

const (
	FieldCurrentFinancialSituation SituationField = "currentFinancialSituation"
	FieldEmploymentCircumstances   SituationField = "employmentCircumstances"
	FieldReasonForApplying         SituationField = "reasonForApplying"
)

var SituationFields = []SituationField{
	FieldCurrentFinancialSituation, FieldEmploymentCircumstances, FieldReasonForApplying,
}

func (f SituationField) Valid() bool {
	for _, known := range SituationFields {
		if f == known {
			return true
		}
	}
	return false
}
