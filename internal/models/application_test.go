package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeApplication() ApplicationData {
	return ApplicationData{
		PersonalInfo: PersonalInfo{
			Name: "Jane Doe", NationalID: "784199012345678", DateOfBirth: NewDate(1990, time.April, 12),
			Gender: GenderFemale, Address: "12 Palm St", City: "Dubai", State: "Dubai",
			Country: "UAE", Phone: "+971501234567", Email: "jane@example.com",
		},
		FamilyFinancialInfo: FamilyFinancialInfo{
			MaritalStatus: MaritalSingle, Dependents: 2, EmploymentStatus: EmploymentUnemployed,
			MonthlyIncome: decimal.RequireFromString("1200.50"), HousingStatus: HousingRent,
		},
		SituationDescriptions: SituationDescriptions{
			CurrentFinancialSituation: "Struggling with rent since losing my job.",
			EmploymentCircumstances:   "Laid off in March, looking for work.",
			ReasonForApplying:         "Need help covering rent for three months.",
		},
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{name: "calendar date", input: "1990-04-12", want: NewDate(1990, time.April, 12)},
		{name: "rfc3339 timestamp", input: "1990-04-12T22:30:00Z", want: NewDate(1990, time.April, 12)},
		{name: "empty is unset", input: "", want: Date{}},
		{name: "garbage", input: "12/04/1990", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestDate_JSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}{D: NewDate(2001, time.February, 3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2001-02-03","z":""}`, string(raw))

	var back struct {
		D Date `json:"d"`
		N Date `json:"n"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2001-02-03","n":null}`), &back))
	assert.Equal(t, "2001-02-03", back.D.String())
	assert.True(t, back.N.IsZero())
}

func TestSectionEmptiness(t *testing.T) {
	var empty ApplicationData
	for _, s := range Sections {
		assert.True(t, empty.SectionEmpty(s), s)
	}

	partial := ApplicationData{FamilyFinancialInfo: FamilyFinancialInfo{Dependents: 1}}
	assert.True(t, partial.SectionEmpty(SectionPersonalInfo))
	assert.False(t, partial.SectionEmpty(SectionFamilyFinancialInfo))

	rec := NewPersistedRecord(partial)
	assert.Nil(t, rec.PersonalInfo)
	assert.NotNil(t, rec.FamilyFinancialInfo)
	assert.Nil(t, rec.SituationDescriptions)
	assert.True(t, NewPersistedRecord(empty).IsEmpty())
}

func TestSectionSteps(t *testing.T) {
	for i, s := range Sections {
		assert.Equal(t, i, s.Step())
		got, ok := SectionForStep(i)
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}
	_, ok := SectionForStep(3)
	assert.False(t, ok)
}

func TestNewSubmission(t *testing.T) {
	t.Run("complete application", func(t *testing.T) {
		app := completeApplication()
		sub, err := NewSubmission(app)
		require.NoError(t, err)
		assert.Equal(t, "1990-04-12", sub.PersonalInfo.DateOfBirth)

		back, err := sub.ApplicationData()
		require.NoError(t, err)
		assert.True(t, app.Equal(back))
	})

	t.Run("missing section", func(t *testing.T) {
		app := completeApplication()
		app.SituationDescriptions = SituationDescriptions{}
		_, err := NewSubmission(app)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingSection))
		assert.Contains(t, err.Error(), "situationDescriptions")
	})
}

func TestPatchApply(t *testing.T) {
	p := completeApplication().PersonalInfo
	city := "Abu Dhabi"
	p.Apply(PersonalInfoPatch{City: &city})
	p.Apply(PersonalInfoPatch{City: &city})

	assert.Equal(t, "Abu Dhabi", p.City)
	assert.Equal(t, "Jane Doe", p.Name)

	var f FamilyFinancialInfo
	f.Apply(completeApplication().FamilyFinancialInfo.Patch())
	assert.True(t, f.MonthlyIncome.Equal(decimal.RequireFromString("1200.5")))
}

func TestSituationField(t *testing.T) {
	s := completeApplication().SituationDescriptions
	assert.Equal(t, s.ReasonForApplying, s.Field(FieldReasonForApplying))
	assert.True(t, FieldEmploymentCircumstances.Valid())
	assert.False(t, SituationField("name").Valid())
}
