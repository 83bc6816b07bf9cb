package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubmission() map[string]interface{} {
	return map[string]interface{}{
		"personalInfo": map[string]interface{}{
			"name": "Jane Doe", "nationalId": "784199012345678", "dateOfBirth": "1990-04-12",
			"gender": "female", "phone": "+971501234567", "email": "jane@example.com",
		},
		"familyFinancialInfo": map[string]interface{}{
			"maritalStatus": "single", "dependents": 0, "employmentStatus": "employed",
			"monthlyIncome": "4500.50", "housingStatus": "rent",
		},
		"situationDescriptions": map[string]interface{}{
			"currentFinancialSituation": "a", "employmentCircumstances": "b", "reasonForApplying": "c",
		},
	}
}

func TestValidateSubmission(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		result := ValidateSubmission(validSubmission())
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("missing section and bad date", func(t *testing.T) {
		doc := validSubmission()
		delete(doc, "situationDescriptions")
		doc["personalInfo"].(map[string]interface{})["dateOfBirth"] = "12/04/1990"

		result := ValidateSubmission(doc)
		require.False(t, result.Valid)
		assert.True(t, result.HasErrors("personalInfo"))
		assert.Len(t, result.GetErrorMessages(), len(result.Errors))
	})
}

func TestSchema_ValidateJSON(t *testing.T) {
	s := MustCompile(`{"type":"object","required":["a"]}`)

	assert.True(t, s.ValidateJSON([]byte(`{"a":1}`)).Valid)

	result := s.ValidateJSON([]byte(`{"b":1}`))
	require.False(t, result.Valid)
	assert.Equal(t, "REQUIRED", result.Errors[0].Code)

	broken := s.ValidateJSON([]byte(`{not json`))
	require.False(t, broken.Valid)
	assert.Equal(t, "INVALID_DOCUMENT", broken.Errors[0].Code)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}
