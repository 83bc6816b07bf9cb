package ai

import (
	"fmt"
	"strings"

	"social-support-wizard/internal/models"
)

var basePrompts = map[models.SituationField]string{
	models.FieldCurrentFinancialSituation: "Write a short first-person description of the current financial situation of someone applying for social support.",
	models.FieldEmploymentCircumstances:   "Write a short first-person description of the employment circumstances of someone applying for social support.",
	models.FieldReasonForApplying:         "Write a description of why someone is applying for social support.",
}

// BuildPrompt returns the instruction for field, folding in what the user
// has already written.
func BuildPrompt(field models.SituationField, currentValue string) (string, error) {
	base, ok := basePrompts[field]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	current := strings.TrimSpace(currentValue)
	if current == "" {
		return base, nil
	}
	return fmt.Sprintf("%s The user has already written: %q. Please expand or improve this.", base, current), nil
}
