package draftsituationdescription

import "social-support-wizard/internal/models"

type Input struct {
	ApplicationID string                `json:"applicationId"`
	Field         models.SituationField `json:"field"`
	CurrentValue  string                `json:"currentValue"`
}

type Output struct {
	Field       models.SituationField `json:"field"`
	Draft       string                `json:"draft"`
	GeneratedAt string                `json:"generatedAt"`
}
