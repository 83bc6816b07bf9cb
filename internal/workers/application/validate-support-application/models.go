package validatesupportapplication

import "social-support-wizard/internal/models"

type Input struct {
	ApplicationID   string            `json:"applicationId"`
	ApplicationData models.Submission `json:"applicationData"`
	Language        string            `json:"language"`
}

type Output struct {
	ApplicationID    string            `json:"applicationId"`
	IsValid          bool              `json:"isValid"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

// ValidationError names the failing field as section.field, e.g.
// personalInfo.phone. Code is the catalog key of the message.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
