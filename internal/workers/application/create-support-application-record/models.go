package createsupportapplicationrecord

import "social-support-wizard/internal/models"

type Input struct {
	ApplicationID   string            `json:"applicationId"`
	ApplicationData models.Submission `json:"applicationData"`
	Language        string            `json:"language"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	CreatedAt         string `json:"createdAt"` // RFC 3339
}
