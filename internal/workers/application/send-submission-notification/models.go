package sendsubmissionnotification

import "social-support-wizard/internal/models"

type Input struct {
	ApplicationID   string            `json:"applicationId"`
	ApplicationData models.Submission `json:"applicationData"`
	Language        string            `json:"language"`
	CreatedAt       string            `json:"createdAt"`
}

type Output struct {
	EmailSent      bool   `json:"emailSent"`
	EmailMessageID string `json:"emailMessageId,omitempty"`
	SMSSent        bool   `json:"smsSent"`
	SMSMessageID   string `json:"smsMessageId,omitempty"`
	Language       string `json:"notificationLanguage"`
	NotifiedAt     string `json:"notifiedAt"`
}
