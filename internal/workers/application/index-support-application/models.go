package indexsupportapplication

import "social-support-wizard/internal/models"

type Input struct {
	ApplicationID   string            `json:"applicationId"`
	ApplicationData models.Submission `json:"applicationData"`
	Language        string            `json:"language"`
	CreatedAt       string            `json:"createdAt"`
}

type Output struct {
	Indexed     bool   `json:"indexed"`
	SearchIndex string `json:"searchIndex"`
	Result      string `json:"indexResult"` // created | updated
}

// Document is what back-office search sees. Free text is kept in one field
// for full-text queries.
type Document struct {
	ApplicationID    string  `json:"applicationId"`
	ApplicantName    string  `json:"applicantName"`
	NationalID       string  `json:"nationalId"`
	Email            string  `json:"email"`
	City             string  `json:"city"`
	Country          string  `json:"country"`
	MaritalStatus    string  `json:"maritalStatus"`
	Dependents       int     `json:"dependents"`
	EmploymentStatus string  `json:"employmentStatus"`
	HousingStatus    string  `json:"housingStatus"`
	MonthlyIncome    float64 `json:"monthlyIncome"`
	Situation        string  `json:"situation"`
	Language         string  `json:"language"`
	Status           string  `json:"status"`
	SubmittedAt      string  `json:"submittedAt"`
}
