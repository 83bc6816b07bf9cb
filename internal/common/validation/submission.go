package validation

// SubmissionSchema describes the applicationData variable carried by the
// social-support-application process. Field rules beyond shape live in the
// wizard step schemas.
const SubmissionSchema = `{
  "type": "object",
  "required": ["personalInfo", "familyFinancialInfo", "situationDescriptions"],
  "properties": {
    "personalInfo": {
      "type": "object",
      "required": ["name", "nationalId", "dateOfBirth", "gender", "phone", "email"],
      "properties": {
        "name": {"type": "string"},
        "nationalId": {"type": "string"},
        "dateOfBirth": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
        "gender": {"type": "string"},
        "address": {"type": "string"},
        "city": {"type": "string"},
        "state": {"type": "string"},
        "country": {"type": "string"},
        "phone": {"type": "string"},
        "email": {"type": "string"}
      }
    },
    "familyFinancialInfo": {
      "type": "object",
      "required": ["maritalStatus", "dependents", "employmentStatus", "monthlyIncome", "housingStatus"],
      "properties": {
        "maritalStatus": {"type": "string"},
        "dependents": {"type": "integer"},
        "employmentStatus": {"type": "string"},
        "monthlyIncome": {"type": ["string", "number"]},
        "housingStatus": {"type": "string"}
      }
    },
    "situationDescriptions": {
      "type": "object",
      "required": ["currentFinancialSituation", "employmentCircumstances", "reasonForApplying"],
      "properties": {
        "currentFinancialSituation": {"type": "string"},
        "employmentCircumstances": {"type": "string"},
        "reasonForApplying": {"type": "string"}
      }
    }
  }
}`

var submissionSchema = MustCompile(SubmissionSchema)

// ValidateSubmission checks the shape of a decoded applicationData variable.
func ValidateSubmission(doc interface{}) *ValidationResult {
	return submissionSchema.ValidateDocument(doc)
}
