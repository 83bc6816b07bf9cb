package wizard

import (
	"strconv"

	"social-support-wizard/internal/ai"
	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/models"
	"social-support-wizard/internal/wizard/schema"
	"social-support-wizard/internal/wizard/suggestion"
)

// View is everything a client needs to render the wizard, localized.
type View struct {
	Language    string         `json:"language"`
	Direction   i18n.Direction `json:"direction"`
	LayoutClass string         `json:"layoutClass"`
	Title       string         `json:"title"`

	ActiveStep int         `json:"activeStep"`
	Steps      []StepLabel `json:"steps"`
	Submitting bool        `json:"submitting"`

	Banner        string         `json:"banner,omitempty"`
	Notice        string         `json:"notice,omitempty"`
	NoticeSection models.Section `json:"noticeSection,omitempty"`

	Drafts  Drafts              `json:"drafts"`
	Errors  schema.Errors       `json:"errors,omitempty"`
	Options map[string][]Option `json:"options"`

	Suggestion SuggestionView `json:"suggestion"`
	Terminal   *TerminalView  `json:"terminal,omitempty"`
}

type StepLabel struct {
	Index   int            `json:"index"`
	Section models.Section `json:"section"`
	Label   string         `json:"label"`
}

type Drafts struct {
	PersonalInfo          models.PersonalInfoForm          `json:"personalInfo"`
	FamilyFinancialInfo   models.FamilyFinancialInfoForm   `json:"familyFinancialInfo"`
	SituationDescriptions models.SituationDescriptionsForm `json:"situationDescriptions"`
}

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type SuggestionView struct {
	suggestion.Session
	Error string `json:"error,omitempty"`
}

type TerminalView struct {
	Outcome Outcome         `json:"outcome"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Action  string          `json:"action"`
	Receipt *models.Receipt `json:"receipt,omitempty"`
}

// View renders the current state in the active language.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	t := w.t
	v := View{
		Language:    t.Lang(),
		Direction:   t.Direction(),
		LayoutClass: t.LayoutClass(),
		Title:       t.T("socialSupportFormWizard.title"),
		ActiveStep:  w.active,
		Submitting:  w.submitting,
		Drafts: Drafts{
			PersonalInfo:          w.personal.Draft(),
			FamilyFinancialInfo:   w.family.Draft(),
			SituationDescriptions: w.situation.Draft(),
		},
		Options: options(t),
	}

	for i, s := range models.Sections {
		v.Steps = append(v.Steps, StepLabel{
			Index:   i,
			Section: s,
			Label:   t.T("socialSupportFormWizard.stepLabels." + strconv.Itoa(i)),
		})
	}

	if w.bannerKey != "" {
		v.Banner = t.T(w.bannerKey)
	}
	if w.notice != "" {
		v.Notice = t.T("socialSupportFormWizard.savedSuccessfully")
		v.NoticeSection = w.notice
	}
	if w.active < StepTerminal {
		v.Errors = w.steps[w.active].Errors()
	}

	s := w.situation.Suggestion()
	v.Suggestion = SuggestionView{Session: s}
	if s.State == suggestion.Failed {
		v.Suggestion.Error = t.T(ai.MessageKey(s.ErrorKind), i18n.P("status", s.StatusCode))
	}

	switch w.outcome {
	case OutcomeSubmitted:
		v.Terminal = &TerminalView{
			Outcome: OutcomeSubmitted,
			Title:   t.T("socialSupportFormWizard.applicationSubmitted"),
			Message: t.T("socialSupportFormWizard.thankYouMessage", i18n.P("applicationId", w.receipt.ApplicationID)),
			Action:  t.T("socialSupportFormWizard.startNewApplication"),
			Receipt: w.receipt,
		}
	case OutcomeFailed:
		v.Terminal = &TerminalView{
			Outcome: OutcomeFailed,
			Title:   t.T("socialSupportFormWizard.submitErrorTitle"),
			Message: t.T("socialSupportFormWizard.submitError"),
			Action:  t.T("socialSupportFormWizard.tryAgain"),
		}
	}
	return v
}

func options(t i18n.Localizer) map[string][]Option {
	out := make(map[string][]Option, 4)
	out["gender"] = labelled(t, "personalInfoForm.genderOptions.", models.GenderOptions)
	out["maritalStatus"] = labelled(t, "familyFinancialInfoForm.maritalStatusOptions.", models.MaritalStatusOptions)
	out["employmentStatus"] = labelled(t, "familyFinancialInfoForm.employmentStatusOptions.", models.EmploymentStatusOptions)
	out["housingStatus"] = labelled(t, "familyFinancialInfoForm.housingStatusOptions.", models.HousingStatusOptions)
	return out
}

func labelled[T ~string](t i18n.Localizer, prefix string, values []T) []Option {
	opts := make([]Option, len(values))
	for i, v := range values {
		opts[i] = Option{Value: string(v), Label: t.T(prefix + string(v))}
	}
	return opts
}
