package steps

import (
	"context"
	"time"

	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/models"
	"social-support-wizard/internal/wizard/schema"
	"social-support-wizard/internal/wizard/store"
	"social-support-wizard/internal/wizard/suggestion"
)

// SituationDescriptions is the free-text step. It owns the suggestion
// helper; an accepted suggestion lands in the draft only.
type SituationDescriptions struct {
	*Form[models.SituationDescriptionsForm, models.SituationDescriptions]
	helper *suggestion.Helper
}

func NewSituationDescriptions(st *store.DataStore, rules *schema.Rules, t i18n.Localizer, helper *suggestion.Helper) *SituationDescriptions {
	form := newForm(models.SectionSituationDescriptions, st, t, rules.SituationDescriptions,
		func(a models.ApplicationData) models.SituationDescriptionsForm { return a.SituationDescriptions.Form() },
		func(st *store.DataStore, s models.SituationDescriptions) { st.UpdateSituationDescriptions(s.Patch()) },
	)
	return &SituationDescriptions{Form: form, helper: helper}
}

// Suggest starts a suggestion for field using the field's current draft as
// context. The rest of the draft stays editable meanwhile.
func (s *SituationDescriptions) Suggest(field models.SituationField, timeout time.Duration) error {
	return s.helper.Start(field, s.Draft().Field(field), timeout)
}

func (s *SituationDescriptions) WaitSuggestion(ctx context.Context) error {
	return s.helper.Wait(ctx)
}

func (s *SituationDescriptions) Suggestion() suggestion.Session {
	return s.helper.Snapshot()
}

func (s *SituationDescriptions) EditSuggestion(text string) bool {
	return s.helper.SetDraft(text)
}

// AcceptSuggestion copies the suggestion into its field of the draft.
func (s *SituationDescriptions) AcceptSuggestion() bool {
	field, value, ok := s.helper.Accept()
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.SetField(field, value)
	return true
}

func (s *SituationDescriptions) DiscardSuggestion() error {
	return s.helper.Discard()
}

// ResetSuggestion drops the suggestion session even while one is generating.
func (s *SituationDescriptions) ResetSuggestion() {
	s.helper.Reset()
}

// Close stops any running generation.
func (s *SituationDescriptions) Close() {
	s.helper.Close()
}
