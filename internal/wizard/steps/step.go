// Package steps holds the uncommitted form state of each wizard step and
// commits it to the data store once it validates.
package steps

import (
	"context"
	"sync"

	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/models"
	"social-support-wizard/internal/wizard/schema"
	"social-support-wizard/internal/wizard/store"
)

// Result is the outcome of ValidateAndCommit. Errors is nil when OK.
type Result struct {
	Section models.Section `json:"section"`
	OK      bool           `json:"ok"`
	Errors  schema.Errors  `json:"errors,omitempty"`
}

// Step is what the orchestrator needs from every step, whatever its form.
type Step interface {
	Section() models.Section
	// Reseed replaces the draft with the section as currently stored and
	// clears field errors.
	Reseed()
	ValidateAndCommit(ctx context.Context) Result
	Errors() schema.Errors
	// SetLocalizer switches the language of field errors, re-rendering any
	// that are showing.
	SetLocalizer(t i18n.Localizer)
}

// Form is a step whose draft has type F and whose committed section has
// type S.
type Form[F any, S any] struct {
	section models.Section
	store   *store.DataStore
	build   func(i18n.Localizer) *schema.Schema[F, S]
	seed    func(models.ApplicationData) F
	commit  func(*store.DataStore, S)

	mu     sync.Mutex
	schema *schema.Schema[F, S]
	draft  F
	errors schema.Errors
}

func newForm[F any, S any](
	section models.Section,
	st *store.DataStore,
	t i18n.Localizer,
	build func(i18n.Localizer) *schema.Schema[F, S],
	seed func(models.ApplicationData) F,
	commit func(*store.DataStore, S),
) *Form[F, S] {
	f := &Form[F, S]{
		section: section,
		store:   st,
		build:   build,
		seed:    seed,
		commit:  commit,
		schema:  build(t),
	}
	f.draft = seed(st.Snapshot())
	return f
}

func (f *Form[F, S]) Section() models.Section { return f.section }

func (f *Form[F, S]) Draft() F {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// SetDraft replaces the local form state. Nothing reaches the store until
// ValidateAndCommit succeeds.
func (f *Form[F, S]) SetDraft(draft F) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = draft
}

func (f *Form[F, S]) Reseed() {
	seed := f.seed(f.store.Snapshot())
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = seed
	f.errors = nil
}

func (f *Form[F, S]) ValidateAndCommit(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Result{Section: f.section, Errors: schema.Errors{"": err.Error()}}
	}

	section, errs := f.validate()
	if errs != nil {
		return Result{Section: f.section, Errors: errs}
	}
	f.commit(f.store, section)
	return Result{Section: f.section, OK: true}
}

func (f *Form[F, S]) validate() (S, schema.Errors) {
	f.mu.Lock()
	defer f.mu.Unlock()
	section, errs := f.schema.Validate(f.draft)
	f.errors = errs
	return section, errs
}

func (f *Form[F, S]) Errors() schema.Errors {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errors == nil {
		return nil
	}
	out := make(schema.Errors, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

func (f *Form[F, S]) SetLocalizer(t i18n.Localizer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schema = f.build(t)
	if f.errors != nil {
		_, f.errors = f.schema.Validate(f.draft)
	}
}

type (
	PersonalInfo        = Form[models.PersonalInfoForm, models.PersonalInfo]
	FamilyFinancialInfo = Form[models.FamilyFinancialInfoForm, models.FamilyFinancialInfo]
)

func NewPersonalInfo(st *store.DataStore, rules *schema.Rules, t i18n.Localizer) *PersonalInfo {
	return newForm(models.SectionPersonalInfo, st, t, rules.PersonalInfo,
		func(a models.ApplicationData) models.PersonalInfoForm { return a.PersonalInfo.Form() },
		func(st *store.DataStore, p models.PersonalInfo) { st.UpdatePersonalInfo(p.Patch()) },
	)
}

func NewFamilyFinancialInfo(st *store.DataStore, rules *schema.Rules, t i18n.Localizer) *FamilyFinancialInfo {
	return newForm(models.SectionFamilyFinancialInfo, st, t, rules.FamilyFinancialInfo,
		func(a models.ApplicationData) models.FamilyFinancialInfoForm { return a.FamilyFinancialInfo.Form() },
		func(st *store.DataStore, f models.FamilyFinancialInfo) { st.UpdateFamilyFinancialInfo(f.Patch()) },
	)
}
