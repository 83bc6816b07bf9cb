// Package wizard drives the three-step application flow: navigation,
// save and submit, rehydration from saved progress and write-back.
package wizard

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"social-support-wizard/internal/ai"
	apperrors "social-support-wizard/internal/common/errors"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/metrics"
	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/models"
	"social-support-wizard/internal/wizard/schema"
	"social-support-wizard/internal/wizard/steps"
	"social-support-wizard/internal/wizard/store"
	"social-support-wizard/internal/wizard/suggestion"
)

const (
	StepPersonalInfo          = 0
	StepFamilyFinancialInfo   = 1
	StepSituationDescriptions = 2
	StepTerminal              = 3
)

// Outcome describes the terminal step.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeSubmitted Outcome = "submitted"
	OutcomeFailed    Outcome = "failed"
)

// ProgressStore persists one session's record; *storage.Progress
// implements it and never fails loudly.
type ProgressStore interface {
	Load(ctx context.Context) (*models.PersistedRecord, bool)
	Save(ctx context.Context, rec models.PersistedRecord)
	Clear(ctx context.Context)
}

type Options struct {
	Rules     *schema.Rules
	Localizer i18n.Localizer
	Generator ai.Generator
	Submitter Submitter
	Progress  ProgressStore
	Logger    logger.Logger
	// SuggestionTimeout applies when a suggestion request names none.
	SuggestionTimeout time.Duration
}

// Wizard is one applicant's session. All methods are safe for concurrent
// use; mutating calls are rejected while a submit is running.
type Wizard struct {
	log               logger.Logger
	rules             *schema.Rules
	submitter         Submitter
	progress          ProgressStore
	suggestionTimeout time.Duration

	store     *store.DataStore
	personal  *steps.PersonalInfo
	family    *steps.FamilyFinancialInfo
	situation *steps.SituationDescriptions
	steps     []steps.Step

	mu          sync.Mutex
	t           i18n.Localizer
	active      int
	outcome     Outcome
	receipt     *models.Receipt
	bannerKey   string
	notice      models.Section
	submitting  bool
	mounted     bool
	unsubscribe func()
}

func New(opts Options) *Wizard {
	if opts.Localizer == nil {
		opts.Localizer = i18n.Identity{}
	}
	if opts.Generator == nil {
		opts.Generator = ai.Unconfigured{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Rules == nil {
		opts.Rules = schema.NewRules(nil)
	}
	if opts.Submitter == nil {
		opts.Submitter = NewLocalSubmitter(opts.Logger)
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}

	st := store.New()
	helper := suggestion.NewHelper(opts.Generator, opts.Logger)
	w := &Wizard{
		log:               opts.Logger,
		rules:             opts.Rules,
		submitter:         opts.Submitter,
		progress:          opts.Progress,
		suggestionTimeout: opts.SuggestionTimeout,
		store:             st,
		personal:          steps.NewPersonalInfo(st, opts.Rules, opts.Localizer),
		family:            steps.NewFamilyFinancialInfo(st, opts.Rules, opts.Localizer),
		situation:         steps.NewSituationDescriptions(st, opts.Rules, opts.Localizer, helper),
		t:                 opts.Localizer,
	}
	w.steps = []steps.Step{w.personal, w.family, w.situation}
	return w
}

// Mount restores saved progress, picks the resume step and starts writing
// every later store change back. Calling it again is a no-op.
func (w *Wizard) Mount(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mounted {
		return
	}
	w.mounted = true

	rec, ok := w.progress.Load(ctx)
	if ok {
		if rec.PersonalInfo != nil {
			w.store.UpdatePersonalInfo(rec.PersonalInfo.Patch())
		}
		if rec.FamilyFinancialInfo != nil {
			w.store.UpdateFamilyFinancialInfo(rec.FamilyFinancialInfo.Patch())
		}
		if rec.SituationDescriptions != nil {
			w.store.UpdateSituationDescriptions(rec.SituationDescriptions.Patch())
		}
		w.active = resumeStep(rec)
	}
	for _, s := range w.steps {
		s.Reseed()
	}

	// Subscribing only now keeps the rehydration merges from being written
	// straight back over the record they came from.
	persistCtx := context.WithoutCancel(ctx)
	w.unsubscribe = w.store.Subscribe(func(a models.ApplicationData) {
		w.progress.Save(persistCtx, models.NewPersistedRecord(a))
	})

	metrics.ActiveSessions.Inc()
	w.log.Debug("wizard mounted", map[string]interface{}{
		"restored":   ok,
		"activeStep": w.active,
	})
}

// resumeStep returns the step of the furthest section holding data.
func resumeStep(rec *models.PersistedRecord) int {
	switch {
	case rec.SituationDescriptions != nil && !rec.SituationDescriptions.IsEmpty():
		return StepSituationDescriptions
	case rec.FamilyFinancialInfo != nil && !rec.FamilyFinancialInfo.IsEmpty():
		return StepFamilyFinancialInfo
	default:
		return StepPersonalInfo
	}
}

// Close stops write-back and any running suggestion.
func (w *Wizard) Close() {
	w.mu.Lock()
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	mounted := w.mounted
	w.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	w.situation.Close()
	if mounted {
		metrics.ActiveSessions.Dec()
	}
}

// lockIdle takes w.mu and fails while a submit is running.
func (w *Wizard) lockIdle() error {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return apperrors.NewInvalidStepTransitionError("a submission is in progress")
	}
	return nil
}

func (w *Wizard) moveTo(step int) {
	if step == w.active {
		return
	}
	metrics.WizardStepTransitions.WithLabelValues(strconv.Itoa(w.active), strconv.Itoa(step)).Inc()
	w.active = step
	w.notice = ""
	if step < StepTerminal {
		// A step shown again starts from what is in the store.
		w.steps[step].Reseed()
	}
}

// Next moves one step forward without validating the current one.
// Uncommitted edits on the step being left are dropped.
func (w *Wizard) Next() error {
	if err := w.lockIdle(); err != nil {
		return err
	}
	defer w.mu.Unlock()

	if w.active >= StepSituationDescriptions {
		return apperrors.NewInvalidStepTransitionError(fmt.Sprintf("no next step from step %d", w.active))
	}
	w.bannerKey = ""
	w.moveTo(w.active + 1)
	return nil
}

// Back moves one step backward from steps 1 and 2.
func (w *Wizard) Back() error {
	if err := w.lockIdle(); err != nil {
		return err
	}
	defer w.mu.Unlock()

	if w.active == StepPersonalInfo || w.active == StepTerminal {
		return apperrors.NewInvalidStepTransitionError(fmt.Sprintf("no previous step from step %d", w.active))
	}
	w.bannerKey = ""
	w.moveTo(w.active - 1)
	return nil
}

// Save validates and commits the active step. A successful save raises the
// saved notice; a failed one leaves the field errors showing.
func (w *Wizard) Save(ctx context.Context) (steps.Result, error) {
	if err := w.lockIdle(); err != nil {
		return steps.Result{}, err
	}
	defer w.mu.Unlock()

	if w.active == StepTerminal {
		return steps.Result{}, apperrors.NewInvalidStepTransitionError("nothing to save after submission")
	}

	res := w.steps[w.active].ValidateAndCommit(ctx)
	outcome := "invalid"
	if res.OK {
		outcome = "saved"
		w.notice = res.Section
	}
	metrics.WizardSaves.WithLabelValues(string(res.Section), outcome).Inc()
	return res, nil
}

// Submit runs the final submit from step 2. Validation failures are not
// errors: they show the banner and move to the first failing step. A sink
// failure shows the failed terminal screen.
func (w *Wizard) Submit(ctx context.Context) error {
	if err := w.lockIdle(); err != nil {
		return err
	}
	if w.active != StepSituationDescriptions {
		w.mu.Unlock()
		return apperrors.NewInvalidStepTransitionError("submit is only possible from the last step")
	}
	w.submitting = true
	t := w.t
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.submitting = false
		w.mu.Unlock()
	}()

	failing, ok := w.validateAll(ctx, t)
	if !ok {
		w.mu.Lock()
		w.bannerKey = "socialSupportFormWizard.validationError"
		if failing != "" {
			w.moveTo(failing.Step())
			if failing != models.SectionSituationDescriptions {
				// Surface the stored section's field errors on the step
				// just shown; an invalid draft is never committed.
				w.steps[w.active].ValidateAndCommit(ctx)
			}
		}
		w.mu.Unlock()
		metrics.WizardSubmits.WithLabelValues("invalid").Inc()
		return nil
	}

	sub, err := models.NewSubmission(w.store.Snapshot())
	if err != nil {
		w.mu.Lock()
		w.bannerKey = "socialSupportFormWizard.missingDataError"
		w.mu.Unlock()
		metrics.WizardSubmits.WithLabelValues("missing").Inc()
		return nil
	}

	receipt, err := w.submitter.Submit(i18n.WithLocalizer(ctx, t), sub)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.bannerKey = ""
	if err != nil {
		w.log.Error("submission failed", map[string]interface{}{"error": err.Error()})
		w.outcome = OutcomeFailed
		w.moveTo(StepTerminal)
		metrics.WizardSubmits.WithLabelValues("failed").Inc()
		return nil
	}

	w.receipt = &receipt
	w.outcome = OutcomeSubmitted
	w.moveTo(StepTerminal)
	metrics.WizardSubmits.WithLabelValues("submitted").Inc()
	w.log.Info("application submitted", map[string]interface{}{"applicationId": receipt.ApplicationID})
	return nil
}

// validateAll commits the situation step and checks the two other sections
// as stored. A panic anywhere counts as a failure with no step to show.
func (w *Wizard) validateAll(ctx context.Context, t i18n.Localizer) (failing models.Section, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("submit validation panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			failing, ok = "", false
		}
	}()

	situationOK := w.situation.ValidateAndCommit(ctx).OK

	set := w.rules.For(t)
	data := w.store.Snapshot()
	switch {
	case !set.Personal.IsValidSection(data.PersonalInfo):
		return models.SectionPersonalInfo, false
	case !set.Family.IsValidSection(data.FamilyFinancialInfo):
		return models.SectionFamilyFinancialInfo, false
	case !situationOK:
		return models.SectionSituationDescriptions, false
	}
	return "", true
}

// TryAgain leaves the failed terminal screen for step 2 with all data kept.
func (w *Wizard) TryAgain() error {
	if err := w.lockIdle(); err != nil {
		return err
	}
	defer w.mu.Unlock()

	if w.active != StepTerminal || w.outcome != OutcomeFailed {
		return apperrors.NewInvalidStepTransitionError("nothing to retry")
	}
	w.outcome = OutcomeNone
	w.moveTo(StepSituationDescriptions)
	return nil
}

// StartNew empties the application, forgets saved progress and returns to
// step 0.
func (w *Wizard) StartNew(ctx context.Context) error {
	if err := w.lockIdle(); err != nil {
		return err
	}
	defer w.mu.Unlock()

	w.store.Reset()
	w.progress.Clear(ctx)
	w.situation.ResetSuggestion()

	w.outcome = OutcomeNone
	w.receipt = nil
	w.bannerKey = ""
	w.notice = ""
	w.moveTo(StepPersonalInfo)
	for _, s := range w.steps {
		s.Reseed()
	}
	return nil
}

func (w *Wizard) DismissError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bannerKey = ""
}

func (w *Wizard) DismissNotice() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notice = ""
}

// SetLocalizer switches the language of every message, including field
// errors already showing.
func (w *Wizard) SetLocalizer(t i18n.Localizer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.t = t
	for _, s := range w.steps {
		s.SetLocalizer(t)
	}
}

func (w *Wizard) Localizer() i18n.Localizer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.t
}

func (w *Wizard) ActiveStep() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Data returns the committed application.
func (w *Wizard) Data() models.ApplicationData {
	return w.store.Snapshot()
}

func (w *Wizard) requireActive(step int) error {
	if w.active != step {
		return apperrors.NewInvalidStepTransitionError(fmt.Sprintf("step %d is not active", step))
	}
	return nil
}

func (w *Wizard) SetPersonalInfoDraft(form models.PersonalInfoForm) error {
	if err := w.lockIdle(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if err := w.requireActive(StepPersonalInfo); err != nil {
		return err
	}
	w.personal.SetDraft(form)
	return nil
}

func (w *Wizard) SetFamilyFinancialInfoDraft(form models.FamilyFinancialInfoForm) error {
	if err := w.lockIdle(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if err := w.requireActive(StepFamilyFinancialInfo); err != nil {
		return err
	}
	w.family.SetDraft(form)
	return nil
}

func (w *Wizard) SetSituationDescriptionsDraft(form models.SituationDescriptionsForm) error {
	if err := w.lockIdle(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if err := w.requireActive(StepSituationDescriptions); err != nil {
		return err
	}
	w.situation.SetDraft(form)
	return nil
}

// Suggest starts generating text for field on step 2. A non-positive
// timeout uses the configured one.
func (w *Wizard) Suggest(field models.SituationField, timeout time.Duration) error {
	if err := w.lockIdle(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if err := w.requireActive(StepSituationDescriptions); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = w.suggestionTimeout
	}

	err := w.situation.Suggest(field, timeout)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, suggestion.ErrInFlight):
		return apperrors.NewSuggestionInFlightError(string(w.situation.Suggestion().Field))
	case stderrors.Is(err, ai.ErrUnknownField):
		return apperrors.NewInvalidRequestError(fmt.Sprintf("unknown field %q", field))
	default:
		return apperrors.NewSuggestionFailedError(err)
	}
}

// WaitSuggestion blocks until the running suggestion, if any, settles.
func (w *Wizard) WaitSuggestion(ctx context.Context) error {
	return w.situation.WaitSuggestion(ctx)
}

func (w *Wizard) EditSuggestion(text string) bool {
	return w.situation.EditSuggestion(text)
}

// AcceptSuggestion writes the suggestion into its field of the step 2
// draft. It reports false when there was nothing to accept, when step 2 is
// not showing or while a submit is running.
func (w *Wizard) AcceptSuggestion() bool {
	if err := w.lockIdle(); err != nil {
		return false
	}
	defer w.mu.Unlock()
	if err := w.requireActive(StepSituationDescriptions); err != nil {
		return false
	}
	return w.situation.AcceptSuggestion()
}

func (w *Wizard) DiscardSuggestion() error {
	if err := w.situation.DiscardSuggestion(); err != nil {
		return apperrors.NewSuggestionInFlightError(string(w.situation.Suggestion().Field))
	}
	return nil
}

type nopProgress struct{}

func (nopProgress) Load(context.Context) (*models.PersistedRecord, bool) { return nil, false }

func (nopProgress) Save(context.Context, models.PersistedRecord) {}

func (nopProgress) Clear(context.Context) {}
