package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"social-support-wizard/internal/ai"
	apperrors "social-support-wizard/internal/common/errors"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/models"
	"social-support-wizard/internal/wizard/schema"
	"social-support-wizard/internal/wizard/storage"
	"social-support-wizard/internal/wizard/suggestion"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose view worker starts at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var testRules = schema.NewRules(func() time.Time { return time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC) })

type memoryProgress struct {
	mu      sync.Mutex
	rec     *models.PersistedRecord
	saves   int
	cleared bool
}

func (p *memoryProgress) Load(context.Context) (*models.PersistedRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rec == nil {
		return nil, false
	}
	rec := *p.rec
	return &rec, true
}

func (p *memoryProgress) Save(_ context.Context, rec models.PersistedRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rec = &rec
	p.saves++
}

func (p *memoryProgress) Clear(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rec = nil
	p.cleared = true
}

func (p *memoryProgress) snapshot() (*models.PersistedRecord, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec, p.saves
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []models.Submission
	lang    string
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, sub models.Submission) (models.Receipt, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sub)
	f.lang = i18n.FromContext(ctx).Lang()
	if f.err != nil {
		return models.Receipt{}, f.err
	}
	return models.Receipt{ApplicationID: "app-123", Status: models.ApplicationStatusSubmitted}, nil
}

func validPersonal() models.PersonalInfo {
	return models.PersonalInfo{
		Name: "Layla Ahmed", NationalID: "784198500001", DateOfBirth: models.NewDate(1985, time.June, 1),
		Gender: models.GenderFemale, Address: "Villa 3, Al Barsha", City: "Dubai", State: "Dubai",
		Country: "UAE", Phone: "+971501234567", Email: "layla@example.com",
	}
}

func validFamily() models.FamilyFinancialInfo {
	return models.FamilyFinancialInfo{
		MaritalStatus: models.MaritalWidowed, Dependents: 0, EmploymentStatus: models.EmploymentUnemployed,
		MonthlyIncome: decimal.NewFromInt(800), HousingStatus: models.HousingRent,
	}
}

func validSituation() models.SituationDescriptionsForm {
	return models.SituationDescriptionsForm{
		CurrentFinancialSituation: "Savings are gone.",
		EmploymentCircumstances:   "Looking for work since January.",
		ReasonForApplying:         "To cover rent for my children.",
	}
}

func newWizard(t *testing.T, progress *memoryProgress, sub Submitter) *Wizard {
	t.Helper()
	w := New(Options{
		Rules:     testRules,
		Submitter: sub,
		Progress:  progress,
		Logger:    logger.NewTestLogger(t),
	})
	t.Cleanup(w.Close)
	w.Mount(context.Background())
	return w
}

func TestMount_FreshSession(t *testing.T) {
	progress := &memoryProgress{}
	w := newWizard(t, progress, &fakeSubmitter{})

	assert.Equal(t, StepPersonalInfo, w.ActiveStep())
	assert.Equal(t, models.ApplicationData{}, w.Data())
	_, saves := progress.snapshot()
	assert.Zero(t, saves)
}

func TestMount_ResumesAtFurthestSection(t *testing.T) {
	family := validFamily()
	personal := validPersonal()
	situation := models.SituationDescriptions{ReasonForApplying: "half written"}

	tests := []struct {
		name string
		rec  models.PersistedRecord
		want int
	}{
		{"family only", models.PersistedRecord{FamilyFinancialInfo: &family}, StepFamilyFinancialInfo},
		{"personal only", models.PersistedRecord{PersonalInfo: &personal}, StepPersonalInfo},
		{"partial situation", models.PersistedRecord{PersonalInfo: &personal, SituationDescriptions: &situation}, StepSituationDescriptions},
		{"stored but empty sections", models.PersistedRecord{
			FamilyFinancialInfo:   &models.FamilyFinancialInfo{},
			SituationDescriptions: &models.SituationDescriptions{},
		}, StepPersonalInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			progress := &memoryProgress{rec: &rec}
			w := newWizard(t, progress, &fakeSubmitter{})

			assert.Equal(t, tt.want, w.ActiveStep())
			_, saves := progress.snapshot()
			assert.Zero(t, saves, "rehydration must not write back")
		})
	}
}

func TestMount_MergesStoredSections(t *testing.T) {
	family := validFamily()
	progress := &memoryProgress{rec: &models.PersistedRecord{FamilyFinancialInfo: &family}}
	w := newWizard(t, progress, &fakeSubmitter{})

	data := w.Data()
	assert.True(t, data.FamilyFinancialInfo.MonthlyIncome.Equal(decimal.NewFromInt(800)))
	assert.True(t, data.PersonalInfo.IsEmpty())
	assert.Equal(t, "800", w.View().Drafts.FamilyFinancialInfo.MonthlyIncome)
}

func TestSave_CommitsAndNotifies(t *testing.T) {
	progress := &memoryProgress{}
	w := newWizard(t, progress, &fakeSubmitter{})

	require.NoError(t, w.SetPersonalInfoDraft(validPersonal().Form()))
	res, err := w.Save(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK)

	assert.True(t, w.Data().PersonalInfo.DateOfBirth.Equal(validPersonal().DateOfBirth))
	assert.Equal(t, validPersonal().Name, w.Data().PersonalInfo.Name)
	assert.Equal(t, StepPersonalInfo, w.ActiveStep())

	v := w.View()
	assert.Equal(t, "socialSupportFormWizard.savedSuccessfully", v.Notice)
	assert.Equal(t, models.SectionPersonalInfo, v.NoticeSection)

	rec, _ := progress.snapshot()
	require.NotNil(t, rec)
	require.NotNil(t, rec.PersonalInfo)
	assert.Nil(t, rec.FamilyFinancialInfo)

	w.DismissNotice()
	assert.Empty(t, w.View().Notice)
}

func TestSave_InvalidLeavesErrors(t *testing.T) {
	w := newWizard(t, &memoryProgress{}, &fakeSubmitter{})

	form := validPersonal().Form()
	form.Email = "broken"
	require.NoError(t, w.SetPersonalInfoDraft(form))

	res, err := w.Save(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "validation.emailInvalid", w.View().Errors["email"])
	assert.Empty(t, w.View().Notice)
	assert.True(t, w.Data().PersonalInfo.IsEmpty())
}

func TestNavigation(t *testing.T) {
	w := newWizard(t, &memoryProgress{}, &fakeSubmitter{})

	var stdErr *apperrors.StandardError
	err := w.Back()
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeInvalidStepTransition, stdErr.Code)

	// Next is permissive and drops what was never saved.
	require.NoError(t, w.SetPersonalInfoDraft(models.PersonalInfoForm{Name: "unsaved"}))
	require.NoError(t, w.Next())
	assert.Equal(t, StepFamilyFinancialInfo, w.ActiveStep())
	require.NoError(t, w.Back())
	assert.Empty(t, w.View().Drafts.PersonalInfo.Name)

	require.NoError(t, w.Next())
	require.NoError(t, w.Next())
	assert.Equal(t, StepSituationDescriptions, w.ActiveStep())
	assert.Error(t, w.Next())

	// Only the active step's draft may be edited.
	assert.Error(t, w.SetPersonalInfoDraft(models.PersonalInfoForm{}))
	assert.Error(t, w.TryAgain())
}

func TestSubmit_OnlyFromLastStep(t *testing.T) {
	w := newWizard(t, &memoryProgress{}, &fakeSubmitter{})
	assert.Error(t, w.Submit(context.Background()))
}

// prefilled returns a wizard on step 2 with valid first two sections.
func prefilled(t *testing.T, sub Submitter) (*Wizard, *memoryProgress) {
	t.Helper()
	personal, family := validPersonal(), validFamily()
	progress := &memoryProgress{rec: &models.PersistedRecord{PersonalInfo: &personal, FamilyFinancialInfo: &family}}
	w := newWizard(t, progress, sub)
	require.NoError(t, w.Next())
	require.NoError(t, w.Next())
	require.Equal(t, StepSituationDescriptions, w.ActiveStep())
	return w, progress
}

func TestSubmit_InvalidSituationStaysOnLastStep(t *testing.T) {
	sub := &fakeSubmitter{}
	w, _ := prefilled(t, sub)
	before := w.Data()

	form := validSituation()
	form.ReasonForApplying = "   "
	require.NoError(t, w.SetSituationDescriptionsDraft(form))
	require.NoError(t, w.Submit(context.Background()))

	assert.Equal(t, StepSituationDescriptions, w.ActiveStep())
	v := w.View()
	assert.Nil(t, v.Terminal)
	assert.Equal(t, "socialSupportFormWizard.validationError", v.Banner)
	assert.Equal(t, "validation.reasonForApplyingRequired", v.Errors["reasonForApplying"])
	assert.True(t, before.Equal(w.Data()))
	assert.Empty(t, sub.calls)

	w.DismissError()
	assert.Empty(t, w.View().Banner)
}

func TestSubmit_RoutesToFirstFailingSection(t *testing.T) {
	personal := validPersonal()
	personal.Phone = ""
	family := validFamily()
	family.MaritalStatus = ""
	progress := &memoryProgress{rec: &models.PersistedRecord{PersonalInfo: &personal, FamilyFinancialInfo: &family}}
	w := newWizard(t, progress, &fakeSubmitter{})
	require.Equal(t, StepFamilyFinancialInfo, w.ActiveStep())
	require.NoError(t, w.Next())

	require.NoError(t, w.SetSituationDescriptionsDraft(validSituation()))
	require.NoError(t, w.Submit(context.Background()))

	assert.Equal(t, StepPersonalInfo, w.ActiveStep())
	v := w.View()
	assert.Equal(t, "socialSupportFormWizard.validationError", v.Banner)
	assert.Equal(t, "validation.phoneRequired", v.Errors["phone"])
	// The valid situation section was still committed.
	assert.Equal(t, "Savings are gone.", w.Data().SituationDescriptions.CurrentFinancialSituation)
}

func TestSubmit_Success(t *testing.T) {
	sub := &fakeSubmitter{}
	w, progress := prefilled(t, sub)

	require.NoError(t, w.SetSituationDescriptionsDraft(validSituation()))
	require.NoError(t, w.Submit(context.Background()))

	assert.Equal(t, StepTerminal, w.ActiveStep())
	require.Len(t, sub.calls, 1)
	assert.Equal(t, "1985-06-01", sub.calls[0].PersonalInfo.DateOfBirth)
	assert.Equal(t, "en", sub.lang)

	v := w.View()
	require.NotNil(t, v.Terminal)
	assert.Equal(t, OutcomeSubmitted, v.Terminal.Outcome)
	assert.Equal(t, "app-123", v.Terminal.Receipt.ApplicationID)
	assert.Equal(t, "socialSupportFormWizard.thankYouMessage", v.Terminal.Message)
	assert.Empty(t, v.Banner)

	require.NoError(t, w.StartNew(context.Background()))
	assert.Equal(t, StepPersonalInfo, w.ActiveStep())
	assert.Equal(t, models.ApplicationData{}, w.Data())
	assert.Nil(t, w.View().Terminal)
	rec, _ := progress.snapshot()
	assert.Nil(t, rec)
	assert.True(t, progress.cleared)
}

func TestSubmit_SinkFailureThenTryAgain(t *testing.T) {
	sub := &fakeSubmitter{err: apperrors.NewSubmissionFailedError(errors.New("intake down"))}
	w, _ := prefilled(t, sub)

	require.NoError(t, w.SetSituationDescriptionsDraft(validSituation()))
	require.NoError(t, w.Submit(context.Background()))

	v := w.View()
	assert.Equal(t, StepTerminal, v.ActiveStep)
	require.NotNil(t, v.Terminal)
	assert.Equal(t, OutcomeFailed, v.Terminal.Outcome)
	assert.Equal(t, "socialSupportFormWizard.tryAgain", v.Terminal.Action)

	require.NoError(t, w.TryAgain())
	assert.Equal(t, StepSituationDescriptions, w.ActiveStep())
	assert.Equal(t, validSituation(), w.View().Drafts.SituationDescriptions)

	sub.err = nil
	require.NoError(t, w.Submit(context.Background()))
	assert.Equal(t, OutcomeSubmitted, w.View().Terminal.Outcome)
}

func TestSubmit_RejectsConcurrentCalls(t *testing.T) {
	sub := &fakeSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	w, _ := prefilled(t, sub)
	require.NoError(t, w.SetSituationDescriptionsDraft(validSituation()))

	done := make(chan error, 1)
	go func() { done <- w.Submit(context.Background()) }()
	<-sub.entered

	assert.True(t, w.View().Submitting)
	assert.Error(t, w.Submit(context.Background()))
	assert.Error(t, w.Back())
	_, err := w.Save(context.Background())
	assert.Error(t, err)

	close(sub.release)
	require.NoError(t, <-done)
	assert.False(t, w.View().Submitting)
	assert.Equal(t, StepTerminal, w.ActiveStep())
}

// explodingLocalizer panics on lookups once armed.
type explodingLocalizer struct {
	i18n.Identity
	armed bool
}

func (e *explodingLocalizer) T(key string, params ...i18n.Param) string {
	if e.armed {
		panic("catalog unavailable")
	}
	return e.Identity.T(key, params...)
}

func TestSubmit_PanicBecomesValidationFailure(t *testing.T) {
	sub := &fakeSubmitter{}
	w, _ := prefilled(t, sub)
	loc := &explodingLocalizer{}
	w.SetLocalizer(loc)

	require.NoError(t, w.SetSituationDescriptionsDraft(models.SituationDescriptionsForm{}))
	loc.armed = true
	require.NotPanics(t, func() { require.NoError(t, w.Submit(context.Background())) })
	loc.armed = false

	assert.Equal(t, StepSituationDescriptions, w.ActiveStep())
	assert.Equal(t, "socialSupportFormWizard.validationError", w.View().Banner)
	assert.Empty(t, sub.calls)
}

func TestSetLocalizer_SwitchesDirectionAndMessages(t *testing.T) {
	bundle, err := i18n.NewBundle("en", []string{"en", "ar"})
	require.NoError(t, err)

	w := New(Options{Rules: testRules, Localizer: bundle.For("en"), Progress: &memoryProgress{}})
	defer w.Close()
	w.Mount(context.Background())

	_, err = w.Save(context.Background())
	require.NoError(t, err)
	english := w.View()
	assert.Equal(t, i18n.LTR, english.Direction)

	w.SetLocalizer(bundle.For("ar"))
	arabic := w.View()
	assert.Equal(t, i18n.RTL, arabic.Direction)
	assert.Equal(t, "rtl", arabic.LayoutClass)
	assert.NotEqual(t, english.Errors["name"], arabic.Errors["name"])
	assert.NotEqual(t, english.Steps[0].Label, arabic.Steps[0].Label)
	assert.Len(t, arabic.Options["housingStatus"], len(models.HousingStatusOptions))
}

type scriptedGenerator struct{ text string }

func (g scriptedGenerator) Generate(context.Context, ai.Request) (string, error) {
	return g.text, nil
}

func TestSuggestion_AcceptNeedsSave(t *testing.T) {
	personal, family := validPersonal(), validFamily()
	w := New(Options{
		Rules:     testRules,
		Generator: scriptedGenerator{text: "My hours were cut in half."},
		Progress:  &memoryProgress{rec: &models.PersistedRecord{PersonalInfo: &personal, FamilyFinancialInfo: &family}},
	})
	defer w.Close()
	w.Mount(context.Background())

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, w.Suggest(models.FieldEmploymentCircumstances, 0), &stdErr)
	assert.Equal(t, apperrors.ErrCodeInvalidStepTransition, stdErr.Code)

	require.NoError(t, w.Next())
	require.NoError(t, w.Suggest(models.FieldEmploymentCircumstances, time.Second))
	require.NoError(t, w.WaitSuggestion(context.Background()))
	assert.Equal(t, suggestion.Ready, w.View().Suggestion.State)

	require.True(t, w.AcceptSuggestion())
	assert.Equal(t, "My hours were cut in half.", w.View().Drafts.SituationDescriptions.EmploymentCircumstances)
	assert.Empty(t, w.Data().SituationDescriptions.EmploymentCircumstances)

	require.ErrorAs(t, w.Suggest("nickname", 0), &stdErr)
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, stdErr.Code)
}

func TestSuggestion_FailureIsLocalized(t *testing.T) {
	w := New(Options{Rules: testRules})
	defer w.Close()
	w.Mount(context.Background())
	require.NoError(t, w.Next())
	require.NoError(t, w.Next())

	require.NoError(t, w.Suggest(models.FieldReasonForApplying, 0))
	require.NoError(t, w.WaitSuggestion(context.Background()))

	v := w.View()
	assert.Equal(t, suggestion.Failed, v.Suggestion.State)
	assert.Equal(t, ai.KindNotConfigured, v.Suggestion.ErrorKind)
	assert.Equal(t, "aiErrors.notConfigured", v.Suggestion.Error)

	require.NoError(t, w.DiscardSuggestion())
	assert.Equal(t, suggestion.Idle, w.View().Suggestion.State)
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, error) { return nil, errors.New("redis down") }

func (failingKV) Set(context.Context, string, []byte) error { return errors.New("redis down") }

func (failingKV) Delete(context.Context, string) error { return errors.New("redis down") }

func TestPersistenceFailureKeepsWorkingInMemory(t *testing.T) {
	log := logger.NewTestLogger(t)
	progress := storage.NewSessions(storage.NewAdapter(failingKV{}, log), "").Progress("s-1")
	sub := &fakeSubmitter{}
	w := New(Options{Rules: testRules, Submitter: sub, Progress: progress, Logger: log})
	defer w.Close()
	w.Mount(context.Background())
	require.Equal(t, StepPersonalInfo, w.ActiveStep())

	ctx := context.Background()
	require.NoError(t, w.SetPersonalInfoDraft(validPersonal().Form()))
	res, err := w.Save(ctx)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, validPersonal().Name, w.Data().PersonalInfo.Name)

	require.NoError(t, w.Next())
	require.NoError(t, w.SetFamilyFinancialInfoDraft(validFamily().Form()))
	res, err = w.Save(ctx)
	require.NoError(t, err)
	require.True(t, res.OK)

	require.NoError(t, w.Next())
	require.NoError(t, w.SetSituationDescriptionsDraft(validSituation()))
	require.NoError(t, w.Submit(ctx))

	assert.Equal(t, StepTerminal, w.ActiveStep())
	require.Len(t, sub.calls, 1)
	assert.Equal(t, validPersonal().Name, sub.calls[0].PersonalInfo.Name)
	require.NoError(t, w.StartNew(ctx))
	assert.Equal(t, models.ApplicationData{}, w.Data())
}

func TestSave_NoticeClearsOnNavigation(t *testing.T) {
	w := newWizard(t, &memoryProgress{}, &fakeSubmitter{})

	require.NoError(t, w.SetPersonalInfoDraft(validPersonal().Form()))
	res, err := w.Save(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK)
	require.NotEmpty(t, w.View().Notice)

	require.NoError(t, w.Next())
	assert.Empty(t, w.View().Notice)
	assert.Empty(t, w.View().NoticeSection)

	require.NoError(t, w.SetFamilyFinancialInfoDraft(validFamily().Form()))
	res, err = w.Save(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK)
	require.NoError(t, w.Back())
	assert.Empty(t, w.View().Notice)
}

func TestSuggestion_AcceptOnlyOnSituationStep(t *testing.T) {
	personal, family := validPersonal(), validFamily()
	w := New(Options{
		Rules:     testRules,
		Generator: scriptedGenerator{text: "Rent went up twice this year."},
		Progress:  &memoryProgress{rec: &models.PersistedRecord{PersonalInfo: &personal, FamilyFinancialInfo: &family}},
	})
	defer w.Close()
	w.Mount(context.Background())
	require.NoError(t, w.Next())
	require.Equal(t, StepSituationDescriptions, w.ActiveStep())

	require.NoError(t, w.Suggest(models.FieldCurrentFinancialSituation, time.Second))
	require.NoError(t, w.WaitSuggestion(context.Background()))
	require.NoError(t, w.Back())

	assert.False(t, w.AcceptSuggestion())
	assert.Equal(t, suggestion.Ready, w.View().Suggestion.State)

	// Back on step 2 the suggestion is still there to accept.
	require.NoError(t, w.Next())
	require.True(t, w.AcceptSuggestion())
	assert.Equal(t, "Rent went up twice this year.", w.View().Drafts.SituationDescriptions.CurrentFinancialSituation)
}

// gatedGenerator blocks until release is closed.
type gatedGenerator struct {
	entered chan struct{}
	release chan struct{}
}

func (g gatedGenerator) Generate(ctx context.Context, _ ai.Request) (string, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return "Late text from an old application.", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestStartNew_DropsSuggestionInFlight(t *testing.T) {
	personal, family := validPersonal(), validFamily()
	gen := gatedGenerator{entered: make(chan struct{}, 1), release: make(chan struct{})}
	w := New(Options{
		Rules:     testRules,
		Generator: gen,
		Progress:  &memoryProgress{rec: &models.PersistedRecord{PersonalInfo: &personal, FamilyFinancialInfo: &family}},
	})
	w.Mount(context.Background())
	require.NoError(t, w.Next())

	require.NoError(t, w.Suggest(models.FieldReasonForApplying, time.Minute))
	<-gen.entered
	require.Equal(t, suggestion.Generating, w.View().Suggestion.State)

	require.NoError(t, w.StartNew(context.Background()))
	assert.Equal(t, suggestion.Idle, w.View().Suggestion.State)

	close(gen.release)
	// Close waits for the generation to return.
	w.Close()

	assert.Equal(t, StepPersonalInfo, w.ActiveStep())
	v := w.View()
	assert.Equal(t, suggestion.Idle, v.Suggestion.State)
	assert.Empty(t, v.Suggestion.Suggestion)
	assert.Empty(t, v.Drafts.SituationDescriptions.ReasonForApplying)
}
