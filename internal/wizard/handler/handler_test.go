package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	"social-support-wizard/internal/ai"
	apperrors "social-support-wizard/internal/common/errors"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/models"
	"social-support-wizard/internal/wizard"
	"social-support-wizard/internal/wizard/schema"
	"social-support-wizard/internal/wizard/session"
	"social-support-wizard/internal/wizard/storage"
	"social-support-wizard/internal/wizard/suggestion"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose view worker starts at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	return "Suggested text for " + string(req.Field), nil
}

type HandlerTestSuite struct {
	suite.Suite
	sessions *session.Manager
	router   http.Handler
	cookies  map[string]*http.Cookie
}

func (s *HandlerTestSuite) SetupTest() {
	log := logger.NewTestLogger(s.T())
	bundle, err := i18n.NewBundle("en", []string{"en", "ar"})
	s.Require().NoError(err)

	prefs := storage.NewSessions(storage.NewAdapter(storage.NewMemory(), log), "")
	s.sessions = session.NewManager(session.Config{}, prefs, wizard.Options{
		Rules:     schema.NewRules(func() time.Time { return time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC) }),
		Generator: echoGenerator{},
		Logger:    log,
	}, log)
	detector := i18n.NewDetector(bundle, prefs, s.sessions.ID, false)

	s.router = New(s.sessions, detector, log).Routes()
	s.cookies = map[string]*http.Cookie{}
}

func (s *HandlerTestSuite) TearDownTest() {
	s.sessions.Close()
}

// do sends a request carrying every cookie received so far.
func (s *HandlerTestSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range s.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		s.cookies[c.Name] = c
	}
	return rec
}

func (s *HandlerTestSuite) view(rec *httptest.ResponseRecorder) wizard.View {
	var v wizard.View
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (s *HandlerTestSuite) errorCode(rec *httptest.ResponseRecorder) apperrors.ErrorCode {
	var body errorBody
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func personalForm() models.PersonalInfoForm {
	return models.PersonalInfoForm{
		Name: "Fatima Hassan", NationalID: "784199012345", DateOfBirth: "1990-02-11", Gender: "female",
		Address: "Building 12, Al Nahda", City: "Dubai", State: "Dubai", Country: "UAE",
		Phone: "+971509876543", Email: "fatima@example.com",
	}
}

func familyForm() models.FamilyFinancialInfoForm {
	return models.FamilyFinancialInfoForm{
		MaritalStatus: "married", Dependents: "4", EmploymentStatus: "employed",
		MonthlyIncome: "4200.00", HousingStatus: "rent",
	}
}

func (s *HandlerTestSuite) TestView_NewSession() {
	rec := s.do(http.MethodGet, "/wizard/", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(s.cookies, session.DefaultCookieName)
	s.Contains(s.cookies, i18n.CookieName)

	v := s.view(rec)
	s.Equal("en", v.Language)
	s.Equal(i18n.LTR, v.Direction)
	s.Equal(wizard.StepPersonalInfo, v.ActiveStep)
	s.Len(v.Steps, 3)
	s.Equal("Personal Information", v.Steps[0].Label)
	s.Len(v.Options["gender"], 3)
}

func (s *HandlerTestSuite) TestView_QueryLanguage() {
	v := s.view(s.do(http.MethodGet, "/wizard/?lng=ar", nil))
	s.Equal("ar", v.Language)
	s.Equal(i18n.RTL, v.Direction)
	s.Equal("rtl", v.LayoutClass)
}

func (s *HandlerTestSuite) TestFullFlow() {
	rec := s.do(http.MethodPut, "/wizard/steps/0/draft", personalForm())
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/wizard/save", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Your progress has been saved.", s.view(rec).Notice)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/wizard/next", nil).Code)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPut, "/wizard/steps/1/draft", familyForm()).Code)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/wizard/save", nil).Code)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/wizard/next", nil).Code)

	rec = s.do(http.MethodPut, "/wizard/steps/2/draft", models.SituationDescriptionsForm{
		CurrentFinancialSituation: "Rent doubled this year.",
		EmploymentCircumstances:   "Part-time retail work.",
		ReasonForApplying:         "Help with school fees.",
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	v := s.view(s.do(http.MethodPost, "/wizard/submit", nil))
	s.Equal(wizard.StepTerminal, v.ActiveStep)
	s.Require().NotNil(v.Terminal)
	s.Equal(wizard.OutcomeSubmitted, v.Terminal.Outcome)
	s.Require().NotNil(v.Terminal.Receipt)
	s.Contains(v.Terminal.Message, v.Terminal.Receipt.ApplicationID)

	v = s.view(s.do(http.MethodPost, "/wizard/reset", nil))
	s.Equal(wizard.StepPersonalInfo, v.ActiveStep)
	s.Empty(v.Drafts.PersonalInfo.Name)
}

func (s *HandlerTestSuite) TestSave_Invalid() {
	form := personalForm()
	form.Phone = "0501234567"
	s.do(http.MethodPut, "/wizard/steps/0/draft", form)

	rec := s.do(http.MethodPost, "/wizard/save", nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.NotEmpty(s.view(rec).Errors["phone"])
}

func (s *HandlerTestSuite) TestSubmit_InvalidShowsBanner() {
	s.do(http.MethodPost, "/wizard/next", nil)
	s.do(http.MethodPost, "/wizard/next", nil)

	v := s.view(s.do(http.MethodPost, "/wizard/submit", nil))
	s.Equal(wizard.StepPersonalInfo, v.ActiveStep)
	s.Equal("Please correct the highlighted errors before submitting.", v.Banner)

	v = s.view(s.do(http.MethodPost, "/wizard/dismiss-error", nil))
	s.Empty(v.Banner)
}

func (s *HandlerTestSuite) TestRejectedRequests() {
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   apperrors.ErrorCode
	}{
		{"back from first step", http.MethodPost, "/wizard/back", nil, http.StatusConflict, apperrors.ErrCodeInvalidStepTransition},
		{"retry without failure", http.MethodPost, "/wizard/retry", nil, http.StatusConflict, apperrors.ErrCodeInvalidStepTransition},
		{"draft for inactive step", http.MethodPut, "/wizard/steps/2/draft", models.SituationDescriptionsForm{}, http.StatusConflict, apperrors.ErrCodeInvalidStepTransition},
		{"step out of range", http.MethodPut, "/wizard/steps/7/draft", map[string]string{}, http.StatusBadRequest, apperrors.ErrCodeInvalidRequest},
		{"step not a number", http.MethodPut, "/wizard/steps/first/draft", map[string]string{}, http.StatusBadRequest, apperrors.ErrCodeInvalidRequest},
		{"unknown draft field", http.MethodPut, "/wizard/steps/0/draft", map[string]string{"nickname": "x"}, http.StatusBadRequest, apperrors.ErrCodeInvalidRequest},
		{"empty body", http.MethodPut, "/wizard/steps/0/draft", nil, http.StatusBadRequest, apperrors.ErrCodeInvalidRequest},
		{"suggest off step 2", http.MethodPost, "/wizard/suggestions/", suggestRequest{Field: models.FieldReasonForApplying}, http.StatusConflict, apperrors.ErrCodeInvalidStepTransition},
		{"accept with nothing ready", http.MethodPost, "/wizard/suggestions/accept", nil, http.StatusConflict, apperrors.ErrCodeInvalidStepTransition},
		{"unsupported language", http.MethodPut, "/language", languageRequest{Lng: "fr"}, http.StatusBadRequest, apperrors.ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(tt.method, tt.path, tt.body)
			s.Equal(tt.status, rec.Code)
			s.Equal(tt.code, s.errorCode(rec))
		})
	}
}

func (s *HandlerTestSuite) TestSuggestionFlow() {
	s.do(http.MethodPost, "/wizard/next", nil)
	s.do(http.MethodPost, "/wizard/next", nil)

	rec := s.do(http.MethodPost, "/wizard/suggestions/?wait=true", suggestRequest{Field: models.FieldEmploymentCircumstances, TimeoutMs: 2000})
	s.Require().Equal(http.StatusOK, rec.Code)
	v := s.view(rec)
	s.Equal(suggestion.Ready, v.Suggestion.State)
	s.Equal("Suggested text for employmentCircumstances", v.Suggestion.Suggestion)

	rec = s.do(http.MethodPut, "/wizard/suggestions/draft", editSuggestionRequest{Text: "Edited by hand."})
	s.Require().Equal(http.StatusOK, rec.Code)

	v = s.view(s.do(http.MethodPost, "/wizard/suggestions/accept", nil))
	s.Equal(suggestion.Idle, v.Suggestion.State)
	s.Equal("Edited by hand.", v.Drafts.SituationDescriptions.EmploymentCircumstances)

	rec = s.do(http.MethodPost, "/wizard/suggestions/", suggestRequest{Field: "nickname"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/wizard/suggestions/", suggestRequest{Field: models.FieldReasonForApplying, TimeoutMs: -1})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerTestSuite) TestSwitchLanguage() {
	s.do(http.MethodPost, "/wizard/save", nil)

	rec := s.do(http.MethodPut, "/language", languageRequest{Lng: "ar"})
	s.Require().Equal(http.StatusOK, rec.Code)
	v := s.view(rec)
	s.Equal("ar", v.Language)
	s.Equal(i18n.RTL, v.Direction)
	s.NotEmpty(v.Errors["name"])
	s.Equal("ar", s.cookies[i18n.CookieName].Value)

	// The cookie keeps the choice on later requests.
	v = s.view(s.do(http.MethodGet, "/wizard/", nil))
	s.Equal("ar", v.Language)
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}
