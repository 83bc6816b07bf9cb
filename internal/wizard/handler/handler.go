// Package handler exposes the wizard as a JSON API. Every successful call
// answers with the session's localized view.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "social-support-wizard/internal/common/errors"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/models"
	"social-support-wizard/internal/wizard"
	"social-support-wizard/internal/wizard/session"
)

const maxBody = 64 << 10

type Handler struct {
	sessions *session.Manager
	detector *i18n.Detector
	log      logger.Logger
}

func New(sessions *session.Manager, detector *i18n.Detector, log logger.Logger) *Handler {
	return &Handler{sessions: sessions, detector: detector, log: log}
}

// Routes returns the API router, meant to be mounted at /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.detector.Middleware)

	r.Route("/wizard", func(r chi.Router) {
		r.Get("/", h.view)
		r.Put("/steps/{step}/draft", h.setDraft)

		r.Post("/save", h.save)
		r.Post("/next", h.simple((*wizard.Wizard).Next))
		r.Post("/back", h.simple((*wizard.Wizard).Back))
		r.Post("/submit", h.submit)
		r.Post("/retry", h.simple((*wizard.Wizard).TryAgain))
		r.Post("/reset", h.reset)
		r.Post("/dismiss-error", h.simple(dismissError))
		r.Post("/dismiss-notice", h.simple(dismissNotice))

		r.Route("/suggestions", func(r chi.Router) {
			r.Post("/", h.suggest)
			r.Put("/draft", h.editSuggestion)
			r.Post("/accept", h.acceptSuggestion)
			r.Post("/discard", h.simple((*wizard.Wizard).DiscardSuggestion))
		})
	})
	r.Put("/language", h.switchLanguage)
	return r
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	wz, _, release := h.sessions.Wizard(w, r)
	defer release()
	writeJSON(w, http.StatusOK, wz.View())
}

// simple adapts a wizard operation that needs nothing from the request.
func (h *Handler) simple(op func(*wizard.Wizard) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wz, _, release := h.sessions.Wizard(w, r)
		defer release()
		if err := op(wz); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, wz.View())
	}
}

func dismissError(wz *wizard.Wizard) error {
	wz.DismissError()
	return nil
}

func dismissNotice(wz *wizard.Wizard) error {
	wz.DismissNotice()
	return nil
}

func (h *Handler) setDraft(w http.ResponseWriter, r *http.Request) {
	wz, _, release := h.sessions.Wizard(w, r)
	defer release()

	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		h.writeError(w, r, apperrors.NewInvalidRequestError("step must be 0, 1 or 2"))
		return
	}

	switch step {
	case wizard.StepPersonalInfo:
		var form models.PersonalInfoForm
		if err = decode(r, &form); err == nil {
			err = wz.SetPersonalInfoDraft(form)
		}
	case wizard.StepFamilyFinancialInfo:
		var form models.FamilyFinancialInfoForm
		if err = decode(r, &form); err == nil {
			err = wz.SetFamilyFinancialInfoDraft(form)
		}
	case wizard.StepSituationDescriptions:
		var form models.SituationDescriptionsForm
		if err = decode(r, &form); err == nil {
			err = wz.SetSituationDescriptionsDraft(form)
		}
	default:
		err = apperrors.NewInvalidRequestError(fmt.Sprintf("step %d has no form", step))
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.View())
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	wz, _, release := h.sessions.Wizard(w, r)
	defer release()
	res, err := wz.Save(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, wz.View())
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	wz, id, release := h.sessions.Wizard(w, r)
	defer release()
	if err := wz.Submit(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	v := wz.View()
	h.log.Info("submit handled", map[string]interface{}{
		"sessionId":  id,
		"activeStep": v.ActiveStep,
		"terminal":   v.Terminal != nil,
	})
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	wz, _, release := h.sessions.Wizard(w, r)
	defer release()
	if err := wz.StartNew(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.View())
}

type suggestRequest struct {
	Field     models.SituationField `json:"field"`
	TimeoutMs int                   `json:"timeoutMs,omitempty"`
}

// suggest starts generation and answers 202 at once, or waits for the
// outcome with ?wait=true.
func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	wz, _, release := h.sessions.Wizard(w, r)
	defer release()

	var req suggestRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.TimeoutMs < 0 {
		h.writeError(w, r, apperrors.NewInvalidRequestError("timeoutMs must not be negative"))
		return
	}
	if err := wz.Suggest(req.Field, time.Duration(req.TimeoutMs)*time.Millisecond); err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if err := wz.WaitSuggestion(r.Context()); err != nil {
			h.writeError(w, r, apperrors.NewTimeoutError("suggestion", err))
			return
		}
		status = http.StatusOK
	}
	writeJSON(w, status, wz.View())
}

type editSuggestionRequest struct {
	Text string `json:"text"`
}

func (h *Handler) editSuggestion(w http.ResponseWriter, r *http.Request) {
	wz, _, release := h.sessions.Wizard(w, r)
	defer release()

	var req editSuggestionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !wz.EditSuggestion(req.Text) {
		h.writeError(w, r, apperrors.NewInvalidStepTransitionError("no suggestion is ready to edit"))
		return
	}
	writeJSON(w, http.StatusOK, wz.View())
}

func (h *Handler) acceptSuggestion(w http.ResponseWriter, r *http.Request) {
	wz, _, release := h.sessions.Wizard(w, r)
	defer release()
	if !wz.AcceptSuggestion() {
		h.writeError(w, r, apperrors.NewInvalidStepTransitionError("no suggestion text to accept"))
		return
	}
	writeJSON(w, http.StatusOK, wz.View())
}

type languageRequest struct {
	Lng string `json:"lng"`
}

func (h *Handler) switchLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, ok := h.detector.Switch(w, r, req.Lng)
	if !ok {
		h.writeError(w, r, apperrors.NewInvalidRequestError(fmt.Sprintf("language %q is not supported", req.Lng)))
		return
	}

	wz, _, release := h.sessions.Wizard(w, r.WithContext(i18n.WithLocalizer(r.Context(), t)))
	defer release()
	writeJSON(w, http.StatusOK, wz.View())
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewInvalidRequestError("request body is empty")
		}
		return apperrors.NewInvalidRequestError(err.Error())
	}
	return nil
}

type errorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr, ok := apperrors.As(err)
	if !ok {
		stdErr = apperrors.NewInternalError(err)
	}
	status := apperrors.HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"path":   r.URL.Path,
		"code":   stdErr.Code,
		"status": status,
	}
	if status >= http.StatusInternalServerError {
		fields["error"] = err.Error()
		h.log.Error("wizard request failed", fields)
	} else {
		h.log.Debug("wizard request rejected", fields)
	}

	writeJSON(w, status, errorBody{Code: stdErr.Code, Message: stdErr.Message, Details: stdErr.Details})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
