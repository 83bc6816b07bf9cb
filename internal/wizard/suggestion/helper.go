// Package suggestion tracks the single AI suggestion a wizard session may
// have open at a time.
package suggestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"social-support-wizard/internal/ai"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/metrics"
	"social-support-wizard/internal/models"
)

type State string

const (
	Idle       State = "idle"
	Generating State = "generating"
	Ready      State = "ready"
	Failed     State = "failed"
)

// ErrInFlight is returned while a generation is running; there is no way to
// cancel one from the outside.
var ErrInFlight = errors.New("suggestion already in flight")

// Session is the observable state of the helper.
type Session struct {
	State      State                 `json:"state"`
	Field      models.SituationField `json:"field,omitempty"`
	Suggestion string                `json:"suggestion,omitempty"`
	Draft      string                `json:"draft,omitempty"`
	ErrorKind  ai.Kind               `json:"errorKind,omitempty"`
	// StatusCode is set for ai.KindUpstreamStatus.
	StatusCode int `json:"statusCode,omitempty"`
}

type Helper struct {
	gen ai.Generator
	log logger.Logger

	// base outlives the request that started a generation; Close cancels it.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	session Session
	seq     uint64
	done    chan struct{}
}

func NewHelper(gen ai.Generator, log logger.Logger) *Helper {
	base, cancel := context.WithCancel(context.Background())
	closed := make(chan struct{})
	close(closed)
	return &Helper{
		gen:     gen,
		log:     log,
		base:    base,
		cancel:  cancel,
		session: Session{State: Idle},
		done:    closed,
	}
}

// Start begins generating a suggestion for field in the background. An open
// Ready or Failed session is replaced. A non-positive timeout uses the
// generator default.
func (h *Helper) Start(field models.SituationField, current string, timeout time.Duration) error {
	if !field.Valid() {
		return ai.ErrUnknownField
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session.State == Generating {
		return ErrInFlight
	}
	if h.base.Err() != nil {
		return context.Canceled
	}

	h.seq++
	seq := h.seq
	done := make(chan struct{})
	h.done = done
	h.session = Session{State: Generating, Field: field}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer close(done)
		h.generate(seq, ai.Request{Field: field, CurrentValue: current, Timeout: timeout})
	}()
	return nil
}

func (h *Helper) generate(seq uint64, req ai.Request) {
	start := time.Now()
	text, err := h.gen.Generate(h.base, req)
	metrics.SuggestionLatency.WithLabelValues(string(req.Field)).Observe(time.Since(start).Seconds())

	kind := ai.Classify(err)
	outcome := "ok"
	if kind != ai.KindNone {
		outcome = string(kind)
	}
	metrics.SuggestionRequests.WithLabelValues(string(req.Field), outcome).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	if seq != h.seq {
		return
	}

	if err != nil {
		h.log.Warn("suggestion generation failed", map[string]interface{}{
			"field": req.Field,
			"kind":  kind,
			"error": err.Error(),
		})
		s := Session{State: Failed, Field: req.Field, ErrorKind: kind}
		var statusErr *ai.StatusError
		if errors.As(err, &statusErr) {
			s.StatusCode = statusErr.StatusCode
		}
		h.session = s
		return
	}

	h.session = Session{State: Ready, Field: req.Field, Suggestion: text, Draft: text}
}

// Wait blocks until the current generation, if any, has settled.
func (h *Helper) Wait(ctx context.Context) error {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetDraft edits the buffer of a Ready suggestion. It reports false in any
// other state.
func (h *Helper) SetDraft(text string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session.State != Ready {
		return false
	}
	h.session.Draft = text
	return true
}

// Accept hands out the edited draft, or the original suggestion when the
// draft was cleared, and closes the session. Nothing happens when there is
// no Ready suggestion or both texts are empty.
func (h *Helper) Accept() (models.SituationField, string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session.State != Ready {
		return "", "", false
	}

	value := h.session.Draft
	if strings.TrimSpace(value) == "" {
		value = h.session.Suggestion
	}
	if strings.TrimSpace(value) == "" {
		return "", "", false
	}

	field := h.session.Field
	h.session = Session{State: Idle}
	return field, value, true
}

// Discard closes a Ready or Failed session without handing out a value.
func (h *Helper) Discard() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session.State == Generating {
		return ErrInFlight
	}
	h.session = Session{State: Idle}
	return nil
}

// Reset forgets the session in any state. A generation still running is
// left to finish and its result is dropped.
func (h *Helper) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.session = Session{State: Idle}
	closed := make(chan struct{})
	close(closed)
	h.done = closed
}

func (h *Helper) Snapshot() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// Close cancels any running generation and waits for it to return.
func (h *Helper) Close() {
	h.cancel()
	h.wg.Wait()
}
