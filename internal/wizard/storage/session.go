package storage

import (
	"context"

	"social-support-wizard/internal/common/validation"
	"social-support-wizard/internal/models"
)

const languageKey = "i18nextLng"

const recordSchema = `{
  "type": "object",
  "properties": {
    "personalInfo": {"type": "object"},
    "familyFinancialInfo": {
      "type": "object",
      "properties": {
        "dependents": {"type": "integer"},
        "monthlyIncome": {"type": ["string", "number"]}
      }
    },
    "situationDescriptions": {"type": "object"}
  }
}`

var persistedRecordSchema = validation.MustCompile(recordSchema)

// Sessions namespaces saved progress and language preference per browser
// session: wizard:<sessionId>:<name>.
type Sessions struct {
	adapter *Adapter
	key     string
}

// NewSessions keeps the progress record under the logical name key
// (formData by default).
func NewSessions(adapter *Adapter, key string) *Sessions {
	if key == "" {
		key = "formData"
	}
	return &Sessions{adapter: adapter, key: key}
}

func SessionKey(sessionID, name string) string {
	return "wizard:" + sessionID + ":" + name
}

// Progress returns the progress record accessor for one session.
func (s *Sessions) Progress(sessionID string) *Progress {
	return &Progress{adapter: s.adapter, key: SessionKey(sessionID, s.key)}
}

func (s *Sessions) LoadLanguage(ctx context.Context, sessionID string) (string, bool) {
	lang, ok := Get[string](ctx, s.adapter, SessionKey(sessionID, languageKey))
	if !ok {
		return "", false
	}
	return *lang, true
}

func (s *Sessions) SaveLanguage(ctx context.Context, sessionID, lang string) {
	s.adapter.Set(ctx, SessionKey(sessionID, languageKey), lang)
}

// Progress reads and writes one session's persisted record.
type Progress struct {
	adapter *Adapter
	key     string
}

func (p *Progress) Load(ctx context.Context) (*models.PersistedRecord, bool) {
	return GetChecked[models.PersistedRecord](ctx, p.adapter, p.key, persistedRecordSchema)
}

func (p *Progress) Save(ctx context.Context, rec models.PersistedRecord) {
	p.adapter.Set(ctx, p.key, rec)
}

func (p *Progress) Clear(ctx context.Context) {
	p.adapter.Remove(ctx, p.key)
}
