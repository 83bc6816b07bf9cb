// Package session keeps one wizard per browser session, keyed by a uuid
// cookie, and evicts wizards nobody has touched for a while. Evicting a
// wizard loses nothing: its progress is already in storage and the next
// request mounts a fresh one from it.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/wizard"
	"social-support-wizard/internal/wizard/storage"
)

const (
	DefaultCookieName = "wizard_session"
	DefaultIdleTTL    = 30 * time.Minute
)

type Config struct {
	CookieName string
	// CookieMaxAge bounds how long a browser keeps its session; zero makes
	// it a browser-session cookie.
	CookieMaxAge time.Duration
	// IdleTTL is how long an untouched wizard stays in memory.
	IdleTTL time.Duration
	Secure  bool
}

type entry struct {
	w        *wizard.Wizard
	lastSeen time.Time
	// refs counts requests holding w; Sweep leaves held wizards alone.
	refs int
}

type Manager struct {
	cfg      Config
	sessions *storage.Sessions
	defaults wizard.Options
	log      logger.Logger
	now      func() time.Time

	mu   sync.Mutex
	live map[string]*entry
}

// NewManager serves wizards built from defaults; Progress, Localizer and
// Logger are filled in per session.
func NewManager(cfg Config, sessions *storage.Sessions, defaults wizard.Options, log logger.Logger) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Manager{
		cfg:      cfg,
		sessions: sessions,
		defaults: defaults,
		log:      log,
		now:      time.Now,
		live:     make(map[string]*entry),
	}
}

// ID returns the session id carried by r, or "" when it has none or it is
// not a uuid.
func (m *Manager) ID(r *http.Request) string {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// Wizard returns the session's wizard, creating the session cookie and
// mounting a wizard from saved progress when needed. The wizard follows the
// language found in r's context. The caller must call release once it is
// done with the wizard.
func (m *Manager) Wizard(w http.ResponseWriter, r *http.Request) (wz *wizard.Wizard, id string, release func()) {
	id = m.ID(r)
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     m.cfg.CookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(m.cfg.CookieMaxAge / time.Second),
			HttpOnly: true,
			Secure:   m.cfg.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	t := i18n.FromContext(r.Context())
	e, created := m.acquire(id, t)
	wz = e.w
	// Mount is a no-op after the first call and blocks until that one is
	// done, so a concurrent request never sees an unrestored wizard.
	wz.Mount(r.Context())
	if !created && wz.Localizer().Lang() != t.Lang() {
		wz.SetLocalizer(t)
	}
	return wz, id, m.releaser(e)
}

func (m *Manager) acquire(id string, t i18n.Localizer) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.live[id]; ok {
		e.lastSeen = m.now()
		e.refs++
		return e, false
	}

	opts := m.defaults
	opts.Localizer = t
	opts.Progress = m.sessions.Progress(id)
	opts.Logger = m.log.WithFields(map[string]interface{}{"sessionId": id})
	e := &entry{w: wizard.New(opts), lastSeen: m.now(), refs: 1}
	m.live[id] = e
	return e, true
}

// releaser drops one reference to e. The idle clock restarts from the end of
// the request, not its start.
func (m *Manager) releaser(e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			e.refs--
			e.lastSeen = m.now()
		})
	}
}

// Len reports how many wizards are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Sweep closes wizards idle for longer than the configured TTL and returns
// how many it evicted. A wizard a request still holds is never idle.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var stale []*wizard.Wizard
	for id, e := range m.live {
		if e.refs == 0 && e.lastSeen.Before(cutoff) {
			stale = append(stale, e.w)
			delete(m.live, id)
		}
	}
	m.mu.Unlock()

	for _, wz := range stale {
		wz.Close()
	}
	if len(stale) > 0 {
		m.log.Debug("evicted idle wizard sessions", map[string]interface{}{"count": len(stale)})
	}
	return len(stale)
}

// Run sweeps periodically until ctx is done, then closes every wizard.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.IdleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			m.Close()
			return nil
		}
	}
}

func (m *Manager) Close() {
	m.mu.Lock()
	live := m.live
	m.live = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range live {
		e.w.Close()
	}
}
