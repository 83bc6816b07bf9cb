package i18n

import (
	"context"
	"net/http"
	"time"
)

const (
	QueryParam     = "lng"
	CookieName     = "i18next"
	PreferenceKey  = "i18nextLng"
	cookieLifetime = 365 * 24 * time.Hour
)

// Source names where a detected language came from.
type Source string

const (
	SourceQuery      Source = "querystring"
	SourceCookie     Source = "cookie"
	SourcePreference Source = "preference"
	SourceHeader     Source = "navigator"
	SourceFallback   Source = "fallback"
)

// PreferenceStore keeps the per-session language choice next to the
// session's saved form progress.
type PreferenceStore interface {
	LoadLanguage(ctx context.Context, sessionID string) (string, bool)
	SaveLanguage(ctx context.Context, sessionID, lang string)
}

// Detector resolves the request language in the order query string,
// cookie, stored preference, Accept-Language, and caches the result back
// to the cookie and the stored preference.
type Detector struct {
	bundle    *Bundle
	prefs     PreferenceStore
	sessionID func(*http.Request) string
	secure    bool
}

func NewDetector(bundle *Bundle, prefs PreferenceStore, sessionID func(*http.Request) string, secureCookies bool) *Detector {
	return &Detector{bundle: bundle, prefs: prefs, sessionID: sessionID, secure: secureCookies}
}

// Detect returns the language for r without caching it.
func (d *Detector) Detect(r *http.Request) (string, Source) {
	lang, source, _ := d.detect(r)
	return lang, source
}

func (d *Detector) detect(r *http.Request) (lang string, source Source, stored string) {
	if lang, ok := d.bundle.Match(r.URL.Query().Get(QueryParam)); ok {
		return lang, SourceQuery, d.stored(r)
	}
	if c, err := r.Cookie(CookieName); err == nil {
		if lang, ok := d.bundle.Match(c.Value); ok {
			return lang, SourceCookie, d.stored(r)
		}
	}
	stored = d.stored(r)
	if lang, ok := d.bundle.Match(stored); ok {
		return lang, SourcePreference, stored
	}
	if lang, ok := d.bundle.MatchAcceptLanguage(r.Header.Get("Accept-Language")); ok {
		return lang, SourceHeader, stored
	}
	return d.bundle.Fallback(), SourceFallback, stored
}

func (d *Detector) stored(r *http.Request) string {
	if d.prefs == nil || d.sessionID == nil {
		return ""
	}
	sid := d.sessionID(r)
	if sid == "" {
		return ""
	}
	lang, _ := d.prefs.LoadLanguage(r.Context(), sid)
	return lang
}

// Middleware detects the language, caches it and stores its Localizer in
// the request context.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang, _, stored := d.detect(r)
		d.cache(w, r, lang, stored)
		ctx := WithLocalizer(r.Context(), d.bundle.For(lang))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Switch makes lang the session language. It returns false when lang is
// not supported.
func (d *Detector) Switch(w http.ResponseWriter, r *http.Request, lang string) (Localizer, bool) {
	matched, ok := d.bundle.Match(lang)
	if !ok {
		return nil, false
	}
	d.cache(w, r, matched, d.stored(r))
	return d.bundle.For(matched), true
}

func (d *Detector) cache(w http.ResponseWriter, r *http.Request, lang, stored string) {
	if c, err := r.Cookie(CookieName); err != nil || c.Value != lang {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    lang,
			Path:     "/",
			Expires:  time.Now().Add(cookieLifetime),
			SameSite: http.SameSiteLaxMode,
			Secure:   d.secure,
		})
	}
	if stored == lang || d.prefs == nil || d.sessionID == nil {
		return
	}
	if sid := d.sessionID(r); sid != "" {
		d.prefs.SaveLanguage(r.Context(), sid, lang)
	}
}

type ctxKey struct{}

func WithLocalizer(ctx context.Context, l Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request Localizer, or Identity when none is set.
func FromContext(ctx context.Context) Localizer {
	if l, ok := ctx.Value(ctxKey{}).(Localizer); ok {
		return l
	}
	return Identity{}
}
