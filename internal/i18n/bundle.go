// Package i18n loads the message catalogs, negotiates the request language
// and hands out per-language Localizers.
package i18n

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/ar"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// Localizer translates catalog keys for one language. Unknown keys come back
// unchanged.
type Localizer interface {
	T(key string, params ...Param) string
	Lang() string
	Direction() Direction
	LayoutClass() string
	FormatNumber(num float64, digits uint64) string
}

// Param fills a {{name}} placeholder.
type Param struct {
	Name  string
	Value string
}

func P(name string, value interface{}) Param {
	return Param{Name: name, Value: fmt.Sprint(value)}
}

var localeFactories = map[string]func() locales.Translator{
	"en": en.New,
	"ar": ar.New,
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

var rtlScripts = map[string]bool{"Arab": true, "Hebr": true, "Thaa": true, "Syrc": true, "Nkoo": true, "Adlm": true}

type catalog struct {
	trans  ut.Translator
	params map[string][]string
	dir    Direction
}

// Bundle holds every supported catalog. It is built once at start and is
// safe for concurrent use afterwards.
type Bundle struct {
	fallback  string
	supported []string
	catalogs  map[string]*catalog
	matcher   language.Matcher
}

// NewBundle loads the embedded catalogs for the supported languages.
// fallback must be one of them.
func NewBundle(fallback string, supported []string) (*Bundle, error) {
	if len(supported) == 0 {
		supported = []string{fallback}
	}

	fallbackFactory, ok := localeFactories[fallback]
	if !ok {
		return nil, fmt.Errorf("no locale data for fallback language %q", fallback)
	}

	factories := make([]locales.Translator, 0, len(supported))
	tags := make([]language.Tag, 0, len(supported))
	// the matcher prefers its first tag when nothing matches
	ordered := append([]string{fallback}, without(supported, fallback)...)
	for _, lang := range ordered {
		factory, ok := localeFactories[lang]
		if !ok {
			return nil, fmt.Errorf("no locale data for language %q", lang)
		}
		factories = append(factories, factory())
		tags = append(tags, language.Make(lang))
	}

	uni := ut.New(fallbackFactory(), factories...)

	b := &Bundle{
		fallback:  fallback,
		supported: ordered,
		catalogs:  make(map[string]*catalog, len(ordered)),
		matcher:   language.NewMatcher(tags),
	}

	for _, lang := range ordered {
		trans, found := uni.GetTranslator(lang)
		if !found {
			return nil, fmt.Errorf("translator for %q not registered", lang)
		}
		cat, err := loadCatalog(lang, trans)
		if err != nil {
			return nil, err
		}
		b.catalogs[lang] = cat
	}

	return b, nil
}

func without(list []string, drop string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}

func loadCatalog(lang string, trans ut.Translator) (*catalog, error) {
	raw, err := catalogFS.ReadFile("catalog/" + lang + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("catalog for %q: %w", lang, err)
	}

	var tree map[string]interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse catalog %q: %w", lang, err)
	}

	flat := make(map[string]string)
	flatten("", tree, flat)

	cat := &catalog{
		trans:  trans,
		params: make(map[string][]string),
		dir:    directionOf(lang),
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		text, names := positional(flat[key])
		if err := trans.Add(key, text, false); err != nil {
			return nil, fmt.Errorf("catalog %q key %q: %w", lang, key, err)
		}
		if len(names) > 0 {
			cat.params[key] = names
		}
	}

	return cat, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// positional rewrites {{name}} placeholders into the {0}, {1}... form the
// translator expects and returns the names in order.
func positional(text string) (string, []string) {
	var names []string
	rewritten := placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		names = append(names, name)
		return fmt.Sprintf("{%d}", len(names)-1)
	})
	return rewritten, names
}

func directionOf(lang string) Direction {
	script, _ := language.Make(lang).Script()
	if rtlScripts[script.String()] {
		return RTL
	}
	return LTR
}

// Fallback is the language used when nothing else matches.
func (b *Bundle) Fallback() string { return b.fallback }

// Supported lists the loaded languages, fallback first.
func (b *Bundle) Supported() []string {
	return append([]string(nil), b.supported...)
}

// Match maps a language tag such as "ar-AE" onto a supported language.
func (b *Bundle) Match(lang string) (string, bool) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "", false
	}
	if _, ok := b.catalogs[lang]; ok {
		return lang, true
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", false
	}
	_, idx, conf := b.matcher.Match(tag)
	if conf == language.No {
		return "", false
	}
	return b.supported[idx], true
}

// MatchAcceptLanguage picks the best supported language for an
// Accept-Language header.
func (b *Bundle) MatchAcceptLanguage(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No {
		return "", false
	}
	return b.supported[idx], true
}

// For returns the Localizer of lang, or of the fallback when lang is not
// supported.
func (b *Bundle) For(lang string) Localizer {
	if matched, ok := b.Match(lang); ok {
		lang = matched
	} else {
		lang = b.fallback
	}
	return &localizer{lang: lang, cat: b.catalogs[lang], fallback: b.catalogs[b.fallback]}
}

type localizer struct {
	lang     string
	cat      *catalog
	fallback *catalog
}

func (l *localizer) T(key string, params ...Param) string {
	if text, ok := l.cat.translate(key, params); ok {
		return text
	}
	if text, ok := l.fallback.translate(key, params); ok {
		return text
	}
	return key
}

func (c *catalog) translate(key string, params []Param) (string, bool) {
	names := c.params[key]
	args := make([]string, len(names))
	for i, name := range names {
		for _, p := range params {
			if p.Name == name {
				args[i] = p.Value
				break
			}
		}
	}
	text, err := c.trans.T(key, args...)
	if err != nil {
		return "", false
	}
	return text, true
}

func (l *localizer) Lang() string { return l.lang }

func (l *localizer) Direction() Direction { return l.cat.dir }

func (l *localizer) LayoutClass() string { return string(l.cat.dir) }

func (l *localizer) FormatNumber(num float64, digits uint64) string {
	return l.cat.trans.FmtNumber(num, digits)
}

// Identity returns keys verbatim. Tests use it to assert on message keys.
type Identity struct{}

func (Identity) T(key string, _ ...Param) string { return key }
func (Identity) Lang() string                    { return "en" }
func (Identity) Direction() Direction            { return LTR }
func (Identity) LayoutClass() string             { return string(LTR) }
func (Identity) FormatNumber(num float64, digits uint64) string {
	return fmt.Sprintf("%.*f", digits, num)
}
