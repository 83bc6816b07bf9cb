package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := NewBundle("en", []string{"en", "ar"})
	require.NoError(t, err)
	return b
}

func TestNewBundle_UnknownLanguage(t *testing.T) {
	_, err := NewBundle("en", []string{"en", "xx"})
	assert.Error(t, err)

	_, err = NewBundle("xx", nil)
	assert.Error(t, err)
}

func TestLocalizer_T(t *testing.T) {
	b := newTestBundle(t)

	tests := []struct {
		name   string
		lang   string
		key    string
		params []Param
		want   string
	}{
		{name: "english", lang: "en", key: "validation.nameRequired", want: "Name is required"},
		{name: "arabic", lang: "ar", key: "validation.nameRequired", want: "الاسم مطلوب"},
		{name: "nested step label", lang: "en", key: "socialSupportFormWizard.stepLabels.1", want: "Family & Financial Information"},
		{
			name:   "interpolation",
			lang:   "en",
			key:    "socialSupportFormWizard.thankYouMessage",
			params: []Param{P("applicationId", "APP-1")},
			want:   "Thank you for your application. Your reference number is APP-1.",
		},
		{name: "missing param renders empty", lang: "en", key: "aiErrors.upstreamStatus", want: "The writing assistant returned an error ()."},
		{name: "unknown key", lang: "ar", key: "does.not.exist", want: "does.not.exist"},
		{name: "unsupported language falls back", lang: "fr", key: "socialSupportFormWizard.next", want: "Next"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.For(tt.lang).T(tt.key, tt.params...))
		})
	}
}

func TestLocalizer_Direction(t *testing.T) {
	b := newTestBundle(t)

	assert.Equal(t, LTR, b.For("en").Direction())
	assert.Equal(t, RTL, b.For("ar").Direction())
	assert.Equal(t, "rtl", b.For("ar-AE").LayoutClass())
	assert.Equal(t, "ar", b.For("ar-AE").Lang())
}

func TestBundle_Match(t *testing.T) {
	b := newTestBundle(t)

	lang, ok := b.Match("ar-SA")
	assert.True(t, ok)
	assert.Equal(t, "ar", lang)

	_, ok = b.Match("")
	assert.False(t, ok)

	lang, ok = b.MatchAcceptLanguage("fr-FR,ar;q=0.8,en;q=0.5")
	assert.True(t, ok)
	assert.Equal(t, "ar", lang)
}

func TestPositional(t *testing.T) {
	text, names := positional("{{a}} and {{ b }} then {{a}}")
	assert.Equal(t, "{0} and {1} then {2}", text)
	assert.Equal(t, []string{"a", "b", "a"}, names)
}
