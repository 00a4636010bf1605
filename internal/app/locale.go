package app

import (
	"golang.org/x/text/language"
)

// DefaultLocale is used when nothing else matches.
const DefaultLocale = "en"

// DefaultLocales are the locales the widgets are translated to.
var DefaultLocales = []string{"en", "de", "fr", "es", "it", "nl"}

// Localizer picks the best supported locale for a language preference.
type Localizer struct {
	supported []string
	matcher   language.Matcher
	fallback  string
}

// NewLocalizer builds a Localizer. Invalid supported tags are skipped; the
// fallback is used when none is valid.
func NewLocalizer(fallback string, supported []string) *Localizer {
	if fallback == "" {
		fallback = DefaultLocale
	}
	l := &Localizer{fallback: fallback}
	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		tag, err := language.Parse(s)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		l.supported = append(l.supported, s)
	}
	if len(tags) > 0 {
		l.matcher = language.NewMatcher(tags)
	}
	return l
}

// Match returns the supported locale closest to pref, an Accept-Language
// header value or a single tag such as "de-AT".
func (l *Localizer) Match(pref string) string {
	if l.matcher == nil || pref == "" {
		return l.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(pref)
	if err != nil || len(tags) == 0 {
		return l.fallback
	}
	_, idx, conf := l.matcher.Match(tags...)
	if conf == language.No {
		return l.fallback
	}
	return l.supported[idx]
}

// Default returns the fallback locale.
func (l *Localizer) Default() string {
	return l.fallback
}
