package template

import (
	"regexp"

	"github.com/amelnyk/slotly-notify/internal/db"
)

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Resolve turns a title or message into display text for one language.
// Callers may pass either a catalog key or literal text: keys are looked
// up with a requested-language, then English, then key-itself fallback
// chain; literal text keeps its wording. Placeholders are interpolated
// either way.
func Resolve(text, lang string, vars map[string]string) string {
	variants, ok := catalog[text]
	if !ok {
		return Interpolate(text, vars)
	}

	content, ok := variants[lang]
	if !ok {
		content, ok = variants[DefaultLanguage]
		if !ok {
			return text
		}
	}

	return Interpolate(content, vars)
}

// Interpolate substitutes {{name}} placeholders from vars. Values are
// plain strings already; a missing variable resolves to an empty string
// rather than leaving the placeholder visible.
func Interpolate(content string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(content, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		return vars[name]
	})
}

// LocalizeEmail picks the language variant of a stored email template,
// falling back to the default-language content when the override is absent
// or empty.
func LocalizeEmail(t *db.EmailTemplate, lang string) (subject, body string) {
	subject, body = t.Subject, t.Body

	switch lang {
	case "uk":
		if t.SubjectUK != nil && *t.SubjectUK != "" {
			subject = *t.SubjectUK
		}
		if t.BodyUK != nil && *t.BodyUK != "" {
			body = *t.BodyUK
		}
	case "ru":
		if t.SubjectRU != nil && *t.SubjectRU != "" {
			subject = *t.SubjectRU
		}
		if t.BodyRU != nil && *t.BodyRU != "" {
			body = *t.BodyRU
		}
	}

	return subject, body
}

// LocalizeSMS picks the language variant of a stored SMS template.
func LocalizeSMS(t *db.SMSTemplate, lang string) string {
	switch lang {
	case "uk":
		if t.BodyUK != nil && *t.BodyUK != "" {
			return *t.BodyUK
		}
	case "ru":
		if t.BodyRU != nil && *t.BodyRU != "" {
			return *t.BodyRU
		}
	}
	return t.Body
}
