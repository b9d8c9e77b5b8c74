package ranking

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultLanguage is used when a query names no language.
const DefaultLanguage = "en"

// Query is what the user asked to study.
type Query struct {
	Topic       string `json:"topic"`
	Subsections string `json:"subsections,omitempty"`
	Language    string `json:"language,omitempty"` // BCP 47 code, default "en"
}

// LanguageCode returns the base language code of the query.
func (q Query) LanguageCode() string {
	code := strings.TrimSpace(q.Language)
	if code == "" || strings.EqualFold(code, "all") {
		return DefaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}
	base, _ := tag.Base()
	return base.String()
}

// LanguageName returns the lower-case English name of the query language,
// e.g. "english", used as a search qualifier.
func (q Query) LanguageName() string {
	tag := language.Make(q.LanguageCode())
	name := display.English.Languages().Name(tag)
	if name == "" {
		return "english"
	}
	return strings.ToLower(name)
}

// Subject is the text compared against transcripts: topic plus subsections,
// without the language qualifier.
func (q Query) Subject() string {
	return strings.Join(strings.Fields(q.Topic+" "+q.Subsections), " ")
}

// SearchString composes the free-text search query:
// "<topic> <subsections> <language name>".
func (q Query) SearchString() string {
	subject := q.Subject()
	if subject == "" {
		return ""
	}
	return subject + " " + q.LanguageName()
}
