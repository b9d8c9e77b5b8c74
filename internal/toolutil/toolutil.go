// Package toolutil provides shared helper functions for go_study MCP tools.
package toolutil

import (
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_study/internal/engine/ranking"
	"golang.org/x/text/language"
)

// NormLang normalises a language field to a base ISO code: empty or "all" → "en".
// Unparseable values fall back to "en".
func NormLang(lang string) string {
	return ranking.Query{Language: lang}.LanguageCode()
}

// TranscriptLangs returns the caption languages to try for lang, English last
// as a fallback.
func TranscriptLangs(lang string) []string {
	code := NormLang(lang)
	if code == "en" {
		return []string{"en"}
	}
	return []string{code, "en"}
}

// ParseMode parses a scoring mode from tool input. An empty or placeholder
// mode is an error listing the accepted names.
func ParseMode(mode string) (ranking.Policy, error) {
	p, err := ranking.ParsePolicy(mode)
	if err != nil {
		return ranking.PolicyUnselected, err
	}
	if _, ok := p.Weights(); !ok {
		return ranking.PolicyUnselected, fmt.Errorf("mode is required (one of: %s)", ModeNames())
	}
	return p, nil
}

// ModeNames lists the selectable scoring modes, comma separated.
func ModeNames() string {
	names := make([]string, 0, len(ranking.Policies()))
	for _, p := range ranking.Policies() {
		names = append(names, p.String())
	}
	return strings.Join(names, ", ")
}

// LanguageTag reports whether lang is a well-formed BCP 47 tag (empty is accepted).
func LanguageTag(lang string) error {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, "all") {
		return nil
	}
	if _, err := language.Parse(lang); err != nil {
		return fmt.Errorf("invalid language %q", lang)
	}
	return nil
}
