// Package langdetect guards the extraction prompt: the checklist prompt
// is German, so confidently foreign-language bodies are skipped before
// any model call is spent on them.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 returns the two-letter code of the detected language, or
// "" when the sample is too short or detection is not confident.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 20 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// Processable reports whether text may enter the extraction prompt: an
// undetected language passes (short samples stay processable), German and
// English pass, everything else is skipped.
func Processable(text string) bool {
	switch DetectISO6391(text) {
	case "", "de", "en":
		return true
	default:
		return false
	}
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.German,
				lingua.English,
				lingua.French,
				lingua.Polish,
				lingua.Turkish,
				lingua.Russian,
			).
			Build()
	})
	return detector
}
