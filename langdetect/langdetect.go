// Package langdetect guesses the source language of catalogs that do not
// declare a sourcelanguage attribute.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"

	"github.com/minios-linux/tskit/tsfile"
)

// minLetters is the smallest sample Detect will classify.
const minLetters = 6

// maxSample caps how many source characters DetectCatalog feeds the detector.
const maxSample = 4000

var languages = []lingua.Language{
	lingua.English,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Dutch,
	lingua.Polish,
	lingua.Russian,
	lingua.Ukrainian,
	lingua.Turkish,
	lingua.Arabic,
	lingua.Vietnamese,
	lingua.Thai,
	lingua.Indonesian,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build()
	})
	return detector
}

// Detect returns the language tag of text ("en", "zh-CN", ...), or "" when
// the text is too short or the language is not recognized.
func Detect(text string) string {
	sample := strings.TrimSpace(text)
	if countLetters(sample) < minLetters {
		return ""
	}
	language, ok := getDetector().DetectLanguageOf(sample)
	if !ok {
		return ""
	}
	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	if code == "zh" {
		return "zh-CN"
	}
	return code
}

// DetectCatalog detects the language of the catalog's source texts.
func DetectCatalog(c *tsfile.Catalog) string {
	var b strings.Builder
	for _, e := range c.Entries() {
		if b.Len() >= maxSample {
			break
		}
		if countLetters(e.Source) == 0 {
			continue
		}
		b.WriteString(e.Source)
		b.WriteString("\n")
	}
	return Detect(b.String())
}

// SourceLanguage returns the declared source language of c, falling back
// to detection.
func SourceLanguage(c *tsfile.Catalog) string {
	if lang := c.SourceLanguage(); lang != "" {
		return lang
	}
	return DetectCatalog(c)
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
