// Package langmeta provides the language tags offered for translation and
// their display names, plus canonicalization of user-supplied tags.
//
// Tags follow the region-qualified form used in settings and provider
// tables ("zh-CN", "pt-BR"). Catalog files use underscores ("zh_CN");
// Canonicalize accepts both.
package langmeta

import "strings"

// Auto is the pseudo-tag asking a provider to detect the source language.
const Auto = "auto"

// Meta describes language display metadata.
type Meta struct {
	// English is the English name.
	English string
	// Native is the name in the language itself.
	Native string
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"ar":    {English: "Arabic", Native: "العربية"},
	"bg":    {English: "Bulgarian", Native: "Български"},
	"cs":    {English: "Czech", Native: "Čeština"},
	"da":    {English: "Danish", Native: "Dansk"},
	"de":    {English: "German", Native: "Deutsch"},
	"el":    {English: "Greek", Native: "Ελληνικά"},
	"en":    {English: "English", Native: "English"},
	"en-GB": {English: "English (UK)", Native: "English (UK)"},
	"en-US": {English: "English (US)", Native: "English (US)"},
	"es":    {English: "Spanish", Native: "Español"},
	"et":    {English: "Estonian", Native: "Eesti"},
	"fi":    {English: "Finnish", Native: "Suomi"},
	"fr":    {English: "French", Native: "Français"},
	"hu":    {English: "Hungarian", Native: "Magyar"},
	"id":    {English: "Indonesian", Native: "Bahasa Indonesia"},
	"it":    {English: "Italian", Native: "Italiano"},
	"ja":    {English: "Japanese", Native: "日本語"},
	"ko":    {English: "Korean", Native: "한국어"},
	"lt":    {English: "Lithuanian", Native: "Lietuvių"},
	"lv":    {English: "Latvian", Native: "Latviešu"},
	"nl":    {English: "Dutch", Native: "Nederlands"},
	"pl":    {English: "Polish", Native: "Polski"},
	"pt":    {English: "Portuguese", Native: "Português"},
	"pt-BR": {English: "Portuguese (Brazil)", Native: "Português (Brasil)"},
	"ro":    {English: "Romanian", Native: "Română"},
	"ru":    {English: "Russian", Native: "Русский"},
	"sk":    {English: "Slovak", Native: "Slovenčina"},
	"sl":    {English: "Slovenian", Native: "Slovenščina"},
	"sv":    {English: "Swedish", Native: "Svenska"},
	"th":    {English: "Thai", Native: "ไทย"},
	"tr":    {English: "Turkish", Native: "Türkçe"},
	"uk":    {English: "Ukrainian", Native: "Українська"},
	"vi":    {English: "Vietnamese", Native: "Tiếng Việt"},
	"zh":    {English: "Chinese", Native: "中文"},
	"zh-CN": {English: "Chinese (Simplified)", Native: "简体中文"},
	"zh-TW": {English: "Chinese (Traditional)", Native: "繁體中文"},
}

// Choices is the ordered list of tags offered when picking source and
// target languages. Source pickers additionally offer Auto.
var Choices = []string{"en", "zh-CN", "zh-TW", "ja", "ko", "fr", "de", "es", "ru", "ar"}

// Canonicalize normalizes a tag: underscores become hyphens, the language
// part is lower-cased and the region part upper-cased. "auto" is kept as is.
func Canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	if strings.EqualFold(normalized, Auto) {
		return Auto
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Base returns the language part of a tag ("pt" for "pt_BR").
func Base(lang string) string {
	c := Canonicalize(lang)
	if i := strings.IndexByte(c, '-'); i >= 0 {
		return c[:i]
	}
	return c
}

// Known reports whether lang, after canonicalization, has an exact entry.
func Known(lang string) bool {
	_, ok := Registry[Canonicalize(lang)]
	return ok
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := Canonicalize(lang)
	if normalized == Auto {
		return Meta{English: "Auto-detect", Native: "Auto-detect"}
	}
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if base := Base(normalized); base != normalized {
		if m, ok := Registry[base]; ok {
			return m
		}
	}
	return Meta{English: lang, Native: lang}
}

// Label formats a tag for listings: "zh-CN  Chinese (Simplified) / 简体中文".
func Label(lang string) string {
	m := Resolve(lang)
	if m.English == m.Native {
		return m.English
	}
	return m.English + " / " + m.Native
}
