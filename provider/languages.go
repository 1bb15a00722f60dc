package provider

import "github.com/minios-linux/tskit/langmeta"

// langTable maps internal tags to one provider's code space.
//
// Source tags without a mapping fall back to sourceFallback, which asks the
// provider to detect the language ("auto") or, when empty, omits the source
// parameter. Target tags without a mapping are rejected with ErrConfig
// rather than guessed, so a recognized tag is never sent as another
// language.
type langTable struct {
	provider       string
	codes          map[string]string
	targets        map[string]string // target-only overrides
	sourceFallback string
	// passthrough sends unmapped tags as their base language code.
	passthrough bool
}

// source returns the provider code for an internal source tag.
func (t langTable) source(tag string) string {
	tag = langmeta.Canonicalize(tag)
	if tag == "" || tag == langmeta.Auto {
		return t.sourceFallback
	}
	if code, ok := t.codes[tag]; ok {
		return code
	}
	if code, ok := t.codes[langmeta.Base(tag)]; ok {
		return code
	}
	if t.passthrough {
		return langmeta.Base(tag)
	}
	return t.sourceFallback
}

// target returns the provider code for an internal target tag.
func (t langTable) target(tag string) (string, error) {
	tag = langmeta.Canonicalize(tag)
	if tag == "" || tag == langmeta.Auto {
		return "", configErrorf("%s: target language is required", t.provider)
	}
	if code, ok := t.targets[tag]; ok {
		return code, nil
	}
	if code, ok := t.codes[tag]; ok {
		return code, nil
	}
	// Region variants of a mapped base language ("fr-CA") use the base code,
	// but never for Chinese where the region selects the script.
	if base := langmeta.Base(tag); base != "zh" {
		if code, ok := t.targets[base]; ok {
			return code, nil
		}
		if code, ok := t.codes[base]; ok {
			return code, nil
		}
	}
	// A bare "zh" passes through; regional Chinese without a mapping does not.
	if t.passthrough && (langmeta.Base(tag) != "zh" || tag == "zh") {
		return langmeta.Base(tag), nil
	}
	return "", configErrorf("%s does not support target language %q", t.provider, tag)
}

var googleLanguages = langTable{
	provider: Google,
	codes: map[string]string{
		"zh-CN":   "zh",
		"zh-SG":   "zh",
		"zh-HANS": "zh",
		"zh-TW":   "zh-TW",
		"zh-HK":   "zh-TW",
		"zh-MO":   "zh-TW",
		"zh-HANT": "zh-TW",
	},
	sourceFallback: "",
	passthrough:    true,
}

var baiduLanguages = langTable{
	provider: Baidu,
	codes: map[string]string{
		"zh-CN": "zh",
		"zh":    "zh",
		"zh-TW": "cht",
		"en":    "en",
		"ja":    "jp",
		"ko":    "kor",
		"fr":    "fra",
		"de":    "de",
		"es":    "spa",
		"ru":    "ru",
		"ar":    "ara",
		"it":    "it",
		"pt":    "pt",
		"nl":    "nl",
		"pl":    "pl",
		"el":    "el",
		"th":    "th",
		"vi":    "vie",
	},
	sourceFallback: "auto",
}

var deeplLanguages = langTable{
	provider: DeepL,
	codes: map[string]string{
		"zh-CN": "ZH",
		"zh":    "ZH",
		"en":    "EN",
		"ja":    "JA",
		"ko":    "KO",
		"fr":    "FR",
		"de":    "DE",
		"es":    "ES",
		"ru":    "RU",
		"ar":    "AR",
		"it":    "IT",
		"pt":    "PT",
		"nl":    "NL",
		"pl":    "PL",
		"bg":    "BG",
		"cs":    "CS",
		"da":    "DA",
		"el":    "EL",
		"et":    "ET",
		"fi":    "FI",
		"hu":    "HU",
		"id":    "ID",
		"lt":    "LT",
		"lv":    "LV",
		"ro":    "RO",
		"sk":    "SK",
		"sl":    "SL",
		"sv":    "SV",
		"tr":    "TR",
		"uk":    "UK",
	},
	targets: map[string]string{
		"en":    "EN-US",
		"en-GB": "EN-GB",
		"en-US": "EN-US",
		"pt":    "PT-PT",
		"pt-BR": "PT-BR",
		"zh-TW": "ZH-HANT",
	},
	// DeepL detects the source language when source_lang is omitted.
	sourceFallback: "",
}

var youdaoLanguages = langTable{
	provider: Youdao,
	codes: map[string]string{
		"zh-CN": "zh-CHS",
		"zh":    "zh-CHS",
		"zh-TW": "zh-CHT",
		"en":    "en",
		"ja":    "ja",
		"ko":    "ko",
		"fr":    "fr",
		"de":    "de",
		"es":    "es",
		"ru":    "ru",
		"ar":    "ar",
		"it":    "it",
		"pt":    "pt",
		"vi":    "vi",
		"th":    "th",
	},
	sourceFallback: "auto",
}
