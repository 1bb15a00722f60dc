// Package i18n translates tskit's own user-facing strings.
//
// Messages live in gettext catalogs embedded into the binary
// (locales/{lang}/LC_MESSAGES/tskit.po) and are looked up through gotext.
// Call Init once at startup; until then T, N and Tf return their input.
//
//	i18n.Init("") // LANGUAGE > LC_ALL > LC_MESSAGES > LANG
//	fmt.Println(i18n.T("No untranslated messages"))
//	fmt.Println(i18n.N("%d message", "%d messages", n))
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "tskit"

var po *gotext.Locale

// Init loads the catalog for lang. An empty lang is detected from the
// environment following GNU gettext precedence.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// T translates msgid, returning it unchanged when no translation exists.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// Tf translates format and applies fmt.Sprintf.
func Tf(format string, args ...any) string {
	return fmt.Sprintf(T(format), args...)
}

// N translates a message with plural forms.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage returns the first usable locale from the environment,
// without encoding suffix, or "en".
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		// LANGUAGE is a colon-separated preference list.
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		if idx := strings.IndexByte(val, '.'); idx >= 0 {
			val = val[:idx]
		}
		if val == "C" || val == "POSIX" || val == "" {
			continue
		}
		return val
	}
	return "en"
}
