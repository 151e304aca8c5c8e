// Package i18n translates country names through the iso-codes gettext
// catalogs.
package i18n

import (
	"os"
	"strings"

	"github.com/snapcore/go-gettext"
)

// ISO3166Domain is the text domain iso-codes installs country names under.
const ISO3166Domain = "iso_3166"

// Catalog looks messages up in one text domain for one set of languages.
type Catalog struct {
	catalog   gettext.Catalog
	languages []string
}

// NewCatalog binds domain under localeDir. When language is empty the
// standard gettext environment variables decide.
func NewCatalog(localeDir, domain, language string) *Catalog {
	langs := Languages(language)
	translations := gettext.NewTranslations(localeDir, domain, gettext.DefaultResolver)
	return &Catalog{
		catalog:   translations.Locale(langs...),
		languages: langs,
	}
}

// Translate implements providers.Translator. Unknown messages come back
// unchanged.
func (c *Catalog) Translate(msgid string) string {
	if c == nil || msgid == "" {
		return msgid
	}
	return c.catalog.Gettext(msgid)
}

func (c *Catalog) Languages() []string {
	return c.languages
}

// Languages expands a locale such as "de_DE.UTF-8@euro" into the list of
// catalog names to try, most specific first. An empty locale is taken from
// LANGUAGE, LC_ALL, LC_MESSAGES or LANG.
func Languages(locale string) []string {
	var candidates []string
	if locale != "" {
		candidates = []string{locale}
	} else {
		if v := os.Getenv("LANGUAGE"); v != "" {
			candidates = strings.Split(v, ":")
		}
		for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
			if v := os.Getenv(env); v != "" {
				candidates = append(candidates, v)
				break
			}
		}
	}

	var out []string
	seen := make(map[string]bool)
	add := func(l string) {
		if l == "" || l == "C" || l == "POSIX" || seen[l] {
			return
		}
		seen[l] = true
		out = append(out, l)
	}
	for _, c := range candidates {
		c, _, _ = strings.Cut(c, "@")
		c, _, _ = strings.Cut(c, ".")
		add(c)
		if base, _, ok := strings.Cut(c, "_"); ok {
			add(base)
		}
	}
	return out
}
