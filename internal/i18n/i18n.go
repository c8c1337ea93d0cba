// Package i18n provides locale resolution and page text for the form.
//
// Catalogs are flat YAML files embedded from locales/, one per language.
// Indonesian is the default; result labels and error texts are not
// translated since they come straight from the predictor.
package i18n

import (
	"embed"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v2"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "stunting_lang"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// supported lists the catalog languages; the first entry is the default.
var supported = []language.Tag{language.Indonesian, language.English}

// Bundle holds the compiled catalogs.
type Bundle struct {
	catalog *catalog.Builder
	matcher language.Matcher
	keys    []string
}

// Load parses the embedded locale files. Every locale must define the same keys.
func Load() (*Bundle, error) {
	b := catalog.NewBuilder(catalog.Fallback(Default()))
	var keys []string

	for _, tag := range supported {
		name := path.Join("locales", tag.String()+".yaml")
		data, err := localesFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", name, err)
		}

		var messages map[string]string
		if err := yaml.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", name, err)
		}

		if keys == nil {
			for k := range messages {
				keys = append(keys, k)
			}
		} else if len(messages) != len(keys) {
			return nil, fmt.Errorf("locale %s has %d keys, want %d", tag, len(messages), len(keys))
		}

		for _, k := range keys {
			msg, ok := messages[k]
			if !ok {
				return nil, fmt.Errorf("locale %s is missing key %q", tag, k)
			}
			if err := b.SetString(tag, k, msg); err != nil {
				return nil, fmt.Errorf("failed to add %q for %s: %w", k, tag, err)
			}
		}
	}

	return &Bundle{
		catalog: b,
		matcher: language.NewMatcher(supported),
		keys:    keys,
	}, nil
}

// Supported returns the list of supported language tags.
func Supported() []language.Tag {
	return append([]language.Tag(nil), supported...)
}

// Default returns the default language tag.
func Default() language.Tag {
	return supported[0]
}

// Printer returns a message printer for the supplied tag.
func (b *Bundle) Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(b.catalog))
}

// Translate returns the message for key in tag, or key itself when unknown.
func (b *Bundle) Translate(tag language.Tag, key string) string {
	return b.Printer(tag).Sprintf(key)
}

// Keys returns the message keys every locale defines.
func (b *Bundle) Keys() []string {
	return append([]string(nil), b.keys...)
}

// Match maps any tag onto the closest supported one.
func (b *Bundle) Match(tags ...language.Tag) language.Tag {
	_, idx, _ := b.matcher.Match(tags...)
	return supported[idx]
}

// Resolve determines the language for the request from the lang query
// parameter, then the cookie, then Accept-Language.
// The bool reports whether the query parameter picked it and should be persisted.
func (b *Bundle) Resolve(r *http.Request) (language.Tag, bool) {
	if r == nil {
		return Default(), false
	}

	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return b.Match(tag), true
		}
	}

	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, err := language.Parse(cookie.Value); err == nil {
			return b.Match(tag), false
		}
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return b.Match(tags...), false
		}
	}

	return Default(), false
}

// SetLanguageCookie persists the selected language on the response.
func SetLanguageCookie(w http.ResponseWriter, tag language.Tag) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    tag.String(),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}
