// Package i18n localizes user-facing CLI messages. English and Turkish
// catalogs are embedded; unknown languages fall back to English.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var supported = []language.Tag{
	language.English,
	language.Turkish,
}

var matcher = language.NewMatcher(supported)

// Catalog resolves message keys to localized strings.
type Catalog struct {
	tag      language.Tag
	messages map[string]string
	fallback map[string]string
}

// New loads the catalog for the requested language. The language is matched
// loosely ("tr", "tr-TR", "turkish" won't all work, but BCP 47 variants do).
func New(lang string) (*Catalog, error) {
	tag, _ := language.MatchStrings(matcher, lang)
	base, _ := tag.Base()

	messages, err := loadLocale(base.String())
	if err != nil {
		return nil, err
	}

	fallback := messages
	if base.String() != "en" {
		fallback, err = loadLocale("en")
		if err != nil {
			return nil, err
		}
	}

	return &Catalog{tag: tag, messages: messages, fallback: fallback}, nil
}

// Language returns the resolved BCP 47 tag.
func (c *Catalog) Language() string {
	base, _ := c.tag.Base()
	return base.String()
}

// T formats the message for key. Missing keys fall back to English, then to
// the key itself so a typo is visible instead of silent.
func (c *Catalog) T(key string, args ...any) string {
	format, ok := c.messages[key]
	if !ok {
		format, ok = c.fallback[key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func loadLocale(base string) (map[string]string, error) {
	data, err := localeFS.ReadFile("locales/" + base + ".json")
	if err != nil {
		return nil, fmt.Errorf("load locale %s: %w", base, err)
	}
	messages := make(map[string]string)
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse locale %s: %w", base, err)
	}
	return messages, nil
}
