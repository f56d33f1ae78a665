// Package locale loads the translation bundle and resolves messages for the
// language of each request.
package locale

import (
	"io/fs"
	"strings"

	"github.com/designdesk/designdesk/logger"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

const localizerKey = "localizer"

// DefaultLanguage is used when the client states no supported preference.
var DefaultLanguage = language.MustParse("ru-RU")

var i18nBundle *i18n.Bundle

// InitLocalizer parses every translation file found under "translation" in i18nFS.
func InitLocalizer(i18nFS fs.FS) error {
	bundle := i18n.NewBundle(DefaultLanguage)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	if err := parseTranslationFiles(i18nFS, bundle); err != nil {
		return err
	}
	i18nBundle = bundle
	return nil
}

func createTemplateData(params []string, seperator ...string) map[string]any {
	var sep string = "=="
	if len(seperator) > 0 {
		sep = seperator[0]
	}

	templateData := make(map[string]any)
	for _, param := range params {
		parts := strings.SplitN(param, sep, 2)
		if len(parts) != 2 {
			continue
		}
		templateData[parts[0]] = parts[1]
	}

	return templateData
}

// Localize resolves key with localizer. Params are "name==value" pairs. A
// missing message yields the key itself.
func Localize(localizer *i18n.Localizer, key string, params ...string) string {
	if localizer == nil {
		return key
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: createTemplateData(params),
	})
	if err != nil {
		logger.Warningf("Failed to localize message %q: %v", key, err)
		return key
	}
	return msg
}

// NewLocalizer returns a localizer for the given language preferences.
func NewLocalizer(langs ...string) *i18n.Localizer {
	if i18nBundle == nil {
		return nil
	}
	return i18n.NewLocalizer(i18nBundle, langs...)
}

// FromContext returns the localizer chosen by LocalizerMiddleware, or nil.
func FromContext(c *gin.Context) *i18n.Localizer {
	v, _ := c.Get(localizerKey)
	localizer, _ := v.(*i18n.Localizer)
	return localizer
}

// I18n resolves key in the language of the current request.
func I18n(c *gin.Context, key string, params ...string) string {
	return Localize(FromContext(c), key, params...)
}

// LocalizerMiddleware picks the request language from the "lang" cookie or
// the Accept-Language header.
func LocalizerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		langs := make([]string, 0, 2)
		if cookie, err := c.Request.Cookie("lang"); err == nil && cookie.Value != "" {
			langs = append(langs, cookie.Value)
		}
		if accept := c.GetHeader("Accept-Language"); accept != "" {
			langs = append(langs, accept)
		}

		c.Set(localizerKey, NewLocalizer(langs...))
		c.Next()
	}
}

func parseTranslationFiles(i18nFS fs.FS, i18nBundle *i18n.Bundle) error {
	return fs.WalkDir(i18nFS, "translation",
		func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				return nil
			}

			data, err := fs.ReadFile(i18nFS, path)
			if err != nil {
				return err
			}

			_, err = i18nBundle.ParseMessageFileBytes(data, path)
			return err
		})
}
