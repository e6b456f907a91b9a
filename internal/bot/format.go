package bot

import (
	"html"
	"regexp"

	"github.com/korolevna/gigabot/internal/config"
)

var markdownSpecial = regexp.MustCompile("([_*\\[\\]()~`>#+\\-=|{}.!])")

// EscapeText escapes model output for the configured Telegram parse mode so
// stray markup in the reply cannot break rendering.
func EscapeText(text, parseMode string) string {
	if parseMode == config.ParseModeHTML {
		return html.EscapeString(text)
	}
	return markdownSpecial.ReplaceAllString(text, `\$1`)
}
