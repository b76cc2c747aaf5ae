package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/forPelevin/shortsbot/internal/types"
)

// captionLimit is Telegram's maximum media caption length, in characters.
const captionLimit = 1024

const defaultViralReason = "Moment fort identifié"

// Caption builds the Markdown caption sent with short number idx. When the
// result would exceed Telegram's limit, the description is shortened first.
func Caption(idx int, m types.Moment) string {
	desc := []rune(strings.TrimSpace(m.Description))
	for {
		c := buildCaption(idx, m, string(desc))
		over := utf8.RuneCountInString(c) - captionLimit
		if over <= 0 {
			return c
		}
		if len(desc) == 0 {
			return string([]rune(c)[:captionLimit])
		}
		cut := len(desc) - over - 1
		if cut <= 0 {
			desc = nil
			continue
		}
		desc = append(desc[:cut:cut], '…')
	}
}

func buildCaption(idx int, m types.Moment, desc string) string {
	reason := strings.TrimSpace(m.ViralReason)
	if reason == "" {
		reason = defaultViralReason
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎬 *Short #%d*\n\n", idx)
	fmt.Fprintf(&b, "📌 *Titre:* %s\n\n", escape(m.Title))
	fmt.Fprintf(&b, "📝 *Description:* %s\n\n", escape(desc))
	fmt.Fprintf(&b, "🏷️ *Tags:* %s\n\n", escape(strings.Join(m.Tags, " ")))
	fmt.Fprintf(&b, "💡 *Pourquoi viral:* %s\n\n", escape(reason))
	fmt.Fprintf(&b, "⏱️ *Durée:* %.1fs", m.Length())
	return b.String()
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, strings.TrimSpace(s))
}
