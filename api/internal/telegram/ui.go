package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sound-predict/api/internal/inference"
	"sound-predict/api/internal/universe"
)

const (
	maxMessage = 3900
	maxCaption = 1000
)

const (
	textSelect         = "Choisissez un univers de classification :"
	textChooseFirst    = "Choisissez d'abord un univers avec /start."
	textUnknownCommand = "Commande inconnue. Utilisez /start."
)

func selectorKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	for _, u := range universe.All() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(u.DisplayName(), callbackData(u)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func promptText(u universe.Universe) string {
	return u.DisplayName() + " Prédiction\nEnvoyez un fichier audio ou un lien YouTube."
}

// formatResult renders the label, its confidence and one line per class in
// the order the service returned them.
func formatResult(u universe.Universe, res inference.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s : %s\n", u.DisplayName(), res.Label)
	fmt.Fprintf(&b, "Confiance : %s", res.Confidence)
	if len(res.AllConfidences) > 0 {
		b.WriteString("\n")
		for _, c := range res.AllConfidences {
			fmt.Fprintf(&b, "\n%s: %s", c.Label, c.Percent)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
