package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sound-predict/api/internal/predict"
	"sound-predict/api/internal/universe"
)

const callbackPrefix = "model:"

func callbackData(u universe.Universe) string { return callbackPrefix + u.Token() }

// parseCallback maps selector button data back to a universe. Buttons only
// ever carry known tokens, so resolution is strict.
func parseCallback(data string) (universe.Universe, bool) {
	token, ok := strings.CutPrefix(data, callbackPrefix)
	if !ok {
		return 0, false
	}
	u, err := universe.Resolve(token, true)
	return u, err == nil
}

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID

	u, ok := parseCallback(cb.Data)
	if !ok {
		r.logger().Warn("unknown callback", "chat_id", cid, "data", cb.Data)
		return
	}
	if err := r.Selections.Set(ctx, cid, u); err != nil {
		r.logger().Error("save selection", "chat_id", cid, "error", err)
		r.send(cid, predict.Notice(predict.ErrPrediction))
		return
	}
	// Picking a universe opens a fresh screen, like navigating to it.
	r.dropScreen(cid)

	edit := tgbotapi.NewEditMessageReplyMarkup(cid, cb.Message.MessageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	_, _ = r.Bot.Send(edit)
	r.send(cid, promptText(u))
}
