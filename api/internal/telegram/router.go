// Package telegram is the chat front end: /start shows the universe
// selector, then audio files and YouTube links sent to the chat are
// classified by the inference service.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sound-predict/api/internal/inference"
	"sound-predict/api/internal/predict"
	"sound-predict/api/internal/store"
	"sound-predict/api/internal/universe"
)

// Bot is the part of *tgbotapi.BotAPI the router talks to.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot        Bot
	Predictor  predict.Predictor
	Selections store.Selections
	// ImagesDir holds {segment}_{label}.png illustrations. Empty disables photos.
	ImagesDir string
	Log       *slog.Logger
	// HTTP downloads files from Telegram. Nil means a 60s-timeout client.
	HTTP *http.Client

	screens sync.Map // chatID -> *chatScreen
	now     func() time.Time
}

func (r *Router) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		r.handleCommand(msg)
		return
	}
	cid := msg.Chat.ID

	u, err := r.Selections.Get(ctx, cid)
	if errors.Is(err, store.ErrNotFound) {
		r.send(cid, textChooseFirst)
		return
	}
	if err != nil {
		r.logger().Error("load selection", "chat_id", cid, "error", err)
		r.send(cid, predict.Notice(predict.ErrPrediction))
		return
	}
	screen := r.screenFor(cid, u)

	if ref, ok := audioRef(msg); ok {
		r.submitFile(ctx, cid, screen, ref)
		return
	}
	if msg.Text != "" {
		r.typing(cid)
		err := screen.SubmitYouTube(ctx, msg.Text)
		r.reply(cid, screen, err)
		return
	}
	// Stickers, photos and the like carry no audio.
	r.reply(cid, screen, screen.SubmitFile(ctx, nil))
}

func (r *Router) handleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		m := tgbotapi.NewMessage(cid, textSelect)
		m.ReplyMarkup = selectorKeyboard()
		_, _ = r.Bot.Send(m)
	case "health":
		r.send(cid, "✅ OK")
	default:
		r.send(cid, textUnknownCommand)
	}
}

func (r *Router) submitFile(ctx context.Context, cid int64, screen *predict.Screen, ref fileRef) {
	r.typing(cid)
	link, err := r.Bot.GetFileDirectURL(ref.ID)
	if err != nil {
		r.logger().Error("telegram getFile", "chat_id", cid, "error", err)
		r.send(cid, predict.Notice(predict.ErrPrediction))
		return
	}
	data, err := r.download(ctx, link)
	if err != nil {
		r.logger().Error("telegram download", "chat_id", cid, "error", err)
		r.send(cid, predict.Notice(predict.ErrPrediction))
		return
	}
	err = screen.SubmitFile(ctx, &predict.File{Name: ref.Name, Body: bytes.NewReader(data)})
	r.reply(cid, screen, err)
}

// reply sends the notice for err, or the screen's current result.
func (r *Router) reply(cid int64, screen *predict.Screen, err error) {
	if err != nil {
		r.send(cid, predict.Notice(err))
		return
	}
	res := screen.Result()
	if res == nil {
		return
	}
	r.sendResult(cid, screen.Universe, *res)
}

func (r *Router) sendResult(cid int64, u universe.Universe, res inference.Result) {
	text := formatResult(u, res)
	if path, ok := r.imageFor(u, res.Label); ok {
		photo := tgbotapi.NewPhoto(cid, tgbotapi.FilePath(path))
		photo.Caption = truncate(text, maxCaption)
		_, err := r.Bot.Send(photo)
		if err == nil {
			return
		}
		r.logger().Warn("send photo", "chat_id", cid, "path", path, "error", err)
	}
	r.send(cid, text)
}

// imageFor returns the local illustration for label when one exists.
func (r *Router) imageFor(u universe.Universe, label string) (string, bool) {
	if r.ImagesDir == "" || label == "" || strings.ContainsAny(label, `/\`) {
		return "", false
	}
	path := filepath.Join(r.ImagesDir, u.ImageName(label))
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		return "", false
	}
	return path, true
}

func (r *Router) typing(cid int64) {
	_, _ = r.Bot.Request(tgbotapi.NewChatAction(cid, tgbotapi.ChatTyping))
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text, maxMessage))
	if _, err := r.Bot.Send(msg); err != nil {
		r.logger().Warn("send message", "chat_id", chatID, "error", err)
	}
}
