package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bots may only download files up to 20 MB.
const maxDownload = 20 << 20

type fileRef struct {
	ID   string
	Name string
}

// audioRef picks the attachment to classify. Documents are forwarded as-is;
// the inference service decides whether they are audio.
func audioRef(msg *tgbotapi.Message) (fileRef, bool) {
	switch {
	case msg.Audio != nil:
		return fileRef{ID: msg.Audio.FileID, Name: orDefault(msg.Audio.FileName, "audio.mp3")}, true
	case msg.Voice != nil:
		return fileRef{ID: msg.Voice.FileID, Name: "voice.ogg"}, true
	case msg.Document != nil:
		return fileRef{ID: msg.Document.FileID, Name: orDefault(msg.Document.FileName, "file")}, true
	}
	return fileRef{}, false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownload))
}

func (r *Router) httpClient() *http.Client {
	if r.HTTP != nil {
		return r.HTTP
	}
	return &http.Client{Timeout: 60 * time.Second}
}
