package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/destroydevs/TikFetchBot/internal/metrics"
	"github.com/destroydevs/TikFetchBot/internal/service"
)

// mediaGroupLimit is the most items Telegram accepts in one album.
const mediaGroupLimit = 10

// Messenger implements service.Messenger on the Bot API. Media is passed by
// URL; Telegram downloads it.
type Messenger struct {
	api     API
	metrics *metrics.Metrics
}

func NewMessenger(api API, m *metrics.Metrics) *Messenger {
	return &Messenger{api: api, metrics: m}
}

var _ service.Messenger = (*Messenger)(nil)

func (m *Messenger) SendText(_ context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return m.send("text", msg)
}

func (m *Messenger) SendVideo(_ context.Context, chatID int64, url, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(url))
	video.Caption = caption
	return m.send("video", video)
}

func (m *Messenger) SendAudio(_ context.Context, chatID int64, url string) error {
	return m.send("audio", tgbotapi.NewAudio(chatID, tgbotapi.FileURL(url)))
}

// SendPhotoGroup splits photos into albums of at most ten. An album needs two
// items, so a lone photo (or a lone trailing one) goes out as a plain photo.
func (m *Messenger) SendPhotoGroup(ctx context.Context, chatID int64, photos []service.Photo) error {
	if len(photos) == 0 {
		return errors.New("empty photo group")
	}

	for start := 0; start < len(photos); start += mediaGroupLimit {
		end := min(start+mediaGroupLimit, len(photos))
		chunk := photos[start:end]

		if len(chunk) == 1 {
			photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(chunk[0].URL))
			photo.Caption = chunk[0].Caption
			if err := m.send("photo", photo); err != nil {
				return err
			}
			continue
		}

		items := make([]interface{}, len(chunk))
		for i, p := range chunk {
			item := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(p.URL))
			item.Caption = p.Caption
			items[i] = item
		}
		_, err := m.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, items))
		m.metrics.ObserveSend("media_group", err)
		if err != nil {
			return fmt.Errorf("send media group: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Messenger) send(kind string, c tgbotapi.Chattable) error {
	_, err := m.api.Send(c)
	m.metrics.ObserveSend(kind, err)
	if err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}
