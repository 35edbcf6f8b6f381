package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/destroydevs/TikFetchBot/internal/service"
)

func photos(n int) []service.Photo {
	out := make([]service.Photo, n)
	for i := range out {
		out[i] = service.Photo{URL: fmt.Sprintf("https://cdn/%d.jpg", i)}
	}
	out[0].Caption = "title"
	return out
}

func TestMessengerText(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, NewMessenger(api, nil).SendText(context.Background(), 5, "<b>hi</b>"))

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(5), msg.ChatID)
	assert.Equal(t, "<b>hi</b>", msg.Text)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
}

func TestMessengerVideoAndAudio(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api, nil)
	require.NoError(t, m.SendVideo(context.Background(), 5, "https://cdn/v.mp4", "<cat>"))
	require.NoError(t, m.SendAudio(context.Background(), 5, "https://cdn/a.mp3"))

	require.Len(t, api.sent, 2)
	video, ok := api.sent[0].(tgbotapi.VideoConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.FileURL("https://cdn/v.mp4"), video.File)
	assert.Equal(t, "<cat>", video.Caption)
	assert.Empty(t, video.ParseMode)

	audio, ok := api.sent[1].(tgbotapi.AudioConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.FileURL("https://cdn/a.mp3"), audio.File)
}

func TestMessengerPhotoGroup(t *testing.T) {
	t.Run("single photo", func(t *testing.T) {
		api := &fakeAPI{}
		require.NoError(t, NewMessenger(api, nil).SendPhotoGroup(context.Background(), 5, photos(1)))

		assert.Empty(t, api.groups)
		require.Len(t, api.sent, 1)
		photo, ok := api.sent[0].(tgbotapi.PhotoConfig)
		require.True(t, ok)
		assert.Equal(t, "title", photo.Caption)
	})

	t.Run("one album", func(t *testing.T) {
		api := &fakeAPI{}
		require.NoError(t, NewMessenger(api, nil).SendPhotoGroup(context.Background(), 5, photos(3)))

		require.Len(t, api.groups, 1)
		media := api.groups[0].Media
		require.Len(t, media, 3)
		assert.Equal(t, "title", media[0].(tgbotapi.InputMediaPhoto).Caption)
		assert.Empty(t, media[1].(tgbotapi.InputMediaPhoto).Caption)
	})

	t.Run("chunked with trailing single", func(t *testing.T) {
		api := &fakeAPI{}
		require.NoError(t, NewMessenger(api, nil).SendPhotoGroup(context.Background(), 5, photos(21)))

		require.Len(t, api.groups, 2)
		assert.Len(t, api.groups[0].Media, 10)
		assert.Len(t, api.groups[1].Media, 10)
		assert.Empty(t, api.groups[1].Media[0].(tgbotapi.InputMediaPhoto).Caption)
		require.Len(t, api.sent, 1)
		last := api.sent[0].(tgbotapi.PhotoConfig)
		assert.Equal(t, tgbotapi.FileURL("https://cdn/20.jpg"), last.File)
		assert.Empty(t, last.Caption)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Error(t, NewMessenger(&fakeAPI{}, nil).SendPhotoGroup(context.Background(), 5, nil))
	})

	t.Run("album failure stops delivery", func(t *testing.T) {
		api := &fakeAPI{groupErr: errors.New("Bad Request: wrong file identifier")}
		err := NewMessenger(api, nil).SendPhotoGroup(context.Background(), 5, photos(15))
		assert.Error(t, err)
		assert.Len(t, api.groups, 1)
	})
}
