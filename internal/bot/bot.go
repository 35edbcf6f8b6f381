package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/destroydevs/TikFetchBot/internal/logging"
	"github.com/destroydevs/TikFetchBot/internal/metrics"
	"github.com/destroydevs/TikFetchBot/internal/service"
)

const retryDelay = 3 * time.Second

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// Handler processes one converted update.
type Handler interface {
	Handle(ctx context.Context, upd service.Update) (service.Outcome, error)
}

// Bot polls Telegram and runs every update in its own goroutine.
type Bot struct {
	api         API
	handler     Handler
	metrics     *metrics.Metrics
	logger      *slog.Logger
	pollTimeout int
	offset      int
	wg          sync.WaitGroup
}

// NewAPI authorizes the token and routes library logs through logger.
func NewAPI(token string, debug bool, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	if err := tgbotapi.SetLogger(&logging.TGBotAPIAdapter{Logger: logger.With("component", "tgbotapi")}); err != nil {
		return nil, fmt.Errorf("set bot logger: %w", err)
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	api.Debug = debug
	logger.Info("bot authorized", "account", api.Self.UserName)
	return api, nil
}

func New(api API, handler Handler, pollTimeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Bot {
	secs := int(pollTimeout.Seconds())
	if secs <= 0 {
		secs = 60
	}
	return &Bot{
		api:         api,
		handler:     handler,
		metrics:     m,
		logger:      logger.With("component", "bot"),
		pollTimeout: secs,
	}
}

// Start polls updates until ctx is cancelled, then waits for in-flight updates.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("start polling updates", "timeout", b.pollTimeout)
	defer b.wg.Wait()

	for {
		updates, err := b.poll(ctx)
		if ctx.Err() != nil {
			b.logger.Info("polling stopped")
			return nil
		}
		if err != nil {
			b.logger.Error("get updates failed", "error", err)
			b.metrics.ObserveError("poll")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= b.offset {
				b.offset = u.UpdateID + 1
			}
			upd, ok := convert(u)
			if !ok {
				continue
			}
			b.dispatch(ctx, upd)
		}
	}
}

// dispatch runs the update on its own goroutine. Shutdown does not cancel it.
func (b *Bot) dispatch(ctx context.Context, upd service.Update) {
	upd.RequestID = uuid.NewString()
	taskCtx := context.WithoutCancel(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		log := b.logger.With("request_id", upd.RequestID)
		outcome, err := b.handler.Handle(taskCtx, upd)
		if err != nil {
			b.metrics.ObserveError("pipeline")
			log.Error("handle update", "error", err, "outcome", outcome)
			return
		}
		log.Debug("update handled", "outcome", outcome)
	}()
}

type polledUpdate struct {
	tgbotapi.Update
	isTopicMessage bool
}

type pollResult struct {
	updates []polledUpdate
	err     error
}

// poll abandons the in-flight long poll when ctx is cancelled. The request
// goroutine lives on for at most pollTimeout; the buffered channel lets it
// exit without a reader.
func (b *Bot) poll(ctx context.Context) ([]polledUpdate, error) {
	done := make(chan pollResult, 1)
	go func() {
		updates, err := b.getUpdates()
		done <- pollResult{updates: updates, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.updates, res.err
	}
}

// topicFlags holds the fields tgbotapi v5 does not model.
type topicFlags struct {
	Message *struct {
		IsTopicMessage bool `json:"is_topic_message"`
	} `json:"message"`
}

func (b *Bot) getUpdates() ([]polledUpdate, error) {
	resp, err := b.api.Request(tgbotapi.UpdateConfig{
		Offset:         b.offset,
		Timeout:        b.pollTimeout,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return nil, err
	}
	return decodeUpdates(resp.Result)
}

func decodeUpdates(raw json.RawMessage) ([]polledUpdate, error) {
	var updates []tgbotapi.Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	var flags []topicFlags
	if err := json.Unmarshal(raw, &flags); err != nil {
		return nil, fmt.Errorf("decode topic flags: %w", err)
	}

	out := make([]polledUpdate, len(updates))
	for i, u := range updates {
		out[i].Update = u
		if i < len(flags) && flags[i].Message != nil {
			out[i].isTopicMessage = flags[i].Message.IsTopicMessage
		}
	}
	return out, nil
}

// convert keeps plain messages. Validation of their content is the pipeline's job.
func convert(u polledUpdate) (service.Update, bool) {
	msg := u.Message
	if msg == nil {
		return service.Update{}, false
	}

	upd := service.Update{
		Text:           msg.Text,
		IsTopicMessage: u.isTopicMessage,
	}
	if msg.Chat != nil {
		upd.ChatID = msg.Chat.ID
	}
	if msg.From != nil {
		upd.From = &service.Sender{
			ID:           msg.From.ID,
			DisplayName:  displayName(msg.From),
			LanguageCode: msg.From.LanguageCode,
		}
	}
	return upd, true
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.UserName
	}
	return name
}
