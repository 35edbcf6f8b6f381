package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/destroydevs/TikFetchBot/internal/metrics"
	"github.com/destroydevs/TikFetchBot/internal/model"
	"github.com/destroydevs/TikFetchBot/internal/repository"
)

// welcomeBackAfterDays is the absence, in whole days, that earns a greeting.
const welcomeBackAfterDays = 3

// Sender identifies the author of an update.
type Sender struct {
	ID           int64
	DisplayName  string
	LanguageCode string
}

// Update is an inbound chat message reduced to what the pipeline needs.
// ChatID 0 means the chat is unknown.
type Update struct {
	RequestID      string
	Text           string
	ChatID         int64
	From           *Sender
	IsTopicMessage bool
}

// Photo is one item of a photo group. Only the first carries a caption.
type Photo struct {
	URL     string
	Caption string
}

// Messenger delivers to a chat. SendText takes HTML; media captions are plain.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendVideo(ctx context.Context, chatID int64, url, caption string) error
	SendPhotoGroup(ctx context.Context, chatID int64, photos []Photo) error
	SendAudio(ctx context.Context, chatID int64, url string) error
}

// Resolver turns a source link into media and records the request on success.
type Resolver interface {
	Resolve(ctx context.Context, sourceURL string, userID int64) (model.Media, error)
}

// Outcome is the terminal state of one update.
type Outcome string

const (
	OutcomeSkipped          Outcome = "skipped"
	OutcomeInformed         Outcome = "informed"
	OutcomeDelivered        Outcome = "delivered"
	OutcomeResolutionFailed Outcome = "resolution_failed"
	OutcomeFailed           Outcome = "failed"
)

// Pipeline runs one update through validation, user sync, resolution and delivery.
type Pipeline struct {
	store     repository.UserStore
	resolver  Resolver
	messenger Messenger
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	locks     userLocks
}

type PipelineOption func(*Pipeline)

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

func NewPipeline(store repository.UserStore, resolver Resolver, messenger Messenger, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		store:     store,
		resolver:  resolver,
		messenger: messenger,
		logger:    logger.With("component", "pipeline"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle processes one update. Errors are local to the update; the caller logs them.
func (p *Pipeline) Handle(ctx context.Context, upd Update) (Outcome, error) {
	outcome, err := p.handle(ctx, upd)
	p.metrics.ObserveUpdate(string(outcome))
	return outcome, err
}

func (p *Pipeline) handle(ctx context.Context, upd Update) (Outcome, error) {
	if upd.Text == "" || upd.ChatID == 0 || upd.From == nil || upd.IsTopicMessage {
		return OutcomeSkipped, nil
	}
	sender := *upd.From
	log := p.logger.With("request_id", upd.RequestID, "user_id", sender.ID, "chat_id", upd.ChatID)
	bundle := BundleFor(sender.LanguageCode)

	greeting, err := p.syncUser(ctx, upd.ChatID, sender, bundle)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("sync user %d: %w", sender.ID, err)
	}
	if greeting != "" {
		if err := p.messenger.SendText(ctx, upd.ChatID, greeting); err != nil {
			return OutcomeFailed, fmt.Errorf("send greeting: %w", err)
		}
	}

	if !IsSourceLink(upd.Text) {
		if err := p.messenger.SendText(ctx, upd.ChatID, bundle.Help); err != nil {
			return OutcomeFailed, fmt.Errorf("send help: %w", err)
		}
		return OutcomeInformed, nil
	}

	if err := p.messenger.SendText(ctx, upd.ChatID, bundle.Processing); err != nil {
		return OutcomeFailed, fmt.Errorf("send processing notice: %w", err)
	}

	log.Info("resolving link")
	media, err := p.resolver.Resolve(ctx, upd.Text, sender.ID)
	if err != nil {
		var reasoned interface{ Reason() string }
		if !errors.As(err, &reasoned) {
			return OutcomeFailed, fmt.Errorf("resolve: %w", err)
		}
		log.Warn("resolution failed", "error", err)
		if err := p.messenger.SendText(ctx, upd.ChatID, bundle.FailureText(reasoned.Reason())); err != nil {
			return OutcomeFailed, fmt.Errorf("send failure notice: %w", err)
		}
		return OutcomeResolutionFailed, nil
	}

	if err := p.deliver(ctx, upd.ChatID, media); err != nil {
		return OutcomeFailed, err
	}
	log.Info("media delivered")
	return OutcomeDelivered, nil
}

// syncUser creates or refreshes the sender's record and returns the greeting
// to send, if any. The per-user lock keeps check-then-create race free.
func (p *Pipeline) syncUser(ctx context.Context, chatID int64, sender Sender, bundle Bundle) (string, error) {
	unlock := p.locks.lock(sender.ID)
	defer unlock()

	now := model.Millis(p.now())
	exists, err := p.store.Exists(ctx, sender.ID)
	if err != nil {
		return "", err
	}
	if !exists {
		chat := chatID
		err := p.store.Create(ctx, model.User{
			ID:           sender.ID,
			ChatID:       &chat,
			Name:         sender.DisplayName,
			LastSeenAt:   now,
			RegisteredAt: now,
		})
		if err == nil {
			p.logger.Info("user registered", "user_id", sender.ID)
			return bundle.Welcome, nil
		}
		// Another process may have created the record since Exists.
		if !errors.Is(err, repository.ErrAlreadyExists) {
			return "", err
		}
	}

	user, err := p.store.Fetch(ctx, sender.ID)
	if err != nil {
		return "", err
	}
	if user.Name != sender.DisplayName {
		if err := p.store.SetField(ctx, sender.ID, model.FieldName, sender.DisplayName); err != nil {
			return "", err
		}
	}
	if user.ChatID == nil {
		if err := p.store.SetField(ctx, sender.ID, model.FieldChatID, strconv.FormatInt(chatID, 10)); err != nil {
			return "", err
		}
	}

	if model.DaysBetween(user.LastSeenAt, now) >= welcomeBackAfterDays {
		return bundle.WelcomeBack, nil
	}
	return "", nil
}

// deliver sends the media followed by its audio track. A failed send ends
// delivery; nothing already sent is retried.
func (p *Pipeline) deliver(ctx context.Context, chatID int64, media model.Media) error {
	caption := Caption(media.MediaTitle())

	switch m := media.(type) {
	case model.Video:
		if err := p.messenger.SendVideo(ctx, chatID, m.URL, caption); err != nil {
			return fmt.Errorf("send video: %w", err)
		}
	case model.PhotoSet:
		photos := make([]Photo, len(m.URLs))
		for i, u := range m.URLs {
			photos[i] = Photo{URL: u}
		}
		if len(photos) > 0 {
			photos[0].Caption = caption
		}
		if err := p.messenger.SendPhotoGroup(ctx, chatID, photos); err != nil {
			return fmt.Errorf("send photos: %w", err)
		}
	default:
		return fmt.Errorf("unsupported media %T", media)
	}

	if err := p.messenger.SendAudio(ctx, chatID, media.MediaAudioURL()); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}
