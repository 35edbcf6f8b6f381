package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/destroydevs/TikFetchBot/internal/metrics"
	"github.com/destroydevs/TikFetchBot/internal/model"
)

const maxBodyBytes = 4 << 20

// RequestCounter records a successful resolution for a user.
type RequestCounter interface {
	IncrementRequestCount(ctx context.Context, id int64) error
}

// Cache stores resolved media by source link.
type Cache interface {
	Get(ctx context.Context, sourceURL string) (model.Media, bool, error)
	Set(ctx context.Context, sourceURL string, media model.Media) error
}

// Config configures the content API client.
type Config struct {
	BaseURL          string
	UserAgent        string
	Timeout          time.Duration
	FallbackAudioURL string
	DefaultTitle     string
}

// Client resolves short-video links through the tikwm API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	counter    RequestCounter
	cache      Cache
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(cfg Config, counter RequestCounter, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		counter:    counter,
		logger:     logger.With("component", "resolver"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve turns sourceURL into media. On success, and only then, the user's
// request counter is incremented.
func (c *Client) Resolve(ctx context.Context, sourceURL string, userID int64) (model.Media, error) {
	log := c.logger.With("user_id", userID)
	log.Info("fetching media metadata")

	if media, ok := c.lookupCache(ctx, log, sourceURL); ok {
		if err := c.counter.IncrementRequestCount(ctx, userID); err != nil {
			return nil, fmt.Errorf("record request: %w", err)
		}
		c.metrics.ObserveResolve("cache", 0)
		return media, nil
	}

	started := time.Now()
	media, err := c.fetch(ctx, sourceURL)
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			c.metrics.ObserveResolve(string(rerr.Kind), time.Since(started))
		}
		log.Warn("resolution failed", "error", err)
		return nil, err
	}
	c.metrics.ObserveResolve(mediaKind(media), time.Since(started))

	if err := c.counter.IncrementRequestCount(ctx, userID); err != nil {
		return nil, fmt.Errorf("record request: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, sourceURL, media); err != nil {
			log.Warn("media cache write failed", "error", err)
		}
	}

	log.Info("fetching finished", "kind", mediaKind(media))
	return media, nil
}

func (c *Client) lookupCache(ctx context.Context, log *slog.Logger, sourceURL string) (model.Media, bool) {
	if c.cache == nil {
		return nil, false
	}
	media, ok, err := c.cache.Get(ctx, sourceURL)
	if err != nil {
		log.Warn("media cache read failed", "error", err)
		return nil, false
	}
	c.metrics.ObserveCache(ok)
	return media, ok
}

type apiEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type apiData struct {
	Images json.RawMessage `json:"images"`
	Title  json.RawMessage `json:"title"`
	Music  json.RawMessage `json:"music"`
	Play   json.RawMessage `json:"play"`
}

func (c *Client) fetch(ctx context.Context, sourceURL string) (model.Media, error) {
	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("parse api url: %w", err)}
	}
	q := endpoint.Query()
	q.Set("url", sourceURL)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&envelope); err != nil {
		return nil, &Error{Kind: KindDecode, Err: fmt.Errorf("status %d: %w", resp.StatusCode, err)}
	}

	return c.classify(envelope)
}

// classify prefers images over play: a slideshow also carries a play URL.
func (c *Client) classify(envelope apiEnvelope) (model.Media, error) {
	var data apiData
	// A non-object data field carries no media.
	_ = json.Unmarshal(envelope.Data, &data)

	title, ok := stringValue(data.Title)
	if !ok {
		title = c.cfg.DefaultTitle
	}
	audio, ok := stringValue(data.Music)
	if !ok || audio == "" {
		audio = c.cfg.FallbackAudioURL
	}

	if images := stringList(data.Images); len(images) > 0 {
		return model.PhotoSet{URLs: images, Title: title, AudioURL: audio}, nil
	}

	play, ok := stringValue(data.Play)
	if !ok || play == "" {
		return nil, &Error{
			Kind: KindContentNotFound,
			Err:  fmt.Errorf("api code %d: %s", envelope.Code, envelope.Msg),
		}
	}
	return model.Video{URL: play, Title: title, AudioURL: audio}, nil
}

func stringValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// stringList keeps the string elements of a JSON array and drops the rest.
func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := stringValue(item); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mediaKind(media model.Media) string {
	switch media.(type) {
	case model.Video:
		return "video"
	case model.PhotoSet:
		return "photos"
	default:
		return "unknown"
	}
}
