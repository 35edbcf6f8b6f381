package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/destroydevs/TikFetchBot/internal/model"
)

const mediaKeyPrefix = "tikfetch:media:"

// JSONStore is the subset of Redis used by MediaCache.
type JSONStore interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
}

// MediaCache keeps resolved media keyed by source link.
type MediaCache struct {
	store JSONStore
	ttl   time.Duration
}

func NewMediaCache(store JSONStore, ttl time.Duration) *MediaCache {
	return &MediaCache{store: store, ttl: ttl}
}

// mediaEnvelope tags the variant so it survives a JSON round trip.
type mediaEnvelope struct {
	Kind   string          `json:"kind"`
	Video  *model.Video    `json:"video,omitempty"`
	Photos *model.PhotoSet `json:"photos,omitempty"`
}

func (c *MediaCache) Get(ctx context.Context, sourceURL string) (model.Media, bool, error) {
	var env mediaEnvelope
	ok, err := c.store.GetJSON(ctx, mediaKey(sourceURL), &env)
	if err != nil || !ok {
		return nil, false, err
	}
	media, err := env.media()
	if err != nil {
		return nil, false, err
	}
	return media, true, nil
}

func (c *MediaCache) Set(ctx context.Context, sourceURL string, media model.Media) error {
	env, err := envelopeFor(media)
	if err != nil {
		return err
	}
	return c.store.SetJSON(ctx, mediaKey(sourceURL), env, c.ttl)
}

func envelopeFor(media model.Media) (mediaEnvelope, error) {
	switch m := media.(type) {
	case model.Video:
		return mediaEnvelope{Kind: "video", Video: &m}, nil
	case model.PhotoSet:
		return mediaEnvelope{Kind: "photos", Photos: &m}, nil
	default:
		return mediaEnvelope{}, fmt.Errorf("unsupported media %T", media)
	}
}

func (e mediaEnvelope) media() (model.Media, error) {
	switch {
	case e.Kind == "video" && e.Video != nil:
		return *e.Video, nil
	case e.Kind == "photos" && e.Photos != nil && len(e.Photos.URLs) > 0:
		return *e.Photos, nil
	default:
		return nil, fmt.Errorf("malformed cached media of kind %q", e.Kind)
	}
}

func mediaKey(sourceURL string) string {
	sum := sha1.Sum([]byte(sourceURL))
	return mediaKeyPrefix + hex.EncodeToString(sum[:])
}
