package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const tokenMask = "bot***:***masked-token***"

// bot<id>:<secret> as it appears in Bot API request URLs.
var telegramTokenRegex = regexp.MustCompile(`\bbot\d+:[A-Za-z0-9_-]{30,}`)

// TokenMaskerHandler wraps a slog.Handler and masks bot tokens in messages and attributes.
type TokenMaskerHandler struct {
	handler  slog.Handler
	replacer *strings.Replacer
}

// NewTokenMaskerHandler wraps handler. Non-empty secrets are masked wherever
// they appear, even without the "bot" prefix.
func NewTokenMaskerHandler(handler slog.Handler, secrets ...string) *TokenMaskerHandler {
	var pairs []string
	for _, s := range secrets {
		if s = strings.TrimSpace(s); s != "" {
			pairs = append(pairs, s, "***masked-token***")
		}
	}
	h := &TokenMaskerHandler{handler: handler}
	if len(pairs) > 0 {
		h.replacer = strings.NewReplacer(pairs...)
	}
	return h
}

func (h *TokenMaskerHandler) mask(text string) string {
	text = telegramTokenRegex.ReplaceAllString(text, tokenMask)
	if h.replacer != nil {
		text = h.replacer.Replace(text)
	}
	return text
}

func (h *TokenMaskerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *TokenMaskerHandler) Handle(ctx context.Context, record slog.Record) error {
	// Build a fresh record; the incoming one may be reused by slog.
	r := slog.NewRecord(record.Time, record.Level, h.mask(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.handler.Handle(ctx, r)
}

func (h *TokenMaskerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.maskAttr(a)
	}
	return &TokenMaskerHandler{handler: h.handler.WithAttrs(masked), replacer: h.replacer}
}

func (h *TokenMaskerHandler) WithGroup(name string) slog.Handler {
	return &TokenMaskerHandler{handler: h.handler.WithGroup(name), replacer: h.replacer}
}

func (h *TokenMaskerHandler) maskAttr(a slog.Attr) slog.Attr {
	return slog.Attr{Key: a.Key, Value: h.maskValue(a.Value)}
}

func (h *TokenMaskerHandler) maskValue(value slog.Value) slog.Value {
	value = value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		return slog.StringValue(h.mask(value.String()))
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return slog.StringValue(h.mask(err.Error()))
		}
		return value
	case slog.KindGroup:
		group := value.Group()
		masked := make([]slog.Attr, len(group))
		for i, a := range group {
			masked[i] = h.maskAttr(a)
		}
		return slog.GroupValue(masked...)
	default:
		return value
	}
}
