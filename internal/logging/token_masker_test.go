package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleToken = "bot8462697481:AAEJSXuTcb2F1Js2sWiK0TVWvxbHL9xX05Q"

func TestTokenMaskerHandler(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "token in request url",
			input: `Post "https://api.telegram.org/` + sampleToken + `/getUpdates": context canceled`,
			want:  `Post "https://api.telegram.org/bot***:***masked-token***/getUpdates": context canceled`,
		},
		{
			name:  "plain message",
			input: "resolved media",
			want:  "resolved media",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewTokenMaskerHandler(slog.NewJSONHandler(&buf, nil)))
			logger.Info(tt.input)

			var entry struct {
				Msg string `json:"msg"`
			}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.want, entry.Msg)
			assert.NotContains(t, buf.String(), "AAEJSXuTcb2F1Js2sWiK0TVWvxbHL9xX05Q")
		})
	}
}

func TestTokenMaskerHandlerAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTokenMaskerHandler(slog.NewJSONHandler(&buf, nil)))

	logger.With("token", sampleToken).
		WithGroup("req").
		Error("send failed", "err", errors.New("Post /"+sampleToken+"/sendVideo: timeout"))

	out := buf.String()
	assert.NotContains(t, out, sampleToken)
	assert.Contains(t, out, "masked-token")
}

func TestTokenMaskerHandlerSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTokenMaskerHandler(slog.NewTextHandler(&buf, nil), "123:short-secret", " "))

	logger.Info("token is 123:short-secret", "dsn", "postgres://u:123:short-secret@db")

	assert.NotContains(t, buf.String(), "short-secret")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestTGBotAPIAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := &TGBotAPIAdapter{Logger: slog.New(NewTokenMaskerHandler(slog.NewTextHandler(&buf, nil)))}

	adapter.Printf("Endpoint: %s, response: %s", "getMe", "ok")
	adapter.Println("request to", sampleToken)

	assert.Contains(t, buf.String(), "Endpoint: getMe, response: ok")
	assert.NotContains(t, buf.String(), sampleToken)
}
