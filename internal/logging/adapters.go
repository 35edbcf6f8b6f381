package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// TGBotAPIAdapter satisfies tgbotapi.BotLogger on top of slog.
type TGBotAPIAdapter struct {
	Logger *slog.Logger
}

func (a *TGBotAPIAdapter) Println(v ...interface{}) {
	a.Logger.Info(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (a *TGBotAPIAdapter) Printf(format string, v ...interface{}) {
	a.Logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
