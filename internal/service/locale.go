package service

import (
	"fmt"
	"html"
	"strings"
)

// Bundle holds every user-facing notice in one language. Texts are HTML.
type Bundle struct {
	Welcome     string
	WelcomeBack string
	Help        string
	Processing  string
	// Failure has a single %s verb for the escaped reason.
	Failure string
}

const (
	bundleEnglish = "en"
	bundleRussian = "ru"
)

var bundles = map[string]Bundle{
	bundleEnglish: {
		Welcome: "<b>👋 Welcome!</b>\n\n" +
			"Send me a TikTok link and I will reply with the video or photos and the soundtrack.",
		WelcomeBack: "<b>👋 Welcome back!</b>\n\nGood to see you again.",
		Help: "<b>ℹ️ Current Bot Functions</b>\n\n" +
			"Currently, the bot only supports <b>TikTok video downloads</b>.\n\n" +
			"Please send a valid TikTok video link to proceed.\n\n" +
			"<i>Example: https://vm.tiktok.com/ABC123/</i> 🎥",
		Processing: "<b>⏳ Downloading TikTok video...</b>\n\nPlease wait while we process your request! 🎬",
		Failure:    "<b>❌ Download failed!</b>\n\nReason: <code>%s</code>\n\nPlease try again later! 🎬",
	},
	bundleRussian: {
		Welcome: "<b>👋 Добро пожаловать!</b>\n\n" +
			"Отправьте ссылку на TikTok, и я пришлю видео или фото вместе со звуком.",
		WelcomeBack: "<b>👋 С возвращением!</b>\n\nРады видеть вас снова.",
		Help: "<b>ℹ️ Доступные функции</b>\n\n" +
			"На данный момент бот поддерживает только <b>скачивание видео из TikTok</b>.\n\n" +
			"Отправьте рабочую ссылку на видео для продолжения.\n\n" +
			"<i>Пример: https://vm.tiktok.com/ABC123/</i> 🎬",
		Processing: "<b>⏳ Скачивание видео из TikTok...</b>\n\nПожалуйста, подождите, пока мы обрабатываем ваш запрос! 🎬",
		Failure:    "<b>❌ Скачивание не удалось!</b>\n\nПричина: <code>%s</code>\n\nПопробуйте позже! 🎬",
	},
}

// localeBundles maps a primary language subtag to a bundle key.
var localeBundles = map[string]string{
	"ru": bundleRussian, // russia
	"rs": bundleRussian, // serbia
	"ua": bundleRussian, // ukraine
	"by": bundleRussian, // belarus
	"kz": bundleRussian, // kazakhstan
	"md": bundleRussian, // moldova
	"sk": bundleRussian, // slovakia
	"si": bundleRussian, // slovenia
	"lv": bundleRussian, // latvia
	"ee": bundleRussian, // estonia
}

// BundleFor picks the notices for a Telegram language code such as "ru" or "en-US".
func BundleFor(languageCode string) Bundle {
	tag := strings.ToLower(strings.TrimSpace(languageCode))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	if key, ok := localeBundles[tag]; ok {
		return bundles[key]
	}
	return bundles[bundleEnglish]
}

// FailureText renders the failure notice with reason escaped for HTML.
func (b Bundle) FailureText(reason string) string {
	return fmt.Sprintf(b.Failure, html.EscapeString(reason))
}
