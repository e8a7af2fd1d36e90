package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/loadthegraphics/ltgbot/internal/models"
	"github.com/loadthegraphics/ltgbot/internal/util"
)

const downloadButtonText = "📥 Download Now"

// resultsKeyboard renders one button per result, one per row.
func resultsKeyboard(sessionID string, results []models.MovieResult, maxText int) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(results))
	for i, r := range results {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				util.Truncate(r.Title, maxText),
				encodeCallback(callbackMovie, sessionID, i),
			),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func optionsKeyboard(sessionID string, options []models.DownloadOption, maxText int) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for i, o := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				util.Truncate(o.Label(), maxText),
				encodeCallback(callbackOption, sessionID, i),
			),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func downloadKeyboard(link string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(downloadButtonText, link),
		),
	)
}
