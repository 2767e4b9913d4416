package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/vkarpekin/mebelbot/internal/dialog"
	"github.com/vkarpekin/mebelbot/internal/telegram"
)

// callbackData serializes a button for the wire as "action" or
// "action:data". parseCallback is the inverse.
func callbackData(b dialog.Button) string {
	if b.Data == "" {
		return b.Action
	}
	return b.Action + ":" + b.Data
}

func parseCallback(data string) (action, payload string) {
	action, payload, _ = strings.Cut(data, ":")
	return action, payload
}

// keyboard converts engine buttons into an inline keyboard, two per
// row. A redirect, when present, becomes a URL button on its own row.
func keyboard(resp dialog.Response) models.ReplyMarkup {
	var rows [][]models.InlineKeyboardButton
	if resp.Redirect != "" {
		rows = append(rows, telegram.ButtonRow(telegram.URLButton("🔗 Открыть форму", resp.Redirect)))
	}

	var row []models.InlineKeyboardButton
	for _, b := range resp.Buttons {
		row = append(row, telegram.InlineButton(b.Text, callbackData(b)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil
	}
	return telegram.InlineKeyboard(rows...)
}

// respond delivers one engine response to a chat.
func (h *Handler) respond(ctx context.Context, chatID int64, resp dialog.Response) {
	if err := telegram.SendLongMessage(ctx, h.bot, chatID, resp.Message, keyboard(resp)); err != nil {
		slog.Error("send response", "error", err, "chat_id", chatID)
	}
}
