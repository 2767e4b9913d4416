package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vkarpekin/mebelbot/internal/dialog"
)

// handleCallback routes every inline button press through the engine.
func (h *Handler) handleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}

	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cb.ID,
	})

	chatID := cb.From.ID
	if cb.Message.Message != nil {
		chatID = cb.Message.Message.Chat.ID
	}

	action, payload := parseCallback(cb.Data)
	resp := h.engine.Process(ctx, dialog.Request{
		UserID:     cb.From.ID,
		Action:     action,
		ActionData: payload,
	})
	h.respond(ctx, chatID, resp)
}
