package handler

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vkarpekin/mebelbot/internal/dialog"
	"github.com/vkarpekin/mebelbot/internal/telegram"
)

// HandleText is the default handler for plain messages: every non-command
// text goes straight into the dialog engine.
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	text := strings.TrimSpace(update.Message.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return
	}
	chatID := update.Message.Chat.ID

	stopTyping := telegram.StartTyping(ctx, b, chatID)
	resp := h.engine.Process(ctx, dialog.Request{
		UserID:  update.Message.From.ID,
		Message: text,
	})
	stopTyping()

	h.respond(ctx, chatID, resp)
}
