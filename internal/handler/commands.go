package handler

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vkarpekin/mebelbot/internal/dialog"
)

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	resp := h.engine.Process(ctx, dialog.Request{
		UserID:  update.Message.From.ID,
		Message: "привет",
	})
	h.respond(ctx, update.Message.Chat.ID, resp)
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	resp := h.engine.Process(ctx, dialog.Request{
		UserID: update.Message.From.ID,
		Action: dialog.ActionHelp,
	})
	h.respond(ctx, update.Message.Chat.ID, resp)
}

// handleReset drops the dialog session and the context memory, then
// greets from a clean slate.
func (h *Handler) handleReset(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID

	if err := h.sessions.Delete(ctx, userID); err != nil {
		slog.Error("reset session", "error", err, "user_id", userID)
	}
	if err := h.contexts.Delete(ctx, userID); err != nil {
		slog.Error("reset context memory", "error", err, "user_id", userID)
	}

	resp := h.engine.Process(ctx, dialog.Request{UserID: userID, Message: "привет"})
	resp.Message = "🧹 Начинаем с чистого листа.\n\n" + resp.Message
	h.respond(ctx, update.Message.Chat.ID, resp)
}

// handleContext shows what the bot currently remembers about the user.
// Admins can pass another user id: /context 123456.
func (h *Handler) handleContext(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID

	arg := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/context"))
	if arg != "" && h.cfg.IsAdmin(userID) {
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			userID = id
		}
	}

	mem, err := h.contexts.Get(ctx, userID)
	if err != nil {
		slog.Error("load context memory", "error", err, "user_id", userID)
	}
	if mem == nil || mem.Summary == "" {
		h.sendText(ctx, update.Message.Chat.ID, "Пока ничего не запомнил. Контекст живет 24 часа с последней активности.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🧠 Что я помню:\n\n")
	sb.WriteString(mem.Summary)
	if sugg := mem.Suggestions(); len(sugg) > 0 {
		sb.WriteString("\n\nПодсказки:")
		for _, sg := range sugg {
			sb.WriteString("\n• " + sg)
		}
	}
	h.sendText(ctx, update.Message.Chat.ID, sb.String())
}

func (h *Handler) sendText(ctx context.Context, chatID int64, text string) {
	_, err := h.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		slog.Error("send message", "error", err, "chat_id", chatID)
	}
}
