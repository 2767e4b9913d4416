package handler

import (
	"github.com/go-telegram/bot"
)

// Register registers all command and callback handlers on the bot
// instance. Free text is handled by the default handler wired in
// main.go.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleHelp)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/reset", bot.MatchTypePrefix, h.handleReset)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/context", bot.MatchTypePrefix, h.handleContext)

	// Every inline button goes through the engine dispatcher, so one
	// catch-all callback handler is enough.
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, h.handleCallback)
}
