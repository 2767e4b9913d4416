package handler

import (
	"github.com/go-telegram/bot"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/dialog"
	"github.com/vkarpekin/mebelbot/internal/memory"
)

// Handler holds all dependencies needed by command, text and callback
// handlers.
type Handler struct {
	bot      *bot.Bot
	cfg      *config.Config
	engine   *dialog.Engine
	sessions dialog.SessionStore
	contexts memory.Store
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot      *bot.Bot
	Cfg      *config.Config
	Engine   *dialog.Engine
	Sessions dialog.SessionStore
	Contexts memory.Store
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:      deps.Bot,
		cfg:      deps.Cfg,
		engine:   deps.Engine,
		sessions: deps.Sessions,
		contexts: deps.Contexts,
	}
}
