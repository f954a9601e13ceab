// Package bot is the Telegram front of the slip builder: it owns the telebot
// instance, the router and middleware chain, and the surface/dispatcher pair
// that connects chat updates to builder sessions.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/bot/handlers"
	"github.com/wagerdeck/wagerdeck-bot/internal/bot/keyboard"
	apperrors "github.com/wagerdeck/wagerdeck-bot/internal/errors"
	"github.com/wagerdeck/wagerdeck-bot/internal/catalog"
	"github.com/wagerdeck/wagerdeck-bot/internal/i18n"
	"github.com/wagerdeck/wagerdeck-bot/internal/idempotency"
	"github.com/wagerdeck/wagerdeck-bot/internal/middleware"
	"github.com/wagerdeck/wagerdeck-bot/internal/session"
	"github.com/wagerdeck/wagerdeck-bot/pkg/config"
)

// Bot wraps telebot.Bot with the application wiring needed to handle updates.
type Bot struct {
	telebot            *telebot.Bot
	log                *slog.Logger
	cfg                config.Config
	engine             *session.Engine
	translator         i18n.Translator
	router             *Router
	dispatcher         *Dispatcher
	surface            *Surface
	errHandler         *apperrors.Handler
	rateLimitMw        *middleware.RateLimitMiddleware
	idempotencyManager idempotency.Manager
}

// New builds a telegram bot instance configured according to the application
// settings.
func New(
	cfg config.Config,
	log *slog.Logger,
	engine *session.Engine,
	bundle *i18n.Bundle,
	idempotencyManager idempotency.Manager,
	rateLimitMw *middleware.RateLimitMiddleware,
) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen: cfg.Server.Port,
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	translator := bundle.Translator("en")
	surface := NewSurface(keyboard.NewBuilder(translator, log), translator, log)
	dispatcher := NewDispatcher(engine, surface, log)
	router := NewRouter(dispatcher, log)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	b := &Bot{
		telebot:            tb,
		log:                log,
		cfg:                cfg,
		engine:             engine,
		translator:         translator,
		router:             router,
		dispatcher:         dispatcher,
		surface:            surface,
		errHandler:         errHandler,
		rateLimitMw:        rateLimitMw,
		idempotencyManager: idempotencyManager,
	}

	b.setupRouter()

	if b.rateLimitMw != nil {
		b.telebot.Use(b.rateLimitMw.Handle)
	}

	engine.SetExpiryNotifier(b.notifyExpiry)

	b.registerTelebotHandlers()

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	if b.log != nil {
		b.log.Info("stopping telegram bot...")
	}

	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such
// as health checks and the channel publisher.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) setupRouter() {
	b.router.Use(RecoveryMiddleware(b.log, b.errHandler, b.translator))
	b.router.Use(middleware.Idempotency(b.idempotencyManager, b.log))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler, b.translator))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(middleware.Metrics)

	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(b.translator, b.log))
	b.router.RegisterCommand(CommandHelp, handlers.NewStartHandler(b.translator, b.log))
	b.router.RegisterCommand(CommandCancel, handlers.NewCancelHandler(b.engine, b.translator, b.log))

	betHandler := newFlowHandler(b.engine, b.surface, catalog.ModeSingle, b.log)
	parlayHandler := newFlowHandler(b.engine, b.surface, catalog.ModeParlay, b.log)
	browseHandler := newFlowHandler(b.engine, b.surface, catalog.ModeBrowse, b.log)

	b.router.RegisterCommand(CommandBet, betHandler)
	b.router.RegisterCommand(CommandParlay, parlayHandler)
	b.router.RegisterCommand(CommandBrowse, browseHandler)

	// The persistent reply keyboard sends its labels as plain text.
	b.router.RegisterCommand(b.surface.translate("main_menu.bet", "🎯 New bet"), betHandler)
	b.router.RegisterCommand(b.surface.translate("main_menu.parlay", "🧩 New parlay"), parlayHandler)
	b.router.RegisterCommand(b.surface.translate("main_menu.browse", "👀 Browse lines"), browseHandler)
	b.router.RegisterCommand(b.surface.translate("main_menu.cancel", "✖️ Cancel draft"), handlers.NewCancelHandler(b.engine, b.translator, b.log))

	// Page flips redraw the current prompt instead of advancing the session.
	b.router.RegisterCallback(keyboard.PageUnique+keyboard.CallbackDataSeparator, b.dispatcher.HandlePage)

	b.router.SetDefault(newUnknownHandler(b.surface))
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil || b.router == nil {
		return
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)
}

// notifyExpiry tells the user their draft timed out. Runs off the timer
// goroutine, so failures are only logged.
func (b *Bot) notifyExpiry(s *session.Session) {
	text := b.surface.translate("builder.expired", "Your draft expired after inactivity and was discarded.")

	if _, err := b.telebot.Send(telebot.ChatID(s.OwnerID), text); err != nil && b.log != nil {
		b.log.Warn("failed to deliver expiry notice",
			slog.Int64("owner_id", s.OwnerID),
			slog.Any("error", err))
	}
}
