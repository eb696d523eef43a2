// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cleanup-quest-bot/internal/config"
	"cleanup-quest-bot/internal/handler"
	"cleanup-quest-bot/internal/pkg/lock"
	"cleanup-quest-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	profileHandler *handler.ProfileHandler
	ticketHandler  *handler.TicketHandler
	missionHandler *handler.MissionHandler
	rankingHandler *handler.RankingHandler
	adminHandler   *handler.AdminHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	Settings       service.Settings
	TicketService  *service.TicketService
	MissionService *service.MissionService
	ProfileService *service.ProfileService
	RankingService *service.RankingService
	Photos         handler.PhotoUploader
	TicketLock     *lock.KeyedLock[string]
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Unhandled bot error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	ticketLock := deps.TicketLock
	if ticketLock == nil {
		ticketLock = lock.New[string]()
	}

	b := &Bot{
		bot:            teleBot,
		cfg:            deps.Config,
		profileHandler: handler.NewProfileHandler(deps.ProfileService, deps.Config.Engine.Location()),
		ticketHandler:  handler.NewTicketHandler(deps.TicketService, deps.Photos, ticketLock, deps.Settings.Rates),
		missionHandler: handler.NewMissionHandler(deps.MissionService),
		rankingHandler: handler.NewRankingHandler(deps.RankingService),
		adminHandler:   handler.NewAdminHandler(deps.MissionService),
	}

	b.registerMiddleware(deps.ProfileService)
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware(profiles ProfileEnsurer) {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
	b.bot.Use(ProfileMiddleware(profiles))
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	// Profile
	b.bot.Handle("/start", b.profileHandler.HandleStart)
	b.bot.Handle("/profile", b.profileHandler.HandleProfile)
	b.bot.Handle("/history", b.profileHandler.HandleHistory)

	// Tickets; /report and /complete arrive as photo captions
	b.bot.Handle(tele.OnPhoto, b.ticketHandler.HandlePhoto)
	b.bot.Handle("/accept", b.ticketHandler.HandleAccept)
	b.bot.Handle("/start_cleaning", b.ticketHandler.HandleStartCleaning)
	b.bot.Handle("/abandon", b.ticketHandler.HandleAbandon)
	b.bot.Handle("/approve", b.ticketHandler.HandleApprove)
	b.bot.Handle("/reject", b.ticketHandler.HandleReject)
	b.bot.Handle("/ticket", b.ticketHandler.HandleTicket)
	b.bot.Handle("/open", b.ticketHandler.HandleOpen)
	b.bot.Handle("/mine", b.ticketHandler.HandleMine)

	// Missions
	b.bot.Handle("/missions", b.missionHandler.HandleMissions)
	b.bot.Handle("/mission", b.missionHandler.HandleMission)

	// Rankings
	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/weekly_top", b.rankingHandler.HandleWeeklyTop)

	// Admin
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/mission_new", b.adminHandler.HandleMissionNew)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
