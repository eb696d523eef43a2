package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cleanup-quest-bot/internal/config"
	"cleanup-quest-bot/internal/model"
)

// privateUsers tracks users seen in a whitelisted community chat; they may
// also talk to the bot privately, which is where photos are usually sent.
type privateUsers struct {
	mu    sync.RWMutex
	users map[int64]bool
}

func newPrivateUsers() *privateUsers {
	return &privateUsers{users: make(map[int64]bool)}
}

func (p *privateUsers) allow(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = true
}

func (p *privateUsers) allowed(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.users[userID]
}

// WhitelistMiddleware drops updates from chats outside the whitelist.
// Private chats are accepted from users already seen in an allowed chat.
func WhitelistMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	seen := newPrivateUsers()
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			sender := c.Sender()

			if chat == nil || sender == nil {
				return nil
			}

			if chat.Type == tele.ChatPrivate {
				if seen.allowed(sender.ID) || len(cfg.Whitelist.Chats) == 0 || cfg.IsAdmin(sender.ID) {
					return next(c)
				}
				log.Debug().
					Int64("user_id", sender.ID).
					Msg("Ignoring private chat from user not seen in a community chat")
				return nil
			}

			if !cfg.IsChatAllowed(chat.ID) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Msg("Ignoring command from non-whitelisted chat")
				return nil
			}

			seen.allow(sender.ID)
			return next(c)
		}
	}
}

// AdminMiddleware rejects senders that are not configured admins.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("🚫 Permiso denegado: solo administradores")
			}

			return next(c)
		}
	}
}

// ProfileEnsurer creates or refreshes a user's profile.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, userID int64, username string) (*model.Profile, bool, error)
}

// ProfileMiddleware keeps the sender's profile and username current before
// any command except /start runs, which creates the profile itself. Failures
// are logged and the command still runs.
func ProfileMiddleware(profiles ProfileEnsurer) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || sender.IsBot || !isCommand(c) {
				return next(c)
			}

			username := sender.Username
			if username == "" {
				username = sender.FirstName
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, _, err := profiles.EnsureProfile(ctx, sender.ID, username); err != nil {
				log.Warn().Err(err).Int64("user_id", sender.ID).Msg("Failed to ensure profile")
			}
			return next(c)
		}
	}
}

func isCommand(c tele.Context) bool {
	text := c.Text()
	if text == "/start" || strings.HasPrefix(text, "/start ") || strings.HasPrefix(text, "/start@") {
		return false
	}
	if strings.HasPrefix(text, "/") {
		return true
	}
	msg := c.Message()
	return msg != nil && strings.HasPrefix(msg.Caption, "/")
}

// LoggingMiddleware logs every incoming update at debug level.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received message")

			return next(c)
		}
	}
}

// RecoveryMiddleware recovers from panics in handlers.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					err = c.Reply("❌ Error interno, inténtalo más tarde")
				}
			}()
			return next(c)
		}
	}
}
