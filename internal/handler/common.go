// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cleanup-quest-bot/internal/lifecycle"
	"cleanup-quest-bot/internal/model"
	"cleanup-quest-bot/internal/pkg/lock"
	"cleanup-quest-bot/internal/service"
)

// lockTimeout bounds how long a command waits behind another one on the
// same ticket.
const lockTimeout = 5 * time.Second

// requestTimeout bounds a single command end to end.
const requestTimeout = 30 * time.Second

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// errorMessage turns an engine error into the reply shown to the user.
func errorMessage(err error) string {
	if errors.Is(err, lock.ErrLockTimeout) {
		return "⏳ Alguien más está actualizando este ticket, inténtalo de nuevo"
	}

	switch service.KindOf(err) {
	case service.KindNotFound:
		return "❌ No encontrado"
	case service.KindInvalidTransition:
		var te *lifecycle.TransitionError
		if errors.As(err, &te) {
			return fmt.Sprintf("❌ El ticket está %s, no se puede pasar a %s", statusLabel(te.From), statusLabel(te.To))
		}
		return "❌ Esa acción no es posible en el estado actual del ticket"
	case service.KindForbidden:
		return "🚫 No tienes permiso para hacer esto"
	case service.KindValidationFailed:
		return "❌ Datos inválidos: " + detail(err, service.ErrValidationFailed)
	case service.KindAlreadyCompleted:
		return "✅ Ya completaste esta misión"
	case service.KindConflictRetry:
		return "⏳ El ticket cambió mientras lo actualizabas, inténtalo de nuevo"
	default:
		return "❌ Error interno, inténtalo más tarde"
	}
}

// detail strips the sentinel text from a wrapped error message.
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}

// replyError logs unexpected failures and answers with errorMessage.
func replyError(c tele.Context, op string, err error) error {
	if service.KindOf(err) == service.KindInternal && !errors.Is(err, lock.ErrLockTimeout) {
		evt := log.Error().Err(err).Str("op", op)
		if sender := c.Sender(); sender != nil {
			evt = evt.Int64("user_id", sender.ID)
		}
		evt.Msg("Handler failed")
	}
	return c.Reply(errorMessage(err))
}

func displayName(username string, userID int64) string {
	if username == "" {
		return fmt.Sprintf("Usuario%d", userID)
	}
	return "@" + username
}

func senderName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

func statusLabel(s model.TicketStatus) string {
	switch s {
	case model.StatusReported:
		return "reportado"
	case model.StatusAccepted:
		return "aceptado"
	case model.StatusInProgress:
		return "en limpieza"
	case model.StatusValidating:
		return "en validación"
	case model.StatusCompleted:
		return "completado"
	case model.StatusRejected:
		return "rechazado"
	default:
		return string(s)
	}
}

// rankLabel returns a medal for the podium and "n." otherwise.
func rankLabel(i int) string {
	medals := []string{"🥇", "🥈", "🥉"}
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("%d.", i+1)
}

func signed(n int64) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}
