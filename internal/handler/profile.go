package handler

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"cleanup-quest-bot/internal/model"
	"cleanup-quest-bot/internal/service"
)

// ProfileHandler handles profile commands.
type ProfileHandler struct {
	profiles *service.ProfileService
	loc      *time.Location
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService, loc *time.Location) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, loc: loc}
}

// HandleStart handles the /start command.
func (h *ProfileHandler) HandleStart(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	username := senderName(sender)
	p, created, err := h.profiles.EnsureProfile(ctx, sender.ID, username)
	if err != nil {
		return replyError(c, "start", err)
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🌍 ¡Bienvenido/a %s!\n\n"+
				"Reporta puntos sucios, límpialos con la comunidad y gana puntos.\n\n"+
				"Comandos:\n"+
				"📷 Foto + /report <tipo> <prioridad> <tamaño> - reportar\n"+
				"/open - puntos pendientes\n"+
				"/accept <id> - encargarte de uno\n"+
				"/start_cleaning <id> - empezar a limpiar\n"+
				"📷 Foto + /complete <id> <partial|complete> - enviar limpieza\n"+
				"/approve, /reject <id> - validar una limpieza de tu reporte\n"+
				"/profile - tu perfil\n"+
				"/missions - misiones\n"+
				"/top, /weekly_top - clasificaciones",
			displayName(username, sender.ID),
		))
	}

	return c.Reply(fmt.Sprintf("👋 ¡Hola de nuevo %s! Tienes %d puntos.", displayName(username, sender.ID), p.Points))
}

// HandleProfile handles the /profile command.
func (h *ProfileHandler) HandleProfile(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	card, err := h.profiles.GetProfile(ctx, sender.ID)
	if err != nil {
		return replyError(c, "profile", err)
	}

	return c.Reply(formatProfile(card, service.StreakAlive(card.Profile, time.Now(), h.loc)))
}

func formatProfile(card *service.ProfileCard, streakAlive bool) string {
	p := card.Profile
	var b strings.Builder
	b.WriteString("👤 Perfil\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "🙋 %s\n", displayName(p.Username, p.UserID))
	fmt.Fprintf(&b, "⭐ Puntos: %d\n", p.Points)
	if card.NextLevelAt > 0 {
		fmt.Fprintf(&b, "🏅 Nivel %d (siguiente a %d)\n", p.Level, card.NextLevelAt)
	} else {
		fmt.Fprintf(&b, "🏅 Nivel %d (máximo)\n", p.Level)
	}

	streak := p.Streak
	if !streakAlive {
		streak = 0
	}
	fmt.Fprintf(&b, "🔥 Racha: %d días\n", streak)
	if len(p.Badges) > 0 {
		fmt.Fprintf(&b, "🎖 Insignias: %s\n", strings.Join(p.Badges, ", "))
	}

	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "📍 Reportados: %d\n", p.Stats.TicketsReported)
	fmt.Fprintf(&b, "🙋 Aceptados: %d\n", p.Stats.TicketsAccepted)
	fmt.Fprintf(&b, "🧹 Limpiados: %d\n", p.Stats.TicketsCleaned)
	fmt.Fprintf(&b, "✅ Validados: %d\n", p.Stats.TicketsValidated)
	fmt.Fprintf(&b, "🎯 Misiones: %d", p.Stats.MissionsCompleted)
	return b.String()
}

// HandleHistory handles /history [n], listing the caller's latest points.
func (h *ProfileHandler) HandleHistory(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	entries, err := h.profiles.History(ctx, sender.ID, parseLimit(c.Args(), 10, 50))
	if err != nil {
		return replyError(c, "history", err)
	}
	if len(entries) == 0 {
		return c.Reply("📭 Todavía no tienes movimientos de puntos")
	}

	msg := "📜 Últimos puntos\n━━━━━━━━━━━━━━━\n"
	for _, e := range entries {
		msg += fmt.Sprintf("%s %s %s\n", e.CreatedAt.In(h.loc).Format("02/01 15:04"), signed(e.Amount), entryLabel(e.Kind))
	}
	return c.Reply(strings.TrimRight(msg, "\n"))
}

func entryLabel(kind string) string {
	switch kind {
	case model.EntryReport:
		return "reporte"
	case model.EntryAccept:
		return "aceptación"
	case model.EntryAcceptReversal:
		return "aceptación revertida"
	case model.EntryClean:
		return "limpieza"
	case model.EntryCleanReversal:
		return "limpieza rechazada"
	case model.EntryValidate:
		return "validación"
	case model.EntryStreakBonus:
		return "bonus de racha"
	case model.EntryMission:
		return "misión"
	default:
		return kind
	}
}
