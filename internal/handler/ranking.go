package handler

import (
	"fmt"

	tele "gopkg.in/telebot.v3"

	"cleanup-quest-bot/internal/service"
)

// RankingHandler handles leaderboard commands.
type RankingHandler struct {
	rankingService *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService) *RankingHandler {
	return &RankingHandler{
		rankingService: rankingService,
	}
}

// HandleTop handles the /top command: all-time points.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	top, err := h.rankingService.GetTopUsers(ctx, parseLimit(c.Args(), 10, 50))
	if err != nil {
		return replyError(c, "top", err)
	}

	msg := "🏆 Clasificación general\n"
	msg += "━━━━━━━━━━━━━━━\n"
	if len(top) == 0 {
		msg += "Sin datos todavía\n"
	}
	for i, p := range top {
		msg += fmt.Sprintf("%s %s: %d pts (nivel %d)\n", rankLabel(i), displayName(p.Username, p.UserID), p.Points, p.Level)
	}
	msg += "━━━━━━━━━━━━━━━"

	return c.Reply(msg)
}

// HandleWeeklyTop handles the /weekly_top command: points earned since Monday.
func (h *RankingHandler) HandleWeeklyTop(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	leaders, err := h.rankingService.GetWeeklyLeaders(ctx, parseLimit(c.Args(), 10, 50))
	if err != nil {
		return replyError(c, "weekly_top", err)
	}

	msg := "📊 Clasificación semanal\n"
	msg += "━━━━━━━━━━━━━━━\n"
	if len(leaders) == 0 {
		msg += "Sin datos esta semana\n"
	}
	for i, l := range leaders {
		msg += fmt.Sprintf("%s %s: %s\n", rankLabel(i), displayName(l.Username, l.UserID), signed(l.Points))
	}
	msg += "━━━━━━━━━━━━━━━"

	return c.Reply(msg)
}
