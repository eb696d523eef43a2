package handler

import (
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cleanup-quest-bot/internal/service"
)

// AdminHandler handles admin-only commands.
type AdminHandler struct {
	missions *service.MissionService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(missions *service.MissionService) *AdminHandler {
	return &AdminHandler{missions: missions}
}

// HandleMissionNew handles the /mission_new command.
// Format: /mission_new <id> <daily|weekly|special> <goal> <points> <action|-> <title...>
func (h *AdminHandler) HandleMissionNew(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	m, err := parseMissionNew(c.Args())
	if err != nil {
		return c.Reply("❌ Uso: /mission_new <id> <daily|weekly|special> <meta> <puntos> <report|accept|clean|validate|-> <título>")
	}

	if err := h.missions.CreateMission(ctx, m); err != nil {
		return replyError(c, "mission_new", err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("mission_id", m.ID).
		Str("operation", "mission_new").
		Msg("Admin operation executed")

	action := "manual"
	if m.Action != nil {
		action = string(*m.Action)
	}
	return c.Reply(fmt.Sprintf(
		"✅ Misión creada\n\n"+
			"🆔 %s\n"+
			"📝 %s\n"+
			"📅 %s · meta %d · %d pts · %s",
		m.ID, m.Title, m.Type, m.Goal, m.Points, action,
	))
}
