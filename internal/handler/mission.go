package handler

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"cleanup-quest-bot/internal/service"
)

// MissionHandler handles mission commands.
type MissionHandler struct {
	missions *service.MissionService
}

// NewMissionHandler creates a new MissionHandler.
func NewMissionHandler(missions *service.MissionService) *MissionHandler {
	return &MissionHandler{missions: missions}
}

// HandleMissions handles /missions, listing active missions with the
// caller's progress.
func (h *MissionHandler) HandleMissions(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	list, err := h.missions.ListForUser(ctx, sender.ID)
	if err != nil {
		return replyError(c, "missions", err)
	}
	if len(list) == 0 {
		return c.Reply("🎯 No hay misiones activas ahora mismo")
	}

	var b strings.Builder
	b.WriteString("🎯 Misiones\n━━━━━━━━━━━━━━━\n")
	for _, mp := range list {
		mark := "▫️"
		if mp.Progress.Completed {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s [%s] %d/%d · %d pts\n",
			mark, mp.Mission.Title, mp.Mission.ID, mp.Progress.Progress, mp.Mission.Goal, mp.Mission.Points)
	}
	return c.Reply(strings.TrimRight(b.String(), "\n"))
}

// HandleMission handles /mission <id> [amount].
func (h *MissionHandler) HandleMission(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	missionID, amount, err := parseMissionProgress(c.Args())
	if err != nil {
		return c.Reply("❌ Uso: /mission <id> [cantidad]")
	}

	um, err := h.missions.IncrementProgress(ctx, missionID, sender.ID, amount)
	if errors.Is(err, service.ErrAlreadyCompleted) {
		return c.Reply(errorMessage(err))
	}
	if err != nil {
		return replyError(c, "mission", err)
	}

	if um.Completed {
		return c.Reply(fmt.Sprintf("🏆 ¡Misión %s completada!", missionID))
	}
	return c.Reply(fmt.Sprintf("🎯 Progreso en %s: %d", missionID, um.Progress))
}
