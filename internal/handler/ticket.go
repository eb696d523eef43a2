package handler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cleanup-quest-bot/internal/gamification"
	"cleanup-quest-bot/internal/model"
	"cleanup-quest-bot/internal/pkg/lock"
	"cleanup-quest-bot/internal/service"
	"cleanup-quest-bot/internal/storage"
)

// PhotoUploader stores photos received from chat.
type PhotoUploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, keys []string) error
	URL(key string) string
}

const discardTimeout = 10 * time.Second

// fileFetcher downloads a Telegram file.
type fileFetcher func(c tele.Context, file *tele.File) (io.ReadCloser, error)

func fetchFromTelegram(c tele.Context, file *tele.File) (io.ReadCloser, error) {
	return c.Bot().File(file)
}

// TicketHandler handles the ticket lifecycle commands.
type TicketHandler struct {
	tickets    *service.TicketService
	photos     PhotoUploader
	ticketLock *lock.KeyedLock[string]
	rates      gamification.Rates
	fetch      fileFetcher
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(tickets *service.TicketService, photos PhotoUploader, ticketLock *lock.KeyedLock[string], rates gamification.Rates) *TicketHandler {
	return &TicketHandler{
		tickets:    tickets,
		photos:     photos,
		ticketLock: ticketLock,
		rates:      rates,
		fetch:      fetchFromTelegram,
	}
}

// HandlePhoto routes photo messages by the command in their caption.
func (h *TicketHandler) HandlePhoto(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}

	cmd, args := captionArgs(msg.Caption)
	switch cmd {
	case "/report":
		return h.handleReport(c, args)
	case "/complete":
		return h.handleComplete(c, args)
	default:
		return nil
	}
}

// handleReport handles a photo captioned
// /report <type> <priority> <size> [lat,lon] [description].
func (h *TicketHandler) handleReport(c tele.Context, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	in, err := parseReport(args)
	if err != nil {
		return c.Reply("❌ Uso: foto con el texto /report <tipo> <prioridad> <tamaño> [lat,lon] [descripción]\n" +
			"Tipos: plastic, glass, paper, organic, electronic, bulky, hazardous, mixed\n" +
			"Prioridad: low, medium, high, urgent\n" +
			"Tamaño: small, medium, large, xlarge")
	}

	ticketID := uuid.NewString()
	key, err := h.storePhoto(ctx, c, sender.ID, ticketID, storage.SideBefore)
	if err != nil {
		return replyError(c, "report_upload", err)
	}

	ticket, err := h.tickets.Report(ctx, service.ReportInput{
		ID:            ticketID,
		ReporterID:    sender.ID,
		Type:          in.Type,
		Priority:      in.Priority,
		EstimatedSize: in.Size,
		Description:   in.Description,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		BeforePhotos:  []string{key},
	})
	if err != nil {
		h.discardPhoto(ctx, key)
		return replyError(c, "report", err)
	}

	return c.Reply(fmt.Sprintf(
		"📍 Punto sucio reportado\n"+
			"━━━━━━━━━━━━━━━\n"+
			"🆔 %s\n"+
			"🗑 %s · %s · %s\n"+
			"⭐ +%d puntos por reportar",
		ticket.ID, ticket.Type, ticket.Priority, ticket.EstimatedSize, h.rates.ReportPoints(),
	))
}

// handleComplete handles a photo captioned /complete <ticket_id> <partial|complete>.
func (h *TicketHandler) handleComplete(c tele.Context, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ticketID, status, err := parseComplete(args)
	if err != nil {
		return c.Reply("❌ Uso: foto con el texto /complete <id> <partial|complete>")
	}

	var ticket *model.Ticket
	err = h.ticketLock.WithLock(ctx, ticketID, lockTimeout, func() error {
		key, err := h.storePhoto(ctx, c, sender.ID, ticketID, storage.SideAfter)
		if err != nil {
			return err
		}
		ticket, err = h.tickets.Complete(ctx, service.CompleteInput{
			TicketID:       ticketID,
			CallerID:       sender.ID,
			AfterPhoto:     key,
			CleaningStatus: status,
		})
		if err != nil {
			h.discardPhoto(ctx, key)
		}
		return err
	})
	if err != nil {
		return replyError(c, "complete", err)
	}

	return c.Reply(fmt.Sprintf(
		"🧹 Limpieza enviada\n"+
			"━━━━━━━━━━━━━━━\n"+
			"🆔 %s\n"+
			"⭐ +%d puntos\n"+
			"⏳ Esperando la validación del reportero",
		ticket.ID, ticket.CleanerPoints,
	))
}

// storePhoto uploads the largest size of the message photo and returns its key.
func (h *TicketHandler) storePhoto(ctx context.Context, c tele.Context, userID int64, ticketID, side string) (string, error) {
	photo := c.Message().Photo
	body, err := h.fetch(c, &photo.File)
	if err != nil {
		return "", fmt.Errorf("failed to download photo: %w", err)
	}
	defer body.Close()

	key := storage.PhotoKey(userID, ticketID, side)
	if err := h.photos.Upload(ctx, key, body, "image/jpeg"); err != nil {
		return "", err
	}
	return key, nil
}

// discardPhoto removes an uploaded photo the engine refused. Failures are
// only logged.
func (h *TicketHandler) discardPhoto(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	if err := h.photos.Delete(ctx, []string{key}); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to discard refused photo")
	}
}

// HandleAccept handles /accept <ticket_id>.
func (h *TicketHandler) HandleAccept(c tele.Context) error {
	return h.transition(c, "accept", "/accept <id>", func(ctx context.Context, ticketID string, callerID int64) (string, error) {
		t, err := h.tickets.Accept(ctx, ticketID, callerID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("🙋 Aceptaste el ticket %s (+%d puntos)\nUsa /start_cleaning %s cuando empieces.", t.ID, t.AcceptPoints, t.ID), nil
	})
}

// HandleStartCleaning handles /start_cleaning <ticket_id>.
func (h *TicketHandler) HandleStartCleaning(c tele.Context) error {
	return h.transition(c, "start_cleaning", "/start_cleaning <id>", func(ctx context.Context, ticketID string, callerID int64) (string, error) {
		t, err := h.tickets.StartCleaning(ctx, ticketID, callerID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("🧤 Limpieza iniciada en %s\nAl terminar envía una foto con /complete %s <partial|complete>.", t.ID, t.ID), nil
	})
}

// HandleAbandon handles /abandon <ticket_id>.
func (h *TicketHandler) HandleAbandon(c tele.Context) error {
	return h.transition(c, "abandon", "/abandon <id>", func(ctx context.Context, ticketID string, callerID int64) (string, error) {
		t, err := h.tickets.Abandon(ctx, ticketID, callerID)
		if err != nil {
			return "", err
		}
		if t.Status == model.StatusAccepted {
			return fmt.Sprintf("⏸ Limpieza pausada, el ticket %s sigue asignado a ti.", t.ID), nil
		}
		return fmt.Sprintf("↩️ Liberaste el ticket %s, vuelve a estar disponible.", t.ID), nil
	})
}

// HandleApprove handles /approve <ticket_id> [message].
func (h *TicketHandler) HandleApprove(c tele.Context) error {
	return h.validate(c, true)
}

// HandleReject handles /reject <ticket_id> [message].
func (h *TicketHandler) HandleReject(c tele.Context) error {
	return h.validate(c, false)
}

func (h *TicketHandler) validate(c tele.Context, approved bool) error {
	op, usage := "approve", "/approve <id> [mensaje]"
	if !approved {
		op, usage = "reject", "/reject <id> [mensaje]"
	}

	args := c.Args()
	if len(args) == 0 {
		return c.Reply("❌ Uso: " + usage)
	}
	message := strings.Join(args[1:], " ")

	return h.transition(c, op, usage, func(ctx context.Context, ticketID string, callerID int64) (string, error) {
		t, err := h.tickets.Validate(ctx, service.ValidateInput{
			TicketID: ticketID,
			CallerID: callerID,
			Approved: approved,
			Message:  message,
		})
		if err != nil {
			return "", err
		}
		if approved {
			return fmt.Sprintf("✅ Limpieza de %s aprobada. ¡Gracias por validar!", t.ID), nil
		}
		return fmt.Sprintf("🔁 Limpieza de %s rechazada, el ticket vuelve a estar disponible.", t.ID), nil
	})
}

// transition runs one ticket command holding the ticket's lock.
func (h *TicketHandler) transition(c tele.Context, op, usage string, fn func(ctx context.Context, ticketID string, callerID int64) (string, error)) error {
	ctx, cancel := requestContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) == 0 {
		return c.Reply("❌ Uso: " + usage)
	}
	ticketID := args[0]

	var reply string
	err := h.ticketLock.WithLock(ctx, ticketID, lockTimeout, func() error {
		var err error
		reply, err = fn(ctx, ticketID, sender.ID)
		return err
	})
	if err != nil {
		return replyError(c, op, err)
	}

	log.Info().
		Int64("user_id", sender.ID).
		Str("ticket_id", ticketID).
		Str("op", op).
		Msg("Ticket updated")

	return c.Reply(reply)
}

// HandleTicket handles /ticket <ticket_id>.
func (h *TicketHandler) HandleTicket(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	args := c.Args()
	if len(args) == 0 {
		return c.Reply("❌ Uso: /ticket <id>")
	}

	t, err := h.tickets.Get(ctx, args[0])
	if err != nil {
		return replyError(c, "ticket", err)
	}
	events, err := h.tickets.History(ctx, t.ID)
	if err != nil {
		return replyError(c, "ticket_history", err)
	}

	return c.Reply(h.formatTicket(t, events))
}

func (h *TicketHandler) formatTicket(t *model.Ticket, events []*model.TicketEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎫 Ticket %s\n", t.ID)
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "📌 Estado: %s\n", statusLabel(t.Status))
	fmt.Fprintf(&b, "🗑 %s · %s · %s\n", t.Type, t.Priority, t.EstimatedSize)
	if t.Description != "" {
		fmt.Fprintf(&b, "📝 %s\n", t.Description)
	}
	if t.Latitude != 0 || t.Longitude != 0 {
		fmt.Fprintf(&b, "🗺 %.5f, %.5f\n", t.Latitude, t.Longitude)
	}
	if t.AcceptedBy != nil {
		fmt.Fprintf(&b, "🧹 Voluntario: %d\n", *t.AcceptedBy)
	}
	for _, key := range t.BeforePhotos {
		fmt.Fprintf(&b, "📷 Antes: %s\n", h.photos.URL(key))
	}
	for _, key := range t.AfterPhotos {
		fmt.Fprintf(&b, "📷 Después: %s\n", h.photos.URL(key))
	}
	if t.PointsAwarded != nil {
		fmt.Fprintf(&b, "⭐ Puntos: limpieza %d, validación %d\n", t.PointsAwarded.Cleaner, t.PointsAwarded.Validator)
	}
	if t.ValidationMessage != nil && *t.ValidationMessage != "" {
		fmt.Fprintf(&b, "💬 %s\n", *t.ValidationMessage)
	}
	if len(events) > 0 {
		b.WriteString("━━━━━━━━━━━━━━━\n")
		for _, e := range events {
			fmt.Fprintf(&b, "%s %s → %s\n", e.CreatedAt.Format("02/01 15:04"), statusLabel(e.FromStatus), statusLabel(e.ToStatus))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// HandleOpen handles /open [n], listing tickets waiting for a volunteer.
func (h *TicketHandler) HandleOpen(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	tickets, err := h.tickets.ListOpen(ctx, parseLimit(c.Args(), 10, 50))
	if err != nil {
		return replyError(c, "open", err)
	}
	if len(tickets) == 0 {
		return c.Reply("🌱 No hay puntos sucios pendientes. ¡Buen trabajo!")
	}

	msg := "📍 Puntos sucios sin voluntario\n━━━━━━━━━━━━━━━\n"
	for _, t := range tickets {
		msg += fmt.Sprintf("%s · %s · %s · %s\n", t.ID, t.Type, t.Priority, t.EstimatedSize)
	}
	msg += "━━━━━━━━━━━━━━━\nUsa /accept <id> para encargarte."
	return c.Reply(msg)
}

// HandleMine handles /mine, listing the caller's assigned tickets.
func (h *TicketHandler) HandleMine(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	tickets, err := h.tickets.ListAssigned(ctx, sender.ID, 20)
	if err != nil {
		return replyError(c, "mine", err)
	}
	if len(tickets) == 0 {
		return c.Reply("📭 No tienes tickets asignados. Mira /open")
	}

	msg := "🧹 Tus tickets\n━━━━━━━━━━━━━━━\n"
	for _, t := range tickets {
		msg += fmt.Sprintf("%s · %s\n", t.ID, statusLabel(t.Status))
	}
	return c.Reply(strings.TrimRight(msg, "\n"))
}
