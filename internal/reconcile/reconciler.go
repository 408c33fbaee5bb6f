package reconcile

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-console/internal/metrics"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/webhook"

	"go.uber.org/zap"
)

// AutoResponder reacts to inbound text after it has been recorded. The
// chatbot engine plugs in here; nil disables auto-replies.
type AutoResponder interface {
	OnInboundText(ctx context.Context, channel *models.Channel, contact *models.Contact, body string)
}

// Reconciler turns asynchronous provider callbacks into local state changes.
// It shares nothing with the send path except the store.
type Reconciler struct {
	store     *store.Store
	responder AutoResponder
	logger    *zap.Logger
}

func New(st *store.Store, responder AutoResponder, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: st, responder: responder, logger: logger}
}

// ProcessChange ingests one webhook change value: inbound user messages and
// delivery/read status callbacks.
func (r *Reconciler) ProcessChange(ctx context.Context, value webhook.ChangeValue) {
	for _, msg := range value.Messages {
		if err := r.processInbound(ctx, value.Metadata.PhoneNumberID, msg); err != nil {
			r.logger.Error("inbound message processing failed",
				zap.String("provider_message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	for _, status := range value.Statuses {
		r.processStatus(ctx, status)
	}
}

func (r *Reconciler) processInbound(ctx context.Context, phoneNumberID string, msg webhook.InboundMsg) error {
	channel, err := r.store.ChannelByPhoneNumberID(ctx, phoneNumberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Callback not addressed to a channel we manage.
			metrics.WebhookEvents.WithLabelValues("unknown_channel").Inc()
			r.logger.Debug("inbound message for unknown channel",
				zap.String("phone_number_id", phoneNumberID),
			)
			return nil
		}
		return err
	}

	if msg.ID != "" {
		if _, err := r.store.MessageByProviderID(ctx, msg.ID); err == nil {
			// Redelivered event; the row already exists.
			return nil
		}
	}

	contact, err := r.store.GetOrCreateContact(ctx, msg.From)
	if err != nil {
		return fmt.Errorf("get or create contact: %w", err)
	}

	record := &models.Message{
		ChannelID:         channel.ID,
		ContactID:         contact.ID,
		Type:              msg.Type,
		Content:           inboundContent(msg),
		Status:            models.StatusDelivered,
		Direction:         models.DirectionInbound,
		ProviderMessageID: msg.ID,
	}
	if err := r.store.CreateMessage(ctx, record); err != nil {
		return fmt.Errorf("create inbound message: %w", err)
	}
	metrics.WebhookEvents.WithLabelValues("message").Inc()
	r.logger.Info("inbound message recorded",
		zap.Uint("message_id", record.ID),
		zap.Uint("channel_id", channel.ID),
		zap.String("type", msg.Type),
	)

	if r.responder != nil && msg.Type == models.TypeText && msg.Text != nil {
		r.responder.OnInboundText(ctx, channel, contact, msg.Text.Body)
	}
	return nil
}

func inboundContent(msg webhook.InboundMsg) string {
	switch msg.Type {
	case models.TypeText:
		if msg.Text != nil {
			return msg.Text.Body
		}
	case models.TypeImage:
		if msg.Image != nil {
			return mediaContent("image", msg.Image.ID, msg.Image.Caption)
		}
	case models.TypeVideo:
		if msg.Video != nil {
			return mediaContent("video", msg.Video.ID, msg.Video.Caption)
		}
	case models.TypeAudio:
		if msg.Audio != nil {
			return mediaContent("audio", msg.Audio.ID, "")
		}
	case models.TypeDocument:
		if msg.Document != nil {
			return mediaContent("document", msg.Document.ID, msg.Document.Filename)
		}
	}
	return fmt.Sprintf("%s message", msg.Type)
}

func mediaContent(kind, id, extra string) string {
	content := "[" + kind + "]:" + id
	if extra != "" {
		content += ":" + extra
	}
	return content
}

// processStatus applies a delivery/read callback to the matching local row.
// Events for messages this system never sent are dropped, not fatal.
func (r *Reconciler) processStatus(ctx context.Context, status webhook.StatusUpdate) {
	message, err := r.store.MessageByProviderID(ctx, status.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.WebhookEvents.WithLabelValues("unknown_message").Inc()
			r.logger.Debug("status callback for unknown message",
				zap.String("provider_message_id", status.ID),
				zap.String("status", status.Status),
			)
			return
		}
		r.logger.Error("status lookup failed", zap.String("provider_message_id", status.ID), zap.Error(err))
		return
	}

	if err := r.store.UpdateMessageStatus(ctx, message.ID, status.Status, store.StatusMeta{}); err != nil {
		r.logger.Error("status update failed",
			zap.Uint("message_id", message.ID),
			zap.String("status", status.Status),
			zap.Error(err),
		)
		return
	}
	metrics.WebhookEvents.WithLabelValues("status").Inc()
}
