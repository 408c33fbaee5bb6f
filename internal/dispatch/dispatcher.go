package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"whatsapp-console/internal/metrics"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/whatsapp"

	"go.uber.org/zap"
)

// Provider is the outbound face of the messaging API. The dispatcher builds
// one per channel from the channel's credential; tests substitute fakes.
type Provider interface {
	SendText(ctx context.Context, to, body, phoneNumberID string) (*whatsapp.SendResult, error)
	SendTemplate(ctx context.Context, to, templateName string, params map[string]string, languageCode, phoneNumberID string) (*whatsapp.SendResult, error)
	SendMedia(ctx context.Context, to, mediaKind, mediaRef, caption, phoneNumberID string) (*whatsapp.SendResult, error)
}

// ProviderFactory builds a Provider from a channel access credential.
type ProviderFactory func(accessToken string) Provider

// SendRequest is one outbound send intent.
type SendRequest struct {
	ChannelID      uint
	ContactID      uint
	Type           string
	Content        string
	TemplateName   string
	TemplateParams map[string]string
	LanguageCode   string
	MediaRef       string
	Caption        string
}

// Dispatcher couples "persist intent" with "attempt delivery". The message
// row is written before any network call so every attempt is auditable even
// if the process dies mid-flight.
type Dispatcher struct {
	store     *store.Store
	providers ProviderFactory
	logger    *zap.Logger
}

func New(st *store.Store, providers ProviderFactory, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: st, providers: providers, logger: logger}
}

func validateRequest(req *SendRequest) error {
	switch req.Type {
	case models.TypeText:
		if req.Content == "" {
			return &ValidationError{Field: "content", Reason: "content is required for text messages"}
		}
	case models.TypeTemplate:
		if req.TemplateName == "" {
			return &ValidationError{Field: "templateName", Reason: "template name is required for template messages"}
		}
	case models.TypeImage, models.TypeVideo, models.TypeAudio, models.TypeDocument:
		if req.MediaRef == "" {
			return &ValidationError{Field: "mediaRef", Reason: "media reference is required for media messages"}
		}
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unsupported message type %q", req.Type)}
	}
	return nil
}

// SendOutbound validates the request, persists a pending row, invokes the
// provider and reconciles the row with the outcome. A failed send leaves a
// durable failed row carrying the provider's reason.
func (d *Dispatcher) SendOutbound(ctx context.Context, req *SendRequest) (*models.Message, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	channel, err := d.store.Channel(ctx, req.ChannelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ValidationError{Field: "channelId", Reason: fmt.Sprintf("channel %d not found", req.ChannelID)}
		}
		return nil, err
	}
	contact, err := d.store.Contact(ctx, req.ContactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ValidationError{Field: "contactId", Reason: fmt.Sprintf("contact %d not found", req.ContactID)}
		}
		return nil, err
	}
	if channel.Status != models.ChannelConnected {
		return nil, ErrChannelNotConnected
	}

	message := &models.Message{
		ChannelID:    channel.ID,
		ContactID:    contact.ID,
		Type:         req.Type,
		Content:      req.Content,
		TemplateName: req.TemplateName,
		Status:       models.StatusPending,
		Direction:    models.DirectionOutbound,
	}
	if len(req.TemplateParams) > 0 {
		raw, err := json.Marshal(req.TemplateParams)
		if err != nil {
			return nil, &ValidationError{Field: "templateParams", Reason: err.Error()}
		}
		message.TemplateParams = string(raw)
	}
	if err := d.store.CreateMessage(ctx, message); err != nil {
		return nil, err
	}

	provider := d.providers(channel.AccessToken)
	var result *whatsapp.SendResult
	switch req.Type {
	case models.TypeTemplate:
		result, err = provider.SendTemplate(ctx, contact.PhoneNumber, req.TemplateName, req.TemplateParams, req.LanguageCode, channel.PhoneNumberID)
	case models.TypeText:
		result, err = provider.SendText(ctx, contact.PhoneNumber, req.Content, channel.PhoneNumberID)
	default:
		result, err = provider.SendMedia(ctx, contact.PhoneNumber, req.Type, req.MediaRef, req.Caption, channel.PhoneNumberID)
	}

	if err != nil {
		metrics.MessagesDispatched.WithLabelValues("failed").Inc()
		if updateErr := d.store.UpdateMessageStatus(ctx, message.ID, models.StatusFailed, store.StatusMeta{ErrorReason: err.Error()}); updateErr != nil {
			d.logger.Error("failed to record send failure",
				zap.Uint("message_id", message.ID),
				zap.Error(updateErr),
			)
		}
		d.logger.Warn("outbound send failed",
			zap.Uint("message_id", message.ID),
			zap.Uint("channel_id", channel.ID),
			zap.Error(err),
		)
		return nil, &DispatchError{MessageID: message.ID, Reason: err.Error(), Err: err}
	}

	if err := d.store.UpdateMessageStatus(ctx, message.ID, models.StatusSent, store.StatusMeta{ProviderMessageID: result.MessageID}); err != nil {
		return nil, err
	}
	metrics.MessagesDispatched.WithLabelValues("sent").Inc()
	d.logger.Info("outbound message sent",
		zap.Uint("message_id", message.ID),
		zap.String("provider_message_id", result.MessageID),
	)

	return d.store.Message(ctx, message.ID)
}
