package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsapp-console/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned for dangling references and missing rows.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("already exists")
)

// Store is the single shared mutable resource: durable bookkeeping of
// channels, contacts, messages and the supporting console entities.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Ping performs a trivial round-trip for the health probe.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}

// --- Channels ---

func (s *Store) Channels(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&channels).Error
	return channels, err
}

func (s *Store) Channel(ctx context.Context, id uint) (*models.Channel, error) {
	var channel models.Channel
	if err := s.db.WithContext(ctx).First(&channel, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &channel, nil
}

// ChannelByPhoneNumberID resolves a channel by the provider-assigned sender
// identifier carried in webhook metadata.
func (s *Store) ChannelByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Channel, error) {
	var channel models.Channel
	err := s.db.WithContext(ctx).Where("phone_number_id = ?", phoneNumberID).First(&channel).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &channel, nil
}

func (s *Store) FirstConnectedChannel(ctx context.Context) (*models.Channel, error) {
	var channel models.Channel
	err := s.db.WithContext(ctx).
		Where("status = ?", models.ChannelConnected).
		Order("created_at ASC").
		First(&channel).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &channel, nil
}

func (s *Store) CreateChannel(ctx context.Context, channel *models.Channel) error {
	if err := s.db.WithContext(ctx).Create(channel).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("channel with phone number %s %w", channel.PhoneNumber, ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *Store) UpdateChannel(ctx context.Context, id uint, updates map[string]interface{}) (*models.Channel, error) {
	res := s.db.WithContext(ctx).Model(&models.Channel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Channel(ctx, id)
}

func (s *Store) UpdateChannelStatus(ctx context.Context, id uint, status string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.Channel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "last_activity": &now}).Error
}

func (s *Store) DeleteChannel(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Select("ChatbotRules", "ScheduledMessages", "Messages").
		Delete(&models.Channel{ID: id})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Contacts ---

func (s *Store) Contacts(ctx context.Context, search string) ([]models.Contact, error) {
	q := s.db.WithContext(ctx).Model(&models.Contact{})
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("name LIKE ? OR phone_number LIKE ? OR email LIKE ?", like, like, like)
	}
	var contacts []models.Contact
	err := q.Order("last_interaction DESC").Find(&contacts).Error
	return contacts, err
}

func (s *Store) Contact(ctx context.Context, id uint) (*models.Contact, error) {
	var contact models.Contact
	if err := s.db.WithContext(ctx).First(&contact, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

func (s *Store) ContactByPhoneNumber(ctx context.Context, phoneNumber string) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.WithContext(ctx).Where("phone_number = ?", phoneNumber).First(&contact).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

func (s *Store) CreateContact(ctx context.Context, contact *models.Contact) error {
	if err := s.db.WithContext(ctx).Create(contact).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("contact with phone number %s %w", contact.PhoneNumber, ErrDuplicate)
		}
		return err
	}
	return nil
}

// GetOrCreateContact returns the contact for a phone number, creating it
// with a placeholder name on first sight.
func (s *Store) GetOrCreateContact(ctx context.Context, phoneNumber string) (*models.Contact, error) {
	contact, err := s.ContactByPhoneNumber(ctx, phoneNumber)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	contact = &models.Contact{
		Name:        "Contact " + phoneNumber,
		PhoneNumber: phoneNumber,
	}
	if err := s.CreateContact(ctx, contact); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent upsert; the row exists now.
			return s.ContactByPhoneNumber(ctx, phoneNumber)
		}
		return nil, err
	}
	return contact, nil
}

func (s *Store) UpdateContact(ctx context.Context, id uint, updates map[string]interface{}) (*models.Contact, error) {
	res := s.db.WithContext(ctx).Model(&models.Contact{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Contact(ctx, id)
}

func (s *Store) DeleteContact(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Contact{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Messages ---

func (s *Store) Messages(ctx context.Context, channelID, contactID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Model(&models.Message{})
	if channelID != 0 {
		q = q.Where("channel_id = ?", channelID)
	}
	if contactID != 0 {
		q = q.Where("contact_id = ?", contactID)
	}
	var messages []models.Message
	err := q.Order("created_at DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

func (s *Store) Message(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	if err := s.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &message, nil
}

func (s *Store) MessageByProviderID(ctx context.Context, providerMessageID string) (*models.Message, error) {
	var message models.Message
	err := s.db.WithContext(ctx).Where("provider_message_id = ?", providerMessageID).First(&message).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &message, nil
}

// CreateMessage persists a message row and touches the contact's
// last-interaction timestamp in one transaction. A dangling channel or
// contact reference is a caller bug and fails with ErrNotFound.
func (s *Store) CreateMessage(ctx context.Context, message *models.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var channel models.Channel
		if err := tx.First(&channel, message.ChannelID).Error; err != nil {
			return fmt.Errorf("channel %d: %w", message.ChannelID, notFound(err))
		}
		var contact models.Contact
		if err := tx.First(&contact, message.ContactID).Error; err != nil {
			return fmt.Errorf("contact %d: %w", message.ContactID, notFound(err))
		}
		if message.Status == "" {
			message.Status = models.StatusPending
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&models.Contact{}).Where("id = ?", message.ContactID).
			Update("last_interaction", &now).Error
	})
}

// StatusMeta carries the annotations applied alongside a status transition.
type StatusMeta struct {
	ProviderMessageID string
	ErrorReason       string
}

// UpdateMessageStatus applies a monotonic status transition and its matching
// timestamp. Duplicate or out-of-order updates are dropped, not errors, so
// webhook redelivery stays idempotent.
func (s *Store) UpdateMessageStatus(ctx context.Context, id uint, status string, meta StatusMeta) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message models.Message
		if err := tx.First(&message, id).Error; err != nil {
			return fmt.Errorf("message %d: %w", id, notFound(err))
		}

		next, apply := ApplyStatusTransition(message.Status, status)
		if !apply {
			s.logger.Debug("status transition dropped",
				zap.Uint("message_id", id),
				zap.String("current", message.Status),
				zap.String("requested", status),
			)
			return nil
		}

		now := time.Now()
		updates := map[string]interface{}{"status": next}
		switch next {
		case models.StatusSent:
			updates["sent_at"] = &now
		case models.StatusDelivered:
			updates["delivered_at"] = &now
		case models.StatusRead:
			updates["read_at"] = &now
			if message.DeliveredAt == nil {
				updates["delivered_at"] = &now
			}
		}
		if meta.ProviderMessageID != "" {
			updates["provider_message_id"] = meta.ProviderMessageID
		}
		if meta.ErrorReason != "" {
			updates["error_message"] = meta.ErrorReason
		}
		return tx.Model(&models.Message{}).Where("id = ?", id).Updates(updates).Error
	})
}

// MessageStats is the aggregate view behind GET /api/stats.
type MessageStats struct {
	Sent          int64   `json:"sent"`
	Received      int64   `json:"received"`
	DeliveryRate  float64 `json:"delivery_rate"`
	TotalContacts int64   `json:"total_contacts"`
}

func (s *Store) GetMessageStats(ctx context.Context) (*MessageStats, error) {
	db := s.db.WithContext(ctx)
	stats := &MessageStats{}

	if err := db.Model(&models.Message{}).
		Where("direction = ?", models.DirectionOutbound).
		Count(&stats.Sent).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Message{}).
		Where("direction = ?", models.DirectionInbound).
		Count(&stats.Received).Error; err != nil {
		return nil, err
	}
	var delivered int64
	if err := db.Model(&models.Message{}).
		Where("direction = ?", models.DirectionOutbound).
		Where("status IN ?", []string{models.StatusDelivered, models.StatusRead}).
		Count(&delivered).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Contact{}).Count(&stats.TotalContacts).Error; err != nil {
		return nil, err
	}
	if stats.Sent > 0 {
		rate := float64(delivered) / float64(stats.Sent) * 100
		stats.DeliveryRate = float64(int(rate*10+0.5)) / 10
	}
	return stats, nil
}

// --- Templates ---

func (s *Store) Templates(ctx context.Context) ([]models.Template, error) {
	var templates []models.Template
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&templates).Error
	return templates, err
}

func (s *Store) Template(ctx context.Context, id uint) (*models.Template, error) {
	var template models.Template
	if err := s.db.WithContext(ctx).First(&template, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &template, nil
}

func (s *Store) TemplateByName(ctx context.Context, name string) (*models.Template, error) {
	var template models.Template
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&template).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &template, nil
}

func (s *Store) CreateTemplate(ctx context.Context, template *models.Template) error {
	if err := s.db.WithContext(ctx).Create(template).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("template %s %w", template.Name, ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *Store) UpdateTemplate(ctx context.Context, id uint, updates map[string]interface{}) (*models.Template, error) {
	res := s.db.WithContext(ctx).Model(&models.Template{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Template(ctx, id)
}

// UpsertTemplateFromProvider reconciles one provider registry entry with the
// local table, matching by provider template id first, then by name. Returns
// true when a new row was created.
func (s *Store) UpsertTemplateFromProvider(ctx context.Context, incoming *models.Template) (bool, error) {
	var existing models.Template
	err := s.db.WithContext(ctx).
		Where("provider_template_id = ?", incoming.ProviderTemplateID).
		Or("name = ?", incoming.Name).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if incoming.DisplayName == "" {
			incoming.DisplayName = incoming.Name
		}
		return true, s.db.WithContext(ctx).Create(incoming).Error
	}
	if err != nil {
		return false, err
	}
	updates := map[string]interface{}{
		"name":                 incoming.Name,
		"category":             incoming.Category,
		"language":             incoming.Language,
		"status":               incoming.Status,
		"provider_template_id": incoming.ProviderTemplateID,
	}
	if incoming.Content != "" {
		updates["content"] = incoming.Content
	}
	return false, s.db.WithContext(ctx).Model(&existing).Updates(updates).Error
}

// --- API tokens ---

func (s *Store) ApiTokens(ctx context.Context) ([]models.ApiToken, error) {
	var tokens []models.ApiToken
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&tokens).Error
	return tokens, err
}

func (s *Store) ApiTokenBySecret(ctx context.Context, secret string) (*models.ApiToken, error) {
	var token models.ApiToken
	err := s.db.WithContext(ctx).Where("token = ?", secret).First(&token).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

func (s *Store) CreateApiToken(ctx context.Context, token *models.ApiToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *Store) TouchApiToken(ctx context.Context, secret string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.ApiToken{}).
		Where("token = ?", secret).
		Update("last_used", &now).Error
}

func (s *Store) DeleteApiToken(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.ApiToken{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Chatbot rules ---

func (s *Store) ChatbotRules(ctx context.Context, channelID uint) ([]models.ChatbotRule, error) {
	q := s.db.WithContext(ctx).Model(&models.ChatbotRule{})
	if channelID != 0 {
		q = q.Where("channel_id = ?", channelID)
	}
	var rules []models.ChatbotRule
	err := q.Order("priority DESC, created_at ASC").Find(&rules).Error
	return rules, err
}

// ActiveChatbotRules returns a channel's active rules, highest priority first.
func (s *Store) ActiveChatbotRules(ctx context.Context, channelID uint) ([]models.ChatbotRule, error) {
	var rules []models.ChatbotRule
	err := s.db.WithContext(ctx).
		Where("channel_id = ? AND is_active = ?", channelID, true).
		Order("priority DESC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

func (s *Store) ChatbotRule(ctx context.Context, id uint) (*models.ChatbotRule, error) {
	var rule models.ChatbotRule
	if err := s.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &rule, nil
}

func (s *Store) CreateChatbotRule(ctx context.Context, rule *models.ChatbotRule) error {
	return s.db.WithContext(ctx).Create(rule).Error
}

func (s *Store) UpdateChatbotRule(ctx context.Context, id uint, updates map[string]interface{}) (*models.ChatbotRule, error) {
	res := s.db.WithContext(ctx).Model(&models.ChatbotRule{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.ChatbotRule(ctx, id)
}

func (s *Store) DeleteChatbotRule(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.ChatbotRule{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Scheduled messages ---

func (s *Store) ScheduledMessages(ctx context.Context, status string) ([]models.ScheduledMessage, error) {
	q := s.db.WithContext(ctx).Model(&models.ScheduledMessage{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []models.ScheduledMessage
	err := q.Order("scheduled_for ASC").Find(&rows).Error
	return rows, err
}

func (s *Store) ScheduledMessage(ctx context.Context, id uint) (*models.ScheduledMessage, error) {
	var row models.ScheduledMessage
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &row, nil
}

func (s *Store) CreateScheduledMessage(ctx context.Context, row *models.ScheduledMessage) error {
	return s.db.WithContext(ctx).Create(row).Error
}

// DueScheduledMessages returns pending rows whose scheduled time has passed.
func (s *Store) DueScheduledMessages(ctx context.Context, now time.Time, limit int) ([]models.ScheduledMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.ScheduledMessage
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", models.StatusPending, now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *Store) MarkScheduledSent(ctx context.Context, id uint) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.ScheduledMessage{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.StatusSent, "sent_at": &now}).Error
}

func (s *Store) MarkScheduledFailed(ctx context.Context, id uint, reason string) error {
	return s.db.WithContext(ctx).Model(&models.ScheduledMessage{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.StatusFailed, "error_message": reason}).Error
}

// CancelScheduledMessage cancels a row that has not been picked up yet.
func (s *Store) CancelScheduledMessage(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.ScheduledMessage{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("status", "cancelled")
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteScheduledMessage(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.ScheduledMessage{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
