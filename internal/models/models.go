package models

import (
	"time"
)

// Channel statuses
const (
	ChannelConnected    = "connected"
	ChannelDisconnected = "disconnected"
	ChannelError        = "error"
)

// Message statuses
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Message directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message types
const (
	TypeText     = "text"
	TypeTemplate = "template"
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypeDocument = "document"
)

// Channel is a messaging identity: a phone number bound to a WhatsApp
// Business Account with its own access credential.
type Channel struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"type:varchar(255);not null" json:"name"`
	PhoneNumber   string     `gorm:"type:varchar(50);not null;uniqueIndex" json:"phone_number"`
	PhoneNumberID string     `gorm:"type:varchar(255);index" json:"phone_number_id"`
	WabaID        string     `gorm:"type:varchar(255);not null" json:"waba_id"`
	AccessToken   string     `gorm:"type:text;not null" json:"-"`
	Status        string     `gorm:"type:varchar(20);default:'disconnected'" json:"status"`
	LastActivity  *time.Time `json:"last_activity"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Messages          []Message          `gorm:"foreignKey:ChannelID;constraint:OnDelete:CASCADE;" json:"-"`
	ChatbotRules      []ChatbotRule      `gorm:"foreignKey:ChannelID;constraint:OnDelete:CASCADE;" json:"-"`
	ScheduledMessages []ScheduledMessage `gorm:"foreignKey:ChannelID;constraint:OnDelete:CASCADE;" json:"-"`
}

func (Channel) TableName() string {
	return "channels"
}

// Contact is an external messaging party, created lazily on first contact.
type Contact struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"type:varchar(255);not null" json:"name"`
	PhoneNumber     string     `gorm:"type:varchar(50);not null;uniqueIndex" json:"phone_number"`
	Email           string     `gorm:"type:varchar(255)" json:"email"`
	LastInteraction *time.Time `json:"last_interaction"`
	Metadata        string     `gorm:"type:text" json:"metadata"` // JSON blob
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Message is one directional communication event. Rows are never deleted;
// failed sends stay visible with their error reason.
type Message struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	ChannelID         uint       `gorm:"index;not null" json:"channel_id"`
	ContactID         uint       `gorm:"index;not null" json:"contact_id"`
	Type              string     `gorm:"type:varchar(20);not null" json:"type"`
	Content           string     `gorm:"type:text;not null" json:"content"`
	TemplateName      string     `gorm:"type:varchar(255)" json:"template_name,omitempty"`
	TemplateParams    string     `gorm:"type:text" json:"template_params,omitempty"` // JSON map keyed "1","2",...
	Status            string     `gorm:"type:varchar(20);index;default:'pending'" json:"status"`
	Direction         string     `gorm:"type:varchar(10);not null" json:"direction"`
	ProviderMessageID string     `gorm:"column:provider_message_id;type:varchar(255);index" json:"provider_message_id,omitempty"`
	ErrorMessage      string     `gorm:"type:text" json:"error_message,omitempty"`
	SentAt            *time.Time `json:"sent_at"`
	DeliveredAt       *time.Time `json:"delivered_at"`
	ReadAt            *time.Time `json:"read_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Template is a provider-approved reusable message body.
type Template struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Name               string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	DisplayName        string    `gorm:"type:varchar(255);not null" json:"display_name"`
	Category           string    `gorm:"type:varchar(100);not null" json:"category"`
	Language           string    `gorm:"type:varchar(10);default:'en_US'" json:"language"`
	Status             string    `gorm:"type:varchar(20);default:'pending'" json:"status"` // pending, approved, rejected
	Content            string    `gorm:"type:text;not null" json:"content"`
	Parameters         string    `gorm:"type:text" json:"parameters,omitempty"` // JSON schema
	ProviderTemplateID string    `gorm:"type:varchar(255);index" json:"provider_template_id,omitempty"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Template) TableName() string {
	return "templates"
}

// ChatbotRule configures an auto-reply on a channel. Higher priority wins;
// rules are evaluated in priority DESC order and the first match fires.
type ChatbotRule struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ChannelID    uint      `gorm:"index;not null" json:"channel_id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	Trigger      string    `gorm:"type:varchar(255);not null" json:"trigger"`
	TriggerType  string    `gorm:"type:varchar(50);default:'keyword'" json:"trigger_type"` // keyword, regex, time
	Response     string    `gorm:"type:text;not null" json:"response"`
	ResponseType string    `gorm:"type:varchar(50);default:'text'" json:"response_type"` // text, template
	TemplateID   *uint     `json:"template_id,omitempty"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	Priority     int       `gorm:"default:1" json:"priority"` // 1-10
	Conditions   string    `gorm:"type:text" json:"conditions,omitempty"` // JSON
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ChatbotRule) TableName() string {
	return "chatbot_rules"
}

// ScheduledMessage is a deferred send instruction picked up by the scheduler.
type ScheduledMessage struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ChannelID    uint       `gorm:"index;not null" json:"channel_id"`
	ContactID    *uint      `json:"contact_id,omitempty"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	MessageType  string     `gorm:"type:varchar(50);default:'text'" json:"message_type"` // text, template
	TemplateID   *uint      `json:"template_id,omitempty"`
	ScheduledFor time.Time  `gorm:"not null;index" json:"scheduled_for"`
	Status       string     `gorm:"type:varchar(20);index;default:'pending'" json:"status"` // pending, sent, failed, cancelled
	SentAt       *time.Time `json:"sent_at"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	Metadata     string     `gorm:"type:text" json:"metadata,omitempty"` // JSON
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (ScheduledMessage) TableName() string {
	return "scheduled_messages"
}

// ApiToken is an opaque credential for the external send API.
type ApiToken struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Token            string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"token"`
	Name             string     `gorm:"type:varchar(255);not null" json:"name"`
	DefaultChannelID *uint      `json:"default_channel_id,omitempty"`
	IsActive         bool       `gorm:"default:true" json:"is_active"`
	LastUsed         *time.Time `json:"last_used"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (ApiToken) TableName() string {
	return "api_tokens"
}
