package chatbot

import (
	"context"
	"testing"

	"whatsapp-console/internal/dispatch"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/whatsapp"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeProvider struct {
	bodies    []string
	templates []string
}

func (f *fakeProvider) SendText(ctx context.Context, to, body, phoneNumberID string) (*whatsapp.SendResult, error) {
	f.bodies = append(f.bodies, body)
	return &whatsapp.SendResult{MessageID: "wamid.auto"}, nil
}

func (f *fakeProvider) SendTemplate(ctx context.Context, to, templateName string, params map[string]string, languageCode, phoneNumberID string) (*whatsapp.SendResult, error) {
	f.templates = append(f.templates, templateName)
	return &whatsapp.SendResult{MessageID: "wamid.auto"}, nil
}

func (f *fakeProvider) SendMedia(ctx context.Context, to, mediaKind, mediaRef, caption, phoneNumberID string) (*whatsapp.SendResult, error) {
	return &whatsapp.SendResult{MessageID: "wamid.auto"}, nil
}

type fixture struct {
	store    *store.Store
	engine   *Engine
	provider *fakeProvider
	channel  *models.Channel
	contact  *models.Contact
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Channel{}, &models.Contact{}, &models.Message{},
		&models.Template{}, &models.ChatbotRule{}, &models.ScheduledMessage{},
		&models.ApiToken{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.New(db, zap.NewNop())
	provider := &fakeProvider{}
	dispatcher := dispatch.New(st, func(string) dispatch.Provider { return provider }, zap.NewNop())

	ctx := context.Background()
	channel := &models.Channel{
		Name: "Main", PhoneNumber: "+15550001111", PhoneNumberID: "pn-1",
		WabaID: "waba-1", AccessToken: "secret", Status: models.ChannelConnected,
	}
	if err := st.CreateChannel(ctx, channel); err != nil {
		t.Fatalf("seed channel: %v", err)
	}
	contact := &models.Contact{Name: "Alice", PhoneNumber: "+15550002222"}
	if err := st.CreateContact(ctx, contact); err != nil {
		t.Fatalf("seed contact: %v", err)
	}

	return &fixture{
		store:    st,
		engine:   NewEngine(st, dispatcher, zap.NewNop()),
		provider: provider,
		channel:  channel,
		contact:  contact,
	}
}

func (f *fixture) addRule(t *testing.T, rule models.ChatbotRule) {
	t.Helper()
	rule.ChannelID = f.channel.ID
	rule.IsActive = true
	if err := f.store.CreateChatbotRule(context.Background(), &rule); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
}

func TestKeywordMatchIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ChatbotRule{
		Name: "greeting", Trigger: "hello", TriggerType: "keyword",
		Response: "Hi! How can we help?", ResponseType: "text", Priority: 1,
	})

	f.engine.OnInboundText(context.Background(), f.channel, f.contact, "HELLO, anyone there?")

	if len(f.provider.bodies) != 1 || f.provider.bodies[0] != "Hi! How can we help?" {
		t.Errorf("auto-replies = %v", f.provider.bodies)
	}
}

func TestNoMatchSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ChatbotRule{
		Name: "greeting", Trigger: "hello", TriggerType: "keyword",
		Response: "Hi!", ResponseType: "text", Priority: 1,
	})

	f.engine.OnInboundText(context.Background(), f.channel, f.contact, "goodbye")

	if len(f.provider.bodies) != 0 {
		t.Errorf("auto-replies = %v, want none", f.provider.bodies)
	}
}

func TestHighestPriorityRuleWins(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ChatbotRule{
		Name: "generic", Trigger: "order", TriggerType: "keyword",
		Response: "generic answer", ResponseType: "text", Priority: 1,
	})
	f.addRule(t, models.ChatbotRule{
		Name: "specific", Trigger: "order", TriggerType: "keyword",
		Response: "specific answer", ResponseType: "text", Priority: 9,
	})

	f.engine.OnInboundText(context.Background(), f.channel, f.contact, "where is my order?")

	// Only the highest priority match fires.
	if len(f.provider.bodies) != 1 || f.provider.bodies[0] != "specific answer" {
		t.Errorf("auto-replies = %v", f.provider.bodies)
	}
}

func TestRegexTrigger(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ChatbotRule{
		Name: "order number", Trigger: `#\d{4,}`, TriggerType: "regex",
		Response: "Looking up your order", ResponseType: "text", Priority: 5,
	})

	f.engine.OnInboundText(context.Background(), f.channel, f.contact, "status of #12345 please")
	f.engine.OnInboundText(context.Background(), f.channel, f.contact, "status of order please")

	if len(f.provider.bodies) != 1 {
		t.Errorf("auto-replies = %v, want exactly one", f.provider.bodies)
	}
}

func TestInvalidRegexNeverMatches(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ChatbotRule{
		Name: "broken", Trigger: `[unclosed`, TriggerType: "regex",
		Response: "should not fire", ResponseType: "text", Priority: 5,
	})

	f.engine.OnInboundText(context.Background(), f.channel, f.contact, "[unclosed")

	if len(f.provider.bodies) != 0 {
		t.Errorf("auto-replies = %v, want none", f.provider.bodies)
	}
}

func TestTemplateResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	template := &models.Template{
		Name: "welcome_pack", DisplayName: "Welcome", Category: "utility",
		Language: "en_US", Status: "approved", Content: "Welcome aboard",
	}
	if err := f.store.CreateTemplate(ctx, template); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	f.addRule(t, models.ChatbotRule{
		Name: "welcome", Trigger: "start", TriggerType: "keyword",
		Response: "welcome", ResponseType: "template", TemplateID: &template.ID, Priority: 3,
	})

	f.engine.OnInboundText(ctx, f.channel, f.contact, "start")

	if len(f.provider.templates) != 1 || f.provider.templates[0] != "welcome_pack" {
		t.Errorf("template sends = %v", f.provider.templates)
	}
}
