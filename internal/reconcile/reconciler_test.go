package reconcile

import (
	"context"
	"testing"

	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/webhook"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeResponder struct {
	calls []string
}

func (f *fakeResponder) OnInboundText(ctx context.Context, channel *models.Channel, contact *models.Contact, body string) {
	f.calls = append(f.calls, body)
}

func newTestStore(t *testing.T) *store.Store {
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
	return store.New(db, zap.NewNop())
}

func seedChannel(t *testing.T, st *store.Store) *models.Channel {
	t.Helper()
	channel := &models.Channel{
		Name: "Main", PhoneNumber: "+15550001111", PhoneNumberID: "pn-1",
		WabaID: "waba-1", AccessToken: "secret", Status: models.ChannelConnected,
	}
	if err := st.CreateChannel(context.Background(), channel); err != nil {
		t.Fatalf("seed channel: %v", err)
	}
	return channel
}

func inboundText(id, from, body string) webhook.ChangeValue {
	return webhook.ChangeValue{
		Metadata: webhook.Metadata{PhoneNumberID: "pn-1"},
		Messages: []webhook.InboundMsg{{
			From: from,
			ID:   id,
			Type: models.TypeText,
			Text: &webhook.TextBody{Body: body},
		}},
	}
}

func TestInboundMessageCreatesContactAndRow(t *testing.T) {
	st := newTestStore(t)
	channel := seedChannel(t, st)
	responder := &fakeResponder{}
	r := New(st, responder, zap.NewNop())
	ctx := context.Background()

	r.ProcessChange(ctx, inboundText("wamid.in1", "15550009999", "hi there"))

	contact, err := st.ContactByPhoneNumber(ctx, "15550009999")
	if err != nil {
		t.Fatalf("contact not created: %v", err)
	}

	rows, err := st.Messages(ctx, channel.ID, contact.ID, 10)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	msg := rows[0]
	if msg.Direction != models.DirectionInbound || msg.Status != models.StatusDelivered {
		t.Errorf("row = direction %q status %q", msg.Direction, msg.Status)
	}
	if msg.Content != "hi there" || msg.ProviderMessageID != "wamid.in1" {
		t.Errorf("row = content %q provider id %q", msg.Content, msg.ProviderMessageID)
	}
	if len(responder.calls) != 1 || responder.calls[0] != "hi there" {
		t.Errorf("responder calls = %v", responder.calls)
	}
}

func TestInboundRedeliveryIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	channel := seedChannel(t, st)
	r := New(st, nil, zap.NewNop())
	ctx := context.Background()

	value := inboundText("wamid.dup", "15550009999", "hello")
	r.ProcessChange(ctx, value)
	r.ProcessChange(ctx, value)

	rows, _ := st.Messages(ctx, channel.ID, 0, 10)
	if len(rows) != 1 {
		t.Errorf("rows = %d after redelivery, want 1", len(rows))
	}
}

func TestInboundUnknownChannelIgnored(t *testing.T) {
	st := newTestStore(t)
	seedChannel(t, st)
	r := New(st, nil, zap.NewNop())
	ctx := context.Background()

	value := inboundText("wamid.x", "15550009999", "hi")
	value.Metadata.PhoneNumberID = "pn-unknown"
	r.ProcessChange(ctx, value)

	if _, err := st.ContactByPhoneNumber(ctx, "15550009999"); err == nil {
		t.Error("contact created for unknown channel")
	}
}

func TestStatusCallbackAdvancesMessage(t *testing.T) {
	st := newTestStore(t)
	channel := seedChannel(t, st)
	r := New(st, nil, zap.NewNop())
	ctx := context.Background()

	contact, err := st.GetOrCreateContact(ctx, "15550009999")
	if err != nil {
		t.Fatalf("contact: %v", err)
	}
	msg := &models.Message{
		ChannelID: channel.ID, ContactID: contact.ID,
		Type: models.TypeText, Content: "hi",
		Direction: models.DirectionOutbound, Status: models.StatusSent,
		ProviderMessageID: "wamid.out1",
	}
	if err := st.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	r.ProcessChange(ctx, webhook.ChangeValue{
		Metadata: webhook.Metadata{PhoneNumberID: "pn-1"},
		Statuses: []webhook.StatusUpdate{{ID: "wamid.out1", Status: models.StatusDelivered}},
	})

	got, _ := st.Message(ctx, msg.ID)
	if got.Status != models.StatusDelivered || got.DeliveredAt == nil {
		t.Errorf("status = %q delivered_at = %v", got.Status, got.DeliveredAt)
	}
}

func TestStatusCallbackUnknownMessageDropped(t *testing.T) {
	st := newTestStore(t)
	seedChannel(t, st)
	r := New(st, nil, zap.NewNop())

	// Must not panic or create rows.
	r.ProcessChange(context.Background(), webhook.ChangeValue{
		Metadata: webhook.Metadata{PhoneNumberID: "pn-1"},
		Statuses: []webhook.StatusUpdate{{ID: "wamid.never-sent", Status: models.StatusRead}},
	})

	rows, _ := st.Messages(context.Background(), 0, 0, 10)
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestInboundMediaContent(t *testing.T) {
	st := newTestStore(t)
	channel := seedChannel(t, st)
	r := New(st, nil, zap.NewNop())
	ctx := context.Background()

	r.ProcessChange(ctx, webhook.ChangeValue{
		Metadata: webhook.Metadata{PhoneNumberID: "pn-1"},
		Messages: []webhook.InboundMsg{{
			From:  "15550009999",
			ID:    "wamid.img",
			Type:  models.TypeImage,
			Image: &webhook.Media{ID: "media-1", Caption: "receipt"},
		}},
	})

	rows, _ := st.Messages(ctx, channel.ID, 0, 10)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Content != "[image]:media-1:receipt" {
		t.Errorf("content = %q", rows[0].Content)
	}
}
