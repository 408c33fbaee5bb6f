package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	values []ChangeValue
}

func (f *fakeProcessor) ProcessChange(ctx context.Context, value ChangeValue) {
	f.values = append(f.values, value)
}

func newTestRouter(verifyToken string, processor Processor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(verifyToken, processor, zap.NewNop())
	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	return r
}

func TestVerifyHandshake(t *testing.T) {
	r := newTestRouter("shared-secret", &fakeProcessor{})

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantBody string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=shared-secret&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=shared-secret&hub.challenge=12345", http.StatusForbidden, ""},
		{"missing params", "hub.challenge=12345", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil)
			r.ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want challenge echoed", w.Body.String())
			}
		})
	}
}

func TestReceiveForwardsMessageChanges(t *testing.T) {
	processor := &fakeProcessor{}
	r := newTestRouter("shared-secret", processor)

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-1",
			"changes": [
				{"field": "messages", "value": {"metadata": {"phone_number_id": "pn-1"}}},
				{"field": "account_update", "value": {}}
			]
		}]
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", w.Code)
	}
	if len(processor.values) != 1 {
		t.Fatalf("processed changes = %d, want only the messages field", len(processor.values))
	}
	if processor.values[0].Metadata.PhoneNumberID != "pn-1" {
		t.Errorf("metadata = %+v", processor.values[0].Metadata)
	}
}

func TestReceiveIgnoresOtherObjects(t *testing.T) {
	processor := &fakeProcessor{}
	r := newTestRouter("shared-secret", processor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"object": "page", "entry": [{"changes": [{"field": "messages", "value": {}}]}]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", w.Code)
	}
	if len(processor.values) != 0 {
		t.Errorf("processed changes = %d, want 0", len(processor.values))
	}
}

func TestReceiveAcknowledgesMalformedPayload(t *testing.T) {
	processor := &fakeProcessor{}
	r := newTestRouter("shared-secret", processor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// Always 200 so the provider stops redelivering garbage.
	if w.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", w.Code)
	}
	if len(processor.values) != 0 {
		t.Errorf("processed changes = %d, want 0", len(processor.values))
	}
}
