package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestSendTextSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody outboundMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.abc", "timestamp": "1700000000"}},
		})
	}))
	defer srv.Close()

	client := NewClient("tok-123", srv.URL, zap.NewNop())
	result, err := client.SendText(context.Background(), "+1 (555) 000-2222", "hello", "pn-1")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if result.MessageID != "wamid.abc" {
		t.Errorf("message id = %q", result.MessageID)
	}
	if gotPath != "/pn-1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody.To != "15550002222" {
		t.Errorf("destination = %q, want digits only", gotBody.To)
	}
	if gotBody.Text == nil || gotBody.Text.Body != "hello" {
		t.Errorf("text body = %+v", gotBody.Text)
	}
}

func TestSendRetriesTransientFailures(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.retry"}},
		})
	}))
	defer srv.Close()

	client := NewClient("tok", srv.URL, zap.NewNop())
	result, err := client.SendText(context.Background(), "15550002222", "hi", "pn-1")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if result.MessageID != "wamid.retry" {
		t.Errorf("message id = %q", result.MessageID)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestSendFailsFastOnClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":    132001,
				"type":    "OAuthException",
				"message": "Template name does not exist",
			},
		})
	}))
	defer srv.Close()

	client := NewClient("tok", srv.URL, zap.NewNop())
	_, err := client.SendText(context.Background(), "15550002222", "hi", "pn-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts)
	}

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %T, want *ProviderError", err)
	}
	if perr.Code != 132001 || perr.StatusCode != http.StatusBadRequest {
		t.Errorf("provider error = %+v", perr)
	}
}

func TestSendTemplateParameterOrder(t *testing.T) {
	var gotBody outboundMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.tmpl"}},
		})
	}))
	defer srv.Close()

	client := NewClient("tok", srv.URL, zap.NewNop())
	params := map[string]string{"10": "J", "2": "B", "1": "A"}
	_, err := client.SendTemplate(context.Background(), "15550002222", "order_update", params, "", "pn-1")
	if err != nil {
		t.Fatalf("SendTemplate: %v", err)
	}

	if gotBody.Template == nil {
		t.Fatal("missing template object")
	}
	if gotBody.Template.Language.Code != "en_US" {
		t.Errorf("language = %q, want en_US default", gotBody.Template.Language.Code)
	}
	if len(gotBody.Template.Components) != 1 {
		t.Fatalf("components = %+v", gotBody.Template.Components)
	}
	var got []string
	for _, p := range gotBody.Template.Components[0].Parameters {
		got = append(got, p.Text)
	}
	want := []string{"A", "B", "J"}
	if len(got) != len(want) {
		t.Fatalf("parameters = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("parameter[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSendTemplateWithoutParamsOmitsComponents(t *testing.T) {
	var gotBody outboundMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.tmpl"}},
		})
	}))
	defer srv.Close()

	client := NewClient("tok", srv.URL, zap.NewNop())
	if _, err := client.SendTemplate(context.Background(), "15550002222", "hello_world", nil, "es_ES", "pn-1"); err != nil {
		t.Fatalf("SendTemplate: %v", err)
	}
	if len(gotBody.Template.Components) != 0 {
		t.Errorf("components = %+v, want none", gotBody.Template.Components)
	}
	if gotBody.Template.Language.Code != "es_ES" {
		t.Errorf("language = %q", gotBody.Template.Language.Code)
	}
}

func TestValidateConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "waba-1", "name": "Acme"})
	}))
	defer srv.Close()

	good := NewClient("good", srv.URL, zap.NewNop())
	if !good.ValidateConnection(context.Background(), "waba-1") {
		t.Error("valid credential rejected")
	}
	if good.ValidateConnection(context.Background(), "waba-other") {
		t.Error("mismatched waba id accepted")
	}

	bad := NewClient("bad", srv.URL, zap.NewNop())
	if bad.ValidateConnection(context.Background(), "waba-1") {
		t.Error("invalid credential accepted")
	}
}

func TestSanitizePhoneNumber(t *testing.T) {
	tests := []struct{ in, want string }{
		{"+1 (555) 000-2222", "15550002222"},
		{"15550002222", "15550002222"},
		{"+49 170 1234567", "491701234567"},
	}
	for _, tt := range tests {
		if got := sanitizePhoneNumber(tt.in); got != tt.want {
			t.Errorf("sanitizePhoneNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
