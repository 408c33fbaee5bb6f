package whatsapp

import (
	"errors"
	"net/http"
	"testing"
)

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport error", errors.New("connection refused"), true},
		{"server error", &ProviderError{StatusCode: http.StatusInternalServerError}, true},
		{"bad gateway", &ProviderError{StatusCode: http.StatusBadGateway}, true},
		{"rate limited", &ProviderError{StatusCode: http.StatusTooManyRequests}, true},
		{"bad request", &ProviderError{StatusCode: http.StatusBadRequest}, false},
		{"unauthorized", &ProviderError{StatusCode: http.StatusUnauthorized}, false},
		{"not found", &ProviderError{StatusCode: http.StatusNotFound}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetriable(tt.err); got != tt.want {
				t.Errorf("isRetriable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
