package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	storefront "github.com/eugener/storefront/internal"
)

const testKey = "sf_test_key_12345678901234567890"

func newTestAuth(t *testing.T) *APIKeyAuth {
	t.Helper()
	a, err := NewAPIKeyAuth([]string{"sf_other_key_000000", testKey})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	a := newTestAuth(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)

	id, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !id.IsAdmin() {
		t.Errorf("role = %q, want admin", id.Role)
	}
	if id.Subject != testKey[:12] {
		t.Errorf("subject = %q, want %q", id.Subject, testKey[:12])
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	t.Parallel()
	a := newTestAuth(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"no bearer scheme", testKey},
		{"empty token", "Bearer "},
		{"wrong prefix", "Bearer gnd_test_key_12345678901234567890"},
		{"unknown key", "Bearer sf_unknown"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if _, err := a.Authenticate(context.Background(), req); !errors.Is(err, storefront.ErrUnauthorized) {
				t.Errorf("err = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestNewAPIKeyAuth_RequiresPrefix(t *testing.T) {
	t.Parallel()
	if _, err := NewAPIKeyAuth([]string{"plain-key"}); err == nil {
		t.Error("expected error for key without prefix")
	}
}

func TestAuthenticate_NoKeysConfigured(t *testing.T) {
	t.Parallel()
	a, err := NewAPIKeyAuth(nil)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if _, err := a.Authenticate(context.Background(), req); !errors.Is(err, storefront.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}
