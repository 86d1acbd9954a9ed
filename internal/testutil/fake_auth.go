package testutil

import (
	"context"
	"net/http"
	"strings"
	"sync"

	storefront "github.com/eugener/storefront/internal"
)

// FakeAuth always authenticates successfully with admin permissions.
type FakeAuth struct{}

// Authenticate returns a test identity with the admin role.
func (FakeAuth) Authenticate(_ context.Context, _ *http.Request) (*storefront.Identity, error) {
	return &storefront.Identity{Subject: "test", Role: "admin"}, nil
}

// ViewerAuth authenticates every request as a non-admin caller.
type ViewerAuth struct{}

// Authenticate returns a test identity with the viewer role.
func (ViewerAuth) Authenticate(_ context.Context, _ *http.Request) (*storefront.Identity, error) {
	return &storefront.Identity{Subject: "viewer", Role: "viewer"}, nil
}

// RejectAuth always rejects authentication.
type RejectAuth struct{}

// Authenticate always returns ErrUnauthorized.
func (RejectAuth) Authenticate(context.Context, *http.Request) (*storefront.Identity, error) {
	return nil, storefront.ErrUnauthorized
}

// FakeInvalidator records invalidated substrings.
type FakeInvalidator struct {
	mu    sync.Mutex
	calls []string
}

// Invalidate records substr and reports one removal.
func (f *FakeInvalidator) Invalidate(_ context.Context, substr string) int {
	f.mu.Lock()
	f.calls = append(f.calls, substr)
	f.mu.Unlock()
	return 1
}

// Calls returns the recorded substrings joined by commas.
func (f *FakeInvalidator) Calls() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.calls, ",")
}
