package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven/mocks"
)

type sweepFixture struct {
	svc      *tokenRefreshService
	store    *mocks.MockCredentialStore
	states   *mocks.MockOAuthStateStore
	audit    *mocks.MockAuditLog
	linkedin *mocks.MockProvider
}

func newSweepFixture() *sweepFixture {
	f := &sweepFixture{
		store:    mocks.NewMockCredentialStore(),
		states:   mocks.NewMockOAuthStateStore(),
		audit:    mocks.NewMockAuditLog(),
		linkedin: mocks.NewMockProvider(domain.PlatformLinkedIn, domain.AuthFlowOAuth2PKCE),
	}
	f.states.Now = func() time.Time { return testNow }

	svc := NewTokenRefreshService(TokenRefreshServiceConfig{
		Store:           f.store,
		States:          f.states,
		Providers:       mocks.NewMockProviderRegistry(f.linkedin),
		PlatformConfigs: mocks.NewMockPlatformConfigStore(domain.PlatformLinkedIn),
		AuditLog:        f.audit,
		Concurrency:     3,
		Timeout:         time.Second,
	}).(*tokenRefreshService)
	svc.now = func() time.Time { return testNow }
	svc.renewer.now = svc.now
	f.svc = svc
	return f
}

func TestTokenRefreshService_Defaults(t *testing.T) {
	svc := NewTokenRefreshService(TokenRefreshServiceConfig{}).(*tokenRefreshService)
	if svc.window != DefaultRefreshWindow {
		t.Errorf("expected window %v, got %v", DefaultRefreshWindow, svc.window)
	}
	if svc.concurrency != DefaultRefreshConcurrency {
		t.Errorf("expected concurrency %d, got %d", DefaultRefreshConcurrency, svc.concurrency)
	}
	if svc.timeout != DefaultRefreshTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultRefreshTimeout, svc.timeout)
	}
}

func TestTokenRefreshService_Sweep_PartialFailure(t *testing.T) {
	f := newSweepFixture()
	for i := 0; i < 10; i++ {
		f.store.Put(connected(fmt.Sprintf("ws-%02d", i), domain.PlatformLinkedIn, time.Hour))
	}
	// Outside the window
	f.store.Put(connected("ws-later", domain.PlatformLinkedIn, 10*24*time.Hour))

	newExpiry := testNow.Add(60 * 24 * time.Hour)
	f.linkedin.RefreshTokenFn = func(_ *driven.PlatformApp, c *domain.PlatformCredentials) (*domain.OAuthToken, error) {
		if c.WorkspaceID == "ws-03" || c.WorkspaceID == "ws-07" {
			return nil, errors.New("invalid_grant")
		}
		return &domain.OAuthToken{AccessToken: "new-" + c.WorkspaceID, ExpiresAt: &newExpiry}, nil
	}

	report, err := f.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep must not fail on per-credential errors: %v", err)
	}

	want := domain.RefreshCounts{Total: 10, Successful: 8, Failed: 2}
	if report.TokenRefresh != want {
		t.Errorf("expected %+v, got %+v", want, report.TokenRefresh)
	}

	for i := 0; i < 10; i++ {
		ws := fmt.Sprintf("ws-%02d", i)
		c, _ := f.store.Get(context.Background(), ws, domain.PlatformLinkedIn)
		switch ws {
		case "ws-03", "ws-07":
			if c.AccessToken != "old-access" || c.RefreshErrorCount != 1 {
				t.Errorf("%s: expected old token and one recorded failure, got %q/%d", ws, c.AccessToken, c.RefreshErrorCount)
			}
		default:
			if c.AccessToken != "new-"+ws {
				t.Errorf("%s: expected refreshed token, got %q", ws, c.AccessToken)
			}
		}
	}

	later, _ := f.store.Get(context.Background(), "ws-later", domain.PlatformLinkedIn)
	if later.AccessToken != "old-access" {
		t.Error("credentials outside the window must not be refreshed")
	}
	if f.audit.Count(domain.AuditTokenRefreshed) != 8 || f.audit.Count(domain.AuditTokenRefreshFailed) != 2 {
		t.Errorf("unexpected audit actions %v", f.audit.Actions())
	}
}

func TestTokenRefreshService_Sweep_CleansExpiredStates(t *testing.T) {
	f := newSweepFixture()
	ctx := context.Background()

	_ = f.states.Create(ctx, &domain.OAuthState{
		State: "old", WorkspaceID: "ws-1", Platform: domain.PlatformLinkedIn,
		CreatedAt: testNow.Add(-time.Hour), ExpiresAt: testNow.Add(-50 * time.Minute),
	})
	_ = f.states.Create(ctx, &domain.OAuthState{
		State: "fresh", WorkspaceID: "ws-1", Platform: domain.PlatformLinkedIn,
		CreatedAt: testNow, ExpiresAt: testNow.Add(domain.OAuthStateTTL),
	})

	report, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OAuthStateCleanup.Cleaned != 1 {
		t.Errorf("expected 1 cleaned state, got %d", report.OAuthStateCleanup.Cleaned)
	}
	if f.states.Len() != 1 {
		t.Errorf("expected fresh state to survive, got %d states", f.states.Len())
	}
}

func TestTokenRefreshService_Sweep_ListError(t *testing.T) {
	f := newSweepFixture()
	f.store.ListExpiringFn = func(time.Time) ([]*domain.PlatformCredentials, error) {
		return nil, errors.New("connection reset")
	}

	if _, err := f.svc.Sweep(context.Background()); err == nil {
		t.Error("expected error when listing fails")
	}
}

func TestTokenRefreshService_Sweep_NoRefreshTokenCountsAsFailure(t *testing.T) {
	f := newSweepFixture()
	creds := connected("ws-1", domain.PlatformLinkedIn, time.Hour)
	creds.RefreshToken = ""
	f.store.Put(creds)

	report, err := f.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TokenRefresh.Failed != 1 {
		t.Errorf("expected 1 failure, got %+v", report.TokenRefresh)
	}
	c, _ := f.store.Get(context.Background(), "ws-1", domain.PlatformLinkedIn)
	if c.RefreshErrorCount != 1 {
		t.Errorf("expected recorded failure, got %d", c.RefreshErrorCount)
	}
	if len(f.linkedin.RefreshedCreds) != 0 {
		t.Error("adapter must not be called without a refresh token")
	}
}

func TestTokenRefreshService_Sweep_HungProviderIsRecorded(t *testing.T) {
	f := newSweepFixture()
	f.svc.timeout = 50 * time.Millisecond
	f.store.Put(connected("ws-1", domain.PlatformLinkedIn, time.Hour))
	f.linkedin.RefreshDelay = time.Minute

	started := time.Now()
	report, err := f.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(started) > 10*time.Second {
		t.Fatal("sweep must not wait for a hung provider")
	}
	if report.TokenRefresh.Total != 1 || report.TokenRefresh.Failed != 1 {
		t.Errorf("expected 1 failure of 1, got %+v", report.TokenRefresh)
	}

	c, _ := f.store.Get(context.Background(), "ws-1", domain.PlatformLinkedIn)
	if c.RefreshErrorCount != 1 {
		t.Errorf("expected timeout recorded as a failure, got count %d", c.RefreshErrorCount)
	}
	if c.AccessToken != "old-access" {
		t.Errorf("expected stale token kept, got %q", c.AccessToken)
	}
	if f.audit.Count(domain.AuditTokenRefreshFailed) != 1 {
		t.Errorf("expected token_refresh_failed audit event, got %v", f.audit.Actions())
	}
	for _, ev := range f.audit.Events() {
		if ev.Action == domain.AuditTokenRefreshFailed && ev.ErrorCode != "refresh_timeout" {
			t.Errorf("expected refresh_timeout error code, got %q", ev.ErrorCode)
		}
	}
}

func TestTokenRefreshService_Sweep_PanicIsContained(t *testing.T) {
	f := newSweepFixture()
	f.store.Put(connected("ws-1", domain.PlatformLinkedIn, time.Hour))
	f.store.Put(connected("ws-2", domain.PlatformLinkedIn, time.Hour))

	expiry := testNow.Add(24 * time.Hour * 30)
	f.linkedin.RefreshTokenFn = func(_ *driven.PlatformApp, c *domain.PlatformCredentials) (*domain.OAuthToken, error) {
		if c.WorkspaceID == "ws-1" {
			panic("nil map")
		}
		return &domain.OAuthToken{AccessToken: "new", ExpiresAt: &expiry}, nil
	}

	report, err := f.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TokenRefresh.Successful != 1 || report.TokenRefresh.Failed != 1 {
		t.Errorf("expected 1/1, got %+v", report.TokenRefresh)
	}
}

func TestTokenRefreshService_Sweep_BoundedConcurrency(t *testing.T) {
	f := newSweepFixture()
	for i := 0; i < 12; i++ {
		f.store.Put(connected(fmt.Sprintf("ws-%02d", i), domain.PlatformLinkedIn, time.Hour))
	}

	var inFlight, peak int32
	expiry := testNow.Add(30 * 24 * time.Hour)
	f.linkedin.RefreshTokenFn = func(*driven.PlatformApp, *domain.PlatformCredentials) (*domain.OAuthToken, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &domain.OAuthToken{AccessToken: "new", ExpiresAt: &expiry}, nil
	}

	report, err := f.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TokenRefresh.Successful != 12 {
		t.Errorf("expected 12 refreshed, got %+v", report.TokenRefresh)
	}
	if peak > 3 {
		t.Errorf("expected at most 3 concurrent refreshes, saw %d", peak)
	}
}
