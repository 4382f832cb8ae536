package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialconnect/internal/adapters/driven/postgres"
	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

type stateClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stateClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stateClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStateStore(t *testing.T, sealer Sealer) (*OAuthStateStore, *stateClock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := &stateClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := NewOAuthStateStore(client, sealer)
	store.Now = clock.Now
	return store, clock, mr
}

func newState(ws string, platform domain.Platform, value string) *domain.OAuthState {
	return &domain.OAuthState{
		State:           value,
		WorkspaceID:     ws,
		UserID:          "user-1",
		Platform:        platform,
		CodeChallenge:   "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		ChallengeMethod: "S256",
		RedirectURI:     "https://app.example.com/api/oauth/" + string(platform) + "/callback",
	}
}

func TestOAuthStateStore_CreateAndConsume(t *testing.T) {
	store, clock, mr := newTestStateStore(t, nil)
	ctx := context.Background()

	st := newState("ws-1", domain.PlatformYouTube, "state-abc")
	require.NoError(t, store.Create(ctx, st))

	assert.NotEmpty(t, st.ID)
	assert.Equal(t, clock.Now(), st.CreatedAt)
	assert.Equal(t, clock.Now().Add(domain.OAuthStateTTL), st.ExpiresAt)
	assert.True(t, mr.Exists(stateKey("ws-1", domain.PlatformYouTube, "state-abc")))

	got, err := store.ValidateAndConsume(ctx, "ws-1", domain.PlatformYouTube, "state-abc")
	require.NoError(t, err)
	assert.Equal(t, st.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, st.CodeChallenge, got.CodeChallenge)
	assert.Equal(t, st.RedirectURI, got.RedirectURI)
	assert.True(t, got.Used)
	require.NotNil(t, got.UsedAt)

	_, err = store.ValidateAndConsume(ctx, "ws-1", domain.PlatformYouTube, "state-abc")
	assert.ErrorIs(t, err, domain.ErrStateUsed)
}

func TestOAuthStateStore_NotFound(t *testing.T) {
	store, _, _ := newTestStateStore(t, nil)

	_, err := store.ValidateAndConsume(context.Background(), "ws-1", domain.PlatformTikTok, "missing")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestOAuthStateStore_ScopedToWorkspaceAndPlatform(t *testing.T) {
	store, _, _ := newTestStateStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newState("ws-1", domain.PlatformLinkedIn, "shared")))

	_, err := store.ValidateAndConsume(ctx, "ws-2", domain.PlatformLinkedIn, "shared")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)

	_, err = store.ValidateAndConsume(ctx, "ws-1", domain.PlatformFacebook, "shared")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)

	// The misses above did not burn the state.
	_, err = store.ValidateAndConsume(ctx, "ws-1", domain.PlatformLinkedIn, "shared")
	assert.NoError(t, err)
}

func TestOAuthStateStore_Expired(t *testing.T) {
	store, clock, _ := newTestStateStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newState("ws-1", domain.PlatformInstagram, "old")))
	clock.Advance(domain.OAuthStateTTL + time.Second)

	_, err := store.ValidateAndConsume(ctx, "ws-1", domain.PlatformInstagram, "old")
	assert.ErrorIs(t, err, domain.ErrStateExpired)
}

func TestOAuthStateStore_ConcurrentConsume(t *testing.T) {
	store, _, _ := newTestStateStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newState("ws-1", domain.PlatformTwitter, "race")))

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		used      atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ValidateAndConsume(ctx, "ws-1", domain.PlatformTwitter, "race")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrStateUsed):
				used.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(9), used.Load())
}

func TestOAuthStateStore_CleanupExpired(t *testing.T) {
	store, clock, mr := newTestStateStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newState("ws-1", domain.PlatformYouTube, "a")))
	require.NoError(t, store.Create(ctx, newState("ws-1", domain.PlatformTikTok, "b")))

	clock.Advance(domain.OAuthStateTTL / 2)
	require.NoError(t, store.Create(ctx, newState("ws-1", domain.PlatformLinkedIn, "c")))

	n, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(domain.OAuthStateTTL/2 + time.Second)
	n, err = store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.False(t, mr.Exists(stateKey("ws-1", domain.PlatformYouTube, "a")))
	assert.False(t, mr.Exists(stateKey("ws-1", domain.PlatformTikTok, "b")))
	assert.True(t, mr.Exists(stateKey("ws-1", domain.PlatformLinkedIn, "c")))

	members, err := mr.ZMembers(oauthStateIndex)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestOAuthStateStore_KeyExpiresAfterGrace(t *testing.T) {
	store, _, mr := newTestStateStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newState("ws-1", domain.PlatformYouTube, "ttl")))
	key := stateKey("ws-1", domain.PlatformYouTube, "ttl")

	assert.Greater(t, mr.TTL(key), time.Duration(0))
}

func TestOAuthStateStore_SealsTokenSecret(t *testing.T) {
	enc, err := postgres.NewSecretEncryptor([]byte("01234567890123456789012345678901"))
	require.NoError(t, err)

	store, _, mr := newTestStateStore(t, enc)
	ctx := context.Background()

	st := newState("ws-1", domain.PlatformTwitter, "oauth1")
	st.CodeChallenge, st.ChallengeMethod = "", ""
	st.TokenSecret = "request-token-secret"
	require.NoError(t, store.Create(ctx, st))

	raw := mr.HGet(stateKey("ws-1", domain.PlatformTwitter, "oauth1"), "data")
	assert.NotContains(t, raw, "request-token-secret")

	got, err := store.ValidateAndConsume(ctx, "ws-1", domain.PlatformTwitter, "oauth1")
	require.NoError(t, err)
	assert.Equal(t, "request-token-secret", got.TokenSecret)
}

func TestOAuthStateStore_TokenSecretNeedsSealer(t *testing.T) {
	store, _, _ := newTestStateStore(t, nil)

	st := newState("ws-1", domain.PlatformTwitter, "oauth1")
	st.TokenSecret = "request-token-secret"
	assert.Error(t, store.Create(context.Background(), st))
}
