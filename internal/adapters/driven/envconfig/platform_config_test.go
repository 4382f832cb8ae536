package envconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestPlatformConfigStore_Get(t *testing.T) {
	store := NewFromLookup(lookupFrom(map[string]string{
		"LINKEDIN_CLIENT_ID":     "li-id",
		"LINKEDIN_CLIENT_SECRET": " li-secret ",
		"LINKEDIN_SCOPES":        "openid, profile w_member_social",
		"TIKTOK_CLIENT_KEY":      "tt-key",
	}))
	ctx := context.Background()

	app, err := store.Get(ctx, domain.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, "li-id", app.ClientID)
	assert.Equal(t, "li-secret", app.ClientSecret)
	assert.Equal(t, []string{"openid", "profile", "w_member_social"}, app.Scopes)

	// Only half of TikTok's pair is set.
	_, err = store.Get(ctx, domain.PlatformTikTok)
	assert.ErrorIs(t, err, domain.ErrConfigMissing)

	_, err = store.Get(ctx, domain.PlatformYouTube)
	assert.ErrorIs(t, err, domain.ErrConfigMissing)

	_, err = store.Get(ctx, domain.Platform("myspace"))
	assert.ErrorIs(t, err, domain.ErrInvalidPlatform)
}

func TestPlatformConfigStore_InstagramFallsBackToFacebook(t *testing.T) {
	store := NewFromLookup(lookupFrom(map[string]string{
		"FACEBOOK_CLIENT_ID":     "fb-id",
		"FACEBOOK_CLIENT_SECRET": "fb-secret",
	}))

	app, err := store.Get(context.Background(), domain.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, "fb-id", app.ClientID)
	assert.Equal(t, "fb-secret", app.ClientSecret)
}

func TestPlatformConfigStore_InstagramOwnAppWins(t *testing.T) {
	store := NewFromLookup(lookupFrom(map[string]string{
		"FACEBOOK_CLIENT_ID":     "fb-id",
		"FACEBOOK_CLIENT_SECRET": "fb-secret",
		"INSTAGRAM_APP_ID":       "ig-id",
		"INSTAGRAM_APP_SECRET":   "ig-secret",
	}))

	app, err := store.Get(context.Background(), domain.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, "ig-id", app.ClientID)
}

func TestPlatformConfigStore_Configured(t *testing.T) {
	store := NewFromLookup(lookupFrom(map[string]string{
		"YOUTUBE_CLIENT_ID":      "yt-id",
		"YOUTUBE_CLIENT_SECRET":  "yt-secret",
		"TWITTER_API_KEY":        "tw-key",
		"TWITTER_API_SECRET":     "tw-secret",
		"FACEBOOK_CLIENT_ID":     "fb-id",
		"FACEBOOK_CLIENT_SECRET": "fb-secret",
	}))

	assert.Equal(t, []domain.Platform{
		domain.PlatformTwitter,
		domain.PlatformFacebook,
		domain.PlatformInstagram,
		domain.PlatformYouTube,
	}, store.Configured(context.Background()))
}

func TestPlatformConfigStore_GetReturnsCopy(t *testing.T) {
	store := NewFromLookup(lookupFrom(map[string]string{
		"TIKTOK_CLIENT_KEY":    "tt-key",
		"TIKTOK_CLIENT_SECRET": "tt-secret",
		"TIKTOK_SCOPES":        "user.info.basic",
	}))
	ctx := context.Background()

	app, _ := store.Get(ctx, domain.PlatformTikTok)
	app.ClientID = "mutated"
	app.Scopes[0] = "mutated"

	again, _ := store.Get(ctx, domain.PlatformTikTok)
	assert.Equal(t, "tt-key", again.ClientID)
	assert.Equal(t, []string{"user.info.basic"}, again.Scopes)
}
