// Package envconfig serves platform app credentials from environment variables.
package envconfig

import (
	"context"
	"os"
	"strings"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Ensure PlatformConfigStore implements the interface.
var _ driven.PlatformConfigStore = (*PlatformConfigStore)(nil)

// envKeys names the variables holding one platform's app credentials.
type envKeys struct {
	id, secret, scopes string
}

var platformEnv = map[domain.Platform]envKeys{
	domain.PlatformTwitter:   {"TWITTER_API_KEY", "TWITTER_API_SECRET", "TWITTER_SCOPES"},
	domain.PlatformLinkedIn:  {"LINKEDIN_CLIENT_ID", "LINKEDIN_CLIENT_SECRET", "LINKEDIN_SCOPES"},
	domain.PlatformFacebook:  {"FACEBOOK_CLIENT_ID", "FACEBOOK_CLIENT_SECRET", "FACEBOOK_SCOPES"},
	domain.PlatformInstagram: {"INSTAGRAM_APP_ID", "INSTAGRAM_APP_SECRET", "INSTAGRAM_SCOPES"},
	domain.PlatformTikTok:    {"TIKTOK_CLIENT_KEY", "TIKTOK_CLIENT_SECRET", "TIKTOK_SCOPES"},
	domain.PlatformYouTube:   {"YOUTUBE_CLIENT_ID", "YOUTUBE_CLIENT_SECRET", "YOUTUBE_SCOPES"},
}

// PlatformConfigStore reads app credentials once at construction.
// Instagram is a Facebook app feature, so it falls back to the Facebook
// credentials when its own are not set.
type PlatformConfigStore struct {
	apps map[domain.Platform]*driven.PlatformApp
}

// New loads the store from the process environment.
func New() *PlatformConfigStore {
	return NewFromLookup(os.LookupEnv)
}

// NewFromLookup loads the store through lookup, which has the signature of os.LookupEnv.
func NewFromLookup(lookup func(string) (string, bool)) *PlatformConfigStore {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	apps := make(map[domain.Platform]*driven.PlatformApp, len(platformEnv))
	for platform, keys := range platformEnv {
		app := &driven.PlatformApp{
			ClientID:     get(keys.id),
			ClientSecret: get(keys.secret),
			Scopes:       splitScopes(get(keys.scopes)),
		}
		apps[platform] = app
	}

	if ig := apps[domain.PlatformInstagram]; !ig.IsConfigured() {
		fb := apps[domain.PlatformFacebook]
		ig.ClientID = fb.ClientID
		ig.ClientSecret = fb.ClientSecret
	}

	return &PlatformConfigStore{apps: apps}
}

// Get returns the app for a platform, or domain.ErrConfigMissing.
func (s *PlatformConfigStore) Get(_ context.Context, platform domain.Platform) (*driven.PlatformApp, error) {
	if !platform.IsValid() {
		return nil, domain.ErrInvalidPlatform
	}
	app, ok := s.apps[platform]
	if !ok || !app.IsConfigured() {
		return nil, domain.ErrConfigMissing
	}
	cp := *app
	cp.Scopes = append([]string(nil), app.Scopes...)
	return &cp, nil
}

// Configured lists platforms with complete app credentials, in display order.
func (s *PlatformConfigStore) Configured(_ context.Context) []domain.Platform {
	var out []domain.Platform
	for _, p := range domain.AllPlatforms() {
		if s.apps[p].IsConfigured() {
			out = append(out, p)
		}
	}
	return out
}

// splitScopes accepts comma or space separated scope lists.
func splitScopes(v string) []string {
	if v == "" {
		return nil
	}
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' '
	})
}
