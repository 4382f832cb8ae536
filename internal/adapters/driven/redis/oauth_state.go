package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OAuthStateStore = (*OAuthStateStore)(nil)

const (
	keyNamespace     = "socialconnect:"
	oauthStatePrefix = keyNamespace + "oauth_state:"
	oauthStateIndex  = oauthStatePrefix + "expiry"

	// expiredGrace keeps an expired state around long enough to report
	// ErrStateExpired instead of ErrStateNotFound.
	expiredGrace = time.Minute
)

// Sealer encrypts the OAuth 1.0a request-token secret before it is stored.
// postgres.SecretEncryptor satisfies it.
type Sealer interface {
	EncryptString(s string, aad []byte) ([]byte, error)
	DecryptString(blob, aad []byte) (string, error)
}

// OAuthStateStore implements driven.OAuthStateStore on Redis.
//
// Each state is a hash holding the JSON record, a used flag and the expiry
// in unix milliseconds. An expiry sorted set indexes every key so
// CleanupExpired does not need SCAN.
type OAuthStateStore struct {
	client redis.UniversalClient
	sealer Sealer
	ttl    time.Duration

	// Now is the clock used for expiry checks. Tests override it.
	Now func() time.Time
}

// NewOAuthStateStore creates a Redis-backed OAuth state store. sealer may be
// nil when no platform in use needs a request-token secret.
func NewOAuthStateStore(client redis.UniversalClient, sealer Sealer) *OAuthStateStore {
	return &OAuthStateStore{
		client: client,
		sealer: sealer,
		ttl:    domain.OAuthStateTTL,
		Now:    time.Now,
	}
}

// storedState is the JSON payload kept in the hash.
type storedState struct {
	domain.OAuthState
	SealedSecret []byte `json:"sealed_secret,omitempty"`
}

func stateKey(workspaceID string, platform domain.Platform, state string) string {
	return oauthStatePrefix + workspaceID + ":" + string(platform) + ":" + state
}

func secretAAD(st *domain.OAuthState) []byte {
	return []byte("oauth_state\x00" + st.WorkspaceID + "\x00" + string(st.Platform) + "\x00" + st.State)
}

// Create stores a new, unused OAuth state.
func (s *OAuthStateStore) Create(ctx context.Context, state *domain.OAuthState) error {
	if state.ID == "" {
		state.ID = uuid.NewString()
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = s.Now()
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = state.CreatedAt.Add(s.ttl)
	}

	record := storedState{OAuthState: *state}
	if state.TokenSecret != "" {
		if s.sealer == nil {
			return fmt.Errorf("save oauth state: token secret given but no sealer configured")
		}
		sealed, err := s.sealer.EncryptString(state.TokenSecret, secretAAD(state))
		if err != nil {
			return fmt.Errorf("encrypt token secret: %w", err)
		}
		record.SealedSecret = sealed
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal oauth state: %w", err)
	}

	key := stateKey(state.WorkspaceID, state.Platform, state.State)
	expiresMs := state.ExpiresAt.UnixMilli()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "data", data, "used", 0, "expires_at", expiresMs)
		pipe.PExpireAt(ctx, key, state.ExpiresAt.Add(expiredGrace))
		pipe.ZAdd(ctx, oauthStateIndex, redis.Z{Score: float64(expiresMs), Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// consumeScript checks and flips the used flag in one step.
// Returns {0, data} on success, {1} missing, {2} used, {3} expired.
var consumeScript = redis.NewScript(`
	local v = redis.call("hmget", KEYS[1], "used", "expires_at", "data")
	if not v[3] then
		return {1}
	end
	if v[1] == "1" then
		return {2}
	end
	if tonumber(v[2]) <= tonumber(ARGV[1]) then
		return {3}
	end
	redis.call("hset", KEYS[1], "used", 1, "used_at", ARGV[1])
	return {0, v[3]}
`)

// ValidateAndConsume marks the state used and returns it.
func (s *OAuthStateStore) ValidateAndConsume(ctx context.Context, workspaceID string, platform domain.Platform, state string) (*domain.OAuthState, error) {
	now := s.Now()
	key := stateKey(workspaceID, platform, state)

	res, err := consumeScript.Run(ctx, s.client, []string{key}, now.UnixMilli()).Slice()
	if err != nil {
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("consume oauth state: empty script reply")
	}

	code, _ := res[0].(int64)
	switch code {
	case 0:
	case 1:
		return nil, domain.ErrStateNotFound
	case 2:
		return nil, domain.ErrStateUsed
	case 3:
		return nil, domain.ErrStateExpired
	default:
		return nil, fmt.Errorf("consume oauth state: unexpected reply %d", code)
	}

	raw, ok := res[1].(string)
	if !ok {
		return nil, fmt.Errorf("consume oauth state: malformed record")
	}
	var record storedState
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode oauth state: %w", err)
	}

	st := record.OAuthState
	st.Used = true
	st.UsedAt = &now

	if len(record.SealedSecret) > 0 {
		if s.sealer == nil {
			return nil, fmt.Errorf("decrypt token secret: no sealer configured")
		}
		st.TokenSecret, err = s.sealer.DecryptString(record.SealedSecret, secretAAD(&st))
		if err != nil {
			return nil, fmt.Errorf("decrypt token secret: %w", err)
		}
	}

	return &st, nil
}

// CleanupExpired removes states past their expiry and returns how many were deleted.
func (s *OAuthStateStore) CleanupExpired(ctx context.Context) (int64, error) {
	upper := strconv.FormatInt(s.Now().UnixMilli(), 10)

	keys, err := s.client.ZRangeByScore(ctx, oauthStateIndex, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired oauth states: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, oauthStateIndex, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup oauth states: %w", err)
	}

	// Keys past their grace period are already gone, so count index entries.
	return int64(len(keys)), nil
}
