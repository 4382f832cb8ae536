package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Ensure OAuthStateStore implements the interface.
var _ driven.OAuthStateStore = (*OAuthStateStore)(nil)

// OAuthStateStore implements driven.OAuthStateStore using PostgreSQL.
// The OAuth 1.0a request-token secret is encrypted before it is written.
type OAuthStateStore struct {
	db        *sql.DB
	encryptor *SecretEncryptor
	ttl       time.Duration
}

// NewOAuthStateStore creates a new PostgreSQL-backed OAuth state store.
func NewOAuthStateStore(db *sql.DB, encryptor *SecretEncryptor) *OAuthStateStore {
	return &OAuthStateStore{
		db:        db,
		encryptor: encryptor,
		ttl:       domain.OAuthStateTTL,
	}
}

// WithTTL overrides the state lifetime used when a record has no expiry set.
func (s *OAuthStateStore) WithTTL(ttl time.Duration) *OAuthStateStore {
	s.ttl = ttl
	return s
}

func stateAAD(st *domain.OAuthState) []byte {
	return []byte("oauth_state\x00" + st.WorkspaceID + "\x00" + string(st.Platform) + "\x00" + st.State)
}

// Create stores a new, unused OAuth state.
func (s *OAuthStateStore) Create(ctx context.Context, state *domain.OAuthState) error {
	now := time.Now()
	if state.ID == "" {
		state.ID = uuid.NewString()
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = state.CreatedAt.Add(s.ttl)
	}

	var secretBlob []byte
	if state.TokenSecret != "" {
		var err error
		secretBlob, err = s.encryptor.EncryptString(state.TokenSecret, stateAAD(state))
		if err != nil {
			return fmt.Errorf("encrypt token secret: %w", err)
		}
	}

	query := `
		INSERT INTO oauth_states (
			id, state, workspace_id, user_id, platform, code_challenge,
			challenge_method, token_secret_blob, redirect_uri, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		state.ID,
		state.State,
		state.WorkspaceID,
		state.UserID,
		string(state.Platform),
		nullString(state.CodeChallenge),
		nullString(state.ChallengeMethod),
		secretBlob,
		state.RedirectURI,
		state.CreatedAt,
		state.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}

	return nil
}

// ValidateAndConsume marks the state used and returns it.
// The UPDATE ... WHERE used = FALSE is the single atomic step: of two
// concurrent callbacks only one gets a row back.
func (s *OAuthStateStore) ValidateAndConsume(ctx context.Context, workspaceID string, platform domain.Platform, state string) (*domain.OAuthState, error) {
	query := `
		UPDATE oauth_states
		SET used = TRUE, used_at = NOW()
		WHERE workspace_id = $1 AND platform = $2 AND state = $3
		  AND used = FALSE AND expires_at > NOW()
		RETURNING id, state, workspace_id, user_id, platform, code_challenge,
		          challenge_method, token_secret_blob, redirect_uri, created_at,
		          expires_at, used, used_at
	`

	var (
		st                domain.OAuthState
		platformStr       string
		challenge, method sql.NullString
		secretBlob        []byte
		usedAt            sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, workspaceID, string(platform), state).Scan(
		&st.ID,
		&st.State,
		&st.WorkspaceID,
		&st.UserID,
		&platformStr,
		&challenge,
		&method,
		&secretBlob,
		&st.RedirectURI,
		&st.CreatedAt,
		&st.ExpiresAt,
		&st.Used,
		&usedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.classify(ctx, workspaceID, platform, state)
	}
	if err != nil {
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}

	st.Platform = domain.Platform(platformStr)
	st.CodeChallenge = challenge.String
	st.ChallengeMethod = method.String
	st.UsedAt = timePtr(usedAt)

	if len(secretBlob) > 0 {
		st.TokenSecret, err = s.encryptor.DecryptString(secretBlob, stateAAD(&st))
		if err != nil {
			return nil, fmt.Errorf("decrypt token secret: %w", err)
		}
	}

	return &st, nil
}

// classify explains why a consume matched no row.
func (s *OAuthStateStore) classify(ctx context.Context, workspaceID string, platform domain.Platform, state string) error {
	query := `
		SELECT used, expires_at <= NOW()
		FROM oauth_states
		WHERE workspace_id = $1 AND platform = $2 AND state = $3
	`

	var used, expired bool
	err := s.db.QueryRowContext(ctx, query, workspaceID, string(platform), state).Scan(&used, &expired)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrStateNotFound
	case err != nil:
		return fmt.Errorf("classify oauth state: %w", err)
	case used:
		return domain.ErrStateUsed
	case expired:
		return domain.ErrStateExpired
	default:
		// Consumed between the two statements
		return domain.ErrStateUsed
	}
}

// CleanupExpired removes expired states and returns how many were deleted.
func (s *OAuthStateStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup oauth states: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}
