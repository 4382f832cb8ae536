package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Ensure CredentialStore implements the interface.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// credentialSecrets is the encrypted part of a credential row.
// Details are kept here because several variants carry page tokens.
type credentialSecrets struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
}

// CredentialStore implements driven.CredentialStore using PostgreSQL.
// One row per (workspace, platform); disconnecting clears the secrets but keeps the row.
type CredentialStore struct {
	db        *sql.DB
	encryptor *SecretEncryptor
}

// NewCredentialStore creates a new PostgreSQL-backed credential store.
func NewCredentialStore(db *sql.DB, encryptor *SecretEncryptor) *CredentialStore {
	return &CredentialStore{
		db:        db,
		encryptor: encryptor,
	}
}

const credentialColumns = `
	id, workspace_id, platform, secret_blob, account_id, account_name,
	is_connected, connected_at, connected_by, expires_at, refresh_error_count,
	last_refresh_error, last_refreshed_at, updated_at
`

func (s *CredentialStore) seal(c *domain.PlatformCredentials) ([]byte, error) {
	if c.AccessToken == "" && c.RefreshToken == "" && c.Details == nil {
		return nil, nil
	}
	details, err := domain.MarshalDetails(c.Details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	blob, err := s.encryptor.Encrypt(credentialSecrets{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Details:      details,
	}, rowAAD(c.WorkspaceID, string(c.Platform)))
	if err != nil {
		return nil, fmt.Errorf("encrypt secrets: %w", err)
	}
	return blob, nil
}

// Save stores or updates the credentials for (workspace, platform).
func (s *CredentialStore) Save(ctx context.Context, creds *domain.PlatformCredentials) error {
	if creds.ID == "" {
		creds.ID = uuid.NewString()
	}
	if creds.UpdatedAt.IsZero() {
		creds.UpdatedAt = time.Now()
	}

	blob, err := s.seal(creds)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO platform_credentials (
			id, workspace_id, platform, secret_blob, account_id, account_name,
			is_connected, connected_at, connected_by, expires_at, refresh_error_count,
			last_refresh_error, last_refreshed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (workspace_id, platform) DO UPDATE SET
			secret_blob = EXCLUDED.secret_blob,
			account_id = EXCLUDED.account_id,
			account_name = EXCLUDED.account_name,
			is_connected = EXCLUDED.is_connected,
			connected_at = EXCLUDED.connected_at,
			connected_by = EXCLUDED.connected_by,
			expires_at = EXCLUDED.expires_at,
			refresh_error_count = EXCLUDED.refresh_error_count,
			last_refresh_error = EXCLUDED.last_refresh_error,
			last_refreshed_at = EXCLUDED.last_refreshed_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err = s.db.QueryRowContext(ctx, query,
		creds.ID,
		creds.WorkspaceID,
		string(creds.Platform),
		blob,
		nullString(creds.AccountID),
		nullString(creds.AccountName),
		creds.IsConnected,
		nullTime(creds.ConnectedAt),
		nullString(creds.ConnectedBy),
		nullTime(creds.ExpiresAt),
		creds.RefreshErrorCount,
		nullString(creds.LastRefreshError),
		nullTime(creds.LastRefreshedAt),
		creds.UpdatedAt,
	).Scan(&creds.ID)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	return nil
}

// Get retrieves credentials with decrypted secrets. Returns nil, nil when absent.
func (s *CredentialStore) Get(ctx context.Context, workspaceID string, platform domain.Platform) (*domain.PlatformCredentials, error) {
	query := `SELECT ` + credentialColumns + `
		FROM platform_credentials
		WHERE workspace_id = $1 AND platform = $2
	`

	creds, err := s.scan(s.db.QueryRowContext(ctx, query, workspaceID, string(platform)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found returns nil, not error
	}
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	return creds, nil
}

// Disconnect clears the tokens and marks the row disconnected.
func (s *CredentialStore) Disconnect(ctx context.Context, workspaceID string, platform domain.Platform) error {
	query := `
		UPDATE platform_credentials
		SET secret_blob = NULL, is_connected = FALSE, expires_at = NULL, updated_at = NOW()
		WHERE workspace_id = $1 AND platform = $2
	`

	result, err := s.db.ExecContext(ctx, query, workspaceID, string(platform))
	if err != nil {
		return fmt.Errorf("disconnect credentials: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// ListByWorkspace returns every credential row of a workspace.
func (s *CredentialStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.PlatformCredentials, error) {
	query := `SELECT ` + credentialColumns + `
		FROM platform_credentials
		WHERE workspace_id = $1
		ORDER BY platform
	`
	return s.list(ctx, query, workspaceID)
}

// ListExpiring returns connected credentials whose token expires before the cutoff.
func (s *CredentialStore) ListExpiring(ctx context.Context, before time.Time) ([]*domain.PlatformCredentials, error) {
	query := `SELECT ` + credentialColumns + `
		FROM platform_credentials
		WHERE is_connected AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at
	`
	return s.list(ctx, query, before)
}

// UpdateTokens writes refreshed token material and clears the failure counter.
func (s *CredentialStore) UpdateTokens(ctx context.Context, creds *domain.PlatformCredentials) error {
	blob, err := s.seal(creds)
	if err != nil {
		return err
	}

	query := `
		UPDATE platform_credentials
		SET secret_blob = $3, expires_at = $4, refresh_error_count = 0,
		    last_refresh_error = NULL, last_refreshed_at = $5, updated_at = $6
		WHERE workspace_id = $1 AND platform = $2
	`

	updatedAt := creds.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, query,
		creds.WorkspaceID,
		string(creds.Platform),
		blob,
		nullTime(creds.ExpiresAt),
		nullTime(creds.LastRefreshedAt),
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordRefreshFailure increments the failure counter and keeps the current token.
func (s *CredentialStore) RecordRefreshFailure(ctx context.Context, workspaceID string, platform domain.Platform, message string) error {
	query := `
		UPDATE platform_credentials
		SET refresh_error_count = refresh_error_count + 1,
		    last_refresh_error = $3, updated_at = NOW()
		WHERE workspace_id = $1 AND platform = $2
	`

	result, err := s.db.ExecContext(ctx, query, workspaceID, string(platform), message)
	if err != nil {
		return fmt.Errorf("record refresh failure: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *CredentialStore) list(ctx context.Context, query string, args ...any) ([]*domain.PlatformCredentials, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var result []*domain.PlatformCredentials
	for rows.Next() {
		creds, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credentials: %w", err)
		}
		result = append(result, creds)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return result, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *CredentialStore) scan(row rowScanner) (*domain.PlatformCredentials, error) {
	var (
		c                                     domain.PlatformCredentials
		platform                              string
		secretBlob                            []byte
		accountID, accountName, connectedBy   sql.NullString
		lastRefreshError                      sql.NullString
		connectedAt, expiresAt, lastRefreshed sql.NullTime
	)

	if err := row.Scan(
		&c.ID,
		&c.WorkspaceID,
		&platform,
		&secretBlob,
		&accountID,
		&accountName,
		&c.IsConnected,
		&connectedAt,
		&connectedBy,
		&expiresAt,
		&c.RefreshErrorCount,
		&lastRefreshError,
		&lastRefreshed,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	c.Platform = domain.Platform(platform)
	c.AccountID = accountID.String
	c.AccountName = accountName.String
	c.ConnectedBy = connectedBy.String
	c.LastRefreshError = lastRefreshError.String
	c.ConnectedAt = timePtr(connectedAt)
	c.ExpiresAt = timePtr(expiresAt)
	c.LastRefreshedAt = timePtr(lastRefreshed)

	if len(secretBlob) > 0 {
		var secrets credentialSecrets
		if err := s.encryptor.Decrypt(secretBlob, rowAAD(c.WorkspaceID, platform), &secrets); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
		c.AccessToken = secrets.AccessToken
		c.RefreshToken = secrets.RefreshToken

		details, err := domain.UnmarshalDetails(c.Platform, secrets.Details)
		if err != nil {
			return nil, err
		}
		c.Details = details
	}

	return &c, nil
}
