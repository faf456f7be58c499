package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/unclebandit/message-scheduler/internal/model"
)

// TenantFinder is the only view of the credential store the dispatcher gets.
type TenantFinder interface {
	FindByID(ctx context.Context, id string) (*model.Tenant, error)
}

// TenantRepositoryInterface adds the onboarding write path.
type TenantRepositoryInterface interface {
	TenantFinder
	Upsert(ctx context.Context, creds model.TenantCredentials) (*model.Tenant, error)
	FindByEndpoint(ctx context.Context, endpointURL string) (*model.Tenant, error)
}

type TenantRepository struct {
	DB *sqlx.DB
}

const tenantColumns = `id, endpoint_url, access_token, client_id, uid, account_id, created_at, updated_at`

// FindByID returns nil, nil when no tenant has the id.
func (r *TenantRepository) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	var t model.Tenant
	err := r.DB.GetContext(ctx, &t, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "find tenant %s", id)
	}
	return &t, nil
}

// FindByEndpoint looks a tenant up by its normalized endpoint URL.
func (r *TenantRepository) FindByEndpoint(ctx context.Context, endpointURL string) (*model.Tenant, error) {
	key, err := model.NormalizeEndpointURL(endpointURL)
	if err != nil {
		return nil, err
	}
	var t model.Tenant
	err = r.DB.GetContext(ctx, &t, `SELECT `+tenantColumns+` FROM tenants WHERE endpoint_url = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "find tenant by endpoint %s", key)
	}
	return &t, nil
}

// Upsert inserts the tenant or refreshes its credentials in one statement,
// so concurrent onboarding calls for the same endpoint cannot race.
func (r *TenantRepository) Upsert(ctx context.Context, creds model.TenantCredentials) (*model.Tenant, error) {
	key, err := model.NormalizeEndpointURL(creds.EndpointURL)
	if err != nil {
		return nil, err
	}
	query := `
        INSERT INTO tenants (id, endpoint_url, access_token, client_id, uid, account_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        ON CONFLICT (endpoint_url) DO UPDATE
        SET access_token = EXCLUDED.access_token,
            client_id    = EXCLUDED.client_id,
            uid          = EXCLUDED.uid,
            account_id   = EXCLUDED.account_id,
            updated_at   = NOW()
        RETURNING ` + tenantColumns
	var t model.Tenant
	err = r.DB.GetContext(ctx, &t, query,
		uuid.NewString(), key, creds.AccessToken, creds.ClientID, creds.UID, creds.AccountID)
	if err != nil {
		return nil, errors.Wrapf(err, "upsert tenant %s", key)
	}
	return &t, nil
}

var _ TenantRepositoryInterface = (*TenantRepository)(nil)
