// internal/model/tenant.go
package model

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Tenant is a delivery endpoint and the credentials used to call it.
type Tenant struct {
	ID          string    `db:"id" json:"id"`
	EndpointURL string    `db:"endpoint_url" json:"chatwootUrl"`
	AccessToken string    `db:"access_token" json:"-"`
	ClientID    string    `db:"client_id" json:"-"`
	UID         string    `db:"uid" json:"-"`
	AccountID   int64     `db:"account_id" json:"accountId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// TenantCredentials is what the onboarding path knows about an endpoint on
// each contact.
type TenantCredentials struct {
	EndpointURL string
	AccessToken string
	ClientID    string
	UID         string
	AccountID   int64
}

// NormalizeEndpointURL reduces an endpoint URL to the identity key used by
// the credential store: lower-case scheme and host, no trailing slash, no
// query or fragment.
func NormalizeEndpointURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("endpoint url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "parse endpoint url")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", errors.Errorf("endpoint url %q must be http or https", raw)
	}
	if u.Host == "" {
		return "", errors.Errorf("endpoint url %q has no host", raw)
	}
	path := strings.TrimRight(u.Path, "/")
	return scheme + "://" + strings.ToLower(u.Host) + path, nil
}
