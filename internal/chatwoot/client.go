package chatwoot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	appErrors "github.com/unclebandit/message-scheduler/internal/errors"
	"github.com/unclebandit/message-scheduler/internal/model"
)

const (
	HeaderAccessToken = "api_access_token"
	HeaderClient      = "client"
	HeaderUID         = "uid"

	maxResponseBody = 4096
)

// Client posts messages into conversations on a tenant's endpoint.
type Client struct {
	HTTP *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTP: httpClient}
}

// MessagesURL is {endpoint}/api/v1/accounts/{accountId}/conversations/{conversationId}/messages.
func MessagesURL(tenant *model.Tenant, conversationID int64) string {
	return fmt.Sprintf("%s/api/v1/accounts/%d/conversations/%d/messages",
		strings.TrimRight(tenant.EndpointURL, "/"), tenant.AccountID, conversationID)
}

// Send performs one POST. Non-2xx answers become a DeliveryError carrying
// the (bounded) response body; network failures become a TransportError.
func (c *Client) Send(ctx context.Context, tenant *model.Tenant, conversationID int64, payload Payload) error {
	body, contentType, err := payload.Encode()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, MessagesURL(tenant, conversationID), bytes.NewReader(body))
	if err != nil {
		return appErrors.NewTransport("build delivery request", err)
	}
	req.Header.Set("Content-Type", contentType)
	// Header keys are sent verbatim, not canonicalized.
	req.Header[HeaderAccessToken] = []string{tenant.AccessToken}
	if tenant.ClientID != "" {
		req.Header[HeaderClient] = []string{tenant.ClientID}
	}
	if tenant.UID != "" {
		req.Header[HeaderUID] = []string{tenant.UID}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return appErrors.NewTransport("deliver message", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil
	}
	text, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return appErrors.NewDelivery(resp.StatusCode, strings.TrimSpace(string(text)))
}
