package chatwoot_test

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/message-scheduler/internal/attachment"
	"github.com/unclebandit/message-scheduler/internal/chatwoot"
	appErrors "github.com/unclebandit/message-scheduler/internal/errors"
	"github.com/unclebandit/message-scheduler/internal/model"
)

func tenantFor(url string) *model.Tenant {
	return &model.Tenant{ID: "t1", EndpointURL: url + "/", AccessToken: "tok", AccountID: 7}
}

func TestMessagesURL(t *testing.T) {
	got := chatwoot.MessagesURL(&model.Tenant{EndpointURL: "https://chat.example.com/", AccountID: 3}, 42)
	assert.Equal(t, "https://chat.example.com/api/v1/accounts/3/conversations/42/messages", got)
}

func TestSendPlainJSON(t *testing.T) {
	var gotPath, gotType, gotToken, gotClient string
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotToken = r.Header.Get("api_access_token")
		gotClient = r.Header.Get("client")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := chatwoot.NewClient(srv.Client())
	err := c.Send(context.Background(), tenantFor(srv.URL), 42, chatwoot.NewPayload("Hi", nil))
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/accounts/7/conversations/42/messages", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "tok", gotToken)
	assert.Empty(t, gotClient)
	assert.Equal(t, map[string]interface{}{"content": "Hi", "message_type": "outgoing", "private": false}, body)
}

func TestSendMultipartWithAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		assert.NoError(t, err)
		assert.Equal(t, "multipart/form-data", mediaType)
		assert.NotEmpty(t, params["boundary"])
		assert.Equal(t, "c-1", r.Header.Get("client"))
		assert.Equal(t, "agent@example.com", r.Header.Get("uid"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "Hi", r.FormValue("content"))
		assert.Equal(t, "outgoing", r.FormValue("message_type"))
		assert.Equal(t, "false", r.FormValue("private"))

		file, header, err := r.FormFile("attachments[]")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Equal(t, []byte("%PDF"), data)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tenant := tenantFor(srv.URL)
	tenant.ClientID = "c-1"
	tenant.UID = "agent@example.com"
	file := &attachment.File{Name: "report.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}

	err := chatwoot.NewClient(srv.Client()).Send(context.Background(), tenant, 42, chatwoot.NewPayload("Hi", file))
	require.NoError(t, err)
}

func TestSendNonSuccessCapturesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"invalid"}`))
	}))
	defer srv.Close()

	err := chatwoot.NewClient(srv.Client()).Send(context.Background(), tenantFor(srv.URL), 1, chatwoot.NewPayload("Hi", nil))
	var de *appErrors.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusUnprocessableEntity, de.StatusCode)
	assert.Equal(t, `{"error":"invalid"}`, de.Body)
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := chatwoot.NewClient(nil).Send(context.Background(), tenantFor(url), 1, chatwoot.NewPayload("Hi", nil))
	var te *appErrors.TransportError
	assert.True(t, errors.As(err, &te))
}

func TestNewPayloadVariant(t *testing.T) {
	_, isPlain := chatwoot.NewPayload("x", nil).(chatwoot.PlainPayload)
	assert.True(t, isPlain)

	_, isAttachment := chatwoot.NewPayload("x", &attachment.File{Name: "a"}).(chatwoot.AttachmentPayload)
	assert.True(t, isAttachment)

	_, contentType, err := chatwoot.NewPayload("x", &attachment.File{Name: "a", ContentType: "text/plain"}).Encode()
	require.NoError(t, err)
	assert.NotEqual(t, "application/json", contentType)
}
