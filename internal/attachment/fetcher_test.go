package attachment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/message-scheduler/internal/attachment"
	appErrors "github.com/unclebandit/message-scheduler/internal/errors"
)

func TestFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	f := attachment.NewFetcher(srv.Client(), 1024)
	file, err := f.Fetch(context.Background(), srv.URL+"/files/photo.png")
	require.NoError(t, err)

	assert.Equal(t, []byte("PNGDATA"), file.Data)
	assert.Equal(t, "photo.png", file.Name)
	assert.Equal(t, "image/png", file.ContentType)
}

func TestFetchDefaultsNameAndType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte{0x01, 0x02})
	}))
	defer srv.Close()

	file, err := attachment.NewFetcher(srv.Client(), 0).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, attachment.DefaultName, file.Name)
	assert.Equal(t, attachment.DefaultContentType, file.ContentType)
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := attachment.NewFetcher(srv.Client(), 1024).Fetch(context.Background(), srv.URL+"/missing.pdf")
	require.Error(t, err)

	var fe *appErrors.AttachmentFetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	_, err := attachment.NewFetcher(srv.Client(), 16).Fetch(context.Background(), srv.URL+"/big.bin")
	var fe *appErrors.AttachmentFetchError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "exceeds 16 bytes")
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := attachment.NewFetcher(nil, 0).Fetch(context.Background(), url+"/gone")
	var fe *appErrors.AttachmentFetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
}
