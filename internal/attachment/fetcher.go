package attachment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	appErrors "github.com/unclebandit/message-scheduler/internal/errors"
)

const (
	DefaultName        = "attachment"
	DefaultContentType = "application/octet-stream"
)

// File is fetched attachment content ready for a multipart part.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Fetcher downloads attachment references. No caching, no retry.
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewFetcher(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client, MaxBytes: maxBytes}
}

// Fetch GETs rawURL and returns its body. Every failure is an
// AttachmentFetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, appErrors.NewAttachmentFetch(rawURL, err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, appErrors.NewAttachmentFetch(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, appErrors.NewAttachmentStatus(rawURL, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, appErrors.NewAttachmentFetch(rawURL, err)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, appErrors.NewAttachmentFetch(rawURL, fmt.Errorf("body exceeds %d bytes", f.MaxBytes))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DefaultContentType
	}
	return &File{Name: fileName(rawURL), ContentType: contentType, Data: data}, nil
}

func fileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultName
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || strings.TrimSpace(base) == "" {
		return DefaultName
	}
	return base
}
