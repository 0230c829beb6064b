package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
	"github.com/aisa-it/richedit/internal/richedit/images"
	"github.com/hashicorp/go-retryablehttp"
)

// ImageLoader получает содержимое изображений документа по их src: data URI,
// временные blob: ссылки и адреса http(s), в том числе относительные BaseURL.
type ImageLoader struct {
	Blobs    *images.BlobStore
	BaseURL  *url.URL
	MaxBytes int64

	client *retryablehttp.Client
}

func NewImageLoader(blobs *images.BlobStore, baseURL *url.URL, maxBytes int64) *ImageLoader {
	cl := retryablehttp.NewClient()
	cl.RetryMax = 2
	cl.RetryWaitMin = time.Millisecond * 200
	cl.RetryWaitMax = time.Second * 2
	cl.HTTPClient.Timeout = time.Second * 15
	cl.Logger = slog.Default()

	if maxBytes <= 0 {
		maxBytes = images.DefaultMaxBytes
	}

	return &ImageLoader{
		Blobs:    blobs,
		BaseURL:  baseURL,
		MaxBytes: maxBytes,
		client:   cl,
	}
}

// Load возвращает данные изображения и его MIME тип.
func (l *ImageLoader) Load(ctx context.Context, src string) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	case strings.HasPrefix(src, "blob:"):
		id, ok := images.ParseBlobURL(src)
		if !ok || l.Blobs == nil {
			return nil, "", apierrors.ErrBlobNotFound
		}
		blob, err := l.Blobs.Get(id)
		if err != nil {
			return nil, "", err
		}
		return blob.Data, blob.ContentType, nil
	}
	return l.fetch(ctx, src)
}

func (l *ImageLoader) fetch(ctx context.Context, src string) ([]byte, string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, "", apierrors.ErrImageRead
	}
	if !u.IsAbs() {
		if l.BaseURL == nil {
			return nil, "", apierrors.ErrImageRead
		}
		u = l.BaseURL.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", apierrors.ErrImageRead
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch image %s: %s", u.Redacted(), resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.MaxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > l.MaxBytes {
		return nil, "", apierrors.ErrSizeLimit.WithFormattedMessage(images.FormatBytes(l.MaxBytes))
	}

	contentType, err := images.DetectImage(data)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func decodeDataURI(src string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", apierrors.ErrImageRead
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", apierrors.ErrImageRead
	}
	contentType, err := images.DetectImage(data)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}
