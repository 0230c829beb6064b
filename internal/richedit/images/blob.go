package images

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
	"github.com/gofrs/uuid"
)

// Blob - временный файл в памяти процесса.
type Blob struct {
	ContentType string
	Data        []byte
	Expires     time.Time
}

// BlobStore хранит временные файлы до истечения срока. Просроченные удаляются Expire,
// который вызывается периодической задачей.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[uuid.UUID]Blob
	ttl   time.Duration
	now   func() time.Time
}

func NewBlobStore(ttl time.Duration) *BlobStore {
	return &BlobStore{
		blobs: make(map[uuid.UUID]Blob),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *BlobStore) Put(contentType string, data []byte) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = Blob{ContentType: contentType, Data: data, Expires: s.now().Add(s.ttl)}
	return id, nil
}

func (s *BlobStore) Get(id uuid.UUID) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	if !ok || !s.now().Before(b.Expires) {
		return Blob{}, apierrors.ErrBlobNotFound
	}
	return b, nil
}

// Expire удаляет просроченные файлы и возвращает их количество.
func (s *BlobStore) Expire() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, b := range s.blobs {
		if !now.Before(b.Expires) {
			delete(s.blobs, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Expired blobs removed", "count", removed)
	}
	return removed
}

func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// BlobResolver выдает ссылку вида blob:<адрес сервера>/<uuid> на временный файл.
type BlobResolver struct {
	Store        *BlobStore
	BaseURL      *url.URL
	MaxDimension int
}

func (r *BlobResolver) Resolve(_ context.Context, upload Upload) (string, error) {
	contentType, err := DetectImage(upload.Data)
	if err != nil {
		return "", err
	}
	data, err := Downscale(upload.Data, contentType, r.MaxDimension)
	if err != nil {
		return "", err
	}
	id, err := r.Store.Put(contentType, data)
	if err != nil {
		return "", err
	}

	origin := ""
	if r.BaseURL != nil {
		origin = strings.TrimSuffix((&url.URL{Scheme: r.BaseURL.Scheme, Host: r.BaseURL.Host}).String(), "/")
	}
	return "blob:" + origin + "/" + id.String(), nil
}

// ParseBlobURL извлекает идентификатор временного файла из ссылки blob:.
func ParseBlobURL(raw string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(raw, "blob:")
	if !ok {
		return uuid.Nil, false
	}
	i := strings.LastIndexByte(rest, '/')
	id, err := uuid.FromString(rest[i+1:])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
