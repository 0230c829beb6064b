package filestorage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aisa-it/richedit/internal/richedit/config"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestLocalStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	id := uuid.Must(uuid.NewV4())
	require.NoError(t, s.Save(pngHeader, id, "image/png", &Metadata{SessionId: "s1"}))

	ok, err := s.Exist(id)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	info, err := s.GetFileInfo(id)
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, int64(len(pngHeader)), info.Size)

	var names []string
	require.NoError(t, os.WriteFile(dir+"/not-a-uuid", []byte("x"), 0644))
	require.NoError(t, s.ListRoot(func(fi FileInfo) error {
		names = append(names, fi.Name)
		return nil
	}))
	assert.Equal(t, []string{id.String()}, names)

	require.NoError(t, s.Delete(id))
	ok, err = s.Exist(id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Delete(id), "deleting a missing file is not an error")

	_, err = s.Load(id)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.GetFileInfo(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorageSaveReader(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir() + "/nested")
	require.NoError(t, err)

	id := uuid.Must(uuid.NewV4())
	require.NoError(t, s.SaveReader(bytes.NewReader([]byte("hello")), 5, id, "text/plain", nil))

	r, err := s.LoadReader(id)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestMetadataMap(t *testing.T) {
	assert.Equal(t, map[string]string{"sessionId": "s", "originalName": "a.png"}, Metadata{SessionId: "s", OriginalName: "a.png"}.GetMap())
	assert.Empty(t, Metadata{}.GetMap())
}

func TestMinioStorage(t *testing.T) {
	t.Setenv("WEB_URL", "http://localhost")
	cfg, err := config.Load()
	require.NoError(t, err)
	if cfg.AWSEndpoint == "" {
		t.Skip("AWS_S3_ENDPOINT_URL is not set")
	}

	s, err := NewMinioStorage(cfg.AWSEndpoint, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.AWSUseSSL, cfg.AWSBucketName)
	require.NoError(t, err)

	id := uuid.Must(uuid.NewV4())
	require.NoError(t, s.Save(pngHeader, id, "image/png", &Metadata{SessionId: "test"}))
	defer s.Delete(id)

	info, err := s.GetFileInfo(id)
	assert.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
}
