// Пакет предоставляет интерфейс и реализации файлового хранилища изображений редактора: локальный диск и Minio.
// Он обеспечивает операции сохранения, загрузки, удаления и проверки файлов, а также поддержку метаданных.
package filestorage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	UploadTries = 3
)

var ErrNotFound = errors.New("file not found")

type Metadata struct {
	SessionId    string
	OriginalName string
}

type FileInfo struct {
	Name        string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

func (m Metadata) GetMap() map[string]string {
	meta := make(map[string]string)
	if m.SessionId != "" {
		meta["sessionId"] = m.SessionId
	}
	if m.OriginalName != "" {
		meta["originalName"] = m.OriginalName
	}
	return meta
}

type FileStorage interface {
	Save(data []byte, name uuid.UUID, contentType string, metadata *Metadata) error
	SaveReader(reader io.Reader, fileSize int64, name uuid.UUID, contentType string, metadata *Metadata) error
	Load(name uuid.UUID) ([]byte, error)
	LoadReader(name uuid.UUID) (io.ReadCloser, error)
	Delete(name uuid.UUID) error
	Exist(name uuid.UUID) (bool, error)
	ListRoot(fn func(FileInfo) error) error
	GetFileInfo(name uuid.UUID) (*FileInfo, error)
}

type LocalStorage struct {
	rootDir string
}

func (s *LocalStorage) path(name uuid.UUID) string {
	return filepath.Join(s.rootDir, name.String())
}

func (s *LocalStorage) Save(data []byte, name uuid.UUID, contentType string, metadata *Metadata) error {
	return os.WriteFile(s.path(name), data, 0644)
}

func (s *LocalStorage) SaveReader(reader io.Reader, fileSize int64, name uuid.UUID, contentType string, metadata *Metadata) error {
	f, err := os.Create(s.path(name))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, reader)
	return err
}

func (s *LocalStorage) Load(name uuid.UUID) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *LocalStorage) LoadReader(name uuid.UUID) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStorage) Delete(name uuid.UUID) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStorage) Exist(name uuid.UUID) (bool, error) {
	_, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *LocalStorage) ListRoot(fn func(FileInfo) error) error {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, err := uuid.FromString(entry.Name())
		if err != nil {
			continue
		}
		info, err := s.GetFileInfo(id)
		if err != nil {
			return err
		}
		if err := fn(*info); err != nil {
			return err
		}
	}
	return nil
}

// GetFileInfo определяет тип содержимого по сигнатуре файла: локальное хранилище метаданные не пишет.
func (s *LocalStorage) GetFileInfo(name uuid.UUID) (*FileInfo, error) {
	stat, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	mtype, err := mimetype.DetectFile(s.path(name))
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Name:        name.String(),
		Size:        stat.Size(),
		ContentType: mtype.String(),
		CreatedAt:   stat.ModTime(),
	}, nil
}

func NewLocalStorage(rootPath string) (FileStorage, error) {
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, err
	}
	return &LocalStorage{rootPath}, nil
}

type MinioStorage struct {
	client     *minio.Client
	bucketName string
	retryDelay time.Duration
}

func (s *MinioStorage) Save(data []byte, name uuid.UUID, contentType string, metadata *Metadata) error {
	return s.put(name, contentType, metadata, int64(len(data)), func() io.Reader {
		return bytes.NewReader(data)
	})
}

// SaveReader загружает поток одной попыткой: прочитанный поток повторить нельзя.
func (s *MinioStorage) SaveReader(reader io.Reader, fileSize int64, name uuid.UUID, contentType string, metadata *Metadata) error {
	_, err := s.client.PutObject(context.Background(),
		s.bucketName,
		name.String(),
		reader,
		fileSize,
		putOptions(contentType, metadata),
	)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		slog.Error("Upload file to minio", "name", name, "code", resp.StatusCode, "msg", resp.Message, "err", err)
	}
	return err
}

func (s *MinioStorage) put(name uuid.UUID, contentType string, metadata *Metadata, size int64, body func() io.Reader) error {
	var err error
	for i := range UploadTries {
		_, err = s.client.PutObject(context.Background(),
			s.bucketName,
			name.String(),
			body(),
			size,
			putOptions(contentType, metadata),
		)
		if err != nil {
			resp := minio.ToErrorResponse(err)
			slog.Error("Upload file to minio", "try", i+1, "code", resp.StatusCode, "msg", resp.Message)
			time.Sleep(s.retryDelay)
			continue
		}
		break
	}
	return err
}

func putOptions(contentType string, metadata *Metadata) minio.PutObjectOptions {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if metadata != nil {
		opts.UserTags = metadata.GetMap()
	}
	return opts
}

func (s *MinioStorage) Load(name uuid.UUID) ([]byte, error) {
	obj, err := s.LoadReader(name)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *MinioStorage) LoadReader(name uuid.UUID) (io.ReadCloser, error) {
	return s.client.GetObject(context.Background(),
		s.bucketName,
		name.String(),
		minio.GetObjectOptions{},
	)
}

func (s *MinioStorage) Delete(name uuid.UUID) error {
	return s.client.RemoveObject(
		context.Background(),
		s.bucketName,
		name.String(),
		minio.RemoveObjectOptions{},
	)
}

func (s *MinioStorage) Exist(name uuid.UUID) (bool, error) {
	_, err := s.client.StatObject(
		context.Background(),
		s.bucketName,
		name.String(),
		minio.StatObjectOptions{},
	)
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MinioStorage) ListRoot(fn func(info FileInfo) error) error {
	for obj := range s.client.ListObjects(context.Background(), s.bucketName, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return obj.Err
		}
		if err := fn(FileInfo{
			Name:        obj.Key,
			Size:        obj.Size,
			ContentType: obj.ContentType,
			CreatedAt:   obj.LastModified,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *MinioStorage) GetFileInfo(name uuid.UUID) (*FileInfo, error) {
	stat, err := s.client.StatObject(context.Background(), s.bucketName, name.String(), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &FileInfo{
		Name:        name.String(),
		Size:        stat.Size,
		ContentType: stat.ContentType,
		CreatedAt:   stat.LastModified,
	}, nil
}

func NewMinioStorage(endpoint string, accessKeyID string, secretAccessKey string, useSSL bool, bucketName string) (FileStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return nil, err
	}

	if !exists {
		// Create bucket if not exist
		if err := client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStorage{client: client, bucketName: bucketName, retryDelay: 2 * time.Second}, nil
}
