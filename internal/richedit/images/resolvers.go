package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
	filestorage "github.com/aisa-it/richedit/internal/richedit/file-storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/uuid"
	"github.com/nfnt/resize"
)

// DetectImage определяет MIME тип по содержимому. Не изображения отклоняются.
func DetectImage(data []byte) (string, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", apierrors.ErrUnsupportedImage.WithFormattedMessage(mtype.String())
	}
	return mtype.String(), nil
}

// Downscale уменьшает растровое изображение так, чтобы большая сторона не превышала maxDimension.
// GIF, SVG и изображения меньше предела возвращаются без изменений.
func Downscale(data []byte, contentType string, maxDimension int) ([]byte, error) {
	if maxDimension <= 0 || (contentType != "image/jpeg" && contentType != "image/png") {
		return data, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apierrors.ErrImageRead
	}
	if cfg.Width <= maxDimension && cfg.Height <= maxDimension {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apierrors.ErrImageRead
	}
	thmb := resize.Thumbnail(uint(maxDimension), uint(maxDimension), img, resize.Lanczos3)

	buf := new(bytes.Buffer)
	if contentType == "image/png" {
		err = png.Encode(buf, thmb)
	} else {
		err = jpeg.Encode(buf, thmb, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURIResolver встраивает изображение в документ как data URI.
type DataURIResolver struct {
	MaxDimension int
}

func (r *DataURIResolver) Resolve(_ context.Context, upload Upload) (string, error) {
	contentType, err := DetectImage(upload.Data)
	if err != nil {
		return "", err
	}
	data, err := Downscale(upload.Data, contentType, r.MaxDimension)
	if err != nil {
		return "", err
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// StorageResolver сохраняет изображение в файловое хранилище и возвращает адрес для его выдачи.
type StorageResolver struct {
	Storage      filestorage.FileStorage
	BaseURL      *url.URL
	MaxDimension int
	SessionId    string
}

// FilePath - путь выдачи файла хранилища.
func FilePath(id uuid.UUID) string {
	return "/api/file/" + id.String() + "/"
}

func (r *StorageResolver) Resolve(_ context.Context, upload Upload) (string, error) {
	if r.Storage == nil {
		return "", apierrors.ErrStorageDisabled
	}
	contentType, err := DetectImage(upload.Data)
	if err != nil {
		return "", err
	}
	data, err := Downscale(upload.Data, contentType, r.MaxDimension)
	if err != nil {
		return "", err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	if err := r.Storage.Save(data, id, contentType, &filestorage.Metadata{SessionId: r.SessionId, OriginalName: upload.Name}); err != nil {
		slog.Error("Save image to storage", "name", upload.Name, "err", err)
		return "", apierrors.ErrImageUploadFailed
	}

	path := &url.URL{Path: FilePath(id)}
	if r.BaseURL == nil {
		return path.String(), nil
	}
	return r.BaseURL.ResolveReference(path).String(), nil
}
