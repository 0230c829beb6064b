// Пакет images получает адрес изображения для вставки в документ: ссылку проверяет сразу,
// загруженный файл ограничивает по размеру и асинхронно превращает в адрес через Resolver.
package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
)

// DefaultMaxBytes - предельный размер загружаемого файла. Файл ровно такого размера допустим.
const DefaultMaxBytes = 5 * 1024 * 1024

// File - загруженный файл: размер известен заранее, содержимое читается по требованию.
type File interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

type bytesFile struct {
	name string
	data []byte
}

// BytesFile оборачивает содержимое в памяти.
func BytesFile(name string, data []byte) File {
	return &bytesFile{name: name, data: data}
}

func (f *bytesFile) Name() string { return f.name }
func (f *bytesFile) Size() int64  { return int64(len(f.data)) }
func (f *bytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// Source - ссылка или файл. Заполняется одно из полей.
type Source struct {
	URL  string
	File File
}

func FromURL(raw string) Source { return Source{URL: raw} }
func FromFile(f File) Source    { return Source{File: f} }

// Upload - прочитанный файл, передаваемый в Resolver.
type Upload struct {
	Name string
	Data []byte
}

// Resolver превращает содержимое файла в адрес, пригодный для src.
type Resolver interface {
	Resolve(ctx context.Context, upload Upload) (string, error)
}

type ResolverFunc func(ctx context.Context, upload Upload) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, upload Upload) (string, error) {
	return f(ctx, upload)
}

type Option func(*Acquirer)

// WithMaxBytes задает предельный размер файла.
func WithMaxBytes(n int64) Option {
	return func(a *Acquirer) {
		if n > 0 {
			a.maxBytes = n
		}
	}
}

func WithResolver(r Resolver) Option {
	return func(a *Acquirer) {
		if r != nil {
			a.resolver = r
		}
	}
}

// WithDelay задерживает результат файла, пока клиент показывает заглушку загрузки.
func WithDelay(d time.Duration) Option {
	return func(a *Acquirer) {
		a.delay = max(d, 0)
	}
}

type Acquirer struct {
	maxBytes int64
	resolver Resolver
	delay    time.Duration
}

// NewAcquirer создает Acquirer. По умолчанию файлы превращаются в data URI без изменения размера.
func NewAcquirer(opts ...Option) *Acquirer {
	a := &Acquirer{
		maxBytes: DefaultMaxBytes,
		resolver: &DataURIResolver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Acquirer) MaxBytes() int64 {
	return a.maxBytes
}

// Validate проверяет источник без чтения файла.
func (a *Acquirer) Validate(src Source) error {
	if src.File == nil {
		if strings.TrimSpace(src.URL) == "" {
			return apierrors.ErrImageURLRequired
		}
		return nil
	}
	if size := src.File.Size(); size > a.maxBytes {
		return apierrors.ErrSizeLimit.WithFormattedMessage(FormatBytes(a.maxBytes))
	}
	return nil
}

// Acquire начинает получение адреса. Ошибки проверки возвращаются сразу завершенным Pending;
// файл обрабатывается в отдельной горутине, которая завершается ровно один раз и никогда
// не ждет читателя результата. Отмена ctx не прерывает обработку.
func (a *Acquirer) Acquire(ctx context.Context, src Source) *Pending {
	p := newPending()

	if err := a.Validate(src); err != nil {
		p.complete("", err)
		return p
	}
	if src.File == nil {
		p.complete(src.URL, nil)
		return p
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		start := time.Now()
		res, err := a.resolve(ctx, src.File)
		if wait := a.delay - time.Since(start); wait > 0 {
			time.Sleep(wait)
		}
		if err != nil {
			slog.Warn("Resolve uploaded image", "name", src.File.Name(), "err", err)
		}
		p.complete(res, err)
	}()
	return p
}

func (a *Acquirer) resolve(ctx context.Context, f File) (res string, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = "", fmt.Errorf("resolve image panic: %v", r)
		}
	}()

	rc, err := f.Open()
	if err != nil {
		return "", apierrors.ErrImageRead
	}
	defer rc.Close()

	// Размер мог быть указан неверно, поэтому содержимое тоже ограничивается
	data, err := io.ReadAll(io.LimitReader(rc, a.maxBytes+1))
	if err != nil {
		return "", apierrors.ErrImageRead
	}
	if int64(len(data)) > a.maxBytes {
		return "", apierrors.ErrSizeLimit.WithFormattedMessage(FormatBytes(a.maxBytes))
	}

	return a.resolver.Resolve(ctx, Upload{Name: f.Name(), Data: data})
}

// Pending - результат получения адреса, завершается ровно один раз.
type Pending struct {
	once sync.Once
	done chan struct{}
	src  string
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) complete(src string, err error) {
	p.once.Do(func() {
		p.src, p.err = src, err
		close(p.done)
	})
}

// Done закрывается по завершении.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait ждет результат или отмену ctx. Отмена ожидания не отменяет обработку.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.src, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// FormatBytes форматирует размер для сообщений об ошибках: 5MB, 512KB, 100B.
func FormatBytes(n int64) string {
	switch {
	case n >= 1024*1024 && n%(1024*1024) == 0:
		return fmt.Sprintf("%dMB", n/(1024*1024))
	case n >= 1024 && n%1024 == 0:
		return fmt.Sprintf("%dKB", n/1024)
	}
	return fmt.Sprintf("%dB", n)
}
