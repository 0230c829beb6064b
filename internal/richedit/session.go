package richedit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
	"github.com/aisa-it/richedit/internal/richedit/editor"
	"github.com/aisa-it/richedit/internal/richedit/media"
	"github.com/gofrs/uuid"
)

// Содержимое новой сессии, если клиент не передал свое.
const welcomeContent = `<h2>Welcome to the Rich Content Editor!</h2>
<p>This is a fully functional editor.</p>
<p>Try out the features:</p>
<ul>
<li><p>Formatting: <strong>Bold</strong>, <em>Italic</em>, <u>Underline</u></p></li>
<li><p>Lists (Bullet and Ordered)</p></li>
<li><p>Headings (H1, H2)</p></li>
<li><p>Alignment (Left, Center, Right, Justify)</p></li>
<li><p>Images and YouTube Embeds</p></li>
<li><p>Tables</p></li>
</ul>
<p>You can also paste content from Word!</p>`

// Session - открытый документ: состояние редактора, растягивание медиа и
// незавершенные загрузки изображений.
type Session struct {
	Id      uuid.UUID
	State   *editor.State
	Resizer *media.Resizer
	Created time.Time

	mu       sync.Mutex
	lastUsed time.Time
	uploads  map[uuid.UUID]*upload
	now      func() time.Time
}

// upload - загрузка изображения, результат которой вставляется в документ в позицию pos.
// done закрывается после вставки или ошибки, src и err до этого не читаются.
type upload struct {
	pos   int
	clock func() time.Time

	done     chan struct{}
	src      string
	err      error
	finished time.Time
}

func (u *upload) finish(src string, err error) {
	u.src, u.err = src, err
	u.finished = u.clock()
	close(u.done)
}

// finishedBefore сообщает, что загрузка завершилась раньше deadline.
func (u *upload) finishedBefore(deadline time.Time) bool {
	select {
	case <-u.done:
		return u.finished.Before(deadline)
	default:
		return false
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// addUpload запоминает загрузку, результат которой будет вставлен в позицию pos.
func (s *Session) addUpload(pos int) (uuid.UUID, *upload, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, nil, err
	}
	u := &upload{pos: pos, clock: s.now, done: make(chan struct{})}
	s.mu.Lock()
	s.uploads[id] = u
	s.mu.Unlock()
	return id, u, nil
}

func (s *Session) getUpload(id uuid.UUID) (*upload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	return u, ok
}

func (s *Session) dropUpload(id uuid.UUID) {
	s.mu.Lock()
	delete(s.uploads, id)
	s.mu.Unlock()
}

// expireUploads забывает завершенные загрузки, результат которых так и не запросили.
func (s *Session) expireUploads(deadline time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, u := range s.uploads {
		if u.finishedBefore(deadline) {
			delete(s.uploads, id)
			removed++
		}
	}
	return removed
}

func (s *Session) pendingUploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

// SessionStore хранит сессии в памяти процесса. Сессии, к которым не обращались
// дольше ttl, удаляются Expire.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	schema       *editor.Schema
	ttl          time.Duration
	max          int
	historyLimit int
	now          func() time.Time
}

func NewSessionStore(schema *editor.Schema, ttl time.Duration, max, historyLimit int) *SessionStore {
	return &SessionStore{
		sessions:     make(map[uuid.UUID]*Session),
		schema:       schema,
		ttl:          ttl,
		max:          max,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// Create открывает сессию с документом из content. Пустой content заменяется
// приветственным текстом.
func (s *SessionStore) Create(content string) (*Session, []editor.ParseWarning, error) {
	if content == "" {
		content = welcomeContent
	}

	state, warnings, err := editor.NewStateFromHTML(s.schema, content, editor.WithHistoryLimit(s.historyLimit))
	if err != nil {
		return nil, nil, apierrors.ErrInvalidContent
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	sess := &Session{
		Id:       id,
		State:    state,
		Resizer:  media.NewResizer(state),
		Created:  now,
		lastUsed: now,
		uploads:  make(map[uuid.UUID]*upload),
		now:      s.now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.sessions) >= s.max {
		return nil, nil, apierrors.ErrSessionLimit
	}
	s.sessions[id] = sess
	return sess, warnings, nil
}

// Get возвращает сессию и продлевает ее жизнь.
func (s *SessionStore) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apierrors.ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

func (s *SessionStore) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		cancelDrag(sess)
		delete(s.sessions, id)
	}
	return ok
}

// Expire закрывает неактивные сессии и возвращает их количество.
func (s *SessionStore) Expire() int {
	deadline := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.idleSince().Before(deadline) {
			cancelDrag(sess)
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Idle editor sessions closed", "count", removed)
	}
	return removed
}

// ExpireUploads удаляет результаты загрузок, завершенных раньше чем ttl назад.
func (s *SessionStore) ExpireUploads(ttl time.Duration) int {
	deadline := s.now().Add(-ttl)

	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	removed := 0
	for _, sess := range sessions {
		removed += sess.expireUploads(deadline)
	}
	if removed > 0 {
		slog.Debug("Unclaimed image uploads dropped", "count", removed)
	}
	return removed
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func cancelDrag(sess *Session) {
	if d, ok := sess.Resizer.Active(); ok {
		d.Cancel()
	}
}

// waitUpload ждет вставки загруженного изображения не дольше timeout.
// false означает, что загрузка еще выполняется.
func waitUpload(ctx context.Context, u *upload, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-u.done:
		return true
	case <-t.C:
	case <-ctx.Done():
	}
	return false
}
