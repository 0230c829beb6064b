package editor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrStaleTransaction = errors.New("transaction was built on an outdated state")
	ErrInvalidPosition  = errors.New("position is out of document range")
	ErrUnknownNode      = errors.New("node type is not part of the schema")
	ErrInvalidAttribute = errors.New("invalid node attribute")
)

// Selection - выделение в позициях между блоками верхнего уровня документа:
// позиция i находится перед блоком i. Непустое выделение охватывает блоки [From, To),
// пустое - курсор, вставка происходит в его позицию.
type Selection struct {
	Anchor int `json:"anchor"`
	Head   int `json:"head"`
}

func CursorAt(pos int) Selection {
	return Selection{Anchor: pos, Head: pos}
}

func RangeOf(from, to int) Selection {
	return Selection{Anchor: from, Head: to}
}

func (s Selection) From() int { return min(s.Anchor, s.Head) }
func (s Selection) To() int   { return max(s.Anchor, s.Head) }
func (s Selection) Empty() bool {
	return s.Anchor == s.Head
}

func (s Selection) clamp(n int) Selection {
	return Selection{Anchor: min(max(s.Anchor, 0), n), Head: min(max(s.Head, 0), n)}
}

// Attrs - набор атрибутов ноды для UpdateAttributes.
type Attrs map[string]any

// Option настраивает State.
type Option func(*State)

// WithHistoryLimit ограничивает глубину истории отмены. 0 отключает историю.
func WithHistoryLimit(limit int) Option {
	return func(s *State) {
		s.historyLimit = limit
	}
}

// WithSelection задает начальное выделение.
func WithSelection(sel Selection) Option {
	return func(s *State) {
		s.sel = sel
	}
}

// State - состояние редактора: документ, выделение, схема и история.
// Изменяется только через транзакции, один писатель в каждый момент времени.
type State struct {
	mu sync.Mutex

	schema  *Schema
	doc     *Document
	sel     Selection
	version uint64

	historyLimit int
	hist         historyState
}

// NewState создает состояние с копией документа.
func NewState(schema *Schema, doc *Document, opts ...Option) *State {
	s := &State{
		schema:       schema,
		doc:          doc.Clone(),
		historyLimit: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sel = s.sel.clamp(len(s.doc.Elements))
	return s
}

// NewStateFromHTML разбирает HTML по схеме и создает состояние.
func NewStateFromHTML(schema *Schema, raw string, opts ...Option) (*State, []ParseWarning, error) {
	res, err := ParseHTML(strings.NewReader(raw), schema)
	if err != nil {
		return nil, nil, err
	}
	return NewState(schema, &Document{Elements: res.Fragment.Content}, opts...), res.Warnings, nil
}

func (s *State) Schema() *Schema {
	return s.schema
}

// Doc возвращает копию текущего документа.
func (s *State) Doc() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

func (s *State) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// Version увеличивается при каждом изменении документа или выделения.
func (s *State) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Node возвращает копию блока верхнего уровня.
func (s *State) Node(pos int) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos < 0 || pos >= len(s.doc.Elements) {
		return nil, false
	}
	return CloneNode(s.doc.Elements[pos]), true
}

// HTML отрисовывает текущий документ.
func (s *State) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RenderHTML(s.doc)
}

// Begin открывает транзакцию над копией текущего состояния.
func (s *State) Begin() *Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begin()
}

func (s *State) begin() *Transaction {
	return &Transaction{
		schema: s.schema,
		doc:    s.doc.Clone(),
		sel:    s.sel,
		base:   s.version,
	}
}

// Apply применяет транзакцию целиком. Транзакция, открытая до последнего изменения, отклоняется.
func (s *State) Apply(tr *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(tr)
}

func (s *State) apply(tr *Transaction) error {
	if tr.base != s.version {
		return ErrStaleTransaction
	}
	if !tr.docChanged && tr.sel == s.sel {
		return nil
	}

	if tr.docChanged {
		s.recordUndo(s.snapshot())
	}
	s.doc = tr.doc
	s.sel = tr.sel.clamp(len(s.doc.Elements))
	s.version++
	return nil
}

// Update выполняет fn над новой транзакцией и применяет ее, если fn не вернула ошибку.
// Состояние заблокировано на все время выполнения fn.
func (s *State) Update(fn func(tr *Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr := s.begin()
	if err := fn(tr); err != nil {
		return err
	}
	return s.apply(tr)
}

// SetSelection меняет выделение без записи в историю.
func (s *State) SetSelection(sel Selection) error {
	return s.Update(func(tr *Transaction) error {
		return tr.SetSelection(sel)
	})
}

// Transaction - набор изменений над копией документа. Применяется атомарно через State.Apply.
type Transaction struct {
	schema *Schema
	doc    *Document
	sel    Selection
	base   uint64

	docChanged bool
}

func (tr *Transaction) Schema() *Schema      { return tr.schema }
func (tr *Transaction) Doc() *Document       { return tr.doc }
func (tr *Transaction) Selection() Selection { return tr.sel }
func (tr *Transaction) DocChanged() bool     { return tr.docChanged }

func (tr *Transaction) SetSelection(sel Selection) error {
	n := len(tr.doc.Elements)
	if sel.Anchor < 0 || sel.Head < 0 || sel.Anchor > n || sel.Head > n {
		return ErrInvalidPosition
	}
	tr.sel = sel
	return nil
}

// ReplaceSelection заменяет выделенные блоки содержимым фрагмента.
// Курсор встает после вставленного содержимого.
func (tr *Transaction) ReplaceSelection(f *Fragment) error {
	if f == nil {
		return nil
	}
	for _, n := range f.Content {
		if !tr.schema.Allows(n) {
			return fmt.Errorf("%w: %T", ErrUnknownNode, n)
		}
	}

	from, to := tr.sel.From(), tr.sel.To()
	if to > len(tr.doc.Elements) {
		return ErrInvalidPosition
	}

	elements := make([]any, 0, len(tr.doc.Elements)-(to-from)+len(f.Content))
	elements = append(elements, tr.doc.Elements[:from]...)
	elements = append(elements, CloneBlocks(f.Content)...)
	elements = append(elements, tr.doc.Elements[to:]...)
	tr.doc.Elements = elements

	tr.sel = CursorAt(from + len(f.Content))
	tr.docChanged = true
	return nil
}

// InsertContent вставляет ноды на место выделения.
func (tr *Transaction) InsertContent(nodes ...any) error {
	return tr.ReplaceSelection(&Fragment{Content: nodes})
}

// replaceRange заменяет блоки [from, to) и выделяет вставленные блоки.
func (tr *Transaction) replaceRange(from, to int, nodes ...any) {
	elements := make([]any, 0, len(tr.doc.Elements)-(to-from)+len(nodes))
	elements = append(elements, tr.doc.Elements[:from]...)
	elements = append(elements, nodes...)
	elements = append(elements, tr.doc.Elements[to:]...)
	tr.doc.Elements = elements
	if len(nodes) == 0 {
		tr.sel = CursorAt(min(from, len(elements)))
	} else {
		tr.sel = RangeOf(from, from+len(nodes))
	}
	tr.docChanged = true
}

// UpdateAttributes меняет атрибуты блока верхнего уровня. Размеры медиа нод
// должны быть допустимыми CSS длинами.
func (tr *Transaction) UpdateAttributes(pos int, attrs Attrs) error {
	if pos < 0 || pos >= len(tr.doc.Elements) {
		return ErrInvalidPosition
	}

	node := tr.doc.Elements[pos]
	name := node.(interface{ NodeName() string }).NodeName()
	for key, val := range attrs {
		if !tr.schema.HasAttr(name, key) {
			return fmt.Errorf("%w: %s has no attribute %q", ErrInvalidAttribute, name, key)
		}
		str, _ := val.(string)
		switch n := node.(type) {
		case *Image:
			if err := setMediaAttr(&n.Width, &n.Height, &n.Align, key, str); err != nil {
				return err
			}
			switch key {
			case "src":
				if str == "" {
					return fmt.Errorf("%w: empty src", ErrInvalidAttribute)
				}
				n.Src = str
			case "alt":
				n.Alt = str
			case "title":
				n.Title = str
			}
		case *Video:
			if err := setMediaAttr(&n.Width, &n.Height, &n.Align, key, str); err != nil {
				return err
			}
			if key == "src" {
				if str == "" {
					return fmt.Errorf("%w: empty src", ErrInvalidAttribute)
				}
				n.Src = str
			}
		case *Paragraph:
			if key == "textAlign" {
				n.Align = ParseTextAlign(str)
			}
		case *Heading:
			switch key {
			case "textAlign":
				n.Align = ParseTextAlign(str)
			case "level":
				level, ok := intArg(val)
				if !ok || level < 1 || level > 6 {
					return fmt.Errorf("%w: heading level %v", ErrInvalidAttribute, val)
				}
				n.Level = level
			}
		case *List:
			if key == "start" {
				start, ok := intArg(val)
				if !ok || start < 1 {
					return fmt.Errorf("%w: list start %v", ErrInvalidAttribute, val)
				}
				n.Start = start
			}
		case *Code:
			if key == "language" {
				n.Language = str
			}
		}
	}

	tr.docChanged = true
	return nil
}

func setMediaAttr(width, height *string, align *TextAlign, key, val string) error {
	switch key {
	case "width", "height":
		if !IsCSSLength(val) {
			return fmt.Errorf("%w: %s %q is not a CSS length", ErrInvalidAttribute, key, val)
		}
		if key == "width" {
			*width = val
		} else {
			*height = val
		}
	case "textAlign":
		*align = ParseTextAlign(val)
	}
	return nil
}
