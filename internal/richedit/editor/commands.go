package editor

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/aisa-it/richedit/internal/richedit/video"
)

var (
	ErrNotApplicable   = errors.New("command is not applicable to the current selection")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid command argument")
)

// Command изменяет транзакцию. ErrNotApplicable означает, что команда
// недоступна для текущего выделения (кнопка панели неактивна).
type Command func(tr *Transaction, args Args) error

// Args - аргументы команды, обычно из JSON.
type Args map[string]any

func (a Args) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (a Args) Int(key string, def int) int {
	if i, ok := intArg(a[key]); ok {
		return i
	}
	return def
}

func (a Args) Bool(key string, def bool) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(n), "px"))
		return i, err == nil
	}
	return 0, false
}

const (
	cmdUndo = "undo"
	cmdRedo = "redo"
)

// Exec выполняет команду в отдельной транзакции.
func (s *State) Exec(name string, args Args) error {
	return s.Chain().Command(name, args).Run()
}

// Can проверяет, выполнима ли команда, не изменяя состояние.
func (s *State) Can(name string, args Args) bool {
	return s.Chain().Command(name, args).Can()
}

type chainCall struct {
	name string
	args Args
}

// Chain - цепочка команд, выполняемая одной транзакцией.
type Chain struct {
	state *State
	calls []chainCall
}

func (s *State) Chain() *Chain {
	return &Chain{state: s}
}

func (c *Chain) Command(name string, args Args) *Chain {
	c.calls = append(c.calls, chainCall{name: name, args: args})
	return c
}

// Run применяет все команды цепочки атомарно: при ошибке любой из них состояние не меняется.
func (c *Chain) Run() error {
	if done, err := c.history(false); done {
		return err
	}
	return c.state.Update(c.run)
}

// Can выполняет цепочку на копии транзакции.
func (c *Chain) Can() bool {
	if done, err := c.history(true); done {
		return err == nil
	}
	c.state.mu.Lock()
	tr := c.state.begin()
	c.state.mu.Unlock()
	return c.run(tr) == nil
}

// history обрабатывает undo и redo, которые работают с историей, а не с транзакцией.
func (c *Chain) history(dry bool) (bool, error) {
	idx := slices.IndexFunc(c.calls, func(call chainCall) bool {
		return call.name == cmdUndo || call.name == cmdRedo
	})
	if idx < 0 {
		return false, nil
	}
	if len(c.calls) > 1 {
		return true, fmt.Errorf("%w: %s can not be chained", ErrNotApplicable, c.calls[idx].name)
	}

	var ok bool
	switch {
	case c.calls[0].name == cmdUndo && dry:
		ok = c.state.CanUndo()
	case c.calls[0].name == cmdUndo:
		ok = c.state.Undo()
	case dry:
		ok = c.state.CanRedo()
	default:
		ok = c.state.Redo()
	}
	if !ok {
		return true, ErrNotApplicable
	}
	return true, nil
}

func (c *Chain) run(tr *Transaction) error {
	for _, call := range c.calls {
		cmd, ok := tr.schema.Command(call.name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCommand, call.name)
		}
		if err := cmd(tr, call.args); err != nil {
			return err
		}
	}
	return nil
}

// targetRange возвращает блоки, к которым применяется форматирование. Для курсора это блок
// после курсора, в конце документа - последний блок.
func targetRange(tr *Transaction) (int, int) {
	n := len(tr.doc.Elements)
	sel := tr.sel.clamp(n)
	if !sel.Empty() {
		return sel.From(), sel.To()
	}
	if sel.From() < n {
		return sel.From(), sel.From() + 1
	}
	if n > 0 {
		return n - 1, n
	}
	return 0, 0
}

func targetBlocks(tr *Transaction) []any {
	from, to := targetRange(tr)
	return tr.doc.Elements[from:to]
}

// eachTextBlock обходит параграфы и заголовки, включая вложенные в списки, цитаты и таблицы.
func eachTextBlock(blocks []any, fn func(content []any)) {
	for _, b := range blocks {
		switch e := b.(type) {
		case *Paragraph:
			fn(e.Content)
		case *Heading:
			fn(e.Content)
		case *Quote:
			eachTextBlock(e.Content, fn)
		case *List:
			for _, item := range e.Elements {
				eachTextBlock(item.Content, fn)
			}
		case *Table:
			for _, row := range e.Rows {
				for _, cell := range row {
					eachTextBlock(cell.Content, fn)
				}
			}
		}
	}
}

func eachText(blocks []any, fn func(t *Text)) {
	eachTextBlock(blocks, func(content []any) {
		for i, item := range content {
			if t, ok := item.(Text); ok {
				fn(&t)
				content[i] = t
			}
		}
	})
}

func visitText(blocks []any, fn func(t Text)) {
	eachTextBlock(blocks, func(content []any) {
		for _, item := range content {
			if t, ok := item.(Text); ok {
				fn(t)
			}
		}
	})
}

func hasTextBlock(blocks []any) bool {
	found := false
	eachTextBlock(blocks, func([]any) { found = true })
	return found
}

// allText проверяет условие для всего текста блоков. Без текста возвращает false.
func allText(blocks []any, fn func(t Text) bool) bool {
	seen, all := false, true
	visitText(blocks, func(t Text) {
		seen = true
		all = all && fn(t)
	})
	return seen && all
}

func markActive(t Text, mark string) bool {
	switch mark {
	case "bold":
		return t.Strong
	case "italic":
		return t.Italic
	case "underline":
		return t.Underlined
	case "strike":
		return t.Strikethrough
	case "code":
		return t.Code
	case "superscript":
		return t.Sup
	case "subscript":
		return t.Sub
	case "link":
		return t.URL != nil
	case "highlight":
		return t.BgColor != nil
	case "textStyle":
		return t.Color != nil || t.Size > 0 || t.FontFamily != ""
	}
	return false
}

func setMark(t *Text, mark string, on bool) {
	switch mark {
	case "bold":
		t.Strong = on
	case "italic":
		t.Italic = on
	case "underline":
		t.Underlined = on
	case "strike":
		t.Strikethrough = on
	case "code":
		t.Code = on
	case "superscript":
		t.Sup = on
	case "subscript":
		t.Sub = on
	case "link":
		if !on {
			t.URL, t.Target = nil, ""
		}
	case "highlight":
		if !on {
			t.BgColor = nil
		}
	case "textStyle":
		if !on {
			t.Color, t.Size, t.FontFamily = nil, 0, ""
		}
	}
}

func textCommand(tr *Transaction, fn func(blocks []any) error) error {
	blocks := targetBlocks(tr)
	if !hasTextBlock(blocks) {
		return ErrNotApplicable
	}
	if err := fn(blocks); err != nil {
		return err
	}
	tr.docChanged = true
	return nil
}

func toggleMark(mark string) Command {
	return func(tr *Transaction, _ Args) error {
		if !tr.schema.HasMark(mark) {
			return ErrNotApplicable
		}
		return textCommand(tr, func(blocks []any) error {
			on := !allText(blocks, func(t Text) bool { return markActive(t, mark) })
			eachText(blocks, func(t *Text) { setMark(t, mark, on) })
			return nil
		})
	}
}

func unsetMark(mark string) Command {
	return func(tr *Transaction, _ Args) error {
		return textCommand(tr, func(blocks []any) error {
			eachText(blocks, func(t *Text) { setMark(t, mark, false) })
			return nil
		})
	}
}

func unsetAllMarks(tr *Transaction, _ Args) error {
	return textCommand(tr, func(blocks []any) error {
		eachText(blocks, func(t *Text) { *t = Text{Content: t.Content} })
		return nil
	})
}

func setLink(tr *Transaction, args Args) error {
	href := strings.TrimSpace(args.String("href"))
	u, err := url.Parse(href)
	if href == "" || err != nil {
		return fmt.Errorf("%w: href %q", ErrInvalidArgument, href)
	}
	target := args.String("target")
	if target == "" {
		target = tr.schema.Default("link", "target")
	}
	return textCommand(tr, func(blocks []any) error {
		eachText(blocks, func(t *Text) {
			uu := *u
			t.URL, t.Target = &uu, target
		})
		return nil
	})
}

func setColor(tr *Transaction, args Args) error {
	c, err := ParseColor(args.String("color"))
	if err != nil {
		return fmt.Errorf("%w: color: %v", ErrInvalidArgument, err)
	}
	return textCommand(tr, func(blocks []any) error {
		eachText(blocks, func(t *Text) {
			cc := c
			t.Color = &cc
		})
		return nil
	})
}

func setHighlight(tr *Transaction, args Args) error {
	c := defaultHighlight
	if raw := args.String("color"); raw != "" {
		var err error
		if c, err = ParseColor(raw); err != nil {
			return fmt.Errorf("%w: color: %v", ErrInvalidArgument, err)
		}
	}
	return textCommand(tr, func(blocks []any) error {
		eachText(blocks, func(t *Text) {
			cc := c
			t.BgColor = &cc
		})
		return nil
	})
}

func toggleHighlight(tr *Transaction, args Args) error {
	if allText(targetBlocks(tr), func(t Text) bool { return t.BgColor != nil }) {
		return unsetMark("highlight")(tr, args)
	}
	return setHighlight(tr, args)
}

func setFontSize(tr *Transaction, args Args) error {
	size, ok := intArg(args["fontSize"])
	if !ok || size <= 0 {
		return fmt.Errorf("%w: fontSize %v", ErrInvalidArgument, args["fontSize"])
	}
	return textCommand(tr, func(blocks []any) error {
		eachText(blocks, func(t *Text) { t.Size = size })
		return nil
	})
}

func setFontFamily(tr *Transaction, args Args) error {
	family := strings.TrimSpace(args.String("fontFamily"))
	if family == "" {
		return fmt.Errorf("%w: empty fontFamily", ErrInvalidArgument)
	}
	return textCommand(tr, func(blocks []any) error {
		eachText(blocks, func(t *Text) { t.FontFamily = family })
		return nil
	})
}

func unsetTextStyle(attr string) Command {
	return func(tr *Transaction, _ Args) error {
		return textCommand(tr, func(blocks []any) error {
			eachText(blocks, func(t *Text) {
				switch attr {
				case "color":
					t.Color = nil
				case "fontSize":
					t.Size = 0
				case "fontFamily":
					t.FontFamily = ""
				}
			})
			return nil
		})
	}
}

var alignments = []string{"left", "center", "right", "justify"}

func setTextAlign(tr *Transaction, args Args) error {
	alignment := args.String("alignment")
	if !slices.Contains(alignments, alignment) {
		return ErrNotApplicable
	}
	return applyAlign(tr, ParseTextAlign(alignment))
}

func unsetTextAlign(tr *Transaction, _ Args) error {
	return applyAlign(tr, LeftAlign)
}

func applyAlign(tr *Transaction, align TextAlign) error {
	applied := false
	for _, b := range targetBlocks(tr) {
		node, ok := b.(interface{ NodeName() string })
		if !ok || !tr.schema.HasAttr(node.NodeName(), "textAlign") {
			continue
		}
		switch e := b.(type) {
		case *Paragraph:
			e.Align = align
		case *Heading:
			e.Align = align
		case *Image:
			e.Align = align
		case *Video:
			e.Align = align
		default:
			continue
		}
		applied = true
	}
	if !applied {
		return ErrNotApplicable
	}
	tr.docChanged = true
	return nil
}

func setParagraph(tr *Transaction, _ Args) error {
	applied := false
	blocks := targetBlocks(tr)
	for i, b := range blocks {
		switch e := b.(type) {
		case *Heading:
			blocks[i] = &Paragraph{Content: e.Content, Align: e.Align}
			applied = true
		case *Paragraph:
			applied = true
		}
	}
	if !applied {
		return ErrNotApplicable
	}
	tr.docChanged = true
	return nil
}

func toggleHeading(tr *Transaction, args Args) error {
	level := args.Int("level", 1)
	if level < 1 || level > 6 || !tr.schema.HasNode("heading") {
		return ErrNotApplicable
	}

	blocks := targetBlocks(tr)
	// Все выделенные заголовки нужного уровня превращаются обратно в параграфы
	unset := !slices.ContainsFunc(blocks, func(b any) bool {
		h, ok := b.(*Heading)
		_, isP := b.(*Paragraph)
		return isP || (ok && h.Level != level)
	})

	applied := false
	for i, b := range blocks {
		switch e := b.(type) {
		case *Paragraph:
			blocks[i] = &Heading{Level: level, Content: e.Content, Align: e.Align}
			applied = true
		case *Heading:
			if unset {
				blocks[i] = &Paragraph{Content: e.Content, Align: e.Align}
			} else {
				e.Level = level
			}
			applied = true
		}
	}
	if !applied {
		return ErrNotApplicable
	}
	tr.docChanged = true
	return nil
}

func toggleList(numbered bool) Command {
	return func(tr *Transaction, _ Args) error {
		name := "bulletList"
		if numbered {
			name = "orderedList"
		}
		if !tr.schema.HasNode(name) {
			return ErrNotApplicable
		}

		from, to := targetRange(tr)
		if from == to {
			return ErrNotApplicable
		}

		if list, ok := tr.doc.Elements[from].(*List); ok && to-from == 1 {
			if list.Numbered == numbered {
				// снятие списка: элементы становятся блоками
				var lifted []any
				for _, item := range list.Elements {
					lifted = append(lifted, item.Content...)
				}
				tr.replaceRange(from, to, lifted...)
				return nil
			}
			list.Numbered = numbered
			if numbered && list.Start == 0 {
				list.Start = 1
			}
			tr.docChanged = true
			return nil
		}

		list := &List{Numbered: numbered}
		if numbered {
			list.Start = 1
		}
		for _, b := range tr.doc.Elements[from:to] {
			switch b.(type) {
			case *Paragraph, *Heading:
				list.Elements = append(list.Elements, ListElement{Content: []any{b}})
			case *List, *Table:
				return ErrNotApplicable
			default:
				list.Elements = append(list.Elements, ListElement{Content: []any{&Paragraph{Content: make([]any, 0)}, b}})
			}
		}
		tr.replaceRange(from, to, list)
		return nil
	}
}

func toggleBlockquote(tr *Transaction, _ Args) error {
	if !tr.schema.HasNode("blockquote") {
		return ErrNotApplicable
	}
	from, to := targetRange(tr)
	if from == to {
		return ErrNotApplicable
	}
	if q, ok := tr.doc.Elements[from].(*Quote); ok && to-from == 1 {
		tr.replaceRange(from, to, q.Content...)
		return nil
	}
	quote := &Quote{Content: slices.Clone(tr.doc.Elements[from:to])}
	tr.replaceRange(from, to, quote)
	return nil
}

// clearNodes превращает выделенные блоки в параграфы, снимая списки, цитаты и заголовки.
func clearNodes(tr *Transaction, _ Args) error {
	from, to := targetRange(tr)
	if from == to {
		return ErrNotApplicable
	}
	var out []any
	var flatten func(blocks []any)
	flatten = func(blocks []any) {
		for _, b := range blocks {
			switch e := b.(type) {
			case *Heading:
				out = append(out, &Paragraph{Content: e.Content, Align: e.Align})
			case *Quote:
				flatten(e.Content)
			case *List:
				for _, item := range e.Elements {
					flatten(item.Content)
				}
			default:
				out = append(out, b)
			}
		}
	}
	flatten(tr.doc.Elements[from:to])
	tr.replaceRange(from, to, out...)
	return nil
}

func setHorizontalRule(tr *Transaction, _ Args) error {
	if !tr.schema.HasNode("horizontalRule") {
		return ErrNotApplicable
	}
	return tr.InsertContent(&HorizontalRule{})
}

// insertContent разбирает HTML из аргумента html по схеме и вставляет на место выделения.
func insertContent(tr *Transaction, args Args) error {
	raw := args.String("html")
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty html", ErrInvalidArgument)
	}
	res, err := ParseHTML(strings.NewReader(raw), tr.schema)
	if err != nil {
		return err
	}
	return tr.ReplaceSelection(res.Fragment)
}

func setImage(tr *Transaction, args Args) error {
	src := strings.TrimSpace(args.String("src"))
	if src == "" {
		return fmt.Errorf("%w: empty src", ErrInvalidArgument)
	}
	img := &Image{
		Src:    src,
		Alt:    args.String("alt"),
		Title:  args.String("title"),
		Width:  tr.schema.Default("image", "width"),
		Height: tr.schema.Default("image", "height"),
	}
	if w := args.String("width"); w != "" {
		if !IsCSSLength(w) {
			return fmt.Errorf("%w: width %q", ErrInvalidArgument, w)
		}
		img.Width = w
	}
	if h := args.String("height"); h != "" {
		if !IsCSSLength(h) {
			return fmt.Errorf("%w: height %q", ErrInvalidArgument, h)
		}
		img.Height = h
	}
	return tr.InsertContent(img)
}

func setYoutubeVideo(tr *Transaction, args Args) error {
	src, ok := video.NormalizeURL(strings.TrimSpace(args.String("src")))
	if !ok {
		return fmt.Errorf("%w: unsupported video url", ErrInvalidArgument)
	}
	return tr.InsertContent(&Video{
		Src:    src,
		Width:  tr.schema.Default("youtube", "width"),
		Height: tr.schema.Default("youtube", "height"),
	})
}

func newCell(header bool) TableCell {
	return TableCell{Header: header, ColSpan: 1, RowSpan: 1, Content: []any{&Paragraph{Content: make([]any, 0)}}}
}

func insertTable(tr *Transaction, args Args) error {
	rows, cols := args.Int("rows", 3), args.Int("cols", 3)
	if rows < 1 || cols < 1 || rows > 100 || cols > 50 {
		return fmt.Errorf("%w: table %dx%d", ErrInvalidArgument, rows, cols)
	}
	withHeader := args.Bool("withHeaderRow", true) && tr.schema.HasNode("tableHeader")

	t := &Table{Rows: make([][]TableCell, rows)}
	for r := range t.Rows {
		t.Rows[r] = make([]TableCell, cols)
		for c := range t.Rows[r] {
			t.Rows[r][c] = newCell(withHeader && r == 0)
		}
	}
	return tr.InsertContent(t)
}

// targetTable находит первую таблицу среди блоков выделения.
func targetTable(tr *Transaction) (int, *Table, error) {
	from, to := targetRange(tr)
	for i := from; i < to; i++ {
		if t, ok := tr.doc.Elements[i].(*Table); ok {
			return i, t, nil
		}
	}
	return 0, nil, ErrNotApplicable
}

func addRow(after bool) Command {
	return func(tr *Transaction, args Args) error {
		_, t, err := targetTable(tr)
		if err != nil {
			return err
		}
		r := min(max(args.Int("row", 0), 0), len(t.Rows)-1)
		if after {
			r++
		}
		row := make([]TableCell, t.Cols())
		for i := range row {
			row[i] = newCell(false)
		}
		t.Rows = slices.Insert(t.Rows, r, row)
		tr.docChanged = true
		return nil
	}
}

func addColumn(after bool) Command {
	return func(tr *Transaction, args Args) error {
		_, t, err := targetTable(tr)
		if err != nil {
			return err
		}
		col := max(args.Int("col", 0), 0)
		for i, row := range t.Rows {
			c := min(col, len(row)-1)
			if after {
				c++
			}
			header := len(row) > 0 && !slices.ContainsFunc(row, func(cell TableCell) bool { return !cell.Header })
			t.Rows[i] = slices.Insert(row, max(c, 0), newCell(header))
		}
		tr.docChanged = true
		return nil
	}
}

func deleteRow(tr *Transaction, args Args) error {
	pos, t, err := targetTable(tr)
	if err != nil {
		return err
	}
	r := args.Int("row", 0)
	if r < 0 || r >= len(t.Rows) {
		return fmt.Errorf("%w: row %d", ErrInvalidArgument, r)
	}
	t.Rows = slices.Delete(t.Rows, r, r+1)
	if len(t.Rows) == 0 {
		tr.replaceRange(pos, pos+1)
		return nil
	}
	tr.docChanged = true
	return nil
}

func deleteColumn(tr *Transaction, args Args) error {
	pos, t, err := targetTable(tr)
	if err != nil {
		return err
	}
	col := args.Int("col", 0)
	if col < 0 || col >= t.Cols() {
		return fmt.Errorf("%w: col %d", ErrInvalidArgument, col)
	}
	rows := t.Rows[:0]
	for _, row := range t.Rows {
		if col < len(row) {
			row = slices.Delete(row, col, col+1)
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	t.Rows = rows
	if len(t.Rows) == 0 {
		tr.replaceRange(pos, pos+1)
		return nil
	}
	tr.docChanged = true
	return nil
}

func deleteTable(tr *Transaction, _ Args) error {
	pos, _, err := targetTable(tr)
	if err != nil {
		return err
	}
	tr.replaceRange(pos, pos+1)
	return nil
}

func toggleHeaderRow(tr *Transaction, _ Args) error {
	_, t, err := targetTable(tr)
	if err != nil {
		return err
	}
	if !tr.schema.HasNode("tableHeader") {
		return ErrNotApplicable
	}
	header := slices.ContainsFunc(t.Rows[0], func(cell TableCell) bool { return !cell.Header })
	for i := range t.Rows[0] {
		t.Rows[0][i].Header = header
	}
	tr.docChanged = true
	return nil
}

// setCellBackground задает фон ячейки row/col, пустой цвет снимает фон.
func setCellBackground(tr *Transaction, args Args) error {
	_, t, err := targetTable(tr)
	if err != nil {
		return err
	}
	r, c := args.Int("row", 0), args.Int("col", 0)
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return fmt.Errorf("%w: cell %d:%d", ErrInvalidArgument, r, c)
	}
	color := strings.TrimSpace(args.String("color"))
	if color != "" {
		if _, err := ParseColor(color); err != nil {
			return fmt.Errorf("%w: color: %v", ErrInvalidArgument, err)
		}
	}
	t.Rows[r][c].BackgroundColor = color
	tr.docChanged = true
	return nil
}
