package editor

// ActiveFormatting - состояние кнопок панели инструментов для текущего выделения.
// Вычисляется заново при каждом вызове и нигде не хранится.
type ActiveFormatting struct {
	Marks        map[string]bool `json:"marks"`
	Node         string          `json:"node,omitempty"`
	HeadingLevel int             `json:"heading_level,omitempty"`
	TextAlign    string          `json:"text_align,omitempty"`
	Color        string          `json:"color,omitempty"`
	FontSize     int             `json:"font_size,omitempty"`
	FontFamily   string          `json:"font_family,omitempty"`
	Link         string          `json:"link,omitempty"`
	InTable      bool            `json:"in_table"`
	CanUndo      bool            `json:"can_undo"`
	CanRedo      bool            `json:"can_redo"`
}

// ActiveFormatting вычисляет активное форматирование по выделению. Марка активна,
// если ею отмечен весь текст выделенных блоков.
func (s *State) ActiveFormatting() ActiveFormatting {
	s.mu.Lock()
	defer s.mu.Unlock()

	af := ActiveFormatting{
		Marks:   make(map[string]bool),
		CanUndo: len(s.hist.undo) > 0,
		CanRedo: len(s.hist.redo) > 0,
	}

	tr := &Transaction{schema: s.schema, doc: s.doc, sel: s.sel}
	blocks := targetBlocks(tr)

	for _, mark := range s.schema.Marks() {
		af.Marks[mark] = allText(blocks, func(t Text) bool { return markActive(t, mark) })
	}

	if len(blocks) > 0 {
		if node, ok := blocks[0].(interface{ NodeName() string }); ok {
			af.Node = node.NodeName()
		}
		switch e := blocks[0].(type) {
		case *Paragraph:
			af.TextAlign = e.Align.String()
		case *Heading:
			af.HeadingLevel = e.Level
			af.TextAlign = e.Align.String()
		case *Image:
			af.TextAlign = e.Align.String()
		case *Video:
			af.TextAlign = e.Align.String()
		case *Table:
			af.InTable = true
		}
	}

	var first *Text
	visitText(blocks, func(t Text) {
		if first == nil {
			first = &t
		}
	})
	if first != nil {
		if first.Color != nil {
			af.Color = first.Color.Hex()
		}
		af.FontSize = first.Size
		af.FontFamily = first.FontFamily
		if first.URL != nil {
			af.Link = first.URL.String()
		}
	}

	return af
}

// IsActive отвечает на запросы панели вида isActive("bold"), isActive("heading", {level: 2})
// и isActive("", {textAlign: "center"}).
func (s *State) IsActive(name string, attrs Args) bool {
	af := s.ActiveFormatting()

	if align := attrs.String("textAlign"); align != "" && af.TextAlign != align {
		return false
	}
	if name == "" {
		return len(attrs) > 0
	}
	if active, ok := af.Marks[name]; ok {
		return active
	}
	if name == "table" {
		return af.InTable
	}
	if af.Node != name {
		return false
	}
	if level := attrs.Int("level", 0); level > 0 && af.HeadingLevel != level {
		return false
	}
	return true
}
