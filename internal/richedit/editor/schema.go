package editor

import (
	"fmt"
	"slices"
)

// AttrSpec описывает атрибут ноды или марки.
type AttrSpec struct {
	Default any
}

// NodeSpec описывает тип ноды схемы.
// Tags - правила разбора HTML: теги, из которых строится нода.
type NodeSpec struct {
	Name  string
	Group string // "block", "inline" или пусто для служебных нод (tableRow, listItem)
	Tags  []string
	Attrs map[string]AttrSpec
}

// MarkSpec описывает тип марки (форматирования текста).
type MarkSpec struct {
	Name  string
	Tags  []string
	Attrs map[string]AttrSpec
}

// GlobalAttributes добавляет атрибуты к нодам и маркам, объявленным другими расширениями.
type GlobalAttributes struct {
	Types []string
	Attrs map[string]AttrSpec
}

// Schema - набор типов нод, марок, атрибутов и команд, собранный из расширений.
type Schema struct {
	nodes map[string]NodeSpec
	marks map[string]MarkSpec

	// атрибуты по имени типа ноды или марки
	attrs map[string]map[string]AttrSpec

	tagNodes map[string]string
	tagMarks map[string][]string

	commands   map[string]Command
	extensions []string
	markOrder  []string
}

// NewSchema собирает схему из расширений. Повторяющиеся имена нод, марок,
// команд или расширений считаются ошибкой конфигурации.
func NewSchema(exts ...Extension) (*Schema, error) {
	s := &Schema{
		nodes:    make(map[string]NodeSpec),
		marks:    make(map[string]MarkSpec),
		attrs:    make(map[string]map[string]AttrSpec),
		tagNodes: make(map[string]string),
		tagMarks: make(map[string][]string),
		commands: make(map[string]Command),
	}

	var globals []GlobalAttributes
	for _, ext := range exts {
		if slices.Contains(s.extensions, ext.Name()) {
			return nil, fmt.Errorf("duplicate extension %q", ext.Name())
		}
		s.extensions = append(s.extensions, ext.Name())

		for _, n := range ext.Nodes() {
			if s.hasType(n.Name) {
				return nil, fmt.Errorf("extension %q: duplicate type %q", ext.Name(), n.Name)
			}
			s.nodes[n.Name] = n
			s.attrs[n.Name] = copyAttrs(n.Attrs)
			for _, tag := range n.Tags {
				if _, ok := s.tagNodes[tag]; !ok {
					s.tagNodes[tag] = n.Name
				}
			}
		}

		for _, m := range ext.Marks() {
			if s.hasType(m.Name) {
				return nil, fmt.Errorf("extension %q: duplicate type %q", ext.Name(), m.Name)
			}
			s.marks[m.Name] = m
			s.attrs[m.Name] = copyAttrs(m.Attrs)
			s.markOrder = append(s.markOrder, m.Name)
			for _, tag := range m.Tags {
				s.tagMarks[tag] = append(s.tagMarks[tag], m.Name)
			}
		}

		for name, cmd := range ext.Commands() {
			if _, ok := s.commands[name]; ok {
				return nil, fmt.Errorf("extension %q: duplicate command %q", ext.Name(), name)
			}
			s.commands[name] = cmd
		}

		if p, ok := ext.(AttributeProvider); ok {
			globals = append(globals, p.GlobalAttributes()...)
		}
	}

	// Глобальные атрибуты применяются после регистрации всех типов, порядок расширений не важен
	for _, g := range globals {
		for _, t := range g.Types {
			if !s.hasType(t) {
				continue
			}
			for name, spec := range g.Attrs {
				s.attrs[t][name] = spec
			}
		}
	}

	return s, nil
}

// MustSchema - NewSchema с паникой при ошибке, для статичных наборов расширений.
func MustSchema(exts ...Extension) *Schema {
	s, err := NewSchema(exts...)
	if err != nil {
		panic(err)
	}
	return s
}

func copyAttrs(src map[string]AttrSpec) map[string]AttrSpec {
	dst := make(map[string]AttrSpec, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *Schema) hasType(name string) bool {
	_, node := s.nodes[name]
	_, mark := s.marks[name]
	return node || mark
}

func (s *Schema) HasNode(name string) bool {
	_, ok := s.nodes[name]
	return ok
}

func (s *Schema) HasMark(name string) bool {
	_, ok := s.marks[name]
	return ok
}

// HasAttr сообщает, объявлен ли атрибут у типа ноды или марки.
func (s *Schema) HasAttr(typeName, attr string) bool {
	_, ok := s.attrs[typeName][attr]
	return ok
}

// Default возвращает значение атрибута по умолчанию в виде строки.
func (s *Schema) Default(typeName, attr string) string {
	spec, ok := s.attrs[typeName][attr]
	if !ok || spec.Default == nil {
		return ""
	}
	if str, ok := spec.Default.(string); ok {
		return str
	}
	return fmt.Sprint(spec.Default)
}

// IsBlock сообщает, относится ли нода к группе блочных.
func (s *Schema) IsBlock(name string) bool {
	return s.nodes[name].Group == "block"
}

// NodeForTag возвращает имя ноды, которая строится из HTML тега.
func (s *Schema) NodeForTag(tag string) (string, bool) {
	name, ok := s.tagNodes[tag]
	return name, ok
}

// MarksForTag возвращает имена марок, которые строятся из HTML тега.
func (s *Schema) MarksForTag(tag string) []string {
	return s.tagMarks[tag]
}

// Command возвращает команду по имени.
func (s *Schema) Command(name string) (Command, bool) {
	cmd, ok := s.commands[name]
	return cmd, ok
}

// Commands возвращает отсортированный список имен команд схемы.
func (s *Schema) Commands() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Extensions возвращает имена расширений в порядке подключения.
func (s *Schema) Extensions() []string {
	return slices.Clone(s.extensions)
}

// Marks возвращает имена марок в порядке подключения расширений.
func (s *Schema) Marks() []string {
	return slices.Clone(s.markOrder)
}

// Allows проверяет, что нода документа относится к типу, объявленному в схеме.
func (s *Schema) Allows(n any) bool {
	node, ok := n.(interface{ NodeName() string })
	if !ok {
		return false
	}
	return s.HasNode(node.NodeName())
}
