package editor

import (
	"github.com/aisa-it/richedit/internal/richedit/editor/edtypes"
)

// Реэкспорт типов из edtypes
type (
	TextAlign      = edtypes.TextAlign
	Document       = edtypes.Document
	Paragraph      = edtypes.Paragraph
	Heading        = edtypes.Heading
	Text           = edtypes.Text
	Code           = edtypes.Code
	ListElement    = edtypes.ListElement
	List           = edtypes.List
	Quote          = edtypes.Quote
	HorizontalRule = edtypes.HorizontalRule
	Image          = edtypes.Image
	Video          = edtypes.Video
	Table          = edtypes.Table
	TableCell      = edtypes.TableCell
	Color          = edtypes.Color
	HardBreak      = edtypes.HardBreak
)

// Реэкспорт констант
const (
	LeftAlign    = edtypes.LeftAlign
	CenterAlign  = edtypes.CenterAlign
	RightAlign   = edtypes.RightAlign
	JustifyAlign = edtypes.JustifyAlign
)

// Реэкспорт функций
var (
	ParseColor     = edtypes.ParseColor
	ParseTextAlign = edtypes.ParseTextAlign
	IsCSSLength    = edtypes.IsCSSLength
	CloneBlocks    = edtypes.CloneBlocks
	CloneNode      = edtypes.CloneNode
)
