package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"github.com/aisa-it/richedit/internal/richedit/editor"
	"github.com/aisa-it/richedit/internal/richedit/media"
)

const (
	pdfFont     = "Helvetica"
	pdfMonoFont = "Courier"
	defaultPx   = 14
)

type PDFOptions struct {
	Title string

	// Без загрузчика изображения заменяются подписью.
	Images *ImageLoader
}

type pdfWriter struct {
	ctx    context.Context
	pdf    *fpdf.Fpdf
	images *ImageLoader
	tr     func(string) string

	defaultMargins Margins
}

type Margins struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

func (m *Margins) GetMargins(pdf fpdf.Pdf) {
	m.Left, m.Top, m.Right, m.Bottom = pdf.GetMargins()
}

// PDF отрисовывает документ в PDF формата A4. Используются встроенные шрифты,
// символы вне cp1252 не выводятся.
func PDF(ctx context.Context, doc *editor.Document, out io.Writer, opts PDFOptions) error {
	pdf := fpdf.New("P", "mm", "A4", "") // 210*297 mm

	w := pdfWriter{
		ctx:    ctx,
		pdf:    pdf,
		images: opts.Images,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
	}
	w.defaultMargins.GetMargins(w.pdf)

	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}

	pdf.AddPage()
	if opts.Title != "" {
		pdf.SetFont(pdfFont, "B", 20)
		pdf.SetTextColor(0, 0, 0)
		w.write(opts.Title)
		pdf.Ln(12)
	}

	if doc != nil {
		w.writeBlocks(doc.Elements)
	}

	return pdf.Output(out)
}

func (w *pdfWriter) writeBlocks(blocks []any) {
	for _, rawElement := range blocks {
		switch el := rawElement.(type) {
		case *editor.Paragraph:
			w.writeParagraph(el.Content, el.Align, 0)
		case *editor.Heading:
			w.writeParagraph(el.Content, el.Align, headingPx(el.Level))
			w.pdf.Ln(1)
		case *editor.Quote:
			w.pdf.Ln(2)
			y1 := w.pdf.GetY()
			l, _, _, _ := w.pdf.GetMargins()
			w.pdf.SetLeftMargin(l + 3)
			w.pdf.SetX(l + 3)
			w.writeBlocks(el.Content)
			w.pdf.SetLeftMargin(l)

			w.pdf.SetLineWidth(0.5)
			w.pdf.SetDrawColor(74, 71, 82)
			w.pdf.Line(l+1, y1, l+1, w.pdf.GetY())
			w.pdf.Ln(2)
		case *editor.Code:
			w.writeCode(el)
		case *editor.List:
			w.writeList(el)
		case *editor.HorizontalRule:
			l, _, r, _ := w.pdf.GetMargins()
			pW, _ := w.pdf.GetPageSize()
			w.pdf.Ln(2)
			w.pdf.SetLineWidth(0.3)
			w.pdf.SetDrawColor(160, 160, 160)
			w.pdf.Line(l, w.pdf.GetY(), pW-r, w.pdf.GetY())
			w.pdf.Ln(4)
		case *editor.Image:
			w.writeEditorImage(el)
		case *editor.Video:
			w.setFont(editor.Text{Underlined: true}, 0)
			w.pdf.SetTextColor(0, 0, 238)
			w.write(el.Src, el.Src)
			w.pdf.Ln(-1)
		case *editor.Table:
			w.writeEditorTable(el)
		}
	}
}

func (w *pdfWriter) writeList(list *editor.List) {
	l, _, _, _ := w.pdf.GetMargins()
	start := max(list.Start, 1)
	for i, item := range list.Elements {
		w.pdf.SetLeftMargin(l)
		w.pdf.SetX(l + 3)
		w.setFont(editor.Text{}, 0)
		w.pdf.SetTextColor(0, 0, 0)
		if list.Numbered {
			w.write(strconv.Itoa(start+i) + ".")
		} else {
			w.write("-")
		}

		w.pdf.SetLeftMargin(l + 8)
		w.pdf.SetX(l + 8)
		w.writeBlocks(item.Content)
	}
	w.pdf.SetLeftMargin(l)
}

func (w *pdfWriter) writeParagraph(content []any, align editor.TextAlign, px int) {
	if align != editor.LeftAlign && !hasLinks(content) {
		w.writeAlignedParagraph(content, align, px)
		return
	}
	for _, item := range content {
		switch tt := item.(type) {
		case editor.Text:
			w.writeEditorText(tt, px)
		case *editor.HardBreak:
			w.pdf.Ln(-1)
		}
	}
	w.pdf.Ln(-1)
}

// writeAlignedParagraph выводит абзац одним блоком с оформлением первого фрагмента,
// так как построчный Write не поддерживает выравнивание.
func (w *pdfWriter) writeAlignedParagraph(content []any, align editor.TextAlign, px int) {
	var first *editor.Text
	var b strings.Builder
	for _, item := range content {
		switch tt := item.(type) {
		case editor.Text:
			if first == nil {
				first = &tt
			}
			b.WriteString(tt.Content)
		case *editor.HardBreak:
			b.WriteString("\n")
		}
	}
	if first == nil {
		w.pdf.Ln(-1)
		return
	}
	w.prepareEditorText(first, px)
	_, s := w.pdf.GetFontSize()
	w.pdf.MultiCell(0, s+0.1, w.tr(cleanUnsupportedSymbols(b.String())), "", pdfAlign(align), false)
}

func (w *pdfWriter) writeCode(code *editor.Code) {
	w.pdf.Ln(1)
	w.pdf.SetFont(pdfMonoFont, "", 10)
	w.pdf.SetTextColor(0, 0, 0)
	w.SetHexFillColor("#f0f0f0")
	_, s := w.pdf.GetFontSize()
	w.pdf.MultiCell(0, s+1, w.tr(cleanUnsupportedSymbols(code.Content)), "", "L", true)
	w.pdf.Ln(1)
}

func (w *pdfWriter) writeEditorText(t editor.Text, px int) float64 {
	w.prepareEditorText(&t, px)
	_, s := w.pdf.GetFontSize()

	if t.BgColor != nil {
		x := w.pdf.GetX()
		w.pdf.SetX(x + w.pdf.GetCellMargin())
		w.pdf.CellFormat(w.pdf.GetStringWidth(w.tr(t.Content)), s+0.1, "", "", 0, "L", true, 0, "")
		w.pdf.SetX(x)
	}

	if t.URL != nil {
		return w.write(t.Content, t.URL.String())
	}
	return w.write(t.Content)
}

func (w *pdfWriter) prepareEditorText(t *editor.Text, px int) {
	t.Content = cleanUnsupportedSymbols(t.Content)
	if px > 0 {
		t.Strong = true
		t.Size = px
	}
	w.setFont(*t, t.Size)

	if t.Color != nil {
		w.pdf.SetTextColor(int(t.Color.R), int(t.Color.G), int(t.Color.B))
	} else if t.URL != nil {
		w.pdf.SetTextColor(0, 0, 238)
	} else {
		w.pdf.SetTextColor(0, 0, 0)
	}

	if t.BgColor != nil {
		w.pdf.SetFillColor(int(t.BgColor.R), int(t.BgColor.G), int(t.BgColor.B))
	}
}

func (w *pdfWriter) setFont(t editor.Text, px int) {
	styleStr := ""
	if t.Strong {
		styleStr += "B"
	}
	if t.Italic {
		styleStr += "I"
	}
	if t.Strikethrough {
		styleStr += "S"
	}
	if t.Underlined || t.URL != nil {
		styleStr += "U"
	}
	if px == 0 {
		px = defaultPx
	}
	family := pdfFont
	if t.Code {
		family = pdfMonoFont
	}
	w.pdf.SetFont(family, styleStr, w.PxToUnit(px)*3)
}

func (w *pdfWriter) calcEditorText(t *editor.Text) float64 {
	w.prepareEditorText(t, 0)
	return w.pdf.GetStringWidth(w.tr(t.Content))
}

func (w *pdfWriter) write(text string, link ...string) float64 {
	text = w.tr(text)
	_, s := w.pdf.GetFontSize()
	s += 0.1
	if len(link) > 0 {
		w.pdf.WriteLinkString(s, text, link[0])
		return 0
	}
	w.pdf.WriteLinkString(s, text, "")
	return w.pdf.GetStringWidth(text)
}

func cleanUnsupportedSymbols(text string) string {
	return strings.Map(func(r rune) rune {
		if r >= 65536 {
			return -1
		}
		return r
	}, text)
}

// registerImage загружает изображение один раз и регистрирует его под адресом src.
func (w *pdfWriter) registerImage(src string) *fpdf.ImageInfoType {
	if info := w.pdf.GetImageInfo(src); info != nil {
		return info
	}
	if w.images == nil || src == "" {
		return nil
	}

	data, contentType, err := w.images.Load(w.ctx, src)
	if err != nil {
		slog.Warn("Load image for pdf", "src", truncate(src, 64), "err", err)
		return nil
	}

	options := fpdf.ImageOptions{ImageType: w.pdf.ImageTypeFromMime(contentType), ReadDpi: true}

	// unsupported image type
	if options.ImageType == "" {
		w.pdf.ClearError()
		return nil
	}

	info := w.pdf.RegisterImageOptionsReader(src, options, bytes.NewReader(data))
	if !w.pdf.Ok() {
		slog.Warn("Register image for pdf", "src", truncate(src, 64), "err", w.pdf.Error())
		w.pdf.ClearError()
		return nil
	}
	return info
}

func (w *pdfWriter) writeEditorImage(img *editor.Image) {
	info := w.registerImage(img.Src)
	if info == nil {
		w.setFont(editor.Text{Italic: true}, 0)
		w.pdf.SetTextColor(120, 120, 120)
		alt := img.Alt
		if alt == "" {
			alt = "image"
		}
		w.write("[" + alt + "]")
		w.pdf.Ln(-1)
		return
	}

	pW, _ := w.pdf.GetPageSize()
	l, _, r, _ := w.pdf.GetMargins()
	maxWidth := pW - l - r

	width := maxWidth
	if px, ok := media.Pixels(img.Width); ok {
		width = min(w.PxToUnit(int(px)), maxWidth)
	} else if pct, ok := percent(img.Width); ok {
		width = maxWidth * pct / 100
	}

	x := l
	switch img.Align {
	case editor.CenterAlign:
		x = l + (maxWidth-width)/2
	case editor.RightAlign:
		x = l + maxWidth - width
	}

	link := ""
	if strings.HasPrefix(img.Src, "http") {
		link = img.Src
	}
	w.pdf.ImageOptions(img.Src, x, -1, width, 0, true, fpdf.ImageOptions{ReadDpi: true}, 0, link)
}

func (w *pdfWriter) writeEditorTable(table *editor.Table) {
	const heightOffset = 2

	if len(table.Rows) == 0 {
		return
	}

	sizes := struct {
		colWidth  []float64
		rowHeight []float64
	}{
		colWidth:  w.getTableWidthUnits(table),
		rowHeight: make([]float64, len(table.Rows)),
	}

	for i, row := range table.Rows {
		col := 0
		for _, cell := range row {
			cellWidth := spanWidth(sizes.colWidth, col, cell.ColSpan)
			col += max(cell.ColSpan, 1)

			height := 0.0
			for _, text := range cellTexts(cell.Content) {
				contentWidth := 0.0
				for _, t := range text {
					contentWidth += w.calcEditorText(&t)
				}
				lines := 1
				if contentWidth > cellWidth {
					lines = int(contentWidth/cellWidth) + 1
				}
				_, fz := w.pdf.GetFontSize()
				height += fz * float64(lines)
			}
			sizes.rowHeight[i] = max(sizes.rowHeight[i], height)
		}
	}

	for i, row := range table.Rows {
		col := 0
		for _, cell := range row {
			cellWidth := spanWidth(sizes.colWidth, col, cell.ColSpan)
			col += max(cell.ColSpan, 1)

			x, y := w.pdf.GetXY()

			fill := cell.Header
			w.SetHexFillColor("#e5edfa")
			if cell.BackgroundColor != "" {
				if c, err := editor.ParseColor(cell.BackgroundColor); err == nil {
					w.pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
					fill = true
				}
			}
			w.pdf.CellFormat(cellWidth, sizes.rowHeight[i]+heightOffset, "", "1", 0, "LM", fill, 0, "")

			x1, y1 := w.pdf.GetXY()
			w.pdf.SetXY(x, y+heightOffset/2)

			l, _, r, _ := w.pdf.GetMargins()
			pW, _ := w.pdf.GetPageSize()
			w.pdf.SetRightMargin(pW - (w.pdf.GetX() + cellWidth))
			w.pdf.SetLeftMargin(w.pdf.GetX())

			texts := cellTexts(cell.Content)
			for pI, text := range texts {
				for _, t := range text {
					if cell.Header {
						t.Strong = true
					}
					w.writeEditorText(t, 0)
				}
				if pI != len(texts)-1 {
					w.pdf.Ln(-1)
					w.pdf.SetX(x)
				}
			}
			w.pdf.SetRightMargin(r)
			w.pdf.SetLeftMargin(l)
			w.pdf.SetXY(x1, y1)
		}
		w.pdf.Ln(sizes.rowHeight[i] + heightOffset)
	}

	_, fz := w.pdf.GetFontSize()
	w.pdf.Ln(fz)
	w.resetMargins()
}

// cellTexts собирает текст ячейки по абзацам.
func cellTexts(blocks []any) [][]editor.Text {
	var res [][]editor.Text
	for _, block := range blocks {
		var content []any
		switch e := block.(type) {
		case *editor.Paragraph:
			content = e.Content
		case *editor.Heading:
			content = e.Content
		case *editor.Code:
			res = append(res, []editor.Text{{Content: e.Content, Code: true}})
			continue
		case *editor.List:
			for _, item := range e.Elements {
				res = append(res, cellTexts(item.Content)...)
			}
			continue
		case *editor.Quote:
			res = append(res, cellTexts(e.Content)...)
			continue
		}
		var line []editor.Text
		for _, item := range content {
			if t, ok := item.(editor.Text); ok {
				line = append(line, t)
			}
		}
		res = append(res, line)
	}
	return res
}

func spanWidth(widths []float64, col, span int) float64 {
	res := 0.0
	for i := col; i < col+max(span, 1) && i < len(widths); i++ {
		res += widths[i]
	}
	return res
}

func (w *pdfWriter) PxToUnit(px int) float64 {
	return w.pdf.PointConvert(float64(px) * 0.75)
}

func (w *pdfWriter) SetHexFillColor(hex string) {
	hex = strings.TrimPrefix(hex, "#")
	values, err := strconv.ParseUint(string(hex), 16, 32)
	if err != nil {
		return
	}
	w.pdf.SetFillColor(
		int(uint8(values>>16)),
		int(uint8((values>>8)&0xFF)),
		int(uint8(values&0xFF)),
	)
}

// getTableWidthUnits распределяет ширину страницы по колонкам пропорционально colwidth
// первой строки. Колонки без ширины делят остаток поровну.
func (w *pdfWriter) getTableWidthUnits(t *editor.Table) []float64 {
	cols := t.Cols()
	px := make([]int, cols)
	col := 0
	for _, cell := range t.Rows[0] {
		for i := range max(cell.ColSpan, 1) {
			if i < len(cell.ColWidth) && col < cols {
				px[col] = cell.ColWidth[i]
			}
			col++
		}
	}

	sum := 0
	autoColCount := 0
	for _, s := range px {
		sum += s
		if s == 0 {
			autoColCount++
		}
	}

	l, _, r, _ := w.pdf.GetMargins()
	pW, _ := w.pdf.GetPageSize()
	width := pW - l - r

	res := make([]float64, cols)
	if sum == 0 {
		for i := range res {
			res[i] = width / float64(cols)
		}
		return res
	}

	freeColSize := 0
	if autoColCount > 0 {
		freeColSize = max(sum/(cols-autoColCount), 1)
	}
	total := sum + freeColSize*autoColCount
	for i, s := range px {
		if s == 0 {
			s = freeColSize
		}
		res[i] = width / float64(total) * float64(s)
	}
	return res
}

func (w *pdfWriter) resetMargins() {
	w.pdf.SetMargins(w.defaultMargins.Left, w.defaultMargins.Top, w.defaultMargins.Right)
}

func hasLinks(content []any) bool {
	for _, item := range content {
		if t, ok := item.(editor.Text); ok && t.URL != nil {
			return true
		}
	}
	return false
}

func headingPx(level int) int {
	switch level {
	case 1:
		return 28
	case 2:
		return 24
	case 3:
		return 20
	case 4:
		return 18
	}
	return 16
}

func pdfAlign(a editor.TextAlign) string {
	switch a {
	case editor.CenterAlign:
		return "C"
	case editor.RightAlign:
		return "R"
	case editor.JustifyAlign:
		return "J"
	}
	return "L"
}

func percent(length string) (float64, bool) {
	v, ok := strings.CutSuffix(length, "%")
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || f > 100 {
		return 0, false
	}
	return f, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
