package editor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, raw string) *ParseResult {
	t.Helper()
	res, err := ParseHTML(strings.NewReader(raw), DefaultSchema())
	require.NoError(t, err)
	return res
}

func TestParseHTMLParagraph(t *testing.T) {
	res := parse(t, `<p>Hello <strong>world</strong></p>`)
	require.Len(t, res.Fragment.Content, 1)

	p, ok := res.Fragment.Content[0].(*Paragraph)
	require.True(t, ok)
	require.Len(t, p.Content, 2)
	assert.Equal(t, "Hello ", p.Content[0].(Text).Content)
	assert.True(t, p.Content[1].(Text).Strong)
	assert.Empty(t, res.Warnings)
}

func TestParseHTMLLiftsImages(t *testing.T) {
	res := parse(t, `<p>a<img src="x.png">b</p>`)
	require.Len(t, res.Fragment.Content, 3)

	img, ok := res.Fragment.Content[1].(*Image)
	require.True(t, ok)
	assert.Equal(t, "x.png", img.Src)
	assert.Equal(t, "300px", img.Width)
	assert.Equal(t, "auto", img.Height)
}

func TestParseHTMLImageSize(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantWidth  string
		wantHeight string
	}{
		{"attributes", `<img src="a.png" width="450" height="300">`, "450px", "300px"},
		{"style", `<img src="a.png" style="width: 50%">`, "50%", "auto"},
		{"invalid", `<img src="a.png" width="calc(1px)">`, "300px", "auto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, tt.raw)
			require.Len(t, res.Fragment.Content, 1)
			img := res.Fragment.Content[0].(*Image)
			assert.Equal(t, tt.wantWidth, img.Width)
			assert.Equal(t, tt.wantHeight, img.Height)
		})
	}
}

func TestParseHTMLIgnoresScripts(t *testing.T) {
	res := parse(t, `<script>alert(1)</script><style>p{}</style><p>ok</p>`)
	require.Len(t, res.Fragment.Content, 1)
	assert.Equal(t, "<p>ok</p>", RenderFragment(res.Fragment))
}

func TestParseHTMLHeadingInWrapper(t *testing.T) {
	res := parse(t, `<div><section><h2 style="text-align: center">T</h2></section></div>`)
	require.Len(t, res.Fragment.Content, 1)

	h, ok := res.Fragment.Content[0].(*Heading)
	require.True(t, ok)
	assert.Equal(t, 2, h.Level)
	assert.Equal(t, CenterAlign, h.Align)
}

func TestParseHTMLRespectsSchema(t *testing.T) {
	schema := MustSchema(StarterKit())

	res, err := ParseHTML(strings.NewReader(`<p><u>x</u><img src="a.png"></p>`), schema)
	require.NoError(t, err)
	require.Len(t, res.Fragment.Content, 1)

	p := res.Fragment.Content[0].(*Paragraph)
	require.Len(t, p.Content, 1)
	assert.False(t, p.Content[0].(Text).Underlined)
	assert.Contains(t, res.Warnings, ParseWarning{Tag: "img", Reason: "unsupported node dropped"})
}

func TestParseHTMLVideo(t *testing.T) {
	res := parse(t, `<iframe src="https://youtu.be/dQw4w9WgXcQ"></iframe><iframe src="https://player.vimeo.com/video/1"></iframe>`)
	require.Len(t, res.Fragment.Content, 1)

	v, ok := res.Fragment.Content[0].(*Video)
	require.True(t, ok)
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", v.Src)
	assert.Equal(t, "100%", v.Width)
	assert.Equal(t, "auto", v.Height)
	assert.Contains(t, res.Warnings, ParseWarning{Tag: "iframe", Reason: "unsupported embed dropped"})
}

func TestParseHTMLTable(t *testing.T) {
	res := parse(t, `<table><tr><th colspan="2">H</th></tr><tr><td data-background-color="#fafad2">a</td><td style="background-color: #ff0000">b</td></tr></table>`)
	require.Len(t, res.Fragment.Content, 1)

	table, ok := res.Fragment.Content[0].(*Table)
	require.True(t, ok)
	require.Len(t, table.Rows, 2)
	assert.True(t, table.Rows[0][0].Header)
	assert.Equal(t, 2, table.Rows[0][0].ColSpan)
	assert.Equal(t, "#fafad2", table.Rows[1][0].BackgroundColor)
	assert.Equal(t, "#ff0000", table.Rows[1][1].BackgroundColor)
	assert.Equal(t, 2, table.Cols())
}

func TestParseHTMLNestedList(t *testing.T) {
	res := parse(t, `<ol start="3"><li>a<ul><li>b</li></ul></li></ol>`)
	require.Len(t, res.Fragment.Content, 1)

	list := res.Fragment.Content[0].(*List)
	assert.True(t, list.Numbered)
	assert.Equal(t, 3, list.Start)
	require.Len(t, list.Elements, 1)
	require.Len(t, list.Elements[0].Content, 2)

	nested, ok := list.Elements[0].Content[1].(*List)
	require.True(t, ok)
	assert.False(t, nested.Numbered)
}

func TestParseHTMLCodeBlock(t *testing.T) {
	res := parse(t, `<pre><code class="language-go">x := 1</code></pre>`)
	require.Len(t, res.Fragment.Content, 1)

	code := res.Fragment.Content[0].(*Code)
	assert.Equal(t, "x := 1", code.Content)
	assert.Equal(t, "go", code.Language)
}

func TestParseHTMLTextStyles(t *testing.T) {
	res := parse(t, `<p><mark>h</mark><span style="color: #ff0000; font-size: 12pt; font-family: 'Arial'">r</span><a href="https://e.com">l</a></p>`)
	require.Len(t, res.Fragment.Content, 1)

	content := res.Fragment.Content[0].(*Paragraph).Content
	require.Len(t, content, 3)

	highlight := content[0].(Text)
	require.NotNil(t, highlight.BgColor)
	assert.Equal(t, "#ffff00", highlight.BgColor.Hex())

	styled := content[1].(Text)
	require.NotNil(t, styled.Color)
	assert.Equal(t, "#ff0000", styled.Color.Hex())
	assert.Equal(t, 16, styled.Size)
	assert.Equal(t, "Arial", styled.FontFamily)

	link := content[2].(Text)
	require.NotNil(t, link.URL)
	assert.Equal(t, "https://e.com", link.URL.String())
}

func TestParseHTMLEmpty(t *testing.T) {
	res := parse(t, ``)
	assert.NotNil(t, res.Fragment.Content)
	assert.Empty(t, res.Fragment.Content)
}

func TestParseDocumentRenderFixpoint(t *testing.T) {
	raw := `<h2 style="text-align: center">T</h2><p>a <strong>b</strong></p><img src="a.png" width="450px" height="300px"><ul><li><p>x</p></li></ul><blockquote><p>q</p></blockquote><hr>`

	doc, err := ParseDocument(strings.NewReader(raw))
	require.NoError(t, err)

	first := RenderHTML(doc)
	again, err := ParseDocument(strings.NewReader(first))
	require.NoError(t, err)

	assert.Equal(t, first, RenderHTML(again))
	assert.Equal(t, raw, first)
}
