package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleBoldTargets(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		want string
	}{
		{"range", RangeOf(0, 2), "<p><strong>a</strong></p><p><strong>b</strong></p>"},
		{"cursor before block", CursorAt(0), "<p><strong>a</strong></p><p>b</p>"},
		{"cursor at end", CursorAt(2), "<p>a</p><p><strong>b</strong></p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState(t, `<p>a</p><p>b</p>`, WithSelection(tt.sel))
			require.NoError(t, s.Exec("toggleBold", nil))
			assert.Equal(t, tt.want, s.HTML())
		})
	}
}

func TestToggleBoldTwice(t *testing.T) {
	s := newState(t, `<p>a</p><p><b>b</b></p>`, WithSelection(RangeOf(0, 2)))

	require.NoError(t, s.Exec("toggleBold", nil))
	assert.True(t, s.IsActive("bold", nil))

	require.NoError(t, s.Exec("toggleBold", nil))
	assert.False(t, s.IsActive("bold", nil))
	assert.Equal(t, "<p>a</p><p>b</p>", s.HTML())
}

func TestToggleHeading(t *testing.T) {
	s := newState(t, `<p>a</p>`)

	require.NoError(t, s.Exec("toggleHeading", Args{"level": 2}))
	assert.Equal(t, "<h2>a</h2>", s.HTML())
	assert.True(t, s.IsActive("heading", Args{"level": 2}))
	assert.False(t, s.IsActive("heading", Args{"level": 3}))

	require.NoError(t, s.Exec("toggleHeading", Args{"level": 2}))
	assert.Equal(t, "<p>a</p>", s.HTML())
	assert.True(t, s.IsActive("paragraph", nil))
}

func TestSetTextAlign(t *testing.T) {
	s := newState(t, `<p>a</p>`)

	assert.False(t, s.Can("setTextAlign", Args{"alignment": "diagonal"}))
	assert.ErrorIs(t, s.Exec("setTextAlign", Args{"alignment": "diagonal"}), ErrNotApplicable)

	require.NoError(t, s.Exec("setTextAlign", Args{"alignment": "center"}))
	assert.True(t, s.IsActive("", Args{"textAlign": "center"}))
	assert.Equal(t, `<p style="text-align: center">a</p>`, s.HTML())

	require.NoError(t, s.Exec("unsetTextAlign", nil))
	assert.Equal(t, `<p>a</p>`, s.HTML())
}

func TestCanDoesNotMutate(t *testing.T) {
	s := newState(t, `<p>a</p>`)

	assert.True(t, s.Can("toggleBold", nil))
	assert.True(t, s.Chain().Command("toggleBold", nil).Command("setColor", Args{"color": "#ff0000"}).Can())

	assert.Equal(t, uint64(0), s.Version())
	assert.Equal(t, "<p>a</p>", s.HTML())
	assert.False(t, s.Can("undo", nil))
}

func TestUnknownCommand(t *testing.T) {
	s := newState(t, `<p>a</p>`)
	assert.ErrorIs(t, s.Exec("toggleSpoiler", nil), ErrUnknownCommand)
}

func TestChainIsAtomic(t *testing.T) {
	s := newState(t, `<p>a</p>`)

	err := s.Chain().
		Command("toggleBold", nil).
		Command("setLink", Args{"href": ""}).
		Run()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "<p>a</p>", s.HTML())

	require.NoError(t, s.Chain().
		Command("toggleBold", nil).
		Command("setColor", Args{"color": "#ff0000"}).
		Run())
	assert.Equal(t, `<p><strong><span style="color: #ff0000">a</span></strong></p>`, s.HTML())

	// одна цепочка - одна запись истории
	require.True(t, s.Undo())
	assert.Equal(t, "<p>a</p>", s.HTML())
	assert.False(t, s.CanUndo())
}

func TestUndoCommand(t *testing.T) {
	s := newState(t, `<p>a</p>`)

	assert.ErrorIs(t, s.Exec("undo", nil), ErrNotApplicable)

	require.NoError(t, s.Exec("toggleItalic", nil))
	require.NoError(t, s.Exec("undo", nil))
	assert.Equal(t, "<p>a</p>", s.HTML())
	require.NoError(t, s.Exec("redo", nil))
	assert.Equal(t, "<p><em>a</em></p>", s.HTML())

	assert.ErrorIs(t, s.Chain().Command("undo", nil).Command("toggleBold", nil).Run(), ErrNotApplicable)
}

func TestSetLink(t *testing.T) {
	s := newState(t, `<p>a</p>`)

	require.NoError(t, s.Exec("setLink", Args{"href": "https://e.com"}))
	assert.True(t, s.IsActive("link", nil))
	assert.Equal(t, "https://e.com", s.ActiveFormatting().Link)

	require.NoError(t, s.Exec("unsetLink", nil))
	assert.False(t, s.IsActive("link", nil))
}

func TestSetImage(t *testing.T) {
	s := newState(t, `<p>a</p>`)

	assert.ErrorIs(t, s.Exec("setImage", Args{"src": ""}), ErrInvalidArgument)
	assert.ErrorIs(t, s.Exec("setImage", Args{"src": "a.png", "width": "huge"}), ErrInvalidArgument)

	require.NoError(t, s.Exec("setImage", Args{"src": "a.png", "alt": "pic"}))
	node, ok := s.Node(0)
	require.True(t, ok)
	img := node.(*Image)
	assert.Equal(t, "a.png", img.Src)
	assert.Equal(t, "300px", img.Width)
	assert.Equal(t, "auto", img.Height)
	assert.Equal(t, CursorAt(1), s.Selection())
}

func TestSetYoutubeVideo(t *testing.T) {
	s := newState(t, `<p>a</p>`, WithSelection(CursorAt(1)))

	assert.ErrorIs(t, s.Exec("setYoutubeVideo", Args{"src": "https://example.com/v"}), ErrInvalidArgument)

	require.NoError(t, s.Exec("setYoutubeVideo", Args{"src": "https://youtu.be/dQw4w9WgXcQ"}))
	node, ok := s.Node(1)
	require.True(t, ok)
	v := node.(*Video)
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", v.Src)
	assert.Equal(t, "100%", v.Width)
	assert.Equal(t, "auto", v.Height)
}

func TestTableCommands(t *testing.T) {
	s := newState(t, `<p>a</p>`)

	require.NoError(t, s.Exec("insertTable", nil))
	require.NoError(t, s.SetSelection(CursorAt(0)))
	assert.True(t, s.IsActive("table", nil))

	table := func() *Table {
		node, ok := s.Node(0)
		require.True(t, ok)
		return node.(*Table)
	}
	require.Len(t, table().Rows, 3)
	assert.Equal(t, 3, table().Cols())
	assert.True(t, table().Rows[0][0].Header)

	require.NoError(t, s.Exec("addRowAfter", Args{"row": 0}))
	assert.Len(t, table().Rows, 4)
	assert.False(t, table().Rows[1][0].Header)

	require.NoError(t, s.Exec("addColumnBefore", Args{"col": 0}))
	assert.Equal(t, 4, table().Cols())
	assert.True(t, table().Rows[0][0].Header)

	require.NoError(t, s.Exec("deleteColumn", Args{"col": 0}))
	require.NoError(t, s.Exec("deleteColumn", Args{"col": 0}))
	assert.Equal(t, 2, table().Cols())

	require.NoError(t, s.Exec("setCellBackground", Args{"row": 1, "col": 0, "color": "#ff0000"}))
	assert.Equal(t, "#ff0000", table().Rows[1][0].BackgroundColor)
	assert.ErrorIs(t, s.Exec("setCellBackground", Args{"row": 9, "col": 0}), ErrInvalidArgument)
	assert.ErrorIs(t, s.Exec("setCellBackground", Args{"row": 1, "col": 0, "color": "nope"}), ErrInvalidArgument)

	require.NoError(t, s.Exec("toggleHeaderRow", nil))
	assert.False(t, table().Rows[0][0].Header)

	require.NoError(t, s.Exec("deleteRow", Args{"row": 3}))
	assert.Len(t, table().Rows, 3)

	require.NoError(t, s.Exec("deleteTable", nil))
	assert.Equal(t, "<p>a</p>", s.HTML())
	assert.False(t, s.Can("deleteTable", nil))
}

func TestToggleLists(t *testing.T) {
	s := newState(t, `<p>a</p><p>b</p>`, WithSelection(RangeOf(0, 2)))

	require.NoError(t, s.Exec("toggleBulletList", nil))
	assert.Equal(t, "<ul><li><p>a</p></li><li><p>b</p></li></ul>", s.HTML())
	assert.True(t, s.IsActive("bulletList", nil))

	require.NoError(t, s.Exec("toggleOrderedList", nil))
	assert.Equal(t, "<ol><li><p>a</p></li><li><p>b</p></li></ol>", s.HTML())

	require.NoError(t, s.Exec("toggleOrderedList", nil))
	assert.Equal(t, "<p>a</p><p>b</p>", s.HTML())
}

func TestToggleBlockquoteAndClearNodes(t *testing.T) {
	s := newState(t, `<h1>t</h1><p>a</p>`, WithSelection(RangeOf(0, 2)))

	require.NoError(t, s.Exec("toggleBlockquote", nil))
	assert.Equal(t, "<blockquote><h1>t</h1><p>a</p></blockquote>", s.HTML())

	require.NoError(t, s.Exec("clearNodes", nil))
	assert.Equal(t, "<p>t</p><p>a</p>", s.HTML())
}

func TestInsertContent(t *testing.T) {
	s := newState(t, `<p>a</p>`, WithSelection(CursorAt(1)))

	assert.ErrorIs(t, s.Exec("insertContent", Args{"html": "  "}), ErrInvalidArgument)
	require.NoError(t, s.Exec("insertContent", Args{"html": "<p>b</p><hr>"}))
	assert.Equal(t, "<p>a</p><p>b</p><hr>", s.HTML())
}

func TestTextStyleCommands(t *testing.T) {
	s := newState(t, `<p>a</p>`)

	require.NoError(t, s.Exec("setFontSize", Args{"fontSize": "18px"}))
	require.NoError(t, s.Exec("setFontFamily", Args{"fontFamily": "Arial"}))
	require.NoError(t, s.Exec("setHighlight", nil))

	af := s.ActiveFormatting()
	assert.Equal(t, 18, af.FontSize)
	assert.Equal(t, "Arial", af.FontFamily)
	assert.True(t, af.Marks["highlight"])
	assert.True(t, af.Marks["textStyle"])

	require.NoError(t, s.Exec("toggleHighlight", nil))
	assert.False(t, s.IsActive("highlight", nil))

	require.NoError(t, s.Exec("unsetAllMarks", nil))
	assert.Equal(t, "<p>a</p>", s.HTML())

	assert.ErrorIs(t, s.Exec("setFontSize", Args{"fontSize": 0}), ErrInvalidArgument)
	assert.ErrorIs(t, s.Exec("setColor", Args{"color": "nope"}), ErrInvalidArgument)
}
