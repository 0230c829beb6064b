package richedit

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()
	require.NotNil(t, v)

	t.Run("handle", func(t *testing.T) {
		for _, h := range []string{"right", "bottom-right", "bottomLeft", "top"} {
			assert.NoError(t, v.Validate(startResizeRequest{Handle: h}), h)
		}
		assert.Error(t, v.Validate(startResizeRequest{Handle: "diagonal"}))
		assert.Error(t, v.Validate(startResizeRequest{}))
		assert.Error(t, v.Validate(startResizeRequest{Handle: "right", Width: -1}))
	})

	t.Run("css length", func(t *testing.T) {
		assert.NoError(t, v.Validate(mediaAttrsRequest{Width: "450px", Height: "auto"}))
		assert.NoError(t, v.Validate(mediaAttrsRequest{Width: "100%"}))
		assert.NoError(t, v.Validate(mediaAttrsRequest{}))
		assert.Error(t, v.Validate(mediaAttrsRequest{Width: "450"}))
		assert.Error(t, v.Validate(mediaAttrsRequest{Height: "calc(1px)"}))
	})

	t.Run("align", func(t *testing.T) {
		assert.NoError(t, v.Validate(mediaAttrsRequest{Align: "justify"}))
		assert.Error(t, v.Validate(mediaAttrsRequest{Align: "middle"}))
	})

	t.Run("video url", func(t *testing.T) {
		assert.NoError(t, v.Validate(normalizeRequest{URL: "https://youtu.be/dQw4w9WgXcQ"}))
		assert.Error(t, v.Validate(normalizeRequest{URL: "https://vimeo.com/1"}))
		assert.Error(t, v.Validate(normalizeRequest{}))
	})

	t.Run("commands", func(t *testing.T) {
		ok := commandsRequest{Commands: []commandCall{{Name: "toggleBold"}, {Name: "undo"}}}
		assert.NoError(t, v.Validate(ok))

		err := v.Validate(commandsRequest{Commands: []commandCall{{Name: "toggleBold"}, {Name: "explode"}}})
		require.Error(t, err)
		ve, isVE := err.(validator.ValidationErrors)
		require.True(t, isVE)
		assert.Equal(t, "command", ve[0].Tag())

		assert.Error(t, v.Validate(commandsRequest{}))
	})

	t.Run("export format", func(t *testing.T) {
		for _, f := range exportFormats {
			assert.NoError(t, v.Validate(exportRequest{Format: f}), f)
		}
		assert.Error(t, v.Validate(exportRequest{Format: "docx"}))
	})
}

func TestValidationError(t *testing.T) {
	v := NewRequestValidator()
	err := v.Validate(sanitizeRequest{Policy: "strict"})
	require.Error(t, err)

	defined := validationError(err)
	assert.Equal(t, 1000, defined.Code)
	assert.Contains(t, defined.Err, "Policy:oneof")
}
