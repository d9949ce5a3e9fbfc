package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeValidation, "bad document")
		assert.True(t, HasCode(err, CodeValidation))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches inner code through wrapping", func(t *testing.T) {
		inner := New(CodeConfiguration, "missing key")
		err := fmt.Errorf("narrate: %w", Wrap(inner, CodeProcessing, "analysis failed"))
		assert.True(t, HasCode(err, CodeProcessing))
		assert.True(t, HasCode(err, CodeConfiguration))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestCodeOfAndDetail(t *testing.T) {
	cause := errors.New("status 503")
	err := Wrap(cause, CodeProcessing, "language model call failed")

	assert.Equal(t, CodeProcessing, CodeOf(err))
	assert.Equal(t, "status 503", Detail(err))
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Empty(t, Detail(New(CodeNoData, "nothing to analyze")))
}
