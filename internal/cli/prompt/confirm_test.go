package prompt

import (
	"fmt"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
)

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(ErrAborted))
	assert.True(t, IsAborted(promptui.ErrInterrupt))
	assert.True(t, IsAborted(fmt.Errorf("init: %w", ErrAborted)))
	assert.False(t, IsAborted(promptui.ErrAbort))
	assert.False(t, IsAborted(nil))
}

func TestConfirmUnlessAssumeYes(t *testing.T) {
	ok, err := ConfirmUnless(true, "Zero-fill 3 devices", "yes")
	assert.NoError(t, err)
	assert.True(t, ok)
}
