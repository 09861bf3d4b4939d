package signin_test

import (
	"testing"

	signin "github.com/goliatone/go-signin"
	"github.com/stretchr/testify/assert"
)

func TestPasswordVisibilityToggle(t *testing.T) {
	input := signin.NewPasswordVisibility(nil)
	assert.False(t, input.Visible())
	assert.Equal(t, "password", input.InputType())
	assert.Equal(t, "Show password", input.ToggleLabel())

	assert.True(t, input.Toggle())
	assert.Equal(t, "text", input.InputType())
	assert.Equal(t, "Hide password", input.ToggleLabel())

	assert.False(t, input.Toggle())
	assert.Equal(t, "password", input.InputType())
}

func TestPasswordVisibilityShared(t *testing.T) {
	shared := &signin.SharedVisibility{}
	password := signin.NewPasswordVisibility(shared)
	confirm := signin.NewPasswordVisibility(shared)

	password.Toggle()
	assert.True(t, shared.Visible())
	assert.True(t, confirm.Visible())
	assert.Equal(t, "text", confirm.InputType())

	password.Toggle()
	assert.False(t, shared.Visible())
	assert.False(t, confirm.Visible())
}
