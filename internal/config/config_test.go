package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHost_FallsBackOnInvalid(t *testing.T) {
	t.Setenv("HOST", "not-an-ip")
	assert.Equal(t, DefaultHost, resolveHost())

	t.Setenv("HOST", "10.0.0.5")
	assert.Equal(t, "10.0.0.5", resolveHost())
}

func TestResolvePort_FallsBackOutOfRange(t *testing.T) {
	t.Setenv("PORT", "80")
	assert.Equal(t, DefaultPort, resolvePort())

	t.Setenv("PORT", "9000")
	assert.Equal(t, 9000, resolvePort())

	t.Setenv("PORT", "not-a-number")
	assert.Equal(t, DefaultPort, resolvePort())
}

func TestSafeJoin_RejectsTraversal(t *testing.T) {
	_, err := SafeJoin("/base/dir", "../escape")
	assert.Error(t, err)

	p, err := SafeJoin("/base/dir", "sub", "file.yaml")
	assert.NoError(t, err)
	assert.Contains(t, p, "sub")
}

func TestSafeJoin_RejectsAbsoluteElement(t *testing.T) {
	_, err := SafeJoin("/base/dir", "/etc/passwd")
	assert.Error(t, err)
}
