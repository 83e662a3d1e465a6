package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateStreamConfig(t *testing.T) {
	ok := StreamConfig{Kind: KindColor, Format: FormatRGB8, Resolution: Resolution{Width: 640, Height: 480}, FPS: 30}
	assert.NoError(t, ValidateStreamConfig(ok))

	badFPS := ok
	badFPS.FPS = 45
	assert.Error(t, ValidateStreamConfig(badFPS))

	badRes := ok
	badRes.Resolution = Resolution{Width: 1, Height: 1}
	assert.Error(t, ValidateStreamConfig(badRes))

	badFormat := ok
	badFormat.Format = Format("not-a-format")
	assert.Error(t, ValidateStreamConfig(badFormat))

	badKind := ok
	badKind.Kind = Kind("not-a-kind")
	assert.Error(t, ValidateStreamConfig(badKind))
}

func TestValidateStreamConfigs_RejectsEmpty(t *testing.T) {
	assert.Error(t, ValidateStreamConfigs(nil))
}

func TestValidateStreamConfigs_RejectsDuplicateKind(t *testing.T) {
	c := singleColorStream()
	c = append(c, c[0])
	assert.Error(t, ValidateStreamConfigs(c))
}

func TestValidateAlignment(t *testing.T) {
	streams := singleColorStream()

	color := KindColor
	assert.NoError(t, ValidateAlignment(&color, streams))

	depth := KindDepth
	assert.Error(t, ValidateAlignment(&depth, streams))

	assert.NoError(t, ValidateAlignment(nil, streams))
}
