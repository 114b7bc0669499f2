package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArchitecture(t *testing.T) {
	for _, arch := range SupportedArchitectures() {
		parsed, err := ParseArchitecture(arch.String())
		require.NoError(t, err)
		assert.Equal(t, arch, parsed)
	}
}

func TestParseArchitectureRejectsUnknown(t *testing.T) {
	for _, name := range []string{"", "vgg", "ResNet", "resnet50"} {
		_, err := ParseArchitecture(name)
		assert.ErrorIs(t, err, ErrUnsupportedModel, "name %q", name)
	}
}
