package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

func TestValidateBuffers(t *testing.T) {
	tests := []struct {
		name    string
		buffers types.BufferSet
		wantErr bool
	}{
		{"markup only", types.BufferSet{Markup: "<p>x</p>"}, false},
		{"script only", types.BufferSet{Script: "1"}, false},
		{"empty", types.BufferSet{Library: "x.js"}, true},
		{"exactly max", types.BufferSet{Style: strings.Repeat("a", MaxProjectSize)}, false},
		{"too large", types.BufferSet{Markup: strings.Repeat("a", MaxProjectSize), Script: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBuffers(tt.buffers)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, types.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateProjectName(t *testing.T) {
	assert.NoError(t, ValidateProjectName("Demo"))
	assert.NoError(t, ValidateProjectName(strings.Repeat("я", MaxProjectNameLength)))
	assert.Error(t, ValidateProjectName("   "))
	assert.Error(t, ValidateProjectName(strings.Repeat("a", MaxProjectNameLength+1)))
	assert.Error(t, ValidateProjectName("bad\x00name"))
}

func TestTags(t *testing.T) {
	assert.Equal(t, []string{"css", "demo"}, NormalizeTags([]string{" CSS ", "demo", "", "css"}))
	assert.NoError(t, ValidateTags([]string{"css", "flex-box", "v1.2"}))
	assert.Error(t, ValidateTags([]string{"has space"}))
	assert.Error(t, ValidateTags(make([]string, MaxTagCount+1)))
}

func TestIsHostedID(t *testing.T) {
	assert.True(t, IsHostedID("a1B2c3D4e5F6"))
	assert.False(t, IsHostedID("a1B2c3D4e5F"))
	assert.False(t, IsHostedID("a1B2c3D4e5F6x"))
	assert.False(t, IsHostedID("../etc/passw"))
}

func TestBufferETag(t *testing.T) {
	a := BufferETag(types.BufferSet{Markup: "a", Style: "b"})
	b := BufferETag(types.BufferSet{Markup: "ab"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, BufferETag(types.BufferSet{Markup: "a", Style: "b"}))
	assert.NotEqual(t, a, BufferETag(types.BufferSet{Markup: "a", Style: "b", SuppressDialogs: true}))
}
