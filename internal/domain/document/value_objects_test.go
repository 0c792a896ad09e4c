package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMargins(t *testing.T) {
	tests := []struct {
		name        string
		top         int
		right       int
		bottom      int
		left        int
		expectError bool
		errorMsg    string
	}{
		{"valid margins", 10, 15, 10, 15, false, ""},
		{"all zero", 0, 0, 0, 0, false, ""},
		{"max allowed", 100, 100, 100, 100, false, ""},
		{"negative top", -1, 10, 10, 10, true, "Margins cannot be negative"},
		{"negative left", 10, 10, 10, -5, true, "Margins cannot be negative"},
		{"top too large", 101, 10, 10, 10, true, "Margins cannot exceed 100mm"},
		{"bottom too large", 10, 10, 150, 10, true, "Margins cannot exceed 100mm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			margins, err := NewMargins(tt.top, tt.right, tt.bottom, tt.left)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.top, margins.Top)
				assert.Equal(t, tt.right, margins.Right)
				assert.Equal(t, tt.bottom, margins.Bottom)
				assert.Equal(t, tt.left, margins.Left)
			}
		})
	}
}

func TestDefaultMargins(t *testing.T) {
	margins := DefaultMargins()
	assert.Equal(t, 10, margins.Top)
	assert.Equal(t, 10, margins.Right)
	assert.Equal(t, 10, margins.Bottom)
	assert.Equal(t, 10, margins.Left)
	assert.False(t, margins.IsZero())
}

func TestMargins_IsZero(t *testing.T) {
	assert.True(t, Margins{}.IsZero())
	assert.False(t, Margins{Top: 1}.IsZero())
}

func TestMargins_Equals(t *testing.T) {
	a := Margins{Top: 10, Right: 15, Bottom: 10, Left: 15}
	b := Margins{Top: 10, Right: 15, Bottom: 10, Left: 15}
	c := Margins{Top: 10, Right: 15, Bottom: 10, Left: 20}

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
}
