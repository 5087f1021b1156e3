package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMath_MinMax(t *testing.T) {
	assert.Equal(t, 2, Min(2, 5))
	assert.Equal(t, 2, Min(5, 2))
	assert.Equal(t, 5, Max(2, 5))
	assert.Equal(t, -1.5, Min(-1.5, 0.0))
}

func TestMath_Abs(t *testing.T) {
	assert.Equal(t, 3, Abs(-3))
	assert.Equal(t, 0.25, Abs(0.25))
}

func TestMath_Clamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-4.0, 0, 255))
	assert.Equal(t, 255.0, Clamp(300.0, 0, 255))
	assert.Equal(t, 17.0, Clamp(17.0, 0, 255))
}

func TestMath_Contains(t *testing.T) {
	exts := []string{".jpg", ".png"}
	assert.True(t, Contains(exts, ".png"))
	assert.False(t, Contains(exts, ".gif"))
	assert.False(t, Contains[int](nil, 1))
}
