package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, 1, clampQuantity(0, 100))
	assert.Equal(t, 1, clampQuantity(-5, 100))
	assert.Equal(t, 1, clampQuantity(1, 100))
	assert.Equal(t, 42, clampQuantity(42, 100))
	assert.Equal(t, 100, clampQuantity(100, 100))
	assert.Equal(t, 100, clampQuantity(250, 100))
}
