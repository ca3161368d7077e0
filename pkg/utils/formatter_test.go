package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByteCountSI(t *testing.T) {
	assert.Equal(t, "999 B", ByteCountSI(999))
	assert.Equal(t, "1.0 kB", ByteCountSI(1000))
	assert.Equal(t, "1.5 MB", ByteCountSI(1500000))
}
