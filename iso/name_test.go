package iso

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName_BytesRoundTrip(t *testing.T) {
	name := NewName(0x1FFFF, 0x7FF, 130, 25, 4, 0, true)

	parsed, err := ParseName(name.Bytes())
	assert.NoError(t, err)
	assert.Equal(t, name, parsed)
}

func TestName_Less(t *testing.T) {
	lower := NewName(1, 0, 0, 0, 0, 0, false)
	higher := NewName(2, 0, 0, 0, 0, 0, false)
	assert.True(t, lower.Less(higher))
	assert.False(t, higher.Less(lower))
}

func TestParseName_invalidLength(t *testing.T) {
	_, err := ParseName([]byte{1, 2, 3})
	assert.ErrorIs(t, err, errInvalidNameLength)
}
