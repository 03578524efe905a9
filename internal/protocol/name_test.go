package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("alice"))
	assert.True(t, ValidName(strings.Repeat("x", MaxNameLength)))

	assert.False(t, ValidName(""))
	assert.False(t, ValidName(strings.Repeat("x", MaxNameLength+1)))
	assert.False(t, ValidName("has space"))
	assert.False(t, ValidName("tab\tchar"))
}
