package cwkeyer

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampProviderDefaultFormat(t *testing.T) {
	var ts, err = NewTimestampProvider("")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}$`), ts())
}

func TestTimestampProviderCustomFormat(t *testing.T) {
	var ts, err = NewTimestampProvider("%H%M")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^\d{4}$`), ts())
}

func TestTimestampProviderBadFormat(t *testing.T) {
	var _, err = NewTimestampProvider("%Q")
	assert.Error(t, err)
}
