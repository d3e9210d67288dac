package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyRotator(t *testing.T) {
	pr := NewProxyRotator([]string{"10.0.0.1:8080", "", "ftp://bad", "https://10.0.0.2:3128"}, "", nil)
	require.True(t, pr.HasProxies())

	assert.Equal(t, "http://10.0.0.1:8080", pr.CurrentProxy().String())
	pr.Rotate()
	assert.Equal(t, "https://10.0.0.2:3128", pr.CurrentProxy().String())
	pr.Rotate()
	assert.Equal(t, "http://10.0.0.1:8080", pr.CurrentProxy().String())
	assert.Equal(t, "market-analytics/1.0", pr.UserAgent())
}

func TestProxyRotator_Empty(t *testing.T) {
	pr := NewProxyRotator(nil, "bot/2", nil)
	assert.False(t, pr.HasProxies())
	assert.Nil(t, pr.CurrentProxy())
	pr.Rotate()
	assert.Equal(t, "bot/2", pr.UserAgent())
}
