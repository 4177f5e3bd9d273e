package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisStoreAcceptsBareAddress(t *testing.T) {
	_, err := NewRedisStore("localhost:6379")
	require.NoError(t, err)

	_, err = NewRedisStore("redis://localhost:6379")
	require.NoError(t, err)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 19.9, round2(19.899999999999999))
	assert.Equal(t, 0.1, round2(0.1+0.2-0.2))
	assert.Equal(t, 10.0, round2(10))
	assert.Equal(t, 0.0, round2(0.001))
	assert.Equal(t, 3.14, round2(3.14159))
	assert.Equal(t, 2.72, round2(2.718))
}
