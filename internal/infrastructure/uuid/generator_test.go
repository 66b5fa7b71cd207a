package uuid

import (
	"testing"

	guuid "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator("nanoid", 16)
	require.NoError(t, err)
	a, err := g.Generate()
	require.NoError(t, err)
	b, err := g.Generate()
	require.NoError(t, err)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)

	g, err = NewGenerator("uuid", 0)
	require.NoError(t, err)
	id, err := g.Generate()
	require.NoError(t, err)
	_, err = guuid.Parse(id)
	assert.NoError(t, err)

	_, err = NewGenerator("nanoid", 0)
	assert.Error(t, err)
	_, err = NewGenerator("snowflake", 10)
	assert.Error(t, err)
}
