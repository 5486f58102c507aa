package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMapRoundTrip(t *testing.T) {
	val, err := JSONMap{"gateway": "bank-transfer", "attempt": 1}.Value()
	require.NoError(t, err)

	var out JSONMap
	require.NoError(t, out.Scan(val))
	assert.Equal(t, "bank-transfer", out["gateway"])
	assert.EqualValues(t, 1, out["attempt"])

	require.NoError(t, out.Scan([]byte(`{"ok":true}`)))
	assert.Equal(t, true, out["ok"])
}

func TestJSONMapNil(t *testing.T) {
	var empty JSONMap
	val, err := empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", val)

	out := JSONMap{"x": 1}
	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
	assert.Error(t, out.Scan(3.14))
}
