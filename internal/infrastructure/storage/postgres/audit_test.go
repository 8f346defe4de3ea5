package postgres

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditStore_CompressesLargeSnapshots(t *testing.T) {
	store, err := NewAuditStore(nil, 64)
	require.NoError(t, err)
	defer store.Close()

	small := json.RawMessage(`{"code":"SI-2026-00001"}`)
	plain, compressed, algo := store.pack(small)
	assert.Equal(t, CompressionNone, algo)
	assert.Nil(t, compressed)
	assert.Equal(t, small, plain)

	large := json.RawMessage(`{"note":"` + string(bytes.Repeat([]byte("rye "), 200)) + `"}`)
	plain, compressed, algo = store.pack(large)
	assert.Equal(t, CompressionZstd, algo)
	assert.Nil(t, plain)
	assert.Less(t, len(compressed), len(large))

	restored, err := store.unpack(plain, compressed, algo)
	require.NoError(t, err)
	assert.JSONEq(t, string(large), string(restored))
}
