package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerEngine_PropertyTypesSurviveGob(t *testing.T) {
	engine, err := NewBadgerEngineInMemory()
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.CreateNode(&Node{
		ID:         "n1",
		Properties: map[string]any{"age": int64(30), "tags": []any{"a", "b"}, "nested": map[string]any{"k": 1.5}},
	}))
	got, err := engine.GetNode("n1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.Properties["age"])
	assert.Equal(t, []any{"a", "b"}, got.Properties["tags"])
	assert.Equal(t, map[string]any{"k": 1.5}, got.Properties["nested"])
}

func TestBadgerEngine_StreamOrderAndPrefixes(t *testing.T) {
	engine, err := NewBadgerEngineInMemory()
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.BulkCreateNodes([]*Node{{ID: "hub"}, {ID: "hu"}, {ID: "x"}}))
	require.NoError(t, engine.BulkCreateEdges([]*Edge{
		{ID: "e3", StartNode: "hub", EndNode: "x"},
		{ID: "e1", StartNode: "hub", EndNode: "x"},
		{ID: "e2", StartNode: "hub", EndNode: "x"},
	}))

	ctx := context.Background()
	assert.Equal(t, []EdgeID{"e1", "e2", "e3"}, drain(t, engine.StreamOutgoingEdges(ctx, "hub")))
	assert.Empty(t, drain(t, engine.StreamOutgoingEdges(ctx, "hu")), "a node id that prefixes another sees only its own edges")
}

func TestBadgerEngine_Reopen(t *testing.T) {
	dir := t.TempDir()

	engine, err := NewBadgerEngine(dir)
	require.NoError(t, err)
	seedTriangle(t, engine)
	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())

	engine, err = NewBadgerEngine(dir)
	require.NoError(t, err)
	defer engine.Close()
	assert.Equal(t, []EdgeID{"bc"}, drain(t, engine.StreamIncomingEdges(context.Background(), "c")))
}

func TestBadgerEngine_Encryption(t *testing.T) {
	dir := t.TempDir()
	salt, err := LoadOrCreateSalt(dir)
	require.NoError(t, err)
	key, err := DeriveEncryptionKey("correct horse", salt)
	require.NoError(t, err)

	engine, err := NewBadgerEngineWithOptions(BadgerOptions{DataDir: dir, EncryptionKey: key})
	require.NoError(t, err)
	require.NoError(t, engine.CreateNode(&Node{ID: "secret"}))
	require.NoError(t, engine.Close())

	engine, err = NewBadgerEngineWithOptions(BadgerOptions{DataDir: dir, EncryptionKey: key})
	require.NoError(t, err)
	_, err = engine.GetNode("secret")
	assert.NoError(t, err)
	require.NoError(t, engine.Close())

	_, err = NewBadgerEngineWithOptions(BadgerOptions{InMemory: true, EncryptionKey: []byte("short")})
	assert.ErrorContains(t, err, "16, 24, or 32 bytes")
}
