package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ragdb/internal/config"
)

func TestInitLevels(t *testing.T) {
	l, err := Init("debug", false)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.Same(t, l, L())
	assert.Same(t, l, zap.L())

	_, err = Init("loud", false)
	assert.Error(t, err)
}

func TestPrintConfiguration(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg, err := config.Parse([]byte("reranker:\n  type: cohere\n"))
	require.NoError(t, err)

	PrintConfiguration(zap.New(core), cfg)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "openai", fields["embedder"])
	assert.Equal(t, "text-embedding-3-small", fields["embed_model"])
	assert.Equal(t, "cohere", fields["reranker"])
	assert.EqualValues(t, 3, fields["top_n"])
}
