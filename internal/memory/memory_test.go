package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdb/internal/domain"
	"ragdb/internal/tokens"
)

func user(s string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: s}
}

func assistant(s string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: s}
}

func TestFitKeepsNewestWithinLimit(t *testing.T) {
	msgs := []domain.Message{user("one two three"), assistant("four five"), user("six")}
	// WordCounter: 4, 3, 2 tokens
	assert.Equal(t, msgs[2:], fit(msgs, 5, tokens.WordCounter{}))
	assert.Equal(t, msgs, fit(msgs, 9, tokens.WordCounter{}))
}

func TestFitNeverOpensOnAnswer(t *testing.T) {
	msgs := []domain.Message{user("one two three"), assistant("four five"), user("six"), assistant("seven")}
	assert.Equal(t, msgs[2:], fit(msgs, 7, tokens.WordCounter{}))

	// the only exchange that fits would start with the answer
	assert.Nil(t, fit(msgs[:2], 3, tokens.WordCounter{}))

	// an untrimmed history is returned as is
	assert.Equal(t, msgs[1:2], fit(msgs[1:2], 10, tokens.WordCounter{}))
}

func TestFitAlwaysKeepsLatest(t *testing.T) {
	msgs := []domain.Message{user("a"), user("a very long message that exceeds the budget")}
	assert.Equal(t, msgs[1:], fit(msgs, 1, tokens.WordCounter{}))
	assert.Nil(t, fit(nil, 10, tokens.WordCounter{}))
}

func runMemory(t *testing.T, m domain.ChatMemory) {
	ctx := context.Background()

	h, err := m.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, h)

	require.NoError(t, m.Append(ctx, "s1", user("hello"), assistant("hi there")))
	require.NoError(t, m.Append(ctx, "s2", user("other")))

	h, err = m.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Message{user("hello"), assistant("hi there")}, h)

	require.NoError(t, m.Reset(ctx, "s1"))
	h, err = m.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, h)

	h, err = m.History(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, h, 1)
}

func TestBuffer(t *testing.T) {
	runMemory(t, NewBuffer(100, nil))
}

func TestRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	r := NewRedis(RedisOptions{Addr: mr.Addr(), TTL: time.Minute, TokenLimit: 100}, nil)
	defer r.Close()
	require.NoError(t, r.Ping(context.Background()))

	runMemory(t, r)

	assert.True(t, mr.Exists("ragdb:chat:s2"))
	assert.Equal(t, time.Minute, mr.TTL("ragdb:chat:s2"))
	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("ragdb:chat:s2"))
}

func TestRedisTrimsToLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	r := NewRedis(RedisOptions{Addr: mr.Addr(), TokenLimit: 5}, tokens.WordCounter{})
	ctx := context.Background()
	require.NoError(t, r.Append(ctx, "s", user("first question here"), assistant("ok")))
	require.NoError(t, r.Append(ctx, "s", user("next one"), assistant("fine")))

	h, err := r.History(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []domain.Message{user("next one"), assistant("fine")}, h)
}
