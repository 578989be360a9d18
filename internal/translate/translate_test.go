package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdb/internal/domain"
)

type echoModel struct {
	calls  int
	system string
	err    error
}

func (m *echoModel) Name() string { return "echo" }

func (m *echoModel) Complete(_ context.Context, msgs []domain.Message) (domain.Completion, error) {
	m.calls++
	if m.err != nil {
		return domain.Completion{}, m.err
	}
	m.system = msgs[0].Content
	return domain.Completion{Text: " IT:" + strings.ToUpper(msgs[1].Content) + "\n"}, nil
}

func TestTranslateBatch(t *testing.T) {
	m := &echoModel{}
	out, err := New(m, "", "").Translate(context.Background(), []string{"hello", "", "world"})
	require.NoError(t, err)
	assert.Equal(t, []string{"IT:HELLO", "", "IT:WORLD"}, out)
	assert.Equal(t, 2, m.calls)
	assert.Contains(t, m.system, "from English to Italian")
}

func TestTranslateError(t *testing.T) {
	_, err := New(&echoModel{err: errors.New("boom")}, "en", "fr").Translate(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestRequired(t *testing.T) {
	assert.True(t, Required("Answer in ITALIAN please", "italian"))
	assert.False(t, Required("Answer in French", "italian"))
	assert.False(t, Required("anything", ""))
}
