package annotate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

func TestManager_OpenGetClose(t *testing.T) {
	m := NewManager(newFakeGateway(parisLyon()))

	id, s, err := m.Open(context.Background(), 1)
	require.NoError(t, err)
	_, err = ulid.ParseStrict(id)
	require.NoError(t, err, "session id should be a ULID")
	assert.Equal(t, StateReady, s.State())

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Close(id))
	assert.True(t, s.Closed())

	_, err = m.Get(id)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.True(t, errors.Is(m.Close(id), errors.ErrNotFound))
}

func TestManager_OneSessionPerSentence(t *testing.T) {
	m := NewManager(newFakeGateway(parisLyon()))

	first, _, err := m.Open(context.Background(), 1)
	require.NoError(t, err)

	_, _, err = m.Open(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionExists))

	require.NoError(t, m.Close(first))
	_, _, err = m.Open(context.Background(), 1)
	assert.NoError(t, err, "sentence is released on close")
}

func TestManager_FailedOpenReleasesSentence(t *testing.T) {
	g := newFakeGateway()
	m := NewManager(g)

	_, _, err := m.Open(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFetchFailed))
	assert.Empty(t, m.IDs())

	g.mu.Lock()
	g.sentences[9] = &sentence.Sentence{ID: 9, Text: "Nantes Rennes"}
	g.mu.Unlock()

	_, _, err = m.Open(context.Background(), 9)
	assert.NoError(t, err)
}

func TestManager_CloseAll(t *testing.T) {
	m := NewManager(newFakeGateway(parisLyon(), &sentence.Sentence{ID: 2, Text: "Lille Metz"}))

	_, a, err := m.Open(context.Background(), 1)
	require.NoError(t, err)
	_, b, err := m.Open(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, m.IDs(), 2)

	m.CloseAll()
	assert.Empty(t, m.IDs())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestView_JSON(t *testing.T) {
	s := loadedSession(t, newFakeGateway(parisLyon()), 1)
	require.NoError(t, s.ApplyLabel(0, 5, sentence.LabelDeparture))
	require.True(t, s.SelectToken(6, 10))

	data, err := json.Marshal(s.View())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ready", got["state"])
	assert.Equal(t, "Paris Lyon", got["text"])
	assert.Equal(t, true, got["dirty"])
	assert.Equal(t, false, got["is_valid"])
	assert.Len(t, got["tokens"], 3)
	assert.Len(t, got["entities"], 1)
	require.NotNil(t, got["selection"])
	assert.Equal(t, "Lyon", got["selection"].(map[string]any)["text"])
}

func TestView_BeforeLoad(t *testing.T) {
	v := NewSession(newFakeGateway(), 5).View()
	assert.Equal(t, StateIdle, v.State)
	assert.Empty(t, v.Entities)
	assert.NotNil(t, v.Entities)
	assert.Empty(t, v.Text)
}
