package services

import (
	"testing"

	"wall/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalChannelFanOut(t *testing.T) {
	hub := NewLocalHub()
	a := hub.Channel()
	b := hub.Channel()
	c := hub.Channel()

	require.NoError(t, a.Join(CommunityWallRoom))
	require.NoError(t, b.Join(CommunityWallRoom))
	require.NoError(t, c.Join(CommunityWallRoom))

	var bGot, cGot, aGot int
	a.Subscribe(models.EventPostCreated, func(event string, payload interface{}) { aGot++ })
	b.Subscribe(models.EventPostCreated, func(event string, payload interface{}) { bGot++ })
	c.Subscribe(models.EventPostCreated, func(event string, payload interface{}) { cGot++ })

	a.Publish(models.EventPostCreated, &models.WallPost{ID: 1})

	assert.Equal(t, 0, aGot, "publisher does not receive its own event")
	assert.Equal(t, 1, bGot)
	assert.Equal(t, 1, cGot)
}

func TestLocalChannelJoinIdempotent(t *testing.T) {
	hub := NewLocalHub()
	a := hub.Channel()
	b := hub.Channel()

	require.NoError(t, a.Join(CommunityWallRoom))
	require.NoError(t, b.Join(CommunityWallRoom))
	require.NoError(t, b.Join(CommunityWallRoom))
	require.NoError(t, b.Join(CommunityWallRoom))

	var got int
	b.Subscribe(models.EventReactionAdded, func(event string, payload interface{}) { got++ })

	a.Publish(models.EventReactionAdded, &models.ReactionAddedPayload{PostID: 1})
	assert.Equal(t, 1, got, "repeated join must not duplicate delivery")
}

func TestLocalChannelUnsubscribedKindIgnored(t *testing.T) {
	hub := NewLocalHub()
	a := hub.Channel()
	b := hub.Channel()
	require.NoError(t, a.Join(CommunityWallRoom))
	require.NoError(t, b.Join(CommunityWallRoom))

	// Нет обработчика этого вида - событие просто пропадает
	a.Publish(models.EventCommentAdded, &models.CommentAddedPayload{PostID: 1})
}

func TestLocalChannelClose(t *testing.T) {
	hub := NewLocalHub()
	a := hub.Channel()
	b := hub.Channel()
	require.NoError(t, a.Join(CommunityWallRoom))
	require.NoError(t, b.Join(CommunityWallRoom))

	var got int
	b.Subscribe(models.EventPostCreated, func(event string, payload interface{}) { got++ })
	require.NoError(t, b.Close())

	a.Publish(models.EventPostCreated, &models.WallPost{ID: 1})
	assert.Equal(t, 0, got, "closed channel receives nothing")
}

func TestWallEventEnvelope(t *testing.T) {
	data, err := models.EncodeWallEvent(models.EventReactionAdded, models.ReactionAddedPayload{
		PostID:         5,
		ReactionCounts: map[string]int{"like": 4, "love": 1},
		TotalReactions: 5,
	})
	require.NoError(t, err)

	evt, payload, err := models.DecodeWallEvent(data)
	require.NoError(t, err)
	assert.Equal(t, models.EventReactionAdded, evt.Event)

	p, ok := payload.(*models.ReactionAddedPayload)
	require.True(t, ok)
	assert.Equal(t, int64(5), p.PostID)
	assert.Equal(t, 5, p.TotalReactions)
}

func TestWallEventUnknownKindRejected(t *testing.T) {
	_, _, err := models.DecodeWallEvent([]byte(`{"event":"post-deleted","payload":{}}`))
	require.Error(t, err)

	_, _, err = models.DecodeWallEvent([]byte(`not json`))
	require.Error(t, err)
}
