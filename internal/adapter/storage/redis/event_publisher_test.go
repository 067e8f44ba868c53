package redis

import (
	"context"
	"testing"
	"time"

	"vehicle-auction-engine/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewEventPublisher(client, zerolog.Nop())
	ctx := context.Background()

	sub, err := pub.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	high := uuid.New()
	sent := domain.LotEvent{
		Type:         domain.EventLotUpdated,
		LotID:        uuid.New(),
		Status:       domain.LotStatusLive,
		CurrentBid:   950_000,
		HighBidderID: &high,
		BidCount:     4,
		OccurredAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, pub.Publish(ctx, sent))

	select {
	case got := <-sub.Events():
		assert.Equal(t, sent.Type, got.Type)
		assert.Equal(t, sent.LotID, got.LotID)
		assert.Equal(t, sent.CurrentBid, got.CurrentBid)
		assert.Equal(t, high, *got.HighBidderID)
		assert.True(t, sent.OccurredAt.Equal(got.OccurredAt))
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

func TestEventPublisher_SkipsMalformedPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewEventPublisher(client, zerolog.Nop())
	ctx := context.Background()

	sub, err := pub.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.Publish(ctx, LotEventsChannel, "not-json").Err())
	require.NoError(t, pub.Publish(ctx, domain.LotEvent{Type: domain.EventLotClosed}))

	select {
	case got := <-sub.Events():
		assert.Equal(t, domain.EventLotClosed, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

func TestEventPublisher_PublishFailsWhenDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewEventPublisher(client, zerolog.Nop()).Publish(context.Background(), domain.LotEvent{})
	assert.ErrorContains(t, err, "redis publish")
}
