package notify_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/edusync/internal/notify"
)

func TestRedis_Publish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc := makeRedis(t)
	sub := rc.Subscribe(ctx, notify.Channel("local"))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "should subscribe")

	p := notify.NewRedis(notify.RedisConfig{Prefix: "local"}, rc)
	require.NoError(t, p.Publish(ctx, map[string]any{"resultId": "r1", "score": 75}, "ResultUpdated"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var n notify.Notification
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
	assert.Equal(t, "ResultUpdated", n.EventType)
	assert.JSONEq(t, `{"resultId":"r1","score":75}`, string(n.Data))

	ts, err := time.Parse(time.RFC3339Nano, n.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())
	assert.WithinDuration(t, time.Now(), ts, time.Minute)

	require.NoError(t, p.Close())
}

func TestRedis_PublishTooLarge(t *testing.T) {
	p := notify.NewRedis(notify.RedisConfig{Prefix: "local", MaxMessageBytes: 8}, makeRedis(t))

	err := p.Publish(context.Background(), strings.Repeat("x", 32), "ResultCreated")
	require.ErrorIs(t, err, notify.ErrMessageTooLarge)
}

func TestRedis_PublishFailure(t *testing.T) {
	rs := miniredis.NewMiniRedis()
	require.NoError(t, rs.Start())
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})
	t.Cleanup(func() { rc.Close() })
	rs.Close()

	p := notify.NewRedis(notify.RedisConfig{Prefix: "local"}, rc)
	require.Error(t, p.Publish(context.Background(), "payload", "ResultCreated"))
}

func makeRedis(t *testing.T) redis.UniversalClient {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return rc
}
