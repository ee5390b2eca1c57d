package biz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-cluster/pkg/utils/json"
)

func TestRedisNotifier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, "clustering:notifications")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedisNotifier(client, "clustering:notifications")
	require.NoError(t, n.Notify(ctx, "owner@example.com", "ready", "done in 2m"))

	select {
	case msg := <-sub.Channel():
		var got Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "owner@example.com", got.Email)
		assert.Equal(t, "ready", got.Subject)
		assert.Equal(t, "done in 2m", got.Body)
		assert.False(t, got.SentAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("未收到通知")
	}
}

func TestRedisNotifier_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewRedisNotifier(client, "ch").Notify(context.Background(), "a@b.c", "s", "b")
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), "a@b.c", "s", "b"))
}
