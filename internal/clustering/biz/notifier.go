package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-cluster/pkg/utils/json"
)

// Notifier 发送任务完成通知。投递由下游邮件服务负责。
type Notifier interface {
	Notify(ctx context.Context, email, subject, body string) error
}

// Notification 发布到通知频道的消息体。
type Notification struct {
	Email   string    `json:"email"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// RedisNotifier 把通知以 JSON 发布到 Redis 频道。
type RedisNotifier struct {
	client  goredis.UniversalClient
	channel string
}

var _ Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier 创建 Redis 通知器。
func NewRedisNotifier(client goredis.UniversalClient, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Notify 实现 Notifier。
func (n *RedisNotifier) Notify(ctx context.Context, email, subject, body string) error {
	payload, err := json.Marshal(Notification{
		Email:   email,
		Subject: subject,
		Body:    body,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification to %s: %w", n.channel, err)
	}
	return nil
}

// LogNotifier 只记录日志，Redis 不可用时使用。
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

// Notify 实现 Notifier。
func (LogNotifier) Notify(_ context.Context, email, subject, _ string) error {
	logger.Infow("clustering notification (log only)", "email", email, "subject", subject)
	return nil
}
