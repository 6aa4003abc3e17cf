package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisQueue carries the mail outbox and the per-user notification channels.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// MailMessage is picked up by cmd/mailer.
type MailMessage struct {
	ID       string            `json:"id"`
	To       string            `json:"to"`
	Template string            `json:"template"` // verify_email, account_approved ...
	Subject  string            `json:"subject"`
	Data     map[string]string `json:"data"`
	Created  int64             `json:"created"`
	Attempts int               `json:"attempts,omitempty"` // failed deliveries so far
}

// Config redis connection settings
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisQueue creates the client; it does not dial until first use.
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "fiduciaire"
	}

	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// Close closes the client
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping checks the connection
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// GetClient exposes the raw client
func (q *RedisQueue) GetClient() *redis.Client {
	return q.client
}

// ========== Mail outbox ==========

// EnqueueMail pushes a message on the outbox list.
func (q *RedisQueue) EnqueueMail(ctx context.Context, msg MailMessage) error {
	if msg.Created == 0 {
		msg.Created = time.Now().Unix()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail message: %w", err)
	}
	if err := q.client.LPush(ctx, q.outboxKey(), data).Err(); err != nil {
		return fmt.Errorf("enqueue mail message: %w", err)
	}
	return nil
}

// DequeueMail pops the oldest message, waiting up to timeout.
// Returns nil, nil when nothing arrived.
func (q *RedisQueue) DequeueMail(ctx context.Context, timeout time.Duration) (*MailMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.outboxKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// result[0] is the key
	var msg MailMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("decode mail message: %w", err)
	}
	return &msg, nil
}

// OutboxLength number of pending mails
func (q *RedisQueue) OutboxLength(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.outboxKey()).Result()
}

// ========== Notifications ==========

// PublishNotification sends payload to the user's channel.
func (q *RedisQueue) PublishNotification(ctx context.Context, userID uint, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return q.client.Publish(ctx, q.NotificationChannel(userID), data).Err()
}

// SubscribeNotifications subscribes to the user's channel. Caller closes it.
func (q *RedisQueue) SubscribeNotifications(ctx context.Context, userID uint) *redis.PubSub {
	return q.client.Subscribe(ctx, q.NotificationChannel(userID))
}

// NotificationChannel channel name for a user
func (q *RedisQueue) NotificationChannel(userID uint) string {
	return fmt.Sprintf("%s:notifications:%d", q.prefix, userID)
}

func (q *RedisQueue) outboxKey() string {
	return q.prefix + ":mail:outbox"
}
