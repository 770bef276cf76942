package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"jobhill/internal/model"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel 新增职位事件的默认频道。
const DefaultChannel = "jobhill.jobs.created"

// Publisher 是 *redis.Client 的 Publish 子集。
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// JobEvent 每条新增开放职位发布一条消息。
type JobEvent struct {
	Type      string   `json:"type"`
	JobID     string   `json:"job_id"`
	CompanyID int64    `json:"company_id"`
	Company   string   `json:"company"`
	Title     string   `json:"job_title"`
	URL       string   `json:"url"`
	Category  []string `json:"categories"`
}

// RedisNotifier 通过 Redis Pub/Sub 广播新增职位，已关闭的职位不发布。
type RedisNotifier struct {
	pub     Publisher
	channel string
}

// NewRedisNotifier 创建 Redis 通知器，channel 为空时使用 DefaultChannel。
func NewRedisNotifier(pub Publisher, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{pub: pub, channel: channel}
}

// NewRedisClient 解析 redisURL 并检查连通性。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, jobs []model.ListedJob) error {
	for _, job := range jobs {
		if !job.IsOpen() {
			continue
		}
		payload, err := json.Marshal(JobEvent{
			Type:      "JOB_CREATED",
			JobID:     job.ID,
			CompanyID: job.CompanyID,
			Company:   job.CompanyName,
			Title:     job.JobTitle,
			URL:       job.URL,
			Category:  job.Categories,
		})
		if err != nil {
			return fmt.Errorf("marshal job event: %w", err)
		}
		if err := n.pub.Publish(ctx, n.channel, payload).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", n.channel, err)
		}
	}
	return nil
}
