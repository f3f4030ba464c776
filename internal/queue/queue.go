package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const conversationLogKey = "conversation_log_jobs"

// ConversationJob is the fire-and-forget record pushed by the chat
// handler after a response has already been sent. The worker persists it;
// losing one must never fail the chat response it belongs to.
type ConversationJob struct {
	ChatbotID      string   `json:"chatbot_id"`
	UserMessage    string   `json:"user_message"`
	BotResponse    string   `json:"bot_response"`
	Sentiment      *string  `json:"sentiment,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	IsHoaxDetected *bool    `json:"is_hoax_detected,omitempty"`
	Tier           string   `json:"ai_tier"`
	Provider       string   `json:"ai_provider"`
}

type Queue struct {
	client *redis.Client
}

func New(url string) (*Queue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	return &Queue{client: client}, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) PushConversationLog(ctx context.Context, job ConversationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, conversationLogKey, payload).Err()
}

// PopConversationLog blocks up to timeout. A drained queue is reported as
// redis.Nil, which callers treat as "nothing to do".
func (q *Queue) PopConversationLog(ctx context.Context, timeout time.Duration) (ConversationJob, error) {
	res, err := q.client.BRPop(ctx, timeout, conversationLogKey).Result()
	if err != nil {
		return ConversationJob{}, err
	}
	if len(res) < 2 {
		return ConversationJob{}, redis.Nil
	}
	var job ConversationJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return ConversationJob{}, err
	}
	return job, nil
}

func IsEmpty(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, conversationLogKey).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}
