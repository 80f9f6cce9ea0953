package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisJobTTL = 24 * time.Hour

// RedisStore makes job polling safe across multiple instances. It persists
// only small progress fields plus a bounded answer preview; the full result
// is read from the conversation record after completion.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func jobKey(jobID string) string {
	return "chatjob:" + jobID
}

func (s *RedisStore) Create(ctx context.Context, userID, assistantID, conversationID, query string) (*ChatJob, error) {
	now := time.Now()
	job := &ChatJob{
		ID:             uuid.NewString(),
		UserID:         userID,
		AssistantID:    assistantID,
		ConversationID: conversationID,
		Query:          query,
		Status:         StatusQueued,
		Stage:          "queued",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*ChatJob, error) {
	raw, err := s.rdb.Get(ctx, jobKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat job failed: %w", err)
	}
	var job ChatJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode chat job failed: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, jobID string, upd Update) (*ChatJob, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil || job == nil {
		return job, err
	}
	// Sources and matched images are not persisted here: they live on the
	// conversation record, and job payloads stay small for polling.
	upd.Sources = nil
	upd.MatchedImages = nil
	if upd.Answer != nil {
		preview := headString(*upd.Answer, MaxAnswerPreviewChars)
		upd.Answer = &preview
	}
	applyUpdate(job, upd)
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *RedisStore) save(ctx context.Context, job *ChatJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode chat job failed: %w", err)
	}
	if err := s.rdb.Set(ctx, jobKey(job.ID), raw, redisJobTTL).Err(); err != nil {
		return fmt.Errorf("save chat job failed: %w", err)
	}
	return nil
}
