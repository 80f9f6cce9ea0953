// Package quota rate-limits chat calls per user and per assistant with
// rolling minute and calendar day windows backed by Redis counters.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"grundbank/internal/config"
)

// ExceededError carries the user-facing message and how long until the
// window resets.
type ExceededError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return e.Message
}

type Service struct {
	rdb *redis.Client
	cfg config.QuotaConfig
	now func() time.Time
}

func NewService(rdb *redis.Client, cfg config.QuotaConfig) *Service {
	return &Service{rdb: rdb, cfg: cfg, now: time.Now}
}

// EnforceChat ticks the user counters and, when assistantID is non-empty,
// the assistant counters. Counting happens before the limit check so a
// rejected call still consumes a slot.
func (s *Service) EnforceChat(ctx context.Context, userID, assistantID string) error {
	if !s.cfg.Enabled || s.rdb == nil {
		return nil
	}
	if err := s.enforceScope(ctx, "user", userID, s.cfg.UserPerMinute, s.cfg.UserPerDay); err != nil {
		return err
	}
	if assistantID != "" {
		return s.enforceScope(ctx, "assistant", assistantID, s.cfg.ProjectPerMinute, s.cfg.ProjectPerDay)
	}
	return nil
}

func (s *Service) enforceScope(ctx context.Context, scope, key string, perMinute, perDay int) error {
	now := s.now().UTC()

	minuteCount, err := s.tick(ctx, scope, key, "m", now.Format("200601021504"), 2*time.Minute)
	if err != nil {
		return err
	}
	if perMinute > 0 && minuteCount > int64(perMinute) {
		return &ExceededError{
			Message:    fmt.Sprintf("För många förfrågningar för %s senaste minuten (%d/%d).", scope, minuteCount, perMinute),
			RetryAfter: secondsToNextMinute(now),
		}
	}

	dayCount, err := s.tick(ctx, scope, key, "d", now.Format("20060102"), 48*time.Hour)
	if err != nil {
		return err
	}
	if perDay > 0 && dayCount > int64(perDay) {
		return &ExceededError{
			Message:    fmt.Sprintf("Daglig kvot uppnådd för %s (%d/%d).", scope, dayCount, perDay),
			RetryAfter: secondsToNextDay(now),
		}
	}
	return nil
}

func (s *Service) tick(ctx context.Context, scope, key, window, bucket string, ttl time.Duration) (int64, error) {
	counterKey := fmt.Sprintf("quota:%s:%s:%s:%s", scope, key, window, bucket)
	pipe := s.rdb.Pipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.ExpireNX(ctx, counterKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("tick quota counter failed: %w", err)
	}
	return incr.Val(), nil
}

func secondsToNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	d := next.Sub(now)
	if d < time.Second {
		d = time.Second
	}
	return d
}

func secondsToNextDay(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	d := next.Sub(now)
	if d < time.Second {
		d = time.Second
	}
	return d
}
