package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const throttleKeyPrefix = "account:last-active:"

func NewRedisClient(addrs []string, password string) (redis.UniversalClient, error) {
	clean := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			clean = append(clean, a)
		}
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("redis address required")
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    clean,
		Password: password,
	}), nil
}

// Throttle lets at most one activity record per account through per window.
// When Redis is unavailable every record is passed through.
type Throttle struct {
	Next   Recorder
	Redis  redis.UniversalClient
	Window time.Duration
	Logger *slog.Logger
}

func (t *Throttle) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func (t *Throttle) RecordActivity(ctx context.Context, accountID string, at time.Time) error {
	if t.Window <= 0 {
		return t.Next.RecordActivity(ctx, accountID, at)
	}

	key := throttleKeyPrefix + accountID
	acquired, err := t.Redis.SetNX(ctx, key, at.UTC().Unix(), t.Window).Result()
	if err != nil {
		t.logger().WarnContext(ctx, "activity: throttle unavailable", "account_id", accountID, "err", err)
		return t.Next.RecordActivity(ctx, accountID, at)
	}
	if !acquired {
		return nil
	}

	if err := t.Next.RecordActivity(ctx, accountID, at); err != nil {
		// Release the slot so the next read retries the write.
		if delErr := t.Redis.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			t.logger().WarnContext(ctx, "activity: release throttle failed", "account_id", accountID, "err", delErr)
		}
		return err
	}
	return nil
}
