package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const freeSpinPrefix = "spins:free:"

// SpinQuotaRepo counts free wheel spins per user per UTC day. Keys expire at
// the next midnight so the quota resets without any sweeper.
type SpinQuotaRepo struct {
	client *goredis.Client
}

func NewSpinQuotaRepo(client *goredis.Client) *SpinQuotaRepo {
	return &SpinQuotaRepo{client: client}
}

// ConsumeFreeSpin reserves one free spin. Returns false when the daily limit
// is already exhausted; the over-limit increment is left in place, the key
// expires with the day either way.
func (r *SpinQuotaRepo) ConsumeFreeSpin(ctx context.Context, userID int64, limit int, now time.Time) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 || limit < 0 {
		return false, fmt.Errorf("invalid free spin payload")
	}
	if limit == 0 {
		return false, nil
	}

	key := freeSpinKey(userID, now)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("increment free spin counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, untilNextMidnight(now)).Err(); err != nil {
			return false, fmt.Errorf("set free spin counter ttl: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// RefundFreeSpin hands a consumed spin back after the prize award failed.
// A missing counter means the day already rolled over; nothing to restore.
func (r *SpinQuotaRepo) RefundFreeSpin(ctx context.Context, userID int64, now time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid refund payload")
	}

	key := freeSpinKey(userID, now)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check free spin counter: %w", err)
	}
	if exists == 0 {
		return nil
	}

	if err := r.client.Decr(ctx, key).Err(); err != nil {
		return fmt.Errorf("decrement free spin counter: %w", err)
	}
	return nil
}

func (r *SpinQuotaRepo) FreeSpinsUsed(ctx context.Context, userID int64, now time.Time) (int, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.Get(ctx, freeSpinKey(userID, now)).Result()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read free spin counter: %w", err)
	}

	used, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse free spin counter: %w", err)
	}
	return used, nil
}

func freeSpinKey(userID int64, now time.Time) string {
	return freeSpinPrefix + strconv.FormatInt(userID, 10) + ":" + now.UTC().Format("2006-01-02")
}

func untilNextMidnight(now time.Time) time.Duration {
	utc := now.UTC()
	next := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	ttl := next.Sub(utc)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}
