package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/storage"
)

type Decision struct {
	Allowed bool
	Reason  string
	Count   int
	Bucket  string
}

// RateLimiter caps receipt uploads per user per calendar day. The day is
// taken in a fixed reference zone so every instance agrees on the bucket.
type RateLimiter struct {
	limit int
	loc   *time.Location
}

func NewRateLimiter(limit int, loc *time.Location) *RateLimiter {
	if loc == nil {
		loc = time.UTC
	}
	return &RateLimiter{limit: limit, loc: loc}
}

func (r *RateLimiter) Limit() int { return r.limit }

func (r *RateLimiter) DateBucket(now time.Time) string {
	return now.In(r.loc).Format(constants.DayBucketLayout)
}

// AuthorizeUpload counts one upload against today's bucket. A denied attempt
// leaves the counter untouched.
func (r *RateLimiter) AuthorizeUpload(ctx context.Context, tx storage.UserTx, now time.Time) (Decision, error) {
	bucket := r.DateBucket(now)
	count, allowed, err := tx.IncrementDailyCount(ctx, bucket, r.limit)
	if err != nil {
		return Decision{}, fmt.Errorf("authorize upload: %w", err)
	}

	d := Decision{Allowed: allowed, Count: count, Bucket: bucket}
	if !allowed {
		d.Reason = fmt.Sprintf("daily limit of %d uploads reached", r.limit)
	}
	return d, nil
}
