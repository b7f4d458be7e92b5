package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sendLimiterSweepInterval is how often Allow looks for idle buckets.
const sendLimiterSweepInterval = time.Minute

type senderBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SendLimiter keeps one token bucket per sender. A bucket idle long enough
// to have refilled completely is dropped; recreating it is equivalent.
type SendLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*senderBucket
	rps       float64
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewSendLimiter(rps float64, burst int) *SendLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	idleAfter := time.Duration(float64(burst) / rps * float64(time.Second))
	if idleAfter < sendLimiterSweepInterval {
		idleAfter = sendLimiterSweepInterval
	}
	return &SendLimiter{
		buckets:   make(map[string]*senderBucket),
		rps:       rps,
		burst:     burst,
		idleAfter: idleAfter,
		now:       time.Now,
	}
}

func (l *SendLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.lastSweep.IsZero() {
		l.lastSweep = now
	}
	if now.Sub(l.lastSweep) >= sendLimiterSweepInterval {
		l.sweep(now)
	}

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &senderBucket{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

// sweep needs l.mu held.
func (l *SendLimiter) sweep(now time.Time) {
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) >= l.idleAfter {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
