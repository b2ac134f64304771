package verify

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// ScanLock serializes concurrent scans of the same credential with a
// short-lived redis SetNX lock. It is an optimization in front of the
// store's conditional update, which remains authoritative.
type ScanLock struct {
	Client *redis.Client
}

func NewScanLock(client *redis.Client) *ScanLock {
	return &ScanLock{Client: client}
}

func scanLockTTL() time.Duration {
	defaultTTL := 10 * time.Second
	raw := os.Getenv("SCAN_LOCK_TTL_SECONDS")
	if raw == "" {
		return defaultTTL
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return defaultTTL
	}
	return time.Duration(seconds) * time.Second
}

// Acquire takes the scan lock for an order code. Returns false when
// another scan of the same credential is already in flight.
func (l *ScanLock) Acquire(ctx context.Context, orderCode string) (bool, error) {
	return l.Client.SetNX(ctx, "scan_lock:"+orderCode, "1", scanLockTTL()).Result()
}

// Release drops the scan lock. Expiry covers a crashed holder.
func (l *ScanLock) Release(ctx context.Context, orderCode string) error {
	return l.Client.Del(ctx, "scan_lock:"+orderCode).Err()
}
