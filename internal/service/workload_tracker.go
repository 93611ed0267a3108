package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-engine/internal/clock"
	"github.com/spec-kit/complaint-engine/internal/domain"
	"github.com/spec-kit/complaint-engine/internal/repository"
)

const workloadCachePrefix = "workload:"

// WorkloadTracker derives per-staff workload from complaint records. The
// complaint store is the only source of truth; the Redis cache is a fast
// path that every assignment mutation invalidates, so it can never drift
// into authority.
type WorkloadTracker struct {
	complaints repository.ComplaintRepository
	cache      *redis.Client
	cacheTTL   time.Duration
	clk        clock.Clock
	logger     *zap.Logger
}

// NewWorkloadTracker constructs the tracker. cache may be nil, in which case
// every snapshot is recomputed.
func NewWorkloadTracker(complaints repository.ComplaintRepository, cache *redis.Client, cacheTTL time.Duration, clk clock.Clock, logger *zap.Logger) *WorkloadTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkloadTracker{
		complaints: complaints,
		cache:      cache,
		cacheTTL:   cacheTTL,
		clk:        clk,
		logger:     logger,
	}
}

// Snapshot returns the current workload for a staff member, recomputed from
// complaint records on cache miss.
func (t *WorkloadTracker) Snapshot(ctx context.Context, staffRef string) (domain.WorkloadSnapshot, error) {
	if cached, ok := t.fromCache(ctx, staffRef); ok {
		return cached, nil
	}

	dayStart := startOfDay(t.clk.Now())
	snapshot, err := t.complaints.WorkloadCounts(ctx, staffRef, dayStart)
	if err != nil {
		return domain.WorkloadSnapshot{}, err
	}
	t.store(ctx, snapshot)
	return snapshot, nil
}

// Invalidate drops the cached snapshot for a staff member. Called on every
// assign, reassign and close touching that staff.
func (t *WorkloadTracker) Invalidate(ctx context.Context, staffRef string) {
	if t.cache == nil || staffRef == "" {
		return
	}
	if err := t.cache.Del(ctx, workloadCachePrefix+staffRef).Err(); err != nil {
		t.logger.Debug("workload cache invalidate failed", zap.String("staff_ref", staffRef), zap.Error(err))
	}
}

func (t *WorkloadTracker) fromCache(ctx context.Context, staffRef string) (domain.WorkloadSnapshot, bool) {
	if t.cache == nil || t.cacheTTL <= 0 {
		return domain.WorkloadSnapshot{}, false
	}
	raw, err := t.cache.Get(ctx, workloadCachePrefix+staffRef).Bytes()
	if err != nil {
		return domain.WorkloadSnapshot{}, false
	}
	var snapshot domain.WorkloadSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.WorkloadSnapshot{}, false
	}
	return snapshot, true
}

func (t *WorkloadTracker) store(ctx context.Context, snapshot domain.WorkloadSnapshot) {
	if t.cache == nil || t.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := t.cache.Set(ctx, workloadCachePrefix+snapshot.StaffRef, raw, t.cacheTTL).Err(); err != nil {
		t.logger.Debug("workload cache store failed", zap.String("staff_ref", snapshot.StaffRef), zap.Error(err))
	}
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
