package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/campusflow/registration-api/pkg/errors"
)

// Cache key patterns for derived read views.
func sectionSeatsKey(sectionID string) string       { return "section:seats:" + sectionID }
func studentEnrollmentsKey(studentID string) string { return "student:enrollments:" + studentID }
func courseListKey(suffix string) string            { return "courses:" + suffix }

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheSync keeps derived read views consistent with the ledger. After each
// committed transition the affected views are deleted, never patched in
// place; read paths repopulate them with short TTLs, so a missed refresh can
// only cost a database read, not serve a stale count.
type CacheSync struct {
	store  cacheStore
	logger *zap.Logger
}

// NewCacheSync constructs CacheSync.
func NewCacheSync(store cacheStore, logger *zap.Logger) *CacheSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheSync{store: store, logger: logger}
}

// Get attempts a cached read. It returns true on a hit.
func (s *CacheSync) Get(ctx context.Context, key string, dest interface{}) bool {
	if s.store == nil {
		return false
	}
	if err := s.store.Get(ctx, key, dest); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

// Set stores a view with the given TTL. Failures are logged, not surfaced;
// the cache is an optimization, the database stays the source of truth.
func (s *CacheSync) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateSection removes the section's seat-count view.
func (s *CacheSync) InvalidateSection(ctx context.Context, sectionID string) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, sectionSeatsKey(sectionID)); err != nil {
		// The delete failed, so the entry may still be present; it will
		// expire with its TTL. Log loudly so persistent failures surface.
		s.logger.Error("cache invalidation failed", zap.String("section_id", sectionID), zap.Error(err))
	}
}

// InvalidateStudent removes the student's enrollment-list views. The views
// are keyed per semester, so this deletes by prefix.
func (s *CacheSync) InvalidateStudent(ctx context.Context, studentID string) {
	if s.store == nil {
		return
	}
	if err := s.store.DeleteByPattern(ctx, studentEnrollmentsKey(studentID)+"*"); err != nil {
		s.logger.Error("cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
	}
}
