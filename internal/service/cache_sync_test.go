package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/campusflow/registration-api/pkg/errors"
)

type fakeCacheStore struct {
	entries  map[string][]byte
	getErr   error
	setErr   error
	deleted  []string
	patterns []string
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: make(map[string][]byte)}
}

func (f *fakeCacheStore) Get(ctx context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = raw
	return nil
}

func (f *fakeCacheStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.entries, key)
		f.deleted = append(f.deleted, key)
	}
	return nil
}

func (f *fakeCacheStore) DeleteByPattern(ctx context.Context, pattern string) error {
	f.patterns = append(f.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.entries {
		if strings.HasPrefix(key, prefix) {
			delete(f.entries, key)
		}
	}
	return nil
}

func TestCacheSyncRoundTrip(t *testing.T) {
	store := newFakeCacheStore()
	sync := NewCacheSync(store, zap.NewNop())
	ctx := context.Background()

	sync.Set(ctx, "k1", map[string]int{"seats": 3}, time.Minute)

	var out map[string]int
	require.True(t, sync.Get(ctx, "k1", &out))
	assert.Equal(t, 3, out["seats"])
}

func TestCacheSyncGetMiss(t *testing.T) {
	sync := NewCacheSync(newFakeCacheStore(), zap.NewNop())

	var out map[string]int
	assert.False(t, sync.Get(context.Background(), "absent", &out))
}

func TestCacheSyncGetErrorTreatedAsMiss(t *testing.T) {
	store := newFakeCacheStore()
	store.getErr = errors.New("connection refused")
	sync := NewCacheSync(store, zap.NewNop())

	var out map[string]int
	assert.False(t, sync.Get(context.Background(), "k1", &out))
}

func TestCacheSyncInvalidateSectionDeletesSeatView(t *testing.T) {
	store := newFakeCacheStore()
	sync := NewCacheSync(store, zap.NewNop())
	ctx := context.Background()

	sync.Set(ctx, sectionSeatsKey("sec1"), 5, time.Minute)
	sync.InvalidateSection(ctx, "sec1")

	assert.Contains(t, store.deleted, "section:seats:sec1")
	var out int
	assert.False(t, sync.Get(ctx, sectionSeatsKey("sec1"), &out))
}

func TestCacheSyncInvalidateStudentCoversAllSemesters(t *testing.T) {
	store := newFakeCacheStore()
	sync := NewCacheSync(store, zap.NewNop())
	ctx := context.Background()

	sync.Set(ctx, studentEnrollmentsKey("stu1")+":sem1", []string{"a"}, time.Minute)
	sync.Set(ctx, studentEnrollmentsKey("stu1")+":sem2", []string{"b"}, time.Minute)
	sync.Set(ctx, studentEnrollmentsKey("stu2")+":sem1", []string{"c"}, time.Minute)

	sync.InvalidateStudent(ctx, "stu1")

	assert.Equal(t, []string{"student:enrollments:stu1*"}, store.patterns)
	var out []string
	assert.False(t, sync.Get(ctx, studentEnrollmentsKey("stu1")+":sem1", &out))
	assert.False(t, sync.Get(ctx, studentEnrollmentsKey("stu1")+":sem2", &out))
	assert.True(t, sync.Get(ctx, studentEnrollmentsKey("stu2")+":sem1", &out))
}

func TestCacheSyncNilStoreIsInert(t *testing.T) {
	sync := NewCacheSync(nil, zap.NewNop())
	ctx := context.Background()

	var out int
	assert.False(t, sync.Get(ctx, "k", &out))
	sync.Set(ctx, "k", 1, time.Minute)
	sync.InvalidateSection(ctx, "sec1")
	sync.InvalidateStudent(ctx, "stu1")
}
