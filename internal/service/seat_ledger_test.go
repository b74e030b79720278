package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusflow/registration-api/internal/lock"
	appErrors "github.com/campusflow/registration-api/pkg/errors"
)

// mockSeatStore applies the same conditional rule the SQL update enforces:
// a claim only succeeds while taken < capacity.
type mockSeatStore struct {
	mu       sync.Mutex
	capacity int
	taken    int
	released int
}

func (m *mockSeatStore) ClaimSeat(ctx context.Context, sectionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken >= m.capacity {
		return false, nil
	}
	m.taken++
	return true, nil
}

func (m *mockSeatStore) ReleaseSeat(ctx context.Context, sectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken > 0 {
		m.taken--
	}
	m.released++
	return nil
}

type heldLeaser struct{}

func (heldLeaser) Acquire(ctx context.Context, key string, ttl time.Duration) (*lock.Lease, error) {
	return nil, lock.ErrNotAcquired
}

func (heldLeaser) Release(ctx context.Context, lease *lock.Lease) error { return nil }

func TestSeatLedgerLockBusyWhenLeaseHeld(t *testing.T) {
	ledger := NewSeatLedger(&mockSeatStore{capacity: 1}, heldLeaser{}, time.Second, nil, zap.NewNop())

	_, err := ledger.Lock(context.Background(), "sec1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSectionBusy))
}

func TestSeatLedgerLockAndUnlock(t *testing.T) {
	locks := &mockLeaser{}
	ledger := NewSeatLedger(&mockSeatStore{capacity: 1}, locks, time.Second, nil, zap.NewNop())

	lease, err := ledger.Lock(context.Background(), "sec1")
	require.NoError(t, err)
	assert.Equal(t, SectionLockKey("sec1"), lease.Key)

	// A second lock on the same section must report busy until released.
	_, err = ledger.Lock(context.Background(), "sec1")
	assert.True(t, appErrors.Is(err, appErrors.ErrSectionBusy))

	ledger.Unlock(context.Background(), lease)
	_, err = ledger.Lock(context.Background(), "sec1")
	assert.NoError(t, err)
}

func TestSeatLedgerLocksAreIndependentPerSection(t *testing.T) {
	locks := &mockLeaser{}
	ledger := NewSeatLedger(&mockSeatStore{capacity: 1}, locks, time.Second, nil, zap.NewNop())

	_, err := ledger.Lock(context.Background(), "sec1")
	require.NoError(t, err)
	_, err = ledger.Lock(context.Background(), "sec2")
	assert.NoError(t, err)
}

func TestSeatLedgerClaimGrantedThenWaitlisted(t *testing.T) {
	store := &mockSeatStore{capacity: 1}
	ledger := NewSeatLedger(store, &mockLeaser{}, time.Second, nil, zap.NewNop())

	result, err := ledger.Claim(context.Background(), "sec1")
	require.NoError(t, err)
	assert.Equal(t, ClaimGranted, result)

	result, err = ledger.Claim(context.Background(), "sec1")
	require.NoError(t, err)
	assert.Equal(t, ClaimWaitlisted, result)
}

func TestSeatLedgerReleaseReturnsSeat(t *testing.T) {
	store := &mockSeatStore{capacity: 1}
	ledger := NewSeatLedger(store, &mockLeaser{}, time.Second, nil, zap.NewNop())

	_, err := ledger.Claim(context.Background(), "sec1")
	require.NoError(t, err)
	require.NoError(t, ledger.Release(context.Background(), "sec1"))

	result, err := ledger.Claim(context.Background(), "sec1")
	require.NoError(t, err)
	assert.Equal(t, ClaimGranted, result)
}

func TestSeatLedgerConcurrentClaimsRespectCapacity(t *testing.T) {
	const capacity = 5
	const claims = 50

	store := &mockSeatStore{capacity: capacity}
	ledger := NewSeatLedger(store, &mockLeaser{}, time.Second, nil, zap.NewNop())

	var wg sync.WaitGroup
	granted := make(chan struct{}, claims)
	for i := 0; i < claims; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := ledger.Claim(context.Background(), "sec1")
			if err == nil && result == ClaimGranted {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	assert.Equal(t, capacity, len(granted))
	assert.Equal(t, capacity, store.taken)
}
