package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/campusflow/registration-api/internal/lock"
	appErrors "github.com/campusflow/registration-api/pkg/errors"
)

// ClaimResult is the outcome of a seat claim.
type ClaimResult string

// Possible claim outcomes.
const (
	ClaimGranted    ClaimResult = "granted"
	ClaimWaitlisted ClaimResult = "waitlisted"
)

type seatStore interface {
	ClaimSeat(ctx context.Context, sectionID string) (bool, error)
	ReleaseSeat(ctx context.Context, sectionID string) error
}

type leaser interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*lock.Lease, error)
	Release(ctx context.Context, lease *lock.Lease) error
}

// SectionLockKey builds the lease key serializing seat operations on one
// section. Claims on different sections proceed independently.
func SectionLockKey(sectionID string) string {
	return "lock:section:" + sectionID
}

// SeatLedger owns the authoritative seat count per section. The per-section
// lease orders a claim after the eligibility re-checks run under it; the
// conditional update underneath guarantees the capacity bound on its own,
// so an expired lease can never over-grant.
type SeatLedger struct {
	sections seatStore
	locks    leaser
	lockTTL  time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewSeatLedger constructs SeatLedger.
func NewSeatLedger(sections seatStore, locks leaser, lockTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *SeatLedger {
	if lockTTL <= 0 {
		lockTTL = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatLedger{sections: sections, locks: locks, lockTTL: lockTTL, metrics: metrics, logger: logger}
}

// Lock acquires the section lease. A held lease yields ErrSectionBusy so
// the caller can return a retryable outcome instead of waiting.
func (s *SeatLedger) Lock(ctx context.Context, sectionID string) (*lock.Lease, error) {
	lease, err := s.locks.Acquire(ctx, SectionLockKey(sectionID), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.metrics.RecordSeatClaim("busy")
			return nil, appErrors.ErrSectionBusy
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock section")
	}
	return lease, nil
}

// Unlock releases the section lease. Safe on expired leases.
func (s *SeatLedger) Unlock(ctx context.Context, lease *lock.Lease) {
	if err := s.locks.Release(ctx, lease); err != nil {
		s.logger.Warn("section lease release failed", zap.String("key", lease.Key), zap.Error(err))
	}
}

// Claim attempts to take one seat. Callers must hold the section lease.
func (s *SeatLedger) Claim(ctx context.Context, sectionID string) (ClaimResult, error) {
	granted, err := s.sections.ClaimSeat(ctx, sectionID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim seat")
	}
	if !granted {
		s.metrics.RecordSeatClaim("waitlisted")
		return ClaimWaitlisted, nil
	}
	s.metrics.RecordSeatClaim("granted")
	return ClaimGranted, nil
}

// Release returns one previously granted seat. Each call must match exactly
// one prior grant; idempotence against double release is the caller's duty.
func (s *SeatLedger) Release(ctx context.Context, sectionID string) error {
	if err := s.sections.ReleaseSeat(ctx, sectionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release seat")
	}
	s.metrics.RecordSeatClaim("released")
	return nil
}
