package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusflow/registration-api/internal/models"
	"github.com/campusflow/registration-api/pkg/config"
	appErrors "github.com/campusflow/registration-api/pkg/errors"
	"github.com/campusflow/registration-api/pkg/export"
)

type sectionStore interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Section, error)
}

type rosterReader interface {
	Roster(ctx context.Context, sectionID string) ([]models.RosterEntry, error)
}

type sectionScheduleReader interface {
	ListBySection(ctx context.Context, sectionID string) ([]models.ScheduleSlot, error)
}

// SeatAvailability is the cached seat view served to clients polling
// during registration. It may lag the ledger by up to the cache TTL.
type SeatAvailability struct {
	SectionID      string               `json:"section_id"`
	Capacity       int                  `json:"capacity"`
	SeatsTaken     int                  `json:"seats_taken"`
	SeatsAvailable int                  `json:"seats_available"`
	Status         models.SectionStatus `json:"status"`
	AsOf           time.Time            `json:"as_of"`
}

// SectionDetail enriches a section with its weekly schedule.
type SectionDetail struct {
	models.Section
	SeatsAvailable int                   `json:"seats_available"`
	Schedule       []models.ScheduleSlot `json:"schedule,omitempty"`
}

// SectionService serves section reads and roster exports.
type SectionService struct {
	sections  sectionStore
	roster    rosterReader
	schedules sectionScheduleReader
	caches    cacheSynchronizer
	cfg       config.RegistrationConfig
	logger    *zap.Logger
}

// NewSectionService constructs SectionService.
func NewSectionService(sections sectionStore, roster rosterReader, schedules sectionScheduleReader, caches cacheSynchronizer, cfg config.RegistrationConfig, logger *zap.Logger) *SectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{sections: sections, roster: roster, schedules: schedules, caches: caches, cfg: cfg, logger: logger}
}

// Detail returns a section with its schedule slots.
func (s *SectionService) Detail(ctx context.Context, sectionID string) (*SectionDetail, error) {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	slots, err := s.schedules.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	return &SectionDetail{Section: *section, SeatsAvailable: section.SeatsAvailable(), Schedule: slots}, nil
}

// Availability returns the seat view for a section, read through the
// cache. The ledger is only consulted on a miss.
func (s *SectionService) Availability(ctx context.Context, sectionID string) (*SeatAvailability, error) {
	key := sectionSeatsKey(sectionID)

	var cached SeatAvailability
	if s.caches != nil && s.caches.Get(ctx, key, &cached) {
		return &cached, nil
	}

	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	view := &SeatAvailability{
		SectionID:      section.ID,
		Capacity:       section.Capacity,
		SeatsTaken:     section.SeatsTaken,
		SeatsAvailable: section.SeatsAvailable(),
		Status:         section.Status,
		AsOf:           time.Now().UTC(),
	}
	if s.caches != nil {
		s.caches.Set(ctx, key, view, s.cfg.SeatCacheTTL)
	}
	return view, nil
}

// ExportRoster renders the section roster as CSV or PDF bytes.
func (s *SectionService) ExportRoster(ctx context.Context, sectionID, format string) ([]byte, string, error) {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	entries, err := s.roster.Roster(ctx, sectionID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	table := export.Table{
		Title:   fmt.Sprintf("Roster %s", section.Code),
		Columns: []string{"Student Code", "Full Name", "Status", "Enrolled At"},
	}
	for _, e := range entries {
		table.Rows = append(table.Rows, []string{
			e.StudentCode,
			e.FullName,
			string(e.Status),
			e.EnrolledAt.Format(time.RFC3339),
		})
	}

	switch strings.ToLower(format) {
	case "", "csv":
		data, err := export.CSV(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return data, "text/csv", nil
	case "pdf":
		data, err := export.PDF(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+format)
	}
}
