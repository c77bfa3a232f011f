package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"platewatch/internal/config"
	"platewatch/internal/domain/plate"
	"platewatch/internal/metrics"
	"platewatch/internal/registry"
	"platewatch/internal/repository"
	"platewatch/internal/utils"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrDatabaseDisabled = errors.New("database is not configured")
)

type PlateService struct {
	repo     *repository.PlateRepository
	holder   *registry.Holder
	registry config.RegistryConfig
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewPlateService wires the registry snapshot holder to its source. repo may
// be nil when no database is configured.
func NewPlateService(
	repo *repository.PlateRepository,
	holder *registry.Holder,
	registryCfg config.RegistryConfig,
	m *metrics.Metrics,
	log zerolog.Logger,
) *PlateService {
	return &PlateService{
		repo:     repo,
		holder:   holder,
		registry: registryCfg,
		metrics:  m,
		log:      log,
	}
}

func (s *PlateService) Registry() *registry.Registry {
	return s.holder.Load()
}

// ReloadRegistry builds a fresh snapshot from the configured source and
// publishes it. The previous snapshot stays in place on failure.
func (s *PlateService) ReloadRegistry(ctx context.Context) (*registry.Registry, error) {
	var (
		reg *registry.Registry
		err error
	)
	switch s.registry.Source {
	case config.RegistrySourceDatabase:
		if s.repo == nil {
			return nil, ErrDatabaseDisabled
		}
		records, lerr := s.repo.ListPlateRecords(ctx)
		if lerr != nil {
			return nil, fmt.Errorf("%w: %v", registry.ErrResourceUnavailable, lerr)
		}
		reg = registry.FromRecords(records)
	default:
		reg, err = registry.LoadFile(s.registry.Path)
		if err != nil {
			return nil, err
		}
	}

	s.holder.Store(reg)
	s.metrics.RegistrySize(reg.Len())
	s.log.Info().
		Str("source", s.registry.Source).
		Int("plates", reg.Len()).
		Int("skipped_rows", reg.Skipped()).
		Msg("plate registry loaded")
	return reg, nil
}

// ImportRegistry copies a CSV registry into the database.
func (s *PlateService) ImportRegistry(ctx context.Context, path string) (int, error) {
	if s.repo == nil {
		return 0, ErrDatabaseDisabled
	}
	reg, err := registry.LoadFile(path)
	if err != nil {
		return 0, err
	}
	records := reg.Records()
	if err := s.repo.UpsertPlates(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to import registry: %w", err)
	}
	s.log.Info().Str("path", path).Int("plates", len(records)).Int("skipped_rows", reg.Skipped()).Msg("registry imported")
	return len(records), nil
}

func (s *PlateService) SetPlateStatus(ctx context.Context, number, status string) (plate.Record, error) {
	rec := plate.Record{
		Plate:  strings.TrimSpace(number),
		Status: plate.Status(strings.ToLower(strings.TrimSpace(status))),
	}
	if rec.Plate == "" {
		return rec, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if rec.Status == "" {
		return rec, fmt.Errorf("%w: status is required", ErrInvalidInput)
	}
	if s.repo == nil {
		return rec, ErrDatabaseDisabled
	}

	if err := s.repo.UpsertPlate(ctx, rec.Plate, rec.Status); err != nil {
		return rec, fmt.Errorf("failed to store plate: %w", err)
	}
	s.log.Info().Str("plate", rec.Plate).Str("status", string(rec.Status)).Msg("plate status stored")

	if s.registry.Source == config.RegistrySourceDatabase {
		if _, err := s.ReloadRegistry(ctx); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// Lookup checks text against the current snapshot exactly as reconciliation does.
func (s *PlateService) Lookup(text string) plate.Lookup {
	status, ok := s.Registry().Lookup(text)
	if !ok {
		return plate.Lookup{Plate: text, Status: plate.StatusEnquiry}
	}
	return plate.Lookup{Plate: text, Status: status, Known: true}
}

func (s *PlateService) FindPlates(ctx context.Context, plateQuery string) ([]PlateInfo, error) {
	normalized := utils.NormalizePlate(plateQuery)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate query cannot be empty", ErrInvalidInput)
	}
	if s.repo == nil {
		return nil, ErrDatabaseDisabled
	}

	plates, err := s.repo.FindPlatesByNormalized(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find plates: %w", err)
	}
	if len(plates) == 0 {
		return nil, fmt.Errorf("%w: no stored plate matches %q", ErrNotFound, normalized)
	}

	result := make([]PlateInfo, 0, len(plates))
	for _, p := range plates {
		lastEventTime, err := s.repo.GetLastEventTimeForPlate(ctx, p.Normalized)
		if err != nil {
			s.log.Warn().Err(err).Str("plate", p.Number).Msg("failed to get last event time")
		}
		result = append(result, PlateInfo{
			ID:            p.ID,
			Number:        p.Number,
			Normalized:    p.Normalized,
			Status:        p.Status,
			LastEventTime: lastEventTime,
		})
	}
	return result, nil
}

func (s *PlateService) FindEvents(ctx context.Context, plateQuery, status *string, from, to *string, limit, offset int) ([]plate.Event, error) {
	if s.repo == nil {
		return nil, ErrDatabaseDisabled
	}

	filter := repository.EventFilter{Limit: limit, Offset: offset}
	if plateQuery != nil {
		normalized := utils.NormalizePlate(*plateQuery)
		if normalized != "" {
			filter.NormalizedPlate = &normalized
		}
	}
	if status != nil {
		st := strings.ToLower(strings.TrimSpace(*status))
		if st != "" {
			filter.Status = &st
		}
	}

	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		filter.From = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		filter.To = &t
	}

	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	events, err := s.repo.FindEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}

	result := make([]plate.Event, 0, len(events))
	for _, e := range events {
		result = append(result, e.ToEvent())
	}
	return result, nil
}

// CleanupOldEvents удаляет события старше указанного количества дней
func (s *PlateService) CleanupOldEvents(ctx context.Context, days int) (int64, error) {
	if s.repo == nil {
		return 0, ErrDatabaseDisabled
	}
	if days <= 0 {
		return 0, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}
	deleted, err := s.repo.DeleteOldEvents(ctx, days)
	if err != nil {
		s.log.Error().Err(err).Int("days", days).Msg("failed to cleanup old events")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Int("days", days).Msg("cleaned up old events")
	}
	return deleted, nil
}

type PlateInfo struct {
	ID            int64      `json:"id"`
	Number        string     `json:"number"`
	Normalized    string     `json:"normalized"`
	Status        string     `json:"status"`
	LastEventTime *time.Time `json:"last_event_time,omitempty"`
}
