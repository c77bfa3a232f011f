package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"platewatch/internal/domain/plate"
	"platewatch/internal/utils"
)

type PlateRepository struct {
	db *gorm.DB
}

func NewPlateRepository(db *gorm.DB) *PlateRepository {
	return &PlateRepository{db: db}
}

type Plate struct {
	ID         int64  `gorm:"primaryKey"`
	Number     string `gorm:"not null;uniqueIndex"`
	Normalized string `gorm:"not null;index"`
	Status     string `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type DetectionEvent struct {
	ID              string `gorm:"primaryKey;size:36"`
	Frame           int    `gorm:"not null"`
	VehicleID       int    `gorm:"not null"`
	Class           string
	RawPlate        string `gorm:"not null"`
	NormalizedPlate string `gorm:"not null;index"`
	Status          string `gorm:"not null"`
	Score           float64
	BBox            datatypes.JSON `gorm:"column:bbox"`
	Source          *string
	EventTime       time.Time `gorm:"not null;index"`
	RawPayload      datatypes.JSON
	CreatedAt       time.Time
}

type EventFilter struct {
	NormalizedPlate *string
	Status          *string
	From, To        *time.Time
	Limit, Offset   int
}

func (r *PlateRepository) UpsertPlate(ctx context.Context, number string, status plate.Status) error {
	now := time.Now()
	row := Plate{
		Number:     number,
		Normalized: utils.NormalizePlate(number),
		Status:     string(status),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "number"}},
		DoUpdates: clause.AssignmentColumns([]string{"normalized", "status", "updated_at"}),
	}).Create(&row).Error
}

// UpsertPlates stores all records in one transaction.
func (r *PlateRepository) UpsertPlates(ctx context.Context, records []plate.Record) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &PlateRepository{db: tx}
		for _, rec := range records {
			if err := txRepo.UpsertPlate(ctx, rec.Plate, rec.Status); err != nil {
				return fmt.Errorf("failed to store plate %q: %w", rec.Plate, err)
			}
		}
		return nil
	})
}

func (r *PlateRepository) ListPlateRecords(ctx context.Context) ([]plate.Record, error) {
	var plates []Plate
	if err := r.db.WithContext(ctx).Order("id").Find(&plates).Error; err != nil {
		return nil, err
	}
	records := make([]plate.Record, 0, len(plates))
	for _, p := range plates {
		records = append(records, plate.Record{Plate: p.Number, Status: plate.Status(p.Status)})
	}
	return records, nil
}

func (r *PlateRepository) FindPlatesByNormalized(ctx context.Context, normalized string) ([]Plate, error) {
	var plates []Plate
	err := r.db.WithContext(ctx).
		Where("normalized = ?", normalized).
		Order("number").
		Find(&plates).Error
	return plates, err
}

func (r *PlateRepository) CreateDetectionEvent(ctx context.Context, event *plate.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	bbox, err := json.Marshal(event.BBox)
	if err != nil {
		return fmt.Errorf("failed to encode bbox: %w", err)
	}

	dbEvent := DetectionEvent{
		ID:              event.ID.String(),
		Frame:           event.Frame,
		VehicleID:       event.VehicleID,
		Class:           event.Class,
		RawPlate:        event.Plate,
		NormalizedPlate: utils.NormalizePlate(event.Plate),
		Status:          string(event.Status),
		Score:           event.Score,
		BBox:            datatypes.JSON(bbox),
		EventTime:       event.EventTime,
		CreatedAt:       time.Now(),
	}
	if event.Source != "" {
		dbEvent.Source = &event.Source
	}
	if len(event.RawPayload) > 0 {
		raw, err := json.Marshal(event.RawPayload)
		if err != nil {
			return fmt.Errorf("failed to encode raw payload: %w", err)
		}
		dbEvent.RawPayload = datatypes.JSON(raw)
	}

	return r.db.WithContext(ctx).Create(&dbEvent).Error
}

func (r *PlateRepository) FindEvents(ctx context.Context, f EventFilter) ([]DetectionEvent, error) {
	query := r.db.WithContext(ctx).Model(&DetectionEvent{})

	if f.NormalizedPlate != nil {
		query = query.Where("normalized_plate = ?", *f.NormalizedPlate)
	}
	if f.Status != nil {
		query = query.Where("status = ?", *f.Status)
	}
	if f.From != nil {
		query = query.Where("event_time >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("event_time <= ?", *f.To)
	}

	query = query.Order("event_time DESC")

	if f.Limit > 0 {
		limit := f.Limit
		if limit > 100 {
			limit = 100
		}
		query = query.Limit(limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}

	var events []DetectionEvent
	err := query.Find(&events).Error
	return events, err
}

func (r *PlateRepository) GetLastEventTimeForPlate(ctx context.Context, normalized string) (*time.Time, error) {
	var event DetectionEvent
	err := r.db.WithContext(ctx).
		Where("normalized_plate = ?", normalized).
		Order("event_time DESC").
		First(&event).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &event.EventTime, nil
}

func (r *PlateRepository) DeleteOldEvents(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res := r.db.WithContext(ctx).
		Where("event_time < ?", cutoff).
		Delete(&DetectionEvent{})
	return res.RowsAffected, res.Error
}

func (e DetectionEvent) ToEvent() plate.Event {
	ev := plate.Event{
		Frame:     e.Frame,
		VehicleID: e.VehicleID,
		Class:     e.Class,
		Plate:     e.RawPlate,
		Status:    plate.Status(e.Status),
		Score:     e.Score,
		EventTime: e.EventTime,
	}
	if id, err := uuid.Parse(e.ID); err == nil {
		ev.ID = id
	}
	if e.Source != nil {
		ev.Source = *e.Source
	}
	if len(e.BBox) > 0 {
		_ = json.Unmarshal(e.BBox, &ev.BBox)
	}
	if len(e.RawPayload) > 0 {
		_ = json.Unmarshal(e.RawPayload, &ev.RawPayload)
	}
	return ev
}

// Models lists the tables owned by this repository, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{&Plate{}, &DetectionEvent{}}
}
