package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"platewatch/internal/config"
	"platewatch/internal/domain/plate"
	"platewatch/internal/registry"
	"platewatch/internal/repository"
)

func newSQLiteRepo(t *testing.T) *repository.PlateRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(repository.Models()...))
	return repository.NewPlateRepository(db)
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plates.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReloadRegistryFromCSV(t *testing.T) {
	path := writeCSV(t, "ABC123,Registered\nbad,row,here\n")
	holder := registry.NewHolder(nil)
	svc := NewPlateService(nil, holder, config.RegistryConfig{Source: config.RegistrySourceCSV, Path: path}, nil, zerolog.Nop())

	reg, err := svc.ReloadRegistry(context.Background())
	require.NoError(t, err)

	assert.Same(t, reg, holder.Load())
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, reg.Skipped())
	assert.Equal(t, plate.Lookup{Plate: "ABC123", Status: plate.StatusRegistered, Known: true}, svc.Lookup("ABC123"))
	assert.Equal(t, plate.Lookup{Plate: "abc123", Status: plate.StatusEnquiry}, svc.Lookup("abc123"))
}

func TestReloadRegistryKeepsSnapshotOnFailure(t *testing.T) {
	prev := registry.FromRecords([]plate.Record{{Plate: "A", Status: "registered"}})
	holder := registry.NewHolder(prev)
	svc := NewPlateService(nil, holder, config.RegistryConfig{Source: config.RegistrySourceCSV, Path: filepath.Join(t.TempDir(), "gone.csv")}, nil, zerolog.Nop())

	_, err := svc.ReloadRegistry(context.Background())
	require.ErrorIs(t, err, registry.ErrResourceUnavailable)
	assert.Same(t, prev, holder.Load())
}

func TestDatabaseRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	holder := registry.NewHolder(nil)
	svc := NewPlateService(repo, holder, config.RegistryConfig{Source: config.RegistrySourceDatabase}, nil, zerolog.Nop())

	n, err := svc.ImportRegistry(ctx, writeCSV(t, " ABC123 , Registered\nXYZ789,MISSING\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.ReloadRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, plate.StatusRegistered, svc.Lookup("ABC123").Status)

	rec, err := svc.SetPlateStatus(ctx, " ABC123 ", " Missing ")
	require.NoError(t, err)
	assert.Equal(t, plate.Record{Plate: "ABC123", Status: plate.StatusMissing}, rec)
	assert.Equal(t, plate.StatusMissing, svc.Lookup("ABC123").Status, "database source reloads after a write")

	plates, err := svc.FindPlates(ctx, "xyz-789")
	require.NoError(t, err)
	require.Len(t, plates, 1)
	assert.Equal(t, "missing", plates[0].Status)
	assert.Nil(t, plates[0].LastEventTime)

	_, err = svc.FindPlates(ctx, "NOPE1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetPlateStatusValidation(t *testing.T) {
	svc := NewPlateService(nil, registry.NewHolder(nil), config.RegistryConfig{}, nil, zerolog.Nop())

	_, err := svc.SetPlateStatus(context.Background(), " ", "registered")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SetPlateStatus(context.Background(), "ABC", "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SetPlateStatus(context.Background(), "ABC", "registered")
	require.ErrorIs(t, err, ErrDatabaseDisabled)
}

func TestFindEventsAndCleanup(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	svc := NewPlateService(repo, registry.NewHolder(nil), config.RegistryConfig{Source: config.RegistrySourceCSV}, nil, zerolog.Nop())

	now := time.Now().UTC()
	require.NoError(t, repo.CreateDetectionEvent(ctx, &plate.Event{Plate: "ABC123", Status: plate.StatusEnquiry, EventTime: now}))
	require.NoError(t, repo.CreateDetectionEvent(ctx, &plate.Event{Plate: "ABC123", Status: plate.StatusEnquiry, EventTime: now.AddDate(0, 0, -60)}))
	require.NoError(t, repo.CreateDetectionEvent(ctx, &plate.Event{Plate: "ABC123", Status: plate.StatusMissing, EventTime: now.Add(-time.Hour)}))

	q := "abc 123"
	events, err := svc.FindEvents(ctx, &q, nil, nil, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	status := " Missing "
	events, err = svc.FindEvents(ctx, &q, &status, nil, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, plate.StatusMissing, events[0].Status)

	bad := "yesterday"
	_, err = svc.FindEvents(ctx, nil, nil, &bad, nil, 10, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CleanupOldEvents(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	deleted, err := svc.CleanupOldEvents(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestNoDatabase(t *testing.T) {
	svc := NewPlateService(nil, registry.NewHolder(nil), config.RegistryConfig{Source: config.RegistrySourceDatabase}, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.ReloadRegistry(ctx)
	require.ErrorIs(t, err, ErrDatabaseDisabled)
	_, err = svc.FindPlates(ctx, "ABC")
	require.ErrorIs(t, err, ErrDatabaseDisabled)
	_, err = svc.FindEvents(ctx, nil, nil, nil, nil, 0, 0)
	require.ErrorIs(t, err, ErrDatabaseDisabled)
	_, err = svc.ImportRegistry(ctx, "x.csv")
	require.ErrorIs(t, err, ErrDatabaseDisabled)

	_, err = svc.FindPlates(ctx, " - ")
	require.ErrorIs(t, err, ErrInvalidInput)
}
