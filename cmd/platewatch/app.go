package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"platewatch/internal/alert"
	"platewatch/internal/config"
	"platewatch/internal/db"
	"platewatch/internal/detector"
	"platewatch/internal/logger"
	"platewatch/internal/metrics"
	"platewatch/internal/ocr"
	"platewatch/internal/registry"
	"platewatch/internal/repository"
	"platewatch/internal/service"
)

// App holds the wiring shared by all subcommands.
type App struct {
	cfg     *config.Config
	log     zerolog.Logger
	promReg *prometheus.Registry
	metrics *metrics.Metrics
	db      *gorm.DB
	repo    *repository.PlateRepository
	plates  *service.PlateService
	closers []func()
}

func (a *App) init(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(cfg.Log.Level, cfg.Log.Pretty)

	a.promReg = prometheus.NewRegistry()
	a.promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics, err = metrics.New(a.promReg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	if cfg.DatabaseEnabled() {
		a.db, err = db.Connect(cfg.Database, a.log)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := db.Close(a.db); err != nil {
				a.log.Warn().Err(err).Msg("failed to close database")
			}
		})
		a.repo = repository.NewPlateRepository(a.db)
	}

	a.plates = service.NewPlateService(a.repo, registry.NewHolder(nil), cfg.Registry, a.metrics, a.log)
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// detectionService builds the pipeline with every collaborator the config
// enables. Optional collaborators that fail to start are logged and skipped.
// frameName may be nil to keep the output_frame_<n>.jpg naming.
func (a *App) detectionService(source string, frameName func(int) string) *service.DetectionService {
	det := detector.NewHTTPDetector(a.cfg.Detector.URL, a.cfg.Detector.Timeout, a.cfg.Detector.Confidence, nil)

	var reader ocr.Reader
	if a.cfg.OCR.Enabled {
		tess, err := ocr.NewTesseract(a.cfg.OCR.Language)
		if err != nil {
			a.log.Warn().Err(err).Msg("ocr disabled, using placeholder plate text")
		} else {
			reader = tess
			a.closers = append(a.closers, func() { _ = tess.Close() })
		}
	}

	var alerters []alert.Alerter
	if a.cfg.Alert.Bell {
		alerters = append(alerters, alert.NewBell(os.Stdout))
	}
	if a.cfg.Alert.TonePath != "" {
		alerters = append(alerters, alert.NewTone(a.cfg.Alert.TonePath, a.cfg.Alert.Player))
	}
	if a.cfg.Alert.MQTT.Broker != "" {
		m, err := alert.NewMQTT(alert.MQTTConfig{
			Broker:   a.cfg.Alert.MQTT.Broker,
			Topic:    a.cfg.Alert.MQTT.Topic,
			ClientID: a.cfg.Alert.MQTT.ClientID,
			Username: a.cfg.Alert.MQTT.Username,
			Password: a.cfg.Alert.MQTT.Password,
		})
		if err != nil {
			a.log.Warn().Err(err).Str("broker", a.cfg.Alert.MQTT.Broker).Msg("mqtt alerts disabled")
		} else {
			alerters = append(alerters, m)
			a.closers = append(a.closers, m.Close)
		}
	}
	notifier := alert.NewNotifier(a.cfg.Alert.Cooldown, a.metrics, a.log, alerters...)

	var store service.EventStore
	if a.repo != nil {
		store = a.repo
	}

	return service.NewDetectionService(det, reader, a.plates, notifier, store, a.metrics, service.DetectionOptions{
		OutputDir:  a.cfg.Output.Dir,
		SaveFrames: a.cfg.Output.SaveFrames,
		FrameName:  frameName,
		CSVPath:    a.cfg.Output.CSVPath,
		Source:     source,
	}, a.log)
}
