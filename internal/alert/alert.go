package alert

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"platewatch/internal/domain/plate"
	"platewatch/internal/metrics"
)

type Event struct {
	Plate     string       `json:"plate"`
	Status    plate.Status `json:"status"`
	Frame     int          `json:"frame"`
	VehicleID int          `json:"vehicle_id"`
	Score     float64      `json:"score"`
	Time      time.Time    `json:"time"`
}

func (e Event) Message() string {
	return fmt.Sprintf("enquiry plate %q detected in frame %d (score %.2f)", e.Plate, e.Frame, e.Score)
}

// Alerter delivers a single alert.
type Alerter interface {
	Name() string
	Alert(ctx context.Context, ev Event) error
}

// Bell rings the terminal bell and prints the alert.
type Bell struct {
	w io.Writer
}

func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

func (b *Bell) Name() string { return "bell" }

func (b *Bell) Alert(_ context.Context, ev Event) error {
	_, err := fmt.Fprintf(b.w, "\a%s\n", ev.Message())
	return err
}

// Notifier fans enquiry events out to the configured alerters. A plate is
// alerted at most once per cooldown window.
type Notifier struct {
	alerters []Alerter
	seen     *cache.Cache
	cooldown time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewNotifier(cooldown time.Duration, m *metrics.Metrics, log zerolog.Logger, alerters ...Alerter) *Notifier {
	cleanup := 2 * cooldown
	if cooldown <= 0 {
		cleanup = time.Minute
	}
	return &Notifier{
		alerters: alerters,
		seen:     cache.New(cooldown, cleanup),
		cooldown: cooldown,
		metrics:  m,
		log:      log,
	}
}

// Notify reports whether alerters were invoked for ev. Alerter failures are
// logged and counted, never returned.
func (n *Notifier) Notify(ctx context.Context, ev Event) bool {
	if n == nil || ev.Status != plate.StatusEnquiry {
		return false
	}
	if n.cooldown > 0 {
		if err := n.seen.Add(ev.Plate, ev.Time, n.cooldown); err != nil {
			n.log.Debug().Str("plate", ev.Plate).Msg("enquiry alert suppressed by cooldown")
			return false
		}
	}

	n.log.Warn().
		Str("plate", ev.Plate).
		Int("frame", ev.Frame).
		Int("vehicle_id", ev.VehicleID).
		Float64("score", ev.Score).
		Msg("detected an enquiry license plate")

	for _, a := range n.alerters {
		err := a.Alert(ctx, ev)
		n.metrics.Alert(a.Name(), err)
		if err != nil {
			n.log.Error().Err(err).Str("alerter", a.Name()).Str("plate", ev.Plate).Msg("failed to send alert")
		}
	}
	return true
}
